package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/barberfinder/internal/finder"
	"github.com/sells-group/barberfinder/internal/geo"
	"github.com/sells-group/barberfinder/internal/geolocate"
	"github.com/sells-group/barberfinder/internal/mapsync"
	"github.com/sells-group/barberfinder/internal/model"
	"github.com/sells-group/barberfinder/internal/notify"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type locationError struct {
	Kind    geolocate.Kind `json:"kind"`
	Message string         `json:"message"`
}

type entryView struct {
	model.RankedEntry
	Info string `json:"info"`
}

type providersResponse struct {
	Seq           uint64           `json:"seq"`
	Entries       []entryView      `json:"entries"`
	UserLocation  *geo.Coordinates `json:"user_location,omitempty"`
	LocationError *locationError   `json:"location_error,omitempty"`
	MapStatus     finder.MapStatus `json:"map_status"`
	Notifications int              `json:"notifications"`
}

// handleProviders runs one search. Explicit lat/lon take precedence over
// GeoIP; with neither the list is ranked without distances.
func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	locator, err := s.locatorFor(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.deps.Finder.Search(r.Context(), finder.Request{
		Query:    q.Get("q"),
		Locator:  locator,
		Selected: q.Get("selected"),
	})
	if err != nil {
		zap.L().Error("server: search failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "provider directory unavailable")
		return
	}

	out := providersResponse{
		Seq:           res.Seq,
		Entries:       make([]entryView, len(res.Entries)),
		UserLocation:  res.UserLocation,
		MapStatus:     res.MapStatus,
		Notifications: res.Notifications,
	}
	for i, e := range res.Entries {
		out.Entries[i] = entryView{RankedEntry: e, Info: mapsync.InfoFor(e).Text()}
	}
	if res.LocationError != nil {
		out.LocationError = &locationError{Kind: res.LocationError.Kind, Message: res.LocationMessage()}
	}
	writeJSON(w, http.StatusOK, out)
}

var errBadCoordinates = eris.New("lat and lon must both be valid degrees")

func (s *Server) locatorFor(r *http.Request) (geolocate.Locator, error) {
	q := r.URL.Query()
	lat, lon := q.Get("lat"), q.Get("lon")
	if lat == "" && lon == "" {
		if s.deps.GeoIP == nil {
			return nil, nil
		}
		return s.deps.GeoIP.ForIP(s.clientIP(r)), nil
	}

	la, err1 := strconv.ParseFloat(lat, 64)
	lo, err2 := strconv.ParseFloat(lon, 64)
	if err1 != nil || err2 != nil || la < -90 || la > 90 || lo < -180 || lo > 180 {
		return nil, errBadCoordinates
	}
	return geolocate.Static{Coordinates: geo.Coordinates{Latitude: la, Longitude: lo}}, nil
}

type markersResponse struct {
	Degraded bool                  `json:"degraded"`
	Selected string                `json:"selected,omitempty"`
	Markers  []mapsync.MarkerState `json:"markers"`
	Viewport *mapsync.Viewport     `json:"viewport,omitempty"`
}

func (s *Server) markers() markersResponse {
	c := s.deps.Finder.Map()
	if c == nil || c.Degraded() {
		return markersResponse{Degraded: true, Markers: []mapsync.MarkerState{}}
	}
	out := markersResponse{Selected: c.Selected(), Markers: c.Markers()}
	if out.Markers == nil {
		out.Markers = []mapsync.MarkerState{}
	}
	if vp, ok := c.Viewport(); ok {
		out.Viewport = &vp
	}
	return out
}

func (s *Server) handleMarkers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.markers())
}

// handleSelect changes the selected provider. An empty id clears it.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProviderID string `json:"provider_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c := s.deps.Finder.Map()
	if c == nil {
		writeError(w, http.StatusServiceUnavailable, "map unavailable")
		return
	}
	if err := c.Select(strings.TrimSpace(req.ProviderID)); err != nil {
		if errors.Is(err, mapsync.ErrDegraded) || errors.Is(err, mapsync.ErrClosed) {
			writeError(w, http.StatusServiceUnavailable, "map unavailable")
			return
		}
		zap.L().Warn("server: select failed", zap.String("provider_id", req.ProviderID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "select failed")
		return
	}
	writeJSON(w, http.StatusOK, s.markers())
}

type notificationView struct {
	model.Notification
	Ago string `json:"ago"`
}

type notificationsResponse struct {
	Notifications []notificationView `json:"notifications"`
	Unread        int                `json:"unread"`
	Badge         string             `json:"badge"`
	Label         string             `json:"label"`
}

// handleNotifications lists notifications in insertion order. unread=true
// narrows to unread ones.
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	var ns []model.Notification
	if unreadOnly, _ := strconv.ParseBool(r.URL.Query().Get("unread")); unreadOnly {
		ns = s.deps.Center.Unread()
	} else {
		ns = s.deps.Center.List()
	}

	now := s.nowFunc()
	unread := s.deps.Center.UnreadCount()
	out := notificationsResponse{
		Notifications: make([]notificationView, len(ns)),
		Unread:        unread,
		Badge:         notify.BadgeCount(unread),
		Label:         notify.UnreadLabel(unread),
	}
	for i, n := range ns {
		out.Notifications[i] = notificationView{Notification: n, Ago: notify.Ago(n.CreatedAt, now)}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, _ *http.Request) {
	unread := s.deps.Center.UnreadCount()
	writeJSON(w, http.StatusOK, map[string]any{
		"unread": unread,
		"badge":  notify.BadgeCount(unread),
	})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	changed, err := s.deps.Center.MarkRead(id)
	if errors.Is(err, notify.ErrUnknownNotification) {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "mark read failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"changed": changed,
		"unread":  s.deps.Center.UnreadCount(),
	})
}

func (s *Server) handleReadAll(w http.ResponseWriter, _ *http.Request) {
	changed := s.deps.Center.MarkAllRead()
	writeJSON(w, http.StatusOK, map[string]any{
		"changed": changed,
		"unread":  s.deps.Center.UnreadCount(),
	})
}

// handleEvaluate runs one lifecycle check immediately.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if s.deps.Checker == nil {
		writeError(w, http.StatusServiceUnavailable, "vip checker not configured")
		return
	}
	added, err := s.deps.Checker.Check(r.Context())
	if err != nil {
		zap.L().Error("server: vip evaluate failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "provider directory unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"added":  added,
		"unread": s.deps.Center.UnreadCount(),
	})
}
