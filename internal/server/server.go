// Package server exposes the finder, map and notification center over HTTP.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/barberfinder/internal/finder"
	"github.com/sells-group/barberfinder/internal/geolocate"
	"github.com/sells-group/barberfinder/internal/notify"
	"github.com/sells-group/barberfinder/internal/vip"
)

// Config tunes the HTTP layer.
type Config struct {
	CORSOrigins []string
	// RateLimit is requests per second per client. Zero disables limiting.
	RateLimit float64
	RateBurst int
	// RealIPHeader names the proxy header carrying the client IP, e.g.
	// X-Forwarded-For. Empty means the socket peer address is used.
	RealIPHeader string
}

// IPLocator resolves a client address to a Locator. *geolocate.GeoIP
// satisfies it.
type IPLocator interface {
	ForIP(ip string) geolocate.Locator
}

// Deps are the components the handlers drive. Finder and Center are
// required; Checker and GeoIP are optional.
type Deps struct {
	Finder  *finder.Service
	Center  *notify.Center
	Checker *vip.Checker
	GeoIP   IPLocator
}

// Server holds the router and its dependencies.
type Server struct {
	cfg     Config
	deps    Deps
	limiter *clientLimiter
	nowFunc func() time.Time
	router  chi.Router
}

// New builds the router.
func New(cfg Config, deps Deps) *Server {
	s := &Server{
		cfg:     cfg,
		deps:    deps,
		nowFunc: time.Now,
	}
	if cfg.RateLimit > 0 {
		s.limiter = newClientLimiter(cfg.RateLimit, cfg.RateBurst)
	}
	s.router = s.routes()
	return s
}

func (s *Server) clientIP(r *http.Request) string {
	return clientIP(r, s.cfg.RealIPHeader)
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Middleware(s.clientIP))
		}

		r.Get("/providers", s.handleProviders)

		r.Route("/map", func(r chi.Router) {
			r.Get("/markers", s.handleMarkers)
			r.Post("/select", s.handleSelect)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", s.handleNotifications)
			r.Get("/unread-count", s.handleUnreadCount)
			r.Post("/read-all", s.handleReadAll)
			r.Post("/{id}/read", s.handleMarkRead)
		})

		r.Post("/vip/evaluate", s.handleEvaluate)
	})

	return r
}

// requestLogger logs one line per request through the global logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("component", "server"),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
