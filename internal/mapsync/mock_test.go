package mapsync

import (
	"context"
	"errors"
	"sync"

	"github.com/sells-group/barberfinder/internal/geo"
	"github.com/sells-group/barberfinder/internal/model"
)

type fakeMarker struct {
	pos   geo.Coordinates
	style model.MarkerStyle
}

// fakeSurface records every call made by the controller.
type fakeSurface struct {
	mu      sync.Mutex
	next    int
	live    map[int]*fakeMarker
	created int
	destroy int
	styled  []model.MarkerStyle
	fits    [][]geo.Coordinates
	infos   []InfoContent

	failDestroy map[int]bool
	failCreate  bool
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{live: make(map[int]*fakeMarker), failDestroy: make(map[int]bool)}
}

func (f *fakeSurface) CreateMarker(pos geo.Coordinates, style model.MarkerStyle) (MarkerHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return nil, errors.New("create refused")
	}
	f.next++
	f.live[f.next] = &fakeMarker{pos: pos, style: style}
	f.created++
	return f.next, nil
}

func (f *fakeSurface) DestroyMarker(h MarkerHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, _ := h.(int)
	f.destroy++
	if f.failDestroy[id] {
		delete(f.live, id)
		return ErrInvalidHandle
	}
	if _, ok := f.live[id]; !ok {
		return ErrInvalidHandle
	}
	delete(f.live, id)
	return nil
}

func (f *fakeSurface) SetMarkerStyle(h MarkerHandle, style model.MarkerStyle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.live[h.(int)]
	if !ok {
		return ErrInvalidHandle
	}
	m.style = style
	f.styled = append(f.styled, style)
	return nil
}

func (f *fakeSurface) FitBounds(positions []geo.Coordinates) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fits = append(f.fits, append([]geo.Coordinates(nil), positions...))
	return nil
}

func (f *fakeSurface) ShowInfo(h MarkerHandle, content InfoContent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.live[h.(int)]; !ok {
		return ErrInvalidHandle
	}
	f.infos = append(f.infos, content)
	return nil
}

// styleAt returns the rendered style at pos, or "".
func (f *fakeSurface) styleAt(pos geo.Coordinates) model.MarkerStyle {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.live {
		if m.pos == pos && m.style != model.MarkerUser {
			return m.style
		}
	}
	return ""
}

func loaderFor(s Surface) Loader {
	return LoaderFunc(func(context.Context, Credentials, Options) (Surface, error) {
		return s, nil
	})
}
