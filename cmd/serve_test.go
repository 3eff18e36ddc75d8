package main

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/barberfinder/internal/config"
	"github.com/sells-group/barberfinder/internal/geo"
)

func TestMapOptions(t *testing.T) {
	opts := mapOptions(config.MapsConfig{Zoom: 12})
	assert.Equal(t, geo.DefaultCenter, opts.Center)
	assert.Equal(t, 12, opts.Zoom)
}

func TestRunServer_WaitsForInFlightRequests(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	var finished atomic.Bool
	srv := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			close(started)
			time.Sleep(200 * time.Millisecond)
			finished.Store(true)
			w.WriteHeader(http.StatusNoContent)
		}),
		ReadHeaderTimeout: time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- runServer(ctx, srv, ln, 5*time.Second) }()

	respCh := make(chan int, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/")
		if err != nil {
			respCh <- 0
			return
		}
		resp.Body.Close() //nolint:errcheck
		respCh <- resp.StatusCode
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("request never reached the handler")
	}
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
		assert.True(t, finished.Load(), "runServer returned before the handler finished")
	case <-time.After(5 * time.Second):
		t.Fatal("runServer did not return")
	}
	assert.Equal(t, http.StatusNoContent, <-respCh)
}

func TestRunServer_ServeError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	srv := &http.Server{ReadHeaderTimeout: time.Second}
	err = runServer(context.Background(), srv, ln, time.Second)
	assert.ErrorContains(t, err, "server serve")
}
