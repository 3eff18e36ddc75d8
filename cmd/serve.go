package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/barberfinder/internal/config"
	"github.com/sells-group/barberfinder/internal/finder"
	"github.com/sells-group/barberfinder/internal/geo"
	"github.com/sells-group/barberfinder/internal/geolocate"
	"github.com/sells-group/barberfinder/internal/mapsync"
	"github.com/sells-group/barberfinder/internal/mapsync/memsurface"
	"github.com/sells-group/barberfinder/internal/notify"
	"github.com/sells-group/barberfinder/internal/server"
	"github.com/sells-group/barberfinder/internal/vip"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the barbershop finder API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		// The map never blocks startup; a failed load leaves it degraded.
		maps, err := mapsync.New(ctx,
			&memsurface.Loader{RequireKey: cfg.Maps.RequireKey},
			mapsync.Credentials{APIKey: cfg.Maps.APIKey},
			mapOptions(cfg.Maps),
		)
		if err != nil {
			zap.L().Warn("serving without map", zap.Error(err))
		}
		defer maps.Close() //nolint:errcheck

		var geoip *geolocate.GeoIP
		if cfg.Geolocation.GeoIPDBPath != "" {
			geoip, err = geolocate.OpenGeoIP(cfg.Geolocation.GeoIPDBPath)
			if err != nil {
				zap.L().Warn("geoip disabled", zap.Error(err))
				geoip = nil
			} else {
				defer geoip.Close() //nolint:errcheck
			}
		}

		// Searches and the periodic checker share one tracker so a transition
		// is announced once.
		tracker := env.NewTracker()
		svc := finder.NewService(env.Directory, env.Engine,
			finder.WithMap(maps),
			finder.WithLifecycle(tracker, env.Center),
			finder.WithLocateOptions(geolocate.Options{
				Timeout:      cfg.Geolocation.Timeout(),
				HighAccuracy: cfg.Geolocation.HighAccuracy,
			}),
		)

		checker := vip.NewChecker(env.Directory, tracker, env.Center, cfg.VIP.CheckInterval())
		go checker.Run(ctx)

		if cfg.Notify.WebhookURL != "" {
			hook := notify.NewWebhook(notify.WebhookConfig{
				URL:        cfg.Notify.WebhookURL,
				RatePerSec: cfg.Notify.WebhookRate,
				Burst:      cfg.Notify.WebhookBurst,
				Attempts:   cfg.Notify.WebhookTries,
			})
			ch, cancel := env.Center.Subscribe(64)
			defer cancel()
			go hook.Run(ctx, ch)
			zap.L().Info("notification webhook enabled")
		}

		deps := server.Deps{Finder: svc, Center: env.Center, Checker: checker}
		if geoip != nil {
			deps.GeoIP = geoip
		}
		api := server.New(server.Config{
			CORSOrigins:  cfg.Server.CORSOrigins,
			RateLimit:    cfg.Server.RateLimit,
			RateBurst:    cfg.Server.RateBurst,
			RealIPHeader: cfg.Server.RealIPHeader,
		}, deps)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			return eris.Wrap(err, "server listen")
		}
		srv := &http.Server{
			Handler:           api.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		zap.L().Info("starting server", zap.Int("port", port))
		return runServer(ctx, srv, ln, cfg.Server.ShutdownTimeout())
	},
}

// mapOptions is the initial map view before the first fit.
func mapOptions(mc config.MapsConfig) mapsync.Options {
	return mapsync.Options{Center: geo.DefaultCenter, Zoom: mc.Zoom}
}

// runServer serves on ln until ctx is done, then shuts down gracefully. It
// returns only after in-flight requests drain or the timeout passes.
func runServer(ctx context.Context, srv *http.Server, ln net.Listener, timeout time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("server shutdown", zap.Error(err))
		}
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cancel()
		<-done
		return eris.Wrap(err, "server serve")
	}
	<-done
	return nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
