package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/barberfinder/internal/config"
	"github.com/sells-group/barberfinder/internal/directory"
	"github.com/sells-group/barberfinder/internal/notify"
	"github.com/sells-group/barberfinder/internal/ranking"
	"github.com/sells-group/barberfinder/internal/resilience"
	"github.com/sells-group/barberfinder/internal/store"
	"github.com/sells-group/barberfinder/internal/vip"
)

// appEnv holds the components shared by the serve, rank, vip and
// notifications commands.
type appEnv struct {
	Directory directory.Directory
	// Providers is the SQL store behind the directory, nil for yaml and
	// elastic.
	Providers store.Store
	// Elastic is set for the elastic driver.
	Elastic *directory.ElasticDirectory
	// Notes persists notifications, nil for the memory driver.
	Notes  store.Store
	Center *notify.Center
	Engine *ranking.Engine
	Policy vip.Policy

	closers []func() error
}

// Close releases every store and client opened by initApp.
func (e *appEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			zap.L().Warn("close failed", zap.Error(err))
		}
	}
	e.closers = nil
}

// NewTracker returns a lifecycle tracker using the configured policy,
// seeded from the notifications already in the center.
func (e *appEnv) NewTracker() *vip.Tracker {
	t := vip.NewTracker(e.Policy)
	if n := t.Restore(e.Center.List()); n > 0 {
		zap.L().Debug("vip tracker restored", zap.Int("providers", n))
	}
	return t
}

// initApp validates cfg for mode, opens the directory and notification
// store, and hydrates the notification center. Callers should defer
// env.Close().
func initApp(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	env := &appEnv{
		Engine: ranking.NewEngine(ranking.Options{
			ExcludeBlocked: cfg.Ranking.ExcludeBlocked,
			FoldDiacritics: cfg.Ranking.FoldDiacritics,
		}),
		Policy: vip.Policy{
			ExpiringSoonDays:      cfg.VIP.ExpiringSoonDays,
			ExpiredWhenDowngraded: cfg.VIP.ExpiredWhenDowngraded,
		},
	}

	if err := env.initDirectory(ctx, cfg.Directory); err != nil {
		env.Close()
		return nil, err
	}

	if err := env.initNotifications(ctx); err != nil {
		env.Close()
		return nil, err
	}

	return env, nil
}

func (e *appEnv) initDirectory(ctx context.Context, dc config.DirectoryConfig) error {
	var dir directory.Directory

	switch dc.Driver {
	case "yaml":
		dir = directory.YAMLDirectory{Path: dc.Path}
	case "sqlite", "postgres":
		st, err := openStore(ctx, dc.Driver, dc.Path, dc.DatabaseURL)
		if err != nil {
			return err
		}
		e.closers = append(e.closers, st.Close)
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate provider store")
		}
		e.Providers = st
		dir = directory.StoreDirectory{Store: st}
	case "elastic":
		es, err := directory.NewElastic(dc.ElasticURL, dc.ElasticIndex)
		if err != nil {
			return err
		}
		e.Elastic = es
		dir = es
	default:
		return eris.Errorf("unsupported directory driver: %s", dc.Driver)
	}

	if dc.Driver == "postgres" || dc.Driver == "elastic" {
		dir = directory.WithBreaker(dir, dc.Driver, resilience.BreakerConfig{
			Threshold:    dc.BreakerThreshold,
			ResetTimeout: dc.BreakerReset(),
		})
	}

	if rdb := directory.OpenRedis(dc.RedisAddr, dc.RedisPassword, dc.RedisDB); rdb != nil {
		e.closers = append(e.closers, rdb.Close)
		dir = directory.NewCached(dir, rdb, dc.CacheTTL())
		zap.L().Info("directory cache enabled", zap.String("addr", dc.RedisAddr), zap.Duration("ttl", dc.CacheTTL()))
	}

	e.Directory = dir
	zap.L().Debug("directory ready", zap.String("driver", dc.Driver))
	return nil
}

func (e *appEnv) initNotifications(ctx context.Context) error {
	nc := cfg.Notify
	var opts []notify.Option

	switch nc.Driver {
	case "memory":
	case "sqlite", "postgres":
		st, err := e.notificationStore(ctx, nc.Driver)
		if err != nil {
			return err
		}
		e.Notes = st
		opts = append(opts, notify.WithStore(st))
	default:
		return eris.Errorf("unsupported notify driver: %s", nc.Driver)
	}

	e.Center = notify.NewCenter(opts...)
	n, err := e.Center.Load(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		zap.L().Info("notifications loaded", zap.Int("count", n), zap.Int("unread", e.Center.UnreadCount()))
	}
	return nil
}

// notificationStore reuses the provider store when both point at the same
// database.
func (e *appEnv) notificationStore(ctx context.Context, driver string) (store.Store, error) {
	path, url := cfg.Notify.Path, cfg.NotifyDatabaseURL()

	if e.Providers != nil && driver == cfg.Directory.Driver {
		if (driver == "sqlite" && path == cfg.Directory.Path) || (driver == "postgres" && url == cfg.Directory.DatabaseURL) {
			return e.Providers, nil
		}
	}

	st, err := openStore(ctx, driver, path, url)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, st.Close)
	if err := st.Migrate(ctx); err != nil {
		return nil, eris.Wrap(err, "migrate notification store")
	}
	return st, nil
}

func openStore(ctx context.Context, driver, path, url string) (store.Store, error) {
	switch driver {
	case "sqlite":
		if path == "" {
			path = "barberfinder.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, url, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", driver)
	}
}
