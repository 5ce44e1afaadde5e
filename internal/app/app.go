// Package app assembles a site.Service from config.Config: log backend,
// hook pipeline, persistence provider, generation store, HTTP client and
// query cache.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdslog "log/slog"
	"os"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/querycache"
	"github.com/unkn0wn-root/querycache/genstore"
	asynchook "github.com/unkn0wn-root/querycache/hooks/async"
	"github.com/unkn0wn-root/querycache/internal/config"
	qlogrus "github.com/unkn0wn-root/querycache/log/logrus"
	qslog "github.com/unkn0wn-root/querycache/log/slog"
	qzap "github.com/unkn0wn-root/querycache/log/zap"
	"github.com/unkn0wn-root/querycache/provider"
	"github.com/unkn0wn-root/querycache/provider/bigcache"
	"github.com/unkn0wn-root/querycache/provider/redis"
	"github.com/unkn0wn-root/querycache/provider/ristretto"
	"github.com/unkn0wn-root/querycache/resource"
	"github.com/unkn0wn-root/querycache/site"
	"github.com/unkn0wn-root/querycache/sloghooks"
)

type App struct {
	Site  *site.Service
	Cache *querycache.Client
	Log   querycache.Logger

	closers []func(context.Context) error
}

// New wires every component. Log output goes to out (os.Stderr if nil).
// On error, anything already opened is closed.
func New(ctx context.Context, cfg config.Config, out io.Writer) (_ *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if out == nil {
		out = os.Stderr
	}
	// Every backend shares one lock on out.
	ws := zapcore.Lock(zapcore.AddSync(out))

	a := &App{}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	slogger := newSlog(ws, cfg.LogLevel)
	if a.Log, err = a.newLogger(cfg, ws, slogger); err != nil {
		return nil, err
	}

	hooks := asynchook.New(sloghooks.New(slogger, sloghooks.Options{
		FetchEvery:    cfg.HookSampleN,
		SelfHealEvery: cfg.HookSampleN,
	}), 1, cfg.HookQueue)
	a.onClose(func(context.Context) error { hooks.Close(); return nil })

	var rdb goredis.UniversalClient
	if cfg.Provider == "redis" || cfg.GenStore == "redis" {
		if rdb, err = dialRedis(ctx, cfg.RedisURL); err != nil {
			return nil, err
		}
		a.onClose(func(context.Context) error { return rdb.Close() })
	}

	p, err := newProvider(ctx, cfg, rdb)
	if err != nil {
		return nil, err
	}

	var gs genstore.GenStore
	if cfg.GenStore == "redis" {
		gs = genstore.NewRedisGenStoreWithTTL(rdb, cfg.Namespace, cfg.GenTTL)
	}

	rc := resource.NewRestyClient(resource.ClientConfig{
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.HTTPTimeout,
		UserAgent: cfg.UserAgent,
	})
	a.onClose(func(context.Context) error { return rc.Close() })

	qc, err := querycache.New(querycache.Options{
		Namespace:         cfg.Namespace,
		Logger:            a.Log,
		Hooks:             hooks,
		GenStore:          gs,
		Provider:          p,
		PersistTTL:        cfg.PersistTTL,
		StaleTime:         cfg.StaleTime,
		RetainTime:        cfg.RetainTime,
		FetchTimeout:      cfg.FetchTimeout,
		RetryMax:          cfg.RetryMax,
		RetryInitialDelay: cfg.RetryDelay,
		RetryIf:           resource.IsRetryable,
	})
	if err != nil {
		if p != nil {
			_ = p.Close(ctx)
		}
		return nil, err
	}
	a.Cache = qc
	// Runs before the hook queue drains and the clients close.
	a.closers = append([]func(context.Context) error{qc.Close}, a.closers...)

	codecName := cfg.Codec
	if p == nil {
		codecName = ""
	}
	if a.Site, err = site.New(qc, rc, site.Options{Codec: codecName, MaxDecode: cfg.MaxDecode}); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) onClose(f func(context.Context) error) { a.closers = append(a.closers, f) }

// Close releases resources in registration order and joins the errors.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for _, f := range a.closers {
		if err := f(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) newLogger(cfg config.Config, ws zapcore.WriteSyncer, s *stdslog.Logger) (querycache.Logger, error) {
	switch cfg.Logger {
	case "zap":
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			return nil, fmt.Errorf("zap level: %w", err)
		}
		enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		z := zap.New(zapcore.NewCore(enc, ws, lvl))
		a.onClose(func(context.Context) error { _ = z.Sync(); return nil })
		return qzap.Logger{L: z}, nil
	case "logrus":
		lvl, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("logrus level: %w", err)
		}
		l := logrus.New()
		l.SetOutput(ws)
		l.SetLevel(lvl)
		l.SetFormatter(&logrus.JSONFormatter{})
		return qlogrus.Logger{E: logrus.NewEntry(l)}, nil
	default:
		return qslog.Logger{L: s}, nil
	}
}

func newSlog(out io.Writer, level string) *stdslog.Logger {
	var lvl stdslog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = stdslog.LevelInfo
	}
	return stdslog.New(stdslog.NewJSONHandler(out, &stdslog.HandlerOptions{Level: lvl}))
}

func dialRedis(ctx context.Context, url string) (goredis.UniversalClient, error) {
	opt, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	c := goredis.NewClient(opt)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return c, nil
}

func newProvider(ctx context.Context, cfg config.Config, rdb goredis.UniversalClient) (provider.Provider, error) {
	switch cfg.Provider {
	case "ristretto":
		return ristretto.New(ristretto.DefaultConfig())
	case "bigcache":
		return bigcache.New(ctx, bigcache.Config{LifeWindow: cfg.PersistTTL})
	case "redis":
		// The shared client is closed by App.
		return redis.New(redis.Config{Client: rdb})
	default:
		return nil, nil
	}
}
