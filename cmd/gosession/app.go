package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/password"
	"github.com/MrEthical07/goSession/provider"
	"github.com/MrEthical07/goSession/provider/local"
	"github.com/MrEthical07/goSession/provider/rest"
	"github.com/MrEthical07/goSession/tokencache"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// app owns the controller and everything it depends on.
type app struct {
	cfg        Config
	controller *goSession.Controller
	logger     *slog.Logger
	closers    []func() error
}

type appOptions struct {
	// memory runs the local provider on an in-process Redis.
	memory      bool
	auditWriter io.Writer
}

func newApp(cfg Config, logger *slog.Logger, opts appOptions) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	cache, err := a.openCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	var p provider.Client
	switch cfg.Provider {
	case "rest":
		p, err = rest.New(rest.Config{
			Endpoint:          cfg.REST.Endpoint,
			APIKey:            cfg.REST.APIKey,
			Cache:             cache,
			RequestsPerSecond: cfg.REST.RequestsPerSecond,
			Burst:             cfg.REST.Burst,
			Logger:            logger,
		})
	default:
		p, err = a.newLocal(cfg, cache, logger, opts.memory)
	}
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	tp, shutdown, err := setupTracing(context.Background(), cfg.Telemetry)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		return shutdown(context.Background())
	})

	sessionCfg := goSession.DefaultConfig()
	sessionCfg.Controller.QueueSize = cfg.Controller.QueueSize
	sessionCfg.Controller.CallTimeout = cfg.Controller.CallTimeout
	sessionCfg.Validation.TrimEmail = true
	sessionCfg.Audit.Enabled = cfg.Audit.Enabled

	for _, w := range sessionCfg.Lint().BySeverity(goSession.LintWarn) {
		logger.Warn("session config", "code", w.Code, "severity", w.Severity.String(), "message", w.Message)
	}

	b := goSession.New().
		WithConfig(sessionCfg).
		WithProvider(p).
		WithLogger(logger).
		WithTracerProvider(tp)
	if cfg.Audit.Enabled {
		b = b.WithAuditSink(newAuditSink(cfg.Audit.Format, opts.auditWriter, logger))
	}

	c, err := b.Build()
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.controller = c
	return a, nil
}

func newAuditSink(format string, w io.Writer, logger *slog.Logger) goSession.AuditSink {
	if w == nil {
		w = os.Stderr
	}
	if format == "slog" {
		return goSession.NewSlogSink(logger)
	}
	return goSession.NewJSONWriterSink(w)
}

func (a *app) openCache(cfg CacheConfig) (tokencache.Cache, error) {
	switch cfg.Kind {
	case "memory":
		return tokencache.NewMemory(), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
		db, err := tokencache.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		return db, nil
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
		return tokencache.NewFile(cfg.Path)
	}
}

func (a *app) newLocal(cfg Config, cache tokencache.Cache, logger *slog.Logger, memory bool) (provider.Client, error) {
	addr := cfg.Redis.Addr
	secret := cfg.Local.TokenSecret

	if memory {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start in-memory redis: %w", err)
		}
		a.closers = append(a.closers, func() error {
			mr.Close()
			return nil
		})
		addr = mr.Addr()
		if secret == "" {
			secret, err = randomSecret()
			if err != nil {
				return nil, err
			}
		}
	}
	if secret == "" {
		return nil, errors.New("local provider requires local.token_secret")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	a.closers = append(a.closers, rdb.Close)

	pw := password.DefaultConfig()
	pw.MinPasswordBytes = cfg.Local.MinPasswordBytes

	return local.New(local.Options{
		Redis:    rdb,
		Prefix:   cfg.Redis.Prefix,
		Password: pw,
		Rate: rate.Config{
			MaxSignInFailures:      cfg.Local.MaxSignInFailures,
			SignInCooldownDuration: cfg.Local.SignInCooldown,
			MaxSignUpAttempts:      cfg.Local.MaxSignUpAttempts,
			SignUpCooldownDuration: cfg.Local.SignUpCooldown,
		},
		Tokens: jwt.Config{
			TTL:           cfg.Local.TokenTTL,
			SigningMethod: jwt.MethodHS256,
			PrivateKey:    []byte(secret),
			Issuer:        cfg.Local.Issuer,
		},
		Cache:  cache,
		Logger: logger,
	})
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// refresh reconciles the controller with the provider's cached session.
func (a *app) refresh(ctx context.Context) error {
	return a.controller.RefreshFromProvider(ctx)
}

// Close stops the controller and releases storage in reverse order.
func (a *app) Close() error {
	if a.controller != nil {
		a.controller.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
