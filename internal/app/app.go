// Package app wires configuration, storage, services and the HTTP
// server into one runnable unit.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"fairlead/internal/retention"
	"fairlead/pkg/api"
	"fairlead/pkg/config"
	"fairlead/pkg/logger"
	"fairlead/pkg/models"
	"fairlead/pkg/notify"
	"fairlead/pkg/rotation"
	"fairlead/pkg/security"
	"fairlead/pkg/store"
	"fairlead/pkg/submit"
	"fairlead/pkg/timeline"
	"fairlead/pkg/validation"
)

// App is the assembled service.
type App struct {
	cfg     *config.Config
	addr    string
	dbPath  string
	service *submit.Service
	handler http.Handler
}

// New validates the config, opens the store and wires every component.
// The caller owns store.Close via Shutdown.
func New(cfg *config.Config, addr, dbPath string) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if dbPath == "" {
		return nil, fmt.Errorf("no database path configured")
	}

	kek, err := cfg.MasterKey()
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}

	vr := validation.Rules{MaxLen: map[string]int{}, Enums: map[string][]string{}}
	for _, ml := range cfg.Validation.MaxLen {
		vr.MaxLen[ml.Path] = ml.Max
	}
	for _, e := range cfg.Validation.Enums {
		vr.Enums[e.Path] = append([]string{}, e.Values...)
	}
	validation.SetRules(vr)

	if err := store.Open(dbPath); err != nil {
		return nil, fmt.Errorf("open store at %s: %w", dbPath, err)
	}

	transports := map[models.Channel]notify.Transport{}
	for ch, url := range cfg.Notify.Webhooks {
		if url == "" {
			continue
		}
		transports[models.Channel(ch)] = notify.NewWebhookTransport(url, cfg.Notify.Timeout.Duration())
	}
	dispatcher := notify.NewDispatcher(transports, notify.Options{
		RPS:     cfg.Notify.RPS,
		Burst:   cfg.Notify.Burst,
		Timeout: cfg.Notify.Timeout.Duration(),
	})

	recorder := timeline.NewRecorder()
	service, err := submit.New(kek, recorder, dispatcher)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	router := api.Router(api.Deps{
		Service:        service,
		Recorder:       recorder,
		RotationLimits: rotation.Limits{MaxDurationDays: cfg.Rotation.MaxDurationDays},
		MaxPayload:     cfg.Limits.MaxPayload.Int64(),
	})

	secCfg := security.SecConfig{
		AllowedOrigins: append([]string{}, cfg.Security.CORS.AllowedOrigins...),
		RPS:            cfg.Security.RateLimit.RPS,
		Burst:          cfg.Security.RateLimit.Burst,
		IPWhitelist:    append([]string{}, cfg.Security.IPWhitelist...),
		BackendKeys:    keySet(cfg.Security.APIKeys.Backend),
		FrontendKeys:   keySet(cfg.Security.APIKeys.Frontend),
		AdminKeys:      keySet(cfg.Security.APIKeys.Admin),
	}

	return &App{
		cfg:     cfg,
		addr:    addr,
		dbPath:  dbPath,
		service: service,
		handler: security.AuthenticateRequestMiddleware(secCfg)(router),
	}, nil
}

func keySet(keys []string) map[string]struct{} {
	out := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		out[k] = struct{}{}
	}
	return out
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
// The retention scheduler runs for the same lifetime.
func (a *App) Run(ctx context.Context) error {
	stopRetention, err := retention.Start(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("start retention: %w", err)
	}
	defer stopRetention()

	srv := &http.Server{
		Addr:              a.addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		cert := a.cfg.Server.TLS.CertFile
		key := a.cfg.Server.TLS.KeyFile
		logger.Info("http_listening", "addr", a.addr, "tls", cert != "" && key != "")
		if cert != "" && key != "" {
			errCh <- srv.ListenAndServeTLS(cert, key)
		} else {
			errCh <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			logger.Error("http_shutdown_error", "error", err)
		}
	}

	if err := store.Close(); err != nil {
		logger.Error("store_close_error", "error", err)
		return err
	}
	logger.Info("shutdown_complete")
	return nil
}
