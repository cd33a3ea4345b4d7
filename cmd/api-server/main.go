package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hackgods/clinic-appointment-assistant/internal/api"
	"github.com/hackgods/clinic-appointment-assistant/internal/app"
	"github.com/hackgods/clinic-appointment-assistant/internal/config"
	"github.com/hackgods/clinic-appointment-assistant/internal/logging"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel).With("service", "api-server")
	logger.Info("api-server starting up", "env", cfg.Env, "http_port", cfg.HTTPPort, "store", cfg.StoreBackend)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := app.New(rootCtx, cfg, logger, reg)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	router := api.NewRouter(api.RouterConfig{
		Chat:     a.Engine,
		Sessions: a.Sessions,
		Booking:  a.Booking,
		Patients: a.Repo,
		Reports:  a.Reports,
		Health:   api.NewHealthHandler(a.Pool, a.Redis, cfg.Env, version),
		Metrics:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Logger:   logger,
		Location: cfg.Timezone,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Chat turns may wait on the language model and e-mail delivery.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
