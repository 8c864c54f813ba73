package main

import (
	"log/slog"

	"fwingest/internal/config"
	"fwingest/internal/metrics"
	"fwingest/internal/metrics/datadog"
	"fwingest/internal/metrics/prompush"
)

// setupMetrics installs the configured metrics backend and returns the flush
// to defer. A backend that fails to initialize leaves metrics disabled.
func setupMetrics(log *slog.Logger, cfg config.Config) (flush func()) {
	noop := func() {}

	var (
		b   metrics.Backend
		err error
	)
	switch cfg.Metrics.Backend {
	case "", "none":
		log.Debug("metrics disabled")
		return noop
	case "prometheus":
		b, err = prompush.NewBackend(cfg.Job, cfg.Metrics.PushgatewayURL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       cfg.Metrics.DatadogAddr,
			Namespace:  "fwingest.",
			GlobalTags: []string{"job:" + cfg.Job},
		})
	default:
		log.Warn("unknown metrics backend; metrics disabled", "backend", cfg.Metrics.Backend)
		return noop
	}
	if err != nil {
		log.Warn("metrics backend init failed; metrics disabled", "backend", cfg.Metrics.Backend, "err", err)
		return noop
	}

	log.Info("metrics enabled", "backend", cfg.Metrics.Backend, "job", cfg.Job)
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warn("metrics flush failed", "backend", cfg.Metrics.Backend, "err", err)
		}
	}
}
