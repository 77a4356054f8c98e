package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/handlers"
	"sales-dashboard/internal/ingest"
	"sales-dashboard/internal/middleware"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/server"
	"sales-dashboard/internal/services"
	"sales-dashboard/internal/ui/templates"
)

const (
	renderTimeout   = 10 * time.Second
	preloadTimeout  = 2 * time.Minute
	limiterSweepGap = time.Minute
)

// salesPage renders the retail dashboard with filter options taken from
// whatever dataset is loaded at request time.
func salesPage(sales *services.Sales) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
		defer cancel()

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		if err := templates.SalesDashboard(sales.Addresses(), sales.Months()).Render(ctx, w); err != nil {
			http.Error(w, "render error", http.StatusInternalServerError)
		}
	}
}

func assurancePage(assurance *services.Assurance) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
		defer cancel()

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		if err := templates.AssuranceDashboard(assurance.Options()).Render(ctx, w); err != nil {
			http.Error(w, "render error", http.StatusInternalServerError)
		}
	}
}

// preload reads the configured startup datasets. A missing or broken file
// is logged and the dashboard starts empty.
func preload(ctx context.Context, logger *slog.Logger, cfg config.DataConfig, sales *services.Sales, assurance *services.Assurance) {
	ctx, cancel := context.WithTimeout(ctx, preloadTimeout)
	defer cancel()

	if cfg.SalesFile != "" {
		start := time.Now()
		summary, err := sales.LoadFromFile(ctx, cfg.SalesFile)
		if err != nil {
			logger.Error("failed to preload sales data", "file", cfg.SalesFile, "error", err)
		} else {
			logger.Info("sales data loaded", "rows_read", summary.RowsRead, "rows_kept", summary.RowsKept, "files", len(summary.Files), "duration", time.Since(start))
		}
	}

	if cfg.AssuranceFile != "" {
		start := time.Now()
		summary, err := assurance.LoadFromFile(ctx, cfg.AssuranceFile)
		if err != nil {
			logger.Error("failed to preload assurance data", "file", cfg.AssuranceFile, "error", err)
		} else {
			logger.Info("assurance data loaded", "rows_read", summary.RowsRead, "rows_kept", summary.RowsKept, "files", len(summary.Files), "duration", time.Since(start))
		}
	}
}

func newDependencies(cfg *config.Config, logger *slog.Logger) (handlers.Dependencies, error) {
	enc, err := ingest.Encoding(cfg.Data.AssuranceEncoding)
	if err != nil {
		return handlers.Dependencies{}, err
	}

	return handlers.Dependencies{
		Sales:     services.NewSales(cfg.Segmentation.Options()),
		Assurance: services.NewAssurance(enc),
		Segments: handlers.SegmentDefaults{
			DefaultK: cfg.Segmentation.DefaultK,
			MinK:     cfg.Segmentation.MinK,
			MaxK:     cfg.Segmentation.MaxK,
		},
		UploadMaxBytes: cfg.Data.UploadMaxBytes,
		Logger:         logger,
	}, nil
}

func sweepLimiter(ctx context.Context, limiter *middleware.RateLimiter, logger *slog.Logger) {
	ticker := time.NewTicker(limiterSweepGap)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := limiter.Sweep(); n > 0 {
				logger.Debug("rate limiter swept", "removed", n)
			}
		}
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"addr", cfg.Address(),
		"segmentation", cfg.Segmentation,
	)

	deps, err := newDependencies(cfg, logger)
	if err != nil {
		logger.Error("failed to build services", "error", err)
		os.Exit(1)
	}

	preload(context.Background(), logger, cfg.Data, deps.Sales, deps.Assurance)

	templateHandlers := &server.TemplateHandlers{
		Sales:     salesPage(deps.Sales),
		Assurance: assurancePage(deps.Assurance),
	}

	srv := server.NewServer(deps, templateHandlers)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
		middleware.SameOrigin(cfg.Security, logger),
	)

	handler := middlewareChain(srv)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	go sweepLimiter(gracefulServer.Context(), rateLimiter, logger)

	gracefulServer.RegisterShutdownHook("datasets", func(ctx context.Context) error {
		logger.Info("releasing datasets",
			"sales", deps.Sales.Stats(),
			"assurance", deps.Assurance.Stats(),
		)
		return nil
	})

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
