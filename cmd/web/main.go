package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"cn-dashboard/internal/config"
	"cn-dashboard/internal/middleware"
	"cn-dashboard/internal/observability"
	"cn-dashboard/internal/reportapi"
	"cn-dashboard/internal/server"
	"cn-dashboard/internal/services"
	"cn-dashboard/internal/ui/templates"
)

const renderTimeout = 10 * time.Second

func dashboardPage(dashboard *services.Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
		defer cancel()

		state := dashboard.State()
		views, err := dashboard.ViewsFor(ctx, state)
		if err != nil {
			http.Error(w, "render error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.Dashboard(state, views, dashboard.Formatter()).Render(ctx, w); err != nil {
			http.Error(w, "render error", http.StatusInternalServerError)
		}
	}
}

// newFetcher picks the report source: a CSV export when one is configured,
// the upstream API otherwise. With the cache enabled the source is wrapped
// in a Redis read-through cache; an unreachable Redis only disables it.
func newFetcher(cfg *config.Config, logger *slog.Logger) (services.Fetcher, *redis.Client) {
	var fetcher reportapi.Fetcher
	if cfg.ReportAPI.CSVFile != "" {
		logger.Info("serving reports from csv export", "path", cfg.ReportAPI.CSVFile)
		fetcher = reportapi.NewCSVSource(cfg.ReportAPI.CSVFile, logger)
	} else {
		fetcher = reportapi.NewClient(reportapi.Config{
			BaseURL:  cfg.ReportAPI.BaseURL,
			Username: cfg.ReportAPI.Username,
			Password: cfg.ReportAPI.Password,
			Token:    cfg.ReportAPI.Token,
			Timeout:  cfg.ReportAPI.Timeout,
		}, logger)
	}

	if !cfg.Cache.Enabled {
		return fetcher, nil
	}

	rdb, err := reportapi.NewRedisClient(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
	if err != nil {
		logger.Warn("report cache disabled", "addr", cfg.Cache.RedisAddr, "error", err)
		return fetcher, nil
	}
	logger.Info("report cache enabled", "addr", cfg.Cache.RedisAddr, "ttl", cfg.Cache.TTL)
	return reportapi.NewCachedFetcher(fetcher, rdb, cfg.Cache.TTL, logger), rdb
}

func newHandler(cfg *config.Config, dashboard *services.Dashboard, logger *slog.Logger) http.Handler {
	templateHandlers := &server.TemplateHandlers{
		Dashboard: dashboardPage(dashboard),
	}
	srv := server.NewServer(dashboard, logger, templateHandlers)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)

	return middlewareChain(srv)
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
		"locale", cfg.Dashboard.Locale,
	)

	fetcher, rdb := newFetcher(cfg, logger)
	dashboard := services.NewDashboard(fetcher, logger, services.DashboardOptions{
		FetchTimeout: cfg.Dashboard.FetchTimeout,
		Locale:       cfg.Dashboard.Locale,
	})

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(cfg, dashboard, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook("dashboard", func(ctx context.Context) error {
		logger.Info("stopping report fetches")
		dashboard.Close()
		return nil
	})
	if rdb != nil {
		gracefulServer.RegisterShutdownHook("redis", func(ctx context.Context) error {
			return rdb.Close()
		})
	}

	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
