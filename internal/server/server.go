package server

import (
	"log/slog"
	"net/http"

	"cn-dashboard/internal/handlers"
	"cn-dashboard/internal/services"
)

type Server struct {
	dashboard   *services.Dashboard
	mux         *http.ServeMux
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

func NewServer(dashboard *services.Dashboard, logger *slog.Logger, templateHandlers *TemplateHandlers) *Server {
	s := &Server{
		dashboard:   dashboard,
		mux:         http.NewServeMux(),
		logger:      logger,
		apiHandlers: handlers.NewAPIHandlers(dashboard, logger),
		sseHandlers: handlers.NewSSEHandlers(dashboard, logger),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	// Dashboard routes
	s.mux.HandleFunc("GET /{$}", templateHandlers.Dashboard)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)

	// REST API endpoints
	s.mux.HandleFunc("POST /api/range", s.apiHandlers.HandleSetRange)
	s.mux.HandleFunc("POST /api/retry", s.apiHandlers.HandleRetry)
	s.mux.HandleFunc("POST /api/refresh", s.apiHandlers.HandleRefresh)
	s.mux.HandleFunc("GET /api/state", s.apiHandlers.HandleState)
	s.mux.HandleFunc("GET /api/widgets", s.apiHandlers.HandleWidgets)
	s.mux.HandleFunc("GET /api/widgets/{id}", s.apiHandlers.HandleWidget)
	s.mux.HandleFunc("PUT /api/widgets/{id}/selector", s.apiHandlers.HandleSelect)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/dashboard", s.sseHandlers.HandleDashboardStream)
	s.mux.HandleFunc("POST /sse/range", s.sseHandlers.HandleSetRange)
	s.mux.HandleFunc("POST /sse/retry", s.sseHandlers.HandleRetry)
	s.mux.HandleFunc("POST /sse/refresh", s.sseHandlers.HandleRefresh)
	s.mux.HandleFunc("POST /sse/widgets/{id}/selector", s.sseHandlers.HandleSelect)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
