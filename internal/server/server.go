package server

import (
	"log/slog"
	"net/http"

	"sales-dashboard/internal/handlers"
)

type Server struct {
	mux         *http.ServeMux
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Sales     http.HandlerFunc
	Assurance http.HandlerFunc
}

func NewServer(deps handlers.Dependencies, templateHandlers *TemplateHandlers) *Server {
	s := &Server{
		mux:         http.NewServeMux(),
		logger:      deps.Logger,
		apiHandlers: handlers.NewAPIHandlers(deps),
		sseHandlers: handlers.NewSSEHandlers(deps),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	// Dashboard routes
	s.mux.HandleFunc("GET /{$}", templateHandlers.Sales)
	s.mux.HandleFunc("GET /assurance", templateHandlers.Assurance)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)

	// Retail sales API
	s.mux.HandleFunc("POST /api/sales/upload", s.apiHandlers.HandleSalesUpload)
	s.mux.HandleFunc("GET /api/sales/kpis", s.apiHandlers.HandleSalesKPIs)
	s.mux.HandleFunc("GET /api/sales/monthly", s.apiHandlers.HandleSalesMonthly)
	s.mux.HandleFunc("GET /api/sales/products", s.apiHandlers.HandleSalesProducts)
	s.mux.HandleFunc("GET /api/sales/pairs", s.apiHandlers.HandleSalesPairs)
	s.mux.HandleFunc("GET /api/sales/customers", s.apiHandlers.HandleSalesCustomers)
	s.mux.HandleFunc("GET /api/sales/segments", s.apiHandlers.HandleSalesSegments)
	s.mux.HandleFunc("GET /api/sales/vision360", s.apiHandlers.HandleSalesVision360)
	s.mux.HandleFunc("GET /api/sales/preview", s.apiHandlers.HandleSalesPreview)
	s.mux.HandleFunc("GET /api/sales/options", s.apiHandlers.HandleSalesOptions)
	s.mux.HandleFunc("GET /api/sales/dataset", s.apiHandlers.HandleSalesDataset)

	// Revenue assurance API
	s.mux.HandleFunc("POST /api/assurance/upload", s.apiHandlers.HandleAssuranceUpload)
	s.mux.HandleFunc("GET /api/assurance/kpis", s.apiHandlers.HandleAssuranceKPIs)
	s.mux.HandleFunc("GET /api/assurance/providers", s.apiHandlers.HandleAssuranceProviders)
	s.mux.HandleFunc("GET /api/assurance/statuses", s.apiHandlers.HandleAssuranceStatuses)
	s.mux.HandleFunc("GET /api/assurance/countries", s.apiHandlers.HandleAssuranceCountries)
	s.mux.HandleFunc("GET /api/assurance/options", s.apiHandlers.HandleAssuranceOptions)
	s.mux.HandleFunc("GET /api/assurance/dataset", s.apiHandlers.HandleAssuranceDataset)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/sales/refresh", s.sseHandlers.HandleSalesRefresh)
	s.mux.HandleFunc("GET /sse/sales/segments", s.sseHandlers.HandleSalesSegments)
	s.mux.HandleFunc("GET /sse/assurance/refresh", s.sseHandlers.HandleAssuranceRefresh)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
