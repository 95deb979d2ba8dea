/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address from X-Forwarded-For / X-Real-IP
  3. Logger:     zap request logging (logger.Middleware)
  4. Metrics:    Prometheus request count and latency, when configured
  5. Recoverer:  Panic recovery (500 instead of crash)
  6. Timeout:    Request deadline (STORE_TIMEOUT), when configured
  7. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /healthz              Store liveness
  /metrics              Prometheus exposition, when configured
  /api/contratos/*      Contract lifecycle
  /api/parcelas/*       Installment lifecycle
  /api/relatorios/*     Annual report
  /api/dashboard        Dashboard aggregates

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/parcelas/logger"
	"go.uber.org/zap"
)

// RouterOptions configures NewRouter. Zero values disable the optional parts.
type RouterOptions struct {
	Log         *zap.Logger
	CORSOrigins []string

	// RequestTimeout cancels the request context, and with it any store call, after the
	// given duration.
	RequestTimeout time.Duration

	// Metrics, when set, instruments requests and serves /metrics.
	Metrics interface {
		Middleware(http.Handler) http.Handler
		Handler() http.Handler
	}
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware(log))
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}
	r.Use(middleware.Recoverer)
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.Health)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler())
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Contract routes
		r.Route("/contratos", func(r chi.Router) {
			r.Get("/", h.ListContracts)
			r.Post("/", h.CreateContract)
			r.Get("/opcoes", h.ContractChoices)
			r.Get("/renovaveis", h.RenewalCandidates)
			r.Get("/{id}", h.GetContract)
			r.Put("/{id}", h.EditContract)
			r.Delete("/{id}", h.DeleteContract)
			r.Post("/{id}/situacao", h.SetSituacao)
			r.Post("/{id}/renovar", h.RenewContract)
		})

		// Installment routes
		r.Route("/parcelas", func(r chi.Router) {
			r.Get("/", h.ListInstallments)
			r.Post("/", h.AddInstallments)
			r.Post("/{id}/lancar", h.LaunchInstallment)
			r.Put("/{id}/lancamento", h.AmendLaunch)
			r.Post("/{id}/reverter", h.RevertInstallment)
			r.Delete("/{id}", h.DeleteInstallment)
		})

		// Report routes
		r.Get("/relatorios/anual", h.AnnualReport)
		r.Get("/dashboard", h.Dashboard)
	})

	return r
}
