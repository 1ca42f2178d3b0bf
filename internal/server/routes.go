package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// New builds the chi router for a caasd process: CEI/PAC/CAL/AAP/ZCVI plus
// analytics, metrics, and the live-tail websocket, generalizing the
// teacher's flat http.ServeMux into route groups per component.
func New(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", handler.Health)

	r.Route("/events", func(r chi.Router) {
		r.Post("/", handler.IngestEvent)
	})

	r.Route("/policies", func(r chi.Router) {
		r.Post("/", handler.CompilePolicy)
		r.Get("/{policyID}", handler.GetPolicy)
		r.Get("/{policyID}/versions", handler.ListPolicyVersions)
	})

	r.Route("/ledger", func(r chi.Router) {
		r.Get("/records/{recordID}", handler.GetRecord)
		r.Get("/verify", handler.VerifyChain)
	})

	r.Route("/bundles", func(r chi.Router) {
		r.Post("/", handler.BuildBundle)
		r.Post("/verify", handler.VerifyBundleHandler)
	})

	r.Route("/analytics", func(r chi.Router) {
		r.Get("/usage/{tenantID}", handler.UsageSummary)
	})

	if handler.Broadcaster != nil {
		r.Get("/stream", handler.Broadcaster.ServeHTTP)
	}

	r.Handle("/metrics", promhttp.Handler())

	return r
}
