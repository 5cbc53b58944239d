/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request access log
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. requestLogger: zerolog logger with request_id in the context
  5. CORS:       Cross-origin requests for internal dashboards

ROUTE GROUPS:
  /api/reconciliations  Fleet vs HR reconciliation
  /api/allocations      Invoice allocation and ledger export
  /api/ledgers          Exported ledgers
  /api/runs             Run history
  /api/mapping          Latest asset mapping

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/fleetctl/serve.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Logger         zerolog.Logger
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(opts.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/reconciliations", h.Reconcile)
		r.Post("/allocations", h.Allocate)
		r.Get("/ledgers", h.GetLedger)
		r.Get("/mapping", h.GetMapping)

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", h.ListRuns)
			r.Get("/{id}", h.GetRun)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}
