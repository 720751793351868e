package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Routes collects the handlers a server exposes. Nil entries are not routed.
type Routes struct {
	Mode     string
	Async    *AsyncHandler
	Process  *ProcessHandler
	Study    *StudyHandler
	Estimate *EstimateHandler
	Metrics  http.Handler

	// Extra registers additional routes under /v1
	Extra func(r chi.Router)
}

// NewRouter builds the HTTP router. Async takes precedence over Process for
// POST /v1/process.
func NewRouter(routes Routes) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"mode":   routes.Mode,
		})
	})
	if routes.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", routes.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		if routes.Async != nil {
			r.Post("/process", routes.Async.HandleProcessAsync)
			r.Get("/runs/{runID}", routes.Async.HandleStatus)
		} else if routes.Process != nil {
			r.Post("/process", routes.Process.HandleProcess)
		}
		if routes.Study != nil {
			r.Post("/study", routes.Study.HandleStudy)
		}
		if routes.Estimate != nil {
			r.Post("/estimate", routes.Estimate.HandleEstimate)
		}
		if routes.Extra != nil {
			routes.Extra(r)
		}
	})
	return r
}
