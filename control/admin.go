// control/admin.go
// Author: momentics <momentics@gmail.com>
//
// Admin HTTP surface: health, prometheus scrape and debug probes.

package control

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AdminConfig wires the admin router to its data sources.
type AdminConfig struct {
	Gatherer prometheus.Gatherer
	Probes   *DebugProbes
	// Health reports nil while the service accepts connections.
	Health func() error
}

// NewAdminRouter builds the admin handler.
func NewAdminRouter(cfg AdminConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health(); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		_, _ = w.Write([]byte("ok\n"))
	})

	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	if cfg.Probes != nil {
		r.Route("/debug/probes", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, cfg.Probes.DumpState())
			})
			r.Get("/{name}", func(w http.ResponseWriter, req *http.Request) {
				v, ok := cfg.Probes.Probe(chi.URLParam(req, "name"))
				if !ok {
					http.NotFound(w, req)
					return
				}
				writeJSON(w, http.StatusOK, v)
			})
		})
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
