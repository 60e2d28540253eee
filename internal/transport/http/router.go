// Package httptransport assembles the hub's HTTP surface: the shared
// middleware chain, the public endpoints, and the authenticated API group.
// Individual endpoints live with their modules; this package only composes.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	platformmetrics "github.com/spwotton/sms/internal/platform/metrics"
	"github.com/spwotton/sms/pkg/platform/httputil"
	authmw "github.com/spwotton/sms/pkg/platform/middleware/auth"
	"github.com/spwotton/sms/pkg/platform/middleware/logging"
	"github.com/spwotton/sms/pkg/platform/middleware/metadata"
	"github.com/spwotton/sms/pkg/platform/middleware/recovery"
	"github.com/spwotton/sms/pkg/platform/middleware/request"
	"github.com/spwotton/sms/pkg/platform/middleware/requesttime"
)

// healthTimeout bounds the combined dependency pings of one probe.
const healthTimeout = 2 * time.Second

// Registrar mounts a module's routes on a router.
type Registrar interface {
	Register(r chi.Router)
}

// Pinger reports whether a backing dependency is reachable.
type Pinger func(ctx context.Context) error

// Config carries the router's dependencies.
type Config struct {
	Logger    *slog.Logger
	Metrics   *platformmetrics.HTTP
	Validator authmw.TokenValidator

	// Pingers are checked by /healthz, keyed by dependency name. The
	// in-memory backends register nothing and the probe stays static.
	Pingers map[string]Pinger

	// Public registers under /api without authentication (the login
	// endpoint). Protected registers under /api behind bearer auth.
	Public    []Registrar
	Protected []Registrar
}

// NewRouter builds the full route tree. Health and metrics sit outside
// /api and outside auth so probes and the scraper need no credentials.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(request.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(logging.Middleware(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(recovery.Middleware(cfg.Logger))

	r.Get("/healthz", handleHealth(cfg.Pingers))
	r.Method(http.MethodGet, "/metrics", platformmetrics.Handler())

	r.Route("/api", func(api chi.Router) {
		for _, reg := range cfg.Public {
			reg.Register(api)
		}
		api.Group(func(protected chi.Router) {
			protected.Use(authmw.RequireAuth(cfg.Validator, cfg.Logger))
			for _, reg := range cfg.Protected {
				reg.Register(protected)
			}
		})
	})

	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func handleHealth(pingers map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(pingers) == 0 {
			httputil.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(pingers))}
		code := http.StatusOK
		for name, ping := range pingers {
			if err := ping(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, code, resp)
	}
}
