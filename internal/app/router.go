package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/aquabill/aquabill-web/internal/auth"
	"github.com/aquabill/aquabill-web/internal/bills"
	"github.com/aquabill/aquabill-web/internal/customers"
	"github.com/aquabill/aquabill-web/internal/dashboard"
	"github.com/aquabill/aquabill-web/internal/meters"
	"github.com/aquabill/aquabill-web/internal/observability"
	"github.com/aquabill/aquabill-web/internal/payments"
	"github.com/aquabill/aquabill-web/internal/receipts"
	"github.com/aquabill/aquabill-web/internal/shared"
	"github.com/aquabill/aquabill-web/internal/users"
	"github.com/aquabill/aquabill-web/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	AuthHandler      *auth.Handler
	DashboardHandler *dashboard.Handler
	CustomersHandler *customers.Handler
	MetersHandler    *meters.Handler
	BillsHandler     *bills.Handler
	PaymentsHandler  *payments.Handler
	ReceiptsHandler  *receipts.Handler
	UsersHandler     *users.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router for the front office.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// The root is the sign-in screen; authenticated operators land on the
	// dashboard instead.
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if _, ok := sess.Identity(); ok {
			http.Redirect(w, r, "/dashboard/home", http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	})

	params.AuthHandler.MountRoutes(r)

	r.Route("/dashboard", func(r chi.Router) {
		r.Use(RequireAuth(params.Logger))
		params.DashboardHandler.MountRoutes(r)
		r.Route("/customers", params.CustomersHandler.MountRoutes)
		r.Route("/meters", params.MetersHandler.MountRoutes)
		r.Route("/bills", params.BillsHandler.MountRoutes)
		r.Route("/payments", params.PaymentsHandler.MountRoutes)
		r.Route("/receipts", params.ReceiptsHandler.MountRoutes)
		r.Route("/users", params.UsersHandler.MountRoutes)
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers so
// browsers keep assets for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
