package dashboard

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aquabill/aquabill-web/internal/billing"
	"github.com/aquabill/aquabill-web/internal/platform/httpx"
	"github.com/aquabill/aquabill-web/internal/search"
	"github.com/aquabill/aquabill-web/internal/shared"
	"github.com/aquabill/aquabill-web/internal/view"
)

// SearchPort is the slice of the upstream client the global search needs.
type SearchPort interface {
	SearchCustomers(ctx context.Context, query string) ([]billing.Customer, error)
}

// Handler serves the landing page and the header's global customer search.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	templates   *view.Engine
	csrfManager *shared.CSRFManager
	searches    *search.Pool[[]billing.Customer]
}

// NewHandler constructs a Handler instance. The global search debounces a
// full second; the header fires on every keystroke.
func NewHandler(logger *slog.Logger, service *Service, api SearchPort, templates *view.Engine, csrf *shared.CSRFManager, searchCfg search.Config) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		templates:   templates,
		csrfManager: csrf,
		searches:    search.NewPool(searchCfg, api.SearchCustomers),
	}
}

// MountRoutes registers dashboard routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/home", h.showHome)
	r.Get("/search", h.globalSearch)
}

type homePageData struct {
	Overview *Overview
	Chart    template.HTML
	LoadErr  bool
}

func (h *Handler) showHome(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	ident, _ := sess.Identity()

	data := homePageData{}
	overview, err := h.service.Overview(r.Context())
	if err != nil {
		// The page still renders; figures degrade to a placeholder.
		h.logger.Error("load dashboard overview", slog.Any("error", err))
		data.LoadErr = true
	} else {
		data.Overview = overview
		if chart, err := MonthlyChart(overview.Monthly); err == nil {
			data.Chart = chart
		} else {
			h.logger.Warn("render monthly chart", slog.Any("error", err))
		}
	}

	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Dashboard",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Identity:    &ident,
		Data:        data,
	}
	if err := h.templates.Render(w, "pages/home.html", viewData); err != nil {
		h.logger.Error("render home", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// globalSearch answers the header search box. Errors degrade to an empty
// result set; search failures are never surfaced to the operator.
func (h *Handler) globalSearch(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
		return
	}

	query := r.URL.Query().Get("q")
	results, err := h.searches.Get(sess.ID).Do(r.Context(), query)
	if err != nil {
		if errors.Is(err, search.ErrSuperseded) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.logger.Warn("global search", slog.String("query", query), slog.Any("error", err))
		results = nil
	}
	if results == nil {
		results = []billing.Customer{}
	}
	httpx.JSON(w, http.StatusOK, results)
}
