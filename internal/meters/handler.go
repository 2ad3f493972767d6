// Package meters serves the meter registry page: listing, registration and
// edit forms, and the meter-number typeahead.
package meters

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aquabill/aquabill-web/internal/billing"
	"github.com/aquabill/aquabill-web/internal/platform/httpx"
	"github.com/aquabill/aquabill-web/internal/search"
	"github.com/aquabill/aquabill-web/internal/shared"
	"github.com/aquabill/aquabill-web/internal/upstream"
	"github.com/aquabill/aquabill-web/internal/view"
)

// Port is the slice of the upstream client this page needs.
type Port interface {
	ListMeters(ctx context.Context) ([]billing.Meter, error)
	SearchMeters(ctx context.Context, query string) ([]billing.Meter, error)
	CreateMeter(ctx context.Context, input upstream.MeterInput) error
	UpdateMeter(ctx context.Context, id int64, input upstream.MeterInput) error
}

// Handler wires the meter page endpoints.
type Handler struct {
	logger      *slog.Logger
	api         Port
	templates   *view.Engine
	csrfManager *shared.CSRFManager
	validator   *validator.Validate
	typeahead   *search.Pool[[]billing.Meter]
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, api Port, templates *view.Engine, csrf *shared.CSRFManager, searchCfg search.Config) *Handler {
	return &Handler{
		logger:      logger,
		api:         api,
		templates:   templates,
		csrfManager: csrf,
		validator:   validator.New(),
		typeahead:   search.NewPool(searchCfg, api.SearchMeters),
	}
}

// MountRoutes registers meter routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.showMeters)
	r.Post("/", h.handleCreate)
	r.Post("/{id}", h.handleUpdate)
	r.Get("/typeahead", h.typeaheadSearch)
}

type meterForm struct {
	MeterNo     string `validate:"required"`
	CustomerID  string `validate:"required"`
	InstalledAt string
	Status      string `validate:"required,oneof=active inactive"`
}

type metersPageData struct {
	Meters  []billing.Meter
	Filter  string
	Form    meterForm
	EditID  int64
	Errors  map[string]string
	LoadErr bool
}

func (h *Handler) showMeters(w http.ResponseWriter, r *http.Request) {
	data := metersPageData{Filter: r.URL.Query().Get("filter")}

	list, err := h.api.ListMeters(r.Context())
	if err != nil {
		h.logger.Error("fetch meters", slog.Any("error", err))
		data.LoadErr = true
	}
	data.Meters = filterMeters(list, data.Filter)

	h.render(w, r, data, http.StatusOK)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, 0)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	h.submit(w, r, id)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, id int64) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	form := meterForm{
		MeterNo:     strings.TrimSpace(r.PostFormValue("meter_no")),
		CustomerID:  strings.TrimSpace(r.PostFormValue("customer_id")),
		InstalledAt: strings.TrimSpace(r.PostFormValue("installed_at")),
		Status:      r.PostFormValue("status"),
	}
	fieldErrors := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			fieldErrors[fieldErr.Field()] = "Invalid value"
		}
	}
	customerID, err := strconv.ParseInt(form.CustomerID, 10, 64)
	if err != nil || customerID <= 0 {
		fieldErrors["CustomerID"] = "Select a customer"
	}
	if form.InstalledAt != "" {
		if _, err := time.Parse("2006-01-02", form.InstalledAt); err != nil {
			fieldErrors["InstalledAt"] = "Use the YYYY-MM-DD format"
		}
	}

	if len(fieldErrors) > 0 {
		list, listErr := h.api.ListMeters(r.Context())
		if listErr != nil {
			h.logger.Error("fetch meters", slog.Any("error", listErr))
		}
		h.render(w, r, metersPageData{Meters: list, Form: form, EditID: id, Errors: fieldErrors}, http.StatusBadRequest)
		return
	}

	input := upstream.MeterInput{
		MeterNo:     form.MeterNo,
		CustomerID:  customerID,
		InstalledAt: form.InstalledAt,
		Status:      form.Status,
	}

	sess := shared.SessionFromContext(r.Context())
	if id > 0 {
		err = h.api.UpdateMeter(r.Context(), id, input)
	} else {
		err = h.api.CreateMeter(r.Context(), input)
	}
	if err != nil {
		h.logger.Error("save meter", slog.String("meter_no", form.MeterNo), slog.Any("error", err))
		if sess != nil {
			sess.AddFlash(shared.FlashMessage{Kind: "error", Message: "Could not save meter"})
		}
	} else if sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Meter saved"})
	}
	http.Redirect(w, r, "/dashboard/meters", http.StatusSeeOther)
}

func (h *Handler) typeaheadSearch(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
		return
	}

	query := r.URL.Query().Get("q")
	results, err := h.typeahead.Get(sess.ID).Do(r.Context(), query)
	if err != nil {
		if errors.Is(err, search.ErrSuperseded) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.logger.Warn("meter search", slog.String("query", query), slog.Any("error", err))
		results = nil
	}
	if results == nil {
		results = []billing.Meter{}
	}
	httpx.JSON(w, http.StatusOK, results)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data metersPageData, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	ident, _ := sess.Identity()
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	viewData := view.TemplateData{
		Title:       "Meters",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Identity:    &ident,
		Data:        data,
	}
	if err := h.templates.Render(w, "pages/meters.html", viewData); err != nil {
		h.logger.Error("render meters", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// filterMeters narrows the in-page table by meter number or status.
func filterMeters(list []billing.Meter, term string) []billing.Meter {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return list
	}
	var out []billing.Meter
	for _, m := range list {
		if strings.Contains(strings.ToLower(m.MeterNo), needle) ||
			strings.Contains(strings.ToLower(string(m.Status)), needle) {
			out = append(out, m)
		}
	}
	return out
}
