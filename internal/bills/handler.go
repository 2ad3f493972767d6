// Package bills serves the billing page: customer bill groups with a single
// expandable row, the add-reading form and the rate settings form.
package bills

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
	ListBillGroups(ctx context.Context) ([]billing.CustomerBillGroup, error)
	SearchMeters(ctx context.Context, query string) ([]billing.Meter, error)
	CreateReading(ctx context.Context, input upstream.ReadingInput) error
	GetSettings(ctx context.Context) (*billing.Settings, error)
	UpdateSettings(ctx context.Context, input upstream.SettingsInput) error
}

// Handler wires the billing page endpoints.
type Handler struct {
	logger      *slog.Logger
	api         Port
	templates   *view.Engine
	csrfManager *shared.CSRFManager
	validator   *validator.Validate
	meterSearch *search.Pool[[]billing.Meter]
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, api Port, templates *view.Engine, csrf *shared.CSRFManager, searchCfg search.Config) *Handler {
	return &Handler{
		logger:      logger,
		api:         api,
		templates:   templates,
		csrfManager: csrf,
		validator:   validator.New(),
		meterSearch: search.NewPool(searchCfg, api.SearchMeters),
	}
}

// MountRoutes registers billing routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.showBills)
	r.Post("/readings", h.handleAddReading)
	r.Post("/settings", h.handleUpdateSettings)
	r.Get("/meters/typeahead", h.meterTypeahead)
}

type readingForm struct {
	MeterID      string `validate:"required"`
	ReadingDate  string `validate:"required"`
	ReadingValue string `validate:"required"`
}

type settingsForm struct {
	FixedCharge string `validate:"required"`
	RatePerUnit string `validate:"required"`
}

type billsPageData struct {
	Groups      []billing.CustomerBillGroup
	Filter      string
	Expansion   *billing.Expansion
	Settings    billing.Settings
	ReadingForm readingForm
	Errors      map[string]string
	LoadErr     bool
}

func (h *Handler) showBills(w http.ResponseWriter, r *http.Request) {
	data := billsPageData{Filter: r.URL.Query().Get("filter")}

	groups, err := h.api.ListBillGroups(r.Context())
	if err != nil {
		h.logger.Error("fetch bill groups", slog.Any("error", err))
		data.LoadErr = true
	}
	data.Groups = billing.FilterGroups(groups, data.Filter)

	exp := &billing.Expansion{}
	if id, err := strconv.ParseInt(r.URL.Query().Get("expand"), 10, 64); err == nil && id > 0 {
		exp.Toggle(id)
	}
	data.Expansion = exp

	sess := shared.SessionFromContext(r.Context())
	if ident, ok := sess.Identity(); ok && ident.IsAdmin() {
		settings, err := h.api.GetSettings(r.Context())
		if err != nil {
			h.logger.Warn("fetch billing settings", slog.Any("error", err))
		} else if settings != nil {
			data.Settings = *settings
		}
	}

	h.render(w, r, data, http.StatusOK)
}

func (h *Handler) handleAddReading(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	form := readingForm{
		MeterID:      strings.TrimSpace(r.PostFormValue("meter_id")),
		ReadingDate:  strings.TrimSpace(r.PostFormValue("reading_date")),
		ReadingValue: strings.TrimSpace(r.PostFormValue("reading_value")),
	}
	fieldErrors := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			fieldErrors[fieldErr.Field()] = "This field is required"
		}
	}
	meterID, err := strconv.ParseInt(form.MeterID, 10, 64)
	if err != nil || meterID <= 0 {
		fieldErrors["MeterID"] = "Select a meter"
	}
	value, err := strconv.ParseFloat(form.ReadingValue, 64)
	if err != nil || value < 0 {
		fieldErrors["ReadingValue"] = "Enter a non-negative number"
	}
	if form.ReadingDate != "" {
		if _, err := time.Parse("2006-01-02", form.ReadingDate); err != nil {
			fieldErrors["ReadingDate"] = "Use the YYYY-MM-DD format"
		}
	}

	if len(fieldErrors) > 0 {
		groups, listErr := h.api.ListBillGroups(r.Context())
		if listErr != nil {
			h.logger.Error("fetch bill groups", slog.Any("error", listErr))
		}
		h.render(w, r, billsPageData{
			Groups:      groups,
			Expansion:   &billing.Expansion{},
			ReadingForm: form,
			Errors:      fieldErrors,
		}, http.StatusBadRequest)
		return
	}

	input := upstream.ReadingInput{
		MeterID:      meterID,
		ReadingDate:  form.ReadingDate,
		ReadingValue: value,
	}

	sess := shared.SessionFromContext(r.Context())
	if err := h.api.CreateReading(r.Context(), input); err != nil {
		h.logger.Error("submit reading", slog.Int64("meter_id", meterID), slog.Any("error", err))
		if sess != nil {
			sess.AddFlash(shared.FlashMessage{Kind: "error", Message: "Could not record reading"})
		}
	} else if sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Reading recorded"})
	}
	http.Redirect(w, r, "/dashboard/bills", http.StatusSeeOther)
}

// handleUpdateSettings changes the rate configuration. Admin only; the
// billing service enforces the same rule on its side.
func (h *Handler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	ident, ok := sess.Identity()
	if !ok || !ident.IsAdmin() {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "Only administrators can change billing rates")
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	form := settingsForm{
		FixedCharge: strings.TrimSpace(r.PostFormValue("fixed_charge")),
		RatePerUnit: strings.TrimSpace(r.PostFormValue("rate_per_unit")),
	}
	fixed, errFixed := strconv.ParseFloat(form.FixedCharge, 64)
	rate, errRate := strconv.ParseFloat(form.RatePerUnit, 64)
	if errFixed != nil || errRate != nil || fixed < 0 || rate < 0 {
		sess.AddFlash(shared.FlashMessage{Kind: "error", Message: "Rates must be non-negative numbers"})
		http.Redirect(w, r, "/dashboard/bills", http.StatusSeeOther)
		return
	}

	input := upstream.SettingsInput{FixedCharge: fixed, RatePerUnit: rate}
	if err := h.api.UpdateSettings(r.Context(), input); err != nil {
		h.logger.Error("update billing settings", slog.Any("error", err))
		sess.AddFlash(shared.FlashMessage{Kind: "error", Message: "Could not update billing rates"})
	} else {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Billing rates updated"})
	}
	http.Redirect(w, r, "/dashboard/bills", http.StatusSeeOther)
}

func (h *Handler) meterTypeahead(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
		return
	}

	query := r.URL.Query().Get("q")
	results, err := h.meterSearch.Get(sess.ID).Do(r.Context(), query)
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

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data billsPageData, status int) {
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
		Title:       "Bills",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Identity:    &ident,
		Data:        data,
	}
	if err := h.templates.Render(w, "pages/bills.html", viewData); err != nil {
		h.logger.Error("render bills", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
