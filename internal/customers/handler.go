// Package customers serves the customer registry page: listing, the
// add-customer form and the name/phone/account typeahead.
package customers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aquabill/aquabill-web/internal/billing"
	"github.com/aquabill/aquabill-web/internal/platform/httpx"
	"github.com/aquabill/aquabill-web/internal/search"
	"github.com/aquabill/aquabill-web/internal/shared"
	"github.com/aquabill/aquabill-web/internal/upstream"
	"github.com/aquabill/aquabill-web/internal/view"
)

// The service substitutes this address when a customer is registered
// without an email.
const placeholderEmail = "info@infor.mw"

// Port is the slice of the upstream client this page needs.
type Port interface {
	ListCustomers(ctx context.Context) ([]billing.Customer, error)
	SearchCustomers(ctx context.Context, query string) ([]billing.Customer, error)
	CreateCustomer(ctx context.Context, input upstream.CustomerInput) error
}

// Handler wires the customer page endpoints.
type Handler struct {
	logger      *slog.Logger
	api         Port
	templates   *view.Engine
	csrfManager *shared.CSRFManager
	validator   *validator.Validate
	typeahead   *search.Pool[[]billing.Customer]
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, api Port, templates *view.Engine, csrf *shared.CSRFManager, searchCfg search.Config) *Handler {
	return &Handler{
		logger:      logger,
		api:         api,
		templates:   templates,
		csrfManager: csrf,
		validator:   validator.New(),
		typeahead:   search.NewPool(searchCfg, api.SearchCustomers),
	}
}

// MountRoutes registers customer routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.showCustomers)
	r.Post("/", h.handleCreate)
	r.Get("/typeahead", h.typeaheadSearch)
}

type customerForm struct {
	Name    string `validate:"required"`
	Address string `validate:"required"`
	Phone   string `validate:"required"`
	Email   string
}

type customersPageData struct {
	Customers []billing.Customer
	Filter    string
	Form      customerForm
	Errors    map[string]string
	LoadErr   bool
}

func (h *Handler) showCustomers(w http.ResponseWriter, r *http.Request) {
	data := customersPageData{Filter: r.URL.Query().Get("filter")}

	list, err := h.api.ListCustomers(r.Context())
	if err != nil {
		h.logger.Error("fetch customers", slog.Any("error", err))
		data.LoadErr = true
	}
	data.Customers = filterCustomers(list, data.Filter)

	h.render(w, r, data, http.StatusOK)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	form := customerForm{
		Name:    strings.TrimSpace(r.PostFormValue("name")),
		Address: strings.TrimSpace(r.PostFormValue("address")),
		Phone:   strings.TrimSpace(r.PostFormValue("phone")),
		Email:   strings.TrimSpace(r.PostFormValue("email")),
	}
	fieldErrors := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			fieldErrors[fieldErr.Field()] = "This field is required"
		}
	}

	if len(fieldErrors) > 0 {
		list, err := h.api.ListCustomers(r.Context())
		if err != nil {
			h.logger.Error("fetch customers", slog.Any("error", err))
		}
		h.render(w, r, customersPageData{Customers: list, Form: form, Errors: fieldErrors}, http.StatusBadRequest)
		return
	}

	email := form.Email
	if email == "" {
		email = placeholderEmail
	}
	input := upstream.CustomerInput{
		Name:    form.Name,
		Address: form.Address,
		Phone:   form.Phone,
		Email:   email,
	}

	sess := shared.SessionFromContext(r.Context())
	if err := h.api.CreateCustomer(r.Context(), input); err != nil {
		h.logger.Error("create customer", slog.String("name", form.Name), slog.Any("error", err))
		if sess != nil {
			sess.AddFlash(shared.FlashMessage{Kind: "error", Message: "Could not add customer"})
		}
	} else if sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Customer added"})
	}
	http.Redirect(w, r, "/dashboard/customers", http.StatusSeeOther)
}

// typeaheadSearch serves the debounced remote customer search used by the
// customers page and the meter form's owner picker.
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
		h.logger.Warn("customer search", slog.String("query", query), slog.Any("error", err))
		results = nil
	}
	if results == nil {
		results = []billing.Customer{}
	}
	httpx.JSON(w, http.StatusOK, results)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data customersPageData, status int) {
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
		Title:       "Customers",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Identity:    &ident,
		Data:        data,
	}
	if err := h.templates.Render(w, "pages/customers.html", viewData); err != nil {
		h.logger.Error("render customers", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// filterCustomers narrows the in-page table by name, phone or account no.
func filterCustomers(list []billing.Customer, term string) []billing.Customer {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return list
	}
	var out []billing.Customer
	for _, c := range list {
		if strings.Contains(strings.ToLower(c.Name), needle) ||
			strings.Contains(strings.ToLower(c.Phone), needle) ||
			strings.Contains(strings.ToLower(c.AccountNo), needle) {
			out = append(out, c)
		}
	}
	return out
}
