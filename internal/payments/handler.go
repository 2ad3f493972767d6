// Package payments serves the cashier page: the payment capture form with a
// debounced bill lookup, the paid-bills table and the receipt panel shown
// after a successful payment.
package payments

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
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

// Port is the slice of the upstream client this page needs.
type Port interface {
	ListBillGroups(ctx context.Context) ([]billing.CustomerBillGroup, error)
	GetBill(ctx context.Context, id int64) (*billing.Bill, error)
	CreatePayment(ctx context.Context, input upstream.PaymentInput) (*billing.Receipt, error)
	GetReceipt(ctx context.Context, id int64) (*billing.Receipt, error)
}

// Handler wires the payment page endpoints.
type Handler struct {
	logger      *slog.Logger
	api         Port
	templates   *view.Engine
	csrfManager *shared.CSRFManager
	validator   *validator.Validate
	billLookup  *search.Pool[*billing.Bill]
	refresh     func(ctx context.Context) error
}

// NewHandler constructs a Handler instance. The lookup config carries the
// longer delay this page uses, since cashiers type whole bill numbers.
func NewHandler(logger *slog.Logger, api Port, templates *view.Engine, csrf *shared.CSRFManager, lookupCfg search.Config) *Handler {
	fetch := func(ctx context.Context, query string) (*billing.Bill, error) {
		id, err := strconv.ParseInt(strings.TrimSpace(query), 10, 64)
		if err != nil || id <= 0 {
			return nil, nil
		}
		return api.GetBill(ctx, id)
	}
	return &Handler{
		logger:      logger,
		api:         api,
		templates:   templates,
		csrfManager: csrf,
		validator:   validator.New(),
		billLookup:  search.NewPool(lookupCfg, fetch),
	}
}

// WithRefresh sets a hook invoked after each recorded payment. The dashboard
// worker uses it to rebuild the cached totals ahead of the next cron run.
func (h *Handler) WithRefresh(refresh func(ctx context.Context) error) *Handler {
	h.refresh = refresh
	return h
}

// MountRoutes registers payment routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.showPayments)
	r.Post("/", h.handlePay)
	r.Get("/bill-lookup", h.billLookupSearch)
}

type paymentForm struct {
	BillID    string `validate:"required"`
	Amount    string `validate:"required"`
	Method    string `validate:"required,oneof=cash mobile_money bank"`
	Reference string
}

type paymentsPageData struct {
	Groups  []billing.CustomerBillGroup
	Filter  string
	Form    paymentForm
	Receipt *billing.Receipt
	Errors  map[string]string
	LoadErr bool
}

func (h *Handler) showPayments(w http.ResponseWriter, r *http.Request) {
	data := paymentsPageData{
		Filter: r.URL.Query().Get("filter"),
		Form:   paymentForm{BillID: r.URL.Query().Get("bill_id")},
	}

	groups, err := h.api.ListBillGroups(r.Context())
	if err != nil {
		h.logger.Error("fetch bill groups", slog.Any("error", err))
		data.LoadErr = true
	}
	data.Groups = billing.FilterGroups(billing.PaidOnly(groups), data.Filter)

	// Arriving via a bill table's pay link pre-fills the amount due.
	if id, err := strconv.ParseInt(data.Form.BillID, 10, 64); err == nil && id > 0 {
		bill, err := h.api.GetBill(r.Context(), id)
		if err != nil {
			if !errors.Is(err, upstream.ErrNotFound) {
				h.logger.Warn("prefill bill", slog.Int64("bill_id", id), slog.Any("error", err))
			}
		} else if bill != nil && bill.Status == billing.BillUnpaid {
			data.Form.Amount = strconv.FormatFloat(bill.AmountDue, 'f', 2, 64)
		}
	}

	// A fresh payment redirects back here with the receipt id so the
	// panel survives the POST/redirect/GET round trip.
	if id, err := strconv.ParseInt(r.URL.Query().Get("receipt"), 10, 64); err == nil && id > 0 {
		receipt, err := h.api.GetReceipt(r.Context(), id)
		if err != nil {
			h.logger.Warn("fetch receipt", slog.Int64("receipt_id", id), slog.Any("error", err))
		} else {
			data.Receipt = receipt
		}
	}

	h.render(w, r, data, http.StatusOK)
}

func (h *Handler) handlePay(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	ident, ok := sess.Identity()
	if !ok || ident.Username == "" {
		// Never submit a payment without a cashier on record.
		if sess != nil {
			sess.AddFlash(shared.FlashMessage{Kind: "error", Message: "Sign in before recording payments"})
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	form := paymentForm{
		BillID:    strings.TrimSpace(r.PostFormValue("bill_id")),
		Amount:    strings.TrimSpace(r.PostFormValue("amount")),
		Method:    r.PostFormValue("method"),
		Reference: strings.TrimSpace(r.PostFormValue("reference")),
	}
	fieldErrors := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			fieldErrors[fieldErr.Field()] = "Invalid value"
		}
	}
	billID, err := strconv.ParseInt(form.BillID, 10, 64)
	if err != nil || billID <= 0 {
		fieldErrors["BillID"] = "Enter a valid bill number"
	}
	amount, err := strconv.ParseFloat(form.Amount, 64)
	if err != nil || amount <= 0 {
		fieldErrors["Amount"] = "Enter a positive amount"
	}

	if len(fieldErrors) > 0 {
		h.renderWithForm(w, r, form, fieldErrors)
		return
	}

	input := upstream.PaymentInput{
		BillID:    billID,
		Amount:    amount,
		Method:    form.Method,
		Username:  ident.Username,
		Reference: form.Reference,
	}
	receipt, err := h.api.CreatePayment(r.Context(), input)
	if err != nil {
		h.logger.Error("record payment",
			slog.Int64("bill_id", billID),
			slog.String("cashier", ident.Username),
			slog.Any("error", err))
		fieldErrors["general"] = "Payment could not be recorded"
		h.renderWithForm(w, r, form, fieldErrors)
		return
	}

	if h.refresh != nil {
		if err := h.refresh(r.Context()); err != nil {
			h.logger.Warn("schedule dashboard refresh", slog.Any("error", err))
		}
	}

	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Payment recorded"})
	http.Redirect(w, r, "/dashboard/payments?receipt="+strconv.FormatInt(receipt.ID, 10), http.StatusSeeOther)
}

// renderWithForm re-renders the page keeping what the cashier typed.
func (h *Handler) renderWithForm(w http.ResponseWriter, r *http.Request, form paymentForm, fieldErrors map[string]string) {
	groups, err := h.api.ListBillGroups(r.Context())
	if err != nil {
		h.logger.Error("fetch bill groups", slog.Any("error", err))
	}
	h.render(w, r, paymentsPageData{
		Groups: billing.PaidOnly(groups),
		Form:   form,
		Errors: fieldErrors,
	}, http.StatusBadRequest)
}

// billLookupResult is the fragment payload for the bill number field.
type billLookupResult struct {
	Found bool          `json:"found"`
	Bill  *billing.Bill `json:"bill,omitempty"`
}

func (h *Handler) billLookupSearch(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
		return
	}

	query := r.URL.Query().Get("q")
	bill, err := h.billLookup.Get(sess.ID).Do(r.Context(), query)
	if err != nil {
		if errors.Is(err, search.ErrSuperseded) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if !errors.Is(err, upstream.ErrNotFound) {
			h.logger.Warn("bill lookup", slog.String("query", query), slog.Any("error", err))
		}
		bill = nil
	}
	// Paid bills cannot take another payment.
	if bill != nil && bill.Status != billing.BillUnpaid {
		bill = nil
	}
	httpx.JSON(w, http.StatusOK, billLookupResult{Found: bill != nil, Bill: bill})
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data paymentsPageData, status int) {
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
		Title:       "Payments",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Identity:    &ident,
		Data:        data,
	}
	if err := h.templates.Render(w, "pages/payments.html", viewData); err != nil {
		h.logger.Error("render payments", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
