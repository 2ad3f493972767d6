// Package receipts serves receipt retrieval: lookup by receipt number, the
// on-screen receipt panel and a dedicated print view.
package receipts

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aquabill/aquabill-web/internal/billing"
	"github.com/aquabill/aquabill-web/internal/shared"
	"github.com/aquabill/aquabill-web/internal/upstream"
	"github.com/aquabill/aquabill-web/internal/view"
)

// Port is the slice of the upstream client this page needs.
type Port interface {
	GetReceipt(ctx context.Context, id int64) (*billing.Receipt, error)
}

// Handler wires the receipt page endpoints.
type Handler struct {
	logger      *slog.Logger
	api         Port
	templates   *view.Engine
	csrfManager *shared.CSRFManager
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, api Port, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{logger: logger, api: api, templates: templates, csrfManager: csrf}
}

// MountRoutes registers receipt routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.showLookup)
	r.Get("/{id}/print", h.showPrintView)
}

type receiptsPageData struct {
	Query    string
	Receipt  *billing.Receipt
	NotFound bool
	LoadErr  bool
}

// showLookup renders the lookup form; with an id parameter it also resolves
// the receipt. A miss clears any previously shown receipt so the operator
// never reads a stale one against the wrong number.
func (h *Handler) showLookup(w http.ResponseWriter, r *http.Request) {
	data := receiptsPageData{Query: strings.TrimSpace(r.URL.Query().Get("id"))}

	if data.Query != "" {
		id, err := strconv.ParseInt(data.Query, 10, 64)
		if err != nil || id <= 0 {
			data.NotFound = true
		} else {
			receipt, err := h.api.GetReceipt(r.Context(), id)
			switch {
			case errors.Is(err, upstream.ErrNotFound):
				data.NotFound = true
			case err != nil:
				h.logger.Error("fetch receipt", slog.Int64("receipt_id", id), slog.Any("error", err))
				data.LoadErr = true
			default:
				data.Receipt = receipt
			}
		}
	}

	h.render(w, r, "pages/receipts.html", "Receipts", data, http.StatusOK)
}

// showPrintView renders the receipt alone on a print-friendly page.
func (h *Handler) showPrintView(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return
	}

	receipt, err := h.api.GetReceipt(r.Context(), id)
	if err != nil {
		if errors.Is(err, upstream.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.logger.Error("fetch receipt", slog.Int64("receipt_id", id), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	h.render(w, r, "pages/receipt_print.html", "Receipt "+receipt.ReceiptNo, receiptsPageData{Receipt: receipt}, http.StatusOK)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, page, title string, data receiptsPageData, status int) {
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
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Identity:    &ident,
		Data:        data,
	}
	if err := h.templates.Render(w, page, viewData); err != nil {
		h.logger.Error("render receipts", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
