package receipts

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/aquabill/aquabill-web/internal/billing"
	"github.com/aquabill/aquabill-web/internal/shared"
	"github.com/aquabill/aquabill-web/internal/upstream"
	"github.com/aquabill/aquabill-web/internal/view"
)

type fakePort struct {
	receipts map[int64]*billing.Receipt
}

func (f *fakePort) GetReceipt(ctx context.Context, id int64) (*billing.Receipt, error) {
	if r, ok := f.receipts[id]; ok {
		return r, nil
	}
	return nil, upstream.ErrNotFound
}

func newTestHandler(t *testing.T, api Port) *Handler {
	t.Helper()
	templates, err := view.NewEngine()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(logger, api, templates, shared.NewCSRFManager("test-secret"))
}

func testSession(t *testing.T) *shared.Session {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	manager := shared.NewSessionManager(client, "aquabill_session", "test-secret", time.Hour, false)
	sess, err := manager.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	return sess
}

func sampleReceipt() *billing.Receipt {
	return &billing.Receipt{
		ID:        5,
		PaymentID: 9,
		ReceiptNo: "RCT-0005",
		IssuedAt:  "2026-03-14T10:30:00",
		ReceiptData: billing.ReceiptData{
			Customer:   "John Banda",
			BillID:     7,
			AmountPaid: 4500,
			Method:     "cash",
			Cashier:    "grace",
			Datetime:   "2026-03-14T10:30:00",
		},
	}
}

func TestLookupShowsReceipt(t *testing.T) {
	api := &fakePort{receipts: map[int64]*billing.Receipt{5: sampleReceipt()}}
	h := newTestHandler(t, api)

	r := httptest.NewRequest(http.MethodGet, "/dashboard/receipts?id=5", nil)
	r = r.WithContext(shared.ContextWithSession(r.Context(), testSession(t)))
	w := httptest.NewRecorder()

	h.showLookup(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	require.Contains(t, body, "RCT-0005")
	require.Contains(t, body, "John Banda")
	require.NotContains(t, body, "No receipt matches")
}

func TestLookupMissShowsNotFoundWithoutStaleReceipt(t *testing.T) {
	api := &fakePort{receipts: map[int64]*billing.Receipt{5: sampleReceipt()}}
	h := newTestHandler(t, api)

	r := httptest.NewRequest(http.MethodGet, "/dashboard/receipts?id=999", nil)
	r = r.WithContext(shared.ContextWithSession(r.Context(), testSession(t)))
	w := httptest.NewRecorder()

	h.showLookup(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	require.Contains(t, body, "No receipt matches")
	require.NotContains(t, body, "RCT-0005")
}

func TestPrintViewRendersReceiptAlone(t *testing.T) {
	api := &fakePort{receipts: map[int64]*billing.Receipt{5: sampleReceipt()}}
	h := newTestHandler(t, api)

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "5")
	r := httptest.NewRequest(http.MethodGet, "/dashboard/receipts/5/print", nil)
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	r = r.WithContext(shared.ContextWithSession(r.Context(), testSession(t)))
	w := httptest.NewRecorder()

	h.showPrintView(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	require.Contains(t, body, "RCT-0005")
	require.Contains(t, body, "/static/js/print.js")
	require.NotContains(t, body, "topnav")
}

func TestPrintViewMissing(t *testing.T) {
	h := newTestHandler(t, &fakePort{})

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "404")
	r := httptest.NewRequest(http.MethodGet, "/dashboard/receipts/404/print", nil)
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	r = r.WithContext(shared.ContextWithSession(r.Context(), testSession(t)))
	w := httptest.NewRecorder()

	h.showPrintView(w, r)

	require.Equal(t, http.StatusNotFound, w.Code)
}
