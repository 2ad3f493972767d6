package payments

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/aquabill/aquabill-web/internal/billing"
	"github.com/aquabill/aquabill-web/internal/search"
	"github.com/aquabill/aquabill-web/internal/shared"
	"github.com/aquabill/aquabill-web/internal/upstream"
)

type fakePort struct {
	paymentCalls atomic.Int32
	lastPayment  upstream.PaymentInput
	bill         *billing.Bill
	receipt      *billing.Receipt
}

func (f *fakePort) ListBillGroups(ctx context.Context) ([]billing.CustomerBillGroup, error) {
	return nil, nil
}

func (f *fakePort) GetBill(ctx context.Context, id int64) (*billing.Bill, error) {
	if f.bill == nil {
		return nil, upstream.ErrNotFound
	}
	return f.bill, nil
}

func (f *fakePort) CreatePayment(ctx context.Context, input upstream.PaymentInput) (*billing.Receipt, error) {
	f.paymentCalls.Add(1)
	f.lastPayment = input
	if f.receipt != nil {
		return f.receipt, nil
	}
	return &billing.Receipt{ID: 1, PaymentID: 1}, nil
}

func (f *fakePort) GetReceipt(ctx context.Context, id int64) (*billing.Receipt, error) {
	if f.receipt == nil {
		return nil, upstream.ErrNotFound
	}
	return f.receipt, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
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

func lookupConfig() search.Config {
	return search.Config{Delay: time.Millisecond, MinQuery: 1}
}

func TestPayRefusedWithoutSignedInCashier(t *testing.T) {
	api := &fakePort{}
	h := NewHandler(testLogger(), api, nil, shared.NewCSRFManager("secret"), lookupConfig())

	sess := testSession(t)

	form := url.Values{"bill_id": {"7"}, "amount": {"1000"}, "method": {"cash"}}
	r := httptest.NewRequest(http.MethodPost, "/dashboard/payments", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r = r.WithContext(shared.ContextWithSession(r.Context(), sess))
	w := httptest.NewRecorder()

	h.handlePay(w, r)

	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "/", w.Header().Get("Location"))
	require.Equal(t, int32(0), api.paymentCalls.Load())
}

func TestPaySubmitsCashierFromSession(t *testing.T) {
	api := &fakePort{receipt: &billing.Receipt{ID: 42, PaymentID: 9}}
	h := NewHandler(testLogger(), api, nil, shared.NewCSRFManager("secret"), lookupConfig())

	sess := testSession(t)
	sess.SetIdentity(shared.Identity{Username: "grace", Role: "cashier", Token: "test-token"})

	form := url.Values{
		"bill_id":   {"7"},
		"amount":    {"1500.50"},
		"method":    {"mobile_money"},
		"reference": {"TXN-001"},
	}
	r := httptest.NewRequest(http.MethodPost, "/dashboard/payments", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r = r.WithContext(shared.ContextWithSession(r.Context(), sess))
	w := httptest.NewRecorder()

	h.handlePay(w, r)

	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "/dashboard/payments?receipt=42", w.Header().Get("Location"))
	require.Equal(t, int32(1), api.paymentCalls.Load())
	require.Equal(t, "grace", api.lastPayment.Username)
	require.Equal(t, int64(7), api.lastPayment.BillID)
	require.Equal(t, 1500.50, api.lastPayment.Amount)
	require.Equal(t, "TXN-001", api.lastPayment.Reference)
}

func TestPaySchedulesDashboardRefresh(t *testing.T) {
	api := &fakePort{receipt: &billing.Receipt{ID: 42, PaymentID: 9}}
	var refreshCalls atomic.Int32
	h := NewHandler(testLogger(), api, nil, shared.NewCSRFManager("secret"), lookupConfig()).
		WithRefresh(func(ctx context.Context) error {
			refreshCalls.Add(1)
			return nil
		})

	sess := testSession(t)
	sess.SetIdentity(shared.Identity{Username: "grace", Role: "cashier", Token: "test-token"})

	form := url.Values{"bill_id": {"7"}, "amount": {"1000"}, "method": {"cash"}}
	r := httptest.NewRequest(http.MethodPost, "/dashboard/payments", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r = r.WithContext(shared.ContextWithSession(r.Context(), sess))
	w := httptest.NewRecorder()

	h.handlePay(w, r)

	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, int32(1), refreshCalls.Load())
}

func TestPayRefusalSkipsDashboardRefresh(t *testing.T) {
	api := &fakePort{}
	var refreshCalls atomic.Int32
	h := NewHandler(testLogger(), api, nil, shared.NewCSRFManager("secret"), lookupConfig()).
		WithRefresh(func(ctx context.Context) error {
			refreshCalls.Add(1)
			return nil
		})

	sess := testSession(t)

	form := url.Values{"bill_id": {"7"}, "amount": {"1000"}, "method": {"cash"}}
	r := httptest.NewRequest(http.MethodPost, "/dashboard/payments", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r = r.WithContext(shared.ContextWithSession(r.Context(), sess))
	w := httptest.NewRecorder()

	h.handlePay(w, r)

	require.Equal(t, int32(0), refreshCalls.Load())
	require.Equal(t, int32(0), api.paymentCalls.Load())
}

func TestBillLookupSkipsPaidBills(t *testing.T) {
	api := &fakePort{bill: &billing.Bill{ID: 7, Status: billing.BillPaid, AmountDue: 1000}}
	h := NewHandler(testLogger(), api, nil, shared.NewCSRFManager("secret"), lookupConfig())

	sess := testSession(t)

	r := httptest.NewRequest(http.MethodGet, "/dashboard/payments/bill-lookup?q=7", nil)
	r = r.WithContext(shared.ContextWithSession(r.Context(), sess))
	w := httptest.NewRecorder()

	h.billLookupSearch(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var result billLookupResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.False(t, result.Found)
	require.Nil(t, result.Bill)
}

func TestBillLookupReturnsUnpaidBill(t *testing.T) {
	api := &fakePort{bill: &billing.Bill{ID: 7, Status: billing.BillUnpaid, AmountDue: 2500}}
	h := NewHandler(testLogger(), api, nil, shared.NewCSRFManager("secret"), lookupConfig())

	sess := testSession(t)

	r := httptest.NewRequest(http.MethodGet, "/dashboard/payments/bill-lookup?q=7", nil)
	r = r.WithContext(shared.ContextWithSession(r.Context(), sess))
	w := httptest.NewRecorder()

	h.billLookupSearch(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var result billLookupResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.True(t, result.Found)
	require.NotNil(t, result.Bill)
	require.Equal(t, 2500.0, result.Bill.AmountDue)
}

func TestBillLookupNotFoundDegradesToEmpty(t *testing.T) {
	api := &fakePort{}
	h := NewHandler(testLogger(), api, nil, shared.NewCSRFManager("secret"), lookupConfig())

	sess := testSession(t)

	r := httptest.NewRequest(http.MethodGet, "/dashboard/payments/bill-lookup?q=999", nil)
	r = r.WithContext(shared.ContextWithSession(r.Context(), sess))
	w := httptest.NewRecorder()

	h.billLookupSearch(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var result billLookupResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.False(t, result.Found)
}
