package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aquabill/aquabill-web/internal/billing"
)

func TestLoginDecodesTokenAndRole(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/login", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "chikondi", body["username"])

		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": "tok-123",
			"username":     "chikondi",
			"role":         "cashier",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	res, err := client.Login(context.Background(), "chikondi", "secret")
	require.NoError(t, err)
	require.Equal(t, "tok-123", res.AccessToken)
	require.Equal(t, "cashier", res.Role)
}

func TestWithAuthAttachesBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode([]billing.Meter{})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	_, err := client.WithAuth("tok-456").ListMeters(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer tok-456", gotAuth)

	// The base client stays unauthenticated.
	_, err = client.ListMeters(context.Background())
	require.NoError(t, err)
	require.Empty(t, gotAuth)
}

func TestGetReceiptNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Receipt not found"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	_, err := client.GetReceipt(context.Background(), 999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAPIErrorCarriesServiceMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Missing required fields"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	err := client.CreateMeter(context.Background(), MeterInput{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	require.Contains(t, apiErr.Message, "Missing required fields")
}

func TestListBillGroupsDecodesGroups(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/billing/bills/", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]billing.CustomerBillGroup{
			{
				CustomerID:     1,
				Customer:       "Banda",
				TotalAmountDue: 1000,
				Bills: []billing.Bill{
					{ID: 10, AmountDue: 1000, Status: billing.BillUnpaid, MeterNumber: "MW-0001"},
				},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	groups, err := client.ListBillGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, "Banda", groups[0].Customer)
	require.Equal(t, billing.BillUnpaid, groups[0].Bills[0].Status)
}

func TestSearchCustomersEncodesQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/customers/search", r.URL.Path)
		require.Equal(t, "ban da", r.URL.Query().Get("q"))
		_ = json.NewEncoder(w).Encode([]billing.Customer{{ID: 1, Name: "Banda"}})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	customers, err := client.SearchCustomers(context.Background(), "ban da")
	require.NoError(t, err)
	require.Len(t, customers, 1)
}
