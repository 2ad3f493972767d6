// Package upstream is the HTTP client for the remote billing service. The
// service owns all business logic; this client only issues authenticated
// requests and decodes responses into the billing model.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/aquabill/aquabill-web/internal/billing"
	"github.com/aquabill/aquabill-web/internal/shared"
)

// ErrNotFound is returned when the service answers 404.
var ErrNotFound = errors.New("upstream: not found")

// APIError is a non-2xx response from the billing service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("upstream: %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream: unexpected status %d", e.StatusCode)
}

// Client issues requests against the billing service base URL. The zero
// token value sends unauthenticated requests; WithAuth derives a view that
// attaches a bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	observe    func(outcome string)
}

// NewClient constructs a Client for the given base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// WithAuth returns a request-scoped copy that sends the bearer token.
func (c *Client) WithAuth(token string) *Client {
	scoped := *c
	scoped.token = token
	return &scoped
}

// WithObserver registers a callback receiving the outcome of every call
// ("ok", "not_found" or "error").
func (c *Client) WithObserver(observe func(outcome string)) *Client {
	c.observe = observe
	return c
}

func (c *Client) observeOutcome(outcome string) {
	if c.observe != nil {
		c.observe(outcome)
	}
}

// resolveToken prefers an explicitly bound token, otherwise it borrows the
// token of the session travelling with the request context.
func (c *Client) resolveToken(ctx context.Context) string {
	if c.token != "" {
		return c.token
	}
	if ident, ok := shared.SessionFromContext(ctx).Identity(); ok {
		return ident.Token
	}
	return ""
}

// LoginResult is the response from /auth/login.
type LoginResult struct {
	AccessToken string `json:"access_token"`
	Username    string `json:"username"`
	Role        string `json:"role"`
}

// Login exchanges credentials for a token and role.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	body := map[string]string{"username": username, "password": password}
	var out LoginResult
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RegisterUserInput is the payload for /auth/register.
type RegisterUserInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role,omitempty"`
}

// RegisterUser creates an operator account on the billing service.
func (c *Client) RegisterUser(ctx context.Context, input RegisterUserInput) error {
	return c.do(ctx, http.MethodPost, "/auth/register", nil, input, nil)
}

// ListCustomers fetches all customers.
func (c *Client) ListCustomers(ctx context.Context) ([]billing.Customer, error) {
	var out []billing.Customer
	if err := c.do(ctx, http.MethodGet, "/customers/", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchCustomers runs the remote customer search.
func (c *Client) SearchCustomers(ctx context.Context, query string) ([]billing.Customer, error) {
	var out []billing.Customer
	q := url.Values{"q": {query}}
	if err := c.do(ctx, http.MethodGet, "/customers/search", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CustomerInput is the create-customer payload.
type CustomerInput struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
}

// CreateCustomer registers a new customer.
func (c *Client) CreateCustomer(ctx context.Context, input CustomerInput) error {
	return c.do(ctx, http.MethodPost, "/customers/", nil, input, nil)
}

// ListMeters fetches all meters.
func (c *Client) ListMeters(ctx context.Context) ([]billing.Meter, error) {
	var out []billing.Meter
	if err := c.do(ctx, http.MethodGet, "/meters/", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchMeters runs the remote meter search.
func (c *Client) SearchMeters(ctx context.Context, query string) ([]billing.Meter, error) {
	var out []billing.Meter
	q := url.Values{"q": {query}}
	if err := c.do(ctx, http.MethodGet, "/meters/search", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MeterInput is the create/update meter payload.
type MeterInput struct {
	MeterNo     string `json:"meter_no"`
	CustomerID  int64  `json:"customer_id"`
	InstalledAt string `json:"installed_at"`
	Status      string `json:"status"`
}

// CreateMeter registers a new meter.
func (c *Client) CreateMeter(ctx context.Context, input MeterInput) error {
	return c.do(ctx, http.MethodPost, "/meters/", nil, input, nil)
}

// UpdateMeter updates an existing meter.
func (c *Client) UpdateMeter(ctx context.Context, id int64, input MeterInput) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/meters/%d", id), nil, input, nil)
}

// ReadingInput is the submit-reading payload. Readings are write-only from
// this side; the service derives bills from them.
type ReadingInput struct {
	MeterID      int64   `json:"meter_id"`
	ReadingDate  string  `json:"reading_date"`
	ReadingValue float64 `json:"reading_value"`
}

// CreateReading submits a meter reading.
func (c *Client) CreateReading(ctx context.Context, input ReadingInput) error {
	return c.do(ctx, http.MethodPost, "/readings/", nil, input, nil)
}

// ListBillGroups fetches bills grouped per customer.
func (c *Client) ListBillGroups(ctx context.Context) ([]billing.CustomerBillGroup, error) {
	var out []billing.CustomerBillGroup
	if err := c.do(ctx, http.MethodGet, "/billing/bills/", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetBill fetches a single bill by id.
func (c *Client) GetBill(ctx context.Context, id int64) (*billing.Bill, error) {
	var out billing.Bill
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/billing/bills/%d", id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSettings fetches the rate configuration.
func (c *Client) GetSettings(ctx context.Context) (*billing.Settings, error) {
	var out billing.Settings
	if err := c.do(ctx, http.MethodGet, "/billing_settings/", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SettingsInput is the update payload for the rate configuration.
type SettingsInput struct {
	FixedCharge float64 `json:"fixed_charge"`
	RatePerUnit float64 `json:"rate_per_unit"`
}

// UpdateSettings updates the rate configuration.
func (c *Client) UpdateSettings(ctx context.Context, input SettingsInput) error {
	return c.do(ctx, http.MethodPut, "/billing_settings/", nil, input, nil)
}

// PaymentInput records a payment against a bill. Username identifies the
// cashier on the service side.
type PaymentInput struct {
	BillID    int64   `json:"bill_id"`
	Amount    float64 `json:"amount"`
	Method    string  `json:"method"`
	Username  string  `json:"username"`
	Reference string  `json:"reference,omitempty"`
}

// CreatePayment records a payment; the service answers with the receipt.
func (c *Client) CreatePayment(ctx context.Context, input PaymentInput) (*billing.Receipt, error) {
	var out billing.Receipt
	if err := c.do(ctx, http.MethodPost, "/payments/", nil, input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetReceipt fetches a receipt by payment or receipt id.
func (c *Client) GetReceipt(ctx context.Context, id int64) (*billing.Receipt, error) {
	var out billing.Receipt
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/receipts/%d", id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DashboardSummary fetches the landing page aggregate figures.
func (c *Client) DashboardSummary(ctx context.Context) (*billing.DashboardSummary, error) {
	var out billing.DashboardSummary
	if err := c.do(ctx, http.MethodGet, "/dashboard/summary", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DashboardMonthly fetches the monthly paid-vs-unpaid chart series.
func (c *Client) DashboardMonthly(ctx context.Context) ([]billing.MonthlyPoint, error) {
	var out []billing.MonthlyPoint
	if err := c.do(ctx, http.MethodGet, "/dashboard/monthly", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"msg"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("upstream: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("upstream: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.resolveToken(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observeOutcome("error")
		return fmt.Errorf("upstream: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.observeOutcome("not_found")
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.observeOutcome("error")
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var eb errorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err == nil {
			if eb.Error != "" {
				apiErr.Message = eb.Error
			} else {
				apiErr.Message = eb.Message
			}
		}
		return apiErr
	}

	c.observeOutcome("ok")

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("upstream: decode response: %w", err)
	}
	return nil
}
