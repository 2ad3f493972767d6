// Package billing mirrors the data model served by the remote billing
// service. The service owns every entity's lifecycle; these types exist so
// the front office can decode, group and render what it fetched.
package billing

// BillStatus enumerates bill statuses as reported by the billing service.
type BillStatus string

const (
	BillUnpaid BillStatus = "unpaid"
	BillPaid   BillStatus = "paid"
)

// MeterStatus enumerates meter statuses.
type MeterStatus string

const (
	MeterActive   MeterStatus = "active"
	MeterInactive MeterStatus = "inactive"
)

// Customer is an account holder with a running balance.
type Customer struct {
	ID        int64   `json:"id"`
	AccountNo string  `json:"account_no"`
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Phone     string  `json:"phone"`
	Email     string  `json:"email"`
	Balance   float64 `json:"balance"`
}

// Meter is a metering point owned by one customer.
type Meter struct {
	ID          int64       `json:"id"`
	MeterNo     string      `json:"meter_no"`
	CustomerID  int64       `json:"customer_id"`
	InstalledAt string      `json:"installed_at"`
	Status      MeterStatus `json:"status"`
}

// Bill is one computed charge for a meter-reading period.
type Bill struct {
	ID              int64      `json:"id"`
	CustomerID      int64      `json:"customer_id"`
	Customer        string     `json:"customer"`
	ReadingID       int64      `json:"reading_id"`
	MeterNumber     string     `json:"meter_number"`
	BillingStart    string     `json:"billing_start"`
	BillingEnd      string     `json:"billing_end"`
	PreviousReading float64    `json:"previous_reading"`
	TotalReading    float64    `json:"total_reading"`
	Consumption     float64    `json:"consumption"`
	FixedCharge     float64    `json:"fixed_charge"`
	VariableCharge  float64    `json:"variable_charge"`
	AmountDue       float64    `json:"amount_due"`
	DueDate         string     `json:"due_date"`
	Status          BillStatus `json:"status"`
}

// CustomerBillGroup aggregates all bills belonging to one customer with the
// customer's outstanding total. This is the shape /billing/bills/ returns and
// the structure the view-model operates on.
type CustomerBillGroup struct {
	CustomerID     int64   `json:"customer_id"`
	Customer       string  `json:"customer"`
	TotalAmountDue float64 `json:"total_amount_due"`
	BillingPeriod  string  `json:"billing_period"`
	Bills          []Bill  `json:"bills"`
}

// Settings holds the fixed/variable rate configuration.
type Settings struct {
	ID          int64   `json:"id"`
	FixedCharge float64 `json:"fixed_charge"`
	RatePerUnit float64 `json:"rate_per_unit"`
	UpdatedAt   string  `json:"updated_at"`
}

// ReceiptData is the immutable snapshot embedded in a receipt.
type ReceiptData struct {
	Customer   string  `json:"customer"`
	BillID     int64   `json:"bill_id"`
	AmountPaid float64 `json:"amount_paid"`
	Method     string  `json:"method"`
	Cashier    string  `json:"cashier"`
	Datetime   string  `json:"datetime"`
	Reference  string  `json:"reference"`
}

// Receipt confirms a recorded payment.
type Receipt struct {
	ID          int64       `json:"id"`
	PaymentID   int64       `json:"payment_id"`
	ReceiptNo   string      `json:"receipt_no"`
	IssuedAt    string      `json:"issued_at"`
	ReceiptData ReceiptData `json:"receipt_data"`
}

// DashboardSummary carries the landing page aggregate figures.
type DashboardSummary struct {
	TotalCustomers int64   `json:"total_customers"`
	TotalPaid      float64 `json:"total_paid"`
	TotalUnpaid    float64 `json:"total_unpaid"`
	TotalPayments  int64   `json:"total_payments"`
}

// MonthlyPoint is one month of the paid-vs-unpaid chart series.
type MonthlyPoint struct {
	Month  string  `json:"month"`
	Paid   float64 `json:"paid"`
	Unpaid float64 `json:"unpaid"`
}
