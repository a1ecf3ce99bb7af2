package ledger

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/veresiye/defter/internal/money"
	"github.com/veresiye/defter/internal/platform/httpx"
)

// ============================================================================
// CUSTOMER
// ============================================================================

// Customer is a person who runs a tab with the shop.
type Customer struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     string    `json:"phone"`
	Email     *string   `json:"email"`
	Address   *string   `json:"address"`
	Notes     *string   `json:"notes"`
	IsActive  bool      `json:"is_active"`
	CreatedBy *int64    `json:"created_by_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName joins first and last name.
func (c Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}

// CustomerWithTotals is a customer together with its derived ledger figures.
type CustomerWithTotals struct {
	Customer
	FullName  string       `json:"full_name"`
	TotalDebt money.Amount `json:"total_debt"`
	TotalPaid money.Amount `json:"total_paid"`
}

func withTotals(c Customer, t Totals) CustomerWithTotals {
	return CustomerWithTotals{
		Customer:  c,
		FullName:  c.FullName(),
		TotalDebt: t.TotalDebt,
		TotalPaid: t.TotalPaid,
	}
}

// CustomerFilter narrows customer listings.
type CustomerFilter struct {
	IsActive *bool
}

// ============================================================================
// DEBT
// ============================================================================

// DebtType tells whether a line is owed by the customer or to the customer.
type DebtType string

const (
	DebtTypeDebt   DebtType = "DEBT"
	DebtTypeCredit DebtType = "CREDIT"
)

// Valid reports whether t is a known debt type.
func (t DebtType) Valid() bool {
	return t == DebtTypeDebt || t == DebtTypeCredit
}

// Label returns the display name used by the admin screens.
func (t DebtType) Label() string {
	switch t {
	case DebtTypeDebt:
		return "Borç"
	case DebtTypeCredit:
		return "Alacak"
	default:
		return string(t)
	}
}

// Debt is a single debt or credit line against a customer.
type Debt struct {
	ID           int64        `json:"id"`
	CustomerID   int64        `json:"customer_id"`
	CustomerName string       `json:"customer_name,omitempty"`
	DebtType     DebtType     `json:"debt_type"`
	Amount       money.Amount `json:"amount"`
	Description  *string      `json:"description"`
	IsPaid       bool         `json:"is_paid"`
	PaidAt       *time.Time   `json:"paid_at"`
	PaidBy       *int64       `json:"paid_by_id"`
	DueDate      *Date        `json:"due_date"`
	CreatedBy    *int64       `json:"created_by_id"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// MarshalJSON adds the display label next to the raw debt type.
func (d Debt) MarshalJSON() ([]byte, error) {
	type plain Debt
	return json.Marshal(struct {
		plain
		DebtTypeDisplay string `json:"debt_type_display"`
	}{plain: plain(d), DebtTypeDisplay: d.DebtType.Label()})
}

// markPaid applies the unpaid -> paid transition. It reports false when the
// debt was already paid, in which case paid_at and paid_by are left alone.
func (d *Debt) markPaid(at time.Time, actor *int64) bool {
	if d.IsPaid {
		return false
	}
	paidAt := at
	d.IsPaid = true
	d.PaidAt = &paidAt
	d.PaidBy = actor
	return true
}

// markUnpaid clears the payment state unconditionally.
func (d *Debt) markUnpaid() {
	d.IsPaid = false
	d.PaidAt = nil
	d.PaidBy = nil
}

// DebtFilter narrows debt listings.
type DebtFilter struct {
	CustomerID *int64
	IsPaid     *bool
	DebtType   *DebtType
}

// ============================================================================
// DATE
// ============================================================================

const dateLayout = "2006-01-02"

// Date is a calendar day without time-of-day, encoded as "2006-01-02".
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day in UTC.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate reads a "2006-01-02" string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: due_date must be YYYY-MM-DD", httpx.ErrValidation)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: due_date must be a string", httpx.ErrValidation)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ============================================================================
// DASHBOARD
// ============================================================================

// DashboardStats summarises the whole ledger for the admin dashboard.
type DashboardStats struct {
	TotalCustomers   int          `json:"total_customers"`
	ActiveCustomers  int          `json:"active_customers"`
	TotalDebts       int          `json:"total_debts"`
	UnpaidDebtAmount money.Amount `json:"total_debt_amount"`
	PaidAmount       money.Amount `json:"total_paid_amount"`
}
