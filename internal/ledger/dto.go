package ledger

import (
	"strings"

	"github.com/veresiye/defter/internal/money"
	"github.com/veresiye/defter/internal/shared"
)

// MaxDebtAmount is the largest amount NUMERIC(12,2) can hold.
var MaxDebtAmount = money.MustParse("9999999999.99")

// CustomerInput carries the full set of writable customer fields.
type CustomerInput struct {
	FirstName string  `json:"first_name" validate:"required,max=100"`
	LastName  string  `json:"last_name" validate:"required,max=100"`
	Phone     string  `json:"phone" validate:"required,min=10,max=20"`
	Email     *string `json:"email" validate:"omitempty,email,max=254"`
	Address   *string `json:"address"`
	Notes     *string `json:"notes"`
	IsActive  *bool   `json:"is_active"`
}

func (in *CustomerInput) normalize() {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = shared.TrimPtr(in.Email)
	in.Address = shared.TrimPtr(in.Address)
	in.Notes = shared.TrimPtr(in.Notes)
}

func (in CustomerInput) apply(c *Customer) {
	c.FirstName = in.FirstName
	c.LastName = in.LastName
	c.Phone = in.Phone
	c.Email = in.Email
	c.Address = in.Address
	c.Notes = in.Notes
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}
}

// CustomerPatch carries a partial customer update; nil fields are left alone.
type CustomerPatch struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
	Email     *string `json:"email"`
	Address   *string `json:"address"`
	Notes     *string `json:"notes"`
	IsActive  *bool   `json:"is_active"`
}

func (p CustomerPatch) merge(c Customer) CustomerInput {
	in := CustomerInput{
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Phone:     c.Phone,
		Email:     c.Email,
		Address:   c.Address,
		Notes:     c.Notes,
		IsActive:  &c.IsActive,
	}
	if p.FirstName != nil {
		in.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		in.LastName = *p.LastName
	}
	if p.Phone != nil {
		in.Phone = *p.Phone
	}
	if p.Email != nil {
		in.Email = p.Email
	}
	if p.Address != nil {
		in.Address = p.Address
	}
	if p.Notes != nil {
		in.Notes = p.Notes
	}
	if p.IsActive != nil {
		in.IsActive = p.IsActive
	}
	return in
}

// DebtInput carries the fields of a new debt line.
type DebtInput struct {
	CustomerID  int64        `json:"customer_id" validate:"required,gt=0"`
	DebtType    DebtType     `json:"debt_type" validate:"omitempty,oneof=DEBT CREDIT"`
	Amount      money.Amount `json:"amount"`
	Description *string      `json:"description"`
	IsPaid      bool         `json:"is_paid"`
	DueDate     *Date        `json:"due_date"`
}

func (in *DebtInput) normalize() {
	if in.DebtType == "" {
		in.DebtType = DebtTypeDebt
	}
	in.Description = shared.TrimPtr(in.Description)
}

// DebtUpdate carries the full set of editable debt fields. The owning
// customer cannot be changed.
type DebtUpdate struct {
	DebtType    DebtType     `json:"debt_type" validate:"required,oneof=DEBT CREDIT"`
	Amount      money.Amount `json:"amount"`
	Description *string      `json:"description"`
	IsPaid      bool         `json:"is_paid"`
	DueDate     *Date        `json:"due_date"`
}

// DebtPatch carries a partial debt update; nil fields are left alone.
type DebtPatch struct {
	DebtType    *DebtType     `json:"debt_type"`
	Amount      *money.Amount `json:"amount"`
	Description *string       `json:"description"`
	IsPaid      *bool         `json:"is_paid"`
	DueDate     *Date         `json:"due_date"`
}

func (p DebtPatch) merge(d Debt) DebtUpdate {
	up := DebtUpdate{
		DebtType:    d.DebtType,
		Amount:      d.Amount,
		Description: d.Description,
		IsPaid:      d.IsPaid,
		DueDate:     d.DueDate,
	}
	if p.DebtType != nil {
		up.DebtType = *p.DebtType
	}
	if p.Amount != nil {
		up.Amount = *p.Amount
	}
	if p.Description != nil {
		up.Description = p.Description
	}
	if p.IsPaid != nil {
		up.IsPaid = *p.IsPaid
	}
	if p.DueDate != nil {
		up.DueDate = p.DueDate
	}
	return up
}

func validateAmount(a money.Amount) error {
	if !a.IsPositive() {
		return fieldError("amount", "Ensure this value is greater than or equal to 0.01.")
	}
	if a.Cmp(MaxDebtAmount) > 0 {
		return fieldError("amount", "Ensure that there are no more than 12 digits in total.")
	}
	return nil
}
