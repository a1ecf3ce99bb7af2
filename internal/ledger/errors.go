package ledger

import (
	"errors"
	"fmt"

	"github.com/veresiye/defter/internal/platform/httpx"
)

var (
	// ErrNotFound is returned by the store when a row is absent.
	ErrNotFound = errors.New("ledger: row not found")
	// ErrPhoneConflict is returned by the store when customers_phone_key rejects a write.
	ErrPhoneConflict = fmt.Errorf("ledger: customers.phone: %w", httpx.ErrDuplicate)

	// ErrCustomerNotFound is the service-level not-found for customers.
	ErrCustomerNotFound = fmt.Errorf("customer: %w", httpx.ErrNotFound)
	// ErrActiveCustomerNotFound rejects debts against missing or inactive customers.
	ErrActiveCustomerNotFound = fmt.Errorf("active customer: %w", httpx.ErrNotFound)
	// ErrDebtNotFound is the service-level not-found for debts.
	ErrDebtNotFound = fmt.Errorf("debt: %w", httpx.ErrNotFound)
	// ErrPhoneTaken reports a phone already used by another customer.
	ErrPhoneTaken = &httpx.FieldErrors{Fields: map[string]string{
		"phone": "A customer with this phone number already exists.",
	}}
)

func fieldError(field, message string) error {
	return httpx.NewFieldErrors(field, message)
}

func notFound(err, domainErr error) error {
	if errors.Is(err, ErrNotFound) {
		return domainErr
	}
	return err
}
