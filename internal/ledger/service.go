package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/veresiye/defter/internal/platform/httpx"
	"github.com/veresiye/defter/internal/shared"
)

// IdempotencyModuleDebtCreate scopes idempotency keys of debt creation.
const IdempotencyModuleDebtCreate = "ledger.debt.create"

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort records processed request keys.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// EventRecorder counts ledger mutations.
type EventRecorder interface {
	LedgerEvent(event string)
}

// Ledger events reported to EventRecorder.
const (
	EventCustomerCreated     = "customer_created"
	EventCustomerDeactivated = "customer_deactivated"
	EventDebtCreated         = "debt_created"
	EventDebtUpdated         = "debt_updated"
	EventDebtDeleted         = "debt_deleted"
	EventDebtPaid            = "debt_paid"
	EventDebtUnpaid          = "debt_unpaid"
)

// Service coordinates ledger operations.
type Service struct {
	repo        RepositoryPort
	cache       *TotalsCache
	audit       AuditPort
	idempotency IdempotencyPort
	events      EventRecorder
	validator   *shared.Validator
	now         func() time.Time
}

// NewService constructs the ledger service. cache, audit, idem and events may be nil.
func NewService(repo RepositoryPort, cache *TotalsCache, audit AuditPort, idem IdempotencyPort, events EventRecorder) *Service {
	return &Service{
		repo:        repo,
		cache:       cache,
		audit:       audit,
		idempotency: idem,
		events:      events,
		validator:   shared.NewValidator(),
		now:         time.Now,
	}
}

// ============================================================================
// CUSTOMER OPERATIONS
// ============================================================================

// CreateCustomer stores a new active customer. A phone used by any customer,
// active or not, is rejected.
func (s *Service) CreateCustomer(ctx context.Context, in CustomerInput, actor *int64) (CustomerWithTotals, error) {
	in.normalize()
	if err := s.validator.Struct(in); err != nil {
		return CustomerWithTotals{}, err
	}
	customer := Customer{IsActive: true, CreatedBy: actor}
	in.apply(&customer)

	var created Customer
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		taken, err := tx.PhoneTaken(ctx, customer.Phone, 0)
		if err != nil {
			return err
		}
		if taken {
			return ErrPhoneTaken
		}
		created, err = tx.CreateCustomer(ctx, customer)
		return err
	})
	if err != nil {
		return CustomerWithTotals{}, writeError("create customer", err)
	}
	s.emit(EventCustomerCreated)
	return withTotals(created, Totals{}), nil
}

// GetCustomer returns a customer with its totals regardless of active state.
func (s *Service) GetCustomer(ctx context.Context, id int64) (CustomerWithTotals, error) {
	c, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return CustomerWithTotals{}, readError("get customer", notFound(err, ErrCustomerNotFound))
	}
	return s.attachTotal(ctx, c)
}

// GetCustomerByPhone looks a customer up by its trimmed phone.
func (s *Service) GetCustomerByPhone(ctx context.Context, phone string) (CustomerWithTotals, error) {
	c, err := s.repo.GetCustomerByPhone(ctx, phone)
	if err != nil {
		return CustomerWithTotals{}, readError("get customer by phone", notFound(err, ErrCustomerNotFound))
	}
	return s.attachTotal(ctx, c)
}

// UpdateCustomer replaces every writable field of the customer. An omitted
// is_active resets to true.
func (s *Service) UpdateCustomer(ctx context.Context, id int64, in CustomerInput) (CustomerWithTotals, error) {
	if in.IsActive == nil {
		active := true
		in.IsActive = &active
	}
	return s.saveCustomer(ctx, id, func(Customer) CustomerInput { return in })
}

// PatchCustomer updates only the fields present in p.
func (s *Service) PatchCustomer(ctx context.Context, id int64, p CustomerPatch) (CustomerWithTotals, error) {
	return s.saveCustomer(ctx, id, p.merge)
}

func (s *Service) saveCustomer(ctx context.Context, id int64, build func(Customer) CustomerInput) (CustomerWithTotals, error) {
	var updated Customer
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetCustomerForUpdate(ctx, id)
		if err != nil {
			return notFound(err, ErrCustomerNotFound)
		}
		in := build(current)
		in.normalize()
		if err := s.validator.Struct(in); err != nil {
			return err
		}
		taken, err := tx.PhoneTaken(ctx, in.Phone, id)
		if err != nil {
			return err
		}
		if taken {
			return ErrPhoneTaken
		}
		in.apply(&current)
		updated, err = tx.UpdateCustomer(ctx, current)
		return err
	})
	if err != nil {
		return CustomerWithTotals{}, writeError("update customer", err)
	}
	return s.attachTotal(ctx, updated)
}

// DeactivateCustomer soft deletes the customer. Deactivating an inactive
// customer succeeds without touching it.
func (s *Service) DeactivateCustomer(ctx context.Context, id int64, actor *int64) (bool, error) {
	changed := false
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.GetCustomerForUpdate(ctx, id)
		if err != nil {
			return notFound(err, ErrCustomerNotFound)
		}
		if !c.IsActive {
			return nil
		}
		changed = true
		return tx.SetCustomerActive(ctx, id, false)
	})
	if err != nil {
		return false, writeError("deactivate customer", err)
	}
	if changed {
		s.emit(EventCustomerDeactivated)
		s.record(ctx, actor, "customer.deactivate", "customer", id, nil)
	}
	return true, nil
}

// ListCustomers lists customers, all of them when isActive is nil.
func (s *Service) ListCustomers(ctx context.Context, isActive *bool) ([]CustomerWithTotals, error) {
	customers, err := s.repo.ListCustomers(ctx, CustomerFilter{IsActive: isActive})
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return s.attachTotals(ctx, customers)
}

// SearchCustomers matches query case-insensitively against first name, last
// name, phone and email.
func (s *Service) SearchCustomers(ctx context.Context, query string) ([]CustomerWithTotals, error) {
	customers, err := s.repo.SearchCustomers(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search customers: %w", err)
	}
	return s.attachTotals(ctx, customers)
}

// CustomerTotals returns the aggregates of one customer.
func (s *Service) CustomerTotals(ctx context.Context, id int64) (Totals, error) {
	if _, err := s.repo.GetCustomer(ctx, id); err != nil {
		return Totals{}, readError("get customer", notFound(err, ErrCustomerNotFound))
	}
	totals, err := s.totals(ctx, []int64{id})
	if err != nil {
		return Totals{}, err
	}
	return totals[id], nil
}

func (s *Service) attachTotal(ctx context.Context, c Customer) (CustomerWithTotals, error) {
	totals, err := s.totals(ctx, []int64{c.ID})
	if err != nil {
		return CustomerWithTotals{}, err
	}
	return withTotals(c, totals[c.ID]), nil
}

func (s *Service) attachTotals(ctx context.Context, customers []Customer) ([]CustomerWithTotals, error) {
	ids := make([]int64, len(customers))
	for i, c := range customers {
		ids[i] = c.ID
	}
	totals, err := s.totals(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]CustomerWithTotals, len(customers))
	for i, c := range customers {
		out[i] = withTotals(c, totals[c.ID])
	}
	return out, nil
}

func (s *Service) totals(ctx context.Context, ids []int64) (map[int64]Totals, error) {
	totals, err := s.cache.Load(ctx, ids, s.loadTotals)
	if err != nil {
		return nil, fmt.Errorf("load totals: %w", err)
	}
	return totals, nil
}

func (s *Service) loadTotals(ctx context.Context, ids []int64) (map[int64]Totals, error) {
	debts, err := s.repo.DebtsForCustomers(ctx, ids)
	if err != nil {
		return nil, err
	}
	return summarizeByCustomer(ids, debts), nil
}

// ============================================================================
// DEBT OPERATIONS
// ============================================================================

// CreateDebt adds a line to an active customer's ledger. A line created as
// paid goes through the mark-paid transition in the same transaction. A
// non-empty idempotencyKey makes replays fail with a conflict.
func (s *Service) CreateDebt(ctx context.Context, in DebtInput, actor *int64, idempotencyKey string) (Debt, error) {
	in.normalize()
	if err := s.validator.Struct(in); err != nil {
		return Debt{}, err
	}
	if err := validateAmount(in.Amount); err != nil {
		return Debt{}, err
	}

	if idempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idempotencyKey, IdempotencyModuleDebtCreate); err != nil {
			return Debt{}, err
		}
	}

	var created Debt
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		customer, err := tx.GetCustomerForUpdate(ctx, in.CustomerID)
		if err != nil {
			return notFound(err, ErrActiveCustomerNotFound)
		}
		if !customer.IsActive {
			return ErrActiveCustomerNotFound
		}
		debt := Debt{
			CustomerID:  in.CustomerID,
			DebtType:    in.DebtType,
			Amount:      in.Amount,
			Description: in.Description,
			DueDate:     in.DueDate,
			CreatedBy:   actor,
		}
		if in.IsPaid {
			debt.markPaid(s.now(), actor)
		}
		created, err = tx.CreateDebt(ctx, debt)
		return err
	})
	if err != nil {
		if idempotencyKey != "" && s.idempotency != nil {
			_ = s.idempotency.Delete(ctx, idempotencyKey)
		}
		return Debt{}, writeError("create debt", err)
	}

	s.invalidate(ctx, created.CustomerID)
	s.emit(EventDebtCreated)
	if created.IsPaid {
		s.emit(EventDebtPaid)
	}
	return created, nil
}

// GetDebt returns one debt line.
func (s *Service) GetDebt(ctx context.Context, id int64) (Debt, error) {
	d, err := s.repo.GetDebt(ctx, id)
	if err != nil {
		return Debt{}, readError("get debt", notFound(err, ErrDebtNotFound))
	}
	return d, nil
}

// ListDebts lists debt lines matching filter, newest first.
func (s *Service) ListDebts(ctx context.Context, filter DebtFilter) ([]Debt, error) {
	if filter.DebtType != nil && !filter.DebtType.Valid() {
		return nil, fieldError("debt_type", "Select a valid choice.")
	}
	debts, err := s.repo.ListDebts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list debts: %w", err)
	}
	return debts, nil
}

// ListCustomerDebts lists the ledger of one customer, active or not.
func (s *Service) ListCustomerDebts(ctx context.Context, customerID int64, isPaid *bool) ([]Debt, error) {
	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		return nil, readError("get customer", notFound(err, ErrCustomerNotFound))
	}
	return s.ListDebts(ctx, DebtFilter{CustomerID: &customerID, IsPaid: isPaid})
}

// ListOverdueDebts lists unpaid DEBT lines of active customers due before asOf.
func (s *Service) ListOverdueDebts(ctx context.Context, asOf time.Time) ([]Debt, error) {
	debts, err := s.repo.ListOverdueDebts(ctx, NewDate(asOf))
	if err != nil {
		return nil, fmt.Errorf("list overdue debts: %w", err)
	}
	return debts, nil
}

// UpdateDebt replaces every editable field of the debt. Flipping is_paid
// applies the matching payment transition.
func (s *Service) UpdateDebt(ctx context.Context, id int64, up DebtUpdate, actor *int64) (Debt, error) {
	return s.saveDebt(ctx, id, func(Debt) DebtUpdate { return up }, actor)
}

// PatchDebt updates only the fields present in p.
func (s *Service) PatchDebt(ctx context.Context, id int64, p DebtPatch, actor *int64) (Debt, error) {
	return s.saveDebt(ctx, id, p.merge, actor)
}

func (s *Service) saveDebt(ctx context.Context, id int64, build func(Debt) DebtUpdate, actor *int64) (Debt, error) {
	var (
		updated    Debt
		paidBefore bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetDebtForUpdate(ctx, id)
		if err != nil {
			return notFound(err, ErrDebtNotFound)
		}
		paidBefore = current.IsPaid
		up := build(current)
		up.Description = shared.TrimPtr(up.Description)
		if err := s.validator.Struct(up); err != nil {
			return err
		}
		if err := validateAmount(up.Amount); err != nil {
			return err
		}
		current.DebtType = up.DebtType
		current.Amount = up.Amount
		current.Description = up.Description
		current.DueDate = up.DueDate
		if up.IsPaid {
			current.markPaid(s.now(), actor)
		} else {
			current.markUnpaid()
		}
		updated, err = tx.UpdateDebt(ctx, current)
		return err
	})
	if err != nil {
		return Debt{}, writeError("update debt", err)
	}
	s.invalidate(ctx, updated.CustomerID)
	s.emit(EventDebtUpdated)
	switch {
	case updated.IsPaid && !paidBefore:
		s.emit(EventDebtPaid)
		s.record(ctx, actor, "debt.mark_paid", "debt", id, map[string]any{"amount": updated.Amount.String()})
	case !updated.IsPaid && paidBefore:
		s.emit(EventDebtUnpaid)
		s.record(ctx, actor, "debt.mark_unpaid", "debt", id, map[string]any{"amount": updated.Amount.String()})
	}
	return updated, nil
}

// DeleteDebt removes the line permanently.
func (s *Service) DeleteDebt(ctx context.Context, id int64, actor *int64) error {
	var deleted Debt
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		deleted, err = tx.GetDebtForUpdate(ctx, id)
		if err != nil {
			return notFound(err, ErrDebtNotFound)
		}
		return notFound(tx.DeleteDebt(ctx, id), ErrDebtNotFound)
	})
	if err != nil {
		return writeError("delete debt", err)
	}
	s.invalidate(ctx, deleted.CustomerID)
	s.emit(EventDebtDeleted)
	s.record(ctx, actor, "debt.delete", "debt", id, map[string]any{
		"customer_id": deleted.CustomerID,
		"debt_type":   string(deleted.DebtType),
		"amount":      deleted.Amount.String(),
		"is_paid":     deleted.IsPaid,
	})
	return nil
}

// MarkPaid moves the debt to paid. An already paid debt is returned as is;
// paid_at and paid_by keep the values of the first transition.
func (s *Service) MarkPaid(ctx context.Context, id int64, actor *int64) (Debt, error) {
	var (
		result  Debt
		changed bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		d, err := tx.GetDebtForUpdate(ctx, id)
		if err != nil {
			return notFound(err, ErrDebtNotFound)
		}
		if changed = d.markPaid(s.now(), actor); !changed {
			result = d
			return nil
		}
		result, err = tx.SetPaid(ctx, d)
		return err
	})
	if err != nil {
		return Debt{}, writeError("mark debt paid", err)
	}
	if changed {
		s.invalidate(ctx, result.CustomerID)
		s.emit(EventDebtPaid)
		s.record(ctx, actor, "debt.mark_paid", "debt", id, map[string]any{"amount": result.Amount.String()})
	}
	return result, nil
}

// MarkUnpaid clears the payment state. It always writes, even when the debt
// is already unpaid.
func (s *Service) MarkUnpaid(ctx context.Context, id int64, actor *int64) (Debt, error) {
	var (
		result  Debt
		wasPaid bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		d, err := tx.GetDebtForUpdate(ctx, id)
		if err != nil {
			return notFound(err, ErrDebtNotFound)
		}
		wasPaid = d.IsPaid
		d.markUnpaid()
		result, err = tx.SetPaid(ctx, d)
		return err
	})
	if err != nil {
		return Debt{}, writeError("mark debt unpaid", err)
	}
	s.invalidate(ctx, result.CustomerID)
	if wasPaid {
		s.emit(EventDebtUnpaid)
		s.record(ctx, actor, "debt.mark_unpaid", "debt", id, map[string]any{"amount": result.Amount.String()})
	}
	return result, nil
}

// ============================================================================
// DASHBOARD
// ============================================================================

// Stats summarises the whole ledger. Amounts follow the per-customer rules.
func (s *Service) Stats(ctx context.Context) (DashboardStats, error) {
	customers, err := s.repo.ListCustomers(ctx, CustomerFilter{})
	if err != nil {
		return DashboardStats{}, fmt.Errorf("stats customers: %w", err)
	}
	debts, err := s.repo.ListDebts(ctx, DebtFilter{})
	if err != nil {
		return DashboardStats{}, fmt.Errorf("stats debts: %w", err)
	}
	stats := DashboardStats{TotalCustomers: len(customers), TotalDebts: len(debts)}
	for _, c := range customers {
		if c.IsActive {
			stats.ActiveCustomers++
		}
	}
	totals := Summarize(debts)
	stats.UnpaidDebtAmount = totals.TotalDebt
	stats.PaidAmount = totals.TotalPaid
	return stats, nil
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *Service) invalidate(ctx context.Context, customerID int64) {
	_ = s.cache.Invalidate(ctx, customerID)
}

func (s *Service) emit(event string) {
	if s.events != nil {
		s.events.LedgerEvent(event)
	}
}

func (s *Service) record(ctx context.Context, actor *int64, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now(),
	})
}

// writeError maps store conflicts to their validation form and wraps
// unexpected failures with op. Domain errors pass through untouched.
func writeError(op string, err error) error {
	if errors.Is(err, ErrPhoneConflict) {
		return ErrPhoneTaken
	}
	return readError(op, err)
}

func readError(op string, err error) error {
	if isDomainError(err) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isDomainError(err error) bool {
	for _, target := range []error{httpx.ErrValidation, httpx.ErrNotFound, httpx.ErrDuplicate} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
