package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/veresiye/defter/internal/platform/db"
)

const phoneConstraint = "customers_phone_key"

const customerColumns = `id, first_name, last_name, phone, email, address, notes, is_active, created_by, created_at, updated_at`

const debtSelect = `SELECT d.id, d.customer_id, c.first_name || ' ' || c.last_name, d.debt_type, d.amount,
       d.description, d.is_paid, d.paid_at, d.paid_by, d.due_date, d.created_by, d.created_at, d.updated_at
FROM debts d
JOIN customers c ON c.id = d.customer_id`

type queries struct {
	db querier
}

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Phone, &c.Email, &c.Address, &c.Notes,
		&c.IsActive, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	return c, err
}

func scanDebt(row pgx.Row) (Debt, error) {
	var (
		d        Debt
		debtType string
		due      pgtype.Date
	)
	err := row.Scan(&d.ID, &d.CustomerID, &d.CustomerName, &debtType, &d.Amount, &d.Description,
		&d.IsPaid, &d.PaidAt, &d.PaidBy, &due, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Debt{}, ErrNotFound
	}
	if err != nil {
		return Debt{}, err
	}
	d.DebtType = DebtType(debtType)
	if due.Valid {
		date := NewDate(due.Time)
		d.DueDate = &date
	}
	return d, nil
}

func dueDateArg(d *Date) pgtype.Date {
	if d == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: d.Time, Valid: true}
}

func collectCustomers(rows pgx.Rows) ([]Customer, error) {
	defer rows.Close()
	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func collectDebts(rows pgx.Rows) ([]Debt, error) {
	defer rows.Close()
	var out []Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ============================================================================
// CUSTOMERS
// ============================================================================

func (q queries) getCustomer(ctx context.Context, id int64, forUpdate bool) (Customer, error) {
	sql := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	return scanCustomer(q.db.QueryRow(ctx, sql, id))
}

func (q queries) getCustomerByPhone(ctx context.Context, phone string) (Customer, error) {
	sql := `SELECT ` + customerColumns + ` FROM customers WHERE phone = $1`
	return scanCustomer(q.db.QueryRow(ctx, sql, strings.TrimSpace(phone)))
}

func (q queries) listCustomers(ctx context.Context, filter CustomerFilter) ([]Customer, error) {
	sql := `SELECT ` + customerColumns + ` FROM customers WHERE ($1::boolean IS NULL OR is_active = $1) ORDER BY created_at DESC, id DESC`
	rows, err := q.db.Query(ctx, sql, filter.IsActive)
	if err != nil {
		return nil, err
	}
	return collectCustomers(rows)
}

func (q queries) searchCustomers(ctx context.Context, query string) ([]Customer, error) {
	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"
	sql := `SELECT ` + customerColumns + ` FROM customers
WHERE first_name ILIKE $1 OR last_name ILIKE $1 OR phone ILIKE $1 OR COALESCE(email, '') ILIKE $1
ORDER BY created_at DESC, id DESC`
	rows, err := q.db.Query(ctx, sql, pattern)
	if err != nil {
		return nil, err
	}
	return collectCustomers(rows)
}

func (q queries) phoneTaken(ctx context.Context, phone string, excludeID int64) (bool, error) {
	var taken bool
	err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE phone = $1 AND id <> $2)`, phone, excludeID).Scan(&taken)
	return taken, err
}

func (q queries) insertCustomer(ctx context.Context, c Customer) (Customer, error) {
	sql := `INSERT INTO customers (first_name, last_name, phone, email, address, notes, is_active, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + customerColumns
	out, err := scanCustomer(q.db.QueryRow(ctx, sql, c.FirstName, c.LastName, c.Phone, c.Email, c.Address, c.Notes, c.IsActive, c.CreatedBy))
	if db.IsUniqueViolation(err, phoneConstraint) {
		return Customer{}, ErrPhoneConflict
	}
	return out, err
}

func (q queries) updateCustomer(ctx context.Context, c Customer) (Customer, error) {
	sql := `UPDATE customers
SET first_name = $2, last_name = $3, phone = $4, email = $5, address = $6, notes = $7, is_active = $8, updated_at = NOW()
WHERE id = $1
RETURNING ` + customerColumns
	out, err := scanCustomer(q.db.QueryRow(ctx, sql, c.ID, c.FirstName, c.LastName, c.Phone, c.Email, c.Address, c.Notes, c.IsActive))
	if db.IsUniqueViolation(err, phoneConstraint) {
		return Customer{}, ErrPhoneConflict
	}
	return out, err
}

func (q queries) setCustomerActive(ctx context.Context, id int64, active bool) error {
	tag, err := q.db.Exec(ctx, `UPDATE customers SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ============================================================================
// DEBTS
// ============================================================================

func (q queries) getDebt(ctx context.Context, id int64, forUpdate bool) (Debt, error) {
	sql := debtSelect + ` WHERE d.id = $1`
	if forUpdate {
		sql += ` FOR UPDATE OF d`
	}
	return scanDebt(q.db.QueryRow(ctx, sql, id))
}

func (q queries) listDebts(ctx context.Context, filter DebtFilter) ([]Debt, error) {
	var debtType *string
	if filter.DebtType != nil {
		s := string(*filter.DebtType)
		debtType = &s
	}
	sql := debtSelect + `
WHERE ($1::bigint IS NULL OR d.customer_id = $1)
  AND ($2::boolean IS NULL OR d.is_paid = $2)
  AND ($3::text IS NULL OR d.debt_type = $3)
ORDER BY d.created_at DESC, d.id DESC`
	rows, err := q.db.Query(ctx, sql, filter.CustomerID, filter.IsPaid, debtType)
	if err != nil {
		return nil, err
	}
	return collectDebts(rows)
}

func (q queries) debtsForCustomers(ctx context.Context, customerIDs []int64) (map[int64][]Debt, error) {
	out := make(map[int64][]Debt, len(customerIDs))
	if len(customerIDs) == 0 {
		return out, nil
	}
	rows, err := q.db.Query(ctx, debtSelect+` WHERE d.customer_id = ANY($1) ORDER BY d.created_at DESC, d.id DESC`, customerIDs)
	if err != nil {
		return nil, err
	}
	debts, err := collectDebts(rows)
	if err != nil {
		return nil, err
	}
	for _, d := range debts {
		out[d.CustomerID] = append(out[d.CustomerID], d)
	}
	return out, nil
}

func (q queries) listOverdueDebts(ctx context.Context, asOf Date) ([]Debt, error) {
	sql := debtSelect + `
WHERE d.is_paid = FALSE AND d.debt_type = 'DEBT' AND d.due_date < $1 AND c.is_active = TRUE
ORDER BY d.due_date, d.id`
	rows, err := q.db.Query(ctx, sql, dueDateArg(&asOf))
	if err != nil {
		return nil, err
	}
	return collectDebts(rows)
}

func (q queries) insertDebt(ctx context.Context, d Debt) (Debt, error) {
	var id int64
	err := q.db.QueryRow(ctx, `INSERT INTO debts (customer_id, debt_type, amount, description, is_paid, paid_at, paid_by, due_date, created_by)
VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9)
RETURNING id`,
		d.CustomerID, string(d.DebtType), d.Amount.String(), d.Description, d.IsPaid, d.PaidAt, d.PaidBy, dueDateArg(d.DueDate), d.CreatedBy,
	).Scan(&id)
	if err != nil {
		return Debt{}, fmt.Errorf("insert debt: %w", err)
	}
	return q.getDebt(ctx, id, false)
}

func (q queries) updateDebt(ctx context.Context, d Debt) (Debt, error) {
	tag, err := q.db.Exec(ctx, `UPDATE debts
SET debt_type = $2, amount = $3::numeric, description = $4, is_paid = $5, paid_at = $6, paid_by = $7, due_date = $8, updated_at = NOW()
WHERE id = $1`,
		d.ID, string(d.DebtType), d.Amount.String(), d.Description, d.IsPaid, d.PaidAt, d.PaidBy, dueDateArg(d.DueDate),
	)
	if err != nil {
		return Debt{}, fmt.Errorf("update debt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Debt{}, ErrNotFound
	}
	return q.getDebt(ctx, d.ID, false)
}

func (q queries) setPaid(ctx context.Context, d Debt) (Debt, error) {
	var paidAt *time.Time
	if d.PaidAt != nil {
		t := d.PaidAt.UTC()
		paidAt = &t
	}
	tag, err := q.db.Exec(ctx, `UPDATE debts SET is_paid = $2, paid_at = $3, paid_by = $4, updated_at = NOW() WHERE id = $1`,
		d.ID, d.IsPaid, paidAt, d.PaidBy)
	if err != nil {
		return Debt{}, fmt.Errorf("set paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Debt{}, ErrNotFound
	}
	return q.getDebt(ctx, d.ID, false)
}

func (q queries) deleteDebt(ctx context.Context, id int64) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM debts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
