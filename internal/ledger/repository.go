package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veresiye/defter/internal/platform/db"
)

// RepositoryPort is the storage contract the ledger service depends on.
// Gets report a missing row with ErrNotFound.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetCustomer(ctx context.Context, id int64) (Customer, error)
	GetCustomerByPhone(ctx context.Context, phone string) (Customer, error)
	ListCustomers(ctx context.Context, filter CustomerFilter) ([]Customer, error)
	SearchCustomers(ctx context.Context, query string) ([]Customer, error)

	GetDebt(ctx context.Context, id int64) (Debt, error)
	ListDebts(ctx context.Context, filter DebtFilter) ([]Debt, error)
	// DebtsForCustomers returns every debt of the given customers read in one statement.
	DebtsForCustomers(ctx context.Context, customerIDs []int64) (map[int64][]Debt, error)
	ListOverdueDebts(ctx context.Context, asOf Date) ([]Debt, error)
}

// TxRepository exposes the writes performed inside a single transaction.
type TxRepository interface {
	GetCustomerForUpdate(ctx context.Context, id int64) (Customer, error)
	// PhoneTaken reports whether phone belongs to a customer other than excludeID.
	PhoneTaken(ctx context.Context, phone string, excludeID int64) (bool, error)
	CreateCustomer(ctx context.Context, c Customer) (Customer, error)
	UpdateCustomer(ctx context.Context, c Customer) (Customer, error)
	SetCustomerActive(ctx context.Context, id int64, active bool) error

	GetDebtForUpdate(ctx context.Context, id int64) (Debt, error)
	CreateDebt(ctx context.Context, d Debt) (Debt, error)
	UpdateDebt(ctx context.Context, d Debt) (Debt, error)
	// SetPaid writes is_paid, paid_at and paid_by in one statement.
	SetPaid(ctx context.Context, d Debt) (Debt, error)
	DeleteDebt(ctx context.Context, id int64) error
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists the ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	q    queries
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, q: queries{db: pool}}
}

type txRepo struct {
	q queries
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{q: queries{db: tx}})
	})
}

func (r *Repository) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	return r.q.getCustomer(ctx, id, false)
}

func (r *Repository) GetCustomerByPhone(ctx context.Context, phone string) (Customer, error) {
	return r.q.getCustomerByPhone(ctx, phone)
}

func (r *Repository) ListCustomers(ctx context.Context, filter CustomerFilter) ([]Customer, error) {
	return r.q.listCustomers(ctx, filter)
}

func (r *Repository) SearchCustomers(ctx context.Context, query string) ([]Customer, error) {
	return r.q.searchCustomers(ctx, query)
}

func (r *Repository) GetDebt(ctx context.Context, id int64) (Debt, error) {
	return r.q.getDebt(ctx, id, false)
}

func (r *Repository) ListDebts(ctx context.Context, filter DebtFilter) ([]Debt, error) {
	return r.q.listDebts(ctx, filter)
}

func (r *Repository) DebtsForCustomers(ctx context.Context, customerIDs []int64) (map[int64][]Debt, error) {
	return r.q.debtsForCustomers(ctx, customerIDs)
}

func (r *Repository) ListOverdueDebts(ctx context.Context, asOf Date) ([]Debt, error) {
	return r.q.listOverdueDebts(ctx, asOf)
}

func (t *txRepo) GetCustomerForUpdate(ctx context.Context, id int64) (Customer, error) {
	return t.q.getCustomer(ctx, id, true)
}

func (t *txRepo) PhoneTaken(ctx context.Context, phone string, excludeID int64) (bool, error) {
	return t.q.phoneTaken(ctx, phone, excludeID)
}

func (t *txRepo) CreateCustomer(ctx context.Context, c Customer) (Customer, error) {
	return t.q.insertCustomer(ctx, c)
}

func (t *txRepo) UpdateCustomer(ctx context.Context, c Customer) (Customer, error) {
	return t.q.updateCustomer(ctx, c)
}

func (t *txRepo) SetCustomerActive(ctx context.Context, id int64, active bool) error {
	return t.q.setCustomerActive(ctx, id, active)
}

func (t *txRepo) GetDebtForUpdate(ctx context.Context, id int64) (Debt, error) {
	return t.q.getDebt(ctx, id, true)
}

func (t *txRepo) CreateDebt(ctx context.Context, d Debt) (Debt, error) {
	return t.q.insertDebt(ctx, d)
}

func (t *txRepo) UpdateDebt(ctx context.Context, d Debt) (Debt, error) {
	return t.q.updateDebt(ctx, d)
}

func (t *txRepo) SetPaid(ctx context.Context, d Debt) (Debt, error) {
	return t.q.setPaid(ctx, d)
}

func (t *txRepo) DeleteDebt(ctx context.Context, id int64) error {
	return t.q.deleteDebt(ctx, id)
}
