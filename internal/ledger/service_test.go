package ledger

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veresiye/defter/internal/money"
	"github.com/veresiye/defter/internal/platform/httpx"
	"github.com/veresiye/defter/internal/shared"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	customers      map[int64]Customer
	debts          map[int64]Debt
	nextCustomerID int64
	nextDebtID     int64
	clock          time.Time

	// Error injection
	txError         error
	createDebtError error
	skipPhoneCheck  bool
	debtsForCalls   int
	setPaidCalls    int
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		customers:      make(map[int64]Customer),
		debts:          make(map[int64]Debt),
		nextCustomerID: 1,
		nextDebtID:     1,
		clock:          fixedNow(),
	}
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
}

func (m *mockRepository) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

// WithTx snapshots state and restores it when fn fails.
func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if m.txError != nil {
		return m.txError
	}
	customers := make(map[int64]Customer, len(m.customers))
	for k, v := range m.customers {
		customers[k] = v
	}
	debts := make(map[int64]Debt, len(m.debts))
	for k, v := range m.debts {
		debts[k] = v
	}
	if err := fn(ctx, &mockTxRepo{mock: m}); err != nil {
		m.customers = customers
		m.debts = debts
		return err
	}
	return nil
}

func (m *mockRepository) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return Customer{}, ErrNotFound
	}
	return c, nil
}

func (m *mockRepository) GetCustomerByPhone(ctx context.Context, phone string) (Customer, error) {
	for _, c := range m.customers {
		if c.Phone == strings.TrimSpace(phone) {
			return c, nil
		}
	}
	return Customer{}, ErrNotFound
}

func (m *mockRepository) ListCustomers(ctx context.Context, filter CustomerFilter) ([]Customer, error) {
	var out []Customer
	for _, c := range m.customers {
		if filter.IsActive != nil && c.IsActive != *filter.IsActive {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *mockRepository) SearchCustomers(ctx context.Context, query string) ([]Customer, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []Customer
	for _, c := range m.customers {
		email := ""
		if c.Email != nil {
			email = *c.Email
		}
		for _, field := range []string{c.FirstName, c.LastName, c.Phone, email} {
			if strings.Contains(strings.ToLower(field), q) {
				out = append(out, c)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *mockRepository) GetDebt(ctx context.Context, id int64) (Debt, error) {
	d, ok := m.debts[id]
	if !ok {
		return Debt{}, ErrNotFound
	}
	return d, nil
}

func (m *mockRepository) ListDebts(ctx context.Context, filter DebtFilter) ([]Debt, error) {
	var out []Debt
	for _, d := range m.debts {
		if filter.CustomerID != nil && d.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.IsPaid != nil && d.IsPaid != *filter.IsPaid {
			continue
		}
		if filter.DebtType != nil && d.DebtType != *filter.DebtType {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *mockRepository) DebtsForCustomers(ctx context.Context, ids []int64) (map[int64][]Debt, error) {
	m.debtsForCalls++
	wanted := make(map[int64]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	out := make(map[int64][]Debt)
	for _, d := range m.debts {
		if wanted[d.CustomerID] {
			out[d.CustomerID] = append(out[d.CustomerID], d)
		}
	}
	return out, nil
}

func (m *mockRepository) ListOverdueDebts(ctx context.Context, asOf Date) ([]Debt, error) {
	var out []Debt
	for _, d := range m.debts {
		c := m.customers[d.CustomerID]
		if d.IsPaid || d.DebtType != DebtTypeDebt || d.DueDate == nil || !c.IsActive {
			continue
		}
		if d.DueDate.Before(asOf.Time) {
			out = append(out, d)
		}
	}
	return out, nil
}

type mockTxRepo struct {
	mock *mockRepository
}

func (t *mockTxRepo) GetCustomerForUpdate(ctx context.Context, id int64) (Customer, error) {
	return t.mock.GetCustomer(ctx, id)
}

func (t *mockTxRepo) PhoneTaken(ctx context.Context, phone string, excludeID int64) (bool, error) {
	if t.mock.skipPhoneCheck {
		return false, nil
	}
	for _, c := range t.mock.customers {
		if c.Phone == phone && c.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

// phoneConflict emulates the unique constraint on customers.phone.
func (t *mockTxRepo) phoneConflict(c Customer) bool {
	for _, existing := range t.mock.customers {
		if existing.Phone == c.Phone && existing.ID != c.ID {
			return true
		}
	}
	return false
}

func (t *mockTxRepo) CreateCustomer(ctx context.Context, c Customer) (Customer, error) {
	if t.phoneConflict(c) {
		return Customer{}, ErrPhoneConflict
	}
	c.ID = t.mock.nextCustomerID
	t.mock.nextCustomerID++
	c.CreatedAt = t.mock.tick()
	c.UpdatedAt = c.CreatedAt
	t.mock.customers[c.ID] = c
	return c, nil
}

func (t *mockTxRepo) UpdateCustomer(ctx context.Context, c Customer) (Customer, error) {
	if _, ok := t.mock.customers[c.ID]; !ok {
		return Customer{}, ErrNotFound
	}
	if t.phoneConflict(c) {
		return Customer{}, ErrPhoneConflict
	}
	c.UpdatedAt = t.mock.tick()
	t.mock.customers[c.ID] = c
	return c, nil
}

func (t *mockTxRepo) SetCustomerActive(ctx context.Context, id int64, active bool) error {
	c, ok := t.mock.customers[id]
	if !ok {
		return ErrNotFound
	}
	c.IsActive = active
	t.mock.customers[id] = c
	return nil
}

func (t *mockTxRepo) GetDebtForUpdate(ctx context.Context, id int64) (Debt, error) {
	return t.mock.GetDebt(ctx, id)
}

func (t *mockTxRepo) CreateDebt(ctx context.Context, d Debt) (Debt, error) {
	if t.mock.createDebtError != nil {
		return Debt{}, t.mock.createDebtError
	}
	d.ID = t.mock.nextDebtID
	t.mock.nextDebtID++
	d.CustomerName = t.mock.customers[d.CustomerID].FullName()
	d.CreatedAt = t.mock.tick()
	d.UpdatedAt = d.CreatedAt
	t.mock.debts[d.ID] = d
	return d, nil
}

func (t *mockTxRepo) UpdateDebt(ctx context.Context, d Debt) (Debt, error) {
	if _, ok := t.mock.debts[d.ID]; !ok {
		return Debt{}, ErrNotFound
	}
	d.UpdatedAt = t.mock.tick()
	t.mock.debts[d.ID] = d
	return d, nil
}

func (t *mockTxRepo) SetPaid(ctx context.Context, d Debt) (Debt, error) {
	t.mock.setPaidCalls++
	current, ok := t.mock.debts[d.ID]
	if !ok {
		return Debt{}, ErrNotFound
	}
	current.IsPaid = d.IsPaid
	current.PaidAt = d.PaidAt
	current.PaidBy = d.PaidBy
	current.UpdatedAt = t.mock.tick()
	t.mock.debts[d.ID] = current
	return current, nil
}

func (t *mockTxRepo) DeleteDebt(ctx context.Context, id int64) error {
	if _, ok := t.mock.debts[id]; !ok {
		return ErrNotFound
	}
	delete(t.mock.debts, id)
	return nil
}

// ============================================================================
// MOCK PORTS
// ============================================================================

type mockAudit struct {
	logs []shared.AuditLog
}

func (a *mockAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func (a *mockAudit) actions() []string {
	out := make([]string, len(a.logs))
	for i, l := range a.logs {
		out[i] = l.Action
	}
	return out
}

type mockIdempotency struct {
	keys    map[string]string
	deleted []string
}

func newMockIdempotency() *mockIdempotency {
	return &mockIdempotency{keys: make(map[string]string)}
}

func (i *mockIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	if _, ok := i.keys[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	i.keys[key] = module
	return nil
}

func (i *mockIdempotency) Delete(ctx context.Context, key string) error {
	delete(i.keys, key)
	i.deleted = append(i.deleted, key)
	return nil
}

type mockEvents struct {
	counts map[string]int
}

func (e *mockEvents) LedgerEvent(event string) {
	if e.counts == nil {
		e.counts = make(map[string]int)
	}
	e.counts[event]++
}

// ============================================================================
// HELPERS
// ============================================================================

type fixture struct {
	repo   *mockRepository
	audit  *mockAudit
	idem   *mockIdempotency
	events *mockEvents
	svc    *Service
}

func newFixture() *fixture {
	f := &fixture{
		repo:   newMockRepository(),
		audit:  &mockAudit{},
		idem:   newMockIdempotency(),
		events: &mockEvents{},
	}
	f.svc = NewService(f.repo, nil, f.audit, f.idem, f.events)
	f.svc.now = fixedNow
	return f
}

func actorID(id int64) *int64 { return &id }

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }

func (f *fixture) customer(t *testing.T, phone string) CustomerWithTotals {
	t.Helper()
	c, err := f.svc.CreateCustomer(context.Background(), CustomerInput{
		FirstName: "Ayşe",
		LastName:  "Yılmaz",
		Phone:     phone,
	}, actorID(1))
	require.NoError(t, err)
	return c
}

func (f *fixture) debt(t *testing.T, customerID int64, typ DebtType, amount string, paid bool) Debt {
	t.Helper()
	d, err := f.svc.CreateDebt(context.Background(), DebtInput{
		CustomerID: customerID,
		DebtType:   typ,
		Amount:     money.MustParse(amount),
		IsPaid:     paid,
	}, actorID(1), "")
	require.NoError(t, err)
	return d
}

func (f *fixture) totals(t *testing.T, customerID int64) (string, string) {
	t.Helper()
	c, err := f.svc.GetCustomer(context.Background(), customerID)
	require.NoError(t, err)
	return c.TotalDebt.String(), c.TotalPaid.String()
}

// ============================================================================
// CUSTOMER TESTS
// ============================================================================

func TestCreateCustomerNormalizesInput(t *testing.T) {
	f := newFixture()
	c, err := f.svc.CreateCustomer(context.Background(), CustomerInput{
		FirstName: "  Mehmet ",
		LastName:  "Demir",
		Phone:     "  5551112233  ",
		Email:     strPtr("   "),
	}, actorID(4))
	require.NoError(t, err)

	assert.Equal(t, "5551112233", c.Phone)
	assert.Equal(t, "Mehmet Demir", c.FullName)
	assert.Nil(t, c.Email, "blank email stored as null")
	assert.True(t, c.IsActive)
	assert.Equal(t, int64(4), *c.CreatedBy)
	assert.Equal(t, "0.00", c.TotalDebt.String())
	assert.Equal(t, "0.00", c.TotalPaid.String())
	assert.Equal(t, 1, f.events.counts[EventCustomerCreated])
}

func TestCreateCustomerRejectsShortPhone(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CreateCustomer(context.Background(), CustomerInput{
		FirstName: "Ali",
		LastName:  "Kaya",
		Phone:     "  555123  ",
	}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, httpx.ErrValidation))

	var fe *httpx.FieldErrors
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, fe.Fields, "phone")
	assert.Empty(t, f.repo.customers)
}

func TestCreateCustomerDuplicatePhoneAcrossInactive(t *testing.T) {
	f := newFixture()
	first := f.customer(t, "5551112233")
	_, err := f.svc.DeactivateCustomer(context.Background(), first.ID, nil)
	require.NoError(t, err)

	_, err = f.svc.CreateCustomer(context.Background(), CustomerInput{
		FirstName: "Other",
		LastName:  "Person",
		Phone:     " 5551112233",
	}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPhoneTaken))
	assert.True(t, errors.Is(err, httpx.ErrValidation))
	assert.Len(t, f.repo.customers, 1)
}

func TestCreateCustomerStoreConflictBecomesValidation(t *testing.T) {
	f := newFixture()
	f.customer(t, "5551112233")
	f.repo.skipPhoneCheck = true

	_, err := f.svc.CreateCustomer(context.Background(), CustomerInput{
		FirstName: "Race",
		LastName:  "Loser",
		Phone:     "5551112233",
	}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPhoneTaken))
	assert.False(t, errors.Is(err, httpx.ErrDuplicate))
	assert.Len(t, f.repo.customers, 1)
}

func TestUpdateCustomer(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	a := f.customer(t, "5551112233")
	b := f.customer(t, "5559998877")

	t.Run("self phone allowed", func(t *testing.T) {
		updated, err := f.svc.UpdateCustomer(ctx, a.ID, CustomerInput{
			FirstName: "Ayşe",
			LastName:  "Kara",
			Phone:     "5551112233",
			Notes:     strPtr("düzenli müşteri"),
		})
		require.NoError(t, err)
		assert.Equal(t, "Ayşe Kara", updated.FullName)
		assert.Equal(t, "düzenli müşteri", *updated.Notes)
		assert.True(t, updated.IsActive)
	})

	t.Run("full update without is_active reactivates", func(t *testing.T) {
		_, err := f.svc.PatchCustomer(ctx, a.ID, CustomerPatch{IsActive: boolPtr(false)})
		require.NoError(t, err)
		require.False(t, f.repo.customers[a.ID].IsActive)

		updated, err := f.svc.UpdateCustomer(ctx, a.ID, CustomerInput{
			FirstName: "Ayşe",
			LastName:  "Kara",
			Phone:     "5551112233",
		})
		require.NoError(t, err)
		assert.True(t, updated.IsActive)

		updated, err = f.svc.UpdateCustomer(ctx, a.ID, CustomerInput{
			FirstName: "Ayşe",
			LastName:  "Kara",
			Phone:     "5551112233",
			IsActive:  boolPtr(false),
		})
		require.NoError(t, err)
		assert.False(t, updated.IsActive)

		_, err = f.svc.PatchCustomer(ctx, a.ID, CustomerPatch{IsActive: boolPtr(true)})
		require.NoError(t, err)
	})

	t.Run("collision with other customer", func(t *testing.T) {
		_, err := f.svc.UpdateCustomer(ctx, a.ID, CustomerInput{
			FirstName: "Ayşe",
			LastName:  "Kara",
			Phone:     b.Phone,
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrPhoneTaken))
		assert.Equal(t, "5551112233", f.repo.customers[a.ID].Phone, "failed update leaves record intact")
		assert.Equal(t, "Kara", f.repo.customers[a.ID].LastName)
	})

	t.Run("missing customer", func(t *testing.T) {
		_, err := f.svc.UpdateCustomer(ctx, 999, CustomerInput{FirstName: "x", LastName: "y", Phone: "5550000000"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrCustomerNotFound))
		assert.True(t, errors.Is(err, httpx.ErrNotFound))
	})

	t.Run("patch keeps other fields", func(t *testing.T) {
		patched, err := f.svc.PatchCustomer(ctx, b.ID, CustomerPatch{Email: strPtr("b@example.com")})
		require.NoError(t, err)
		assert.Equal(t, "b@example.com", *patched.Email)
		assert.Equal(t, b.Phone, patched.Phone)
		assert.Equal(t, b.FirstName, patched.FirstName)
	})

	t.Run("patch rejects invalid email", func(t *testing.T) {
		_, err := f.svc.PatchCustomer(ctx, b.ID, CustomerPatch{Email: strPtr("not-an-email")})
		require.Error(t, err)
		assert.True(t, errors.Is(err, httpx.ErrValidation))
		assert.Equal(t, "b@example.com", *f.repo.customers[b.ID].Email)
	})
}

func TestDeactivateCustomerIsIdempotentAndKeepsLedger(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := f.customer(t, "5551112233")
	f.debt(t, c.ID, DebtTypeDebt, "100.00", false)
	f.debt(t, c.ID, DebtTypeDebt, "50.00", true)

	ok, err := f.svc.DeactivateCustomer(ctx, c.ID, actorID(2))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.svc.DeactivateCustomer(ctx, c.ID, actorID(2))
	require.NoError(t, err)
	assert.True(t, ok)

	assert.False(t, f.repo.customers[c.ID].IsActive)
	assert.Len(t, f.repo.debts, 2)
	debt, paid := f.totals(t, c.ID)
	assert.Equal(t, "100.00", debt)
	assert.Equal(t, "50.00", paid)
	assert.Equal(t, 1, f.events.counts[EventCustomerDeactivated])
	assert.Equal(t, []string{"customer.deactivate"}, f.audit.actions())
}

func TestDeactivateMissingCustomer(t *testing.T) {
	f := newFixture()
	_, err := f.svc.DeactivateCustomer(context.Background(), 42, nil)
	assert.True(t, errors.Is(err, ErrCustomerNotFound))
}

func TestListAndSearchCustomers(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	a := f.customer(t, "5551112233")
	_, err := f.svc.CreateCustomer(ctx, CustomerInput{
		FirstName: "Hasan",
		LastName:  "Öztürk",
		Phone:     "5324445566",
		Email:     strPtr("hasan@ornek.com"),
	}, nil)
	require.NoError(t, err)
	_, err = f.svc.DeactivateCustomer(ctx, a.ID, nil)
	require.NoError(t, err)

	all, err := f.svc.ListCustomers(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := f.svc.ListCustomers(ctx, boolPtr(true))
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Hasan", active[0].FirstName)

	inactive, err := f.svc.ListCustomers(ctx, boolPtr(false))
	require.NoError(t, err)
	require.Len(t, inactive, 1)
	assert.Equal(t, a.ID, inactive[0].ID)

	byEmail, err := f.svc.SearchCustomers(ctx, "ORNEK")
	require.NoError(t, err)
	require.Len(t, byEmail, 1)
	assert.Equal(t, "Hasan", byEmail[0].FirstName)

	byPhone, err := f.svc.SearchCustomers(ctx, "1112")
	require.NoError(t, err)
	require.Len(t, byPhone, 1)
	assert.Equal(t, a.ID, byPhone[0].ID)

	none, err := f.svc.SearchCustomers(ctx, "zzz")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetCustomerByPhone(t *testing.T) {
	f := newFixture()
	c := f.customer(t, "5551112233")

	got, err := f.svc.GetCustomerByPhone(context.Background(), " 5551112233 ")
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)

	_, err = f.svc.GetCustomerByPhone(context.Background(), "5550000000")
	assert.True(t, errors.Is(err, ErrCustomerNotFound))
}

// ============================================================================
// DEBT TESTS
// ============================================================================

func TestLedgerScenarios(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := f.customer(t, "5551112233")

	// Scenario A
	f.debt(t, c.ID, DebtTypeDebt, "100.00", false)
	f.debt(t, c.ID, DebtTypeDebt, "50.00", true)
	debt, paid := f.totals(t, c.ID)
	assert.Equal(t, "100.00", debt)
	assert.Equal(t, "50.00", paid)

	// Scenario B
	credit := f.debt(t, c.ID, DebtTypeCredit, "30.00", false)
	debt, paid = f.totals(t, c.ID)
	assert.Equal(t, "100.00", debt)
	assert.Equal(t, "50.00", paid)

	// Scenario C
	_, err := f.svc.MarkPaid(ctx, credit.ID, actorID(3))
	require.NoError(t, err)
	debt, paid = f.totals(t, c.ID)
	assert.Equal(t, "100.00", debt)
	assert.Equal(t, "80.00", paid)

	// Scenario D
	_, err = f.svc.CreateDebt(ctx, DebtInput{CustomerID: c.ID, Amount: money.MustParse("0.00")}, nil, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, httpx.ErrValidation))
	assert.Len(t, f.repo.debts, 3)

	// Scenario E
	e := f.debt(t, c.ID, DebtTypeDebt, "12.50", true)
	require.NotNil(t, e.PaidAt)
	assert.Equal(t, fixedNow(), *e.PaidAt)
	assert.Equal(t, int64(1), *e.PaidBy)
}

func TestCreateDebtDefaultsAndValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := f.customer(t, "5551112233")
	due, err := ParseDate("2026-04-01")
	require.NoError(t, err)

	d, err := f.svc.CreateDebt(ctx, DebtInput{
		CustomerID:  c.ID,
		Amount:      money.MustParse("10"),
		Description: strPtr("  ekmek  "),
		DueDate:     &due,
	}, actorID(2), "")
	require.NoError(t, err)
	assert.Equal(t, DebtTypeDebt, d.DebtType)
	assert.Equal(t, "10.00", d.Amount.String())
	assert.Equal(t, "ekmek", *d.Description)
	assert.False(t, d.IsPaid)
	assert.Nil(t, d.PaidAt)
	assert.Nil(t, d.PaidBy)
	assert.Equal(t, "2026-04-01", d.DueDate.String())
	assert.Equal(t, "Ayşe Yılmaz", d.CustomerName)

	_, err = f.svc.CreateDebt(ctx, DebtInput{CustomerID: c.ID, DebtType: "LOAN", Amount: money.MustParse("1")}, nil, "")
	assert.True(t, errors.Is(err, httpx.ErrValidation))

	_, err = f.svc.CreateDebt(ctx, DebtInput{CustomerID: c.ID, Amount: money.MustParse("10000000000.00")}, nil, "")
	assert.True(t, errors.Is(err, httpx.ErrValidation))

	_, err = f.svc.CreateDebt(ctx, DebtInput{CustomerID: c.ID, Amount: money.MustParse("0.01")}, nil, "")
	assert.NoError(t, err)
}

func TestCreateDebtRequiresActiveCustomer(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := f.customer(t, "5551112233")

	_, err := f.svc.CreateDebt(ctx, DebtInput{CustomerID: 77, Amount: money.MustParse("5")}, nil, "")
	assert.True(t, errors.Is(err, ErrActiveCustomerNotFound))
	assert.True(t, errors.Is(err, httpx.ErrNotFound))

	_, err = f.svc.DeactivateCustomer(ctx, c.ID, nil)
	require.NoError(t, err)
	_, err = f.svc.CreateDebt(ctx, DebtInput{CustomerID: c.ID, Amount: money.MustParse("5")}, nil, "")
	assert.True(t, errors.Is(err, ErrActiveCustomerNotFound))
	assert.Empty(t, f.repo.debts)
}

func TestCreateDebtIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := f.customer(t, "5551112233")
	in := DebtInput{CustomerID: c.ID, Amount: money.MustParse("5")}

	_, err := f.svc.CreateDebt(ctx, in, nil, "req-1")
	require.NoError(t, err)
	assert.Equal(t, IdempotencyModuleDebtCreate, f.idem.keys["req-1"])

	_, err = f.svc.CreateDebt(ctx, in, nil, "req-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrIdempotencyConflict))
	assert.True(t, errors.Is(err, httpx.ErrDuplicate))
	assert.Len(t, f.repo.debts, 1)

	f.repo.createDebtError = errors.New("db down")
	_, err = f.svc.CreateDebt(ctx, in, nil, "req-2")
	require.Error(t, err)
	assert.Contains(t, f.idem.deleted, "req-2", "failed create releases its key")
	assert.NotContains(t, f.idem.keys, "req-2")
}

func TestMarkPaidIsIdempotentWithoutRefresh(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := f.customer(t, "5551112233")
	d := f.debt(t, c.ID, DebtTypeDebt, "40.00", false)

	first, err := f.svc.MarkPaid(ctx, d.ID, actorID(5))
	require.NoError(t, err)
	require.True(t, first.IsPaid)
	assert.Equal(t, fixedNow(), *first.PaidAt)
	assert.Equal(t, int64(5), *first.PaidBy)

	f.svc.now = func() time.Time { return fixedNow().Add(time.Hour) }
	calls := f.repo.setPaidCalls
	second, err := f.svc.MarkPaid(ctx, d.ID, actorID(6))
	require.NoError(t, err)
	assert.True(t, second.IsPaid)
	assert.Equal(t, fixedNow(), *second.PaidAt)
	assert.Equal(t, int64(5), *second.PaidBy)
	assert.Equal(t, calls, f.repo.setPaidCalls, "no write for an already paid debt")
	assert.Equal(t, 1, f.events.counts[EventDebtPaid])
}

func TestMarkUnpaidTwiceEqualsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := f.customer(t, "5551112233")
	d := f.debt(t, c.ID, DebtTypeDebt, "40.00", true)

	once, err := f.svc.MarkUnpaid(ctx, d.ID, nil)
	require.NoError(t, err)
	twice, err := f.svc.MarkUnpaid(ctx, d.ID, nil)
	require.NoError(t, err)

	for _, got := range []Debt{once, twice} {
		assert.False(t, got.IsPaid)
		assert.Nil(t, got.PaidAt)
		assert.Nil(t, got.PaidBy)
	}
	assert.Equal(t, 1, f.events.counts[EventDebtUnpaid])
}

func TestPaymentTransitionsOnMissingDebt(t *testing.T) {
	f := newFixture()
	_, err := f.svc.MarkPaid(context.Background(), 9, nil)
	assert.True(t, errors.Is(err, ErrDebtNotFound))
	_, err = f.svc.MarkUnpaid(context.Background(), 9, nil)
	assert.True(t, errors.Is(err, ErrDebtNotFound))
	err = f.svc.DeleteDebt(context.Background(), 9, nil)
	assert.True(t, errors.Is(err, ErrDebtNotFound))
	_, err = f.svc.GetDebt(context.Background(), 9)
	assert.True(t, errors.Is(err, httpx.ErrNotFound))
}

func TestUpdateDebtFlipsPaymentState(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := f.customer(t, "5551112233")
	d := f.debt(t, c.ID, DebtTypeDebt, "40.00", false)

	updated, err := f.svc.UpdateDebt(ctx, d.ID, DebtUpdate{
		DebtType: DebtTypeCredit,
		Amount:   money.MustParse("45.50"),
		IsPaid:   true,
	}, actorID(8))
	require.NoError(t, err)
	assert.Equal(t, DebtTypeCredit, updated.DebtType)
	assert.Equal(t, "45.50", updated.Amount.String())
	require.NotNil(t, updated.PaidAt)
	assert.Equal(t, int64(8), *updated.PaidBy)

	patched, err := f.svc.PatchDebt(ctx, d.ID, DebtPatch{IsPaid: boolPtr(false)}, nil)
	require.NoError(t, err)
	assert.False(t, patched.IsPaid)
	assert.Nil(t, patched.PaidAt)
	assert.Nil(t, patched.PaidBy)
	assert.Equal(t, "45.50", patched.Amount.String(), "patch keeps amount")

	_, err = f.svc.PatchDebt(ctx, d.ID, DebtPatch{Amount: ptrAmount("0")}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, httpx.ErrValidation))
	assert.Equal(t, "45.50", f.repo.debts[d.ID].Amount.String(), "failed update leaves debt intact")

	assert.Contains(t, f.audit.actions(), "debt.mark_paid")
	assert.Contains(t, f.audit.actions(), "debt.mark_unpaid")
}

func ptrAmount(s string) *money.Amount {
	a := money.MustParse(s)
	return &a
}

func TestDeleteDebtRemovesFromTotals(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := f.customer(t, "5551112233")
	d := f.debt(t, c.ID, DebtTypeDebt, "40.00", false)
	f.debt(t, c.ID, DebtTypeDebt, "2.00", false)

	require.NoError(t, f.svc.DeleteDebt(ctx, d.ID, actorID(1)))
	debt, _ := f.totals(t, c.ID)
	assert.Equal(t, "2.00", debt)
	assert.Contains(t, f.audit.actions(), "debt.delete")
}

func TestListDebtsFilters(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	a := f.customer(t, "5551112233")
	b := f.customer(t, "5559998877")
	f.debt(t, a.ID, DebtTypeDebt, "1.00", false)
	f.debt(t, a.ID, DebtTypeCredit, "2.00", true)
	f.debt(t, b.ID, DebtTypeDebt, "3.00", true)

	credit := DebtTypeCredit
	got, err := f.svc.ListDebts(ctx, DebtFilter{DebtType: &credit})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2.00", got[0].Amount.String())

	got, err = f.svc.ListCustomerDebts(ctx, a.ID, boolPtr(true))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, DebtTypeCredit, got[0].DebtType)

	got, err = f.svc.ListDebts(ctx, DebtFilter{IsPaid: boolPtr(true)})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	bad := DebtType("LOAN")
	_, err = f.svc.ListDebts(ctx, DebtFilter{DebtType: &bad})
	assert.True(t, errors.Is(err, httpx.ErrValidation))

	_, err = f.svc.ListCustomerDebts(ctx, 404, nil)
	assert.True(t, errors.Is(err, ErrCustomerNotFound))
}

func TestListOverdueDebts(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := f.customer(t, "5551112233")
	past, _ := ParseDate("2026-02-01")
	future, _ := ParseDate("2026-05-01")
	for _, in := range []DebtInput{
		{CustomerID: c.ID, Amount: money.MustParse("1"), DueDate: &past},
		{CustomerID: c.ID, Amount: money.MustParse("2"), DueDate: &future},
		{CustomerID: c.ID, Amount: money.MustParse("3"), DueDate: &past, IsPaid: true},
		{CustomerID: c.ID, Amount: money.MustParse("4"), DueDate: &past, DebtType: DebtTypeCredit},
	} {
		_, err := f.svc.CreateDebt(ctx, in, nil, "")
		require.NoError(t, err)
	}

	overdue, err := f.svc.ListOverdueDebts(ctx, fixedNow())
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "1.00", overdue[0].Amount.String())
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	a := f.customer(t, "5551112233")
	b := f.customer(t, "5559998877")
	f.debt(t, a.ID, DebtTypeDebt, "100.00", false)
	f.debt(t, a.ID, DebtTypeCredit, "30.00", false)
	f.debt(t, b.ID, DebtTypeDebt, "50.00", true)
	_, err := f.svc.DeactivateCustomer(ctx, b.ID, nil)
	require.NoError(t, err)

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalCustomers)
	assert.Equal(t, 1, stats.ActiveCustomers)
	assert.Equal(t, 3, stats.TotalDebts)
	assert.Equal(t, "100.00", stats.UnpaidDebtAmount.String())
	assert.Equal(t, "50.00", stats.PaidAmount.String())
}

// TestAggregationPropertyAcrossOperations replays a fixed operation sequence
// and checks the service totals against a direct recomputation after each step.
func TestAggregationPropertyAcrossOperations(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := f.customer(t, "5551112233")

	check := func(step string) {
		var debts []Debt
		for _, d := range f.repo.debts {
			debts = append(debts, d)
		}
		want := Summarize(debts)
		gotDebt, gotPaid := f.totals(t, c.ID)
		assert.Equal(t, want.TotalDebt.String(), gotDebt, step)
		assert.Equal(t, want.TotalPaid.String(), gotPaid, step)
	}

	d1 := f.debt(t, c.ID, DebtTypeDebt, "10.10", false)
	check("create debt")
	d2 := f.debt(t, c.ID, DebtTypeCredit, "0.20", true)
	check("create paid credit")
	_, err := f.svc.MarkPaid(ctx, d1.ID, nil)
	require.NoError(t, err)
	check("mark paid")
	_, err = f.svc.MarkUnpaid(ctx, d2.ID, nil)
	require.NoError(t, err)
	check("mark unpaid")
	_, err = f.svc.PatchDebt(ctx, d1.ID, DebtPatch{Amount: ptrAmount("99.99")}, nil)
	require.NoError(t, err)
	check("edit amount")
	_, err = f.svc.MarkUnpaid(ctx, d1.ID, nil)
	require.NoError(t, err)
	check("unpay edited")
	require.NoError(t, f.svc.DeleteDebt(ctx, d2.ID, nil))
	check("delete")

	debt, paid := f.totals(t, c.ID)
	assert.Equal(t, "99.99", debt)
	assert.Equal(t, "0.00", paid)
}

func TestStoreFailureIsWrapped(t *testing.T) {
	f := newFixture()
	f.repo.txError = errors.New("conn reset")

	_, err := f.svc.CreateCustomer(context.Background(), CustomerInput{
		FirstName: "Ali",
		LastName:  "Kaya",
		Phone:     "5551112233",
	}, nil)
	require.Error(t, err)
	assert.EqualError(t, err, "create customer: conn reset")
	assert.False(t, errors.Is(err, httpx.ErrValidation))
}
