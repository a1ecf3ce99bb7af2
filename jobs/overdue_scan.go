package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	jobmetrics "github.com/veresiye/defter/internal/jobs"
	"github.com/veresiye/defter/internal/ledger"
	"github.com/veresiye/defter/internal/money"
	"github.com/veresiye/defter/internal/shared"
)

const overdueLockTTL = 23 * time.Hour

// OverdueLister lists overdue debts.
type OverdueLister interface {
	ListOverdueDebts(ctx context.Context, asOf time.Time) ([]ledger.Debt, error)
}

// OverdueScanJob mails the admin a summary of unpaid debts past their due date.
type OverdueScanJob struct {
	Ledger  OverdueLister
	Mailer  Mailer
	To      string
	Redis   *redis.Client
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
	printer *message.Printer
}

// NewOverdueScanJob initialises the overdue scan handler. redisClient may be nil,
// in which case repeated runs on the same day all send mail.
func NewOverdueScanJob(lister OverdueLister, mailer Mailer, to string, redisClient *redis.Client, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueScanJob {
	return &OverdueScanJob{
		Ledger:  lister,
		Mailer:  mailer,
		To:      to,
		Redis:   redisClient,
		Logger:  logger,
		Metrics: metrics,
		clock:   time.Now,
		printer: message.NewPrinter(language.Turkish),
	}
}

// Handle runs the scan.
func (j *OverdueScanJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Ledger == nil || j.Mailer == nil {
		return errors.New("overdue scan: handler not configured")
	}
	var payload OverdueScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("overdue scan: bad payload: %w", asynq.SkipRetry)
		}
	}
	asOf := j.clock()
	if payload.AsOf != "" {
		parsed, err := time.Parse(time.DateOnly, payload.AsOf)
		if err != nil {
			return fmt.Errorf("overdue scan: bad as_of: %w", asynq.SkipRetry)
		}
		asOf = parsed
	}
	day := asOf.Format(time.DateOnly)

	tracker := j.Metrics.Track(TaskLedgerOverdueScan)
	defer func() { err = tracker.End(err) }()
	logger := jobLogger(j.Logger, TaskLedgerOverdueScan).With(slog.String("as_of", day))

	acquired, err := j.lock(ctx, day)
	if err != nil {
		logger.Warn("overdue lock unavailable, continuing", slog.Any("error", err))
	} else if !acquired {
		logger.Info("overdue summary already sent for day")
		return nil
	}

	debts, err := j.Ledger.ListOverdueDebts(ctx, asOf)
	if err != nil {
		j.unlock(ctx, day)
		return err
	}
	j.Metrics.AddItems(TaskLedgerOverdueScan, len(debts))
	if len(debts) == 0 {
		logger.Info("no overdue debts")
		return nil
	}
	if j.To == "" {
		logger.Warn("admin notify email not configured, skipping", slog.Int("overdue", len(debts)))
		return nil
	}
	if err := j.Mailer.Send(ctx, Mail{
		To:      j.To,
		Subject: fmt.Sprintf("Vadesi geçmiş borçlar (%s)", day),
		Body:    j.summary(debts, day),
	}); err != nil {
		j.unlock(ctx, day)
		logger.Error("send overdue summary", slog.Any("error", err))
		return err
	}
	logger.Info("overdue summary sent", slog.Int("overdue", len(debts)))
	return nil
}

func (j *OverdueScanJob) lock(ctx context.Context, day string) (bool, error) {
	if j.Redis == nil {
		return true, nil
	}
	return j.Redis.SetNX(ctx, shared.JobLockKey(TaskLedgerOverdueScan, day), j.clock().UTC().Format(time.RFC3339), overdueLockTTL).Result()
}

func (j *OverdueScanJob) unlock(ctx context.Context, day string) {
	if j.Redis == nil {
		return
	}
	_ = j.Redis.Del(ctx, shared.JobLockKey(TaskLedgerOverdueScan, day)).Err()
}

type customerOverdue struct {
	name  string
	total money.Amount
	lines []ledger.Debt
}

// summary renders overdue debts grouped per customer, largest balance first.
func (j *OverdueScanJob) summary(debts []ledger.Debt, day string) string {
	byCustomer := make(map[int64]*customerOverdue)
	grand := money.Zero()
	for _, d := range debts {
		entry, ok := byCustomer[d.CustomerID]
		if !ok {
			entry = &customerOverdue{name: d.CustomerName, total: money.Zero()}
			byCustomer[d.CustomerID] = entry
		}
		entry.total = entry.total.Add(d.Amount)
		entry.lines = append(entry.lines, d)
		grand = grand.Add(d.Amount)
	}
	groups := make([]*customerOverdue, 0, len(byCustomer))
	for _, g := range byCustomer {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(a, b int) bool {
		if c := groups[a].total.Cmp(groups[b].total); c != 0 {
			return c > 0
		}
		return groups[a].name < groups[b].name
	})

	var b strings.Builder
	fmt.Fprintf(&b, "%s tarihi itibarıyla vadesi geçmiş ödenmemiş borçlar:\n\n", day)
	for _, g := range groups {
		fmt.Fprintf(&b, "%s: %s\n", g.name, j.lira(g.total))
		for _, d := range g.lines {
			due := ""
			if d.DueDate != nil {
				due = d.DueDate.String()
			}
			fmt.Fprintf(&b, "  - %s, vade %s", j.lira(d.Amount), due)
			if d.Description != nil {
				fmt.Fprintf(&b, ", %s", *d.Description)
			}
			b.WriteString("\n")
		}
	}
	fmt.Fprintf(&b, "\nToplam %d kayıt, %s\n", len(debts), j.lira(grand))
	return b.String()
}

// lira formats an amount the Turkish way, e.g. 1.500,00 ₺.
func (j *OverdueScanJob) lira(a money.Amount) string {
	minor := a.Minor()
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	whole := j.printer.Sprint(number.Decimal(minor / 100))
	return fmt.Sprintf("%s%s,%02d ₺", sign, whole, minor%100)
}
