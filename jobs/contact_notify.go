package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/veresiye/defter/internal/contact"
	jobmetrics "github.com/veresiye/defter/internal/jobs"
	"github.com/veresiye/defter/internal/platform/httpx"
)

// ContactReader loads contact messages.
type ContactReader interface {
	Get(ctx context.Context, id int64) (contact.Message, error)
}

// ContactNotifyJob emails the admin when a contact message arrives.
type ContactNotifyJob struct {
	Messages ContactReader
	Mailer   Mailer
	To       string
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewContactNotifyJob initialises the contact notification handler.
func NewContactNotifyJob(messages ContactReader, mailer Mailer, to string, logger *slog.Logger, metrics *jobmetrics.Metrics) *ContactNotifyJob {
	return &ContactNotifyJob{Messages: messages, Mailer: mailer, To: to, Logger: logger, Metrics: metrics}
}

// Handle sends the notification for a single message.
func (j *ContactNotifyJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Messages == nil || j.Mailer == nil {
		return errors.New("contact notify: handler not configured")
	}
	var payload ContactNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.MessageID <= 0 {
		return fmt.Errorf("contact notify: bad payload: %w", asynq.SkipRetry)
	}
	tracker := j.Metrics.Track(TaskContactNotify)
	defer func() { err = tracker.End(err) }()

	logger := jobLogger(j.Logger, TaskContactNotify).With(slog.Int64("message_id", payload.MessageID))
	if j.To == "" {
		logger.Warn("admin notify email not configured, skipping")
		return nil
	}

	msg, err := j.Messages.Get(ctx, payload.MessageID)
	if errors.Is(err, httpx.ErrNotFound) {
		logger.Info("message deleted before notification")
		return nil
	}
	if err != nil {
		return err
	}
	if err := j.Mailer.Send(ctx, contactMail(j.To, msg)); err != nil {
		logger.Error("send notification", slog.Any("error", err))
		return err
	}
	logger.Info("contact notification sent")
	return nil
}

func contactMail(to string, msg contact.Message) Mail {
	var b strings.Builder
	fmt.Fprintf(&b, "Ad: %s\n", msg.Name)
	fmt.Fprintf(&b, "E-posta: %s\n", msg.Email)
	if msg.Phone != nil {
		fmt.Fprintf(&b, "Telefon: %s\n", *msg.Phone)
	}
	fmt.Fprintf(&b, "Tarih: %s\n\n", msg.CreatedAt.Format("2006-01-02 15:04"))
	b.WriteString(msg.Message)
	b.WriteString("\n")
	return Mail{
		To:      to,
		Subject: "Yeni iletişim mesajı: " + msg.Name,
		Body:    b.String(),
	}
}

func jobLogger(logger *slog.Logger, task string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("job", task))
}
