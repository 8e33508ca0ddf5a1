package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/provigil/proctor-backend/internal/config"
	"github.com/provigil/proctor-backend/internal/downstream"
)

const (
	EmailPollTimeout = 1 * time.Second
	// EmailMaxRetries bounds redelivery of a message the SMTP server
	// keeps refusing.
	EmailMaxRetries = 3
)

// EmailWorker drains the notification email queue and delivers messages
// over SMTP. Keeping SMTP off the request path means a slow mail server
// never delays an attempt status transition.
type EmailWorker struct {
	rdb *redis.Client
	cfg *config.Config
	log zerolog.Logger
}

func NewEmailWorker(rdb *redis.Client, cfg *config.Config, log zerolog.Logger) *EmailWorker {
	return &EmailWorker{
		rdb: rdb,
		cfg: cfg,
		log: log.With().Str("component", "email_worker").Logger(),
	}
}

// queuedEmail wraps the enqueued message with a delivery attempt counter.
type queuedEmail struct {
	downstream.EmailMessage
	Retries int `json:"retries,omitempty"`
}

func (w *EmailWorker) Start(ctx context.Context) {
	w.log.Info().Msg("EmailWorker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested")
			return

		default:
			item, err := w.rdb.BLPop(ctx, EmailPollTimeout, config.WorkerKey.NotificationEmailQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}
			if len(item) < 2 {
				continue
			}

			var msg queuedEmail
			if err := json.Unmarshal([]byte(item[1]), &msg); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			if err := w.deliver(msg.EmailMessage); err != nil {
				w.log.Error().Err(err).Str("to", msg.To).
					Int("retries", msg.Retries).Msg("SMTP delivery failed")
				w.requeue(ctx, msg)
				continue
			}
			w.log.Info().Str("to", msg.To).Str("template", msg.Template).Msg("notification delivered")
		}
	}
}

func (w *EmailWorker) requeue(ctx context.Context, msg queuedEmail) {
	msg.Retries++
	if msg.Retries > EmailMaxRetries {
		w.log.Error().Str("to", msg.To).Msg("notification dropped after max retries")
		return
	}
	raw, _ := json.Marshal(msg)
	w.rdb.RPush(ctx, config.WorkerKey.NotificationEmailQueue, raw)
}

// deliver speaks plain SMTP with optional auth. The body is assembled from
// the message's template identity; templates here are deliberately simple
// text, not a rendering engine.
func (w *EmailWorker) deliver(msg downstream.EmailMessage) error {
	if w.cfg.SMTPHost == "" {
		// No mail server configured (dev). Treat as delivered.
		w.log.Info().Str("to", msg.To).Msg("SMTP not configured, dropping notification")
		return nil
	}

	subject := fmt.Sprintf("Proctored exam update: %s", msg.ExamName)
	body := renderBody(msg)

	data := []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		w.cfg.SMTPFrom, msg.To, subject, body,
	))

	addr := fmt.Sprintf("%s:%d", w.cfg.SMTPHost, w.cfg.SMTPPort)
	var auth smtp.Auth
	if w.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", w.cfg.SMTPUser, w.cfg.SMTPPass, w.cfg.SMTPHost)
	}
	return smtp.SendMail(addr, auth, w.cfg.SMTPFrom, []string{msg.To}, data)
}

// statusLines is the per-status body text for the default template set.
var statusLines = map[string]string{
	"submitted": "Your proctored exam session was submitted and is awaiting review.",
	"verified":  "Your proctored exam session was reviewed and verified. No further action is needed.",
	"rejected":  "Your proctored exam session was reviewed and could not be verified. Please contact your course team.",
}

func renderBody(msg downstream.EmailMessage) string {
	line, ok := statusLines[msg.Status]
	if !ok {
		line = fmt.Sprintf("Your proctored exam status changed to %s.", msg.Status)
	}
	return fmt.Sprintf("Course: %s\nExam: %s\n\n%s\n", msg.CourseID, msg.ExamName, line)
}
