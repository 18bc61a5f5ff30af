package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// SMTPConfig carries outbound mail settings.
type SMTPConfig struct {
	Addr string
	From string
}

// NewSendEmailHandler returns the mail:send task handler. An empty SMTP
// address turns dispatch into a logged no-op.
func NewSendEmailHandler(cfg SMTPConfig) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SendEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if cfg.Addr == "" {
			fmt.Printf("[jobs] smtp disabled, skipping email to %s subject=%s\n", payload.To, payload.Subject)
			return nil
		}
		msg := strings.Join([]string{
			"From: " + cfg.From,
			"To: " + payload.To,
			"Subject: " + payload.Subject,
			"",
			payload.Body,
		}, "\r\n")
		return smtp.SendMail(cfg.Addr, nil, cfg.From, []string{payload.To}, []byte(msg))
	}
}
