// Package jobs holds the background task definitions and the Asynq worker
// that processes them.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskTypeVerificationEmail delivers the email address confirmation link.
	TaskTypeVerificationEmail = "email:verification"
	// TaskTypePasswordResetEmail delivers the password reset link.
	TaskTypePasswordResetEmail = "email:password_reset"
	// TaskTypeRegistrationEmail confirms an event registration.
	TaskTypeRegistrationEmail = "email:registration_confirmation"
	// TaskTypeCompleteEvents flips published events past their end date to
	// completed. Registered on a cron schedule.
	TaskTypeCompleteEvents = "events:complete_past"
)

// EmailPayload carries one outbound email.
type EmailPayload struct {
	To      string `json:"to"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Mailer delivers email. The production implementation speaks SMTP.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// EventCompleter marks past events completed. The events repository provides
// the production implementation.
type EventCompleter interface {
	CompletePastEvents(ctx context.Context, now time.Time) (int64, error)
}

func newEmailTask(taskType string, payload EmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data), nil
}

// NewCompleteEventsTask constructs the scheduled housekeeping task.
func NewCompleteEventsTask() *asynq.Task {
	return asynq.NewTask(TaskTypeCompleteEvents, nil)
}

// NewEmailHandler returns an Asynq handler delivering email payloads through
// the mailer. Malformed payloads are dropped rather than retried.
func NewEmailHandler(mailer Mailer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload EmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			logger.Error("email task payload", slog.Any("error", err), slog.String("type", t.Type()))
			return asynq.SkipRetry
		}
		if err := mailer.Send(ctx, payload.To, payload.Subject, payload.Body); err != nil {
			return fmt.Errorf("jobs: send %s: %w", t.Type(), err)
		}
		logger.Info("email sent", slog.String("type", t.Type()), slog.String("to", payload.To))
		return nil
	}
}

// NewCompleteEventsHandler returns the handler for the housekeeping task.
func NewCompleteEventsHandler(completer EventCompleter, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		n, err := completer.CompletePastEvents(ctx, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("jobs: complete past events: %w", err)
		}
		if n > 0 {
			logger.Info("completed past events", slog.Int64("count", n))
		}
		return nil
	}
}
