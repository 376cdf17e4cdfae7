package job

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/hibiken/asynq"
)

// WelcomeSender delivers welcome emails. *email.Client implements it.
type WelcomeSender interface {
	SendWelcomeEmail(ctx context.Context, to, name, userID string) error
}

// handleWelcomeEmailTask processes the welcome email task.
//
// Steps:
//   - Parse JSON payload from the Asynq task
//   - Send the welcome email
//   - Log success/failure
func (j *JobService) handleWelcomeEmailTask(ctx context.Context, t *asynq.Task) error {
	var p WelcomeEmailPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		// Retrying a payload that cannot be decoded is pointless.
		return fmt.Errorf("failed to unmarshal welcome email payload: %v: %w", err, asynq.SkipRetry)
	}

	j.logger.Info().
		Str("type", "welcome").
		Str("user_id", p.UserID).
		Msg("Processing welcome email task")

	if err := j.emails.SendWelcomeEmail(ctx, p.To, p.Name, p.UserID); err != nil {
		j.logger.Error().
			Str("type", "welcome").
			Str("user_id", p.UserID).
			Err(err).
			Msg("Failed to send welcome email")
		return err // returning err makes Asynq mark it failed and schedule retry
	}

	j.logger.Info().
		Str("type", "welcome").
		Str("user_id", p.UserID).
		Msg("Successfully sent welcome email")

	return nil
}
