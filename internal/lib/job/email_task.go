package job

import (
	"strings"
	"time"

	"github.com/deppfellow/users-api/internal/model"
	"github.com/goccy/go-json"
	"github.com/hibiken/asynq"
)

const (
	// TaskWelcome is the job type name stored in Redis.
	// Asynq uses task type strings to route to handlers.
	TaskWelcome = "email:welcome"
)

// WelcomeEmailPayload is the JSON payload data for the welcome email task.
type WelcomeEmailPayload struct {
	To     string `json:"to"`
	Name   string `json:"name"`
	UserID string `json:"user_id"`
}

// NewWelcomeEmailTask constructs an Asynq task for sending a welcome email.
//
// Options:
//   - MaxRetry(3): retry up to 3 times on failure
//   - Queue("default"): send into the "default" queue
//   - Timeout(30s): kill the task if handler runs longer than 30 seconds
func NewWelcomeEmailTask(p WelcomeEmailPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskWelcome,
		payload,
		asynq.MaxRetry(3),
		asynq.Queue("default"),
		asynq.Timeout(30*time.Second),
	), nil
}

// nameFields are the attributes tried, in order, for the greeting name.
var nameFields = []string{"name", "firstName", "first_name"}

// WelcomePayloadFor builds the welcome payload of a created user. ok is
// false when the record carries no usable email address.
func WelcomePayloadFor(user model.User) (WelcomeEmailPayload, bool) {
	to, _ := user["email"].(string)
	to = strings.TrimSpace(to)
	if to == "" || !strings.Contains(to, "@") {
		return WelcomeEmailPayload{}, false
	}

	p := WelcomeEmailPayload{To: to, UserID: user.ID()}
	for _, field := range nameFields {
		if name, ok := user[field].(string); ok && strings.TrimSpace(name) != "" {
			p.Name = strings.TrimSpace(name)
			break
		}
	}
	return p, true
}
