package email

import "context"

// SendWelcomeEmail sends a welcome email to a newly created user.
//
// It builds template data and calls SendEmail using the "welcome" template.
func (c *Client) SendWelcomeEmail(ctx context.Context, to, name, userID string) error {
	if name == "" {
		name = "there"
	}

	// Data keys must match what the HTML template expects.
	data := map[string]string{
		"UserName": name,
		"UserID":   userID,
	}

	return c.SendEmail(ctx, to, "Welcome aboard!", TemplateWelcome, data)
}
