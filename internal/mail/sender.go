package mail

import "context"

// Sender delivers transactional email for the account service.
type Sender interface {
	SendVerificationEmail(ctx context.Context, toEmail, name, verifyURL string) error
}
