package mail

import (
	"context"

	"go.uber.org/zap"
)

// LogSender logs the verification link instead of delivering email. Used in
// development when no Resend API key is configured.
type LogSender struct {
	logger *zap.Logger
}

var _ Sender = (*LogSender)(nil)

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.L()
	}
	return &LogSender{logger: logger}
}

func (m *LogSender) SendVerificationEmail(ctx context.Context, toEmail, name, verifyURL string) error {
	m.logger.Info("verification email (log only)",
		zap.String("to", toEmail),
		zap.String("name", name),
		zap.String("verify_url", verifyURL),
	)
	return nil
}
