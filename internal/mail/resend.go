package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ResendSender delivers verification email through the Resend HTTP API.
type ResendSender struct {
	apiKey  string
	from    string
	client  *http.Client
	baseURL string
}

var _ Sender = (*ResendSender)(nil)

// NewResendSender builds a sender using the given API key and From header.
func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{
		apiKey: apiKey,
		from:   from,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		baseURL: "https://api.resend.com",
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (m *ResendSender) SendVerificationEmail(ctx context.Context, toEmail, name, verifyURL string) error {
	body := sendRequest{
		From:    m.from,
		To:      []string{toEmail},
		Subject: "Verify Your Campus Parking Account",
		HTML: `
			<div style="font-family: Arial, sans-serif; padding: 20px;">
				<h2>Welcome to the Campus Parking Management System!</h2>
				<p>Hello ` + name + `,</p>
				<p>Thank you for registering. Please verify your email address by clicking the link below:</p>
				<p><a href="` + verifyURL + `">Verify Email</a></p>
				<p>Or copy and paste this link into your browser:</p>
				<p>` + verifyURL + `</p>
				<p>If you didn't create this account, please ignore this email.</p>
			</div>
		`,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("send verification email: status %d: %s", resp.StatusCode, detail)
	}

	return nil
}
