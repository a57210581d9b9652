package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Khaos-s/car-pass/internal/config"
	"github.com/Khaos-s/car-pass/internal/domain"
	"github.com/Khaos-s/car-pass/internal/jwt"
	"github.com/Khaos-s/car-pass/internal/mail"
	pw "github.com/Khaos-s/car-pass/internal/password"
	"github.com/Khaos-s/car-pass/internal/repository"
)

// AuthError is a caller-addressable failure with a stable code and HTTP status.
type AuthError struct {
	Code    string
	Message string
	Status  int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newAuthError(code, message string, status int) *AuthError {
	return &AuthError{Code: code, Message: message, Status: status}
}

const (
	minPasswordLen       = 6
	maxPasswordBytes     = 72
	verificationTokenLen = 32
	emailDispatchTimeout = 10 * time.Second
)

var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

// AuthService implements registration, verification, and login flows.
type AuthService struct {
	accounts  repository.AccountRepository
	cooldowns repository.CooldownStore
	mailer    mail.Sender
	jwt       *jwt.Generator
	cfg       config.Config
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewAuthService wires dependencies.
func NewAuthService(accounts repository.AccountRepository, cooldowns repository.CooldownStore, mailer mail.Sender, generator *jwt.Generator, cfg config.Config, logger *zap.Logger) *AuthService {
	return &AuthService{
		accounts:  accounts,
		cooldowns: cooldowns,
		mailer:    mailer,
		jwt:       generator,
		cfg:       cfg,
		logger:    logger,
		tracer:    otel.Tracer("github.com/Khaos-s/car-pass/internal/service"),
	}
}

// Register validates the form, creates the account, and dispatches the
// verification email. Validation and conflict failures happen before any
// mutation; email delivery failure never reverses a created account.
func (s *AuthService) Register(ctx context.Context, input RegistrationInput) (RegistrationResult, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Register")
	defer span.End()

	firstName := strings.TrimSpace(input.FirstName)
	lastName := strings.TrimSpace(input.LastName)
	contactID := strings.TrimSpace(input.StudentID)
	normalized := normalizeEmail(input.Email)

	if firstName == "" || lastName == "" || normalized == "" || strings.TrimSpace(input.Password) == "" || contactID == "" {
		return RegistrationResult{}, newAuthError("validation_error", "Please provide all required fields", http.StatusBadRequest)
	}
	if !emailPattern.MatchString(normalized) {
		return RegistrationResult{}, newAuthError("validation_error", "Please provide a valid email address", http.StatusBadRequest)
	}
	if utf8.RuneCountInString(input.Password) < minPasswordLen {
		return RegistrationResult{}, newAuthError("validation_error", fmt.Sprintf("Password must be at least %d characters long", minPasswordLen), http.StatusBadRequest)
	}
	// bcrypt refuses inputs over 72 bytes; reject up front so oversized
	// passwords read as user error, not an infrastructure failure.
	if len(input.Password) > maxPasswordBytes {
		return RegistrationResult{}, newAuthError("validation_error", fmt.Sprintf("Password must be at most %d bytes long", maxPasswordBytes), http.StatusBadRequest)
	}
	if input.Role == string(domain.RoleAdmin) {
		if subtle.ConstantTimeCompare([]byte(input.SecretCode), []byte(s.cfg.AdminSecretCode)) != 1 {
			s.audit("register.admin_code.rejected", "email", normalized)
			return RegistrationResult{}, newAuthError("invalid_admin_code", "Invalid admin secret code", http.StatusForbidden)
		}
	}

	// Fast-path duplicate check; the accounts.email unique constraint stays
	// authoritative for races between concurrent registrations.
	if _, err := s.accounts.GetByEmail(ctx, normalized); err == nil {
		return RegistrationResult{}, newAuthError("email_conflict", "Email already registered", http.StatusConflict)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		span.RecordError(err)
		return RegistrationResult{}, fmt.Errorf("check existing account: %w", err)
	}

	hashed, err := pw.Hash(input.Password)
	if err != nil {
		span.RecordError(err)
		return RegistrationResult{}, fmt.Errorf("hash password: %w", err)
	}

	token, err := newVerificationToken()
	if err != nil {
		span.RecordError(err)
		return RegistrationResult{}, fmt.Errorf("generate verification token: %w", err)
	}

	account := domain.Account{
		ID:                uuid.NewString(),
		Email:             normalized,
		PasswordHash:      hashed,
		Name:              firstName + " " + lastName,
		Role:              domain.ParseRole(input.Role),
		ContactID:         contactID,
		Department:        coalesce(input.Department, input.Course),
		EmailVerified:     false,
		VerificationToken: token,
		IsActive:          true,
	}

	created, err := s.accounts.Create(ctx, account)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return RegistrationResult{}, newAuthError("email_conflict", "Email already registered", http.StatusConflict)
		}
		span.RecordError(err)
		return RegistrationResult{}, fmt.Errorf("create account: %w", err)
	}

	link := s.verificationLink(token)
	s.dispatchVerificationEmail(created.Email, created.Name, link)
	s.audit("register.success", "account_id", created.ID, "role", created.Role)

	result := RegistrationResult{
		AccountID: created.ID,
		Email:     created.Email,
		Name:      created.Name,
		Role:      created.Role,
	}
	if !s.cfg.IsProduction() {
		result.VerificationLink = link
	}
	return result, nil
}

// VerifyEmail consumes a single-use verification token and marks the account
// verified. A second use of the same token fails because the token is cleared
// on the first.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	ctx, span := s.startSpan(ctx, "AuthService.VerifyEmail")
	defer span.End()

	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return newAuthError("validation_error", "Verification token is required", http.StatusBadRequest)
	}

	account, err := s.accounts.GetByVerificationToken(ctx, trimmed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return newAuthError("token_not_found", "Invalid or expired verification link", http.StatusNotFound)
		}
		span.RecordError(err)
		return fmt.Errorf("lookup verification token: %w", err)
	}

	if err := s.accounts.MarkEmailVerified(ctx, account.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return newAuthError("token_not_found", "Invalid or expired verification link", http.StatusNotFound)
		}
		span.RecordError(err)
		return fmt.Errorf("mark email verified: %w", err)
	}

	s.audit("verify_email.success", "account_id", account.ID)
	return nil
}

// ResendVerification re-sends the verification email for an unverified
// account, throttled per email address.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	ctx, span := s.startSpan(ctx, "AuthService.ResendVerification")
	defer span.End()

	normalized := normalizeEmail(email)
	if normalized == "" {
		return newAuthError("validation_error", "Email is required", http.StatusBadRequest)
	}

	account, err := s.accounts.GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Do not reveal whether the email is registered.
			s.audit("resend_verification.unknown_email", "email", normalized)
			return nil
		}
		span.RecordError(err)
		return fmt.Errorf("lookup account: %w", err)
	}
	if account.EmailVerified {
		return newAuthError("already_verified", "Email is already verified", http.StatusConflict)
	}

	ok, err := s.cooldowns.Acquire(ctx, "resend-verification:"+normalized)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("check resend cooldown: %w", err)
	}
	if !ok {
		return newAuthError("cooldown_active", "A verification email was sent recently. Please wait before retrying.", http.StatusTooManyRequests)
	}

	s.dispatchVerificationEmail(account.Email, account.Name, s.verificationLink(account.VerificationToken))
	s.audit("resend_verification.dispatched", "account_id", account.ID)
	return nil
}

// LoginWithPassword authenticates by email and password and issues an access
// token. Unverified and deactivated accounts are refused.
func (s *AuthService) LoginWithPassword(ctx context.Context, email, password string) (LoginResult, error) {
	ctx, span := s.startSpan(ctx, "AuthService.LoginWithPassword")
	defer span.End()

	normalized := normalizeEmail(email)
	if normalized == "" || password == "" {
		return LoginResult{}, newAuthError("validation_error", "Email and password are required", http.StatusBadRequest)
	}

	account, err := s.accounts.GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LoginResult{}, newAuthError("invalid_credentials", "Invalid email or password", http.StatusUnauthorized)
		}
		span.RecordError(err)
		return LoginResult{}, fmt.Errorf("lookup account: %w", err)
	}

	valid, err := pw.Verify(password, account.PasswordHash)
	if err != nil || !valid {
		return LoginResult{}, newAuthError("invalid_credentials", "Invalid email or password", http.StatusUnauthorized)
	}
	if !account.EmailVerified {
		return LoginResult{}, newAuthError("email_not_verified", "Please verify your email before logging in", http.StatusForbidden)
	}
	if !account.IsActive {
		return LoginResult{}, newAuthError("account_disabled", "This account has been deactivated", http.StatusForbidden)
	}

	token, err := s.jwt.GenerateAccessToken(account)
	if err != nil {
		span.RecordError(err)
		return LoginResult{}, fmt.Errorf("issue access token: %w", err)
	}

	s.audit("login.success", "account_id", account.ID)
	return LoginResult{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.cfg.AccessTokenTTL.Seconds()),
		Account:     newAccountViewModel(account),
	}, nil
}

// GetAccountInfo loads the profile for an authenticated account ID.
func (s *AuthService) GetAccountInfo(ctx context.Context, accountID string) (AccountViewModel, error) {
	ctx, span := s.startSpan(ctx, "AuthService.GetAccountInfo")
	defer span.End()

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountViewModel{}, newAuthError("account_not_found", "Account not found", http.StatusNotFound)
		}
		span.RecordError(err)
		return AccountViewModel{}, fmt.Errorf("load account: %w", err)
	}
	return newAccountViewModel(account), nil
}

// dispatchVerificationEmail delivers the email on a detached goroutine so a
// slow provider cannot stall the response. Failures are logged and tolerated;
// the account is already durable.
func (s *AuthService) dispatchVerificationEmail(toEmail, name, link string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), emailDispatchTimeout)
		defer cancel()
		if err := s.mailer.SendVerificationEmail(ctx, toEmail, name, link); err != nil {
			s.log().Error("verification email dispatch failed",
				zap.String("to", toEmail),
				zap.Error(err),
			)
		}
	}()
}

func (s *AuthService) verificationLink(token string) string {
	return s.cfg.FrontendBaseURL + "/verify-email/" + token
}

func (s *AuthService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *AuthService) audit(event string, attrs ...any) {
	logger := s.log()
	if logger == nil {
		return
	}
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", time.Now().UTC()))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	logger.Info("audit", fields...)
}

func (s *AuthService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}

func newVerificationToken() (string, error) {
	b := make([]byte, verificationTokenLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
