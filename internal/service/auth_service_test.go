package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Khaos-s/car-pass/internal/config"
	"github.com/Khaos-s/car-pass/internal/domain"
	"github.com/Khaos-s/car-pass/internal/jwt"
	"github.com/Khaos-s/car-pass/internal/service"
)

func testConfig() config.Config {
	return config.Config{
		Environment:     "test",
		AdminSecretCode: "PHINMA2024",
		FrontendBaseURL: "http://localhost:3000",
		AccessTokenTTL:  time.Hour,
		ServiceName:     "car-pass-auth",
	}
}

func newTestService(t *testing.T) (*service.AuthService, *memoryAccountRepo, *captureMailer, *memoryCooldown) {
	t.Helper()
	accounts := newMemoryAccountRepo()
	mailer := newCaptureMailer()
	cooldowns := &memoryCooldown{held: map[string]bool{}}
	cfg := testConfig()
	generator := jwt.NewGenerator("test-secret", cfg.AccessTokenTTL, cfg.ServiceName)
	svc := service.NewAuthService(accounts, cooldowns, mailer, generator, cfg, zap.NewNop())
	return svc, accounts, mailer, cooldowns
}

func validInput() service.RegistrationInput {
	return service.RegistrationInput{
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "JANE@EXAMPLE.com",
		Password:  "abcdef",
		StudentID: "04-2324-0001",
		Role:      "student",
	}
}

func requireAuthError(t *testing.T, err error, status int, code string) {
	t.Helper()
	var authErr *service.AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, status, authErr.Status)
	require.Equal(t, code, authErr.Code)
}

func TestRegisterMissingFields(t *testing.T) {
	cases := map[string]func(*service.RegistrationInput){
		"first name": func(in *service.RegistrationInput) { in.FirstName = "  " },
		"last name":  func(in *service.RegistrationInput) { in.LastName = "" },
		"email":      func(in *service.RegistrationInput) { in.Email = "" },
		"password":   func(in *service.RegistrationInput) { in.Password = "" },
		"student id": func(in *service.RegistrationInput) { in.StudentID = " " },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			svc, accounts, _, _ := newTestService(t)
			input := validInput()
			mutate(&input)

			_, err := svc.Register(context.Background(), input)
			requireAuthError(t, err, 400, "validation_error")
			require.Zero(t, accounts.count())
		})
	}
}

func TestRegisterRejectsMalformedEmail(t *testing.T) {
	for _, email := range []string{"janeexample.com", "jane@example", "jane @example.com"} {
		svc, accounts, _, _ := newTestService(t)
		input := validInput()
		input.Email = email

		_, err := svc.Register(context.Background(), input)
		requireAuthError(t, err, 400, "validation_error")
		require.Zero(t, accounts.count())
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	// "ñññññ" is 5 runes but 10 bytes: the minimum counts characters.
	for _, password := range []string{"abc12", "ñññññ"} {
		svc, accounts, _, _ := newTestService(t)
		input := validInput()
		input.Password = password

		_, err := svc.Register(context.Background(), input)
		requireAuthError(t, err, 400, "validation_error")
		require.Zero(t, accounts.count())
	}
}

func TestRegisterRejectsWhitespaceOnlyPassword(t *testing.T) {
	svc, accounts, _, _ := newTestService(t)
	input := validInput()
	input.Password = "      "

	_, err := svc.Register(context.Background(), input)
	requireAuthError(t, err, 400, "validation_error")
	require.Zero(t, accounts.count())
}

func TestRegisterRejectsOversizedPassword(t *testing.T) {
	svc, accounts, _, _ := newTestService(t)
	input := validInput()
	input.Password = strings.Repeat("a", 73)

	_, err := svc.Register(context.Background(), input)
	requireAuthError(t, err, 400, "validation_error")
	require.Zero(t, accounts.count())
}

func TestRegisterAdminRequiresSecretCode(t *testing.T) {
	svc, accounts, _, _ := newTestService(t)
	input := validInput()
	input.Role = "admin"
	input.SecretCode = "wrong"

	_, err := svc.Register(context.Background(), input)
	requireAuthError(t, err, 403, "invalid_admin_code")
	require.Zero(t, accounts.count())
}

func TestRegisterAdminWithCorrectCode(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	input := validInput()
	input.Role = "admin"
	input.SecretCode = "PHINMA2024"

	result, err := svc.Register(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, domain.RoleAdmin, result.Role)
}

func TestRegisterSuccessNormalizesEmail(t *testing.T) {
	svc, accounts, mailer, _ := newTestService(t)

	result, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	require.NotEmpty(t, result.AccountID)
	require.Equal(t, "jane@example.com", result.Email)
	require.Equal(t, "Jane Doe", result.Name)
	require.Equal(t, domain.RoleStudent, result.Role)

	stored, err := accounts.GetByEmail(context.Background(), "jane@example.com")
	require.NoError(t, err)
	require.False(t, stored.EmailVerified)
	require.True(t, stored.IsActive)
	require.NotEmpty(t, stored.VerificationToken)
	require.NotEqual(t, "abcdef", stored.PasswordHash)

	sent := mailer.waitForSend(t)
	require.Equal(t, "jane@example.com", sent.to)
	require.Contains(t, sent.url, "/verify-email/"+stored.VerificationToken)
}

func TestRegisterEchoesLinkOutsideProduction(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	result, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(result.VerificationLink, "http://localhost:3000/verify-email/"))
}

func TestRegisterHidesLinkInProduction(t *testing.T) {
	accounts := newMemoryAccountRepo()
	cfg := testConfig()
	cfg.Environment = "production"
	generator := jwt.NewGenerator("test-secret", cfg.AccessTokenTTL, cfg.ServiceName)
	svc := service.NewAuthService(accounts, &memoryCooldown{held: map[string]bool{}}, newCaptureMailer(), generator, cfg, zap.NewNop())

	result, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)
	require.Empty(t, result.VerificationLink)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, accounts, _, _ := newTestService(t)

	_, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), validInput())
	requireAuthError(t, err, 409, "email_conflict")
	require.Equal(t, 1, accounts.count())
}

func TestRegisterMapsUniqueViolationToConflict(t *testing.T) {
	// A concurrent insert can slip between the pre-check and the insert; the
	// constraint violation from the store must still read as a conflict.
	svc, accounts, _, _ := newTestService(t)
	accounts.failCreateWith = &pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_key"}

	_, err := svc.Register(context.Background(), validInput())
	requireAuthError(t, err, 409, "email_conflict")
}

func TestRegisterStoreFailureIsGeneric(t *testing.T) {
	svc, accounts, _, _ := newTestService(t)
	accounts.failCreateWith = errors.New("connection reset by peer")

	_, err := svc.Register(context.Background(), validInput())
	require.Error(t, err)
	var authErr *service.AuthError
	require.False(t, errors.As(err, &authErr))
}

func TestRegisterSucceedsWhenEmailDeliveryFails(t *testing.T) {
	svc, accounts, mailer, _ := newTestService(t)
	mailer.failWith = errors.New("smtp unreachable")

	result, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)
	require.NotEmpty(t, result.AccountID)
	require.Equal(t, 1, accounts.count())
	mailer.waitForSend(t)
}

func TestRegisterUnknownRoleDefaultsToStudent(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	input := validInput()
	input.Role = "superuser"

	result, err := svc.Register(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, domain.RoleStudent, result.Role)
}

func TestVerifyEmailIsSingleUse(t *testing.T) {
	svc, accounts, _, _ := newTestService(t)

	_, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	stored, err := accounts.GetByEmail(context.Background(), "jane@example.com")
	require.NoError(t, err)
	token := stored.VerificationToken

	require.NoError(t, svc.VerifyEmail(context.Background(), token))

	verified, err := accounts.GetByEmail(context.Background(), "jane@example.com")
	require.NoError(t, err)
	require.True(t, verified.EmailVerified)
	require.Empty(t, verified.VerificationToken)

	err = svc.VerifyEmail(context.Background(), token)
	requireAuthError(t, err, 404, "token_not_found")
}

func TestResendVerificationCooldown(t *testing.T) {
	svc, _, mailer, _ := newTestService(t)

	_, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)
	mailer.waitForSend(t)

	require.NoError(t, svc.ResendVerification(context.Background(), "jane@example.com"))
	mailer.waitForSend(t)

	err = svc.ResendVerification(context.Background(), "jane@example.com")
	requireAuthError(t, err, 429, "cooldown_active")
}

func TestResendVerificationHidesUnknownEmail(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	require.NoError(t, svc.ResendVerification(context.Background(), "nobody@example.com"))
}

func TestLoginFlow(t *testing.T) {
	svc, accounts, _, _ := newTestService(t)

	_, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	// Unverified accounts cannot log in yet.
	_, err = svc.LoginWithPassword(context.Background(), "jane@example.com", "abcdef")
	requireAuthError(t, err, 403, "email_not_verified")

	stored, err := accounts.GetByEmail(context.Background(), "jane@example.com")
	require.NoError(t, err)
	require.NoError(t, svc.VerifyEmail(context.Background(), stored.VerificationToken))

	result, err := svc.LoginWithPassword(context.Background(), "JANE@example.com", "abcdef")
	require.NoError(t, err)
	require.NotEmpty(t, result.AccessToken)
	require.Equal(t, "Bearer", result.TokenType)
	require.Equal(t, stored.ID, result.Account.ID)

	generator := jwt.NewGenerator("test-secret", time.Hour, "car-pass-auth")
	claims, err := generator.ValidateAccessToken(result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, stored.ID, claims.Subject)

	_, err = svc.LoginWithPassword(context.Background(), "jane@example.com", "wrong-pass")
	requireAuthError(t, err, 401, "invalid_credentials")

	_, err = svc.LoginWithPassword(context.Background(), "ghost@example.com", "abcdef")
	requireAuthError(t, err, 401, "invalid_credentials")
}

func TestGetAccountInfo(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	result, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	profile, err := svc.GetAccountInfo(context.Background(), result.AccountID)
	require.NoError(t, err)
	require.Equal(t, "jane@example.com", profile.Email)
	require.Equal(t, "04-2324-0001", profile.ContactID)

	_, err = svc.GetAccountInfo(context.Background(), "11111111-2222-3333-4444-555555555555")
	requireAuthError(t, err, 404, "account_not_found")
}

// --- fakes ---

type memoryAccountRepo struct {
	mu             sync.Mutex
	byEmail        map[string]domain.Account
	failCreateWith error
}

func newMemoryAccountRepo() *memoryAccountRepo {
	return &memoryAccountRepo{byEmail: map[string]domain.Account{}}
}

func (m *memoryAccountRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byEmail)
}

func (m *memoryAccountRepo) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.byEmail[email]
	if !ok {
		return domain.Account{}, fmt.Errorf("get account by email: %w", pgx.ErrNoRows)
	}
	return account, nil
}

func (m *memoryAccountRepo) GetByID(ctx context.Context, id string) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, account := range m.byEmail {
		if account.ID == id {
			return account, nil
		}
	}
	return domain.Account{}, fmt.Errorf("get account by id: %w", pgx.ErrNoRows)
}

func (m *memoryAccountRepo) GetByVerificationToken(ctx context.Context, token string) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, account := range m.byEmail {
		if account.VerificationToken != "" && account.VerificationToken == token {
			return account, nil
		}
	}
	return domain.Account{}, fmt.Errorf("get account by verification token: %w", pgx.ErrNoRows)
}

func (m *memoryAccountRepo) Create(ctx context.Context, account domain.Account) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateWith != nil {
		return domain.Account{}, fmt.Errorf("insert account: %w", m.failCreateWith)
	}
	if _, exists := m.byEmail[account.Email]; exists {
		return domain.Account{}, fmt.Errorf("insert account: %w", &pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_key"})
	}
	account.CreatedAt = time.Now().UTC()
	account.UpdatedAt = account.CreatedAt
	m.byEmail[account.Email] = account
	return account, nil
}

func (m *memoryAccountRepo) MarkEmailVerified(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for email, account := range m.byEmail {
		if account.ID == id && !account.EmailVerified {
			account.EmailVerified = true
			account.VerificationToken = ""
			m.byEmail[email] = account
			return nil
		}
	}
	return fmt.Errorf("mark email verified: %w", pgx.ErrNoRows)
}

type sentEmail struct {
	to   string
	name string
	url  string
}

type captureMailer struct {
	sends    chan sentEmail
	failWith error
}

func newCaptureMailer() *captureMailer {
	return &captureMailer{sends: make(chan sentEmail, 8)}
}

func (m *captureMailer) SendVerificationEmail(ctx context.Context, toEmail, name, verifyURL string) error {
	m.sends <- sentEmail{to: toEmail, name: name, url: verifyURL}
	return m.failWith
}

// waitForSend blocks until the async dispatch goroutine hands over an email.
func (m *captureMailer) waitForSend(t *testing.T) sentEmail {
	t.Helper()
	select {
	case sent := <-m.sends:
		return sent
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for verification email dispatch")
		return sentEmail{}
	}
}

type memoryCooldown struct {
	mu   sync.Mutex
	held map[string]bool
}

func (m *memoryCooldown) Acquire(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] {
		return false, nil
	}
	m.held[key] = true
	return true, nil
}
