package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Khaos-s/car-pass/internal/config"
	"github.com/Khaos-s/car-pass/internal/domain"
	"github.com/Khaos-s/car-pass/internal/password"
	"github.com/Khaos-s/car-pass/internal/repository"
)

// EnsureAdmin creates a pre-verified admin account for dev/e2e when
// ADMIN_EMAIL and ADMIN_PASSWORD are configured. Production deployments
// normally leave them unset and register admins through the secret-code flow.
func EnsureAdmin(lc fx.Lifecycle, cfg config.Config, accounts repository.AccountRepository, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return ensureAdmin(ctx, cfg, accounts, logger)
		},
	})
}

func ensureAdmin(ctx context.Context, cfg config.Config, accounts repository.AccountRepository, logger *zap.Logger) error {
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	if email == "" {
		return nil
	}
	if strings.TrimSpace(cfg.AdminPassword) == "" {
		return fmt.Errorf("ADMIN_PASSWORD is required when ADMIN_EMAIL is set")
	}

	if _, err := accounts.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("bootstrap lookup account: %w", err)
	}

	hashed, err := password.Hash(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap hash password: %w", err)
	}

	created, err := accounts.Create(ctx, domain.Account{
		ID:            uuid.NewString(),
		Email:         email,
		PasswordHash:  hashed,
		Name:          "Admin",
		Role:          domain.RoleAdmin,
		ContactID:     "bootstrap",
		EmailVerified: true,
		IsActive:      true,
	})
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("bootstrap create account: %w", err)
	}

	if logger != nil {
		logger.Info("bootstrap admin account created",
			zap.String("email", created.Email),
			zap.String("account_id", created.ID),
		)
	}
	return nil
}
