package repository

import (
	"context"

	"github.com/Khaos-s/car-pass/internal/domain"
)

// AccountRepository exposes persistence for registered accounts.
//
// Lookups return an error wrapping pgx.ErrNoRows when no account matches;
// callers distinguish "not found" from infrastructure failures with
// errors.Is.
type AccountRepository interface {
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
	GetByID(ctx context.Context, id string) (domain.Account, error)
	GetByVerificationToken(ctx context.Context, token string) (domain.Account, error)
	Create(ctx context.Context, account domain.Account) (domain.Account, error)
	MarkEmailVerified(ctx context.Context, id string) error
}

// CooldownStore throttles repeatable side effects (verification email
// resends) with a TTL key per subject.
type CooldownStore interface {
	Acquire(ctx context.Context, key string) (bool, error)
}
