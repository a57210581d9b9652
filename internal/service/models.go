package service

import "github.com/Khaos-s/car-pass/internal/domain"

// RegistrationInput carries the raw registration form fields. All values are
// the caller's strings; the service trims and normalizes them itself.
type RegistrationInput struct {
	FirstName  string
	LastName   string
	Email      string
	Password   string
	StudentID  string
	Role       string
	SecretCode string
	Department string
	Course     string
}

// RegistrationResult is the success payload of a registration.
// VerificationLink is populated only outside production mode.
type RegistrationResult struct {
	AccountID        string
	Email            string
	Name             string
	Role             domain.Role
	VerificationLink string
}

// AccountViewModel is the profile shape returned to authenticated callers.
type AccountViewModel struct {
	ID            string      `json:"id"`
	Email         string      `json:"email"`
	Name          string      `json:"name"`
	Role          domain.Role `json:"role"`
	ContactID     string      `json:"contactId"`
	Department    string      `json:"department,omitempty"`
	EmailVerified bool        `json:"emailVerified"`
}

// LoginResult bundles the signed access token with the account profile.
type LoginResult struct {
	AccessToken string           `json:"accessToken"`
	TokenType   string           `json:"tokenType"`
	ExpiresIn   int64            `json:"expiresIn"`
	Account     AccountViewModel `json:"account"`
}

func newAccountViewModel(account domain.Account) AccountViewModel {
	return AccountViewModel{
		ID:            account.ID,
		Email:         account.Email,
		Name:          account.Name,
		Role:          account.Role,
		ContactID:     account.ContactID,
		Department:    account.Department,
		EmailVerified: account.EmailVerified,
	}
}
