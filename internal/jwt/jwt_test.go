package jwt_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Khaos-s/car-pass/internal/domain"
	"github.com/Khaos-s/car-pass/internal/jwt"
)

func testAccount() domain.Account {
	return domain.Account{
		ID:    "3f6c0f1e-9a20-4a8f-8b54-1f2a3d4c5e6f",
		Email: "jane@example.com",
		Name:  "Jane Doe",
		Role:  domain.RoleStudent,
	}
}

func TestGenerateAndValidate(t *testing.T) {
	generator := jwt.NewGenerator("test-secret", time.Hour, "car-pass-auth")

	token, err := generator.GenerateAccessToken(testAccount())
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := generator.ValidateAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, "3f6c0f1e-9a20-4a8f-8b54-1f2a3d4c5e6f", claims.Subject)
	require.Equal(t, "jane@example.com", claims.Email)
	require.Equal(t, "student", claims.Role)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	generator := jwt.NewGenerator("test-secret", time.Hour, "car-pass-auth")
	other := jwt.NewGenerator("other-secret", time.Hour, "car-pass-auth")

	token, err := generator.GenerateAccessToken(testAccount())
	require.NoError(t, err)

	_, err = other.ValidateAccessToken(token)
	require.Error(t, err)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	generator := jwt.NewGenerator("test-secret", -time.Minute, "car-pass-auth")

	token, err := generator.GenerateAccessToken(testAccount())
	require.NoError(t, err)

	_, err = generator.ValidateAccessToken(token)
	require.Error(t, err)
}

func TestValidateRejectsWrongIssuer(t *testing.T) {
	generator := jwt.NewGenerator("test-secret", time.Hour, "someone-else")
	validator := jwt.NewGenerator("test-secret", time.Hour, "car-pass-auth")

	token, err := generator.GenerateAccessToken(testAccount())
	require.NoError(t, err)

	_, err = validator.ValidateAccessToken(token)
	require.Error(t, err)
}
