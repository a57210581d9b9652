package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Khaos-s/car-pass/internal/domain"
)

func TestParseRole(t *testing.T) {
	cases := map[string]domain.Role{
		"student": domain.RoleStudent,
		"faculty": domain.RoleFaculty,
		"visitor": domain.RoleVisitor,
		"admin":   domain.RoleAdmin,
		"":        domain.RoleStudent,
		"Admin":   domain.RoleStudent,
		"root":    domain.RoleStudent,
	}

	for input, want := range cases {
		require.Equal(t, want, domain.ParseRole(input), "input %q", input)
	}
}
