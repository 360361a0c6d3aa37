package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventharmony/eventharmony/internal/policy"
)

func TestScopePrivilegedUnrestricted(t *testing.T) {
	for _, role := range []policy.Role{policy.RoleAdmin, policy.RoleProductOwner} {
		p := policy.Principal{ID: "a", Role: role}
		s := policy.ScopeFilter(p, policy.KindEvent)
		assert.True(t, s.Unrestricted())

		where, args := s.SQL("id", "(is_public AND status = 'published')", 0)
		assert.Equal(t, "TRUE", where)
		assert.Empty(t, args)
	}
}

func TestScopeClientFiniteSet(t *testing.T) {
	p := client("c1", []string{"E2", "E1"}, nil)
	s := policy.ScopeFilter(p, policy.KindEvent)

	require.False(t, s.Unrestricted())
	assert.Equal(t, []string{"E1", "E2"}, s.EventIDs())
	assert.True(t, s.Matches(policy.EventResource("E1", false, true)))
	assert.False(t, s.Matches(policy.EventResource("E3", true, true)))

	where, args := s.SQL("e.id", "(e.is_public AND e.status = 'published')", 2)
	assert.Equal(t, "e.id = ANY($3)", where)
	require.Len(t, args, 1)
	assert.Equal(t, []string{"E1", "E2"}, args[0])
}

func TestScopeClientWithoutGrantsMatchesNothing(t *testing.T) {
	s := policy.ScopeFilter(client("c1", nil, nil), policy.KindEvent)
	assert.True(t, s.MatchesNothing())

	where, args := s.SQL("id", "is_public", 0)
	assert.Equal(t, "FALSE", where)
	assert.Empty(t, args)
}

func TestScopeUserPublicOnly(t *testing.T) {
	for _, p := range []policy.Principal{user("u1"), policy.Anonymous()} {
		s := policy.ScopeFilter(p, policy.KindEvent)
		assert.True(t, s.Matches(policy.EventResource("E1", true, true)))
		assert.False(t, s.Matches(policy.EventResource("E1", true, false)))

		where, args := s.SQL("id", "(is_public AND status = 'published')", 0)
		assert.Equal(t, "(is_public AND status = 'published')", where)
		assert.Empty(t, args)
	}
}

func TestScopeAccountsAdminOnly(t *testing.T) {
	admin := policy.Principal{ID: "a", Role: policy.RoleAdmin}
	assert.True(t, policy.ScopeFilter(admin, policy.KindUserAccount).Unrestricted())

	for _, p := range []policy.Principal{user("u1"), client("c1", []string{"E1"}, nil)} {
		s := policy.ScopeFilter(p, policy.KindUserAccount)
		assert.True(t, s.MatchesNothing(), "role=%s", p.Role)
	}
}
