package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventharmony/eventharmony/internal/policy"
)

func client(id string, events []string, modules []string) policy.Principal {
	return policy.Principal{
		ID:                id,
		Role:              policy.RoleClient,
		Verified:          true,
		AccessibleEvents:  policy.NewEventSet(events),
		AccessibleModules: policy.NewModuleSet(modules),
	}
}

func user(id string) policy.Principal {
	return policy.Principal{ID: id, Role: policy.RoleUser, Verified: true}
}

func TestPrivilegedRolesAllowEverything(t *testing.T) {
	actions := []policy.Action{
		policy.ActionRead, policy.ActionList, policy.ActionCreate,
		policy.ActionUpdate, policy.ActionDelete, policy.ActionRegisterSelf,
		policy.ActionManageParticipants, policy.ActionViewStatistics,
	}
	resources := []policy.Resource{
		policy.EventResource("E1", false, false),
		policy.ParticipantResource("E1"),
		policy.AccountResource("U9"),
		policy.MeetingResource("M1", policy.OwnedBy("someone-else")),
	}
	for _, role := range []policy.Role{policy.RoleAdmin, policy.RoleProductOwner} {
		p := policy.Principal{ID: "boss", Role: role, Verified: true}
		for _, action := range actions {
			for _, resource := range resources {
				d := policy.Evaluate(p, action, resource)
				assert.True(t, d.Allowed, "role=%s action=%s kind=%s", role, action, resource.Kind)
			}
		}
	}
}

func TestPublicEventReadableByAnyone(t *testing.T) {
	public := policy.EventResource("E1", true, true)
	principals := []policy.Principal{
		policy.Anonymous(),
		user("u1"),
		client("c1", nil, nil),
	}
	for _, p := range principals {
		assert.True(t, policy.Evaluate(p, policy.ActionRead, public).Allowed, "read role=%s", p.Role)
		assert.True(t, policy.Evaluate(p, policy.ActionList, public).Allowed, "list role=%s", p.Role)
	}
}

func TestPublicVisibilityRequiresPublished(t *testing.T) {
	draft := policy.EventResource("E1", true, false)
	d := policy.Evaluate(user("u1"), policy.ActionRead, draft)
	require.False(t, d.Allowed)
	assert.Equal(t, policy.ReasonInsufficientRole, d.Reason)
}

func TestClientScoping(t *testing.T) {
	p := client("c1", []string{"E1"}, nil)

	granted := policy.EventResource("E1", false, true)
	assert.True(t, policy.Evaluate(p, policy.ActionRead, granted).Allowed)
	assert.True(t, policy.Evaluate(p, policy.ActionUpdate, granted).Allowed)

	other := policy.EventResource("E2", false, true)
	d := policy.Evaluate(p, policy.ActionRead, other)
	require.False(t, d.Allowed)
	assert.Equal(t, policy.ReasonNoEventAccess, d.Reason)

	// Public events stay readable even without a grant.
	public := policy.EventResource("E2", true, true)
	assert.True(t, policy.Evaluate(p, policy.ActionRead, public).Allowed)
}

func TestClientModuleGating(t *testing.T) {
	withGrant := client("c1", []string{"E1"}, nil)
	r := policy.ParticipantResource("E1")

	d := policy.Evaluate(withGrant, policy.ActionManageParticipants, r)
	require.False(t, d.Allowed)
	assert.Equal(t, policy.ReasonNoModuleAccess, d.Reason)

	withModule := client("c1", []string{"E1"}, []string{"participant_management"})
	assert.True(t, policy.Evaluate(withModule, policy.ActionManageParticipants, r).Allowed)

	// Event access is checked before module access.
	noGrant := client("c1", nil, []string{"participant_management"})
	d = policy.Evaluate(noGrant, policy.ActionManageParticipants, r)
	require.False(t, d.Allowed)
	assert.Equal(t, policy.ReasonNoEventAccess, d.Reason)
}

func TestClientNeverCreatesOrDeletesEvents(t *testing.T) {
	p := client("c1", []string{"E1"}, []string{"analytics", "participant_management"})
	granted := policy.EventResource("E1", true, true)

	for _, action := range []policy.Action{policy.ActionDelete, policy.ActionCreate} {
		d := policy.Evaluate(p, action, granted)
		require.False(t, d.Allowed, "action=%s", action)
		assert.Equal(t, policy.ReasonInsufficientRole, d.Reason)
	}
}

func TestRegisterSelfOpenToAllRoles(t *testing.T) {
	private := policy.EventResource("E1", false, false)
	for _, p := range []policy.Principal{user("u1"), client("c1", nil, nil)} {
		assert.True(t, policy.Evaluate(p, policy.ActionRegisterSelf, private).Allowed, "role=%s", p.Role)
	}
}

func TestMeetingOwnership(t *testing.T) {
	organizerOnly := policy.MeetingResource("M1", policy.OwnedBy("u1"))

	assert.True(t, policy.Evaluate(user("u1"), policy.ActionUpdate, organizerOnly).Allowed)

	d := policy.Evaluate(user("u2"), policy.ActionUpdate, organizerOnly)
	require.False(t, d.Allowed)
	assert.Equal(t, policy.ReasonNotOwner, d.Reason)

	// B2B deletion: requester or recipient.
	either := policy.MeetingResource("M2", policy.OwnedByAny("req", "rcp"))
	assert.True(t, policy.Evaluate(user("req"), policy.ActionDelete, either).Allowed)
	assert.True(t, policy.Evaluate(user("rcp"), policy.ActionDelete, either).Allowed)
	d = policy.Evaluate(user("u3"), policy.ActionDelete, either)
	require.False(t, d.Allowed)
	assert.Equal(t, policy.ReasonNotOwner, d.Reason)
}

func TestUserFallbackDeny(t *testing.T) {
	p := user("u1")
	private := policy.EventResource("E1", false, true)

	for _, action := range []policy.Action{
		policy.ActionRead, policy.ActionUpdate, policy.ActionDelete,
		policy.ActionManageParticipants, policy.ActionViewStatistics,
	} {
		d := policy.Evaluate(p, action, private)
		require.False(t, d.Allowed, "action=%s", action)
		assert.Equal(t, policy.ReasonInsufficientRole, d.Reason)
	}
}

func TestDeterminism(t *testing.T) {
	p := client("c1", []string{"E1"}, []string{"analytics"})
	r := policy.EventResource("E1", false, true)
	first := policy.Evaluate(p, policy.ActionViewStatistics, r)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, policy.Evaluate(p, policy.ActionViewStatistics, r))
	}
}

func TestScenarios(t *testing.T) {
	t.Run("user reads public event", func(t *testing.T) {
		d := policy.Evaluate(user("u1"), policy.ActionRead, policy.EventResource("E1", true, true))
		assert.True(t, d.Allowed)
	})
	t.Run("client without grant denied on private event", func(t *testing.T) {
		p := client("c1", []string{"E2"}, nil)
		d := policy.Evaluate(p, policy.ActionRead, policy.EventResource("E1", false, true))
		require.False(t, d.Allowed)
		assert.Equal(t, policy.ReasonNoEventAccess, d.Reason)
	})
	t.Run("client without analytics module denied statistics", func(t *testing.T) {
		p := client("c1", []string{"E1"}, nil)
		d := policy.Evaluate(p, policy.ActionViewStatistics, policy.EventResource("E1", false, true))
		require.False(t, d.Allowed)
		assert.Equal(t, policy.ReasonNoModuleAccess, d.Reason)
	})
	t.Run("admin deletes user account", func(t *testing.T) {
		p := policy.Principal{ID: "a1", Role: policy.RoleAdmin, Verified: true}
		d := policy.Evaluate(p, policy.ActionDelete, policy.AccountResource("U2"))
		assert.True(t, d.Allowed)
	})
}

func TestDeniedError(t *testing.T) {
	d := policy.Deny(policy.ReasonNoEventAccess)
	err := d.Err()
	require.Error(t, err)
	var denied *policy.DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, policy.ReasonNoEventAccess, denied.Reason)

	assert.NoError(t, policy.Allow().Err())
}
