// Package policy centralizes every authorization decision in EventHarmony.
// Handlers construct a Principal and a Resource per request and ask the
// evaluator for a verdict instead of re-deriving role checks inline.
package policy

// Role is the closed set of account roles.
type Role string

const (
	RoleUser         Role = "user"
	RoleClient       Role = "client"
	RoleAdmin        Role = "admin"
	RoleProductOwner Role = "product_owner"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleClient, RoleAdmin, RoleProductOwner:
		return true
	}
	return false
}

// Privileged reports whether the role carries full trust. Admin and product
// owner are policy-equivalent.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleProductOwner
}

// Principal is the authenticated actor for one request. It is built fresh
// from the account record by the resolver and discarded afterwards.
type Principal struct {
	ID       string
	Role     Role
	Verified bool

	// Grant sets are populated only for client-role principals; the
	// evaluator never consults them for other roles.
	AccessibleModules map[Module]struct{}
	AccessibleEvents  map[string]struct{}
}

// Anonymous returns the principal used for unauthenticated callers: a
// baseline user with no grants, so only public-catalog rules can match.
func Anonymous() Principal {
	return Principal{Role: RoleUser}
}

// HasModule reports whether the principal holds the given module grant.
func (p Principal) HasModule(m Module) bool {
	_, ok := p.AccessibleModules[m]
	return ok
}

// HasEvent reports whether the principal holds a grant for the event id.
func (p Principal) HasEvent(id string) bool {
	_, ok := p.AccessibleEvents[id]
	return ok
}

// NewModuleSet builds a grant set from module names, skipping unknown ones.
func NewModuleSet(names []string) map[Module]struct{} {
	set := make(map[Module]struct{}, len(names))
	for _, name := range names {
		m := Module(name)
		if m.Valid() {
			set[m] = struct{}{}
		}
	}
	return set
}

// NewEventSet builds a grant set from event ids.
func NewEventSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}
