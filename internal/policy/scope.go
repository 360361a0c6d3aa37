package policy

import (
	"fmt"
	"sort"
)

// Scope is the declarative visible-set filter for listing endpoints. It is
// conjoined with caller-supplied filters before pagination and sorting.
type Scope struct {
	unrestricted bool
	publicOnly   bool
	ids          []string
}

// ScopeFilter computes the visible set for a principal listing resources of
// the given kind.
func ScopeFilter(p Principal, kind Kind) Scope {
	if p.Role.Privileged() {
		return Scope{unrestricted: true}
	}
	switch kind {
	case KindEvent:
		if p.Role == RoleClient {
			ids := make([]string, 0, len(p.AccessibleEvents))
			for id := range p.AccessibleEvents {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			return Scope{ids: ids}
		}
		return Scope{publicOnly: true}
	case KindUserAccount:
		// Listing accounts is never self-service.
		return Scope{}
	}
	return Scope{}
}

// Unrestricted reports whether the scope admits everything.
func (s Scope) Unrestricted() bool {
	return s.unrestricted
}

// MatchesNothing reports whether the scope is empty: no grants and no public
// fallback.
func (s Scope) MatchesNothing() bool {
	return !s.unrestricted && !s.publicOnly && len(s.ids) == 0
}

// Matches tests a single resource against the scope in memory.
func (s Scope) Matches(r Resource) bool {
	if s.unrestricted {
		return true
	}
	if s.publicOnly {
		return r.Visibility == VisibilityPublic
	}
	for _, id := range s.ids {
		if id == r.ID {
			return true
		}
	}
	return false
}

// EventIDs returns the granted event ids for a finite scope, nil otherwise.
func (s Scope) EventIDs() []string {
	if s.unrestricted || s.publicOnly {
		return nil
	}
	return append([]string(nil), s.ids...)
}

// SQL renders the scope as a WHERE fragment for the events table. idColumn
// names the id column and publicExpr the boolean expression classifying a row
// as public. Placeholder numbering starts after argOffset.
func (s Scope) SQL(idColumn, publicExpr string, argOffset int) (string, []any) {
	switch {
	case s.unrestricted:
		return "TRUE", nil
	case s.publicOnly:
		return publicExpr, nil
	case len(s.ids) == 0:
		return "FALSE", nil
	default:
		return fmt.Sprintf("%s = ANY($%d)", idColumn, argOffset+1), []any{s.ids}
	}
}
