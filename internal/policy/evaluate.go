package policy

// rule inspects one request and either decides it or passes. Rules run in
// declaration order; the first decision wins.
type rule func(p Principal, action Action, r Resource) (Decision, bool)

// rules is the ordered decision list. Ownership checks on meetings run ahead
// of the baseline-role fallback so that plain users can manage their own
// meetings, and the public-catalog rule runs ahead of client scoping so that
// a client is never locked out of a public event.
var rules = []rule{
	rulePrivileged,
	ruleRegisterSelf,
	rulePublicEvent,
	ruleMeetingOwnership,
	ruleClientScope,
	ruleBaselineUser,
}

// Evaluate decides whether the principal may perform the action on the
// resource. It is a pure function: same inputs, same decision.
func Evaluate(p Principal, action Action, r Resource) Decision {
	for _, rl := range rules {
		if d, ok := rl(p, action, r); ok {
			return d
		}
	}
	return Deny(ReasonInsufficientRole)
}

// rulePrivileged grants admin and product owner everything. The two roles are
// policy-equivalent.
func rulePrivileged(p Principal, _ Action, _ Resource) (Decision, bool) {
	if p.Role.Privileged() {
		return Allow(), true
	}
	return Decision{}, false
}

// ruleRegisterSelf lets any authenticated principal attempt event
// self-registration. Eligibility (window, capacity, duplicates) is the events
// service's separate deny surface, re-checked at write time.
func ruleRegisterSelf(_ Principal, action Action, r Resource) (Decision, bool) {
	if action != ActionRegisterSelf {
		return Decision{}, false
	}
	if r.Kind == KindEvent {
		return Allow(), true
	}
	return Decision{}, false
}

// rulePublicEvent keeps the public catalog readable by literally anyone,
// including principals with no grants at all.
func rulePublicEvent(_ Principal, action Action, r Resource) (Decision, bool) {
	if r.Kind != KindEvent || r.Visibility != VisibilityPublic {
		return Decision{}, false
	}
	if action == ActionRead || action == ActionList {
		return Allow(), true
	}
	return Decision{}, false
}

// ruleMeetingOwnership restricts meeting mutation to the meeting's owners,
// whatever the subtype's ownership rule says those are.
func ruleMeetingOwnership(p Principal, action Action, r Resource) (Decision, bool) {
	if r.Kind != KindMeeting {
		return Decision{}, false
	}
	if action != ActionUpdate && action != ActionDelete {
		return Decision{}, false
	}
	if r.Owners.Contains(p.ID) {
		return Allow(), true
	}
	return Deny(ReasonNotOwner), true
}

// ruleClientScope applies resource-grant and module-grant gating for client
// accounts. The module check runs only after event access has passed.
func ruleClientScope(p Principal, action Action, r Resource) (Decision, bool) {
	if p.Role != RoleClient {
		return Decision{}, false
	}
	if r.Kind != KindEvent && r.Kind != KindParticipantRecord {
		return Decision{}, false
	}
	switch action {
	case ActionCreate, ActionDelete:
		// Clients never create or delete events regardless of grants.
		return Deny(ReasonInsufficientRole), true
	case ActionRead, ActionList, ActionUpdate, ActionManageParticipants, ActionViewStatistics:
		if !p.HasEvent(r.ID) {
			return Deny(ReasonNoEventAccess), true
		}
		if action == ActionManageParticipants && !p.HasModule(ModuleParticipantManagement) {
			return Deny(ReasonNoModuleAccess), true
		}
		if action == ActionViewStatistics && !p.HasModule(ModuleAnalytics) {
			return Deny(ReasonNoModuleAccess), true
		}
		return Allow(), true
	}
	return Decision{}, false
}

// ruleBaselineUser denies baseline users anything an earlier rule did not
// already allow.
func ruleBaselineUser(p Principal, _ Action, _ Resource) (Decision, bool) {
	if p.Role == RoleUser {
		return Deny(ReasonInsufficientRole), true
	}
	return Decision{}, false
}
