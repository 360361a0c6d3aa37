package policy

import "fmt"

// Reason identifies why a request was denied. Authorization reasons map to
// HTTP 403; the registration business reasons map to 400.
type Reason string

const (
	ReasonInsufficientRole Reason = "InsufficientRole"
	ReasonNoEventAccess    Reason = "NoEventAccess"
	ReasonNoModuleAccess   Reason = "NoModuleAccess"
	ReasonNotOwner         Reason = "NotOwner"

	// Raised by the events service after an Allow, never by the evaluator.
	ReasonRegistrationClosed Reason = "RegistrationClosed"
	ReasonAtCapacity         Reason = "AtCapacity"
	ReasonAlreadyRegistered  Reason = "AlreadyRegistered"
)

// BusinessRule reports whether the reason is a registration-eligibility
// rejection rather than an authorization failure.
func (r Reason) BusinessRule() bool {
	switch r {
	case ReasonRegistrationClosed, ReasonAtCapacity, ReasonAlreadyRegistered:
		return true
	}
	return false
}

// Decision is the outcome of one evaluation.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Allow is the positive decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny builds a negative decision with its reason code.
func Deny(reason Reason) Decision {
	return Decision{Reason: reason}
}

// Err converts a denial into an error for plumbing through service layers;
// it returns nil for an allow.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &DeniedError{Reason: d.Reason}
}

// DeniedError carries a deny reason across error returns. The reason code is
// preserved for logs and tests; user-facing messages stay generic.
type DeniedError struct {
	Reason Reason
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("policy: denied (%s)", e.Reason)
}
