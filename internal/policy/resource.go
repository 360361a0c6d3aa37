package policy

// Kind identifies what sort of resource an action targets.
type Kind string

const (
	KindEvent             Kind = "event"
	KindParticipantRecord Kind = "participantRecord"
	KindUserAccount       Kind = "userAccount"
	KindMeeting           Kind = "meeting"
)

// Visibility classifies an event for the public catalog. An event is public
// when it is published and flagged isPublic; everything else is private.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Ownership expresses who counts as the owner of a meeting resource. Online
// meetings have a single organizer; B2B meetings treat both requester and
// recipient as owners for deletion.
type Ownership struct {
	owners map[string]struct{}
}

// OwnedBy builds a single-owner rule.
func OwnedBy(id string) Ownership {
	return OwnedByAny(id)
}

// OwnedByAny builds a rule satisfied by any of the given ids.
func OwnedByAny(ids ...string) Ownership {
	owners := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			owners[id] = struct{}{}
		}
	}
	return Ownership{owners: owners}
}

// Contains reports whether the id satisfies the ownership rule. An empty rule
// matches nobody.
func (o Ownership) Contains(id string) bool {
	if id == "" {
		return false
	}
	_, ok := o.owners[id]
	return ok
}

// Resource describes the target of an action.
type Resource struct {
	Kind       Kind
	ID         string
	Visibility Visibility
	Owners     Ownership
}

// EventResource builds a descriptor for an event. Publication status and the
// isPublic flag collapse into the visibility classification here so the
// evaluator never needs the full event record.
func EventResource(id string, isPublic, published bool) Resource {
	visibility := VisibilityPrivate
	if isPublic && published {
		visibility = VisibilityPublic
	}
	return Resource{Kind: KindEvent, ID: id, Visibility: visibility}
}

// ParticipantResource builds a descriptor for an event's participant roster.
// Access follows the owning event, so the event id is what grants are
// matched against.
func ParticipantResource(eventID string) Resource {
	return Resource{Kind: KindParticipantRecord, ID: eventID}
}

// AccountResource builds a descriptor for a user account.
func AccountResource(id string) Resource {
	return Resource{Kind: KindUserAccount, ID: id}
}

// MeetingResource builds a descriptor for a meeting with its ownership rule.
func MeetingResource(id string, owners Ownership) Resource {
	return Resource{Kind: KindMeeting, ID: id, Owners: owners}
}
