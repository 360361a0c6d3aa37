// Package meetings manages B2B networking meetings and online meetings.
package meetings

import (
	"time"

	"github.com/eventharmony/eventharmony/internal/policy"
)

// B2BStatus is the lifecycle state of a B2B meeting request.
type B2BStatus string

// B2B meeting states.
const (
	B2BPending   B2BStatus = "pending"
	B2BAccepted  B2BStatus = "accepted"
	B2BDeclined  B2BStatus = "declined"
	B2BCompleted B2BStatus = "completed"
	B2BCancelled B2BStatus = "cancelled"
)

// Valid reports whether s is a known B2B meeting state.
func (s B2BStatus) Valid() bool {
	switch s {
	case B2BPending, B2BAccepted, B2BDeclined, B2BCompleted, B2BCancelled:
		return true
	}
	return false
}

// B2BMeeting is an in-person meeting request between two participants of an
// event.
type B2BMeeting struct {
	ID          string
	EventID     string
	RequesterID string
	RecipientID string
	ScheduledAt time.Time
	Location    string
	Agenda      string
	Status      B2BStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StatusResource is the policy resource for responding to the request. Only
// the recipient owns the response.
func (m *B2BMeeting) StatusResource() policy.Resource {
	return policy.MeetingResource(m.ID, policy.OwnedBy(m.RecipientID))
}

// DeleteResource is the policy resource for withdrawing the request. Either
// side may delete.
func (m *B2BMeeting) DeleteResource() policy.Resource {
	return policy.MeetingResource(m.ID, policy.OwnedByAny(m.RequesterID, m.RecipientID))
}

// Involves reports whether the user is on either side of the meeting.
func (m *B2BMeeting) Involves(userID string) bool {
	return m.RequesterID == userID || m.RecipientID == userID
}

// OnlineStatus is the lifecycle state of an online meeting.
type OnlineStatus string

// Online meeting states.
const (
	OnlineScheduled  OnlineStatus = "scheduled"
	OnlineInProgress OnlineStatus = "in_progress"
	OnlineCompleted  OnlineStatus = "completed"
	OnlineCancelled  OnlineStatus = "cancelled"
)

// Valid reports whether s is a known online meeting state.
func (s OnlineStatus) Valid() bool {
	switch s {
	case OnlineScheduled, OnlineInProgress, OnlineCompleted, OnlineCancelled:
		return true
	}
	return false
}

// ParticipationStatus is an invitee's answer to an online meeting.
type ParticipationStatus string

// Participation states.
const (
	ParticipationPending  ParticipationStatus = "pending"
	ParticipationAccepted ParticipationStatus = "accepted"
	ParticipationDeclined ParticipationStatus = "declined"
)

// Valid reports whether s is a known participation state.
func (s ParticipationStatus) Valid() bool {
	switch s {
	case ParticipationPending, ParticipationAccepted, ParticipationDeclined:
		return true
	}
	return false
}

// OnlineParticipant is one invitee of an online meeting.
type OnlineParticipant struct {
	UserID    string
	Status    ParticipationStatus
	InvitedAt time.Time
	UpdatedAt time.Time
}

// OnlineMeeting is a scheduled video call organized by a user.
type OnlineMeeting struct {
	ID              string
	Title           string
	Description     string
	OrganizerID     string
	ScheduledAt     time.Time
	DurationMinutes int
	MeetingURL      string
	Status          OnlineStatus
	Participants    []OnlineParticipant
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrganizerResource is the policy resource for organizer-only mutations.
func (m *OnlineMeeting) OrganizerResource() policy.Resource {
	return policy.MeetingResource(m.ID, policy.OwnedBy(m.OrganizerID))
}

// ParticipantResource is the policy resource for invitee self-service. Every
// invitee owns their own answer.
func (m *OnlineMeeting) ParticipantResource() policy.Resource {
	ids := make([]string, 0, len(m.Participants))
	for _, p := range m.Participants {
		ids = append(ids, p.UserID)
	}
	return policy.MeetingResource(m.ID, policy.OwnedByAny(ids...))
}
