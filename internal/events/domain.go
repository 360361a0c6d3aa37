// Package events manages the event catalog, participant registration and
// attendance statistics.
package events

import (
	"time"

	"github.com/eventharmony/eventharmony/internal/policy"
)

// Status is the lifecycle state of an event.
type Status string

// Event lifecycle states.
const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Event is a conference or gathering in the catalog.
type Event struct {
	ID                   string
	Name                 string
	Description          string
	StartDate            time.Time
	EndDate              time.Time
	Location             string
	OrganizerID          string
	Status               Status
	Capacity             int
	RegistrationDeadline time.Time
	IsPublic             bool
	Tags                 []string
	ActiveModules        []string
	ContactEmail         string
	ContactPhone         string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// IsActive reports whether the event is published and not yet over.
func (e *Event) IsActive(now time.Time) bool {
	return e.Status == StatusPublished && now.Before(e.EndDate)
}

// RegistrationOpen reports whether new registrations are accepted. A zero
// deadline means registration stays open until the event starts.
func (e *Event) RegistrationOpen(now time.Time) bool {
	if e.Status != StatusPublished {
		return false
	}
	deadline := e.RegistrationDeadline
	if deadline.IsZero() {
		deadline = e.StartDate
	}
	return now.Before(deadline)
}

// AtCapacity reports whether count registrations fill the event. Capacity 0
// means unlimited.
func (e *Event) AtCapacity(count int) bool {
	return e.Capacity > 0 && count >= e.Capacity
}

// Resource maps the event onto its policy resource.
func (e *Event) Resource() policy.Resource {
	return policy.EventResource(e.ID, e.IsPublic, e.Status == StatusPublished)
}

// ParticipantStatus tracks a registration through the attendance flow.
type ParticipantStatus string

// Participant registration states.
const (
	ParticipantRegistered ParticipantStatus = "registered"
	ParticipantConfirmed  ParticipantStatus = "confirmed"
	ParticipantCheckedIn  ParticipantStatus = "checked_in"
	ParticipantCancelled  ParticipantStatus = "cancelled"
)

// Valid reports whether s is a known registration state.
func (s ParticipantStatus) Valid() bool {
	switch s {
	case ParticipantRegistered, ParticipantConfirmed, ParticipantCheckedIn, ParticipantCancelled:
		return true
	}
	return false
}

// Participant is a registration record. Identity fields are snapshotted from
// the account at registration time so badge printing and search work without
// a join.
type Participant struct {
	ID           string
	EventID      string
	UserID       string
	FirstName    string
	LastName     string
	Email        string
	Company      string
	Status       ParticipantStatus
	Remarks      string
	BadgePrinted bool
	RegisteredAt time.Time
	UpdatedAt    time.Time
}

// FullName joins first and last name.
func (p *Participant) FullName() string {
	return p.FirstName + " " + p.LastName
}

// ListFilter narrows an event listing. The filters apply on top of the
// caller's visibility scope.
type ListFilter struct {
	Status   string
	From     time.Time
	To       time.Time
	Tags     []string
	Location string
	Sort     string
	Limit    int
	Offset   int
}

// ParticipantFilter narrows a participant listing.
type ParticipantFilter struct {
	Status string
	Badge  *bool
	Search string
	Limit  int
	Offset int
}

// EventUpdate is the mutable field set. Organizer is deliberately absent.
type EventUpdate struct {
	Name                 *string    `json:"name,omitempty"`
	Description          *string    `json:"description,omitempty"`
	StartDate            *time.Time `json:"startDate,omitempty"`
	EndDate              *time.Time `json:"endDate,omitempty"`
	Location             *string    `json:"location,omitempty"`
	Status               *string    `json:"status,omitempty"`
	Capacity             *int       `json:"capacity,omitempty"`
	RegistrationDeadline *time.Time `json:"registrationDeadline,omitempty"`
	IsPublic             *bool      `json:"isPublic,omitempty"`
	Tags                 []string   `json:"tags,omitempty"`
	ActiveModules        []string   `json:"activeModules,omitempty"`
	ContactEmail         *string    `json:"contactEmail,omitempty" validate:"omitempty,email"`
	ContactPhone         *string    `json:"contactPhone,omitempty"`
}

// ParticipantUpdate is the mutable field set of a registration.
type ParticipantUpdate struct {
	Status       *string `json:"status,omitempty"`
	Remarks      *string `json:"remarks,omitempty"`
	BadgePrinted *bool   `json:"badgePrinted,omitempty"`
}

// Statistics summarizes registrations for one event.
type Statistics struct {
	EventID           string         `json:"eventId"`
	TotalParticipants int            `json:"totalParticipants"`
	ByStatus          map[string]int `json:"byStatus"`
	BadgesPrinted     int            `json:"badgesPrinted"`
	Capacity          int            `json:"capacity"`
	SpotsRemaining    int            `json:"spotsRemaining,omitempty"`
	Timeline          []TimelinePoint `json:"registrationTimeline"`
	GeneratedAt       time.Time      `json:"generatedAt"`
}

// TimelinePoint is one day of the registration timeline.
type TimelinePoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}
