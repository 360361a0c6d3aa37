package meetings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eventharmony/eventharmony/internal/policy"
	"github.com/eventharmony/eventharmony/internal/shared"
)

// Directory answers existence questions about accounts and events. The users
// and events modules provide the production implementation.
type Directory interface {
	AccountExists(ctx context.Context, userID string) (bool, error)
	EventExists(ctx context.Context, eventID string) (bool, error)
}

// DecisionObserver records authorization outcomes for metrics.
type DecisionObserver interface {
	ObserveDecision(d policy.Decision)
}

// ErrSelfMeeting rejects B2B requests aimed at the requester themselves.
var ErrSelfMeeting = errors.New("meetings: cannot request a meeting with yourself")

// UnknownStatusError reports a status outside the known set.
type UnknownStatusError struct {
	Name string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("unknown status %q", e.Name)
}

// Service handles meeting business logic.
type Service struct {
	repo      Repository
	directory Directory
	metrics   DecisionObserver
}

// NewService builds a Service instance.
func NewService(repo Repository, directory Directory, metrics DecisionObserver) *Service {
	return &Service{repo: repo, directory: directory, metrics: metrics}
}

func (s *Service) authorize(p policy.Principal, action policy.Action, r policy.Resource) error {
	d := policy.Evaluate(p, action, r)
	s.metrics.ObserveDecision(d)
	return d.Err()
}

// B2BCreateInput is the meeting request payload.
type B2BCreateInput struct {
	EventID     string    `json:"eventId" validate:"required"`
	RecipientID string    `json:"recipientId" validate:"required"`
	ScheduledAt time.Time `json:"scheduledAt" validate:"required"`
	Location    string    `json:"location"`
	Agenda      string    `json:"agenda"`
}

// CreateB2B files a meeting request from the caller to another participant.
func (s *Service) CreateB2B(ctx context.Context, p policy.Principal, in B2BCreateInput) (*B2BMeeting, error) {
	if in.RecipientID == p.ID {
		return nil, ErrSelfMeeting
	}
	if ok, err := s.directory.EventExists(ctx, in.EventID); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("meetings: event %s: %w", in.EventID, shared.ErrNotFound)
	}
	if ok, err := s.directory.AccountExists(ctx, in.RecipientID); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("meetings: recipient %s: %w", in.RecipientID, shared.ErrNotFound)
	}

	now := time.Now().UTC()
	meeting := &B2BMeeting{
		ID:          uuid.NewString(),
		EventID:     in.EventID,
		RequesterID: p.ID,
		RecipientID: in.RecipientID,
		ScheduledAt: in.ScheduledAt,
		Location:    in.Location,
		Agenda:      in.Agenda,
		Status:      B2BPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateB2B(ctx, meeting); err != nil {
		return nil, err
	}
	return meeting, nil
}

// ListB2BByEvent returns meeting requests tied to an event.
func (s *Service) ListB2BByEvent(ctx context.Context, eventID string, limit, offset int) ([]B2BMeeting, int, error) {
	if ok, err := s.directory.EventExists(ctx, eventID); err != nil {
		return nil, 0, err
	} else if !ok {
		return nil, 0, fmt.Errorf("meetings: event %s: %w", eventID, shared.ErrNotFound)
	}
	return s.repo.ListB2BByEvent(ctx, eventID, limit, offset)
}

// ListMyB2B returns the caller's meeting requests, both sent and received.
func (s *Service) ListMyB2B(ctx context.Context, p policy.Principal, limit, offset int) ([]B2BMeeting, int, error) {
	return s.repo.ListB2BForUser(ctx, p.ID, limit, offset)
}

// RespondB2B stores the recipient's answer. Ownership routes through the
// evaluator, so only the recipient or a privileged role may respond.
func (s *Service) RespondB2B(ctx context.Context, p policy.Principal, id string, status string) (*B2BMeeting, error) {
	if !B2BStatus(status).Valid() {
		return nil, &UnknownStatusError{Name: status}
	}
	meeting, err := s.repo.GetB2B(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(p, policy.ActionUpdate, meeting.StatusResource()); err != nil {
		return nil, err
	}
	return s.repo.UpdateB2BStatus(ctx, id, B2BStatus(status))
}

// DeleteB2B withdraws a meeting request. Either side may do it.
func (s *Service) DeleteB2B(ctx context.Context, p policy.Principal, id string) error {
	meeting, err := s.repo.GetB2B(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(p, policy.ActionDelete, meeting.DeleteResource()); err != nil {
		return err
	}
	return s.repo.DeleteB2B(ctx, id)
}

// OnlineCreateInput is the online meeting payload.
type OnlineCreateInput struct {
	Title           string    `json:"title" validate:"required"`
	Description     string    `json:"description"`
	ScheduledAt     time.Time `json:"scheduledAt" validate:"required"`
	DurationMinutes int       `json:"durationMinutes" validate:"gt=0"`
	MeetingURL      string    `json:"meetingUrl" validate:"omitempty,url"`
	ParticipantIDs  []string  `json:"participantIds"`
}

// CreateOnline schedules a video call. Invitees start out pending.
func (s *Service) CreateOnline(ctx context.Context, p policy.Principal, in OnlineCreateInput) (*OnlineMeeting, error) {
	now := time.Now().UTC()
	meeting := &OnlineMeeting{
		ID:              uuid.NewString(),
		Title:           in.Title,
		Description:     in.Description,
		OrganizerID:     p.ID,
		ScheduledAt:     in.ScheduledAt,
		DurationMinutes: in.DurationMinutes,
		MeetingURL:      in.MeetingURL,
		Status:          OnlineScheduled,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	seen := map[string]struct{}{p.ID: {}}
	for _, id := range in.ParticipantIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if ok, err := s.directory.AccountExists(ctx, id); err != nil {
			return nil, err
		} else if !ok {
			return nil, fmt.Errorf("meetings: participant %s: %w", id, shared.ErrNotFound)
		}
		meeting.Participants = append(meeting.Participants, OnlineParticipant{
			UserID:    id,
			Status:    ParticipationPending,
			InvitedAt: now,
			UpdatedAt: now,
		})
	}
	if err := s.repo.CreateOnline(ctx, meeting); err != nil {
		return nil, err
	}
	return meeting, nil
}

// ListOrganized returns meetings the caller organizes.
func (s *Service) ListOrganized(ctx context.Context, p policy.Principal, limit, offset int) ([]OnlineMeeting, int, error) {
	return s.repo.ListOrganized(ctx, p.ID, limit, offset)
}

// ListParticipating returns meetings the caller is invited to.
func (s *Service) ListParticipating(ctx context.Context, p policy.Principal, limit, offset int) ([]OnlineMeeting, int, error) {
	return s.repo.ListParticipating(ctx, p.ID, limit, offset)
}

// UpdateOnlineStatus applies an organizer-only lifecycle change.
func (s *Service) UpdateOnlineStatus(ctx context.Context, p policy.Principal, id string, status string) (*OnlineMeeting, error) {
	if !OnlineStatus(status).Valid() {
		return nil, &UnknownStatusError{Name: status}
	}
	meeting, err := s.repo.GetOnline(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(p, policy.ActionUpdate, meeting.OrganizerResource()); err != nil {
		return nil, err
	}
	return s.repo.UpdateOnlineStatus(ctx, id, OnlineStatus(status))
}

// RespondOnline stores the caller's own answer to an invitation.
func (s *Service) RespondOnline(ctx context.Context, p policy.Principal, id string, status string) (*OnlineMeeting, error) {
	if !ParticipationStatus(status).Valid() {
		return nil, &UnknownStatusError{Name: status}
	}
	meeting, err := s.repo.GetOnline(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(p, policy.ActionUpdate, meeting.ParticipantResource()); err != nil {
		return nil, err
	}
	return s.repo.UpdateParticipation(ctx, id, p.ID, ParticipationStatus(status))
}

// DeleteOnline cancels a meeting. Organizer only.
func (s *Service) DeleteOnline(ctx context.Context, p policy.Principal, id string) error {
	meeting, err := s.repo.GetOnline(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(p, policy.ActionDelete, meeting.OrganizerResource()); err != nil {
		return err
	}
	return s.repo.DeleteOnline(ctx, id)
}
