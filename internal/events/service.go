package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/eventharmony/eventharmony/internal/policy"
)

// Identity is the account snapshot recorded on a registration.
type Identity struct {
	FirstName string
	LastName  string
	Email     string
	Company   string
}

// AccountDirectory resolves account identities. The users module provides
// the production implementation.
type AccountDirectory interface {
	Identity(ctx context.Context, userID string) (Identity, error)
}

// Notifier delivers registration emails.
type Notifier interface {
	SendRegistrationConfirmation(ctx context.Context, email, name, eventName string) error
}

// DecisionObserver records authorization outcomes for metrics.
type DecisionObserver interface {
	ObserveDecision(d policy.Decision)
}

// UnknownStatusError reports a lifecycle or registration status outside the
// known set.
type UnknownStatusError struct {
	Name string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("unknown status %q", e.Name)
}

// Service handles event catalog business logic.
type Service struct {
	repo     Repository
	accounts AccountDirectory
	notifier Notifier
	stats    *StatsCache
	metrics  DecisionObserver
	logger   *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo Repository, accounts AccountDirectory, notifier Notifier, stats *StatsCache, metrics DecisionObserver, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		accounts: accounts,
		notifier: notifier,
		stats:    stats,
		metrics:  metrics,
		logger:   logger,
	}
}

func (s *Service) authorize(p policy.Principal, action policy.Action, r policy.Resource) error {
	d := policy.Evaluate(p, action, r)
	s.metrics.ObserveDecision(d)
	return d.Err()
}

// deny records and returns a denial reached outside the evaluator, such as a
// registration eligibility failure.
func (s *Service) deny(reason policy.Reason) error {
	d := policy.Deny(reason)
	s.metrics.ObserveDecision(d)
	return d.Err()
}

// List returns the events visible to the caller, narrowed by request
// filters. Visibility comes from the scope predicate, so no per-row
// evaluator calls are needed.
func (s *Service) List(ctx context.Context, p policy.Principal, filter ListFilter) ([]Event, int, error) {
	scope := policy.ScopeFilter(p, policy.KindEvent)
	return s.repo.List(ctx, scope, filter)
}

// Get fetches one event if the caller may read it.
func (s *Service) Get(ctx context.Context, p policy.Principal, id string) (*Event, error) {
	event, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(p, policy.ActionRead, event.Resource()); err != nil {
		return nil, err
	}
	return event, nil
}

// CreateInput is the event creation payload.
type CreateInput struct {
	Name                 string    `json:"name" validate:"required"`
	Description          string    `json:"description"`
	StartDate            time.Time `json:"startDate" validate:"required"`
	EndDate              time.Time `json:"endDate" validate:"required,gtfield=StartDate"`
	Location             string    `json:"location" validate:"required"`
	Status               string    `json:"status"`
	Capacity             int       `json:"capacity" validate:"gte=0"`
	RegistrationDeadline time.Time `json:"registrationDeadline"`
	IsPublic             bool      `json:"isPublic"`
	Tags                 []string  `json:"tags"`
	ActiveModules        []string  `json:"activeModules"`
	ContactEmail         string    `json:"contactEmail" validate:"omitempty,email"`
	ContactPhone         string    `json:"contactPhone"`
}

// Create adds an event to the catalog. The caller becomes the organizer.
func (s *Service) Create(ctx context.Context, p policy.Principal, in CreateInput) (*Event, error) {
	if err := s.authorize(p, policy.ActionCreate, policy.EventResource("", false, false)); err != nil {
		return nil, err
	}

	status := Status(in.Status)
	if in.Status == "" {
		status = StatusDraft
	}
	if !status.Valid() {
		return nil, &UnknownStatusError{Name: in.Status}
	}
	if err := policy.ValidateModuleSet(in.ActiveModules); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	event := &Event{
		ID:                   uuid.NewString(),
		Name:                 in.Name,
		Description:          in.Description,
		StartDate:            in.StartDate,
		EndDate:              in.EndDate,
		Location:             in.Location,
		OrganizerID:          p.ID,
		Status:               status,
		Capacity:             in.Capacity,
		RegistrationDeadline: in.RegistrationDeadline,
		IsPublic:             in.IsPublic,
		Tags:                 orEmpty(in.Tags),
		ActiveModules:        orEmpty(in.ActiveModules),
		ContactEmail:         in.ContactEmail,
		ContactPhone:         in.ContactPhone,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// Update applies a partial update if the caller may modify the event.
func (s *Service) Update(ctx context.Context, p policy.Principal, id string, in EventUpdate) (*Event, error) {
	event, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(p, policy.ActionUpdate, event.Resource()); err != nil {
		return nil, err
	}
	if in.Status != nil && !Status(*in.Status).Valid() {
		return nil, &UnknownStatusError{Name: *in.Status}
	}
	if in.ActiveModules != nil {
		if err := policy.ValidateModuleSet(in.ActiveModules); err != nil {
			return nil, err
		}
	}

	updated, err := s.repo.Update(ctx, id, in)
	if err != nil {
		return nil, err
	}
	s.stats.Invalidate(ctx, id)
	return updated, nil
}

// Delete removes an event if the caller may.
func (s *Service) Delete(ctx context.Context, p policy.Principal, id string) error {
	event, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(p, policy.ActionDelete, event.Resource()); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.stats.Invalidate(ctx, id)
	return nil
}

// Register signs the caller up for an event. Eligibility is re-validated
// under a row lock in the repository; the service maps the outcomes onto
// denial reasons so failures read the same as evaluator denials.
func (s *Service) Register(ctx context.Context, p policy.Principal, eventID string) (*Participant, error) {
	event, err := s.repo.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(p, policy.ActionRegisterSelf, event.Resource()); err != nil {
		return nil, err
	}

	identity, err := s.accounts.Identity(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	participant := &Participant{
		ID:           uuid.NewString(),
		EventID:      eventID,
		UserID:       p.ID,
		FirstName:    identity.FirstName,
		LastName:     identity.LastName,
		Email:        identity.Email,
		Company:      identity.Company,
		Status:       ParticipantRegistered,
		RegisteredAt: now,
	}

	switch err := s.repo.Register(ctx, participant, now); err {
	case nil:
	case ErrRegistrationClosed:
		return nil, s.deny(policy.ReasonRegistrationClosed)
	case ErrAtCapacity:
		return nil, s.deny(policy.ReasonAtCapacity)
	case ErrAlreadyRegistered:
		return nil, s.deny(policy.ReasonAlreadyRegistered)
	default:
		return nil, err
	}

	s.stats.Invalidate(ctx, eventID)
	if err := s.notifier.SendRegistrationConfirmation(ctx, identity.Email, participant.FullName(), event.Name); err != nil {
		s.logger.Error("send registration confirmation", slog.Any("error", err), slog.String("event_id", eventID))
	}
	return participant, nil
}

// ListParticipants returns registrations for an event behind the participant
// management gate.
func (s *Service) ListParticipants(ctx context.Context, p policy.Principal, eventID string, filter ParticipantFilter) ([]Participant, int, error) {
	if _, err := s.repo.Get(ctx, eventID); err != nil {
		return nil, 0, err
	}
	if err := s.authorize(p, policy.ActionManageParticipants, policy.ParticipantResource(eventID)); err != nil {
		return nil, 0, err
	}
	return s.repo.ListParticipants(ctx, eventID, filter)
}

// UpdateParticipant applies a partial update to a registration behind the
// participant management gate.
func (s *Service) UpdateParticipant(ctx context.Context, p policy.Principal, eventID, participantID string, in ParticipantUpdate) (*Participant, error) {
	if _, err := s.repo.Get(ctx, eventID); err != nil {
		return nil, err
	}
	if err := s.authorize(p, policy.ActionManageParticipants, policy.ParticipantResource(eventID)); err != nil {
		return nil, err
	}
	if in.Status != nil && !ParticipantStatus(*in.Status).Valid() {
		return nil, &UnknownStatusError{Name: *in.Status}
	}

	participant, err := s.repo.UpdateParticipant(ctx, eventID, participantID, in)
	if err != nil {
		return nil, err
	}
	s.stats.Invalidate(ctx, eventID)
	return participant, nil
}

// Statistics returns the cached registration summary behind the analytics
// gate.
func (s *Service) Statistics(ctx context.Context, p policy.Principal, eventID string) (*Statistics, error) {
	event, err := s.repo.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(p, policy.ActionViewStatistics, event.Resource()); err != nil {
		return nil, err
	}
	return s.stats.Get(ctx, eventID, func(ctx context.Context) (*Statistics, error) {
		return s.repo.Stats(ctx, eventID)
	})
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
