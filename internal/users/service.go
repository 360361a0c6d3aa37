package users

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/eventharmony/eventharmony/internal/policy"
	"github.com/eventharmony/eventharmony/internal/shared"
)

// EventDirectory answers whether event ids exist. The events module provides
// the production implementation.
type EventDirectory interface {
	MissingEvents(ctx context.Context, ids []string) ([]string, error)
}

// DecisionObserver records authorization outcomes for metrics.
type DecisionObserver interface {
	ObserveDecision(d policy.Decision)
}

// AuditPort persists admin-side account mutations for later review.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// UnknownEventsError reports grant updates that reference events that do not
// exist. The whole update is rejected.
type UnknownEventsError struct {
	IDs []string
}

func (e *UnknownEventsError) Error() string {
	return fmt.Sprintf("users: unknown events: %v", e.IDs)
}

// Service handles account management business logic.
type Service struct {
	repo    Repository
	events  EventDirectory
	audit   AuditPort
	metrics DecisionObserver
}

// NewService builds a Service instance.
func NewService(repo Repository, events EventDirectory, audit AuditPort, metrics DecisionObserver) *Service {
	return &Service{repo: repo, events: events, audit: audit, metrics: metrics}
}

func (s *Service) authorize(p policy.Principal, action policy.Action, r policy.Resource) error {
	d := policy.Evaluate(p, action, r)
	s.metrics.ObserveDecision(d)
	return d.Err()
}

// Profile returns the caller's own account.
func (s *Service) Profile(ctx context.Context, p policy.Principal) (*Account, error) {
	return s.repo.Get(ctx, p.ID)
}

// UpdateOwnProfile applies the self-service field subset to the caller's
// account. No policy check is needed; the target is always the caller.
func (s *Service) UpdateOwnProfile(ctx context.Context, p policy.Principal, in ProfileUpdate) (*Account, error) {
	return s.repo.UpdateProfile(ctx, p.ID, in)
}

// List returns a page of the account directory.
func (s *Service) List(ctx context.Context, p policy.Principal, filter ListFilter) ([]Account, int, error) {
	if err := s.authorize(p, policy.ActionList, policy.AccountResource("")); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, filter)
}

// CreateInput is the admin-side account creation payload.
type CreateInput struct {
	FirstName string   `json:"firstName" validate:"required"`
	LastName  string   `json:"lastName" validate:"required"`
	Email     string   `json:"email" validate:"required,email"`
	Password  string   `json:"password" validate:"required,min=6"`
	Role      string   `json:"role"`
	Company   string   `json:"company"`
	Position  string   `json:"position"`
	Phone     string   `json:"phone"`
	Events    []string `json:"accessibleEvents"`
	Modules   []string `json:"accessibleModules"`
}

// Create provisions an account with an explicit role. Grant sets are only
// honored for client accounts.
func (s *Service) Create(ctx context.Context, p policy.Principal, in CreateInput) (*Account, error) {
	if err := s.authorize(p, policy.ActionCreate, policy.AccountResource("")); err != nil {
		return nil, err
	}

	role := policy.Role(in.Role)
	if in.Role == "" {
		role = policy.RoleUser
	}
	if !role.Valid() {
		return nil, fmt.Errorf("users: %w", &UnknownRoleError{Name: in.Role})
	}

	events := []string{}
	modules := []string{}
	if role == policy.RoleClient {
		if err := policy.ValidateModuleSet(in.Modules); err != nil {
			return nil, err
		}
		if err := s.checkEventsExist(ctx, in.Events); err != nil {
			return nil, err
		}
		if in.Events != nil {
			events = in.Events
		}
		if in.Modules != nil {
			modules = in.Modules
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("users: hash password: %w", err)
	}

	now := time.Now().UTC()
	account := &Account{
		ID:                uuid.NewString(),
		FirstName:         in.FirstName,
		LastName:          in.LastName,
		Email:             in.Email,
		Role:              role,
		Company:           in.Company,
		Position:          in.Position,
		Phone:             in.Phone,
		IsVerified:        true,
		AccessibleModules: modules,
		AccessibleEvents:  events,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.Create(ctx, account, string(hash)); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, p, "account:create", account.ID, map[string]any{"role": string(role)})
	return account, nil
}

func (s *Service) recordAudit(ctx context.Context, p policy.Principal, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  p.ID,
		Action:   action,
		Entity:   "account",
		EntityID: entityID,
		Meta:     meta,
	})
}

// UnknownRoleError reports an account role outside the known set.
type UnknownRoleError struct {
	Name string
}

func (e *UnknownRoleError) Error() string {
	return fmt.Sprintf("unknown role %q", e.Name)
}

// Get fetches one account from the directory.
func (s *Service) Get(ctx context.Context, p policy.Principal, id string) (*Account, error) {
	if err := s.authorize(p, policy.ActionRead, policy.AccountResource(id)); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Update applies admin-side changes to an account.
func (s *Service) Update(ctx context.Context, p policy.Principal, id string, in AccountUpdate) (*Account, error) {
	if err := s.authorize(p, policy.ActionUpdate, policy.AccountResource(id)); err != nil {
		return nil, err
	}
	if in.Role != nil && !policy.Role(*in.Role).Valid() {
		return nil, fmt.Errorf("users: %w", &UnknownRoleError{Name: *in.Role})
	}
	account, err := s.repo.Update(ctx, id, in)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, p, "account:update", id, nil)
	return account, nil
}

// Delete removes an account.
func (s *Service) Delete(ctx context.Context, p policy.Principal, id string) error {
	if err := s.authorize(p, policy.ActionDelete, policy.AccountResource(id)); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, p, "account:delete", id, nil)
	return nil
}

// ListClients returns a page of client accounts.
func (s *Service) ListClients(ctx context.Context, p policy.Principal, limit, offset int) ([]Account, int, error) {
	if err := s.authorize(p, policy.ActionList, policy.AccountResource("")); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, ListFilter{Role: string(policy.RoleClient), Limit: limit, Offset: offset})
}

// CreateClient provisions a client account regardless of the role named in
// the payload.
func (s *Service) CreateClient(ctx context.Context, p policy.Principal, in CreateInput) (*Account, error) {
	in.Role = string(policy.RoleClient)
	return s.Create(ctx, p, in)
}

// UpdateClientEvents replaces a client's event grants after verifying every
// referenced event exists.
func (s *Service) UpdateClientEvents(ctx context.Context, p policy.Principal, id string, events []string) (*Account, error) {
	if err := s.authorize(p, policy.ActionUpdate, policy.AccountResource(id)); err != nil {
		return nil, err
	}
	if _, err := s.requireClient(ctx, id); err != nil {
		return nil, err
	}
	if err := s.checkEventsExist(ctx, events); err != nil {
		return nil, err
	}
	if events == nil {
		events = []string{}
	}
	account, err := s.repo.SetAccessibleEvents(ctx, id, events)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, p, "account:grant_events", id, map[string]any{"events": events})
	return account, nil
}

// UpdateClientModules replaces a client's module grants. The set is validated
// as a whole; one unknown name rejects the entire update.
func (s *Service) UpdateClientModules(ctx context.Context, p policy.Principal, id string, modules []string) (*Account, error) {
	if err := s.authorize(p, policy.ActionUpdate, policy.AccountResource(id)); err != nil {
		return nil, err
	}
	if _, err := s.requireClient(ctx, id); err != nil {
		return nil, err
	}
	if err := policy.ValidateModuleSet(modules); err != nil {
		return nil, err
	}
	if modules == nil {
		modules = []string{}
	}
	account, err := s.repo.SetAccessibleModules(ctx, id, modules)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, p, "account:grant_modules", id, map[string]any{"modules": modules})
	return account, nil
}

// NotAClientError reports grant updates aimed at a non-client account.
type NotAClientError struct {
	ID string
}

func (e *NotAClientError) Error() string {
	return fmt.Sprintf("account %s is not a client", e.ID)
}

func (s *Service) requireClient(ctx context.Context, id string) (*Account, error) {
	account, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if account.Role != policy.RoleClient {
		return nil, &NotAClientError{ID: id}
	}
	return account, nil
}

func (s *Service) checkEventsExist(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	missing, err := s.events.MissingEvents(ctx, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return &UnknownEventsError{IDs: missing}
	}
	return nil
}
