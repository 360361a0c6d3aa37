package events

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventharmony/eventharmony/internal/policy"
	"github.com/eventharmony/eventharmony/internal/shared"
	_ "github.com/eventharmony/eventharmony/testing"
)

type fakeRepo struct {
	events       map[string]*Event
	participants map[string]*Participant
	lastScope    policy.Scope
	statsCalls   int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{events: map[string]*Event{}, participants: map[string]*Participant{}}
}

func (f *fakeRepo) Get(_ context.Context, id string) (*Event, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return e, nil
}

func (f *fakeRepo) List(_ context.Context, scope policy.Scope, _ ListFilter) ([]Event, int, error) {
	f.lastScope = scope
	var out []Event
	for _, e := range f.events {
		if scope.Matches(e.Resource()) {
			out = append(out, *e)
		}
	}
	return out, len(out), nil
}

func (f *fakeRepo) Create(_ context.Context, e *Event) error {
	f.events[e.ID] = e
	return nil
}

func (f *fakeRepo) Update(_ context.Context, id string, in EventUpdate) (*Event, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if in.Name != nil {
		e.Name = *in.Name
	}
	if in.Status != nil {
		e.Status = Status(*in.Status)
	}
	if in.Capacity != nil {
		e.Capacity = *in.Capacity
	}
	return e, nil
}

func (f *fakeRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.events[id]; !ok {
		return shared.ErrNotFound
	}
	delete(f.events, id)
	return nil
}

func (f *fakeRepo) MissingEvents(_ context.Context, ids []string) ([]string, error) {
	var missing []string
	for _, id := range ids {
		if _, ok := f.events[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (f *fakeRepo) CompletePastEvents(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for _, e := range f.events {
		if e.Status == StatusPublished && e.EndDate.Before(now) {
			e.Status = StatusCompleted
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) Register(_ context.Context, p *Participant, now time.Time) error {
	event, ok := f.events[p.EventID]
	if !ok {
		return shared.ErrNotFound
	}
	if !event.RegistrationOpen(now) {
		return ErrRegistrationClosed
	}
	count := 0
	for _, existing := range f.participants {
		if existing.EventID == p.EventID {
			if existing.UserID == p.UserID {
				return ErrAlreadyRegistered
			}
			if existing.Status != ParticipantCancelled {
				count++
			}
		}
	}
	if event.AtCapacity(count) {
		return ErrAtCapacity
	}
	f.participants[p.ID] = p
	return nil
}

func (f *fakeRepo) ListParticipants(_ context.Context, eventID string, filter ParticipantFilter) ([]Participant, int, error) {
	var out []Participant
	for _, p := range f.participants {
		if p.EventID != eventID {
			continue
		}
		if filter.Search != "" && !containsFolded(p, filter.Search) {
			continue
		}
		out = append(out, *p)
	}
	return out, len(out), nil
}

func containsFolded(p *Participant, query string) bool {
	return strings.Contains(searchText(p), NormalizeSearch(query))
}

func (f *fakeRepo) GetParticipant(_ context.Context, eventID, participantID string) (*Participant, error) {
	p, ok := f.participants[participantID]
	if !ok || p.EventID != eventID {
		return nil, shared.ErrNotFound
	}
	return p, nil
}

func (f *fakeRepo) UpdateParticipant(_ context.Context, eventID, participantID string, in ParticipantUpdate) (*Participant, error) {
	p, ok := f.participants[participantID]
	if !ok || p.EventID != eventID {
		return nil, shared.ErrNotFound
	}
	if in.Status != nil {
		p.Status = ParticipantStatus(*in.Status)
	}
	if in.Remarks != nil {
		p.Remarks = *in.Remarks
	}
	if in.BadgePrinted != nil {
		p.BadgePrinted = *in.BadgePrinted
	}
	return p, nil
}

func (f *fakeRepo) Stats(_ context.Context, eventID string) (*Statistics, error) {
	if _, ok := f.events[eventID]; !ok {
		return nil, shared.ErrNotFound
	}
	f.statsCalls++
	stats := &Statistics{EventID: eventID, ByStatus: map[string]int{}}
	for _, p := range f.participants {
		if p.EventID != eventID {
			continue
		}
		stats.ByStatus[string(p.Status)]++
		if p.Status != ParticipantCancelled {
			stats.TotalParticipants++
		}
		if p.BadgePrinted {
			stats.BadgesPrinted++
		}
	}
	return stats, nil
}

type fakeAccounts struct{}

func (fakeAccounts) Identity(_ context.Context, userID string) (Identity, error) {
	return Identity{FirstName: "Test", LastName: userID, Email: userID + "@example.com"}, nil
}

type fakeNotifier struct {
	confirmations []string
}

func (f *fakeNotifier) SendRegistrationConfirmation(_ context.Context, email, _, _ string) error {
	f.confirmations = append(f.confirmations, email)
	return nil
}

type noopMetrics struct{}

func (noopMetrics) ObserveDecision(policy.Decision) {}

func admin() policy.Principal {
	return policy.Principal{ID: "admin1", Role: policy.RoleAdmin, Verified: true}
}

func regular(id string) policy.Principal {
	return policy.Principal{ID: id, Role: policy.RoleUser, Verified: true}
}

func clientWith(id string, events, modules []string) policy.Principal {
	return policy.Principal{
		ID:                id,
		Role:              policy.RoleClient,
		Verified:          true,
		AccessibleEvents:  policy.NewEventSet(events),
		AccessibleModules: policy.NewModuleSet(modules),
	}
}

func newTestService(t *testing.T) (*Service, *fakeRepo, *fakeNotifier) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.DiscardHandler)
	repo := newFakeRepo()
	notifier := &fakeNotifier{}
	svc := NewService(repo, fakeAccounts{}, notifier,
		NewStatsCache(client, time.Minute, logger), noopMetrics{}, logger)
	return svc, repo, notifier
}

func publishedEvent(id string, isPublic bool) *Event {
	now := time.Now().UTC()
	return &Event{
		ID:        id,
		Name:      "Event " + id,
		StartDate: now.Add(24 * time.Hour),
		EndDate:   now.Add(48 * time.Hour),
		Status:    StatusPublished,
		IsPublic:  isPublic,
	}
}

func TestListAppliesVisibilityScope(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.events["E1"] = publishedEvent("E1", true)
	repo.events["E2"] = publishedEvent("E2", false)
	repo.events["E3"] = publishedEvent("E3", false)

	visible, _, err := svc.List(context.Background(), regular("u1"), ListFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "E1", visible[0].ID)

	visible, _, err = svc.List(context.Background(), clientWith("c1", []string{"E2"}, nil), ListFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "E2", visible[0].ID)

	visible, _, err = svc.List(context.Background(), admin(), ListFilter{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, visible, 3)
}

func TestGetEnforcesReadPolicy(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.events["E1"] = publishedEvent("E1", false)

	_, err := svc.Get(context.Background(), regular("u1"), "E1")
	var denied *policy.DeniedError
	require.ErrorAs(t, err, &denied)

	_, err = svc.Get(context.Background(), clientWith("c1", []string{"E1"}, nil), "E1")
	assert.NoError(t, err)

	_, err = svc.Get(context.Background(), regular("u1"), "nope")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateSetsOrganizerAndDefaults(t *testing.T) {
	svc, repo, _ := newTestService(t)

	in := CreateInput{
		Name:      "GopherCon",
		StartDate: time.Now().Add(24 * time.Hour),
		EndDate:   time.Now().Add(48 * time.Hour),
		Location:  "Denver",
	}

	_, err := svc.Create(context.Background(), regular("u1"), in)
	var denied *policy.DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, policy.ReasonInsufficientRole, denied.Reason)

	_, err = svc.Create(context.Background(), clientWith("c1", nil, nil), in)
	require.ErrorAs(t, err, &denied)

	event, err := svc.Create(context.Background(), admin(), in)
	require.NoError(t, err)
	assert.Equal(t, "admin1", event.OrganizerID)
	assert.Equal(t, StatusDraft, event.Status)
	assert.Contains(t, repo.events, event.ID)
}

func TestCreateRejectsUnknownStatusAndModules(t *testing.T) {
	svc, _, _ := newTestService(t)

	in := CreateInput{
		Name:      "GopherCon",
		StartDate: time.Now().Add(24 * time.Hour),
		EndDate:   time.Now().Add(48 * time.Hour),
		Location:  "Denver",
		Status:    "archived",
	}
	_, err := svc.Create(context.Background(), admin(), in)
	var unknownStatus *UnknownStatusError
	require.ErrorAs(t, err, &unknownStatus)

	in.Status = "published"
	in.ActiveModules = []string{"analytics", "bogus"}
	_, err = svc.Create(context.Background(), admin(), in)
	var invalid *policy.InvalidModuleError
	require.ErrorAs(t, err, &invalid)
}

func TestUpdateAllowsGrantedClient(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.events["E1"] = publishedEvent("E1", false)

	name := "Renamed"
	_, err := svc.Update(context.Background(), clientWith("c1", nil, nil), "E1", EventUpdate{Name: &name})
	var denied *policy.DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, policy.ReasonNoEventAccess, denied.Reason)

	updated, err := svc.Update(context.Background(), clientWith("c1", []string{"E1"}, nil), "E1", EventUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
}

func TestDeleteIsPrivilegedOnly(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.events["E1"] = publishedEvent("E1", true)

	err := svc.Delete(context.Background(), clientWith("c1", []string{"E1"}, nil), "E1")
	var denied *policy.DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, policy.ReasonInsufficientRole, denied.Reason)

	require.NoError(t, svc.Delete(context.Background(), admin(), "E1"))
	assert.Empty(t, repo.events)
}

func TestRegisterHappyPath(t *testing.T) {
	svc, repo, notifier := newTestService(t)
	repo.events["E1"] = publishedEvent("E1", true)

	participant, err := svc.Register(context.Background(), regular("u1"), "E1")
	require.NoError(t, err)
	assert.Equal(t, "u1", participant.UserID)
	assert.Equal(t, ParticipantRegistered, participant.Status)
	assert.Equal(t, []string{"u1@example.com"}, notifier.confirmations)
}

func TestRegisterEligibilityDenials(t *testing.T) {
	svc, repo, _ := newTestService(t)

	t.Run("unpublished event reads as closed", func(t *testing.T) {
		draft := publishedEvent("E1", true)
		draft.Status = StatusDraft
		repo.events["E1"] = draft

		_, err := svc.Register(context.Background(), regular("u1"), "E1")
		var denied *policy.DeniedError
		require.ErrorAs(t, err, &denied)
		assert.Equal(t, policy.ReasonRegistrationClosed, denied.Reason)
		assert.True(t, denied.Reason.BusinessRule())
	})

	t.Run("past deadline", func(t *testing.T) {
		closed := publishedEvent("E2", true)
		closed.RegistrationDeadline = time.Now().UTC().Add(-time.Hour)
		repo.events["E2"] = closed

		_, err := svc.Register(context.Background(), regular("u1"), "E2")
		var denied *policy.DeniedError
		require.ErrorAs(t, err, &denied)
		assert.Equal(t, policy.ReasonRegistrationClosed, denied.Reason)
	})

	t.Run("capacity", func(t *testing.T) {
		limited := publishedEvent("E3", true)
		limited.Capacity = 1
		repo.events["E3"] = limited

		_, err := svc.Register(context.Background(), regular("u1"), "E3")
		require.NoError(t, err)

		_, err = svc.Register(context.Background(), regular("u2"), "E3")
		var denied *policy.DeniedError
		require.ErrorAs(t, err, &denied)
		assert.Equal(t, policy.ReasonAtCapacity, denied.Reason)
	})

	t.Run("duplicate", func(t *testing.T) {
		repo.events["E4"] = publishedEvent("E4", true)

		_, err := svc.Register(context.Background(), regular("u1"), "E4")
		require.NoError(t, err)

		_, err = svc.Register(context.Background(), regular("u1"), "E4")
		var denied *policy.DeniedError
		require.ErrorAs(t, err, &denied)
		assert.Equal(t, policy.ReasonAlreadyRegistered, denied.Reason)
	})
}

func TestParticipantsGate(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.events["E1"] = publishedEvent("E1", true)

	_, _, err := svc.ListParticipants(context.Background(), regular("u1"), "E1", ParticipantFilter{Limit: 10})
	var denied *policy.DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, policy.ReasonInsufficientRole, denied.Reason)

	// Event grant alone is not enough, the module is needed too.
	_, _, err = svc.ListParticipants(context.Background(), clientWith("c1", []string{"E1"}, nil), "E1", ParticipantFilter{Limit: 10})
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, policy.ReasonNoModuleAccess, denied.Reason)

	operator := clientWith("c1", []string{"E1"}, []string{"participant_management"})
	_, _, err = svc.ListParticipants(context.Background(), operator, "E1", ParticipantFilter{Limit: 10})
	assert.NoError(t, err)
}

func TestParticipantSearchFoldsDiacritics(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.events["E1"] = publishedEvent("E1", true)
	repo.participants["p1"] = &Participant{
		ID: "p1", EventID: "E1", UserID: "u1",
		FirstName: "José", LastName: "García", Email: "jose@example.com",
		Status: ParticipantRegistered,
	}

	operator := clientWith("c1", []string{"E1"}, []string{"participant_management"})
	found, _, err := svc.ListParticipants(context.Background(), operator, "E1", ParticipantFilter{Search: "garcia", Limit: 10})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "p1", found[0].ID)
}

func TestUpdateParticipantValidatesStatus(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.events["E1"] = publishedEvent("E1", true)
	repo.participants["p1"] = &Participant{ID: "p1", EventID: "E1", UserID: "u1", Status: ParticipantRegistered}

	bogus := "vanished"
	_, err := svc.UpdateParticipant(context.Background(), admin(), "E1", "p1", ParticipantUpdate{Status: &bogus})
	var unknownStatus *UnknownStatusError
	require.ErrorAs(t, err, &unknownStatus)

	checkedIn := string(ParticipantCheckedIn)
	printed := true
	updated, err := svc.UpdateParticipant(context.Background(), admin(), "E1", "p1", ParticipantUpdate{
		Status: &checkedIn, BadgePrinted: &printed,
	})
	require.NoError(t, err)
	assert.Equal(t, ParticipantCheckedIn, updated.Status)
	assert.True(t, updated.BadgePrinted)
}

func TestStatisticsGateAndCache(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.events["E1"] = publishedEvent("E1", true)
	repo.participants["p1"] = &Participant{ID: "p1", EventID: "E1", UserID: "u1", Status: ParticipantConfirmed, BadgePrinted: true}

	_, err := svc.Statistics(context.Background(), clientWith("c1", []string{"E1"}, nil), "E1")
	var denied *policy.DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, policy.ReasonNoModuleAccess, denied.Reason)

	analyst := clientWith("c1", []string{"E1"}, []string{"analytics"})
	stats, err := svc.Statistics(context.Background(), analyst, "E1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalParticipants)
	assert.Equal(t, 1, stats.BadgesPrinted)
	assert.Equal(t, 1, repo.statsCalls)

	// Second read hits the cache.
	_, err = svc.Statistics(context.Background(), analyst, "E1")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.statsCalls)

	// A mutation invalidates the cache.
	remarks := "VIP"
	_, err = svc.UpdateParticipant(context.Background(), admin(), "E1", "p1", ParticipantUpdate{Remarks: &remarks})
	require.NoError(t, err)
	_, err = svc.Statistics(context.Background(), analyst, "E1")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.statsCalls)
}
