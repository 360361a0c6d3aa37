package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventharmony/eventharmony/internal/policy"
	"github.com/eventharmony/eventharmony/internal/shared"
	_ "github.com/eventharmony/eventharmony/testing"
)

type fakeRepo struct {
	accounts map[string]*Account
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{accounts: map[string]*Account{}}
}

func (f *fakeRepo) Get(_ context.Context, id string) (*Account, error) {
	a, ok := f.accounts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return a, nil
}

func (f *fakeRepo) List(_ context.Context, filter ListFilter) ([]Account, int, error) {
	var out []Account
	for _, a := range f.accounts {
		if filter.Role != "" && string(a.Role) != filter.Role {
			continue
		}
		out = append(out, *a)
	}
	return out, len(out), nil
}

func (f *fakeRepo) Create(_ context.Context, a *Account, _ string) error {
	for _, existing := range f.accounts {
		if existing.Email == a.Email {
			return shared.ErrDuplicate
		}
	}
	f.accounts[a.ID] = a
	return nil
}

func (f *fakeRepo) UpdateProfile(_ context.Context, id string, in ProfileUpdate) (*Account, error) {
	a, ok := f.accounts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if in.FirstName != nil {
		a.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		a.LastName = *in.LastName
	}
	if in.Company != nil {
		a.Company = *in.Company
	}
	if in.Position != nil {
		a.Position = *in.Position
	}
	if in.Phone != nil {
		a.Phone = *in.Phone
	}
	a.UpdatedAt = time.Now().UTC()
	return a, nil
}

func (f *fakeRepo) Update(_ context.Context, id string, in AccountUpdate) (*Account, error) {
	a, ok := f.accounts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if in.Role != nil {
		a.Role = policy.Role(*in.Role)
	}
	if in.Email != nil {
		a.Email = *in.Email
	}
	return a, nil
}

func (f *fakeRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.accounts[id]; !ok {
		return shared.ErrNotFound
	}
	delete(f.accounts, id)
	return nil
}

func (f *fakeRepo) SetAccessibleEvents(_ context.Context, id string, events []string) (*Account, error) {
	a, ok := f.accounts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	a.AccessibleEvents = events
	return a, nil
}

func (f *fakeRepo) SetAccessibleModules(_ context.Context, id string, modules []string) (*Account, error) {
	a, ok := f.accounts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	a.AccessibleModules = modules
	return a, nil
}

type fakeEvents struct {
	known map[string]bool
}

func (f *fakeEvents) MissingEvents(_ context.Context, ids []string) ([]string, error) {
	var missing []string
	for _, id := range ids {
		if !f.known[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

type noopMetrics struct{}

func (noopMetrics) ObserveDecision(policy.Decision) {}

func admin() policy.Principal {
	return policy.Principal{ID: "admin1", Role: policy.RoleAdmin, Verified: true}
}

func regular(id string) policy.Principal {
	return policy.Principal{ID: id, Role: policy.RoleUser, Verified: true}
}

func newTestService() (*Service, *fakeRepo, *fakeEvents) {
	repo := newFakeRepo()
	events := &fakeEvents{known: map[string]bool{"E1": true, "E2": true}}
	return NewService(repo, events, nil, noopMetrics{}), repo, events
}

func TestProfileUpdateTouchesOnlyAllowedFields(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.accounts["u1"] = &Account{ID: "u1", FirstName: "Ada", Role: policy.RoleUser}

	company := "Initech"
	updated, err := svc.UpdateOwnProfile(context.Background(), regular("u1"), ProfileUpdate{Company: &company})
	require.NoError(t, err)
	assert.Equal(t, "Initech", updated.Company)
	assert.Equal(t, policy.RoleUser, updated.Role)
}

func TestListRequiresPrivilegedRole(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.accounts["u1"] = &Account{ID: "u1", Role: policy.RoleUser}

	_, _, err := svc.List(context.Background(), regular("u1"), ListFilter{Limit: 10})
	var denied *policy.DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, policy.ReasonInsufficientRole, denied.Reason)

	_, total, err := svc.List(context.Background(), admin(), ListFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestCreateValidatesRole(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Create(context.Background(), admin(), CreateInput{
		FirstName: "A", LastName: "B", Email: "a@example.com", Password: "secret1",
		Role: "superuser",
	})
	var unknownRole *UnknownRoleError
	require.ErrorAs(t, err, &unknownRole)
	assert.Equal(t, "superuser", unknownRole.Name)

	account, err := svc.Create(context.Background(), admin(), CreateInput{
		FirstName: "A", LastName: "B", Email: "a@example.com", Password: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, policy.RoleUser, account.Role)
	assert.True(t, account.IsVerified)
}

func TestCreateClientForcesClientRole(t *testing.T) {
	svc, _, _ := newTestService()

	account, err := svc.CreateClient(context.Background(), admin(), CreateInput{
		FirstName: "C", LastName: "Corp", Email: "c@example.com", Password: "secret1",
		Role:   "admin",
		Events: []string{"E1"}, Modules: []string{"analytics"},
	})
	require.NoError(t, err)
	assert.Equal(t, policy.RoleClient, account.Role)
	assert.Equal(t, []string{"E1"}, account.AccessibleEvents)
	assert.Equal(t, []string{"analytics"}, account.AccessibleModules)
}

func TestUpdateClientEventsVerifiesExistence(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.accounts["c1"] = &Account{ID: "c1", Role: policy.RoleClient}

	_, err := svc.UpdateClientEvents(context.Background(), admin(), "c1", []string{"E1", "E9"})
	var unknown *UnknownEventsError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, []string{"E9"}, unknown.IDs)
	assert.Empty(t, repo.accounts["c1"].AccessibleEvents)

	updated, err := svc.UpdateClientEvents(context.Background(), admin(), "c1", []string{"E1", "E2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"E1", "E2"}, updated.AccessibleEvents)
}

func TestUpdateClientModulesIsAtomic(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.accounts["c1"] = &Account{ID: "c1", Role: policy.RoleClient}

	_, err := svc.UpdateClientModules(context.Background(), admin(), "c1", []string{"analytics", "bogus"})
	var invalid *policy.InvalidModuleError
	require.ErrorAs(t, err, &invalid)
	assert.Empty(t, repo.accounts["c1"].AccessibleModules)

	updated, err := svc.UpdateClientModules(context.Background(), admin(), "c1", []string{"analytics", "b2b_networking"})
	require.NoError(t, err)
	assert.Len(t, updated.AccessibleModules, 2)
}

func TestGrantUpdatesRejectNonClients(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.accounts["u1"] = &Account{ID: "u1", Role: policy.RoleUser}

	_, err := svc.UpdateClientModules(context.Background(), admin(), "u1", []string{"analytics"})
	var notClient *NotAClientError
	require.ErrorAs(t, err, &notClient)

	_, err = svc.UpdateClientEvents(context.Background(), admin(), "u1", []string{"E1"})
	require.ErrorAs(t, err, &notClient)
}

func TestDeleteGatedByPolicy(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.accounts["u1"] = &Account{ID: "u1", Role: policy.RoleUser}

	err := svc.Delete(context.Background(), regular("u2"), "u1")
	var denied *policy.DeniedError
	require.ErrorAs(t, err, &denied)

	require.NoError(t, svc.Delete(context.Background(), admin(), "u1"))
	assert.Empty(t, repo.accounts)
}
