package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/eventharmony/eventharmony/internal/policy"
	"github.com/eventharmony/eventharmony/internal/shared"
	_ "github.com/eventharmony/eventharmony/testing"
)

type fakeRepo struct {
	byID    map[string]*User
	byEmail map[string]*User
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: map[string]*User{}, byEmail: map[string]*User{}}
}

func (f *fakeRepo) put(u *User) {
	f.byID[u.ID] = u
	f.byEmail[u.Email] = u
}

func (f *fakeRepo) Create(_ context.Context, u *User) error {
	if _, ok := f.byEmail[u.Email]; ok {
		return shared.ErrDuplicate
	}
	f.put(u)
	return nil
}

func (f *fakeRepo) FindByEmail(_ context.Context, email string) (*User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func (f *fakeRepo) FindByID(_ context.Context, id string) (*User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func (f *fakeRepo) MarkVerified(_ context.Context, token string, now time.Time) (*User, error) {
	for _, u := range f.byID {
		if u.VerificationToken == token && u.VerificationTokenExpires.After(now) {
			u.IsVerified = true
			u.VerificationToken = ""
			return u, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (f *fakeRepo) SetResetToken(_ context.Context, userID, tokenHash string, expires time.Time) error {
	u, ok := f.byID[userID]
	if !ok {
		return shared.ErrNotFound
	}
	u.ResetPasswordToken = tokenHash
	u.ResetPasswordExpires = expires
	return nil
}

func (f *fakeRepo) ResetPassword(_ context.Context, tokenHash, passwordHash string, now time.Time) (*User, error) {
	for _, u := range f.byID {
		if u.ResetPasswordToken == tokenHash && u.ResetPasswordExpires.After(now) {
			u.PasswordHash = passwordHash
			u.ResetPasswordToken = ""
			return u, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (f *fakeRepo) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	u, ok := f.byID[userID]
	if !ok {
		return shared.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

type fakeNotifier struct {
	verificationLinks []string
	resetLinks        []string
}

func (f *fakeNotifier) SendVerificationEmail(_ context.Context, _, _, link string) error {
	f.verificationLinks = append(f.verificationLinks, link)
	return nil
}

func (f *fakeNotifier) SendPasswordResetEmail(_ context.Context, _, _, link string) error {
	f.resetLinks = append(f.resetLinks, link)
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeRepo, *fakeNotifier) {
	t.Helper()
	repo := newFakeRepo()
	notifier := &fakeNotifier{}
	svc := NewService(
		repo,
		NewTokenManager("test-secret", time.Hour),
		notifier,
		ServiceConfig{
			FrontendURL:     "http://localhost:3000",
			VerificationTTL: 24 * time.Hour,
			ResetTTL:        10 * time.Minute,
		},
		slog.New(slog.DiscardHandler),
	)
	return svc, repo, notifier
}

func TestRegisterIssuesTokenAndVerificationEmail(t *testing.T) {
	svc, repo, notifier := newTestService(t)

	user, token, err := svc.Register(context.Background(), RegisterInput{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Password:  "secret123",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, policy.RoleUser, user.Role)
	assert.False(t, user.IsVerified)
	assert.NotEmpty(t, user.VerificationToken)

	require.Len(t, notifier.verificationLinks, 1)
	assert.Contains(t, notifier.verificationLinks[0], user.VerificationToken)

	_, _, err = svc.Register(context.Background(), RegisterInput{
		FirstName: "Ada", LastName: "Lovelace",
		Email: "ada@example.com", Password: "secret123",
	})
	assert.ErrorIs(t, err, shared.ErrDuplicate)

	stored, ok := repo.byEmail["ada@example.com"]
	require.True(t, ok)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret123")))
}

func TestLoginRequiresVerifiedAccount(t *testing.T) {
	svc, _, _ := newTestService(t)

	user, _, err := svc.Register(context.Background(), RegisterInput{
		FirstName: "Ada", LastName: "Lovelace",
		Email: "ada@example.com", Password: "secret123",
	})
	require.NoError(t, err)

	_, _, err = svc.Login(context.Background(), "ada@example.com", "secret123")
	assert.ErrorIs(t, err, ErrNotVerified)

	verified, err := svc.VerifyEmail(context.Background(), user.VerificationToken)
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)

	got, token, err := svc.Login(context.Background(), "ada@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.NotEmpty(t, token)

	_, _, err = svc.Login(context.Background(), "ada@example.com", "wrong")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, _, err = svc.Login(context.Background(), "nobody@example.com", "secret123")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestVerifyEmailRejectsExpiredToken(t *testing.T) {
	svc, repo, _ := newTestService(t)

	user, _, err := svc.Register(context.Background(), RegisterInput{
		FirstName: "Ada", LastName: "Lovelace",
		Email: "ada@example.com", Password: "secret123",
	})
	require.NoError(t, err)

	repo.byID[user.ID].VerificationTokenExpires = time.Now().UTC().Add(-time.Minute)
	_, err = svc.VerifyEmail(context.Background(), user.VerificationToken)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestPasswordResetFlow(t *testing.T) {
	svc, repo, notifier := newTestService(t)

	user, _, err := svc.Register(context.Background(), RegisterInput{
		FirstName: "Ada", LastName: "Lovelace",
		Email: "ada@example.com", Password: "secret123",
	})
	require.NoError(t, err)
	repo.byID[user.ID].IsVerified = true

	require.NoError(t, svc.ForgotPassword(context.Background(), "ada@example.com"))
	require.Len(t, notifier.resetLinks, 1)

	// Unknown addresses succeed silently and send nothing.
	require.NoError(t, svc.ForgotPassword(context.Background(), "nobody@example.com"))
	assert.Len(t, notifier.resetLinks, 1)

	// The stored token is hashed, not the raw link token.
	link := notifier.resetLinks[0]
	raw := link[len("http://localhost:3000/reset-password/"):]
	assert.NotEqual(t, raw, repo.byID[user.ID].ResetPasswordToken)

	_, _, err = svc.ResetPassword(context.Background(), "bogus", "newpass99")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, token, err := svc.ResetPassword(context.Background(), raw, "newpass99")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, _, err = svc.Login(context.Background(), "ada@example.com", "newpass99")
	assert.NoError(t, err)
}

func TestUpdatePasswordChecksCurrent(t *testing.T) {
	svc, repo, _ := newTestService(t)

	user, _, err := svc.Register(context.Background(), RegisterInput{
		FirstName: "Ada", LastName: "Lovelace",
		Email: "ada@example.com", Password: "secret123",
	})
	require.NoError(t, err)
	repo.byID[user.ID].IsVerified = true

	err = svc.UpdatePassword(context.Background(), user.ID, "wrong", "newpass99")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)

	require.NoError(t, svc.UpdatePassword(context.Background(), user.ID, "secret123", "newpass99"))
	_, _, err = svc.Login(context.Background(), "ada@example.com", "newpass99")
	assert.NoError(t, err)
}

func TestResolveBuildsPrincipalWithGrants(t *testing.T) {
	svc, repo, _ := newTestService(t)

	client := &User{
		ID:                "c1",
		Email:             "client@example.com",
		Role:              policy.RoleClient,
		IsVerified:        true,
		AccessibleModules: []string{"analytics"},
		AccessibleEvents:  []string{"E1"},
	}
	repo.put(client)

	token, err := svc.tokens.Issue(client.ID)
	require.NoError(t, err)

	principal, err := svc.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, policy.RoleClient, principal.Role)
	assert.True(t, principal.HasModule(policy.ModuleAnalytics))
	assert.True(t, principal.HasEvent("E1"))

	_, err = svc.Resolve(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)

	// Token for a deleted account no longer resolves.
	gone, err := svc.tokens.Issue("missing")
	require.NoError(t, err)
	_, err = svc.Resolve(context.Background(), gone)
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestTokenManagerRejectsTampering(t *testing.T) {
	mgr := NewTokenManager("secret-a", time.Hour)

	token, err := mgr.Issue("u1")
	require.NoError(t, err)

	subject, err := mgr.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", subject)

	other := NewTokenManager("secret-b", time.Hour)
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)

	expired := NewTokenManager("secret-a", -time.Minute)
	stale, err := expired.Issue("u1")
	require.NoError(t, err)
	_, err = mgr.Verify(stale)
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestResolveMiddleware(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.put(&User{ID: "u1", Email: "u@example.com", Role: policy.RoleUser, IsVerified: true})

	mw := NewMiddleware(svc)
	var seen policy.Principal
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = shared.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	t.Run("no header resolves anonymous", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mw.Resolve(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, seen.ID)
		assert.Equal(t, policy.RoleUser, seen.Role)
	})

	t.Run("valid bearer resolves principal", func(t *testing.T) {
		token, err := svc.tokens.Issue("u1")
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		mw.Resolve(inner).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u1", seen.ID)
	})

	t.Run("garbage bearer rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		rec := httptest.NewRecorder()
		mw.Resolve(inner).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("require auth blocks anonymous", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mw.Resolve(RequireAuth(inner)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
