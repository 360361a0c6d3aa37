package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/eventharmony/eventharmony/internal/policy"
	"github.com/eventharmony/eventharmony/internal/shared"
)

// ErrNotVerified rejects logins from accounts that have not confirmed their
// email address yet.
var ErrNotVerified = errors.New("email not verified")

// Notifier delivers account emails. The production implementation enqueues
// background jobs; tests substitute a recorder.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, email, name, link string) error
	SendPasswordResetEmail(ctx context.Context, email, name, link string) error
}

// ServiceConfig carries the knobs the auth service needs.
type ServiceConfig struct {
	FrontendURL     string
	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	tokens   *TokenManager
	notifier Notifier
	cfg      ServiceConfig
	logger   *slog.Logger
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *TokenManager, notifier Notifier, cfg ServiceConfig, logger *slog.Logger) *Service {
	return &Service{repo: repo, tokens: tokens, notifier: notifier, cfg: cfg, logger: logger}
}

// RegisterInput is the payload for account creation.
type RegisterInput struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	Company   string `json:"company"`
	Position  string `json:"position"`
	Phone     string `json:"phone"`
}

// Register creates an unverified account, emails a verification link and
// issues a bearer token. New accounts always start with the baseline role.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("auth: hash password: %w", err)
	}

	token, err := randomToken()
	if err != nil {
		return nil, "", err
	}

	now := time.Now().UTC()
	user := &User{
		ID:                       uuid.NewString(),
		FirstName:                in.FirstName,
		LastName:                 in.LastName,
		Email:                    in.Email,
		PasswordHash:             string(hash),
		Role:                     policy.RoleUser,
		Company:                  in.Company,
		Position:                 in.Position,
		Phone:                    in.Phone,
		VerificationToken:        token,
		VerificationTokenExpires: now.Add(s.cfg.VerificationTTL),
		AccessibleModules:        []string{},
		AccessibleEvents:         []string{},
		CreatedAt:                now,
		UpdatedAt:                now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, "", err
	}

	link := fmt.Sprintf("%s/verify-email/%s", s.cfg.FrontendURL, token)
	if err := s.notifier.SendVerificationEmail(ctx, user.Email, user.FullName(), link); err != nil {
		// The account exists; a failed email should not fail registration.
		s.logger.Error("send verification email", slog.Any("error", err), slog.String("user_id", user.ID))
	}

	bearer, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("auth: issue token: %w", err)
	}
	return user, bearer, nil
}

// Login validates credentials and issues a bearer token. All failure modes
// collapse into ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (*User, string, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", shared.ErrInvalidCredentials
	}
	if !user.IsVerified {
		return nil, "", ErrNotVerified
	}
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("auth: issue token: %w", err)
	}
	return user, token, nil
}

// VerifyEmail consumes a verification token. Unknown or expired tokens map to
// ErrNotFound.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*User, error) {
	return s.repo.MarkVerified(ctx, token, time.Now().UTC())
}

// ForgotPassword emails a reset link if the address belongs to an account.
// Unknown addresses succeed silently so the endpoint cannot be used to probe
// for accounts.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if err == shared.ErrNotFound {
			return nil
		}
		return err
	}

	token, err := randomToken()
	if err != nil {
		return err
	}
	expires := time.Now().UTC().Add(s.cfg.ResetTTL)
	if err := s.repo.SetResetToken(ctx, user.ID, hashToken(token), expires); err != nil {
		return err
	}

	link := fmt.Sprintf("%s/reset-password/%s", s.cfg.FrontendURL, token)
	return s.notifier.SendPasswordResetEmail(ctx, user.Email, user.FullName(), link)
}

// ResetPassword consumes a reset token, stores the new password and issues a
// fresh bearer token.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) (*User, string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("auth: hash password: %w", err)
	}
	user, err := s.repo.ResetPassword(ctx, hashToken(token), string(hash), time.Now().UTC())
	if err != nil {
		return nil, "", err
	}
	bearer, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("auth: issue token: %w", err)
	}
	return user, bearer, nil
}

// UpdatePassword changes the password of an authenticated user after checking
// the current one.
func (s *Service) UpdatePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return shared.ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, userID, string(hash))
}

// Resolve turns a bearer credential into a principal, loading the grant sets
// fresh from storage so revocations take effect immediately.
func (s *Service) Resolve(ctx context.Context, credential string) (policy.Principal, error) {
	userID, err := s.tokens.Verify(credential)
	if err != nil {
		return policy.Principal{}, err
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return policy.Principal{}, shared.ErrUnauthenticated
	}
	return user.Principal(), nil
}

// CurrentUser fetches the full account record for an authenticated principal.
func (s *Service) CurrentUser(ctx context.Context, userID string) (*User, error) {
	return s.repo.FindByID(ctx, userID)
}

func randomToken() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Reset tokens are stored hashed so a database leak does not expose live
// reset links.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
