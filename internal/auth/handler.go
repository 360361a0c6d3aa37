package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/eventharmony/eventharmony/internal/platform/httpx"
	"github.com/eventharmony/eventharmony/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Get("/verify-email/{token}", h.handleVerifyEmail)
	r.Post("/forgot-password", h.handleForgotPassword)
	r.Patch("/reset-password/{token}", h.handleResetPassword)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth)
		r.Get("/me", h.handleMe)
		r.Patch("/update-password", h.handleUpdatePassword)
	})
}

// UserView is the JSON shape of an account, with credential material omitted.
type UserView struct {
	ID                string    `json:"id"`
	FirstName         string    `json:"firstName"`
	LastName          string    `json:"lastName"`
	Email             string    `json:"email"`
	Role              string    `json:"role"`
	Company           string    `json:"company,omitempty"`
	Position          string    `json:"position,omitempty"`
	Phone             string    `json:"phone,omitempty"`
	IsVerified        bool      `json:"isVerified"`
	AccessibleModules []string  `json:"accessibleModules,omitempty"`
	AccessibleEvents  []string  `json:"accessibleEvents,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// NewUserView maps an account to its public JSON shape.
func NewUserView(u *User) UserView {
	return UserView{
		ID:                u.ID,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		Email:             u.Email,
		Role:              string(u.Role),
		Company:           u.Company,
		Position:          u.Position,
		Phone:             u.Phone,
		IsVerified:        u.IsVerified,
		AccessibleModules: u.AccessibleModules,
		AccessibleEvents:  u.AccessibleEvents,
		CreatedAt:         u.CreatedAt,
	}
}

type sessionView struct {
	Token string   `json:"token"`
	User  UserView `json:"user"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in RegisterInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "Request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	user, token, err := h.service.Register(r.Context(), in)
	if err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			httpx.Problem(w, http.StatusBadRequest, "Duplicate", "An account with this email already exists")
			return
		}
		h.logger.Error("register", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, sessionView{Token: token, User: NewUserView(user)})
}

type loginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "Request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	user, token, err := h.service.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		if errors.Is(err, ErrNotVerified) {
			httpx.Problem(w, http.StatusUnauthorized, "Email Not Verified", "Please verify your email address before logging in")
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, sessionView{Token: token, User: NewUserView(user)})
}

func (h *Handler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if _, err := h.service.VerifyEmail(r.Context(), token); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Token", "Verification token is invalid or has expired")
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.Message(w, http.StatusOK, "Email verified successfully")
}

type forgotPasswordInput struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in forgotPasswordInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "Request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	if err := h.service.ForgotPassword(r.Context(), in.Email); err != nil {
		h.logger.Error("forgot password", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.Message(w, http.StatusOK, "If the address is registered, a reset email has been sent")
}

type resetPasswordInput struct {
	Password string `json:"password" validate:"required,min=6"`
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var in resetPasswordInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "Request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	user, token, err := h.service.ResetPassword(r.Context(), chi.URLParam(r, "token"), in.Password)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Token", "Reset token is invalid or has expired")
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, sessionView{Token: token, User: NewUserView(user)})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	user, err := h.service.CurrentUser(r.Context(), principal.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, NewUserView(user))
}

type updatePasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

func (h *Handler) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	var in updatePasswordInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "Request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	principal, _ := shared.PrincipalFromContext(r.Context())
	if err := h.service.UpdatePassword(r.Context(), principal.ID, in.CurrentPassword, in.NewPassword); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Message(w, http.StatusOK, "Password updated successfully")
}
