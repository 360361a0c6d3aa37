package users

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/eventharmony/eventharmony/internal/auth"
	"github.com/eventharmony/eventharmony/internal/platform/httpx"
	"github.com/eventharmony/eventharmony/internal/shared"
)

// Handler wires HTTP endpoints for account management.
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

// MountRoutes registers user routes on the provided router. Everything here
// requires an authenticated principal.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(auth.RequireAuth)

	r.Get("/profile", h.handleProfile)
	r.Patch("/profile", h.handleUpdateProfile)

	r.Get("/clients", h.handleListClients)
	r.Post("/clients", h.handleCreateClient)
	r.Patch("/clients/{id}/events", h.handleUpdateClientEvents)
	r.Patch("/clients/{id}/modules", h.handleUpdateClientModules)

	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Patch("/{id}", h.handleUpdate)
	r.Delete("/{id}", h.handleDelete)
}

// AccountView is the JSON shape of a managed account.
type AccountView struct {
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
	UpdatedAt         time.Time `json:"updatedAt"`
}

func newAccountView(a *Account) AccountView {
	return AccountView{
		ID:                a.ID,
		FirstName:         a.FirstName,
		LastName:          a.LastName,
		Email:             a.Email,
		Role:              string(a.Role),
		Company:           a.Company,
		Position:          a.Position,
		Phone:             a.Phone,
		IsVerified:        a.IsVerified,
		AccessibleModules: a.AccessibleModules,
		AccessibleEvents:  a.AccessibleEvents,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

func newAccountViews(accounts []Account) []AccountView {
	views := make([]AccountView, 0, len(accounts))
	for i := range accounts {
		views = append(views, newAccountView(&accounts[i]))
	}
	return views
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var unknownEvents *UnknownEventsError
	var unknownRole *UnknownRoleError
	var notClient *NotAClientError
	switch {
	case errors.As(err, &unknownEvents):
		httpx.Problem(w, http.StatusBadRequest, "Unknown Events", unknownEvents.Error())
	case errors.As(err, &unknownRole):
		httpx.Problem(w, http.StatusBadRequest, "Unknown Role", unknownRole.Error())
	case errors.As(err, &notClient):
		httpx.Problem(w, http.StatusBadRequest, "Not A Client", notClient.Error())
	default:
		httpx.RespondError(w, err)
	}
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	account, err := h.service.Profile(r.Context(), principal)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, newAccountView(account))
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in ProfileUpdate
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "Request body must be valid JSON")
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	account, err := h.service.UpdateOwnProfile(r.Context(), principal, in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, newAccountView(account))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	params := shared.ParsePageParams(r)
	filter := ListFilter{
		Role:   r.URL.Query().Get("role"),
		Search: r.URL.Query().Get("search"),
		Limit:  params.PerPage,
		Offset: params.Offset(),
	}
	accounts, total, err := h.service.List(r.Context(), principal, filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	page := shared.NewPagination(params.Page, params.PerPage, total)
	httpx.List(w, len(accounts), page, newAccountViews(accounts))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "Request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	account, err := h.service.Create(r.Context(), principal, in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, newAccountView(account))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	account, err := h.service.Get(r.Context(), principal, chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, newAccountView(account))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var in AccountUpdate
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "Request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	account, err := h.service.Update(r.Context(), principal, chi.URLParam(r, "id"), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, newAccountView(account))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	if err := h.service.Delete(r.Context(), principal, chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.Message(w, http.StatusOK, "User deleted successfully")
}

func (h *Handler) handleListClients(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	params := shared.ParsePageParams(r)
	accounts, total, err := h.service.ListClients(r.Context(), principal, params.PerPage, params.Offset())
	if err != nil {
		h.respondError(w, err)
		return
	}
	page := shared.NewPagination(params.Page, params.PerPage, total)
	httpx.List(w, len(accounts), page, newAccountViews(accounts))
}

func (h *Handler) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "Request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	account, err := h.service.CreateClient(r.Context(), principal, in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, newAccountView(account))
}

type grantEventsInput struct {
	AccessibleEvents []string `json:"accessibleEvents"`
}

func (h *Handler) handleUpdateClientEvents(w http.ResponseWriter, r *http.Request) {
	var in grantEventsInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "Request body must be valid JSON")
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	account, err := h.service.UpdateClientEvents(r.Context(), principal, chi.URLParam(r, "id"), in.AccessibleEvents)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, newAccountView(account))
}

type grantModulesInput struct {
	AccessibleModules []string `json:"accessibleModules"`
}

func (h *Handler) handleUpdateClientModules(w http.ResponseWriter, r *http.Request) {
	var in grantModulesInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "Request body must be valid JSON")
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	account, err := h.service.UpdateClientModules(r.Context(), principal, chi.URLParam(r, "id"), in.AccessibleModules)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, newAccountView(account))
}
