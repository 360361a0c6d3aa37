package events

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/eventharmony/eventharmony/internal/auth"
	"github.com/eventharmony/eventharmony/internal/platform/httpx"
	"github.com/eventharmony/eventharmony/internal/shared"
)

// Handler wires HTTP endpoints for the event catalog.
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

// MountRoutes registers event routes. Reads stay open so anonymous callers
// can browse public events; everything else requires authentication.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Post("/", h.handleCreate)
		r.Patch("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
		r.Post("/{id}/register", h.handleRegister)
		r.Get("/{id}/participants", h.handleListParticipants)
		r.Patch("/{id}/participants/{participantID}", h.handleUpdateParticipant)
		r.Get("/{id}/statistics", h.handleStatistics)
	})
}

// EventView is the JSON shape of an event.
type EventView struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	Description          string     `json:"description,omitempty"`
	StartDate            time.Time  `json:"startDate"`
	EndDate              time.Time  `json:"endDate"`
	Location             string     `json:"location"`
	Organizer            string     `json:"organizer"`
	Status               string     `json:"status"`
	Capacity             int        `json:"capacity"`
	RegistrationDeadline *time.Time `json:"registrationDeadline,omitempty"`
	IsPublic             bool       `json:"isPublic"`
	Tags                 []string   `json:"tags"`
	ActiveModules        []string   `json:"activeModules"`
	ContactEmail         string     `json:"contactEmail,omitempty"`
	ContactPhone         string     `json:"contactPhone,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

func newEventView(e *Event) EventView {
	view := EventView{
		ID:            e.ID,
		Name:          e.Name,
		Description:   e.Description,
		StartDate:     e.StartDate,
		EndDate:       e.EndDate,
		Location:      e.Location,
		Organizer:     e.OrganizerID,
		Status:        string(e.Status),
		Capacity:      e.Capacity,
		IsPublic:      e.IsPublic,
		Tags:          e.Tags,
		ActiveModules: e.ActiveModules,
		ContactEmail:  e.ContactEmail,
		ContactPhone:  e.ContactPhone,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
	if !e.RegistrationDeadline.IsZero() {
		deadline := e.RegistrationDeadline
		view.RegistrationDeadline = &deadline
	}
	return view
}

// ParticipantView is the JSON shape of a registration.
type ParticipantView struct {
	ID           string    `json:"id"`
	EventID      string    `json:"eventId"`
	UserID       string    `json:"userId"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Email        string    `json:"email"`
	Company      string    `json:"company,omitempty"`
	Status       string    `json:"status"`
	Remarks      string    `json:"remarks,omitempty"`
	BadgePrinted bool      `json:"badgePrinted"`
	RegisteredAt time.Time `json:"registeredAt"`
}

func newParticipantView(p *Participant) ParticipantView {
	return ParticipantView{
		ID:           p.ID,
		EventID:      p.EventID,
		UserID:       p.UserID,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		Email:        p.Email,
		Company:      p.Company,
		Status:       string(p.Status),
		Remarks:      p.Remarks,
		BadgePrinted: p.BadgePrinted,
		RegisteredAt: p.RegisteredAt,
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var unknownStatus *UnknownStatusError
	if errors.As(err, &unknownStatus) {
		httpx.Problem(w, http.StatusBadRequest, "Unknown Status", unknownStatus.Error())
		return
	}
	httpx.RespondError(w, err)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	params := shared.ParsePageParams(r)
	query := r.URL.Query()

	filter := ListFilter{
		Status:   query.Get("status"),
		Location: query.Get("location"),
		Sort:     query.Get("sort"),
		Limit:    params.PerPage,
		Offset:   params.Offset(),
	}
	if tags := query.Get("tags"); tags != "" {
		filter.Tags = strings.Split(tags, ",")
	}
	if from := query.Get("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filter.From = t
		}
	}
	if to := query.Get("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filter.To = t
		}
	}

	events, total, err := h.service.List(r.Context(), principal, filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	views := make([]EventView, 0, len(events))
	for i := range events {
		views = append(views, newEventView(&events[i]))
	}
	page := shared.NewPagination(params.Page, params.PerPage, total)
	httpx.List(w, len(views), page, views)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	event, err := h.service.Get(r.Context(), principal, chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, newEventView(event))
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
	event, err := h.service.Create(r.Context(), principal, in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, newEventView(event))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var in EventUpdate
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "Request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	event, err := h.service.Update(r.Context(), principal, chi.URLParam(r, "id"), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, newEventView(event))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	if err := h.service.Delete(r.Context(), principal, chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.Message(w, http.StatusOK, "Event deleted successfully")
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	participant, err := h.service.Register(r.Context(), principal, chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, newParticipantView(participant))
}

func (h *Handler) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	params := shared.ParsePageParams(r)
	query := r.URL.Query()

	filter := ParticipantFilter{
		Status: query.Get("status"),
		Search: query.Get("search"),
		Limit:  params.PerPage,
		Offset: params.Offset(),
	}
	if badge := query.Get("badgePrinted"); badge != "" {
		if v, err := strconv.ParseBool(badge); err == nil {
			filter.Badge = &v
		}
	}

	participants, total, err := h.service.ListParticipants(r.Context(), principal, chi.URLParam(r, "id"), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	views := make([]ParticipantView, 0, len(participants))
	for i := range participants {
		views = append(views, newParticipantView(&participants[i]))
	}
	page := shared.NewPagination(params.Page, params.PerPage, total)
	httpx.List(w, len(views), page, views)
}

func (h *Handler) handleUpdateParticipant(w http.ResponseWriter, r *http.Request) {
	var in ParticipantUpdate
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "Request body must be valid JSON")
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	participant, err := h.service.UpdateParticipant(
		r.Context(), principal, chi.URLParam(r, "id"), chi.URLParam(r, "participantID"), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, newParticipantView(participant))
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	stats, err := h.service.Statistics(r.Context(), principal, chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, stats)
}
