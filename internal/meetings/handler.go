package meetings

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

// Handler wires HTTP endpoints for both meeting kinds.
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

// MountRoutes registers the B2B and online meeting route trees. Everything
// requires an authenticated principal.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/meetings", func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Post("/", h.handleCreateB2B)
		r.Get("/my", h.handleListMyB2B)
		r.Get("/event/{eventID}", h.handleListB2BByEvent)
		r.Patch("/{id}/status", h.handleRespondB2B)
		r.Delete("/{id}", h.handleDeleteB2B)
	})

	r.Route("/online-meetings", func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Post("/", h.handleCreateOnline)
		r.Get("/organized", h.handleListOrganized)
		r.Get("/participating", h.handleListParticipating)
		r.Patch("/{id}/status", h.handleUpdateOnlineStatus)
		r.Patch("/{id}/participation", h.handleRespondOnline)
		r.Delete("/{id}", h.handleDeleteOnline)
	})
}

// B2BView is the JSON shape of a meeting request.
type B2BView struct {
	ID          string    `json:"id"`
	EventID     string    `json:"eventId"`
	RequesterID string    `json:"requesterId"`
	RecipientID string    `json:"recipientId"`
	ScheduledAt time.Time `json:"scheduledAt"`
	Location    string    `json:"location,omitempty"`
	Agenda      string    `json:"agenda,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

func newB2BView(m *B2BMeeting) B2BView {
	return B2BView{
		ID:          m.ID,
		EventID:     m.EventID,
		RequesterID: m.RequesterID,
		RecipientID: m.RecipientID,
		ScheduledAt: m.ScheduledAt,
		Location:    m.Location,
		Agenda:      m.Agenda,
		Status:      string(m.Status),
		CreatedAt:   m.CreatedAt,
	}
}

func newB2BViews(meetings []B2BMeeting) []B2BView {
	views := make([]B2BView, 0, len(meetings))
	for i := range meetings {
		views = append(views, newB2BView(&meetings[i]))
	}
	return views
}

// OnlineParticipantView is the JSON shape of one invitation.
type OnlineParticipantView struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

// OnlineView is the JSON shape of an online meeting.
type OnlineView struct {
	ID              string                  `json:"id"`
	Title           string                  `json:"title"`
	Description     string                  `json:"description,omitempty"`
	OrganizerID     string                  `json:"organizerId"`
	ScheduledAt     time.Time               `json:"scheduledAt"`
	DurationMinutes int                     `json:"durationMinutes"`
	MeetingURL      string                  `json:"meetingUrl,omitempty"`
	Status          string                  `json:"status"`
	Participants    []OnlineParticipantView `json:"participants"`
	CreatedAt       time.Time               `json:"createdAt"`
}

func newOnlineView(m *OnlineMeeting) OnlineView {
	participants := make([]OnlineParticipantView, 0, len(m.Participants))
	for _, p := range m.Participants {
		participants = append(participants, OnlineParticipantView{
			UserID: p.UserID,
			Status: string(p.Status),
		})
	}
	return OnlineView{
		ID:              m.ID,
		Title:           m.Title,
		Description:     m.Description,
		OrganizerID:     m.OrganizerID,
		ScheduledAt:     m.ScheduledAt,
		DurationMinutes: m.DurationMinutes,
		MeetingURL:      m.MeetingURL,
		Status:          string(m.Status),
		Participants:    participants,
		CreatedAt:       m.CreatedAt,
	}
}

func newOnlineViews(meetings []OnlineMeeting) []OnlineView {
	views := make([]OnlineView, 0, len(meetings))
	for i := range meetings {
		views = append(views, newOnlineView(&meetings[i]))
	}
	return views
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var unknownStatus *UnknownStatusError
	switch {
	case errors.Is(err, ErrSelfMeeting):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Recipient", "You cannot request a meeting with yourself")
	case errors.As(err, &unknownStatus):
		httpx.Problem(w, http.StatusBadRequest, "Unknown Status", unknownStatus.Error())
	default:
		httpx.RespondError(w, err)
	}
}

type statusInput struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) decodeStatus(w http.ResponseWriter, r *http.Request) (string, bool) {
	var in statusInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "Request body must be valid JSON")
		return "", false
	}
	if err := h.validator.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return "", false
	}
	return in.Status, true
}

func (h *Handler) handleCreateB2B(w http.ResponseWriter, r *http.Request) {
	var in B2BCreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "Request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	meeting, err := h.service.CreateB2B(r.Context(), principal, in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, newB2BView(meeting))
}

func (h *Handler) handleListMyB2B(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	params := shared.ParsePageParams(r)
	meetings, total, err := h.service.ListMyB2B(r.Context(), principal, params.PerPage, params.Offset())
	if err != nil {
		h.respondError(w, err)
		return
	}
	page := shared.NewPagination(params.Page, params.PerPage, total)
	httpx.List(w, len(meetings), page, newB2BViews(meetings))
}

func (h *Handler) handleListB2BByEvent(w http.ResponseWriter, r *http.Request) {
	params := shared.ParsePageParams(r)
	meetings, total, err := h.service.ListB2BByEvent(r.Context(), chi.URLParam(r, "eventID"), params.PerPage, params.Offset())
	if err != nil {
		h.respondError(w, err)
		return
	}
	page := shared.NewPagination(params.Page, params.PerPage, total)
	httpx.List(w, len(meetings), page, newB2BViews(meetings))
}

func (h *Handler) handleRespondB2B(w http.ResponseWriter, r *http.Request) {
	status, ok := h.decodeStatus(w, r)
	if !ok {
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	meeting, err := h.service.RespondB2B(r.Context(), principal, chi.URLParam(r, "id"), status)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, newB2BView(meeting))
}

func (h *Handler) handleDeleteB2B(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	if err := h.service.DeleteB2B(r.Context(), principal, chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.Message(w, http.StatusOK, "Meeting deleted successfully")
}

func (h *Handler) handleCreateOnline(w http.ResponseWriter, r *http.Request) {
	var in OnlineCreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "Request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	meeting, err := h.service.CreateOnline(r.Context(), principal, in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, newOnlineView(meeting))
}

func (h *Handler) handleListOrganized(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	params := shared.ParsePageParams(r)
	meetings, total, err := h.service.ListOrganized(r.Context(), principal, params.PerPage, params.Offset())
	if err != nil {
		h.respondError(w, err)
		return
	}
	page := shared.NewPagination(params.Page, params.PerPage, total)
	httpx.List(w, len(meetings), page, newOnlineViews(meetings))
}

func (h *Handler) handleListParticipating(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	params := shared.ParsePageParams(r)
	meetings, total, err := h.service.ListParticipating(r.Context(), principal, params.PerPage, params.Offset())
	if err != nil {
		h.respondError(w, err)
		return
	}
	page := shared.NewPagination(params.Page, params.PerPage, total)
	httpx.List(w, len(meetings), page, newOnlineViews(meetings))
}

func (h *Handler) handleUpdateOnlineStatus(w http.ResponseWriter, r *http.Request) {
	status, ok := h.decodeStatus(w, r)
	if !ok {
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	meeting, err := h.service.UpdateOnlineStatus(r.Context(), principal, chi.URLParam(r, "id"), status)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, newOnlineView(meeting))
}

func (h *Handler) handleRespondOnline(w http.ResponseWriter, r *http.Request) {
	status, ok := h.decodeStatus(w, r)
	if !ok {
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	meeting, err := h.service.RespondOnline(r.Context(), principal, chi.URLParam(r, "id"), status)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, newOnlineView(meeting))
}

func (h *Handler) handleDeleteOnline(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	if err := h.service.DeleteOnline(r.Context(), principal, chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.Message(w, http.StatusOK, "Meeting deleted successfully")
}
