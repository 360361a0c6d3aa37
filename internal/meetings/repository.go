package meetings

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventharmony/eventharmony/internal/platform/db"
	"github.com/eventharmony/eventharmony/internal/shared"
)

// Repository defines persistence operations for both meeting kinds.
type Repository interface {
	CreateB2B(ctx context.Context, m *B2BMeeting) error
	GetB2B(ctx context.Context, id string) (*B2BMeeting, error)
	ListB2BByEvent(ctx context.Context, eventID string, limit, offset int) ([]B2BMeeting, int, error)
	ListB2BForUser(ctx context.Context, userID string, limit, offset int) ([]B2BMeeting, int, error)
	UpdateB2BStatus(ctx context.Context, id string, status B2BStatus) (*B2BMeeting, error)
	DeleteB2B(ctx context.Context, id string) error

	CreateOnline(ctx context.Context, m *OnlineMeeting) error
	GetOnline(ctx context.Context, id string) (*OnlineMeeting, error)
	ListOrganized(ctx context.Context, userID string, limit, offset int) ([]OnlineMeeting, int, error)
	ListParticipating(ctx context.Context, userID string, limit, offset int) ([]OnlineMeeting, int, error)
	UpdateOnlineStatus(ctx context.Context, id string, status OnlineStatus) (*OnlineMeeting, error)
	UpdateParticipation(ctx context.Context, meetingID, userID string, status ParticipationStatus) (*OnlineMeeting, error)
	DeleteOnline(ctx context.Context, id string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const b2bColumns = `id, event_id, requester_id, recipient_id, scheduled_at,
	location, agenda, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanB2B(row rowScanner) (*B2BMeeting, error) {
	var m B2BMeeting
	err := row.Scan(
		&m.ID, &m.EventID, &m.RequesterID, &m.RecipientID, &m.ScheduledAt,
		&m.Location, &m.Agenda, &m.Status, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// CreateB2B inserts a meeting request.
func (r *PGRepository) CreateB2B(ctx context.Context, m *B2BMeeting) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO b2b_meetings (
			id, event_id, requester_id, recipient_id, scheduled_at,
			location, agenda, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		m.ID, m.EventID, m.RequesterID, m.RecipientID, m.ScheduledAt,
		m.Location, m.Agenda, m.Status, m.CreatedAt,
	)
	return err
}

// GetB2B fetches one meeting request.
func (r *PGRepository) GetB2B(ctx context.Context, id string) (*B2BMeeting, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+b2bColumns+` FROM b2b_meetings WHERE id = $1`, id)
	return scanB2B(row)
}

func (r *PGRepository) listB2B(ctx context.Context, where string, key interface{}, limit, offset int) ([]B2BMeeting, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM b2b_meetings WHERE "+where, key).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT `+b2bColumns+`
		FROM b2b_meetings
		WHERE %s
		ORDER BY scheduled_at ASC
		LIMIT $2 OFFSET $3`, where)
	rows, err := r.pool.Query(ctx, query, key, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var meetings []B2BMeeting
	for rows.Next() {
		m, err := scanB2B(rows)
		if err != nil {
			return nil, 0, err
		}
		meetings = append(meetings, *m)
	}
	return meetings, total, rows.Err()
}

// ListB2BByEvent returns meeting requests tied to one event.
func (r *PGRepository) ListB2BByEvent(ctx context.Context, eventID string, limit, offset int) ([]B2BMeeting, int, error) {
	return r.listB2B(ctx, "event_id = $1", eventID, limit, offset)
}

// ListB2BForUser returns meeting requests where the user is requester or
// recipient.
func (r *PGRepository) ListB2BForUser(ctx context.Context, userID string, limit, offset int) ([]B2BMeeting, int, error) {
	return r.listB2B(ctx, "(requester_id = $1 OR recipient_id = $1)", userID, limit, offset)
}

// UpdateB2BStatus stores the recipient's answer.
func (r *PGRepository) UpdateB2BStatus(ctx context.Context, id string, status B2BStatus) (*B2BMeeting, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE b2b_meetings SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+b2bColumns, id, status)
	return scanB2B(row)
}

// DeleteB2B removes a meeting request.
func (r *PGRepository) DeleteB2B(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM b2b_meetings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

const onlineColumns = `id, title, description, organizer_id, scheduled_at,
	duration_minutes, meeting_url, status, created_at, updated_at`

func scanOnline(row rowScanner) (*OnlineMeeting, error) {
	var m OnlineMeeting
	err := row.Scan(
		&m.ID, &m.Title, &m.Description, &m.OrganizerID, &m.ScheduledAt,
		&m.DurationMinutes, &m.MeetingURL, &m.Status, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// CreateOnline inserts an online meeting and its invitations in one
// transaction.
func (r *PGRepository) CreateOnline(ctx context.Context, m *OnlineMeeting) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO online_meetings (
				id, title, description, organizer_id, scheduled_at,
				duration_minutes, meeting_url, status, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
			m.ID, m.Title, m.Description, m.OrganizerID, m.ScheduledAt,
			m.DurationMinutes, m.MeetingURL, m.Status, m.CreatedAt,
		)
		if err != nil {
			return err
		}
		for _, p := range m.Participants {
			_, err := tx.Exec(ctx, `
				INSERT INTO online_meeting_participants (
					meeting_id, user_id, status, invited_at, updated_at
				) VALUES ($1, $2, $3, $4, $4)`,
				m.ID, p.UserID, p.Status, p.InvitedAt,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PGRepository) loadParticipants(ctx context.Context, meetings []OnlineMeeting) error {
	if len(meetings) == 0 {
		return nil
	}
	index := make(map[string]*OnlineMeeting, len(meetings))
	ids := make([]string, 0, len(meetings))
	for i := range meetings {
		index[meetings[i].ID] = &meetings[i]
		ids = append(ids, meetings[i].ID)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT meeting_id, user_id, status, invited_at, updated_at
		FROM online_meeting_participants
		WHERE meeting_id = ANY($1)
		ORDER BY invited_at ASC`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var meetingID string
		var p OnlineParticipant
		if err := rows.Scan(&meetingID, &p.UserID, &p.Status, &p.InvitedAt, &p.UpdatedAt); err != nil {
			return err
		}
		if m, ok := index[meetingID]; ok {
			m.Participants = append(m.Participants, p)
		}
	}
	return rows.Err()
}

// GetOnline fetches one online meeting with its invitations.
func (r *PGRepository) GetOnline(ctx context.Context, id string) (*OnlineMeeting, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+onlineColumns+` FROM online_meetings WHERE id = $1`, id)
	m, err := scanOnline(row)
	if err != nil {
		return nil, err
	}
	meetings := []OnlineMeeting{*m}
	if err := r.loadParticipants(ctx, meetings); err != nil {
		return nil, err
	}
	return &meetings[0], nil
}

func (r *PGRepository) listOnline(ctx context.Context, where string, key interface{}, limit, offset int) ([]OnlineMeeting, int, error) {
	var total int
	countQuery := "SELECT COUNT(*) FROM online_meetings m WHERE " + where
	if err := r.pool.QueryRow(ctx, countQuery, key).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT m.id, m.title, m.description, m.organizer_id, m.scheduled_at,
			m.duration_minutes, m.meeting_url, m.status, m.created_at, m.updated_at
		FROM online_meetings m
		WHERE %s
		ORDER BY m.scheduled_at ASC
		LIMIT $2 OFFSET $3`, where)
	rows, err := r.pool.Query(ctx, query, key, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var meetings []OnlineMeeting
	for rows.Next() {
		m, err := scanOnline(rows)
		if err != nil {
			return nil, 0, err
		}
		meetings = append(meetings, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := r.loadParticipants(ctx, meetings); err != nil {
		return nil, 0, err
	}
	return meetings, total, nil
}

// ListOrganized returns meetings the user organizes.
func (r *PGRepository) ListOrganized(ctx context.Context, userID string, limit, offset int) ([]OnlineMeeting, int, error) {
	return r.listOnline(ctx, "m.organizer_id = $1", userID, limit, offset)
}

// ListParticipating returns meetings the user is invited to.
func (r *PGRepository) ListParticipating(ctx context.Context, userID string, limit, offset int) ([]OnlineMeeting, int, error) {
	where := `EXISTS (
		SELECT 1 FROM online_meeting_participants p
		WHERE p.meeting_id = m.id AND p.user_id = $1)`
	return r.listOnline(ctx, where, userID, limit, offset)
}

// UpdateOnlineStatus stores the organizer's lifecycle change.
func (r *PGRepository) UpdateOnlineStatus(ctx context.Context, id string, status OnlineStatus) (*OnlineMeeting, error) {
	_, err := r.pool.Exec(ctx, `
		UPDATE online_meetings SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status)
	if err != nil {
		return nil, err
	}
	return r.GetOnline(ctx, id)
}

// UpdateParticipation stores an invitee's answer.
func (r *PGRepository) UpdateParticipation(ctx context.Context, meetingID, userID string, status ParticipationStatus) (*OnlineMeeting, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE online_meeting_participants SET status = $3, updated_at = NOW()
		WHERE meeting_id = $1 AND user_id = $2`,
		meetingID, userID, status)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, shared.ErrNotFound
	}
	return r.GetOnline(ctx, meetingID)
}

// DeleteOnline removes a meeting and, through cascading constraints, its
// invitations.
func (r *PGRepository) DeleteOnline(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM online_meetings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
