package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventharmony/eventharmony/internal/platform/db"
	"github.com/eventharmony/eventharmony/internal/policy"
	"github.com/eventharmony/eventharmony/internal/shared"
)

// Registration eligibility failures, checked under row lock.
var (
	ErrRegistrationClosed = errors.New("registration closed")
	ErrAtCapacity         = errors.New("event at capacity")
	ErrAlreadyRegistered  = errors.New("already registered")
)

// publicExpr is the SQL rendering of public visibility, matching the
// evaluator's publicEvent rule.
const publicExpr = "(is_public AND status = 'published')"

// Repository defines persistence operations for the event catalog.
type Repository interface {
	Get(ctx context.Context, id string) (*Event, error)
	List(ctx context.Context, scope policy.Scope, filter ListFilter) ([]Event, int, error)
	Create(ctx context.Context, event *Event) error
	Update(ctx context.Context, id string, in EventUpdate) (*Event, error)
	Delete(ctx context.Context, id string) error
	MissingEvents(ctx context.Context, ids []string) ([]string, error)
	CompletePastEvents(ctx context.Context, now time.Time) (int64, error)

	Register(ctx context.Context, participant *Participant, now time.Time) error
	ListParticipants(ctx context.Context, eventID string, filter ParticipantFilter) ([]Participant, int, error)
	GetParticipant(ctx context.Context, eventID, participantID string) (*Participant, error)
	UpdateParticipant(ctx context.Context, eventID, participantID string, in ParticipantUpdate) (*Participant, error)
	Stats(ctx context.Context, eventID string) (*Statistics, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const eventColumns = `id, name, description, start_date, end_date, location,
	organizer_id, status, capacity, COALESCE(registration_deadline, 'epoch'::timestamptz),
	is_public, tags, active_modules, contact_email, contact_phone, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var e Event
	err := row.Scan(
		&e.ID, &e.Name, &e.Description, &e.StartDate, &e.EndDate, &e.Location,
		&e.OrganizerID, &e.Status, &e.Capacity, &e.RegistrationDeadline,
		&e.IsPublic, &e.Tags, &e.ActiveModules, &e.ContactEmail, &e.ContactPhone,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if e.RegistrationDeadline.Unix() == 0 {
		e.RegistrationDeadline = time.Time{}
	}
	return &e, nil
}

// Get fetches one event by id.
func (r *PGRepository) Get(ctx context.Context, id string) (*Event, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	return scanEvent(row)
}

// List returns a page of events within the caller's visibility scope,
// narrowed by the request filters.
func (r *PGRepository) List(ctx context.Context, scope policy.Scope, filter ListFilter) ([]Event, int, error) {
	var args []interface{}

	scopeExpr, scopeArgs := scope.SQL("id", publicExpr, 0)
	args = append(args, scopeArgs...)
	conditions := []string{scopeExpr}
	argPos := len(args) + 1

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, filter.Status)
		argPos++
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, fmt.Sprintf("start_date >= $%d", argPos))
		args = append(args, filter.From)
		argPos++
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, fmt.Sprintf("start_date <= $%d", argPos))
		args = append(args, filter.To)
		argPos++
	}
	if len(filter.Tags) > 0 {
		conditions = append(conditions, fmt.Sprintf("tags && $%d", argPos))
		args = append(args, filter.Tags)
		argPos++
	}
	if filter.Location != "" {
		conditions = append(conditions, fmt.Sprintf("location ILIKE $%d", argPos))
		args = append(args, "%"+filter.Location+"%")
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM events "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT `+eventColumns+`
		FROM events
		%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`, whereClause, orderClause(filter.Sort), argPos, argPos+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *e)
	}
	return result, total, rows.Err()
}

// orderClause whitelists sort keys; anything unknown falls back to the
// soonest-first default.
func orderClause(sort string) string {
	switch sort {
	case "name":
		return "name ASC"
	case "-name":
		return "name DESC"
	case "-startDate":
		return "start_date DESC"
	case "createdAt":
		return "created_at ASC"
	case "-createdAt":
		return "created_at DESC"
	default:
		return "start_date ASC"
	}
}

// Create inserts a new event.
func (r *PGRepository) Create(ctx context.Context, event *Event) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO events (
			id, name, description, start_date, end_date, location,
			organizer_id, status, capacity, registration_deadline,
			is_public, tags, active_modules, contact_email, contact_phone,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, 'epoch'::timestamptz),
			$11, $12, $13, $14, $15, $16, $16)`,
		event.ID, event.Name, event.Description, event.StartDate, event.EndDate, event.Location,
		event.OrganizerID, event.Status, event.Capacity, deadlineValue(event.RegistrationDeadline),
		event.IsPublic, event.Tags, event.ActiveModules, event.ContactEmail, event.ContactPhone,
		event.CreatedAt,
	)
	return err
}

func deadlineValue(t time.Time) time.Time {
	if t.IsZero() {
		return time.Unix(0, 0).UTC()
	}
	return t
}

// Update applies a partial update and returns the new row.
func (r *PGRepository) Update(ctx context.Context, id string, in EventUpdate) (*Event, error) {
	query := "UPDATE events SET updated_at = NOW()"
	var args []interface{}
	argPos := 1

	set := func(column string, value interface{}) {
		query += fmt.Sprintf(", %s = $%d", column, argPos)
		args = append(args, value)
		argPos++
	}

	if in.Name != nil {
		set("name", *in.Name)
	}
	if in.Description != nil {
		set("description", *in.Description)
	}
	if in.StartDate != nil {
		set("start_date", *in.StartDate)
	}
	if in.EndDate != nil {
		set("end_date", *in.EndDate)
	}
	if in.Location != nil {
		set("location", *in.Location)
	}
	if in.Status != nil {
		set("status", *in.Status)
	}
	if in.Capacity != nil {
		set("capacity", *in.Capacity)
	}
	if in.RegistrationDeadline != nil {
		set("registration_deadline", *in.RegistrationDeadline)
	}
	if in.IsPublic != nil {
		set("is_public", *in.IsPublic)
	}
	if in.Tags != nil {
		set("tags", in.Tags)
	}
	if in.ActiveModules != nil {
		set("active_modules", in.ActiveModules)
	}
	if in.ContactEmail != nil {
		set("contact_email", *in.ContactEmail)
	}
	if in.ContactPhone != nil {
		set("contact_phone", *in.ContactPhone)
	}

	query += fmt.Sprintf(" WHERE id = $%d RETURNING "+eventColumns, argPos)
	args = append(args, id)

	return scanEvent(r.pool.QueryRow(ctx, query, args...))
}

// Delete removes an event and, through cascading constraints, its
// registrations.
func (r *PGRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// MissingEvents returns the subset of ids with no matching event.
func (r *PGRepository) MissingEvents(ctx context.Context, ids []string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT wanted.id
		FROM unnest($1::text[]) AS wanted(id)
		LEFT JOIN events e ON e.id = wanted.id
		WHERE e.id IS NULL`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var missing []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		missing = append(missing, id)
	}
	return missing, rows.Err()
}

// CompletePastEvents marks published events whose end date has passed as
// completed. Used by the scheduler.
func (r *PGRepository) CompletePastEvents(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE events SET status = $1, updated_at = $2
		WHERE status = $3 AND end_date < $2`,
		StatusCompleted, now, StatusPublished)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Register inserts a registration after re-validating eligibility under a
// row lock, so concurrent requests cannot oversell a capacity-limited event.
func (r *PGRepository) Register(ctx context.Context, participant *Participant, now time.Time) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`,
			participant.EventID)
		event, err := scanEvent(row)
		if err != nil {
			return err
		}
		if !event.RegistrationOpen(now) {
			return ErrRegistrationClosed
		}

		var count int
		err = tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM participants
			WHERE event_id = $1 AND status <> $2`,
			event.ID, ParticipantCancelled).Scan(&count)
		if err != nil {
			return err
		}
		if event.AtCapacity(count) {
			return ErrAtCapacity
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO participants (
				id, event_id, user_id, first_name, last_name, email, company,
				status, remarks, badge_printed, search_text, registered_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)`,
			participant.ID, participant.EventID, participant.UserID,
			participant.FirstName, participant.LastName, participant.Email, participant.Company,
			participant.Status, participant.Remarks, participant.BadgePrinted,
			searchText(participant), participant.RegisteredAt,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrAlreadyRegistered
			}
			return err
		}
		return nil
	})
}

const participantColumns = `id, event_id, user_id, first_name, last_name, email,
	company, status, remarks, badge_printed, registered_at, updated_at`

func scanParticipant(row rowScanner) (*Participant, error) {
	var p Participant
	err := row.Scan(
		&p.ID, &p.EventID, &p.UserID, &p.FirstName, &p.LastName, &p.Email,
		&p.Company, &p.Status, &p.Remarks, &p.BadgePrinted, &p.RegisteredAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ListParticipants returns a page of registrations for one event.
func (r *PGRepository) ListParticipants(ctx context.Context, eventID string, filter ParticipantFilter) ([]Participant, int, error) {
	conditions := []string{"event_id = $1"}
	args := []interface{}{eventID}
	argPos := 2

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, filter.Status)
		argPos++
	}
	if filter.Badge != nil {
		conditions = append(conditions, fmt.Sprintf("badge_printed = $%d", argPos))
		args = append(args, *filter.Badge)
		argPos++
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("search_text LIKE $%d", argPos))
		args = append(args, "%"+NormalizeSearch(filter.Search)+"%")
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM participants "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT `+participantColumns+`
		FROM participants
		%s
		ORDER BY registered_at ASC
		LIMIT $%d OFFSET $%d`, whereClause, argPos, argPos+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *p)
	}
	return result, total, rows.Err()
}

// GetParticipant fetches one registration scoped to its event.
func (r *PGRepository) GetParticipant(ctx context.Context, eventID, participantID string) (*Participant, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE event_id = $1 AND id = $2`,
		eventID, participantID)
	return scanParticipant(row)
}

// UpdateParticipant applies a partial update to a registration.
func (r *PGRepository) UpdateParticipant(ctx context.Context, eventID, participantID string, in ParticipantUpdate) (*Participant, error) {
	query := "UPDATE participants SET updated_at = NOW()"
	var args []interface{}
	argPos := 1

	if in.Status != nil {
		query += fmt.Sprintf(", status = $%d", argPos)
		args = append(args, *in.Status)
		argPos++
	}
	if in.Remarks != nil {
		query += fmt.Sprintf(", remarks = $%d", argPos)
		args = append(args, *in.Remarks)
		argPos++
	}
	if in.BadgePrinted != nil {
		query += fmt.Sprintf(", badge_printed = $%d", argPos)
		args = append(args, *in.BadgePrinted)
		argPos++
	}

	query += fmt.Sprintf(" WHERE event_id = $%d AND id = $%d RETURNING "+participantColumns, argPos, argPos+1)
	args = append(args, eventID, participantID)

	return scanParticipant(r.pool.QueryRow(ctx, query, args...))
}

// Stats aggregates registration counts for one event.
func (r *PGRepository) Stats(ctx context.Context, eventID string) (*Statistics, error) {
	event, err := r.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}

	stats := &Statistics{
		EventID:  eventID,
		ByStatus: map[string]int{},
		Capacity: event.Capacity,
	}

	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*), COUNT(*) FILTER (WHERE badge_printed)
		FROM participants WHERE event_id = $1
		GROUP BY status`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count, badges int
		if err := rows.Scan(&status, &count, &badges); err != nil {
			return nil, err
		}
		stats.ByStatus[status] = count
		stats.BadgesPrinted += badges
		if status != string(ParticipantCancelled) {
			stats.TotalParticipants += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if event.Capacity > 0 {
		remaining := event.Capacity - stats.TotalParticipants
		if remaining < 0 {
			remaining = 0
		}
		stats.SpotsRemaining = remaining
	}

	timeline, err := r.pool.Query(ctx, `
		SELECT to_char(registered_at::date, 'YYYY-MM-DD'), COUNT(*)
		FROM participants WHERE event_id = $1
		GROUP BY registered_at::date
		ORDER BY registered_at::date`, eventID)
	if err != nil {
		return nil, err
	}
	defer timeline.Close()
	for timeline.Next() {
		var point TimelinePoint
		if err := timeline.Scan(&point.Date, &point.Count); err != nil {
			return nil, err
		}
		stats.Timeline = append(stats.Timeline, point)
	}
	return stats, timeline.Err()
}

var _ Repository = (*PGRepository)(nil)
