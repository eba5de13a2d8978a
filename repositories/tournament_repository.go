package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/2hm1901/tournament-management/models"
	"github.com/lib/pq"
)

var (
	ErrTournamentNotFound     = errors.New("tournament not found")
	ErrTournamentSlugConflict = errors.New("tournament slug already in use")
	ErrTournamentInUse        = errors.New("tournament is in use (participants/matches exist)")
	ErrTournamentInvalidOrg   = errors.New("invalid organizer reference")
	// ErrTournamentFull surfaces the conditional counter update finding no free
	// slot. Maps to the CapacityExceeded error kind.
	ErrTournamentFull = errors.New("tournament registration is full")
)

type ListTournamentsFilter struct {
	Type        *models.TournamentType
	Format      *models.TournamentFormat
	Status      *models.TournamentStatus
	OrganizerID *int
	Limit       int
	Offset      int
}

type TournamentRepository interface {
	Create(ctx context.Context, tournament *models.Tournament) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	GetBySlug(ctx context.Context, slug string) (*models.Tournament, error)
	List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error)
	Update(ctx context.Context, tournament *models.Tournament) error
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error
	UpdateRegistrationWindow(ctx context.Context, exec SQLExecutor, id int, start, end *time.Time) error
	UpdateDates(ctx context.Context, exec SQLExecutor, id int, start, end *time.Time) error
	UpdateResults(ctx context.Context, exec SQLExecutor, id int, results []models.FinalResult) error
	UpdateCancelReason(ctx context.Context, exec SQLExecutor, id int, reason *string) error
	// IncrementParticipantCount is the atomic capacity gate: the conditional
	// UPDATE succeeds for at most max_participants confirmations regardless of
	// interleaving, and returns ErrTournamentFull for the losers of the race.
	IncrementParticipantCount(ctx context.Context, exec SQLExecutor, id int) error
	DecrementParticipantCount(ctx context.Context, exec SQLExecutor, id int) error
	UpdateLogoKey(ctx context.Context, id int, logoKey *string) error
	SoftDelete(ctx context.Context, id int) error
	GetTournamentsForAutoStatusUpdate(ctx context.Context, exec SQLExecutor, currentTime time.Time) ([]*models.Tournament, error)
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const tournamentColumns = `
	id, name, slug, description, type, format, status, organizer_id,
	min_participants, max_participants, current_participants,
	registration_start_date, registration_end_date,
	tournament_start_date, tournament_end_date,
	entry_fee, settings, venue, results, cancel_reason, created_at, deleted_at, logo_key`

func (r *postgresTournamentRepository) scanTournament(row interface {
	Scan(dest ...interface{}) error
}, t *models.Tournament) error {
	var settingsRaw, resultsRaw []byte
	err := row.Scan(
		&t.ID, &t.Name, &t.Slug, &t.Description, &t.Type, &t.Format, &t.Status, &t.OrganizerID,
		&t.MinParticipants, &t.MaxParticipants, &t.CurrentParticipants,
		&t.RegistrationStartDate, &t.RegistrationEndDate,
		&t.TournamentStartDate, &t.TournamentEndDate,
		&t.EntryFee, &settingsRaw, &t.Venue, &resultsRaw, &t.CancelReason, &t.CreatedAt, &t.DeletedAt, &t.LogoKey,
	)
	if err != nil {
		return err
	}
	if len(settingsRaw) > 0 {
		settings := &models.TournamentSettings{}
		if err := json.Unmarshal(settingsRaw, settings); err != nil {
			return fmt.Errorf("failed to decode tournament settings: %w", err)
		}
		t.Settings = settings
	}
	if len(resultsRaw) > 0 {
		if err := json.Unmarshal(resultsRaw, &t.Results); err != nil {
			return fmt.Errorf("failed to decode tournament results: %w", err)
		}
	}
	return nil
}

func marshalNullable(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	executor := r.getExecutor(nil)
	query := `
		INSERT INTO tournaments (
			name, slug, description, type, format, status, organizer_id,
			min_participants, max_participants, current_participants,
			registration_start_date, registration_end_date,
			tournament_start_date, tournament_end_date,
			entry_fee, settings, venue, logo_key
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id, created_at`

	var settingsArg any
	if t.Settings != nil {
		raw, err := json.Marshal(t.Settings)
		if err != nil {
			return fmt.Errorf("failed to encode tournament settings: %w", err)
		}
		settingsArg = raw
	}

	err := executor.QueryRowContext(ctx, query,
		t.Name, t.Slug, t.Description, t.Type, t.Format, t.Status, t.OrganizerID,
		t.MinParticipants, t.MaxParticipants, t.CurrentParticipants,
		t.RegistrationStartDate, t.RegistrationEndDate,
		t.TournamentStartDate, t.TournamentEndDate,
		t.EntryFee, settingsArg, t.Venue, t.LogoKey,
	).Scan(&t.ID, &t.CreatedAt)

	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE id = $1 AND deleted_at IS NULL`

	t := &models.Tournament{}
	if err := r.scanTournament(executor.QueryRowContext(ctx, query, id), t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *postgresTournamentRepository) GetBySlug(ctx context.Context, slug string) (*models.Tournament, error) {
	executor := r.getExecutor(nil)
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE slug = $1 AND deleted_at IS NULL`

	t := &models.Tournament{}
	if err := r.scanTournament(executor.QueryRowContext(ctx, query, slug), t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error) {
	executor := r.getExecutor(nil)
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE deleted_at IS NULL`

	args := []interface{}{}
	argID := 1

	if filter.Type != nil {
		query += fmt.Sprintf(" AND type = $%d", argID)
		args = append(args, *filter.Type)
		argID++
	}
	if filter.Format != nil {
		query += fmt.Sprintf(" AND format = $%d", argID)
		args = append(args, *filter.Format)
		argID++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}
	if filter.OrganizerID != nil {
		query += fmt.Sprintf(" AND organizer_id = $%d", argID)
		args = append(args, *filter.OrganizerID)
		argID++
	}

	query += " ORDER BY tournament_start_date DESC NULLS LAST, created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		var t models.Tournament
		if scanErr := r.scanTournament(rows, &t); scanErr != nil {
			return nil, scanErr
		}
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) Update(ctx context.Context, t *models.Tournament) error {
	executor := r.getExecutor(nil)
	query := `
		UPDATE tournaments SET
			name = $1,
			slug = $2,
			description = $3,
			type = $4,
			format = $5,
			min_participants = $6,
			max_participants = $7,
			registration_start_date = $8,
			registration_end_date = $9,
			tournament_start_date = $10,
			tournament_end_date = $11,
			entry_fee = $12,
			settings = $13,
			venue = $14
		WHERE id = $15 AND deleted_at IS NULL`

	settingsArg, err := marshalNullable(func() any {
		if t.Settings == nil {
			return nil
		}
		return t.Settings
	}())
	if err != nil {
		return fmt.Errorf("failed to encode tournament settings: %w", err)
	}

	result, err := executor.ExecContext(ctx, query,
		t.Name, t.Slug, t.Description, t.Type, t.Format,
		t.MinParticipants, t.MaxParticipants,
		t.RegistrationStartDate, t.RegistrationEndDate,
		t.TournamentStartDate, t.TournamentEndDate,
		t.EntryFee, settingsArg, t.Venue,
		t.ID,
	)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournaments SET status = $1 WHERE id = $2 AND deleted_at IS NULL`
	result, err := executor.ExecContext(ctx, query, status, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateRegistrationWindow(ctx context.Context, exec SQLExecutor, id int, start, end *time.Time) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE tournaments SET
			registration_start_date = COALESCE($1, registration_start_date),
			registration_end_date = COALESCE($2, registration_end_date)
		WHERE id = $3 AND deleted_at IS NULL`
	result, err := executor.ExecContext(ctx, query, start, end, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateDates(ctx context.Context, exec SQLExecutor, id int, start, end *time.Time) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE tournaments SET
			tournament_start_date = COALESCE($1, tournament_start_date),
			tournament_end_date = COALESCE($2, tournament_end_date)
		WHERE id = $3 AND deleted_at IS NULL`
	result, err := executor.ExecContext(ctx, query, start, end, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateResults(ctx context.Context, exec SQLExecutor, id int, results []models.FinalResult) error {
	executor := r.getExecutor(exec)
	raw, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to encode tournament results: %w", err)
	}
	query := `UPDATE tournaments SET results = $1 WHERE id = $2 AND deleted_at IS NULL`
	result, err := executor.ExecContext(ctx, query, raw, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateCancelReason(ctx context.Context, exec SQLExecutor, id int, reason *string) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournaments SET cancel_reason = $1 WHERE id = $2 AND deleted_at IS NULL`
	result, err := executor.ExecContext(ctx, query, reason, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) IncrementParticipantCount(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	// Условный UPDATE -- единственный арбитр гонки за последний слот.
	query := `
		UPDATE tournaments
		SET current_participants = current_participants + 1
		WHERE id = $1 AND deleted_at IS NULL
		  AND current_participants < max_participants`
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		// Either the tournament is gone or the capacity gate rejected us.
		if _, getErr := r.GetByID(ctx, executor, id); getErr != nil {
			return getErr
		}
		return ErrTournamentFull
	}
	return nil
}

func (r *postgresTournamentRepository) DecrementParticipantCount(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE tournaments
		SET current_participants = current_participants - 1
		WHERE id = $1 AND deleted_at IS NULL
		  AND current_participants > 0`
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	// Zero rows on decrement means the counter was already at the floor;
	// treat as not found only when the tournament itself is missing.
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		if _, getErr := r.GetByID(ctx, executor, id); getErr != nil {
			return getErr
		}
	}
	return nil
}

func (r *postgresTournamentRepository) UpdateLogoKey(ctx context.Context, id int, logoKey *string) error {
	executor := r.getExecutor(nil)
	query := `UPDATE tournaments SET logo_key = $1 WHERE id = $2 AND deleted_at IS NULL`
	result, err := executor.ExecContext(ctx, query, logoKey, id)
	if err != nil {
		return fmt.Errorf("failed to update tournament logo key: %w", err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) SoftDelete(ctx context.Context, id int) error {
	executor := r.getExecutor(nil)
	query := `UPDATE tournaments SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) GetTournamentsForAutoStatusUpdate(ctx context.Context, exec SQLExecutor, currentTime time.Time) ([]*models.Tournament, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + tournamentColumns + `
		FROM tournaments
		WHERE deleted_at IS NULL AND status NOT IN ($1, $2)
		AND (
			(status = $3 AND registration_start_date IS NOT NULL AND registration_start_date <= $4) OR
			(status = $5 AND registration_end_date IS NOT NULL AND registration_end_date <= $4)
		)`
	args := []interface{}{
		models.StatusCompleted,        // $1
		models.StatusCancelled,        // $2
		models.StatusDraft,            // $3
		currentTime,                   // $4
		models.StatusRegistrationOpen, // $5
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tournaments for auto status update: %w", err)
	}
	defer rows.Close()

	var tournaments []*models.Tournament
	for rows.Next() {
		var t models.Tournament
		if scanErr := r.scanTournament(rows, &t); scanErr != nil {
			return nil, fmt.Errorf("failed to scan tournament for auto status update: %w", scanErr)
		}
		tournaments = append(tournaments, &t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during tournament rows iteration for auto status update: %w", err)
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "tournaments_slug_key" {
				return ErrTournamentSlugConflict
			}
		case "23503":
			switch pqErr.Constraint {
			case "tournaments_organizer_id_fkey":
				return ErrTournamentInvalidOrg
			default:
				return ErrTournamentInUse
			}
		}
	}
	return err
}
