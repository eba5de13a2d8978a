package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/2hm1901/tournament-management/models"
	"github.com/lib/pq"
)

var (
	ErrMatchNotFound           = errors.New("match not found")
	ErrMatchTournamentInvalid  = errors.New("match tournament conflict or invalid")
	ErrMatchParticipantInvalid = errors.New("match participant conflict or invalid")
)

// MatchResultUpdate carries everything written when a match reaches a terminal
// result state, applied as a single UPDATE.
type MatchResultUpdate struct {
	Status          models.MatchStatus
	WinnerID        *int
	LoserID         *int
	ScoreData       *models.ScoreData
	FinalScore      *string
	CompletedAt     *time.Time
	DurationMinutes *int
	Notes           *string
}

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.TournamentMatch) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.TournamentMatch, error)
	ListByTournament(ctx context.Context, tournamentID int, round *int, status *models.MatchStatus) ([]*models.TournamentMatch, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.MatchStatus, startedAt *time.Time) error
	UpdateResult(ctx context.Context, exec SQLExecutor, id int, update MatchResultUpdate) error
	UpdateSchedule(ctx context.Context, exec SQLExecutor, id int, scheduledAt time.Time, court *string) error
	UpdateNotes(ctx context.Context, exec SQLExecutor, id int, notes *string) error
	// SetParticipantSlot fills exactly one empty slot of a successor match.
	// The slot column is chosen by position (participant1/participant2).
	SetParticipantSlot(ctx context.Context, exec SQLExecutor, id int, position string, participantID int) error
	UpdateNextMatchInfo(ctx context.Context, exec SQLExecutor, id int, nextMatchID *int, nextMatchPosition *string) error
	// AppendEvent adds one record to the match event log. The log column only
	// ever grows: the UPDATE concatenates, it never rewrites.
	AppendEvent(ctx context.Context, exec SQLExecutor, id int, event models.MatchEvent) error
	Delete(ctx context.Context, id int) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `
	id, tournament_id, participant1_id, participant2_id, round_number, round_name, match_number,
	status, scheduled_at, started_at, completed_at, court_number, winner_id, loser_id,
	score_data, final_score, duration_minutes, notes, match_events,
	next_match_id, next_match_position, created_at`

func (r *postgresMatchRepository) scanMatch(row interface {
	Scan(dest ...interface{}) error
}, m *models.TournamentMatch) error {
	var scoreRaw, eventsRaw []byte
	err := row.Scan(
		&m.ID, &m.TournamentID, &m.Participant1ID, &m.Participant2ID, &m.RoundNumber, &m.RoundName, &m.MatchNumber,
		&m.Status, &m.ScheduledAt, &m.StartedAt, &m.CompletedAt, &m.CourtNumber, &m.WinnerID, &m.LoserID,
		&scoreRaw, &m.FinalScore, &m.DurationMinutes, &m.Notes, &eventsRaw,
		&m.NextMatchID, &m.NextMatchPosition, &m.CreatedAt,
	)
	if err != nil {
		return err
	}
	if len(scoreRaw) > 0 {
		score := &models.ScoreData{}
		if err := json.Unmarshal(scoreRaw, score); err != nil {
			return fmt.Errorf("failed to decode match score data: %w", err)
		}
		m.ScoreData = score
	}
	if len(eventsRaw) > 0 {
		if err := json.Unmarshal(eventsRaw, &m.MatchEvents); err != nil {
			return fmt.Errorf("failed to decode match events: %w", err)
		}
	}
	return nil
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, m *models.TournamentMatch) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO tournament_matches
			(tournament_id, participant1_id, participant2_id, round_number, round_name, match_number,
			 status, scheduled_at, court_number, next_match_id, next_match_position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		m.TournamentID,
		m.Participant1ID,
		m.Participant2ID,
		m.RoundNumber,
		m.RoundName,
		m.MatchNumber,
		m.Status,
		m.ScheduledAt,
		m.CourtNumber,
		m.NextMatchID,
		m.NextMatchPosition,
	).Scan(&m.ID, &m.CreatedAt)

	return r.handleMatchError(err)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.TournamentMatch, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + matchColumns + ` FROM tournament_matches WHERE id = $1`

	m := &models.TournamentMatch{}
	if err := r.scanMatch(executor.QueryRowContext(ctx, query, id), m); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match by id %d: %w", id, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, tournamentID int, roundFilter *int, statusFilter *models.MatchStatus) ([]*models.TournamentMatch, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT` + matchColumns + ` FROM tournament_matches WHERE tournament_id = $1`)

	args := []interface{}{tournamentID}
	placeholderIndex := 2

	if roundFilter != nil {
		queryBuilder.WriteString(" AND round_number = $")
		queryBuilder.WriteString(strconv.Itoa(placeholderIndex))
		args = append(args, *roundFilter)
		placeholderIndex++
	}
	if statusFilter != nil {
		queryBuilder.WriteString(" AND status = $")
		queryBuilder.WriteString(strconv.Itoa(placeholderIndex))
		args = append(args, *statusFilter)
	}

	queryBuilder.WriteString(" ORDER BY round_number ASC, match_number ASC, id ASC")

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	matches := make([]*models.TournamentMatch, 0)
	for rows.Next() {
		var m models.TournamentMatch
		if scanErr := r.scanMatch(rows, &m); scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, &m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating match rows: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.MatchStatus, startedAt *time.Time) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE tournament_matches SET
			status = $1,
			started_at = COALESCE($2, started_at)
		WHERE id = $3`
	result, err := executor.ExecContext(ctx, query, status, startedAt, id)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateResult(ctx context.Context, exec SQLExecutor, id int, update MatchResultUpdate) error {
	executor := r.getExecutor(exec)

	var scoreArg any
	if update.ScoreData != nil {
		raw, err := json.Marshal(update.ScoreData)
		if err != nil {
			return fmt.Errorf("failed to encode match score data: %w", err)
		}
		scoreArg = raw
	}

	query := `
		UPDATE tournament_matches SET
			status = $1,
			winner_id = $2,
			loser_id = $3,
			score_data = $4,
			final_score = $5,
			completed_at = $6,
			duration_minutes = $7,
			notes = COALESCE($8, notes)
		WHERE id = $9`
	result, err := executor.ExecContext(ctx, query,
		update.Status, update.WinnerID, update.LoserID,
		scoreArg, update.FinalScore, update.CompletedAt, update.DurationMinutes, update.Notes,
		id,
	)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateSchedule(ctx context.Context, exec SQLExecutor, id int, scheduledAt time.Time, court *string) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE tournament_matches SET
			scheduled_at = $1,
			court_number = COALESCE($2, court_number)
		WHERE id = $3`
	result, err := executor.ExecContext(ctx, query, scheduledAt, court, id)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateNotes(ctx context.Context, exec SQLExecutor, id int, notes *string) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournament_matches SET notes = $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, notes, id)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) SetParticipantSlot(ctx context.Context, exec SQLExecutor, id int, position string, participantID int) error {
	executor := r.getExecutor(exec)
	var column string
	switch position {
	case models.NextMatchParticipant1:
		column = "participant1_id"
	case models.NextMatchParticipant2:
		column = "participant2_id"
	default:
		return fmt.Errorf("invalid next match position %q", position)
	}
	query := fmt.Sprintf(`UPDATE tournament_matches SET %s = $1 WHERE id = $2`, column)
	result, err := executor.ExecContext(ctx, query, participantID, id)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateNextMatchInfo(ctx context.Context, exec SQLExecutor, id int, nextMatchID *int, nextMatchPosition *string) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournament_matches SET next_match_id = $1, next_match_position = $2 WHERE id = $3`
	result, err := executor.ExecContext(ctx, query, nextMatchID, nextMatchPosition, id)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) AppendEvent(ctx context.Context, exec SQLExecutor, id int, event models.MatchEvent) error {
	executor := r.getExecutor(exec)
	raw, err := json.Marshal([]models.MatchEvent{event})
	if err != nil {
		return fmt.Errorf("failed to encode match event: %w", err)
	}
	query := `
		UPDATE tournament_matches
		SET match_events = COALESCE(match_events, '[]'::jsonb) || $1::jsonb
		WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, raw, id)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM tournament_matches WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		if pqErr.Code == "23503" {
			switch pqErr.Constraint {
			case "tournament_matches_tournament_id_fkey":
				return ErrMatchTournamentInvalid
			case "tournament_matches_participant1_id_fkey",
				"tournament_matches_participant2_id_fkey",
				"tournament_matches_winner_id_fkey",
				"tournament_matches_loser_id_fkey":
				return ErrMatchParticipantInvalid
			}
		}
	}
	return err
}
