package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/2hm1901/tournament-management/models"
	"github.com/lib/pq"
)

var (
	ErrParticipantNotFound          = errors.New("participant not found")
	ErrParticipantConflict          = errors.New("participant conflict: player or team already registered for this tournament")
	ErrParticipantPlayerInvalid     = errors.New("participant player conflict or invalid")
	ErrParticipantTeamInvalid       = errors.New("participant team conflict or invalid")
	ErrParticipantTournamentInvalid = errors.New("participant tournament conflict or invalid")
	ErrParticipantTypeViolation     = errors.New("participant type violation: either player_id or team_id must be set, but not both")
	ErrSeedConflict                 = errors.New("seed number already taken in this tournament")
)

type ParticipantRepository interface {
	Create(ctx context.Context, p *models.TournamentParticipant) error
	FindByID(ctx context.Context, exec SQLExecutor, id int) (*models.TournamentParticipant, error)
	FindByPlayerAndTournament(ctx context.Context, playerID, tournamentID int) (*models.TournamentParticipant, error)
	FindByTeamAndTournament(ctx context.Context, teamID, tournamentID int) (*models.TournamentParticipant, error)
	ListByTournament(ctx context.Context, tournamentID int, statusFilter *models.RegistrationStatus, includeNested bool) ([]*models.TournamentParticipant, error)
	UpdateRegistrationStatus(ctx context.Context, exec SQLExecutor, id int, registration models.RegistrationStatus, tournament *models.ParticipantTournamentStatus, confirmed bool) error
	UpdateSeed(ctx context.Context, exec SQLExecutor, id int, seed *int) error
	IncrementStats(ctx context.Context, exec SQLExecutor, id int, won bool, setsWon, setsLost, gamesWon, gamesLost int) error
	UpdateFinalStanding(ctx context.Context, exec SQLExecutor, id int, status models.ParticipantTournamentStatus, position int, prizeMoney float64) error
	UpdateTournamentStatus(ctx context.Context, exec SQLExecutor, id int, status models.ParticipantTournamentStatus) error
	MarkEntryFeePaid(ctx context.Context, exec SQLExecutor, id int, reference *string) error
	Delete(ctx context.Context, id int) error
}

type postgresParticipantRepository struct {
	db *sql.DB
}

func NewPostgresParticipantRepository(db *sql.DB) ParticipantRepository {
	return &postgresParticipantRepository{db: db}
}

func (r *postgresParticipantRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const participantColumns = `
	p.id, p.tournament_id, p.player_id, p.team_id, p.registration_status, p.tournament_status,
	p.seed_number, p.current_round, p.matches_played, p.matches_won, p.matches_lost,
	p.sets_won, p.sets_lost, p.games_won, p.games_lost,
	p.final_position, p.prize_money, p.entry_fee_paid, p.payment_date, p.payment_reference,
	p.registered_at, p.confirmed_at, p.created_at`

func (r *postgresParticipantRepository) scanParticipant(rowScanner interface {
	Scan(dest ...interface{}) error
}, p *models.TournamentParticipant) error {
	return rowScanner.Scan(
		&p.ID, &p.TournamentID, &p.PlayerID, &p.TeamID, &p.RegistrationStatus, &p.TournamentStatus,
		&p.SeedNumber, &p.CurrentRound, &p.MatchesPlayed, &p.MatchesWon, &p.MatchesLost,
		&p.SetsWon, &p.SetsLost, &p.GamesWon, &p.GamesLost,
		&p.FinalPosition, &p.PrizeMoney, &p.EntryFeePaid, &p.PaymentDate, &p.PaymentReference,
		&p.RegisteredAt, &p.ConfirmedAt, &p.CreatedAt,
	)
}

func (r *postgresParticipantRepository) Create(ctx context.Context, p *models.TournamentParticipant) error {
	query := `
		INSERT INTO tournament_participants
			(tournament_id, player_id, team_id, registration_status, tournament_status, registered_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		p.TournamentID,
		p.PlayerID,
		p.TeamID,
		p.RegistrationStatus,
		p.TournamentStatus,
		p.RegisteredAt,
	).Scan(&p.ID, &p.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505": // unique_violation
				if pqErr.Constraint == "tournament_participants_tournament_id_player_id_key" ||
					pqErr.Constraint == "tournament_participants_tournament_id_team_id_key" {
					return ErrParticipantConflict
				}
			case "23503": // foreign_key_violation
				switch pqErr.Constraint {
				case "tournament_participants_player_id_fkey":
					return ErrParticipantPlayerInvalid
				case "tournament_participants_team_id_fkey":
					return ErrParticipantTeamInvalid
				case "tournament_participants_tournament_id_fkey":
					return ErrParticipantTournamentInvalid
				}
			case "23514": // check_violation
				if pqErr.Constraint == "chk_participant_entry_type" {
					return ErrParticipantTypeViolation
				}
			}
		}
		return fmt.Errorf("failed to create participant: %w", err)
	}
	return nil
}

func (r *postgresParticipantRepository) findOne(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) (*models.TournamentParticipant, error) {
	p := &models.TournamentParticipant{}
	row := r.getExecutor(exec).QueryRowContext(ctx, query, args...)
	if err := r.scanParticipant(row, p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to find participant: %w", err)
	}
	return p, nil
}

func (r *postgresParticipantRepository) FindByID(ctx context.Context, exec SQLExecutor, id int) (*models.TournamentParticipant, error) {
	query := `SELECT` + participantColumns + ` FROM tournament_participants p WHERE p.id = $1`
	return r.findOne(ctx, exec, query, id)
}

func (r *postgresParticipantRepository) FindByPlayerAndTournament(ctx context.Context, playerID, tournamentID int) (*models.TournamentParticipant, error) {
	query := `SELECT` + participantColumns + ` FROM tournament_participants p WHERE p.player_id = $1 AND p.tournament_id = $2`
	return r.findOne(ctx, nil, query, playerID, tournamentID)
}

func (r *postgresParticipantRepository) FindByTeamAndTournament(ctx context.Context, teamID, tournamentID int) (*models.TournamentParticipant, error) {
	query := `SELECT` + participantColumns + ` FROM tournament_participants p WHERE p.team_id = $1 AND p.tournament_id = $2`
	return r.findOne(ctx, nil, query, teamID, tournamentID)
}

func (r *postgresParticipantRepository) ListByTournament(ctx context.Context, tournamentID int, statusFilter *models.RegistrationStatus, includeNested bool) ([]*models.TournamentParticipant, error) {
	var queryBuilder strings.Builder
	args := []interface{}{tournamentID}
	argCounter := 2

	queryBuilder.WriteString(`SELECT` + participantColumns)
	if includeNested {
		queryBuilder.WriteString(`,
			COALESCE(pl.id, 0), COALESCE(pl.player_name, ''), COALESCE(pl.gender, 'male'), COALESCE(pl.skill_rating, 0), pl.date_of_birth,
			COALESCE(tm.id, 0), COALESCE(tm.name, ''), COALESCE(tm.team_rating, 0)`)
	}
	queryBuilder.WriteString(`
		FROM tournament_participants p`)
	if includeNested {
		queryBuilder.WriteString(`
		LEFT JOIN players pl ON p.player_id = pl.id
		LEFT JOIN teams tm ON p.team_id = tm.id`)
	}
	queryBuilder.WriteString(" WHERE p.tournament_id = $1")

	if statusFilter != nil {
		queryBuilder.WriteString(fmt.Sprintf(" AND p.registration_status = $%d", argCounter))
		args = append(args, *statusFilter)
	}
	queryBuilder.WriteString(" ORDER BY p.created_at ASC, p.id ASC")

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants by tournament: %w", err)
	}
	defer rows.Close()

	participants := make([]*models.TournamentParticipant, 0)
	for rows.Next() {
		var p models.TournamentParticipant
		var pl models.Player
		var tm models.Team
		scanDest := []interface{}{
			&p.ID, &p.TournamentID, &p.PlayerID, &p.TeamID, &p.RegistrationStatus, &p.TournamentStatus,
			&p.SeedNumber, &p.CurrentRound, &p.MatchesPlayed, &p.MatchesWon, &p.MatchesLost,
			&p.SetsWon, &p.SetsLost, &p.GamesWon, &p.GamesLost,
			&p.FinalPosition, &p.PrizeMoney, &p.EntryFeePaid, &p.PaymentDate, &p.PaymentReference,
			&p.RegisteredAt, &p.ConfirmedAt, &p.CreatedAt,
		}
		if includeNested {
			scanDest = append(scanDest,
				&pl.ID, &pl.PlayerName, &pl.Gender, &pl.SkillRating, &pl.DateOfBirth,
				&tm.ID, &tm.Name, &tm.TeamRating,
			)
		}
		if err := rows.Scan(scanDest...); err != nil {
			return nil, fmt.Errorf("failed to scan participant row: %w", err)
		}
		if includeNested {
			if p.PlayerID != nil && pl.ID > 0 {
				player := pl
				p.Player = &player
			}
			if p.TeamID != nil && tm.ID > 0 {
				team := tm
				p.Team = &team
			}
		}
		participants = append(participants, &p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participant rows: %w", err)
	}
	return participants, nil
}

func (r *postgresParticipantRepository) UpdateRegistrationStatus(ctx context.Context, exec SQLExecutor, id int, registration models.RegistrationStatus, tournament *models.ParticipantTournamentStatus, confirmed bool) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE tournament_participants SET
			registration_status = $1,
			tournament_status = COALESCE($2, tournament_status),
			confirmed_at = CASE WHEN $3 THEN NOW() ELSE confirmed_at END
		WHERE id = $4`
	result, err := executor.ExecContext(ctx, query, registration, tournament, confirmed, id)
	if err != nil {
		return fmt.Errorf("failed to update participant status: %w", err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) UpdateSeed(ctx context.Context, exec SQLExecutor, id int, seed *int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournament_participants SET seed_number = $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, seed, id)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrSeedConflict
		}
		return fmt.Errorf("failed to update participant seed: %w", err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) IncrementStats(ctx context.Context, exec SQLExecutor, id int, won bool, setsWon, setsLost, gamesWon, gamesLost int) error {
	executor := r.getExecutor(exec)
	wonDelta, lostDelta := 0, 1
	if won {
		wonDelta, lostDelta = 1, 0
	}
	query := `
		UPDATE tournament_participants SET
			matches_played = matches_played + 1,
			matches_won = matches_won + $1,
			matches_lost = matches_lost + $2,
			sets_won = sets_won + $3,
			sets_lost = sets_lost + $4,
			games_won = games_won + $5,
			games_lost = games_lost + $6
		WHERE id = $7`
	result, err := executor.ExecContext(ctx, query, wonDelta, lostDelta, setsWon, setsLost, gamesWon, gamesLost, id)
	if err != nil {
		return fmt.Errorf("failed to increment participant stats: %w", err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) UpdateFinalStanding(ctx context.Context, exec SQLExecutor, id int, status models.ParticipantTournamentStatus, position int, prizeMoney float64) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE tournament_participants SET
			tournament_status = $1,
			final_position = $2,
			prize_money = $3
		WHERE id = $4`
	result, err := executor.ExecContext(ctx, query, status, position, prizeMoney, id)
	if err != nil {
		return fmt.Errorf("failed to update participant final standing: %w", err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) UpdateTournamentStatus(ctx context.Context, exec SQLExecutor, id int, status models.ParticipantTournamentStatus) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournament_participants SET tournament_status = $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update participant tournament status: %w", err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) MarkEntryFeePaid(ctx context.Context, exec SQLExecutor, id int, reference *string) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE tournament_participants SET
			entry_fee_paid = TRUE,
			payment_date = NOW(),
			payment_reference = $1
		WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, reference, id)
	if err != nil {
		return fmt.Errorf("failed to mark entry fee paid: %w", err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM tournament_participants WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete participant: %w", err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}
