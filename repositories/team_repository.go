package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/2hm1901/tournament-management/models"
	"github.com/lib/pq"
)

var (
	ErrTeamNotFound      = errors.New("team not found")
	ErrTeamNameConflict  = errors.New("team name is already in use")
	ErrTeamPlayerInvalid = errors.New("invalid player reference for team")
)

type TeamRepository interface {
	Create(ctx context.Context, team *models.Team) error
	GetByID(ctx context.Context, id int) (*models.Team, error)
	GetWithPlayers(ctx context.Context, id int) (*models.Team, error)
	Update(ctx context.Context, team *models.Team) error
	UpdateLogoKey(ctx context.Context, id int, logoKey *string) error
	Delete(ctx context.Context, id int) error
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

func (r *postgresTeamRepository) Create(ctx context.Context, t *models.Team) error {
	query := `
		INSERT INTO teams (name, player1_id, player2_id, team_rating)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query,
		t.Name, t.Player1ID, t.Player2ID, t.TeamRating,
	).Scan(&t.ID, &t.CreatedAt)
	return r.handleTeamError(err)
}

func (r *postgresTeamRepository) GetByID(ctx context.Context, id int) (*models.Team, error) {
	query := `SELECT id, name, player1_id, player2_id, team_rating, created_at, logo_key FROM teams WHERE id = $1`
	t := &models.Team{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.Name, &t.Player1ID, &t.Player2ID, &t.TeamRating, &t.CreatedAt, &t.LogoKey,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to scan team by id %d: %w", id, err)
	}
	return t, nil
}

func (r *postgresTeamRepository) GetWithPlayers(ctx context.Context, id int) (*models.Team, error) {
	query := `
		SELECT
			t.id, t.name, t.player1_id, t.player2_id, t.team_rating, t.created_at, t.logo_key,
			p1.id, p1.user_id, p1.player_name, p1.gender, p1.skill_rating, p1.date_of_birth, p1.country, p1.created_at, p1.logo_key,
			p2.id, p2.user_id, p2.player_name, p2.gender, p2.skill_rating, p2.date_of_birth, p2.country, p2.created_at, p2.logo_key
		FROM teams t
		JOIN players p1 ON t.player1_id = p1.id
		JOIN players p2 ON t.player2_id = p2.id
		WHERE t.id = $1`

	t := &models.Team{}
	var p1, p2 models.Player
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.Name, &t.Player1ID, &t.Player2ID, &t.TeamRating, &t.CreatedAt, &t.LogoKey,
		&p1.ID, &p1.UserID, &p1.PlayerName, &p1.Gender, &p1.SkillRating, &p1.DateOfBirth, &p1.Country, &p1.CreatedAt, &p1.LogoKey,
		&p2.ID, &p2.UserID, &p2.PlayerName, &p2.Gender, &p2.SkillRating, &p2.DateOfBirth, &p2.Country, &p2.CreatedAt, &p2.LogoKey,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to scan team with players by id %d: %w", id, err)
	}
	t.Player1 = &p1
	t.Player2 = &p2
	return t, nil
}

func (r *postgresTeamRepository) Update(ctx context.Context, t *models.Team) error {
	query := `UPDATE teams SET name = $1, team_rating = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, t.Name, t.TeamRating, t.ID)
	if err != nil {
		return r.handleTeamError(err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) UpdateLogoKey(ctx context.Context, id int, logoKey *string) error {
	query := `UPDATE teams SET logo_key = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, logoKey, id)
	if err != nil {
		return fmt.Errorf("failed to update team logo key: %w", err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM teams WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return r.handleTeamError(err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) handleTeamError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			return ErrTeamNameConflict
		case "23503":
			return ErrTeamPlayerInvalid
		}
	}
	return err
}
