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
	ErrPlayerNotFound    = errors.New("player not found")
	ErrPlayerConflict    = errors.New("player profile already exists for this user")
	ErrPlayerUserInvalid = errors.New("invalid user reference for player")
)

type PlayerRepository interface {
	Create(ctx context.Context, player *models.Player) error
	GetByID(ctx context.Context, id int) (*models.Player, error)
	GetByUserID(ctx context.Context, userID int) (*models.Player, error)
	Update(ctx context.Context, player *models.Player) error
	UpdateLogoKey(ctx context.Context, id int, logoKey *string) error
	Delete(ctx context.Context, id int) error
}

type postgresPlayerRepository struct {
	db *sql.DB
}

func NewPostgresPlayerRepository(db *sql.DB) PlayerRepository {
	return &postgresPlayerRepository{db: db}
}

const playerColumns = `id, user_id, player_name, gender, skill_rating, date_of_birth, country, created_at, logo_key`

func (r *postgresPlayerRepository) scanPlayer(row interface {
	Scan(dest ...interface{}) error
}, p *models.Player) error {
	return row.Scan(&p.ID, &p.UserID, &p.PlayerName, &p.Gender, &p.SkillRating, &p.DateOfBirth, &p.Country, &p.CreatedAt, &p.LogoKey)
}

func (r *postgresPlayerRepository) Create(ctx context.Context, p *models.Player) error {
	query := `
		INSERT INTO players (user_id, player_name, gender, skill_rating, date_of_birth, country)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query,
		p.UserID, p.PlayerName, p.Gender, p.SkillRating, p.DateOfBirth, p.Country,
	).Scan(&p.ID, &p.CreatedAt)
	return r.handlePlayerError(err)
}

func (r *postgresPlayerRepository) GetByID(ctx context.Context, id int) (*models.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE id = $1`
	p := &models.Player{}
	if err := r.scanPlayer(r.db.QueryRowContext(ctx, query, id), p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to scan player by id %d: %w", id, err)
	}
	return p, nil
}

func (r *postgresPlayerRepository) GetByUserID(ctx context.Context, userID int) (*models.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE user_id = $1`
	p := &models.Player{}
	if err := r.scanPlayer(r.db.QueryRowContext(ctx, query, userID), p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to scan player by user id %d: %w", userID, err)
	}
	return p, nil
}

func (r *postgresPlayerRepository) Update(ctx context.Context, p *models.Player) error {
	query := `
		UPDATE players SET
			player_name = $1,
			gender = $2,
			skill_rating = $3,
			date_of_birth = $4,
			country = $5
		WHERE id = $6`
	result, err := r.db.ExecContext(ctx, query,
		p.PlayerName, p.Gender, p.SkillRating, p.DateOfBirth, p.Country, p.ID,
	)
	if err != nil {
		return r.handlePlayerError(err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) UpdateLogoKey(ctx context.Context, id int, logoKey *string) error {
	query := `UPDATE players SET logo_key = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, logoKey, id)
	if err != nil {
		return fmt.Errorf("failed to update player logo key: %w", err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM players WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return r.handlePlayerError(err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) handlePlayerError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			return ErrPlayerConflict
		case "23503":
			return ErrPlayerUserInvalid
		}
	}
	return err
}
