package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/2hm1901/tournament-management/models"
	"github.com/2hm1901/tournament-management/repositories"
	"github.com/2hm1901/tournament-management/storage"
)

// TeamService управляет парами для парных разрядов.
type TeamService struct {
	repo       repositories.TeamRepository
	playerRepo repositories.PlayerRepository
	uploader   storage.FileUploader
}

func NewTeamService(repo repositories.TeamRepository, playerRepo repositories.PlayerRepository, uploader storage.FileUploader) *TeamService {
	return &TeamService{
		repo:       repo,
		playerRepo: playerRepo,
		uploader:   uploader,
	}
}

// CreateTeam собирает пару из двух разных игроков. Рейтинг команды -- среднее
// рейтингов игроков.
func (s *TeamService) CreateTeam(ctx context.Context, team *models.Team) error {
	if team.Name == "" {
		return fmt.Errorf("%w: team name is required", ErrValidationFailed)
	}
	if team.Player1ID == team.Player2ID {
		return fmt.Errorf("%w: a team requires two different players", ErrValidationFailed)
	}

	player1, err := s.playerRepo.GetByID(ctx, team.Player1ID)
	if err != nil {
		return s.mapPlayerError(err)
	}
	player2, err := s.playerRepo.GetByID(ctx, team.Player2ID)
	if err != nil {
		return s.mapPlayerError(err)
	}
	team.TeamRating = (player1.SkillRating + player2.SkillRating) / 2

	if err := s.repo.Create(ctx, team); err != nil {
		if errors.Is(err, repositories.ErrTeamNameConflict) {
			return fmt.Errorf("%w: team name is already in use", ErrValidationFailed)
		}
		return err
	}
	return nil
}

func (s *TeamService) GetTeam(ctx context.Context, id int) (*models.Team, error) {
	team, err := s.repo.GetWithPlayers(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	s.populateLogoURL(team)
	return team, nil
}

func (s *TeamService) UpdateTeam(ctx context.Context, team *models.Team) error {
	if team.Name == "" {
		return fmt.Errorf("%w: team name is required", ErrValidationFailed)
	}
	if err := s.repo.Update(ctx, team); err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return ErrTeamNotFound
		}
		return err
	}
	return nil
}

func (s *TeamService) UploadLogo(ctx context.Context, id int, key string) error {
	if err := s.repo.UpdateLogoKey(ctx, id, &key); err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return ErrTeamNotFound
		}
		return err
	}
	return nil
}

func (s *TeamService) mapPlayerError(err error) error {
	if errors.Is(err, repositories.ErrPlayerNotFound) {
		return ErrPlayerNotFound
	}
	return err
}

func (s *TeamService) populateLogoURL(team *models.Team) {
	if team == nil || team.LogoKey == nil || *team.LogoKey == "" || s.uploader == nil {
		return
	}
	if url := s.uploader.GetPublicURL(*team.LogoKey); url != "" {
		team.LogoURL = &url
	}
}
