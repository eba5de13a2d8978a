package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2hm1901/tournament-management/models"
	"github.com/2hm1901/tournament-management/repositories"
	"github.com/2hm1901/tournament-management/storage"
)

// Диапазон рейтинга NTRP-подобной шкалы.
const (
	minSkillRating = 1.0
	maxSkillRating = 7.0
)

// PlayerService управляет профилями игроков.
type PlayerService struct {
	repo     repositories.PlayerRepository
	userRepo repositories.UserRepository
	uploader storage.FileUploader
	now      Clock
}

func NewPlayerService(repo repositories.PlayerRepository, userRepo repositories.UserRepository, uploader storage.FileUploader) *PlayerService {
	return &PlayerService{
		repo:     repo,
		userRepo: userRepo,
		uploader: uploader,
		now:      time.Now,
	}
}

func (s *PlayerService) WithClock(clock Clock) *PlayerService {
	s.now = clock
	return s
}

func (s *PlayerService) CreatePlayer(ctx context.Context, player *models.Player) error {
	if err := validatePlayer(player); err != nil {
		return err
	}
	if _, err := s.userRepo.GetByID(ctx, player.UserID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if err := s.repo.Create(ctx, player); err != nil {
		if errors.Is(err, repositories.ErrPlayerConflict) {
			return fmt.Errorf("%w: player profile already exists for this user", ErrValidationFailed)
		}
		return err
	}
	return nil
}

func (s *PlayerService) GetPlayer(ctx context.Context, id int) (*models.Player, error) {
	player, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return nil, ErrPlayerNotFound
		}
		return nil, err
	}
	s.populateLogoURL(player)
	return player, nil
}

func (s *PlayerService) GetPlayerByUserID(ctx context.Context, userID int) (*models.Player, error) {
	player, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return nil, ErrPlayerNotFound
		}
		return nil, err
	}
	s.populateLogoURL(player)
	return player, nil
}

func (s *PlayerService) UpdatePlayer(ctx context.Context, player *models.Player) error {
	if err := validatePlayer(player); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, player); err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return ErrPlayerNotFound
		}
		return err
	}
	return nil
}

func (s *PlayerService) UploadLogo(ctx context.Context, id int, key string) error {
	if err := s.repo.UpdateLogoKey(ctx, id, &key); err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return ErrPlayerNotFound
		}
		return err
	}
	return nil
}

func validatePlayer(player *models.Player) error {
	if player.PlayerName == "" {
		return fmt.Errorf("%w: player name is required", ErrValidationFailed)
	}
	if player.Gender != models.GenderMale && player.Gender != models.GenderFemale {
		return fmt.Errorf("%w: gender must be %q or %q", ErrValidationFailed, models.GenderMale, models.GenderFemale)
	}
	if player.SkillRating < minSkillRating || player.SkillRating > maxSkillRating {
		return fmt.Errorf("%w: skill rating must be between %.1f and %.1f", ErrValidationFailed, minSkillRating, maxSkillRating)
	}
	return nil
}

func (s *PlayerService) populateLogoURL(player *models.Player) {
	if player == nil || player.LogoKey == nil || *player.LogoKey == "" || s.uploader == nil {
		return
	}
	if url := s.uploader.GetPublicURL(*player.LogoKey); url != "" {
		player.LogoURL = &url
	}
}
