package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/2hm1901/tournament-management/events"
	"github.com/2hm1901/tournament-management/models"
	"github.com/2hm1901/tournament-management/repositories"
)

// SeedingService раздаёт номера посева подтверждённым участникам.
type SeedingService struct {
	db             *sql.DB
	repo           repositories.ParticipantRepository
	tournamentRepo repositories.TournamentRepository
	dispatcher     *events.Dispatcher
	logger         *slog.Logger
	now            Clock
}

func NewSeedingService(
	db *sql.DB,
	repo repositories.ParticipantRepository,
	tournamentRepo repositories.TournamentRepository,
	dispatcher *events.Dispatcher,
	logger *slog.Logger,
) *SeedingService {
	return &SeedingService{
		db:             db,
		repo:           repo,
		tournamentRepo: tournamentRepo,
		dispatcher:     dispatcher,
		logger:         logger,
		now:            time.Now,
	}
}

func (s *SeedingService) WithClock(clock Clock) *SeedingService {
	s.now = clock
	return s
}

// AutoAssignSeeds раздаёт посев 1..N по убыванию рейтинга. При равном
// рейтинге раньше сеется тот, кто раньше зарегистрировался; дальше решает id.
// Детерминированно: одинаковый состав всегда даёт одинаковый посев.
func (s *SeedingService) AutoAssignSeeds(ctx context.Context, actorID, tournamentID int) ([]*models.TournamentParticipant, error) {
	t, participants, err := s.loadForSeeding(ctx, actorID, tournamentID)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(participants, func(i, j int) bool {
		ri, rj := participants[i].Rating(), participants[j].Rating()
		if ri != rj {
			return ri > rj
		}
		if !participants[i].CreatedAt.Equal(participants[j].CreatedAt) {
			return participants[i].CreatedAt.Before(participants[j].CreatedAt)
		}
		return participants[i].ID < participants[j].ID
	})

	assignment := make(map[int]int, len(participants))
	for i, p := range participants {
		assignment[p.ID] = i + 1
	}
	if err := s.applySeeds(ctx, participants, assignment); err != nil {
		return nil, err
	}

	s.dispatcher.Dispatch(ctx, []models.DomainEvent{{
		Type:         models.EventSeedsAssigned,
		TournamentID: t.ID,
		OccurredAt:   s.now(),
		Payload:      assignment,
	}})
	return participants, nil
}

// AssignSeeds применяет ручной посев организатора. Каждый участник из карты
// должен быть подтверждён в этом турнире, номера не должны повторяться.
func (s *SeedingService) AssignSeeds(ctx context.Context, actorID, tournamentID int, assignment map[int]int) error {
	t, participants, err := s.loadForSeeding(ctx, actorID, tournamentID)
	if err != nil {
		return err
	}

	byID := make(map[int]*models.TournamentParticipant, len(participants))
	for _, p := range participants {
		byID[p.ID] = p
	}
	seen := make(map[int]int, len(assignment))
	for participantID, seed := range assignment {
		if _, ok := byID[participantID]; !ok {
			return fmt.Errorf("%w: participant %d is not confirmed for this tournament", ErrParticipantNotFound, participantID)
		}
		if seed < 1 || seed > len(participants) {
			return fmt.Errorf("%w: seed %d is out of range 1..%d", ErrValidationFailed, seed, len(participants))
		}
		if other, dup := seen[seed]; dup {
			return fmt.Errorf("%w: seed %d assigned to participants %d and %d", ErrDuplicateSeed, seed, other, participantID)
		}
		seen[seed] = participantID
	}

	target := make([]*models.TournamentParticipant, 0, len(assignment))
	for participantID := range assignment {
		target = append(target, byID[participantID])
	}
	sort.Slice(target, func(i, j int) bool { return target[i].ID < target[j].ID })

	if err := s.applySeeds(ctx, target, assignment); err != nil {
		return err
	}

	s.dispatcher.Dispatch(ctx, []models.DomainEvent{{
		Type:         models.EventSeedsAssigned,
		TournamentID: t.ID,
		OccurredAt:   s.now(),
		Payload:      assignment,
	}})
	return nil
}

func (s *SeedingService) loadForSeeding(ctx context.Context, actorID, tournamentID int) (*models.Tournament, []*models.TournamentParticipant, error) {
	t, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, nil, ErrTournamentNotFound
		}
		return nil, nil, err
	}
	if t.OrganizerID != actorID {
		return nil, nil, ErrForbiddenOperation
	}
	if t.Status != models.StatusRegistrationClosed {
		return nil, nil, fmt.Errorf("%w: seeds are assigned after registration closes, status is %q", ErrTournamentInvalidStatusTransition, t.Status)
	}

	confirmed := models.RegistrationConfirmed
	participants, err := s.repo.ListByTournament(ctx, tournamentID, &confirmed, true)
	if err != nil {
		return nil, nil, err
	}
	return t, participants, nil
}

// applySeeds сбрасывает старые номера и пишет новые одной транзакцией, иначе
// перестановка двух участников упрётся в уникальный индекс.
func (s *SeedingService) applySeeds(ctx context.Context, participants []*models.TournamentParticipant, assignment map[int]int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	var txErr error
	defer func() {
		if txErr != nil {
			_ = tx.Rollback()
		}
	}()

	for _, p := range participants {
		if txErr = s.repo.UpdateSeed(ctx, tx, p.ID, nil); txErr != nil {
			return txErr
		}
	}
	for _, p := range participants {
		seed := assignment[p.ID]
		if txErr = s.repo.UpdateSeed(ctx, tx, p.ID, &seed); txErr != nil {
			if errors.Is(txErr, repositories.ErrSeedConflict) {
				return fmt.Errorf("%w: seed %d is already taken", ErrDuplicateSeed, seed)
			}
			return txErr
		}
		p.SeedNumber = &seed
	}
	if txErr = tx.Commit(); txErr != nil {
		return fmt.Errorf("failed to commit transaction: %w", txErr)
	}
	return nil
}
