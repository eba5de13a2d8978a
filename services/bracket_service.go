package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/2hm1901/tournament-management/brackets"
	"github.com/2hm1901/tournament-management/events"
	"github.com/2hm1901/tournament-management/models"
	"github.com/2hm1901/tournament-management/repositories"
)

// BracketService генерирует сетку и отвечает за её целостность: создание
// матчей, связывание next_match_id и ручное восстановление продвижения.
type BracketService struct {
	db              *sql.DB
	matchRepo       repositories.MatchRepository
	participantRepo repositories.ParticipantRepository
	tournamentRepo  repositories.TournamentRepository
	generators      map[models.TournamentFormat]brackets.BracketGenerator
	dispatcher      *events.Dispatcher
	logger          *slog.Logger
	locks           *tournamentLocks
	now             Clock
}

func NewBracketService(
	db *sql.DB,
	matchRepo repositories.MatchRepository,
	participantRepo repositories.ParticipantRepository,
	tournamentRepo repositories.TournamentRepository,
	dispatcher *events.Dispatcher,
	logger *slog.Logger,
) *BracketService {
	return &BracketService{
		db:              db,
		matchRepo:       matchRepo,
		participantRepo: participantRepo,
		tournamentRepo:  tournamentRepo,
		generators: map[models.TournamentFormat]brackets.BracketGenerator{
			models.FormatSingleElimination: brackets.NewSingleEliminationGenerator(),
		},
		dispatcher: dispatcher,
		logger:     logger,
		locks:      newTournamentLocks(),
		now:        time.Now,
	}
}

func (s *BracketService) WithClock(clock Clock) *BracketService {
	s.now = clock
	return s
}

// GenerateBracket строит и сохраняет сетку по подтверждённым участникам.
// Матчи, связи next_match и байи пишутся одной транзакцией: наполовину
// созданной сетки не бывает.
func (s *BracketService) GenerateBracket(ctx context.Context, actorID, tournamentID int) ([]*models.TournamentMatch, error) {
	unlock := s.locks.lock(tournamentID)
	defer unlock()

	t, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	if t.OrganizerID != actorID {
		return nil, ErrForbiddenOperation
	}
	if t.Status != models.StatusRegistrationClosed && t.Status != models.StatusInProgress {
		return nil, fmt.Errorf("%w: bracket is generated after registration closes, status is %q", ErrTournamentInvalidStatusTransition, t.Status)
	}

	generator, ok := s.generators[t.Format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, t.Format)
	}

	existing, err := s.matchRepo.ListByTournament(ctx, tournamentID, nil, nil)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, ErrBracketExists
	}

	confirmed := models.RegistrationConfirmed
	participants, err := s.participantRepo.ListByTournament(ctx, tournamentID, &confirmed, true)
	if err != nil {
		return nil, err
	}
	if len(participants) < 2 {
		return nil, fmt.Errorf("%w: %d confirmed", ErrInsufficientParticipants, len(participants))
	}

	generated, err := generator.GenerateBracket(ctx, brackets.GenerateBracketParams{
		Tournament:   t,
		Participants: participants,
	})
	if err != nil {
		return nil, err
	}

	totalRounds := 0
	for _, bm := range generated {
		if bm.Round > totalRounds {
			totalRounds = bm.Round
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	var txErr error
	defer func() {
		if txErr != nil {
			_ = tx.Rollback()
		}
	}()

	created := make([]*models.TournamentMatch, 0, len(generated))
	idByUID := make(map[string]int, len(generated))
	// Каким матчам какой слот достаётся от какого источника.
	type link struct {
		sourceUID string
		position  string
	}
	links := make(map[int][]link)

	for _, bm := range generated {
		if bm.IsBye {
			// Бай не играется и в БД не попадает; участник помечается и уже
			// стоит в слоте следующего круга.
			if txErr = s.participantRepo.UpdateTournamentStatus(ctx, tx, *bm.ByeParticipantID, models.ParticipantBye); txErr != nil {
				return nil, txErr
			}
			continue
		}

		roundName := models.RoundNameFor(bm.Round, totalRounds)
		m := &models.TournamentMatch{
			TournamentID:   tournamentID,
			Participant1ID: bm.Participant1ID,
			Participant2ID: bm.Participant2ID,
			RoundNumber:    bm.Round,
			RoundName:      &roundName,
			MatchNumber:    bm.OrderInRound,
			Status:         models.MatchScheduled,
		}
		if m.BothSlotsFilled() {
			m.Status = models.MatchReadyToStart
		}
		if txErr = s.matchRepo.Create(ctx, tx, m); txErr != nil {
			return nil, txErr
		}
		idByUID[bm.UID] = m.ID
		created = append(created, m)

		if bm.SourceMatch1UID != nil {
			links[m.ID] = append(links[m.ID], link{sourceUID: *bm.SourceMatch1UID, position: models.NextMatchParticipant1})
		}
		if bm.SourceMatch2UID != nil {
			links[m.ID] = append(links[m.ID], link{sourceUID: *bm.SourceMatch2UID, position: models.NextMatchParticipant2})
		}
	}

	for targetID, targetLinks := range links {
		for _, l := range targetLinks {
			sourceID, ok := idByUID[l.sourceUID]
			if !ok {
				txErr = fmt.Errorf("%w: source match %s was not created", ErrBracketInconsistency, l.sourceUID)
				return nil, txErr
			}
			position := l.position
			id := targetID
			if txErr = s.matchRepo.UpdateNextMatchInfo(ctx, tx, sourceID, &id, &position); txErr != nil {
				return nil, txErr
			}
		}
	}

	if txErr = tx.Commit(); txErr != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", txErr)
	}

	s.logger.InfoContext(ctx, "bracket generated",
		slog.Int("tournament_id", tournamentID),
		slog.Int("matches", len(created)),
		slog.Int("rounds", totalRounds),
	)
	s.dispatcher.Dispatch(ctx, []models.DomainEvent{{
		Type:         models.EventBracketUpdated,
		TournamentID: tournamentID,
		OccurredAt:   s.now(),
	}})
	return created, nil
}

// GetBracket собирает полную картину турнира: сам турнир, участники и матчи
// грузятся параллельно.
func (s *BracketService) GetBracket(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	var (
		t            *models.Tournament
		participants []*models.TournamentParticipant
		matches      []*models.TournamentMatch
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		t, err = s.tournamentRepo.GetByID(gctx, nil, tournamentID)
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return ErrTournamentNotFound
		}
		return err
	})
	g.Go(func() error {
		var err error
		participants, err = s.participantRepo.ListByTournament(gctx, tournamentID, nil, true)
		return err
	})
	g.Go(func() error {
		var err error
		matches, err = s.matchRepo.ListByTournament(gctx, tournamentID, nil, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrBracketNotGenerated
	}

	t.Participants = make([]models.TournamentParticipant, 0, len(participants))
	for _, p := range participants {
		t.Participants = append(t.Participants, *p)
	}
	t.Matches = make([]models.TournamentMatch, 0, len(matches))
	for _, m := range matches {
		t.Matches = append(t.Matches, *m)
	}
	return t, nil
}

// RepairPropagation повторно продвигает победителя завершённого матча. Нужен,
// когда сетку правили руками и слот следующего матча остался пустым.
func (s *BracketService) RepairPropagation(ctx context.Context, actorID, matchID int) error {
	m, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return ErrMatchNotFound
		}
		return err
	}

	t, err := s.tournamentRepo.GetByID(ctx, nil, m.TournamentID)
	if err != nil {
		return err
	}
	if t.OrganizerID != actorID {
		return ErrForbiddenOperation
	}
	if !m.Status.HasResult() || m.WinnerID == nil {
		return fmt.Errorf("%w: match %d has no recorded result to propagate", ErrMatchInvalidStatusTransition, matchID)
	}

	unlock := s.locks.lock(m.TournamentID)
	defer unlock()

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

	if txErr = propagateWinner(ctx, tx, s.matchRepo, m, *m.WinnerID); txErr != nil {
		return txErr
	}
	if txErr = tx.Commit(); txErr != nil {
		return fmt.Errorf("failed to commit transaction: %w", txErr)
	}

	s.dispatcher.Dispatch(ctx, []models.DomainEvent{{
		Type:         models.EventBracketUpdated,
		TournamentID: m.TournamentID,
		OccurredAt:   s.now(),
	}})
	return nil
}
