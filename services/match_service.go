package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2hm1901/tournament-management/events"
	"github.com/2hm1901/tournament-management/models"
	"github.com/2hm1901/tournament-management/repositories"
)

// MatchService управляет состоянием матчей и продвижением победителей по
// сетке. Завершение матча -- одна транзакция: результат, статистика обоих
// участников, слот следующего матча и итоговые места для финала фиксируются
// или откатываются вместе.
type MatchService struct {
	db              *sql.DB
	repo            repositories.MatchRepository
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	dispatcher      *events.Dispatcher
	logger          *slog.Logger
	locks           *tournamentLocks
	now             Clock
}

func NewMatchService(
	db *sql.DB,
	repo repositories.MatchRepository,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	dispatcher *events.Dispatcher,
	logger *slog.Logger,
) *MatchService {
	return &MatchService{
		db:              db,
		repo:            repo,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		dispatcher:      dispatcher,
		logger:          logger,
		locks:           newTournamentLocks(),
		now:             time.Now,
	}
}

func (s *MatchService) WithClock(clock Clock) *MatchService {
	s.now = clock
	return s
}

func (s *MatchService) GetMatch(ctx context.Context, id int) (*models.TournamentMatch, error) {
	m, err := s.repo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, s.mapMatchError(err)
	}
	return m, nil
}

func (s *MatchService) ListMatches(ctx context.Context, tournamentID int, round *int, status *models.MatchStatus) ([]*models.TournamentMatch, error) {
	return s.repo.ListByTournament(ctx, tournamentID, round, status)
}

// StartMatch переводит матч в in_progress. Матч без обоих участников
// стартовать нельзя, сколько бы ни было желания у организатора.
func (s *MatchService) StartMatch(ctx context.Context, actorID, matchID int) error {
	m, err := s.repo.GetByID(ctx, nil, matchID)
	if err != nil {
		return s.mapMatchError(err)
	}
	if err := s.requireOrganizer(ctx, m.TournamentID, actorID); err != nil {
		return err
	}
	if !m.BothSlotsFilled() {
		return ErrMatchNotReady
	}
	switch m.Status {
	case models.MatchReadyToStart, models.MatchScheduled, models.MatchPostponed:
	default:
		return fmt.Errorf("%w: cannot start match from status %q", ErrMatchInvalidStatusTransition, m.Status)
	}

	now := s.now()
	if err := s.repo.UpdateStatus(ctx, nil, matchID, models.MatchInProgress, &now); err != nil {
		return s.mapMatchError(err)
	}
	_ = s.repo.AppendEvent(ctx, nil, matchID, models.MatchEvent{
		Type:        "match_started",
		Description: "Match started",
		Timestamp:   now,
	})

	s.dispatcher.Dispatch(ctx, []models.DomainEvent{{
		Type:         models.EventMatchStarted,
		TournamentID: m.TournamentID,
		OccurredAt:   now,
		Payload:      map[string]any{"match_id": matchID},
	}})
	return nil
}

// CompleteMatch фиксирует результат. Победитель берётся из счёта по выигранным
// сетам; при ничейном счёте обязателен явный winnerID. Повторное завершение с
// тем же победителем -- no-op, с другим -- отказ: результат неизменяем.
func (s *MatchService) CompleteMatch(ctx context.Context, actorID, matchID int, score *models.ScoreData, explicitWinnerID *int, notes *string) error {
	m, err := s.repo.GetByID(ctx, nil, matchID)
	if err != nil {
		return s.mapMatchError(err)
	}
	if err := s.requireOrganizer(ctx, m.TournamentID, actorID); err != nil {
		return err
	}

	unlock := s.locks.lock(m.TournamentID)
	defer unlock()

	// Перечитываем под замком: другой запрос мог успеть раньше.
	m, err = s.repo.GetByID(ctx, nil, matchID)
	if err != nil {
		return s.mapMatchError(err)
	}

	winnerID, err := resolveWinner(m, score, explicitWinnerID)
	if err != nil {
		return err
	}

	if m.Status.HasResult() {
		if m.WinnerID != nil && *m.WinnerID == winnerID {
			return nil
		}
		return ErrResultAlreadyRecorded
	}
	if m.Status != models.MatchInProgress {
		return fmt.Errorf("%w: match status is %q", ErrMatchNotInProgress, m.Status)
	}

	loserID := m.OpponentOf(winnerID)
	if loserID == nil {
		return ErrMatchNotReady
	}

	now := s.now()
	var duration *int
	if m.StartedAt != nil {
		minutes := int(now.Sub(*m.StartedAt).Minutes())
		duration = &minutes
	}
	var finalScore *string
	if rendered := score.FinalScoreString(); rendered != "" {
		finalScore = &rendered
	}

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

	if txErr = s.repo.UpdateResult(ctx, tx, matchID, repositories.MatchResultUpdate{
		Status:          models.MatchCompleted,
		WinnerID:        &winnerID,
		LoserID:         loserID,
		ScoreData:       score,
		FinalScore:      finalScore,
		CompletedAt:     &now,
		DurationMinutes: duration,
		Notes:           notes,
	}); txErr != nil {
		return s.mapMatchError(txErr)
	}
	if txErr = s.recordStats(ctx, tx, m, winnerID, *loserID, score); txErr != nil {
		return txErr
	}
	if txErr = s.settleBracket(ctx, tx, m, winnerID, *loserID, now); txErr != nil {
		return txErr
	}
	if txErr = s.repo.AppendEvent(ctx, tx, matchID, models.MatchEvent{
		Type:        "match_completed",
		Description: score.FinalScoreString(),
		Timestamp:   now,
		Data:        map[string]any{"winner_id": winnerID},
	}); txErr != nil {
		return s.mapMatchError(txErr)
	}
	if txErr = tx.Commit(); txErr != nil {
		return fmt.Errorf("failed to commit transaction: %w", txErr)
	}

	s.dispatcher.Dispatch(ctx, []models.DomainEvent{
		{
			Type:         models.EventMatchCompleted,
			TournamentID: m.TournamentID,
			OccurredAt:   now,
			Payload:      map[string]any{"match_id": matchID, "winner_id": winnerID},
		},
		{
			Type:         models.EventBracketUpdated,
			TournamentID: m.TournamentID,
			OccurredAt:   now,
		},
	})
	return nil
}

// Walkover присуждает техническую победу без счёта: соперник не явился или
// снялся до начала игры. Причина попадает в notes и журнал матча; победитель
// продвигается по сетке как после обычной победы.
func (s *MatchService) Walkover(ctx context.Context, actorID, matchID, winnerID int, reason string) error {
	if reason == "" {
		reason = "Walkover"
	}
	m, err := s.repo.GetByID(ctx, nil, matchID)
	if err != nil {
		return s.mapMatchError(err)
	}
	if err := s.requireOrganizer(ctx, m.TournamentID, actorID); err != nil {
		return err
	}

	unlock := s.locks.lock(m.TournamentID)
	defer unlock()

	m, err = s.repo.GetByID(ctx, nil, matchID)
	if err != nil {
		return s.mapMatchError(err)
	}
	if !m.HasParticipant(winnerID) {
		return ErrWinnerNotInMatch
	}
	if m.Status.HasResult() {
		if m.WinnerID != nil && *m.WinnerID == winnerID {
			return nil
		}
		return ErrResultAlreadyRecorded
	}
	switch m.Status {
	case models.MatchScheduled, models.MatchReadyToStart:
	default:
		return fmt.Errorf("%w: cannot record walkover from status %q", ErrMatchInvalidStatusTransition, m.Status)
	}

	loserID := m.OpponentOf(winnerID)
	now := s.now()

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

	if txErr = s.repo.UpdateResult(ctx, tx, matchID, repositories.MatchResultUpdate{
		Status:      models.MatchWalkover,
		WinnerID:    &winnerID,
		LoserID:     loserID,
		FinalScore:  &reason,
		CompletedAt: &now,
		Notes:       &reason,
	}); txErr != nil {
		return s.mapMatchError(txErr)
	}
	// Техническая победа идёт в счёт матчей, но не сетов и геймов.
	if txErr = s.participantRepo.IncrementStats(ctx, tx, winnerID, true, 0, 0, 0, 0); txErr != nil {
		return txErr
	}
	if loserID != nil {
		if txErr = s.participantRepo.IncrementStats(ctx, tx, *loserID, false, 0, 0, 0, 0); txErr != nil {
			return txErr
		}
	}
	fallbackLoser := 0
	if loserID != nil {
		fallbackLoser = *loserID
	}
	if txErr = s.settleBracket(ctx, tx, m, winnerID, fallbackLoser, now); txErr != nil {
		return txErr
	}
	if txErr = s.repo.AppendEvent(ctx, tx, matchID, models.MatchEvent{
		Type:        "walkover",
		Description: reason,
		Timestamp:   now,
		Data:        map[string]any{"winner_id": winnerID},
	}); txErr != nil {
		return s.mapMatchError(txErr)
	}
	if txErr = tx.Commit(); txErr != nil {
		return fmt.Errorf("failed to commit transaction: %w", txErr)
	}

	s.dispatcher.Dispatch(ctx, []models.DomainEvent{
		{
			Type:         models.EventMatchCompleted,
			TournamentID: m.TournamentID,
			OccurredAt:   now,
			Payload:      map[string]any{"match_id": matchID, "winner_id": winnerID, "walkover": true},
		},
		{
			Type:         models.EventBracketUpdated,
			TournamentID: m.TournamentID,
			OccurredAt:   now,
		},
	})
	return nil
}

// PostponeMatch откладывает матч. Причина сохраняется в notes и в журнале.
func (s *MatchService) PostponeMatch(ctx context.Context, actorID, matchID int, reason string) error {
	if reason == "" {
		reason = "Match postponed"
	}
	m, err := s.repo.GetByID(ctx, nil, matchID)
	if err != nil {
		return s.mapMatchError(err)
	}
	if err := s.requireOrganizer(ctx, m.TournamentID, actorID); err != nil {
		return err
	}
	switch m.Status {
	case models.MatchScheduled, models.MatchReadyToStart:
	default:
		return fmt.Errorf("%w: cannot postpone match from status %q", ErrMatchInvalidStatusTransition, m.Status)
	}
	if err := s.repo.UpdateStatus(ctx, nil, matchID, models.MatchPostponed, nil); err != nil {
		return s.mapMatchError(err)
	}
	if err := s.repo.UpdateNotes(ctx, nil, matchID, &reason); err != nil {
		return s.mapMatchError(err)
	}
	_ = s.repo.AppendEvent(ctx, nil, matchID, models.MatchEvent{
		Type:        "match_postponed",
		Description: reason,
		Timestamp:   s.now(),
	})
	return nil
}

// CancelMatch отменяет матч без результата. Причина сохраняется в notes и в
// журнале.
func (s *MatchService) CancelMatch(ctx context.Context, actorID, matchID int, reason string) error {
	if reason == "" {
		reason = "Match cancelled"
	}
	m, err := s.repo.GetByID(ctx, nil, matchID)
	if err != nil {
		return s.mapMatchError(err)
	}
	if err := s.requireOrganizer(ctx, m.TournamentID, actorID); err != nil {
		return err
	}
	if m.Status.HasResult() || m.Status == models.MatchCancelled {
		return fmt.Errorf("%w: cannot cancel match from status %q", ErrMatchInvalidStatusTransition, m.Status)
	}
	if err := s.repo.UpdateStatus(ctx, nil, matchID, models.MatchCancelled, nil); err != nil {
		return s.mapMatchError(err)
	}
	if err := s.repo.UpdateNotes(ctx, nil, matchID, &reason); err != nil {
		return s.mapMatchError(err)
	}
	_ = s.repo.AppendEvent(ctx, nil, matchID, models.MatchEvent{
		Type:        "match_cancelled",
		Description: reason,
		Timestamp:   s.now(),
	})
	return nil
}

// RescheduleMatch меняет время и корт у любого матча без результата. Статус
// не трогается: отложенный матч остаётся отложенным, пока его не стартуют.
func (s *MatchService) RescheduleMatch(ctx context.Context, actorID, matchID int, scheduledAt time.Time, court *string) error {
	m, err := s.repo.GetByID(ctx, nil, matchID)
	if err != nil {
		return s.mapMatchError(err)
	}
	if err := s.requireOrganizer(ctx, m.TournamentID, actorID); err != nil {
		return err
	}
	if m.Status.HasResult() || m.Status == models.MatchCancelled {
		return fmt.Errorf("%w: cannot reschedule match from status %q", ErrMatchInvalidStatusTransition, m.Status)
	}
	if err := s.repo.UpdateSchedule(ctx, nil, matchID, scheduledAt, court); err != nil {
		return s.mapMatchError(err)
	}
	_ = s.repo.AppendEvent(ctx, nil, matchID, models.MatchEvent{
		Type:        "match_rescheduled",
		Description: fmt.Sprintf("Match rescheduled to %s", scheduledAt.Format("2006-01-02 15:04")),
		Timestamp:   s.now(),
		Data:        map[string]any{"scheduled_at": scheduledAt},
	})
	return nil
}

// resolveWinner определяет победителя по счёту; ничья требует явного winnerID.
func resolveWinner(m *models.TournamentMatch, score *models.ScoreData, explicitWinnerID *int) (int, error) {
	if explicitWinnerID != nil {
		if !m.HasParticipant(*explicitWinnerID) {
			return 0, ErrWinnerNotInMatch
		}
		return *explicitWinnerID, nil
	}
	if winner := m.WinnerFromScore(score); winner != nil {
		return *winner, nil
	}
	return 0, ErrUndeterminedResult
}

func (s *MatchService) recordStats(ctx context.Context, exec repositories.SQLExecutor, m *models.TournamentMatch, winnerID, loserID int, score *models.ScoreData) error {
	winnerIsFirst := m.Participant1ID != nil && *m.Participant1ID == winnerID
	var sw, sl, gw, gl int
	if score != nil {
		if winnerIsFirst {
			sw, sl = score.SetsWonParticipant1, score.SetsWonParticipant2
			gw, gl = score.GamesWonParticipant1, score.GamesWonParticipant2
		} else {
			sw, sl = score.SetsWonParticipant2, score.SetsWonParticipant1
			gw, gl = score.GamesWonParticipant2, score.GamesWonParticipant1
		}
	}
	if err := s.participantRepo.IncrementStats(ctx, exec, winnerID, true, sw, sl, gw, gl); err != nil {
		return err
	}
	return s.participantRepo.IncrementStats(ctx, exec, loserID, false, sl, sw, gl, gw)
}

// settleBracket продвигает победителя в следующий матч либо, для финала,
// фиксирует чемпиона и финалиста. Проигравший не в финале выбывает.
func (s *MatchService) settleBracket(ctx context.Context, exec repositories.SQLExecutor, m *models.TournamentMatch, winnerID, loserID int, now time.Time) error {
	if m.IsFinal() {
		if err := s.setStanding(ctx, exec, winnerID, 1); err != nil {
			return err
		}
		if loserID != 0 {
			if err := s.setStanding(ctx, exec, loserID, 2); err != nil {
				return err
			}
		}
		return nil
	}
	if loserID != 0 {
		if err := s.participantRepo.UpdateTournamentStatus(ctx, exec, loserID, models.ParticipantEliminated); err != nil {
			return err
		}
	}
	return propagateWinner(ctx, exec, s.repo, m, winnerID)
}

func (s *MatchService) setStanding(ctx context.Context, exec repositories.SQLExecutor, participantID, position int) error {
	p, err := s.participantRepo.FindByID(ctx, exec, participantID)
	if err != nil {
		return err
	}
	if p.FinalPosition != nil {
		if *p.FinalPosition == position {
			return nil
		}
		return fmt.Errorf("%w: recorded position %d, requested %d", ErrStandingAlreadyFinalized, *p.FinalPosition, position)
	}
	return s.participantRepo.UpdateFinalStanding(ctx, exec, participantID, models.FinalStandingFor(position), position, 0)
}

// propagateWinner пишет победителя в заранее связанный слот следующего матча.
// Идемпотентно: слот с тем же победителем -- no-op; слот, занятый другим
// участником, означает повреждение сетки и останавливает транзакцию.
func propagateWinner(ctx context.Context, exec repositories.SQLExecutor, repo repositories.MatchRepository, m *models.TournamentMatch, winnerID int) error {
	if m.NextMatchID == nil {
		return nil
	}
	if m.NextMatchPosition == nil {
		return fmt.Errorf("%w: match %d has next_match_id but no next_match_position", ErrBracketInconsistency, m.ID)
	}

	next, err := repo.GetByID(ctx, exec, *m.NextMatchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return fmt.Errorf("%w: next match %d does not exist", ErrBracketInconsistency, *m.NextMatchID)
		}
		return err
	}

	var slot *int
	switch *m.NextMatchPosition {
	case models.NextMatchParticipant1:
		slot = next.Participant1ID
	case models.NextMatchParticipant2:
		slot = next.Participant2ID
	default:
		return fmt.Errorf("%w: unknown next_match_position %q", ErrBracketInconsistency, *m.NextMatchPosition)
	}

	if slot != nil {
		if *slot == winnerID {
			return nil
		}
		return fmt.Errorf("%w: slot %s of match %d already holds participant %d", ErrBracketInconsistency, *m.NextMatchPosition, next.ID, *slot)
	}

	if err := repo.SetParticipantSlot(ctx, exec, next.ID, *m.NextMatchPosition, winnerID); err != nil {
		return err
	}

	// Второй слот уже занят -- матч готов к старту.
	other := next.Participant2ID
	if *m.NextMatchPosition == models.NextMatchParticipant2 {
		other = next.Participant1ID
	}
	if other != nil && next.Status == models.MatchScheduled {
		return repo.UpdateStatus(ctx, exec, next.ID, models.MatchReadyToStart, nil)
	}
	return nil
}

func (s *MatchService) requireOrganizer(ctx context.Context, tournamentID, actorID int) error {
	t, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return ErrTournamentNotFound
		}
		return err
	}
	if t.OrganizerID != actorID {
		return ErrForbiddenOperation
	}
	return nil
}

func (s *MatchService) mapMatchError(err error) error {
	if errors.Is(err, repositories.ErrMatchNotFound) {
		return ErrMatchNotFound
	}
	return err
}
