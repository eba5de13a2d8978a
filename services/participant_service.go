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

// ParticipantService ведёт заявки: регистрация с проверкой допуска,
// подтверждение с атомарным захватом слота, отзыв и дисквалификация.
type ParticipantService struct {
	db             *sql.DB
	repo           repositories.ParticipantRepository
	tournamentRepo repositories.TournamentRepository
	playerRepo     repositories.PlayerRepository
	teamRepo       repositories.TeamRepository
	dispatcher     *events.Dispatcher
	logger         *slog.Logger
	locks          *tournamentLocks
	now            Clock
}

func NewParticipantService(
	db *sql.DB,
	repo repositories.ParticipantRepository,
	tournamentRepo repositories.TournamentRepository,
	playerRepo repositories.PlayerRepository,
	teamRepo repositories.TeamRepository,
	dispatcher *events.Dispatcher,
	logger *slog.Logger,
) *ParticipantService {
	return &ParticipantService{
		db:             db,
		repo:           repo,
		tournamentRepo: tournamentRepo,
		playerRepo:     playerRepo,
		teamRepo:       teamRepo,
		dispatcher:     dispatcher,
		logger:         logger,
		locks:          newTournamentLocks(),
		now:            time.Now,
	}
}

func (s *ParticipantService) WithClock(clock Clock) *ParticipantService {
	s.now = clock
	return s
}

// Register подаёт заявку на турнир. Для одиночных разрядов ожидается playerID,
// для парных -- teamID, ровно одно из двух. Если мест больше нет, заявка
// попадает в лист ожидания вместо отказа.
func (s *ParticipantService) Register(ctx context.Context, tournamentID int, playerID, teamID *int) (*models.TournamentParticipant, error) {
	if (playerID == nil) == (teamID == nil) {
		return nil, fmt.Errorf("%w: exactly one of player_id or team_id must be set", ErrValidationFailed)
	}

	unlock := s.locks.lock(tournamentID)
	defer unlock()

	t, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		return nil, s.mapTournamentError(err)
	}

	now := s.now()
	if t.Status != models.StatusRegistrationOpen {
		return nil, fmt.Errorf("%w: tournament status is %q", ErrRegistrationNotOpen, t.Status)
	}
	if t.RegistrationStartDate != nil && now.Before(*t.RegistrationStartDate) {
		return nil, fmt.Errorf("%w: registration window has not opened yet", ErrRegistrationNotOpen)
	}
	if t.RegistrationEndDate != nil && now.After(*t.RegistrationEndDate) {
		return nil, fmt.Errorf("%w: registration window has closed", ErrRegistrationNotOpen)
	}

	if t.IsDoubles() {
		if teamID == nil {
			return nil, ErrTeamRequiredForDoubles
		}
		if err := s.checkTeamEligibility(ctx, t, *teamID, now); err != nil {
			return nil, err
		}
	} else {
		if playerID == nil {
			return nil, ErrTeamNotAllowedForSingles
		}
		player, err := s.playerRepo.GetByID(ctx, *playerID)
		if err != nil {
			if errors.Is(err, repositories.ErrPlayerNotFound) {
				return nil, ErrPlayerNotFound
			}
			return nil, err
		}
		if err := checkPlayerEligibility(t, player, now); err != nil {
			return nil, err
		}
	}

	if existing, err := s.findExistingEntry(ctx, tournamentID, playerID, teamID); err != nil {
		return nil, err
	} else if existing != nil {
		switch existing.RegistrationStatus {
		case models.RegistrationWithdrawn, models.RegistrationRejected:
			// Повторная подача после отзыва: заявка возвращается в очередь.
			status := models.RegistrationPending
			if t.IsFull() {
				status = models.RegistrationWaitlisted
			}
			if err := s.repo.UpdateRegistrationStatus(ctx, nil, existing.ID, status, ptrParticipantStatus(models.ParticipantActive), false); err != nil {
				return nil, err
			}
			existing.RegistrationStatus = status
			existing.TournamentStatus = models.ParticipantActive
			return existing, nil
		default:
			return nil, ErrRegistrationConflict
		}
	}

	p := &models.TournamentParticipant{
		TournamentID:       tournamentID,
		PlayerID:           playerID,
		TeamID:             teamID,
		RegistrationStatus: models.RegistrationPending,
		TournamentStatus:   models.ParticipantActive,
		RegisteredAt:       now,
	}
	if t.IsFull() {
		p.RegistrationStatus = models.RegistrationWaitlisted
	}

	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, repositories.ErrParticipantConflict) {
			return nil, ErrRegistrationConflict
		}
		return nil, err
	}

	s.dispatcher.Dispatch(ctx, []models.DomainEvent{{
		Type:         models.EventParticipantRegistered,
		TournamentID: tournamentID,
		OccurredAt:   now,
		Payload:      map[string]any{"participant_id": p.ID, "status": p.RegistrationStatus},
	}})
	return p, nil
}

// ConfirmRegistration захватывает слот через условный UPDATE счётчика: при
// одновременных подтверждениях последнего места база пропустит ровно одно.
func (s *ParticipantService) ConfirmRegistration(ctx context.Context, actorID, participantID int) error {
	p, err := s.repo.FindByID(ctx, nil, participantID)
	if err != nil {
		return s.mapParticipantError(err)
	}

	unlock := s.locks.lock(p.TournamentID)
	defer unlock()

	t, err := s.tournamentRepo.GetByID(ctx, nil, p.TournamentID)
	if err != nil {
		return s.mapTournamentError(err)
	}
	if t.OrganizerID != actorID {
		return ErrForbiddenOperation
	}
	if t.Status != models.StatusRegistrationOpen && t.Status != models.StatusRegistrationClosed {
		return fmt.Errorf("%w: tournament status is %q", ErrTournamentInvalidStatusTransition, t.Status)
	}
	switch p.RegistrationStatus {
	case models.RegistrationConfirmed:
		return nil // уже подтверждена
	case models.RegistrationPending, models.RegistrationWaitlisted:
	default:
		return fmt.Errorf("%w: cannot confirm registration from status %q", ErrParticipantInvalidStatusTransition, p.RegistrationStatus)
	}
	if t.EntryFee > 0 && !p.EntryFeePaid {
		return ErrEntryFeeNotPaid
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

	if txErr = s.tournamentRepo.IncrementParticipantCount(ctx, tx, p.TournamentID); txErr != nil {
		if errors.Is(txErr, repositories.ErrTournamentFull) {
			return ErrTournamentFull
		}
		return s.mapTournamentError(txErr)
	}
	if txErr = s.repo.UpdateRegistrationStatus(ctx, tx, participantID, models.RegistrationConfirmed, ptrParticipantStatus(models.ParticipantActive), true); txErr != nil {
		return s.mapParticipantError(txErr)
	}
	if txErr = tx.Commit(); txErr != nil {
		return fmt.Errorf("failed to commit transaction: %w", txErr)
	}

	s.dispatcher.Dispatch(ctx, []models.DomainEvent{{
		Type:         models.EventParticipantConfirmed,
		TournamentID: p.TournamentID,
		OccurredAt:   s.now(),
		Payload:      map[string]any{"participant_id": participantID},
	}})
	return nil
}

func (s *ParticipantService) RejectRegistration(ctx context.Context, actorID, participantID int) error {
	p, err := s.repo.FindByID(ctx, nil, participantID)
	if err != nil {
		return s.mapParticipantError(err)
	}
	t, err := s.tournamentRepo.GetByID(ctx, nil, p.TournamentID)
	if err != nil {
		return s.mapTournamentError(err)
	}
	if t.OrganizerID != actorID {
		return ErrForbiddenOperation
	}
	switch p.RegistrationStatus {
	case models.RegistrationPending, models.RegistrationWaitlisted:
	default:
		return fmt.Errorf("%w: cannot reject registration from status %q", ErrParticipantInvalidStatusTransition, p.RegistrationStatus)
	}
	return s.repo.UpdateRegistrationStatus(ctx, nil, participantID, models.RegistrationRejected, nil, false)
}

// Withdraw отзывает заявку. Слот освобождается только если заявка была
// подтверждена; снятие и декремент счётчика идут одной транзакцией.
func (s *ParticipantService) Withdraw(ctx context.Context, participantID int) error {
	p, err := s.repo.FindByID(ctx, nil, participantID)
	if err != nil {
		return s.mapParticipantError(err)
	}

	unlock := s.locks.lock(p.TournamentID)
	defer unlock()

	t, err := s.tournamentRepo.GetByID(ctx, nil, p.TournamentID)
	if err != nil {
		return s.mapTournamentError(err)
	}
	if t.Status.IsTerminal() {
		return fmt.Errorf("%w: tournament status is %q", ErrTournamentInvalidStatusTransition, t.Status)
	}

	wasConfirmed := p.RegistrationStatus == models.RegistrationConfirmed
	switch p.RegistrationStatus {
	case models.RegistrationPending, models.RegistrationWaitlisted, models.RegistrationConfirmed:
	default:
		return fmt.Errorf("%w: cannot withdraw registration from status %q", ErrParticipantInvalidStatusTransition, p.RegistrationStatus)
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

	if txErr = s.repo.UpdateRegistrationStatus(ctx, tx, participantID, models.RegistrationWithdrawn, ptrParticipantStatus(models.ParticipantWithdrawn), false); txErr != nil {
		return s.mapParticipantError(txErr)
	}
	if wasConfirmed && t.Status != models.StatusInProgress {
		if txErr = s.tournamentRepo.DecrementParticipantCount(ctx, tx, p.TournamentID); txErr != nil {
			return s.mapTournamentError(txErr)
		}
	}
	if txErr = tx.Commit(); txErr != nil {
		return fmt.Errorf("failed to commit transaction: %w", txErr)
	}

	s.dispatcher.Dispatch(ctx, []models.DomainEvent{{
		Type:         models.EventParticipantWithdrawn,
		TournamentID: p.TournamentID,
		OccurredAt:   s.now(),
		Payload:      map[string]any{"participant_id": participantID},
	}})
	return nil
}

// Disqualify выбивает участника из турнира. Слот при этом не освобождается:
// дисквалификация после старта не меняет вместимость сетки.
func (s *ParticipantService) Disqualify(ctx context.Context, actorID, participantID int) error {
	p, err := s.repo.FindByID(ctx, nil, participantID)
	if err != nil {
		return s.mapParticipantError(err)
	}
	t, err := s.tournamentRepo.GetByID(ctx, nil, p.TournamentID)
	if err != nil {
		return s.mapTournamentError(err)
	}
	if t.OrganizerID != actorID {
		return ErrForbiddenOperation
	}
	switch p.RegistrationStatus {
	case models.RegistrationPending, models.RegistrationConfirmed, models.RegistrationWaitlisted:
	default:
		return fmt.Errorf("%w: cannot disqualify registration from status %q", ErrParticipantInvalidStatusTransition, p.RegistrationStatus)
	}
	return s.repo.UpdateRegistrationStatus(ctx, nil, participantID, models.RegistrationDisqualified, ptrParticipantStatus(models.ParticipantEliminated), false)
}

// RecordMatchResult обновляет накопительную статистику участника одним
// UPDATE. Вызывается из транзакции завершения матча.
func (s *ParticipantService) RecordMatchResult(ctx context.Context, exec repositories.SQLExecutor, participantID int, won bool, setsWon, setsLost, gamesWon, gamesLost int) error {
	return s.mapParticipantError(s.repo.IncrementStats(ctx, exec, participantID, won, setsWon, setsLost, gamesWon, gamesLost))
}

// SetFinalStanding фиксирует итоговое место. Повторная запись того же места --
// no-op, другого места -- ошибка.
func (s *ParticipantService) SetFinalStanding(ctx context.Context, exec repositories.SQLExecutor, participantID, position int, prizeMoney float64) error {
	p, err := s.repo.FindByID(ctx, exec, participantID)
	if err != nil {
		return s.mapParticipantError(err)
	}
	if p.FinalPosition != nil {
		if *p.FinalPosition == position {
			return nil
		}
		return fmt.Errorf("%w: recorded position %d, requested %d", ErrStandingAlreadyFinalized, *p.FinalPosition, position)
	}
	standing := models.FinalStandingFor(position)
	return s.mapParticipantError(s.repo.UpdateFinalStanding(ctx, exec, participantID, standing, position, prizeMoney))
}

func (s *ParticipantService) MarkEntryFeePaid(ctx context.Context, actorID, participantID int, reference *string) error {
	p, err := s.repo.FindByID(ctx, nil, participantID)
	if err != nil {
		return s.mapParticipantError(err)
	}
	t, err := s.tournamentRepo.GetByID(ctx, nil, p.TournamentID)
	if err != nil {
		return s.mapTournamentError(err)
	}
	if t.OrganizerID != actorID {
		return ErrForbiddenOperation
	}
	return s.repo.MarkEntryFeePaid(ctx, nil, participantID, reference)
}

func (s *ParticipantService) GetParticipant(ctx context.Context, id int) (*models.TournamentParticipant, error) {
	p, err := s.repo.FindByID(ctx, nil, id)
	if err != nil {
		return nil, s.mapParticipantError(err)
	}
	return p, nil
}

func (s *ParticipantService) ListParticipants(ctx context.Context, tournamentID int, statusFilter *models.RegistrationStatus) ([]*models.TournamentParticipant, error) {
	return s.repo.ListByTournament(ctx, tournamentID, statusFilter, true)
}

func (s *ParticipantService) findExistingEntry(ctx context.Context, tournamentID int, playerID, teamID *int) (*models.TournamentParticipant, error) {
	var (
		existing *models.TournamentParticipant
		err      error
	)
	if playerID != nil {
		existing, err = s.repo.FindByPlayerAndTournament(ctx, *playerID, tournamentID)
	} else {
		existing, err = s.repo.FindByTeamAndTournament(ctx, *teamID, tournamentID)
	}
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return existing, nil
}

func (s *ParticipantService) checkTeamEligibility(ctx context.Context, t *models.Tournament, teamID int, now time.Time) error {
	team, err := s.teamRepo.GetWithPlayers(ctx, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return ErrTeamNotFound
		}
		return err
	}
	players := []*models.Player{team.Player1, team.Player2}
	for _, player := range players {
		if player == nil {
			return fmt.Errorf("%w: team %d is missing a player profile", ErrEligibilityViolation, teamID)
		}
		if err := checkSkillAndAge(t, player, now); err != nil {
			return err
		}
	}
	switch t.Type {
	case models.TypeMenDoubles:
		if players[0].Gender != models.GenderMale || players[1].Gender != models.GenderMale {
			return fmt.Errorf("%w: men's doubles requires two male players", ErrEligibilityViolation)
		}
	case models.TypeWomenDoubles:
		if players[0].Gender != models.GenderFemale || players[1].Gender != models.GenderFemale {
			return fmt.Errorf("%w: women's doubles requires two female players", ErrEligibilityViolation)
		}
	case models.TypeMixedDoubles:
		if players[0].Gender == players[1].Gender {
			return fmt.Errorf("%w: mixed doubles requires one male and one female player", ErrEligibilityViolation)
		}
	}
	return nil
}

func checkPlayerEligibility(t *models.Tournament, player *models.Player, now time.Time) error {
	switch t.Type {
	case models.TypeMenSingles:
		if player.Gender != models.GenderMale {
			return fmt.Errorf("%w: men's singles is restricted to male players", ErrEligibilityViolation)
		}
	case models.TypeWomenSingles:
		if player.Gender != models.GenderFemale {
			return fmt.Errorf("%w: women's singles is restricted to female players", ErrEligibilityViolation)
		}
	}
	return checkSkillAndAge(t, player, now)
}

func checkSkillAndAge(t *models.Tournament, player *models.Player, now time.Time) error {
	if t.Settings == nil {
		return nil
	}
	if t.Settings.MinSkillLevel != nil && player.SkillRating < *t.Settings.MinSkillLevel {
		return fmt.Errorf("%w: skill rating %.1f is below the minimum %.1f", ErrEligibilityViolation, player.SkillRating, *t.Settings.MinSkillLevel)
	}
	if t.Settings.MaxSkillLevel != nil && player.SkillRating > *t.Settings.MaxSkillLevel {
		return fmt.Errorf("%w: skill rating %.1f is above the maximum %.1f", ErrEligibilityViolation, player.SkillRating, *t.Settings.MaxSkillLevel)
	}
	age := player.AgeAt(now)
	if age == nil {
		return nil
	}
	if t.Settings.MinAge != nil && *age < *t.Settings.MinAge {
		return fmt.Errorf("%w: player is younger than the minimum age %d", ErrEligibilityViolation, *t.Settings.MinAge)
	}
	if t.Settings.MaxAge != nil && *age > *t.Settings.MaxAge {
		return fmt.Errorf("%w: player is older than the maximum age %d", ErrEligibilityViolation, *t.Settings.MaxAge)
	}
	return nil
}

func ptrParticipantStatus(status models.ParticipantTournamentStatus) *models.ParticipantTournamentStatus {
	return &status
}

func (s *ParticipantService) mapParticipantError(err error) error {
	if errors.Is(err, repositories.ErrParticipantNotFound) {
		return ErrParticipantNotFound
	}
	return err
}

func (s *ParticipantService) mapTournamentError(err error) error {
	if errors.Is(err, repositories.ErrTournamentNotFound) {
		return ErrTournamentNotFound
	}
	return err
}
