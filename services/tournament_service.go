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
	"github.com/2hm1901/tournament-management/storage"
)

// TournamentService управляет жизненным циклом турнира: draft →
// registration_open → registration_closed → in_progress → completed, с
// отменой из любого нетерминального статуса.
type TournamentService struct {
	db         *sql.DB
	repo       repositories.TournamentRepository
	userRepo   repositories.UserRepository
	uploader   storage.FileUploader
	dispatcher *events.Dispatcher
	logger     *slog.Logger
	locks      *tournamentLocks
	now        Clock
}

func NewTournamentService(
	db *sql.DB,
	repo repositories.TournamentRepository,
	userRepo repositories.UserRepository,
	uploader storage.FileUploader,
	dispatcher *events.Dispatcher,
	logger *slog.Logger,
) *TournamentService {
	return &TournamentService{
		db:         db,
		repo:       repo,
		userRepo:   userRepo,
		uploader:   uploader,
		dispatcher: dispatcher,
		logger:     logger,
		locks:      newTournamentLocks(),
		now:        time.Now,
	}
}

// WithClock replaces the time source. Tests use a fixed clock.
func (s *TournamentService) WithClock(clock Clock) *TournamentService {
	s.now = clock
	return s
}

func isValidTournamentTransition(current, next models.TournamentStatus) bool {
	if current == next {
		return true
	}
	allowed := map[models.TournamentStatus][]models.TournamentStatus{
		models.StatusDraft:              {models.StatusRegistrationOpen, models.StatusCancelled},
		models.StatusRegistrationOpen:   {models.StatusRegistrationClosed, models.StatusCancelled},
		models.StatusRegistrationClosed: {models.StatusInProgress, models.StatusCancelled},
		models.StatusInProgress:         {models.StatusCompleted, models.StatusCancelled},
		models.StatusCompleted:          {},
		models.StatusCancelled:          {},
	}
	for _, status := range allowed[current] {
		if next == status {
			return true
		}
	}
	return false
}

func validateTournamentDates(t *models.Tournament) error {
	if t.RegistrationStartDate != nil && t.RegistrationEndDate != nil &&
		t.RegistrationStartDate.After(*t.RegistrationEndDate) {
		return fmt.Errorf("%w: registration start is after registration end", ErrTournamentDatesOrder)
	}
	if t.RegistrationEndDate != nil && t.TournamentStartDate != nil &&
		t.RegistrationEndDate.After(*t.TournamentStartDate) {
		return fmt.Errorf("%w: registration end is after tournament start", ErrTournamentDatesOrder)
	}
	if t.TournamentStartDate != nil && t.TournamentEndDate != nil &&
		!t.TournamentStartDate.Before(*t.TournamentEndDate) {
		return fmt.Errorf("%w: tournament start must be before tournament end", ErrTournamentDatesOrder)
	}
	return nil
}

func (s *TournamentService) CreateTournament(ctx context.Context, t *models.Tournament) error {
	if t.Name == "" {
		return fmt.Errorf("%w: tournament name is required", ErrValidationFailed)
	}
	if t.MaxParticipants <= 0 {
		return fmt.Errorf("%w: max participants must be positive", ErrValidationFailed)
	}
	if t.MinParticipants >= t.MaxParticipants {
		return fmt.Errorf("%w: min participants must be below max participants", ErrValidationFailed)
	}
	if err := validateTournamentDates(t); err != nil {
		return err
	}
	if _, err := s.userRepo.GetByID(ctx, t.OrganizerID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	t.Slug = models.Slugify(t.Name)
	t.Status = models.StatusDraft
	t.CurrentParticipants = 0
	return s.repo.Create(ctx, t)
}

func (s *TournamentService) GetTournamentByID(ctx context.Context, id int) (*models.Tournament, error) {
	t, err := s.repo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, s.mapRepoError(err)
	}
	s.populateLogoURL(t)
	return t, nil
}

func (s *TournamentService) GetTournamentBySlug(ctx context.Context, slug string) (*models.Tournament, error) {
	t, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, s.mapRepoError(err)
	}
	s.populateLogoURL(t)
	return t, nil
}

func (s *TournamentService) ListTournaments(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	tournaments, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range tournaments {
		s.populateLogoURL(&tournaments[i])
	}
	return tournaments, nil
}

func (s *TournamentService) UpdateTournament(ctx context.Context, actorID int, t *models.Tournament) error {
	current, err := s.repo.GetByID(ctx, nil, t.ID)
	if err != nil {
		return s.mapRepoError(err)
	}
	if current.OrganizerID != actorID {
		return ErrForbiddenOperation
	}
	if current.Status != models.StatusDraft && current.Status != models.StatusRegistrationOpen {
		return fmt.Errorf("%w: tournament can only be edited before it starts", ErrTournamentInvalidStatusTransition)
	}
	if t.MinParticipants >= t.MaxParticipants {
		return fmt.Errorf("%w: min participants must be below max participants", ErrValidationFailed)
	}
	if t.MaxParticipants < current.CurrentParticipants {
		return fmt.Errorf("%w: max participants cannot drop below the confirmed count", ErrValidationFailed)
	}
	if err := validateTournamentDates(t); err != nil {
		return err
	}
	t.Slug = models.Slugify(t.Name)
	t.OrganizerID = current.OrganizerID
	return s.repo.Update(ctx, t)
}

// DeleteTournament soft-deletes: matches and participants keep referencing the
// row, it just disappears from reads.
func (s *TournamentService) DeleteTournament(ctx context.Context, actorID, id int) error {
	current, err := s.repo.GetByID(ctx, nil, id)
	if err != nil {
		return s.mapRepoError(err)
	}
	if current.OrganizerID != actorID {
		return ErrForbiddenOperation
	}
	return s.repo.SoftDelete(ctx, id)
}

// OpenRegistration переводит draft → registration_open и проставляет начало
// окна регистрации, если оно не задано.
func (s *TournamentService) OpenRegistration(ctx context.Context, actorID, id int) error {
	unlock := s.locks.lock(id)
	defer unlock()

	t, err := s.repo.GetByID(ctx, nil, id)
	if err != nil {
		return s.mapRepoError(err)
	}
	if t.OrganizerID != actorID {
		return ErrForbiddenOperation
	}
	if t.Status != models.StatusDraft {
		return fmt.Errorf("%w: cannot open registration from status %q", ErrTournamentInvalidStatusTransition, t.Status)
	}

	now := s.now()
	if err := s.repo.UpdateStatus(ctx, nil, id, models.StatusRegistrationOpen); err != nil {
		return s.mapRepoError(err)
	}
	if t.RegistrationStartDate == nil {
		if err := s.repo.UpdateRegistrationWindow(ctx, nil, id, &now, nil); err != nil {
			return s.mapRepoError(err)
		}
	}
	return nil
}

func (s *TournamentService) CloseRegistration(ctx context.Context, actorID, id int) error {
	unlock := s.locks.lock(id)
	defer unlock()

	t, err := s.repo.GetByID(ctx, nil, id)
	if err != nil {
		return s.mapRepoError(err)
	}
	if t.OrganizerID != actorID {
		return ErrForbiddenOperation
	}
	if t.Status != models.StatusRegistrationOpen {
		return fmt.Errorf("%w: cannot close registration from status %q", ErrTournamentInvalidStatusTransition, t.Status)
	}

	now := s.now()
	if err := s.repo.UpdateStatus(ctx, nil, id, models.StatusRegistrationClosed); err != nil {
		return s.mapRepoError(err)
	}
	return s.repo.UpdateRegistrationWindow(ctx, nil, id, nil, &now)
}

// StartTournament requires registration_closed and at least min_participants
// confirmed entries.
func (s *TournamentService) StartTournament(ctx context.Context, actorID, id int) error {
	unlock := s.locks.lock(id)
	defer unlock()

	t, err := s.repo.GetByID(ctx, nil, id)
	if err != nil {
		return s.mapRepoError(err)
	}
	if t.OrganizerID != actorID {
		return ErrForbiddenOperation
	}
	if t.Status != models.StatusRegistrationClosed {
		return fmt.Errorf("%w: cannot start tournament from status %q", ErrTournamentInvalidStatusTransition, t.Status)
	}
	if t.CurrentParticipants < t.MinParticipants {
		return fmt.Errorf("%w: %d confirmed, %d required", ErrInsufficientParticipants, t.CurrentParticipants, t.MinParticipants)
	}

	now := s.now()
	if err := s.repo.UpdateStatus(ctx, nil, id, models.StatusInProgress); err != nil {
		return s.mapRepoError(err)
	}
	if t.TournamentStartDate == nil {
		if err := s.repo.UpdateDates(ctx, nil, id, &now, nil); err != nil {
			return s.mapRepoError(err)
		}
	}

	s.dispatcher.Dispatch(ctx, []models.DomainEvent{{
		Type:         models.EventTournamentStarted,
		TournamentID: id,
		OccurredAt:   now,
	}})
	return nil
}

// CompleteTournament records the final results and closes the lifecycle.
func (s *TournamentService) CompleteTournament(ctx context.Context, actorID, id int, results []models.FinalResult) error {
	unlock := s.locks.lock(id)
	defer unlock()

	t, err := s.repo.GetByID(ctx, nil, id)
	if err != nil {
		return s.mapRepoError(err)
	}
	if t.OrganizerID != actorID {
		return ErrForbiddenOperation
	}
	if t.Status != models.StatusInProgress {
		return fmt.Errorf("%w: cannot complete tournament from status %q", ErrTournamentInvalidStatusTransition, t.Status)
	}

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

	if txErr = s.repo.UpdateResults(ctx, tx, id, results); txErr != nil {
		return s.mapRepoError(txErr)
	}
	if txErr = s.repo.UpdateStatus(ctx, tx, id, models.StatusCompleted); txErr != nil {
		return s.mapRepoError(txErr)
	}
	if txErr = s.repo.UpdateDates(ctx, tx, id, nil, &now); txErr != nil {
		return s.mapRepoError(txErr)
	}
	if txErr = tx.Commit(); txErr != nil {
		return fmt.Errorf("failed to commit transaction: %w", txErr)
	}

	s.dispatcher.Dispatch(ctx, []models.DomainEvent{{
		Type:         models.EventTournamentCompleted,
		TournamentID: id,
		OccurredAt:   now,
		Payload:      results,
	}})
	return nil
}

// CancelTournament is reachable from any non-terminal status and irreversible.
func (s *TournamentService) CancelTournament(ctx context.Context, actorID, id int, reason string) error {
	unlock := s.locks.lock(id)
	defer unlock()

	t, err := s.repo.GetByID(ctx, nil, id)
	if err != nil {
		return s.mapRepoError(err)
	}
	if t.OrganizerID != actorID {
		return ErrForbiddenOperation
	}
	if t.Status.IsTerminal() {
		return fmt.Errorf("%w: cannot cancel tournament from status %q", ErrTournamentInvalidStatusTransition, t.Status)
	}

	if err := s.repo.UpdateStatus(ctx, nil, id, models.StatusCancelled); err != nil {
		return s.mapRepoError(err)
	}
	if reason != "" {
		if err := s.repo.UpdateCancelReason(ctx, nil, id, &reason); err != nil {
			return s.mapRepoError(err)
		}
	}

	s.dispatcher.Dispatch(ctx, []models.DomainEvent{{
		Type:         models.EventTournamentCancelled,
		TournamentID: id,
		OccurredAt:   s.now(),
		Payload:      map[string]any{"reason": reason},
	}})
	return nil
}

// CanRegister re-reads the tournament and evaluates the registration predicate
// at this moment; nothing is cached between attempts.
func (s *TournamentService) CanRegister(ctx context.Context, id int) (bool, error) {
	t, err := s.repo.GetByID(ctx, nil, id)
	if err != nil {
		return false, s.mapRepoError(err)
	}
	return t.CanRegister(s.now()), nil
}

// AdjustParticipantCount moves the confirmed counter by ±1 through the
// conditional update; the ceiling is enforced by the database, not here.
func (s *TournamentService) AdjustParticipantCount(ctx context.Context, exec repositories.SQLExecutor, id, delta int) error {
	switch delta {
	case 1:
		if err := s.repo.IncrementParticipantCount(ctx, exec, id); err != nil {
			if errors.Is(err, repositories.ErrTournamentFull) {
				return ErrTournamentFull
			}
			return s.mapRepoError(err)
		}
		return nil
	case -1:
		return s.mapRepoError(s.repo.DecrementParticipantCount(ctx, exec, id))
	default:
		return fmt.Errorf("%w: participant count delta must be +1 or -1, got %d", ErrValidationFailed, delta)
	}
}

// AutoUpdateTournamentStatusesByDates advances tournaments whose registration
// window boundaries have passed. Called by the scheduler goroutine.
func (s *TournamentService) AutoUpdateTournamentStatusesByDates(ctx context.Context) error {
	now := s.now()
	tournaments, err := s.repo.GetTournamentsForAutoStatusUpdate(ctx, nil, now)
	if err != nil {
		return err
	}
	for _, t := range tournaments {
		var next models.TournamentStatus
		switch t.Status {
		case models.StatusDraft:
			next = models.StatusRegistrationOpen
		case models.StatusRegistrationOpen:
			next = models.StatusRegistrationClosed
		default:
			continue
		}
		if err := s.repo.UpdateStatus(ctx, nil, t.ID, next); err != nil {
			s.logger.ErrorContext(ctx, "scheduler: failed to advance tournament status",
				slog.Int("tournament_id", t.ID),
				slog.String("from", string(t.Status)),
				slog.String("to", string(next)),
				slog.Any("error", err),
			)
			continue
		}
		s.logger.InfoContext(ctx, "scheduler: tournament status advanced",
			slog.Int("tournament_id", t.ID),
			slog.String("from", string(t.Status)),
			slog.String("to", string(next)),
		)
	}
	return nil
}

func (s *TournamentService) UploadLogo(ctx context.Context, actorID, id int, key string) error {
	t, err := s.repo.GetByID(ctx, nil, id)
	if err != nil {
		return s.mapRepoError(err)
	}
	if t.OrganizerID != actorID {
		return ErrForbiddenOperation
	}
	return s.repo.UpdateLogoKey(ctx, id, &key)
}

func (s *TournamentService) populateLogoURL(t *models.Tournament) {
	if t == nil || t.LogoKey == nil || *t.LogoKey == "" || s.uploader == nil {
		return
	}
	if url := s.uploader.GetPublicURL(*t.LogoKey); url != "" {
		t.LogoURL = &url
	}
}

func (s *TournamentService) mapRepoError(err error) error {
	if errors.Is(err, repositories.ErrTournamentNotFound) {
		return ErrTournamentNotFound
	}
	return err
}
