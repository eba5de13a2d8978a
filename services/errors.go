package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("requested resource not found")

	// Нарушения машин состояний: операция недопустима из текущего статуса.
	ErrTournamentInvalidStatusTransition  = errors.New("invalid tournament status transition")
	ErrParticipantInvalidStatusTransition = errors.New("invalid participant status transition")
	ErrMatchInvalidStatusTransition       = errors.New("invalid match status transition")
	ErrMatchNotReady                      = errors.New("match is not ready to start: both participant slots must be filled")
	ErrMatchNotInProgress                 = errors.New("match is not in progress")

	// Вместимость и состав.
	ErrRegistrationNotOpen      = errors.New("tournament registration is not open")
	ErrTournamentFull           = errors.New("tournament registration is full")
	ErrInsufficientParticipants = errors.New("tournament does not have enough confirmed participants to start")
	ErrRegistrationConflict     = errors.New("player or team is already registered for this tournament")

	// Допуск участников: всегда оборачивается конкретным нарушенным правилом.
	ErrEligibilityViolation     = errors.New("entrant is not eligible for this tournament")
	ErrTeamRequiredForDoubles   = errors.New("a team is required for doubles tournaments")
	ErrTeamNotAllowedForSingles = errors.New("teams are not allowed for singles tournaments")

	// Результаты матчей.
	ErrUndeterminedResult    = errors.New("score is tied: an explicit winner id is required")
	ErrResultAlreadyRecorded = errors.New("match result is already recorded with a different winner")
	ErrWinnerNotInMatch      = errors.New("winner id is not one of the match participants")

	// Сетка.
	ErrBracketInconsistency = errors.New("bracket inconsistency: successor slot already holds a different participant")
	ErrDuplicateSeed        = errors.New("duplicate seed number in assignment")

	// Итоговое положение.
	ErrStandingAlreadyFinalized = errors.New("participant final standing is already recorded with a different position")

	// Ошибки валидации и бизнес-правил.
	ErrValidationFailed     = errors.New("validation failed")
	ErrPasswordTooShort     = errors.New("password is too short")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrForbiddenOperation   = errors.New("operation not allowed for the current user")
	ErrEntryFeeNotPaid      = errors.New("entry fee has not been paid")
	ErrBracketNotGenerated  = errors.New("bracket has not been generated for this tournament")
	ErrBracketExists        = errors.New("bracket has already been generated for this tournament")
	ErrUnsupportedFormat    = errors.New("unsupported tournament format")
	ErrTournamentDatesOrder = errors.New("tournament dates are out of order")

	// Ошибки, специфичные для сущностей (дублируют ErrNotFound, но дают контекст)
	ErrUserNotFound        = errors.New("user not found")
	ErrPlayerNotFound      = errors.New("player not found")
	ErrTeamNotFound        = errors.New("team not found")
	ErrTournamentNotFound  = errors.New("tournament not found")
	ErrParticipantNotFound = errors.New("participant registration not found")
	ErrMatchNotFound       = errors.New("match not found")
)
