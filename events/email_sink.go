package events

import (
	"context"
	"fmt"

	"github.com/2hm1901/tournament-management/models"
	"github.com/2hm1901/tournament-management/repositories"
)

// EmailSender отправляет готовое письмо. Реализуется services.EmailService.
type EmailSender interface {
	SendEmail(to []string, subject string, body string) error
}

// EmailSink уведомляет организатора по почте о ключевых переходах турнира.
// Остальные события игнорируются: организатору не нужен каждый сыгранный матч.
type EmailSink struct {
	sender         EmailSender
	tournamentRepo repositories.TournamentRepository
	userRepo       repositories.UserRepository
}

func NewEmailSink(sender EmailSender, tournamentRepo repositories.TournamentRepository, userRepo repositories.UserRepository) *EmailSink {
	return &EmailSink{
		sender:         sender,
		tournamentRepo: tournamentRepo,
		userRepo:       userRepo,
	}
}

func (s *EmailSink) Notify(ctx context.Context, event models.DomainEvent) error {
	var subject, body string
	switch event.Type {
	case models.EventTournamentStarted:
		subject = "Tournament started"
		body = "Your tournament is now in progress."
	case models.EventTournamentCompleted:
		subject = "Tournament completed"
		body = "Your tournament has finished. Final results are recorded."
	case models.EventTournamentCancelled:
		subject = "Tournament cancelled"
		body = "Your tournament has been cancelled."
	default:
		return nil
	}

	t, err := s.tournamentRepo.GetByID(ctx, nil, event.TournamentID)
	if err != nil {
		return fmt.Errorf("load tournament %d: %w", event.TournamentID, err)
	}
	organizer, err := s.userRepo.GetByID(ctx, t.OrganizerID)
	if err != nil {
		return fmt.Errorf("load organizer %d: %w", t.OrganizerID, err)
	}

	subject = fmt.Sprintf("%s: %s", subject, t.Name)
	body = fmt.Sprintf("<p>%s</p><p>Tournament: %s</p>", body, t.Name)
	return s.sender.SendEmail([]string{organizer.Email}, subject, body)
}
