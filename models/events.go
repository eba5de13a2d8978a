package models

import "time"

// DomainEventType идентифицирует переход состояния, о котором сообщает движок.
type DomainEventType string

const (
	EventParticipantRegistered DomainEventType = "PARTICIPANT_REGISTERED"
	EventParticipantConfirmed  DomainEventType = "PARTICIPANT_CONFIRMED"
	EventParticipantWithdrawn  DomainEventType = "PARTICIPANT_WITHDRAWN"
	EventSeedsAssigned         DomainEventType = "SEEDS_ASSIGNED"
	EventMatchStarted          DomainEventType = "MATCH_STARTED"
	EventMatchCompleted        DomainEventType = "MATCH_COMPLETED"
	EventBracketUpdated        DomainEventType = "BRACKET_UPDATED"
	EventTournamentStarted     DomainEventType = "TOURNAMENT_STARTED"
	EventTournamentCompleted   DomainEventType = "TOURNAMENT_COMPLETED"
	EventTournamentCancelled   DomainEventType = "TOURNAMENT_CANCELLED"
)

// DomainEvent возвращается переходами состояний и доставляется диспетчером
// только после фиксации транзакции. Сам переход побочных эффектов не делает.
type DomainEvent struct {
	Type         DomainEventType `json:"type"`
	TournamentID int             `json:"tournament_id"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Payload      any             `json:"payload,omitempty"`
}
