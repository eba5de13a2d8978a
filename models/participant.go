package models

import "time"

// RegistrationStatus -- состояние заявки участника.
type RegistrationStatus string

const (
	RegistrationPending      RegistrationStatus = "pending"
	RegistrationConfirmed    RegistrationStatus = "confirmed"
	RegistrationWaitlisted   RegistrationStatus = "waitlisted"
	RegistrationRejected     RegistrationStatus = "rejected"
	RegistrationWithdrawn    RegistrationStatus = "withdrawn"
	RegistrationDisqualified RegistrationStatus = "disqualified"
)

// ParticipantTournamentStatus -- положение участника внутри сетки.
type ParticipantTournamentStatus string

const (
	ParticipantActive       ParticipantTournamentStatus = "active"
	ParticipantEliminated   ParticipantTournamentStatus = "eliminated"
	ParticipantWithdrawn    ParticipantTournamentStatus = "withdrawn"
	ParticipantBye          ParticipantTournamentStatus = "bye"
	ParticipantChampion     ParticipantTournamentStatus = "champion"
	ParticipantFinalist     ParticipantTournamentStatus = "finalist"
	ParticipantSemifinalist ParticipantTournamentStatus = "semifinalist"
)

// TournamentParticipant -- одна заявка на турнир: либо игрок, либо пара
// (команда), ровно одно из полей PlayerID/TeamID заполнено.
type TournamentParticipant struct {
	ID                 int                         `json:"id" db:"id"`
	TournamentID       int                         `json:"tournament_id" db:"tournament_id"`
	PlayerID           *int                        `json:"player_id,omitempty" db:"player_id"`
	TeamID             *int                        `json:"team_id,omitempty" db:"team_id"`
	RegistrationStatus RegistrationStatus          `json:"registration_status" db:"registration_status"`
	TournamentStatus   ParticipantTournamentStatus `json:"tournament_status" db:"tournament_status"`
	SeedNumber         *int                        `json:"seed_number,omitempty" db:"seed_number"`
	CurrentRound       int                         `json:"current_round" db:"current_round"`
	MatchesPlayed      int                         `json:"matches_played" db:"matches_played"`
	MatchesWon         int                         `json:"matches_won" db:"matches_won"`
	MatchesLost        int                         `json:"matches_lost" db:"matches_lost"`
	SetsWon            int                         `json:"sets_won" db:"sets_won"`
	SetsLost           int                         `json:"sets_lost" db:"sets_lost"`
	GamesWon           int                         `json:"games_won" db:"games_won"`
	GamesLost          int                         `json:"games_lost" db:"games_lost"`
	FinalPosition      *int                        `json:"final_position,omitempty" db:"final_position"`
	PrizeMoney         float64                     `json:"prize_money" db:"prize_money"`
	EntryFeePaid       bool                        `json:"entry_fee_paid" db:"entry_fee_paid"`
	PaymentDate        *time.Time                  `json:"payment_date,omitempty" db:"payment_date"`
	PaymentReference   *string                     `json:"payment_reference,omitempty" db:"payment_reference"`
	RegisteredAt       time.Time                   `json:"registered_at" db:"registered_at"`
	ConfirmedAt        *time.Time                  `json:"confirmed_at,omitempty" db:"confirmed_at"`
	CreatedAt          time.Time                   `json:"created_at" db:"created_at"`

	Player *Player `json:"player,omitempty" db:"-"`
	Team   *Team   `json:"team,omitempty" db:"-"`
}

func (p *TournamentParticipant) IsPlayerEntry() bool {
	return p.PlayerID != nil
}

func (p *TournamentParticipant) IsTeamEntry() bool {
	return p.TeamID != nil
}

func (p *TournamentParticipant) WinRate() float64 {
	if p.MatchesPlayed == 0 {
		return 0
	}
	return float64(p.MatchesWon) / float64(p.MatchesPlayed) * 100
}

// Rating возвращает рейтинг заявки: рейтинг игрока для одиночных разрядов,
// рейтинг команды для парных.
func (p *TournamentParticipant) Rating() float64 {
	if p.Player != nil {
		return p.Player.SkillRating
	}
	if p.Team != nil {
		return p.Team.TeamRating
	}
	return 0
}

// FinalStandingFor maps a final position to the participant's terminal
// tournament status: 1 champion, 2 finalist, 3-4 semifinalist, else eliminated.
func FinalStandingFor(position int) ParticipantTournamentStatus {
	switch position {
	case 1:
		return ParticipantChampion
	case 2:
		return ParticipantFinalist
	case 3, 4:
		return ParticipantSemifinalist
	default:
		return ParticipantEliminated
	}
}
