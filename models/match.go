package models

import (
	"fmt"
	"strings"
	"time"
)

type MatchStatus string

const (
	MatchScheduled    MatchStatus = "scheduled"
	MatchReadyToStart MatchStatus = "ready_to_start"
	MatchInProgress   MatchStatus = "in_progress"
	MatchCompleted    MatchStatus = "completed"
	MatchCancelled    MatchStatus = "cancelled"
	MatchPostponed    MatchStatus = "postponed"
	MatchWalkover     MatchStatus = "walkover"
	MatchNoShow       MatchStatus = "no_show"
)

// HasResult reports whether the match has recorded an immutable result.
func (s MatchStatus) HasResult() bool {
	return s == MatchCompleted || s == MatchWalkover
}

// NextMatchPosition -- слот следующего матча, который получает победителя.
const (
	NextMatchParticipant1 = "participant1"
	NextMatchParticipant2 = "participant2"
)

// SetScore -- счёт одного сета по геймам.
type SetScore struct {
	Participant1Games int `json:"participant1_games"`
	Participant2Games int `json:"participant2_games"`
}

// ScoreData -- структурированный результат матча.
type ScoreData struct {
	Sets                 []SetScore `json:"sets,omitempty"`
	SetsWonParticipant1  int        `json:"sets_won_participant1"`
	SetsWonParticipant2  int        `json:"sets_won_participant2"`
	GamesWonParticipant1 int        `json:"games_won_participant1"`
	GamesWonParticipant2 int        `json:"games_won_participant2"`
}

// FinalScoreString renders the human-readable score, e.g. "6-4, 3-6, 7-5".
func (s *ScoreData) FinalScoreString() string {
	if s == nil || len(s.Sets) == 0 {
		return ""
	}
	parts := make([]string, 0, len(s.Sets))
	for _, set := range s.Sets {
		parts = append(parts, fmt.Sprintf("%d-%d", set.Participant1Games, set.Participant2Games))
	}
	return strings.Join(parts, ", ")
}

// MatchEvent -- одна запись журнала матча, только добавляется, никогда не
// переписывается.
type MatchEvent struct {
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Timestamp   time.Time      `json:"timestamp"`
	Data        map[string]any `json:"data,omitempty"`
}

// TournamentMatch -- один матч сетки между двумя слотами участников.
type TournamentMatch struct {
	ID                int          `json:"id" db:"id"`
	TournamentID      int          `json:"tournament_id" db:"tournament_id"`
	Participant1ID    *int         `json:"participant1_id,omitempty" db:"participant1_id"`
	Participant2ID    *int         `json:"participant2_id,omitempty" db:"participant2_id"`
	RoundNumber       int          `json:"round_number" db:"round_number"`
	RoundName         *string      `json:"round_name,omitempty" db:"round_name"`
	MatchNumber       int          `json:"match_number" db:"match_number"`
	Status            MatchStatus  `json:"status" db:"status"`
	ScheduledAt       *time.Time   `json:"scheduled_at,omitempty" db:"scheduled_at"`
	StartedAt         *time.Time   `json:"started_at,omitempty" db:"started_at"`
	CompletedAt       *time.Time   `json:"completed_at,omitempty" db:"completed_at"`
	CourtNumber       *string      `json:"court_number,omitempty" db:"court_number"`
	WinnerID          *int         `json:"winner_id,omitempty" db:"winner_id"`
	LoserID           *int         `json:"loser_id,omitempty" db:"loser_id"`
	ScoreData         *ScoreData   `json:"score_data,omitempty" db:"score_data"`
	FinalScore        *string      `json:"final_score,omitempty" db:"final_score"`
	DurationMinutes   *int         `json:"duration_minutes,omitempty" db:"duration_minutes"`
	Notes             *string      `json:"notes,omitempty" db:"notes"`
	MatchEvents       []MatchEvent `json:"match_events,omitempty" db:"match_events"`
	NextMatchID       *int         `json:"next_match_id,omitempty" db:"next_match_id"`
	NextMatchPosition *string      `json:"next_match_position,omitempty" db:"next_match_position"`
	CreatedAt         time.Time    `json:"created_at" db:"created_at"`

	Participant1 *TournamentParticipant `json:"participant1,omitempty" db:"-"`
	Participant2 *TournamentParticipant `json:"participant2,omitempty" db:"-"`
}

// BothSlotsFilled reports whether both participant slots are assigned.
func (m *TournamentMatch) BothSlotsFilled() bool {
	return m.Participant1ID != nil && m.Participant2ID != nil
}

// IsFinal reports whether the match has no successor in the bracket.
func (m *TournamentMatch) IsFinal() bool {
	return m.NextMatchID == nil
}

// OpponentOf returns the other participant's id, nil when the given id is not
// one of the two slots or the other slot is empty.
func (m *TournamentMatch) OpponentOf(participantID int) *int {
	if m.Participant1ID != nil && *m.Participant1ID == participantID {
		return m.Participant2ID
	}
	if m.Participant2ID != nil && *m.Participant2ID == participantID {
		return m.Participant1ID
	}
	return nil
}

// HasParticipant reports whether the id occupies one of the two slots.
func (m *TournamentMatch) HasParticipant(participantID int) bool {
	return (m.Participant1ID != nil && *m.Participant1ID == participantID) ||
		(m.Participant2ID != nil && *m.Participant2ID == participantID)
}

// WinnerFromScore computes the winner by sets won. Returns nil when the score
// is tied: это решение вызывающей стороны, а не движка.
func (m *TournamentMatch) WinnerFromScore(score *ScoreData) *int {
	if score == nil {
		return nil
	}
	switch {
	case score.SetsWonParticipant1 > score.SetsWonParticipant2:
		return m.Participant1ID
	case score.SetsWonParticipant2 > score.SetsWonParticipant1:
		return m.Participant2ID
	}
	return nil
}

// RoundNameFor returns the conventional round label counted from the final.
func RoundNameFor(roundNumber, totalRounds int) string {
	switch totalRounds - roundNumber {
	case 0:
		return "Final"
	case 1:
		return "Semifinal"
	case 2:
		return "Quarterfinal"
	default:
		return fmt.Sprintf("Round %d", roundNumber)
	}
}
