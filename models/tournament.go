package models

import (
	"regexp"
	"strings"
	"time"
)

// TournamentStatus представляет статусы турнира, соответствующие ENUM в БД.
type TournamentStatus string

const (
	StatusDraft              TournamentStatus = "draft"
	StatusRegistrationOpen   TournamentStatus = "registration_open"
	StatusRegistrationClosed TournamentStatus = "registration_closed"
	StatusInProgress         TournamentStatus = "in_progress"
	StatusCompleted          TournamentStatus = "completed"
	StatusCancelled          TournamentStatus = "cancelled"
)

// IsTerminal reports whether the status permits no further transitions.
func (s TournamentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type TournamentType string

const (
	TypeMenSingles   TournamentType = "men_singles"
	TypeWomenSingles TournamentType = "women_singles"
	TypeMenDoubles   TournamentType = "men_doubles"
	TypeWomenDoubles TournamentType = "women_doubles"
	TypeMixedDoubles TournamentType = "mixed_doubles"
)

type TournamentFormat string

const (
	FormatSingleElimination TournamentFormat = "single_elimination"
	FormatDoubleElimination TournamentFormat = "double_elimination"
	FormatRoundRobin        TournamentFormat = "round_robin"
	FormatSwiss             TournamentFormat = "swiss"
)

// TournamentSettings хранит правила допуска участников.
// Нулевой указатель означает отсутствие ограничения.
type TournamentSettings struct {
	MinSkillLevel *float64 `json:"min_skill_level,omitempty"`
	MaxSkillLevel *float64 `json:"max_skill_level,omitempty"`
	MinAge        *int     `json:"min_age,omitempty"`
	MaxAge        *int     `json:"max_age,omitempty"`
}

// Tournament представляет турнир.
type Tournament struct {
	ID                    int                 `json:"id" db:"id"`
	Name                  string              `json:"name" db:"name"`
	Slug                  string              `json:"slug" db:"slug"`
	Description           *string             `json:"description,omitempty" db:"description"`
	Type                  TournamentType      `json:"type" db:"type"`
	Format                TournamentFormat    `json:"format" db:"format"`
	Status                TournamentStatus    `json:"status" db:"status"`
	OrganizerID           int                 `json:"organizer_id" db:"organizer_id"`
	MinParticipants       int                 `json:"min_participants" db:"min_participants"`
	MaxParticipants       int                 `json:"max_participants" db:"max_participants"`
	CurrentParticipants   int                 `json:"current_participants" db:"current_participants"`
	RegistrationStartDate *time.Time          `json:"registration_start_date,omitempty" db:"registration_start_date"`
	RegistrationEndDate   *time.Time          `json:"registration_end_date,omitempty" db:"registration_end_date"`
	TournamentStartDate   *time.Time          `json:"tournament_start_date,omitempty" db:"tournament_start_date"`
	TournamentEndDate     *time.Time          `json:"tournament_end_date,omitempty" db:"tournament_end_date"`
	EntryFee              float64             `json:"entry_fee" db:"entry_fee"`
	Settings              *TournamentSettings `json:"settings,omitempty" db:"settings"`
	Venue                 *string             `json:"venue,omitempty" db:"venue"`
	Results               []FinalResult       `json:"results,omitempty" db:"results"`
	CancelReason          *string             `json:"cancel_reason,omitempty" db:"cancel_reason"`
	CreatedAt             time.Time           `json:"created_at" db:"created_at"`
	DeletedAt             *time.Time          `json:"-" db:"deleted_at"`
	LogoKey               *string             `json:"-" db:"logo_key"`
	LogoURL               *string             `json:"logo_url,omitempty" db:"-"`

	// Опциональные связанные сущности (не мапятся напрямую)
	Organizer    *User                   `json:"organizer,omitempty" db:"-"`
	Participants []TournamentParticipant `json:"participants,omitempty" db:"-"`
	Matches      []TournamentMatch       `json:"matches,omitempty" db:"-"`
}

// FinalResult is one line of the recorded final standings.
type FinalResult struct {
	ParticipantID int     `json:"participant_id"`
	Position      int     `json:"position"`
	PrizeMoney    float64 `json:"prize_money"`
}

func (t *Tournament) IsDoubles() bool {
	switch t.Type {
	case TypeMenDoubles, TypeWomenDoubles, TypeMixedDoubles:
		return true
	}
	return false
}

func (t *Tournament) IsFull() bool {
	return t.CurrentParticipants >= t.MaxParticipants
}

func (t *Tournament) AvailableSlots() int {
	if t.MaxParticipants <= t.CurrentParticipants {
		return 0
	}
	return t.MaxParticipants - t.CurrentParticipants
}

// CanRegister reports whether a new registration is acceptable at the given
// moment: registration is open, now is inside the window, and there is a free
// slot. Callers evaluate this fresh on every attempt, never from a cache.
func (t *Tournament) CanRegister(now time.Time) bool {
	if t.Status != StatusRegistrationOpen {
		return false
	}
	if t.RegistrationStartDate != nil && now.Before(*t.RegistrationStartDate) {
		return false
	}
	if t.RegistrationEndDate != nil && now.After(*t.RegistrationEndDate) {
		return false
	}
	return !t.IsFull()
}

func (t *Tournament) CanStart() bool {
	return t.Status == StatusRegistrationClosed && t.CurrentParticipants >= t.MinParticipants
}

var slugNonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives the URL slug from a tournament name.
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = slugNonAlnum.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
