package models

import "time"

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Player -- профиль игрока, привязанный к аккаунту пользователя.
type Player struct {
	ID          int        `json:"id" db:"id"`
	UserID      int        `json:"user_id" db:"user_id"`
	PlayerName  string     `json:"player_name" db:"player_name"`
	Gender      Gender     `json:"gender" db:"gender"`
	SkillRating float64    `json:"skill_rating" db:"skill_rating"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty" db:"date_of_birth"`
	Country     *string    `json:"country,omitempty" db:"country"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`

	LogoKey *string `json:"-" db:"logo_key"`
	LogoURL *string `json:"logo_url,omitempty" db:"-"`
}

// AgeAt returns the player's age in full years, nil when the birth date is
// unknown.
func (p *Player) AgeAt(now time.Time) *int {
	if p.DateOfBirth == nil {
		return nil
	}
	age := now.Year() - p.DateOfBirth.Year()
	anniversary := p.DateOfBirth.AddDate(age, 0, 0)
	if now.Before(anniversary) {
		age--
	}
	return &age
}
