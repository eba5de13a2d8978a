package models

import "time"

// Team -- пара для парных разрядов.
type Team struct {
	ID         int       `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Player1ID  int       `json:"player1_id" db:"player1_id"`
	Player2ID  int       `json:"player2_id" db:"player2_id"`
	TeamRating float64   `json:"team_rating" db:"team_rating"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`

	Player1 *Player `json:"player1,omitempty" db:"-"`
	Player2 *Player `json:"player2,omitempty" db:"-"`

	LogoKey *string `json:"-" db:"logo_key"`
	LogoURL *string `json:"logo_url,omitempty" db:"-"`
}
