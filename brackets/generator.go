package brackets

import (
	"context"

	"github.com/2hm1901/tournament-management/models"
)

type GenerateBracketParams struct {
	Tournament   *models.Tournament
	Participants []*models.TournamentParticipant
}

type BracketGenerator interface {
	GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error)

	GetName() string
}
