package brackets

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/2hm1901/tournament-management/models"
)

// BracketMatch -- один сгенерированный матч до записи в БД. Слоты либо заняты
// конкретными участниками, либо ссылаются на матчи-источники по UID.
type BracketMatch struct {
	UID          string
	Round        int
	OrderInRound int

	Participant1ID *int
	Participant2ID *int

	SourceMatch1UID *string
	SourceMatch2UID *string

	// Бай: участник проходит в следующий круг без игры, матч в БД не создаётся.
	IsBye            bool
	ByeParticipantID *int
}

type slotNode struct {
	participantID  *int
	sourceMatchUID *string
}

type SingleEliminationGenerator struct{}

func NewSingleEliminationGenerator() BracketGenerator {
	return &SingleEliminationGenerator{}
}

func (g *SingleEliminationGenerator) GetName() string {
	return "SingleElimination"
}

// GenerateBracket строит сетку на выбывание по посеву: первый сеяный
// встречается с самым слабым слотом, байи достаются сильнейшим. Генерация
// детерминирована, случайности нет.
func (g *SingleEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error) {
	participants := params.Participants
	n := len(participants)
	if n < 2 {
		return nil, errors.New("not enough participants to generate a single elimination bracket (minimum 2)")
	}

	ordered := make([]*models.TournamentParticipant, n)
	copy(ordered, participants)
	sort.SliceStable(ordered, func(i, j int) bool {
		si, sj := ordered[i].SeedNumber, ordered[j].SeedNumber
		switch {
		case si != nil && sj != nil:
			return *si < *sj
		case si != nil:
			return true
		case sj != nil:
			return false
		}
		if ri, rj := ordered[i].Rating(), ordered[j].Rating(); ri != rj {
			return ri > rj
		}
		return ordered[i].ID < ordered[j].ID
	})

	numRounds := int(math.Ceil(math.Log2(float64(n))))
	bracketSize := 1 << uint(numRounds)

	// slots[i] -- участник на позиции i первого круга, nil для бая.
	slots := make([]*int, bracketSize)
	for i, seed := range seedOrder(bracketSize) {
		if seed <= n {
			id := ordered[seed-1].ID
			slots[i] = &id
		}
	}

	matches := make([]*BracketMatch, 0, bracketSize-1)
	current := make([]*slotNode, 0, bracketSize/2)

	order := 0
	for i := 0; i < bracketSize; i += 2 {
		p1, p2 := slots[i], slots[i+1]
		order++
		uid := fmt.Sprintf("R1M%d", order)

		switch {
		case p1 != nil && p2 != nil:
			matches = append(matches, &BracketMatch{
				UID:            uid,
				Round:          1,
				OrderInRound:   order,
				Participant1ID: p1,
				Participant2ID: p2,
			})
			current = append(current, &slotNode{sourceMatchUID: &uid})
		case p1 != nil:
			matches = append(matches, &BracketMatch{
				UID:              uid,
				Round:            1,
				OrderInRound:     order,
				Participant1ID:   p1,
				IsBye:            true,
				ByeParticipantID: p1,
			})
			current = append(current, &slotNode{participantID: p1})
		case p2 != nil:
			matches = append(matches, &BracketMatch{
				UID:              uid,
				Round:            1,
				OrderInRound:     order,
				Participant1ID:   p2,
				IsBye:            true,
				ByeParticipantID: p2,
			})
			current = append(current, &slotNode{participantID: p2})
		default:
			// Минимальная степень двойки не даёт встретиться двум байям.
			return nil, fmt.Errorf("internal error: two byes paired at round 1 position %d", i)
		}
	}

	for r := 2; r <= numRounds; r++ {
		next := make([]*slotNode, 0, len(current)/2)
		order = 0
		for i := 0; i < len(current); i += 2 {
			node1, node2 := current[i], current[i+1]
			order++
			uid := fmt.Sprintf("R%dM%d", r, order)

			bm := &BracketMatch{
				UID:          uid,
				Round:        r,
				OrderInRound: order,
			}
			if node1.participantID != nil {
				bm.Participant1ID = node1.participantID
			} else {
				bm.SourceMatch1UID = node1.sourceMatchUID
			}
			if node2.participantID != nil {
				bm.Participant2ID = node2.participantID
			} else {
				bm.SourceMatch2UID = node2.sourceMatchUID
			}

			matches = append(matches, bm)
			next = append(next, &slotNode{sourceMatchUID: &uid})
		}
		current = next
	}

	return matches, nil
}

// seedOrder возвращает позиции посева для сетки данного размера: для 8 это
// 1,8,5,4,3,6,7,2 -- первый и второй сеяные могут встретиться только в финале.
func seedOrder(size int) []int {
	order := []int{1}
	for len(order) < size {
		doubled := make([]int, 0, len(order)*2)
		for _, seed := range order {
			doubled = append(doubled, seed, len(order)*2+1-seed)
		}
		order = doubled
	}
	return order
}
