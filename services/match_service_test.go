package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2hm1901/tournament-management/models"
)

type matchServiceEnv struct {
	svc             *MatchService
	repo            *fakeMatchRepo
	tournamentRepo  *fakeTournamentRepo
	participantRepo *fakeParticipantRepo
	sink            *recordingSink
	tournament      *models.Tournament
}

func newMatchServiceEnv(t *testing.T) *matchServiceEnv {
	t.Helper()
	repo := newFakeMatchRepo()
	tournamentRepo := newFakeTournamentRepo()
	participantRepo := newFakeParticipantRepo()
	dispatcher, sink := newTestDispatcher()
	svc := NewMatchService(newTestDB(t), repo, tournamentRepo, participantRepo, dispatcher, testLogger()).
		WithClock(testClock)

	tournament := tournamentRepo.put(&models.Tournament{
		Name:        "Bracket Test",
		Type:        models.TypeMenSingles,
		Format:      models.FormatSingleElimination,
		Status:      models.StatusInProgress,
		OrganizerID: 1,
	})
	return &matchServiceEnv{
		svc:             svc,
		repo:            repo,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		sink:            sink,
		tournament:      tournament,
	}
}

func (e *matchServiceEnv) participant() *models.TournamentParticipant {
	playerID := len(e.participantRepo.participants) + 1
	return e.participantRepo.put(&models.TournamentParticipant{
		TournamentID:       e.tournament.ID,
		PlayerID:           &playerID,
		RegistrationStatus: models.RegistrationConfirmed,
		TournamentStatus:   models.ParticipantActive,
	})
}

func (e *matchServiceEnv) match(p1, p2 *models.TournamentParticipant, status models.MatchStatus) *models.TournamentMatch {
	m := &models.TournamentMatch{
		TournamentID: e.tournament.ID,
		RoundNumber:  1,
		MatchNumber:  len(e.repo.matches) + 1,
		Status:       status,
	}
	if p1 != nil {
		m.Participant1ID = &p1.ID
	}
	if p2 != nil {
		m.Participant2ID = &p2.ID
	}
	if status == models.MatchInProgress {
		started := testNow.Add(-90 * time.Minute)
		m.StartedAt = &started
	}
	return e.repo.put(m)
}

func (e *matchServiceEnv) linkMatches(source, target *models.TournamentMatch, position string) {
	e.repo.mu.Lock()
	defer e.repo.mu.Unlock()
	src := e.repo.matches[source.ID]
	src.NextMatchID = &target.ID
	src.NextMatchPosition = &position
	source.NextMatchID = &target.ID
	source.NextMatchPosition = &position
}

func twoSetScore() *models.ScoreData {
	return &models.ScoreData{
		Sets: []models.SetScore{
			{Participant1Games: 6, Participant2Games: 4},
			{Participant1Games: 6, Participant2Games: 2},
		},
		SetsWonParticipant1:  2,
		SetsWonParticipant2:  0,
		GamesWonParticipant1: 12,
		GamesWonParticipant2: 6,
	}
}

func TestStartMatch(t *testing.T) {
	env := newMatchServiceEnv(t)
	ctx := context.Background()
	p1, p2 := env.participant(), env.participant()
	m := env.match(p1, p2, models.MatchReadyToStart)

	require.NoError(t, env.svc.StartMatch(ctx, 1, m.ID))

	got, _ := env.repo.GetByID(ctx, nil, m.ID)
	assert.Equal(t, models.MatchInProgress, got.Status)
	require.NotNil(t, got.StartedAt)
	assert.Contains(t, env.sink.types(), models.EventMatchStarted)
}

func TestStartMatchRequiresBothSlots(t *testing.T) {
	env := newMatchServiceEnv(t)
	ctx := context.Background()
	p1 := env.participant()
	m := env.match(p1, nil, models.MatchScheduled)

	assert.ErrorIs(t, env.svc.StartMatch(ctx, 1, m.ID), ErrMatchNotReady)
}

func TestStartMatchWrongStatus(t *testing.T) {
	env := newMatchServiceEnv(t)
	ctx := context.Background()
	p1, p2 := env.participant(), env.participant()
	m := env.match(p1, p2, models.MatchCompleted)

	assert.ErrorIs(t, env.svc.StartMatch(ctx, 1, m.ID), ErrMatchInvalidStatusTransition)
}

func TestCompleteMatch(t *testing.T) {
	env := newMatchServiceEnv(t)
	ctx := context.Background()
	p1, p2 := env.participant(), env.participant()
	m := env.match(p1, p2, models.MatchInProgress)

	require.NoError(t, env.svc.CompleteMatch(ctx, 1, m.ID, twoSetScore(), nil, nil))

	got, _ := env.repo.GetByID(ctx, nil, m.ID)
	assert.Equal(t, models.MatchCompleted, got.Status)
	require.NotNil(t, got.WinnerID)
	assert.Equal(t, p1.ID, *got.WinnerID)
	require.NotNil(t, got.FinalScore)
	assert.Equal(t, "6-4, 6-2", *got.FinalScore)
	require.NotNil(t, got.DurationMinutes)
	assert.Equal(t, 90, *got.DurationMinutes)

	types := env.sink.types()
	assert.Contains(t, types, models.EventMatchCompleted)
	assert.Contains(t, types, models.EventBracketUpdated)
}

func TestCompleteMatchStatsOrientation(t *testing.T) {
	env := newMatchServiceEnv(t)
	ctx := context.Background()
	p1, p2 := env.participant(), env.participant()
	m := env.match(p1, p2, models.MatchInProgress)

	// Побеждает второй участник: статистика должна развернуться.
	score := &models.ScoreData{
		Sets: []models.SetScore{
			{Participant1Games: 4, Participant2Games: 6},
			{Participant1Games: 3, Participant2Games: 6},
		},
		SetsWonParticipant1:  0,
		SetsWonParticipant2:  2,
		GamesWonParticipant1: 7,
		GamesWonParticipant2: 12,
	}
	require.NoError(t, env.svc.CompleteMatch(ctx, 1, m.ID, score, nil, nil))

	winner, _ := env.participantRepo.FindByID(ctx, nil, p2.ID)
	assert.Equal(t, 1, winner.MatchesWon)
	assert.Equal(t, 2, winner.SetsWon)
	assert.Equal(t, 12, winner.GamesWon)
	assert.Equal(t, 7, winner.GamesLost)

	loser, _ := env.participantRepo.FindByID(ctx, nil, p1.ID)
	assert.Equal(t, 1, loser.MatchesLost)
	assert.Equal(t, 0, loser.SetsWon)
	assert.Equal(t, 7, loser.GamesWon)
}

func TestCompleteMatchTieRequiresExplicitWinner(t *testing.T) {
	env := newMatchServiceEnv(t)
	ctx := context.Background()
	p1, p2 := env.participant(), env.participant()
	m := env.match(p1, p2, models.MatchInProgress)

	tied := &models.ScoreData{SetsWonParticipant1: 1, SetsWonParticipant2: 1}
	err := env.svc.CompleteMatch(ctx, 1, m.ID, tied, nil, nil)
	assert.ErrorIs(t, err, ErrUndeterminedResult)

	require.NoError(t, env.svc.CompleteMatch(ctx, 1, m.ID, tied, &p2.ID, nil))
	got, _ := env.repo.GetByID(ctx, nil, m.ID)
	assert.Equal(t, p2.ID, *got.WinnerID)
}

func TestCompleteMatchExplicitWinnerMustParticipate(t *testing.T) {
	env := newMatchServiceEnv(t)
	ctx := context.Background()
	p1, p2 := env.participant(), env.participant()
	outsider := env.participant()
	m := env.match(p1, p2, models.MatchInProgress)

	err := env.svc.CompleteMatch(ctx, 1, m.ID, twoSetScore(), &outsider.ID, nil)
	assert.ErrorIs(t, err, ErrWinnerNotInMatch)
}

func TestCompleteMatchIdempotentSameWinner(t *testing.T) {
	env := newMatchServiceEnv(t)
	ctx := context.Background()
	p1, p2 := env.participant(), env.participant()
	m := env.match(p1, p2, models.MatchInProgress)

	require.NoError(t, env.svc.CompleteMatch(ctx, 1, m.ID, twoSetScore(), nil, nil))
	require.NoError(t, env.svc.CompleteMatch(ctx, 1, m.ID, twoSetScore(), nil, nil))

	winner, _ := env.participantRepo.FindByID(ctx, nil, p1.ID)
	assert.Equal(t, 1, winner.MatchesPlayed, "повтор не удваивает статистику")
}

func TestCompleteMatchRejectsDifferentWinner(t *testing.T) {
	env := newMatchServiceEnv(t)
	ctx := context.Background()
	p1, p2 := env.participant(), env.participant()
	m := env.match(p1, p2, models.MatchInProgress)

	require.NoError(t, env.svc.CompleteMatch(ctx, 1, m.ID, twoSetScore(), nil, nil))
	err := env.svc.CompleteMatch(ctx, 1, m.ID, twoSetScore(), &p2.ID, nil)
	assert.ErrorIs(t, err, ErrResultAlreadyRecorded)
}

func TestCompleteMatchRequiresInProgress(t *testing.T) {
	env := newMatchServiceEnv(t)
	ctx := context.Background()
	p1, p2 := env.participant(), env.participant()
	m := env.match(p1, p2, models.MatchReadyToStart)

	err := env.svc.CompleteMatch(ctx, 1, m.ID, twoSetScore(), nil, nil)
	assert.ErrorIs(t, err, ErrMatchNotInProgress)
}

func TestCompleteMatchPropagatesWinner(t *testing.T) {
	env := newMatchServiceEnv(t)
	ctx := context.Background()
	p1, p2, p3 := env.participant(), env.participant(), env.participant()

	semi := env.match(p1, p2, models.MatchInProgress)
	final := env.match(p3, nil, models.MatchScheduled)
	final.RoundNumber = 2
	env.linkMatches(semi, final, models.NextMatchParticipant2)

	require.NoError(t, env.svc.CompleteMatch(ctx, 1, semi.ID, twoSetScore(), nil, nil))

	gotFinal, _ := env.repo.GetByID(ctx, nil, final.ID)
	require.NotNil(t, gotFinal.Participant2ID)
	assert.Equal(t, p1.ID, *gotFinal.Participant2ID)
	assert.Equal(t, models.MatchReadyToStart, gotFinal.Status, "оба слота заполнены")

	loser, _ := env.participantRepo.FindByID(ctx, nil, p2.ID)
	assert.Equal(t, models.ParticipantEliminated, loser.TournamentStatus)
}

func TestCompleteMatchPropagationKeepsScheduledWhenSlotEmpty(t *testing.T) {
	env := newMatchServiceEnv(t)
	ctx := context.Background()
	p1, p2 := env.participant(), env.participant()

	semi := env.match(p1, p2, models.MatchInProgress)
	final := env.match(nil, nil, models.MatchScheduled)
	env.linkMatches(semi, final, models.NextMatchParticipant1)

	require.NoError(t, env.svc.CompleteMatch(ctx, 1, semi.ID, twoSetScore(), nil, nil))

	gotFinal, _ := env.repo.GetByID(ctx, nil, final.ID)
	assert.Equal(t, models.MatchScheduled, gotFinal.Status)
}

func TestCompleteMatchDetectsOccupiedSlot(t *testing.T) {
	env := newMatchServiceEnv(t)
	ctx := context.Background()
	p1, p2, intruder := env.participant(), env.participant(), env.participant()

	semi := env.match(p1, p2, models.MatchInProgress)
	final := env.match(intruder, nil, models.MatchScheduled)
	env.linkMatches(semi, final, models.NextMatchParticipant1)

	err := env.svc.CompleteMatch(ctx, 1, semi.ID, twoSetScore(), nil, nil)
	assert.ErrorIs(t, err, ErrBracketInconsistency)
}

func TestCompleteFinalSetsStandings(t *testing.T) {
	env := newMatchServiceEnv(t)
	ctx := context.Background()
	p1, p2 := env.participant(), env.participant()
	final := env.match(p1, p2, models.MatchInProgress) // без next_match_id

	require.NoError(t, env.svc.CompleteMatch(ctx, 1, final.ID, twoSetScore(), nil, nil))

	champion, _ := env.participantRepo.FindByID(ctx, nil, p1.ID)
	assert.Equal(t, models.ParticipantChampion, champion.TournamentStatus)
	require.NotNil(t, champion.FinalPosition)
	assert.Equal(t, 1, *champion.FinalPosition)

	finalist, _ := env.participantRepo.FindByID(ctx, nil, p2.ID)
	assert.Equal(t, models.ParticipantFinalist, finalist.TournamentStatus)
	require.NotNil(t, finalist.FinalPosition)
	assert.Equal(t, 2, *finalist.FinalPosition)
}

func TestWalkover(t *testing.T) {
	env := newMatchServiceEnv(t)
	ctx := context.Background()
	p1, p2, p3 := env.participant(), env.participant(), env.participant()

	semi := env.match(p1, p2, models.MatchReadyToStart)
	final := env.match(p3, nil, models.MatchScheduled)
	env.linkMatches(semi, final, models.NextMatchParticipant2)

	require.NoError(t, env.svc.Walkover(ctx, 1, semi.ID, p2.ID, "Opponent injured"))

	got, _ := env.repo.GetByID(ctx, nil, semi.ID)
	assert.Equal(t, models.MatchWalkover, got.Status)
	assert.Equal(t, p2.ID, *got.WinnerID)
	assert.Nil(t, got.ScoreData)

	// Причина сохраняется и как итоговый счёт, и в notes, и в журнале.
	require.NotNil(t, got.FinalScore)
	assert.Equal(t, "Opponent injured", *got.FinalScore)
	require.NotNil(t, got.Notes)
	assert.Equal(t, "Opponent injured", *got.Notes)
	require.NotEmpty(t, got.MatchEvents)
	assert.Equal(t, "Opponent injured", got.MatchEvents[len(got.MatchEvents)-1].Description)

	// Победа в счёт матчей, без сетов и геймов.
	winner, _ := env.participantRepo.FindByID(ctx, nil, p2.ID)
	assert.Equal(t, 1, winner.MatchesWon)
	assert.Equal(t, 0, winner.SetsWon)
	assert.Equal(t, 0, winner.GamesWon)

	gotFinal, _ := env.repo.GetByID(ctx, nil, final.ID)
	require.NotNil(t, gotFinal.Participant2ID)
	assert.Equal(t, p2.ID, *gotFinal.Participant2ID)
}

func TestWalkoverWinnerMustParticipate(t *testing.T) {
	env := newMatchServiceEnv(t)
	ctx := context.Background()
	p1, p2, outsider := env.participant(), env.participant(), env.participant()
	m := env.match(p1, p2, models.MatchReadyToStart)

	assert.ErrorIs(t, env.svc.Walkover(ctx, 1, m.ID, outsider.ID, ""), ErrWinnerNotInMatch)
}

func TestWalkoverDefaultReason(t *testing.T) {
	env := newMatchServiceEnv(t)
	ctx := context.Background()
	p1, p2 := env.participant(), env.participant()
	m := env.match(p1, p2, models.MatchScheduled)

	require.NoError(t, env.svc.Walkover(ctx, 1, m.ID, p1.ID, ""))

	got, _ := env.repo.GetByID(ctx, nil, m.ID)
	require.NotNil(t, got.FinalScore)
	assert.Equal(t, "Walkover", *got.FinalScore)
	require.NotNil(t, got.Notes)
	assert.Equal(t, "Walkover", *got.Notes)
}

func TestWalkoverOnlyBeforePlay(t *testing.T) {
	env := newMatchServiceEnv(t)
	ctx := context.Background()
	p1, p2 := env.participant(), env.participant()

	live := env.match(p1, p2, models.MatchInProgress)
	assert.ErrorIs(t, env.svc.Walkover(ctx, 1, live.ID, p1.ID, ""), ErrMatchInvalidStatusTransition)

	postponed := env.match(p1, p2, models.MatchPostponed)
	assert.ErrorIs(t, env.svc.Walkover(ctx, 1, postponed.ID, p1.ID, ""), ErrMatchInvalidStatusTransition)
}

func TestWalkoverIdempotent(t *testing.T) {
	env := newMatchServiceEnv(t)
	ctx := context.Background()
	p1, p2 := env.participant(), env.participant()
	m := env.match(p1, p2, models.MatchReadyToStart)

	require.NoError(t, env.svc.Walkover(ctx, 1, m.ID, p1.ID, ""))
	require.NoError(t, env.svc.Walkover(ctx, 1, m.ID, p1.ID, ""))
	assert.ErrorIs(t, env.svc.Walkover(ctx, 1, m.ID, p2.ID, ""), ErrResultAlreadyRecorded)
}

func TestPostponeAndReschedule(t *testing.T) {
	env := newMatchServiceEnv(t)
	ctx := context.Background()
	p1, p2 := env.participant(), env.participant()
	m := env.match(p1, p2, models.MatchReadyToStart)

	require.NoError(t, env.svc.PostponeMatch(ctx, 1, m.ID, "Rain delay"))
	got, _ := env.repo.GetByID(ctx, nil, m.ID)
	assert.Equal(t, models.MatchPostponed, got.Status)
	require.NotNil(t, got.Notes)
	assert.Equal(t, "Rain delay", *got.Notes)
	require.NotEmpty(t, got.MatchEvents)
	assert.Equal(t, "Rain delay", got.MatchEvents[len(got.MatchEvents)-1].Description)

	court := "Court 3"
	when := testNow.Add(48 * time.Hour)
	require.NoError(t, env.svc.RescheduleMatch(ctx, 1, m.ID, when, &court))

	// Перенос меняет только расписание, статус остаётся прежним.
	got, _ = env.repo.GetByID(ctx, nil, m.ID)
	assert.Equal(t, models.MatchPostponed, got.Status)
	require.NotNil(t, got.ScheduledAt)
	assert.True(t, got.ScheduledAt.Equal(when))
	require.NotNil(t, got.CourtNumber)
	assert.Equal(t, court, *got.CourtNumber)
	assert.Equal(t, "Match rescheduled to 2025-06-17 12:00", got.MatchEvents[len(got.MatchEvents)-1].Description)
}

func TestPostponeDefaultReason(t *testing.T) {
	env := newMatchServiceEnv(t)
	ctx := context.Background()
	p1, p2 := env.participant(), env.participant()
	m := env.match(p1, p2, models.MatchScheduled)

	require.NoError(t, env.svc.PostponeMatch(ctx, 1, m.ID, ""))

	got, _ := env.repo.GetByID(ctx, nil, m.ID)
	require.NotNil(t, got.Notes)
	assert.Equal(t, "Match postponed", *got.Notes)
}

func TestRescheduleAnyMatchWithoutResult(t *testing.T) {
	env := newMatchServiceEnv(t)
	ctx := context.Background()
	p1, p2 := env.participant(), env.participant()

	live := env.match(p1, p2, models.MatchInProgress)
	when := testNow.Add(24 * time.Hour)
	require.NoError(t, env.svc.RescheduleMatch(ctx, 1, live.ID, when, nil))

	got, _ := env.repo.GetByID(ctx, nil, live.ID)
	assert.Equal(t, models.MatchInProgress, got.Status)
	require.NotNil(t, got.ScheduledAt)
	assert.True(t, got.ScheduledAt.Equal(when))

	done := env.match(p1, p2, models.MatchInProgress)
	require.NoError(t, env.svc.CompleteMatch(ctx, 1, done.ID, twoSetScore(), nil, nil))
	assert.ErrorIs(t, env.svc.RescheduleMatch(ctx, 1, done.ID, when, nil), ErrMatchInvalidStatusTransition)
}

func TestCancelMatch(t *testing.T) {
	env := newMatchServiceEnv(t)
	ctx := context.Background()
	p1, p2 := env.participant(), env.participant()

	m := env.match(p1, p2, models.MatchScheduled)
	require.NoError(t, env.svc.CancelMatch(ctx, 1, m.ID, "Venue unavailable"))

	got, _ := env.repo.GetByID(ctx, nil, m.ID)
	assert.Equal(t, models.MatchCancelled, got.Status)
	require.NotNil(t, got.Notes)
	assert.Equal(t, "Venue unavailable", *got.Notes)
	require.NotEmpty(t, got.MatchEvents)
	assert.Equal(t, "Venue unavailable", got.MatchEvents[len(got.MatchEvents)-1].Description)

	bare := env.match(p1, p2, models.MatchScheduled)
	require.NoError(t, env.svc.CancelMatch(ctx, 1, bare.ID, ""))
	gotBare, _ := env.repo.GetByID(ctx, nil, bare.ID)
	require.NotNil(t, gotBare.Notes)
	assert.Equal(t, "Match cancelled", *gotBare.Notes)

	done := env.match(p1, p2, models.MatchInProgress)
	require.NoError(t, env.svc.CompleteMatch(ctx, 1, done.ID, twoSetScore(), nil, nil))
	assert.ErrorIs(t, env.svc.CancelMatch(ctx, 1, done.ID, ""), ErrMatchInvalidStatusTransition)
}

func TestMatchOperationsForbiddenForNonOrganizer(t *testing.T) {
	env := newMatchServiceEnv(t)
	ctx := context.Background()
	p1, p2 := env.participant(), env.participant()
	m := env.match(p1, p2, models.MatchReadyToStart)

	assert.ErrorIs(t, env.svc.StartMatch(ctx, 99, m.ID), ErrForbiddenOperation)
	assert.ErrorIs(t, env.svc.CompleteMatch(ctx, 99, m.ID, twoSetScore(), nil, nil), ErrForbiddenOperation)
	assert.ErrorIs(t, env.svc.Walkover(ctx, 99, m.ID, p1.ID, ""), ErrForbiddenOperation)
	assert.ErrorIs(t, env.svc.PostponeMatch(ctx, 99, m.ID, ""), ErrForbiddenOperation)
}
