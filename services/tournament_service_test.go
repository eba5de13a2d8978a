package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2hm1901/tournament-management/models"
	"github.com/2hm1901/tournament-management/repositories"
)

type tournamentServiceEnv struct {
	svc      *TournamentService
	repo     *fakeTournamentRepo
	userRepo *fakeUserRepo
	sink     *recordingSink
}

func newTournamentServiceEnv(t *testing.T) *tournamentServiceEnv {
	t.Helper()
	repo := newFakeTournamentRepo()
	userRepo := newFakeUserRepo()
	dispatcher, sink := newTestDispatcher()
	svc := NewTournamentService(newTestDB(t), repo, userRepo, nil, dispatcher, testLogger()).
		WithClock(testClock)
	return &tournamentServiceEnv{svc: svc, repo: repo, userRepo: userRepo, sink: sink}
}

func (e *tournamentServiceEnv) organizer() *models.User {
	u := &models.User{Name: "Организатор", Email: "org@example.com", Role: models.RoleOrganizer}
	return e.userRepo.put(u)
}

func (e *tournamentServiceEnv) seedTournament(organizerID int, status models.TournamentStatus) *models.Tournament {
	t := &models.Tournament{
		Name:            "Summer Open",
		Slug:            "summer-open",
		Type:            models.TypeMenSingles,
		Format:          models.FormatSingleElimination,
		Status:          status,
		OrganizerID:     organizerID,
		MinParticipants: 2,
		MaxParticipants: 16,
	}
	return e.repo.put(t)
}

func TestCreateTournament(t *testing.T) {
	env := newTournamentServiceEnv(t)
	org := env.organizer()
	ctx := context.Background()

	tournament := &models.Tournament{
		Name:            "Spring Cup 2025",
		Type:            models.TypeMenSingles,
		Format:          models.FormatSingleElimination,
		OrganizerID:     org.ID,
		MinParticipants: 4,
		MaxParticipants: 16,
	}
	require.NoError(t, env.svc.CreateTournament(ctx, tournament))

	assert.Equal(t, models.StatusDraft, tournament.Status)
	assert.Equal(t, "spring-cup-2025", tournament.Slug)
	assert.Equal(t, 0, tournament.CurrentParticipants)
}

func TestCreateTournamentValidation(t *testing.T) {
	env := newTournamentServiceEnv(t)
	org := env.organizer()
	ctx := context.Background()

	testCases := []struct {
		name       string
		tournament *models.Tournament
		wantErr    error
	}{
		{
			name:       "empty name",
			tournament: &models.Tournament{OrganizerID: org.ID, MinParticipants: 2, MaxParticipants: 8},
			wantErr:    ErrValidationFailed,
		},
		{
			name:       "min above max",
			tournament: &models.Tournament{Name: "X", OrganizerID: org.ID, MinParticipants: 16, MaxParticipants: 8},
			wantErr:    ErrValidationFailed,
		},
		{
			name:       "unknown organizer",
			tournament: &models.Tournament{Name: "X", OrganizerID: 9999, MinParticipants: 2, MaxParticipants: 8},
			wantErr:    ErrUserNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := env.svc.CreateTournament(ctx, tc.tournament)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestCreateTournamentDateOrdering(t *testing.T) {
	env := newTournamentServiceEnv(t)
	org := env.organizer()
	ctx := context.Background()

	regStart := testNow.Add(24 * time.Hour)
	regEnd := testNow.Add(1 * time.Hour) // раньше начала
	tournament := &models.Tournament{
		Name:                  "Broken Dates",
		OrganizerID:           org.ID,
		MinParticipants:       2,
		MaxParticipants:       8,
		RegistrationStartDate: &regStart,
		RegistrationEndDate:   &regEnd,
	}
	assert.ErrorIs(t, env.svc.CreateTournament(ctx, tournament), ErrTournamentDatesOrder)
}

func TestOpenRegistration(t *testing.T) {
	env := newTournamentServiceEnv(t)
	org := env.organizer()
	ctx := context.Background()

	tr := env.seedTournament(org.ID, models.StatusDraft)
	require.NoError(t, env.svc.OpenRegistration(ctx, org.ID, tr.ID))

	got, err := env.repo.GetByID(ctx, nil, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRegistrationOpen, got.Status)
	require.NotNil(t, got.RegistrationStartDate)
	assert.True(t, got.RegistrationStartDate.Equal(testNow))
}

func TestOpenRegistrationWrongStatus(t *testing.T) {
	env := newTournamentServiceEnv(t)
	org := env.organizer()
	ctx := context.Background()

	for _, status := range []models.TournamentStatus{
		models.StatusRegistrationOpen,
		models.StatusInProgress,
		models.StatusCompleted,
		models.StatusCancelled,
	} {
		tr := env.seedTournament(org.ID, status)
		err := env.svc.OpenRegistration(ctx, org.ID, tr.ID)
		assert.ErrorIs(t, err, ErrTournamentInvalidStatusTransition, "status %s", status)
	}
}

func TestOpenRegistrationForbiddenForNonOrganizer(t *testing.T) {
	env := newTournamentServiceEnv(t)
	org := env.organizer()
	other := env.userRepo.put(&models.User{Name: "Someone", Email: "x@example.com", Role: models.RoleOrganizer})
	ctx := context.Background()

	tr := env.seedTournament(org.ID, models.StatusDraft)
	assert.ErrorIs(t, env.svc.OpenRegistration(ctx, other.ID, tr.ID), ErrForbiddenOperation)
}

func TestCloseRegistrationStampsWindowEnd(t *testing.T) {
	env := newTournamentServiceEnv(t)
	org := env.organizer()
	ctx := context.Background()

	tr := env.seedTournament(org.ID, models.StatusRegistrationOpen)
	require.NoError(t, env.svc.CloseRegistration(ctx, org.ID, tr.ID))

	got, err := env.repo.GetByID(ctx, nil, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRegistrationClosed, got.Status)
	require.NotNil(t, got.RegistrationEndDate)
	assert.True(t, got.RegistrationEndDate.Equal(testNow))
}

func TestStartTournament(t *testing.T) {
	env := newTournamentServiceEnv(t)
	org := env.organizer()
	ctx := context.Background()

	tr := env.seedTournament(org.ID, models.StatusRegistrationClosed)
	env.repo.tournaments[tr.ID].CurrentParticipants = 4

	require.NoError(t, env.svc.StartTournament(ctx, org.ID, tr.ID))

	got, err := env.repo.GetByID(ctx, nil, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, got.Status)
	assert.Contains(t, env.sink.types(), models.EventTournamentStarted)
}

func TestStartTournamentInsufficientParticipants(t *testing.T) {
	env := newTournamentServiceEnv(t)
	org := env.organizer()
	ctx := context.Background()

	tr := env.seedTournament(org.ID, models.StatusRegistrationClosed)
	env.repo.tournaments[tr.ID].CurrentParticipants = 1 // min is 2

	err := env.svc.StartTournament(ctx, org.ID, tr.ID)
	assert.ErrorIs(t, err, ErrInsufficientParticipants)

	got, _ := env.repo.GetByID(ctx, nil, tr.ID)
	assert.Equal(t, models.StatusRegistrationClosed, got.Status)
	assert.Empty(t, env.sink.types())
}

func TestCompleteTournament(t *testing.T) {
	env := newTournamentServiceEnv(t)
	org := env.organizer()
	ctx := context.Background()

	tr := env.seedTournament(org.ID, models.StatusInProgress)
	results := []models.FinalResult{
		{ParticipantID: 10, Position: 1},
		{ParticipantID: 11, Position: 2},
	}
	require.NoError(t, env.svc.CompleteTournament(ctx, org.ID, tr.ID, results))

	got, err := env.repo.GetByID(ctx, nil, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, results, got.Results)
	require.NotNil(t, got.TournamentEndDate)
	assert.Contains(t, env.sink.types(), models.EventTournamentCompleted)
}

func TestCompleteTournamentRequiresInProgress(t *testing.T) {
	env := newTournamentServiceEnv(t)
	org := env.organizer()
	ctx := context.Background()

	tr := env.seedTournament(org.ID, models.StatusRegistrationClosed)
	err := env.svc.CompleteTournament(ctx, org.ID, tr.ID, nil)
	assert.ErrorIs(t, err, ErrTournamentInvalidStatusTransition)
}

func TestCancelTournament(t *testing.T) {
	env := newTournamentServiceEnv(t)
	org := env.organizer()
	ctx := context.Background()

	nonTerminal := []models.TournamentStatus{
		models.StatusDraft,
		models.StatusRegistrationOpen,
		models.StatusRegistrationClosed,
		models.StatusInProgress,
	}
	for _, status := range nonTerminal {
		tr := env.seedTournament(org.ID, status)
		require.NoError(t, env.svc.CancelTournament(ctx, org.ID, tr.ID, "rain"), "status %s", status)

		got, err := env.repo.GetByID(ctx, nil, tr.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, got.Status)
		require.NotNil(t, got.CancelReason)
		assert.Equal(t, "rain", *got.CancelReason)
	}

	for _, status := range []models.TournamentStatus{models.StatusCompleted, models.StatusCancelled} {
		tr := env.seedTournament(org.ID, status)
		err := env.svc.CancelTournament(ctx, org.ID, tr.ID, "too late")
		assert.ErrorIs(t, err, ErrTournamentInvalidStatusTransition, "status %s", status)
	}
}

func TestUpdateTournamentGuards(t *testing.T) {
	env := newTournamentServiceEnv(t)
	org := env.organizer()
	ctx := context.Background()

	tr := env.seedTournament(org.ID, models.StatusInProgress)
	upd := *tr
	upd.Name = "Renamed"
	err := env.svc.UpdateTournament(ctx, org.ID, &upd)
	assert.ErrorIs(t, err, ErrTournamentInvalidStatusTransition)

	tr2 := env.seedTournament(org.ID, models.StatusRegistrationOpen)
	env.repo.tournaments[tr2.ID].CurrentParticipants = 8
	upd2 := *tr2
	upd2.MaxParticipants = 4 // below confirmed count
	upd2.MinParticipants = 2
	err = env.svc.UpdateTournament(ctx, org.ID, &upd2)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestDeleteTournamentSoftDeletes(t *testing.T) {
	env := newTournamentServiceEnv(t)
	org := env.organizer()
	ctx := context.Background()

	tr := env.seedTournament(org.ID, models.StatusDraft)
	require.NoError(t, env.svc.DeleteTournament(ctx, org.ID, tr.ID))

	_, err := env.svc.GetTournamentByID(ctx, tr.ID)
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}

func TestCanRegisterEvaluatesFreshState(t *testing.T) {
	env := newTournamentServiceEnv(t)
	org := env.organizer()
	ctx := context.Background()

	tr := env.seedTournament(org.ID, models.StatusRegistrationOpen)
	ok, err := env.svc.CanRegister(ctx, tr.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	env.repo.tournaments[tr.ID].CurrentParticipants = env.repo.tournaments[tr.ID].MaxParticipants
	ok, err = env.svc.CanRegister(ctx, tr.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAdjustParticipantCountCeiling(t *testing.T) {
	env := newTournamentServiceEnv(t)
	org := env.organizer()
	ctx := context.Background()

	tr := env.seedTournament(org.ID, models.StatusRegistrationOpen)
	env.repo.tournaments[tr.ID].MaxParticipants = 1

	require.NoError(t, env.svc.AdjustParticipantCount(ctx, nil, tr.ID, 1))
	assert.ErrorIs(t, env.svc.AdjustParticipantCount(ctx, nil, tr.ID, 1), ErrTournamentFull)
	require.NoError(t, env.svc.AdjustParticipantCount(ctx, nil, tr.ID, -1))

	assert.ErrorIs(t, env.svc.AdjustParticipantCount(ctx, nil, tr.ID, 5), ErrValidationFailed)
}

func TestAutoUpdateTournamentStatusesByDates(t *testing.T) {
	env := newTournamentServiceEnv(t)
	org := env.organizer()
	ctx := context.Background()

	past := testNow.Add(-time.Hour)
	future := testNow.Add(time.Hour)

	draft := env.seedTournament(org.ID, models.StatusDraft)
	env.repo.tournaments[draft.ID].RegistrationStartDate = &past

	open := env.seedTournament(org.ID, models.StatusRegistrationOpen)
	env.repo.tournaments[open.ID].RegistrationEndDate = &past

	untouched := env.seedTournament(org.ID, models.StatusRegistrationOpen)
	env.repo.tournaments[untouched.ID].RegistrationEndDate = &future

	require.NoError(t, env.svc.AutoUpdateTournamentStatusesByDates(ctx))

	got, _ := env.repo.GetByID(ctx, nil, draft.ID)
	assert.Equal(t, models.StatusRegistrationOpen, got.Status)
	got, _ = env.repo.GetByID(ctx, nil, open.ID)
	assert.Equal(t, models.StatusRegistrationClosed, got.Status)
	got, _ = env.repo.GetByID(ctx, nil, untouched.ID)
	assert.Equal(t, models.StatusRegistrationOpen, got.Status)
}

func TestListTournamentsFilter(t *testing.T) {
	env := newTournamentServiceEnv(t)
	org := env.organizer()
	ctx := context.Background()

	env.seedTournament(org.ID, models.StatusDraft)
	env.seedTournament(org.ID, models.StatusInProgress)
	env.seedTournament(org.ID, models.StatusInProgress)

	status := models.StatusInProgress
	list, err := env.svc.ListTournaments(ctx, repositories.ListTournamentsFilter{Status: &status})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
