package services

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/2hm1901/tournament-management/events"
	"github.com/2hm1901/tournament-management/models"
	"github.com/2hm1901/tournament-management/repositories"
)

// testClock returns a fixed moment so window checks are deterministic.
var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func testClock() time.Time { return testNow }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestDB returns a *sql.DB whose transactions always succeed. The fakes
// below ignore the executor, so only Begin/Commit/Rollback are exercised.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 64; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
		mock.ExpectRollback()
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// recordingSink собирает доставленные события.
type recordingSink struct {
	mu     sync.Mutex
	events []models.DomainEvent
}

func (s *recordingSink) Notify(_ context.Context, event models.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) types() []models.DomainEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.DomainEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestDispatcher() (*events.Dispatcher, *recordingSink) {
	sink := &recordingSink{}
	d := events.NewDispatcher(testLogger())
	d.Register(sink)
	return d, sink
}

// --- fake tournament repository ---

type fakeTournamentRepo struct {
	mu          sync.Mutex
	nextID      int
	tournaments map[int]*models.Tournament
}

func newFakeTournamentRepo() *fakeTournamentRepo {
	return &fakeTournamentRepo{nextID: 1, tournaments: make(map[int]*models.Tournament)}
}

func (r *fakeTournamentRepo) put(t *models.Tournament) *models.Tournament {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == 0 {
		t.ID = r.nextID
		r.nextID++
	} else if t.ID >= r.nextID {
		r.nextID = t.ID + 1
	}
	copied := *t
	r.tournaments[t.ID] = &copied
	return t
}

func (r *fakeTournamentRepo) Create(_ context.Context, t *models.Tournament) error {
	t.CreatedAt = testNow
	r.put(t)
	return nil
}

func (r *fakeTournamentRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok || t.DeletedAt != nil {
		return nil, repositories.ErrTournamentNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *fakeTournamentRepo) GetBySlug(_ context.Context, slug string) (*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tournaments {
		if t.Slug == slug && t.DeletedAt == nil {
			copied := *t
			return &copied, nil
		}
	}
	return nil, repositories.ErrTournamentNotFound
}

func (r *fakeTournamentRepo) List(_ context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Tournament
	for _, t := range r.tournaments {
		if t.DeletedAt != nil {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.OrganizerID != nil && t.OrganizerID != *filter.OrganizerID {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTournamentRepo) Update(_ context.Context, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.tournaments[t.ID]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Status = existing.Status
	t.CurrentParticipants = existing.CurrentParticipants
	copied := *t
	r.tournaments[t.ID] = &copied
	return nil
}

func (r *fakeTournamentRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.TournamentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Status = status
	return nil
}

func (r *fakeTournamentRepo) UpdateRegistrationWindow(_ context.Context, _ repositories.SQLExecutor, id int, start, end *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	if start != nil {
		t.RegistrationStartDate = start
	}
	if end != nil {
		t.RegistrationEndDate = end
	}
	return nil
}

func (r *fakeTournamentRepo) UpdateDates(_ context.Context, _ repositories.SQLExecutor, id int, start, end *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	if start != nil {
		t.TournamentStartDate = start
	}
	if end != nil {
		t.TournamentEndDate = end
	}
	return nil
}

func (r *fakeTournamentRepo) UpdateResults(_ context.Context, _ repositories.SQLExecutor, id int, results []models.FinalResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Results = results
	return nil
}

func (r *fakeTournamentRepo) UpdateCancelReason(_ context.Context, _ repositories.SQLExecutor, id int, reason *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.CancelReason = reason
	return nil
}

func (r *fakeTournamentRepo) IncrementParticipantCount(_ context.Context, _ repositories.SQLExecutor, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	// То же условие, что и в SQL: счётчик не пересекает потолок.
	if t.CurrentParticipants >= t.MaxParticipants {
		return repositories.ErrTournamentFull
	}
	t.CurrentParticipants++
	return nil
}

func (r *fakeTournamentRepo) DecrementParticipantCount(_ context.Context, _ repositories.SQLExecutor, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	if t.CurrentParticipants > 0 {
		t.CurrentParticipants--
	}
	return nil
}

func (r *fakeTournamentRepo) UpdateLogoKey(_ context.Context, id int, logoKey *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.LogoKey = logoKey
	return nil
}

func (r *fakeTournamentRepo) SoftDelete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	now := testNow
	t.DeletedAt = &now
	return nil
}

func (r *fakeTournamentRepo) GetTournamentsForAutoStatusUpdate(_ context.Context, _ repositories.SQLExecutor, currentTime time.Time) ([]*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Tournament
	for _, t := range r.tournaments {
		if t.DeletedAt != nil {
			continue
		}
		switch t.Status {
		case models.StatusDraft:
			if t.RegistrationStartDate != nil && !currentTime.Before(*t.RegistrationStartDate) {
				copied := *t
				out = append(out, &copied)
			}
		case models.StatusRegistrationOpen:
			if t.RegistrationEndDate != nil && currentTime.After(*t.RegistrationEndDate) {
				copied := *t
				out = append(out, &copied)
			}
		}
	}
	return out, nil
}

// --- fake participant repository ---

type fakeParticipantRepo struct {
	mu           sync.Mutex
	nextID       int
	participants map[int]*models.TournamentParticipant
}

func newFakeParticipantRepo() *fakeParticipantRepo {
	return &fakeParticipantRepo{nextID: 1, participants: make(map[int]*models.TournamentParticipant)}
}

func (r *fakeParticipantRepo) put(p *models.TournamentParticipant) *models.TournamentParticipant {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == 0 {
		p.ID = r.nextID
		r.nextID++
	} else if p.ID >= r.nextID {
		r.nextID = p.ID + 1
	}
	copied := *p
	r.participants[p.ID] = &copied
	return p
}

func (r *fakeParticipantRepo) Create(_ context.Context, p *models.TournamentParticipant) error {
	r.mu.Lock()
	for _, existing := range r.participants {
		if existing.TournamentID != p.TournamentID {
			continue
		}
		if p.PlayerID != nil && existing.PlayerID != nil && *existing.PlayerID == *p.PlayerID {
			r.mu.Unlock()
			return repositories.ErrParticipantConflict
		}
		if p.TeamID != nil && existing.TeamID != nil && *existing.TeamID == *p.TeamID {
			r.mu.Unlock()
			return repositories.ErrParticipantConflict
		}
	}
	r.mu.Unlock()
	p.CreatedAt = testNow
	r.put(p)
	return nil
}

func (r *fakeParticipantRepo) FindByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.TournamentParticipant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[id]
	if !ok {
		return nil, repositories.ErrParticipantNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakeParticipantRepo) FindByPlayerAndTournament(_ context.Context, playerID, tournamentID int) (*models.TournamentParticipant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.participants {
		if p.TournamentID == tournamentID && p.PlayerID != nil && *p.PlayerID == playerID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, repositories.ErrParticipantNotFound
}

func (r *fakeParticipantRepo) FindByTeamAndTournament(_ context.Context, teamID, tournamentID int) (*models.TournamentParticipant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.participants {
		if p.TournamentID == tournamentID && p.TeamID != nil && *p.TeamID == teamID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, repositories.ErrParticipantNotFound
}

func (r *fakeParticipantRepo) ListByTournament(_ context.Context, tournamentID int, statusFilter *models.RegistrationStatus, _ bool) ([]*models.TournamentParticipant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.TournamentParticipant
	for _, p := range r.participants {
		if p.TournamentID != tournamentID {
			continue
		}
		if statusFilter != nil && p.RegistrationStatus != *statusFilter {
			continue
		}
		copied := *p
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeParticipantRepo) UpdateRegistrationStatus(_ context.Context, _ repositories.SQLExecutor, id int, registration models.RegistrationStatus, tournament *models.ParticipantTournamentStatus, confirmed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[id]
	if !ok {
		return repositories.ErrParticipantNotFound
	}
	p.RegistrationStatus = registration
	if tournament != nil {
		p.TournamentStatus = *tournament
	}
	if confirmed {
		now := testNow
		p.ConfirmedAt = &now
	}
	return nil
}

func (r *fakeParticipantRepo) UpdateSeed(_ context.Context, _ repositories.SQLExecutor, id int, seed *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[id]
	if !ok {
		return repositories.ErrParticipantNotFound
	}
	if seed != nil {
		for _, other := range r.participants {
			if other.ID != id && other.TournamentID == p.TournamentID &&
				other.SeedNumber != nil && *other.SeedNumber == *seed {
				return repositories.ErrSeedConflict
			}
		}
	}
	p.SeedNumber = seed
	return nil
}

func (r *fakeParticipantRepo) IncrementStats(_ context.Context, _ repositories.SQLExecutor, id int, won bool, setsWon, setsLost, gamesWon, gamesLost int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[id]
	if !ok {
		return repositories.ErrParticipantNotFound
	}
	p.MatchesPlayed++
	if won {
		p.MatchesWon++
	} else {
		p.MatchesLost++
	}
	p.SetsWon += setsWon
	p.SetsLost += setsLost
	p.GamesWon += gamesWon
	p.GamesLost += gamesLost
	return nil
}

func (r *fakeParticipantRepo) UpdateFinalStanding(_ context.Context, _ repositories.SQLExecutor, id int, status models.ParticipantTournamentStatus, position int, prizeMoney float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[id]
	if !ok {
		return repositories.ErrParticipantNotFound
	}
	p.TournamentStatus = status
	p.FinalPosition = &position
	p.PrizeMoney = prizeMoney
	return nil
}

func (r *fakeParticipantRepo) UpdateTournamentStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.ParticipantTournamentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[id]
	if !ok {
		return repositories.ErrParticipantNotFound
	}
	p.TournamentStatus = status
	return nil
}

func (r *fakeParticipantRepo) MarkEntryFeePaid(_ context.Context, _ repositories.SQLExecutor, id int, reference *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[id]
	if !ok {
		return repositories.ErrParticipantNotFound
	}
	p.EntryFeePaid = true
	p.PaymentReference = reference
	now := testNow
	p.PaymentDate = &now
	return nil
}

func (r *fakeParticipantRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.participants[id]; !ok {
		return repositories.ErrParticipantNotFound
	}
	delete(r.participants, id)
	return nil
}

// --- fake match repository ---

type fakeMatchRepo struct {
	mu      sync.Mutex
	nextID  int
	matches map[int]*models.TournamentMatch
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{nextID: 1, matches: make(map[int]*models.TournamentMatch)}
}

func (r *fakeMatchRepo) put(m *models.TournamentMatch) *models.TournamentMatch {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == 0 {
		m.ID = r.nextID
		r.nextID++
	} else if m.ID >= r.nextID {
		r.nextID = m.ID + 1
	}
	copied := *m
	r.matches[m.ID] = &copied
	return m
}

func (r *fakeMatchRepo) Create(_ context.Context, _ repositories.SQLExecutor, m *models.TournamentMatch) error {
	m.CreatedAt = testNow
	r.put(m)
	return nil
}

func (r *fakeMatchRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.TournamentMatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	copied := *m
	return &copied, nil
}

func (r *fakeMatchRepo) ListByTournament(_ context.Context, tournamentID int, round *int, status *models.MatchStatus) ([]*models.TournamentMatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.TournamentMatch
	for _, m := range r.matches {
		if m.TournamentID != tournamentID {
			continue
		}
		if round != nil && m.RoundNumber != *round {
			continue
		}
		if status != nil && m.Status != *status {
			continue
		}
		copied := *m
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RoundNumber != out[j].RoundNumber {
			return out[i].RoundNumber < out[j].RoundNumber
		}
		return out[i].MatchNumber < out[j].MatchNumber
	})
	return out, nil
}

func (r *fakeMatchRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.MatchStatus, startedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.Status = status
	if startedAt != nil {
		m.StartedAt = startedAt
	}
	return nil
}

func (r *fakeMatchRepo) UpdateResult(_ context.Context, _ repositories.SQLExecutor, id int, update repositories.MatchResultUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.Status = update.Status
	m.WinnerID = update.WinnerID
	m.LoserID = update.LoserID
	m.ScoreData = update.ScoreData
	m.FinalScore = update.FinalScore
	m.CompletedAt = update.CompletedAt
	m.DurationMinutes = update.DurationMinutes
	if update.Notes != nil {
		m.Notes = update.Notes
	}
	return nil
}

func (r *fakeMatchRepo) UpdateSchedule(_ context.Context, _ repositories.SQLExecutor, id int, scheduledAt time.Time, court *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.ScheduledAt = &scheduledAt
	m.CourtNumber = court
	return nil
}

func (r *fakeMatchRepo) UpdateNotes(_ context.Context, _ repositories.SQLExecutor, id int, notes *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.Notes = notes
	return nil
}

func (r *fakeMatchRepo) SetParticipantSlot(_ context.Context, _ repositories.SQLExecutor, id int, position string, participantID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if position == models.NextMatchParticipant1 {
		m.Participant1ID = &participantID
	} else {
		m.Participant2ID = &participantID
	}
	return nil
}

func (r *fakeMatchRepo) UpdateNextMatchInfo(_ context.Context, _ repositories.SQLExecutor, id int, nextMatchID *int, nextMatchPosition *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.NextMatchID = nextMatchID
	m.NextMatchPosition = nextMatchPosition
	return nil
}

func (r *fakeMatchRepo) AppendEvent(_ context.Context, _ repositories.SQLExecutor, id int, event models.MatchEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.MatchEvents = append(m.MatchEvents, event)
	return nil
}

func (r *fakeMatchRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.matches[id]; !ok {
		return repositories.ErrMatchNotFound
	}
	delete(r.matches, id)
	return nil
}

// --- fake player / team / user repositories ---

type fakePlayerRepo struct {
	mu      sync.Mutex
	nextID  int
	players map[int]*models.Player
}

func newFakePlayerRepo() *fakePlayerRepo {
	return &fakePlayerRepo{nextID: 1, players: make(map[int]*models.Player)}
}

func (r *fakePlayerRepo) put(p *models.Player) *models.Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == 0 {
		p.ID = r.nextID
		r.nextID++
	} else if p.ID >= r.nextID {
		r.nextID = p.ID + 1
	}
	copied := *p
	r.players[p.ID] = &copied
	return p
}

func (r *fakePlayerRepo) Create(_ context.Context, p *models.Player) error {
	r.put(p)
	return nil
}

func (r *fakePlayerRepo) GetByID(_ context.Context, id int) (*models.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[id]
	if !ok {
		return nil, repositories.ErrPlayerNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakePlayerRepo) GetByUserID(_ context.Context, userID int) (*models.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.players {
		if p.UserID == userID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, repositories.ErrPlayerNotFound
}

func (r *fakePlayerRepo) Update(_ context.Context, p *models.Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.players[p.ID]; !ok {
		return repositories.ErrPlayerNotFound
	}
	copied := *p
	r.players[p.ID] = &copied
	return nil
}

func (r *fakePlayerRepo) UpdateLogoKey(_ context.Context, id int, logoKey *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[id]
	if !ok {
		return repositories.ErrPlayerNotFound
	}
	p.LogoKey = logoKey
	return nil
}

func (r *fakePlayerRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.players[id]; !ok {
		return repositories.ErrPlayerNotFound
	}
	delete(r.players, id)
	return nil
}

type fakeTeamRepo struct {
	mu      sync.Mutex
	nextID  int
	teams   map[int]*models.Team
	players *fakePlayerRepo
}

func newFakeTeamRepo(players *fakePlayerRepo) *fakeTeamRepo {
	return &fakeTeamRepo{nextID: 1, teams: make(map[int]*models.Team), players: players}
}

func (r *fakeTeamRepo) put(t *models.Team) *models.Team {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == 0 {
		t.ID = r.nextID
		r.nextID++
	} else if t.ID >= r.nextID {
		r.nextID = t.ID + 1
	}
	copied := *t
	r.teams[t.ID] = &copied
	return t
}

func (r *fakeTeamRepo) Create(_ context.Context, t *models.Team) error {
	r.put(t)
	return nil
}

func (r *fakeTeamRepo) GetByID(_ context.Context, id int) (*models.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *fakeTeamRepo) GetWithPlayers(ctx context.Context, id int) (*models.Team, error) {
	team, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.players != nil {
		team.Player1, _ = r.players.GetByID(ctx, team.Player1ID)
		team.Player2, _ = r.players.GetByID(ctx, team.Player2ID)
	}
	return team, nil
}

func (r *fakeTeamRepo) Update(_ context.Context, t *models.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.teams[t.ID]; !ok {
		return repositories.ErrTeamNotFound
	}
	copied := *t
	r.teams[t.ID] = &copied
	return nil
}

func (r *fakeTeamRepo) UpdateLogoKey(_ context.Context, id int, logoKey *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[id]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	t.LogoKey = logoKey
	return nil
}

func (r *fakeTeamRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.teams[id]; !ok {
		return repositories.ErrTeamNotFound
	}
	delete(r.teams, id)
	return nil
}

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[int]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: make(map[int]*models.User)}
}

func (r *fakeUserRepo) put(u *models.User) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == 0 {
		u.ID = r.nextID
		r.nextID++
	} else if u.ID >= r.nextID {
		r.nextID = u.ID + 1
	}
	copied := *u
	r.users[u.ID] = &copied
	return u
}

func (r *fakeUserRepo) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			r.mu.Unlock()
			return repositories.ErrUserEmailConflict
		}
	}
	r.mu.Unlock()
	r.put(u)
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}
