package services

import (
	"sync"
	"time"
)

// Clock отдаёт текущее время; внедряется в сервисы, чтобы переходы состояний
// были детерминированно тестируемыми.
type Clock func() time.Time

// tournamentLocks сериализует мутации одного турнира внутри процесса. Счётчик
// участников и указатели сетки одного турнира -- один логический ресурс;
// разные турниры независимы и идут параллельно.
type tournamentLocks struct {
	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

func newTournamentLocks() *tournamentLocks {
	return &tournamentLocks{locks: make(map[int]*sync.Mutex)}
}

func (l *tournamentLocks) lock(tournamentID int) func() {
	l.mu.Lock()
	m, ok := l.locks[tournamentID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[tournamentID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
