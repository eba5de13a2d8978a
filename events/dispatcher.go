package events

import (
	"context"
	"log/slog"

	"github.com/2hm1901/tournament-management/models"
)

// Sink получает доменные события после фиксации транзакции. Реализации:
// websocket-хаб (живые обновления сетки) и почтовый сервис.
type Sink interface {
	Notify(ctx context.Context, event models.DomainEvent) error
}

// Dispatcher раздаёт события подписчикам. Ошибки стоков логируются и не
// влияют на уже зафиксированный переход состояния.
type Dispatcher struct {
	logger *slog.Logger
	sinks  []Sink
}

func NewDispatcher(logger *slog.Logger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{logger: logger, sinks: sinks}
}

func (d *Dispatcher) Register(sink Sink) {
	d.sinks = append(d.sinks, sink)
}

// Dispatch delivers the events in order to every sink. Call only after the
// transaction that produced them has committed.
func (d *Dispatcher) Dispatch(ctx context.Context, evts []models.DomainEvent) {
	if d == nil {
		return
	}
	for _, evt := range evts {
		for _, sink := range d.sinks {
			if err := sink.Notify(ctx, evt); err != nil && d.logger != nil {
				d.logger.ErrorContext(ctx, "event sink delivery failed",
					slog.String("event_type", string(evt.Type)),
					slog.Int("tournament_id", evt.TournamentID),
					slog.Any("error", err),
				)
			}
		}
	}
}
