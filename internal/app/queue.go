package app

import (
	"context"

	"github.com/tickship/tickship/internal/domain"
	"github.com/tickship/tickship/internal/metrics"
	"github.com/tickship/tickship/internal/ports"
	"github.com/tickship/tickship/pkg/log"
)

// DefaultQueueSize bounds the handoff buffer between the event source and
// the publish worker.
const DefaultQueueSize = 256

type queuedEvent struct {
	state   *domain.StateChange
	logbook *domain.LogbookEntry
}

// EventQueue hands events from the source's dispatch path to a dedicated
// publish worker. Enqueue never blocks: when the buffer is full the event is
// dropped with a warning, keeping the host pipeline latency-safe while the
// socket path stalls.
type EventQueue struct {
	sink   ports.EventSink
	ch     chan queuedEvent
	logger log.Logger
}

// NewEventQueue creates a queue delivering to sink. size <= 0 selects
// DefaultQueueSize.
func NewEventQueue(size int, sink ports.EventSink, logger log.Logger) *EventQueue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &EventQueue{
		sink:   sink,
		ch:     make(chan queuedEvent, size),
		logger: logger,
	}
}

// Run drains the queue until the context is canceled. It is the only caller
// of the downstream sink, preserving the single-writer discipline on the
// socket.
func (q *EventQueue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-q.ch:
			if ev.state != nil {
				q.sink.OnStateChange(*ev.state)
			} else if ev.logbook != nil {
				q.sink.OnLogbookEntry(*ev.logbook)
			}
		}
	}
}

// OnStateChange enqueues without blocking.
func (q *EventQueue) OnStateChange(ev domain.StateChange) {
	q.enqueue(queuedEvent{state: &ev}, ev.EntityID())
}

// OnLogbookEntry enqueues without blocking.
func (q *EventQueue) OnLogbookEntry(ev domain.LogbookEntry) {
	q.enqueue(queuedEvent{logbook: &ev}, ev.EntityID)
}

func (q *EventQueue) enqueue(ev queuedEvent, entityID string) {
	select {
	case q.ch <- ev:
	default:
		metrics.EventsDropped.WithLabelValues(metrics.ReasonQueueFull).Inc()
		q.logger.Warn("publish queue full, dropping event",
			log.String("entity_id", entityID),
		)
	}
}
