package ports

import (
	"context"

	"github.com/tickship/tickship/internal/domain"
)

// EventSink consumes host platform events. Implementations must not block;
// publish failures are absorbed downstream and never propagate back to the
// event source.
type EventSink interface {
	// OnStateChange handles one entity state change.
	OnStateChange(ev domain.StateChange)

	// OnLogbookEntry handles one logbook entry.
	OnLogbookEntry(ev domain.LogbookEntry)
}

// EventSource delivers host events to a sink until the context is canceled.
// Run blocks; transient connection loss to the host is handled internally
// and only unrecoverable failures return an error.
type EventSource interface {
	Run(ctx context.Context, sink EventSink) error
}
