package audit

import (
	"context"

	"github.com/identura/authcore/internal/observability"
)

// Emitter publishes access-lifecycle events. Implementations must be
// safe for concurrent use. Emission failures are the emitter's own
// concern; grant writes never roll back on a failed emission.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

// logEmitter writes events to the structured log, the default sink
// when no streaming plugin is attached.
type logEmitter struct {
	logger observability.Logger
}

// NewLogEmitter creates an Emitter backed by the given logger.
func NewLogEmitter(logger observability.Logger) Emitter {
	return &logEmitter{logger: logger}
}

// Emit writes the event to the log.
func (e *logEmitter) Emit(ctx context.Context, event Event) {
	fields := []observability.Field{
		observability.String("event_id", event.ID),
		observability.String("event_type", string(event.Type)),
		observability.String("tenant", event.TenantID),
		observability.String("account", event.AccountID),
		observability.String("organization", event.OrganizationID),
	}
	if event.Grant != nil {
		fields = append(fields,
			observability.Strings("domains", event.Grant.DomainIDs),
			observability.Strings("roles", event.Grant.RoleIDs),
		)
	}
	e.logger.WithContext(ctx).Info("access event", fields...)
}

// nopEmitter discards all events.
type nopEmitter struct{}

// NopEmitter returns an Emitter that discards all events.
func NopEmitter() Emitter {
	return nopEmitter{}
}

// Emit discards the event.
func (nopEmitter) Emit(context.Context, Event) {}
