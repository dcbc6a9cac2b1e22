package invite

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventStateChanged      ActivityEventType = "invite.state.changed"
	ActivityEventUserCreated       ActivityEventType = "invite.user.created"
	ActivityEventInviteIssued      ActivityEventType = "invite.issued"
	ActivityEventInviteResent      ActivityEventType = "invite.resent"
	ActivityEventAccountDeleted    ActivityEventType = "invite.account.deleted"
	ActivityEventCompensation      ActivityEventType = "invite.compensation"
	ActivityEventUserConfirmed     ActivityEventType = "invite.user.confirmed"
	ActivityEventRecoveryRequested ActivityEventType = "invite.recovery.requested"
	ActivityEventRecoveryCompleted ActivityEventType = "invite.recovery.completed"
)

// ActivityOutcome describes how an operation step ended.
type ActivityOutcome string

const (
	OutcomeSuccess ActivityOutcome = "success"
	OutcomeFailure ActivityOutcome = "failure"
	// OutcomeSkipped marks a step that had nothing to do, e.g. deleting an
	// account the provider no longer knows about.
	OutcomeSkipped ActivityOutcome = "skipped"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	Email      string
	FromState  InvitationState
	ToState    InvitationState
	Outcome    ActivityOutcome
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// LoggerActivitySink writes every event to a structured logger.
type LoggerActivitySink struct {
	Logger Logger
}

// NewLoggerActivitySink returns a sink that logs events with logger.
func NewLoggerActivitySink(logger Logger) *LoggerActivitySink {
	return &LoggerActivitySink{Logger: normalizeLogger(logger)}
}

// Record implements ActivitySink.
func (s *LoggerActivitySink) Record(_ context.Context, event ActivityEvent) error {
	logger := normalizeLogger(s.Logger)

	args := []any{
		"event", string(event.EventType),
		"outcome", string(event.Outcome),
		"user_id", event.UserID,
		"email", event.Email,
	}
	if event.FromState != "" || event.ToState != "" {
		args = append(args, "from", string(event.FromState), "to", string(event.ToState))
	}
	if event.Actor.ID != "" {
		args = append(args, "actor_id", event.Actor.ID)
	}
	for k, v := range event.Metadata {
		args = append(args, k, v)
	}

	switch event.Outcome {
	case OutcomeFailure:
		logger.Error("invite activity", args...)
	default:
		logger.Info("invite activity", args...)
	}
	return nil
}

// MultiActivitySink fans events out to several sinks, returning the first error.
type MultiActivitySink []ActivitySink

// Record implements ActivitySink.
func (m MultiActivitySink) Record(ctx context.Context, event ActivityEvent) error {
	var first error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
