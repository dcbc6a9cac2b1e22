package activitymap

import (
	"context"
	"strings"
	"time"

	invite "github.com/goliatone/go-auth-invite"
)

const (
	// MetadataKeyActorType stores the actor type derived from invite.ActorRef.Type.
	MetadataKeyActorType = "actor_type"
	// MetadataKeyFromState stores the invitation state before the operation.
	MetadataKeyFromState = "from_state"
	// MetadataKeyToState stores the invitation state after the operation.
	MetadataKeyToState = "to_state"
	// MetadataKeyOutcome stores success, failure or skipped.
	MetadataKeyOutcome = "outcome"
	// MetadataKeyEmail stores the email of the affected user.
	MetadataKeyEmail = "email"
)

const (
	defaultChannel    = "invite"
	defaultObjectType = "user"
	defaultActorID    = "system"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel          string
	objectType       string
	actorFallback    string
	includeEmail     bool
	objectIDResolver func(invite.ActivityEvent) string
}

// Normalize converts an invite.ActivityEvent into a generic normalized shape.
func Normalize(event invite.ActivityEvent, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	actorID := firstNonEmpty(
		strings.TrimSpace(event.Actor.ID),
		strings.TrimSpace(options.actorFallback),
	)

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: strings.TrimSpace(options.objectType),
		ObjectID:   resolveObjectID(event, options.objectIDResolver),
		Channel:    strings.TrimSpace(options.channel),
		Metadata:   normalizeMetadata(event, options.includeEmail),
		OccurredAt: occurredAt,
	}
}

// Sink adapts a function receiving normalized records to invite.ActivitySink.
func Sink(fn func(Normalized) error, opts ...Option) invite.ActivitySink {
	return invite.ActivitySinkFunc(func(_ context.Context, event invite.ActivityEvent) error {
		if fn == nil {
			return nil
		}
		return fn(Normalize(event, opts...))
	})
}

// WithDefaultChannel sets the default channel for normalized records.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithDefaultObjectType sets the default object type for normalized records.
func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithObjectIDResolver overrides object-id extraction from ActivityEvent.
func WithObjectIDResolver(resolver func(invite.ActivityEvent) string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.objectIDResolver = resolver
	}
}

// WithActorFallback sets the actor-id used when the event has no actor id.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// WithEmail copies the event email into the metadata. Off by default.
func WithEmail() Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.includeEmail = true
	}
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
	}
}

func resolveObjectID(event invite.ActivityEvent, resolver func(invite.ActivityEvent) string) string {
	if resolver != nil {
		return strings.TrimSpace(resolver(event))
	}
	return strings.TrimSpace(event.UserID)
}

func normalizeMetadata(event invite.ActivityEvent, includeEmail bool) map[string]any {
	metadata := cloneMap(event.Metadata)

	set := func(key string, value any, overwrite bool) {
		if metadata == nil {
			metadata = map[string]any{}
		}
		if _, exists := metadata[key]; exists && !overwrite {
			return
		}
		metadata[key] = value
	}

	if actorType := strings.TrimSpace(event.Actor.Type); actorType != "" {
		set(MetadataKeyActorType, actorType, false)
	}
	if event.FromState != "" {
		set(MetadataKeyFromState, string(event.FromState), true)
	}
	if event.ToState != "" {
		set(MetadataKeyToState, string(event.ToState), true)
	}
	if event.Outcome != "" {
		set(MetadataKeyOutcome, string(event.Outcome), true)
	}
	if includeEmail && event.Email != "" {
		set(MetadataKeyEmail, event.Email, true)
	}

	return metadata
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
