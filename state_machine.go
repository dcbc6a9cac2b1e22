package invite

import (
	"context"
	"time"
)

// TransitionMetadata captures extra context for a transition.
type TransitionMetadata struct {
	Reason   string
	Metadata map[string]any
}

// TransitionContext is passed into hooks and the apply function.
type TransitionContext struct {
	Actor ActorRef
	User  *User
	From  InvitationState
	To    InvitationState
	Meta  TransitionMetadata
}

// TransitionHook is executed before or after a transition.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// ApplyFunc performs the side effects of a transition (provider calls and
// persistence) and returns the updated record.
type ApplyFunc func(ctx context.Context, tc TransitionContext) (*User, error)

// TransitionHookPhase identifies whether a hook ran before or after apply.
type TransitionHookPhase string

const (
	HookPhaseBefore TransitionHookPhase = "before_transition"
	HookPhaseAfter  TransitionHookPhase = "after_transition"
)

// TransitionOption customizes a single transition.
type TransitionOption func(*transitionOptions)

// InvitationStateMachine validates and applies invitation state changes.
type InvitationStateMachine interface {
	Transition(ctx context.Context, actor ActorRef, user *User, target InvitationState, apply ApplyFunc, opts ...TransitionOption) (*User, error)
	CurrentState(user *User) InvitationState
	CanTransition(from, to InvitationState) bool
}

// HookErrorHandler handles errors surfaced by transition hooks.
type HookErrorHandler func(ctx context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*invitationStateMachine)

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *invitationStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineActivitySink sets the ActivitySink used to publish state changes.
func WithStateMachineActivitySink(sink ActivitySink) StateMachineOption {
	return func(sm *invitationStateMachine) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

// WithStateMachineHookErrorHandler overrides how hook failures are propagated.
// By default the hook error is returned as is.
func WithStateMachineHookErrorHandler(handler HookErrorHandler) StateMachineOption {
	return func(sm *invitationStateMachine) {
		if handler != nil {
			sm.hookErrorHandler = handler
		}
	}
}

// WithStateMachineLogger overrides the logger used for sink failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *invitationStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.metadata.Reason = reason
	}
}

// WithTransitionMetadata merges metadata into the transition context.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(opts *transitionOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata.Metadata == nil {
			opts.metadata.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			opts.metadata.Metadata[k] = v
		}
	}
}

// WithBeforeTransitionHook adds a hook executed before apply.
func WithBeforeTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.beforeHooks = append(opts.beforeHooks, h)
		}
	}
}

// WithAfterTransitionHook adds a hook executed after apply succeeds.
func WithAfterTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.afterHooks = append(opts.afterHooks, h)
		}
	}
}

// NewInvitationStateMachine returns the default implementation.
func NewInvitationStateMachine(opts ...StateMachineOption) InvitationStateMachine {
	sm := &invitationStateMachine{
		transitions: map[InvitationState]map[InvitationState]struct{}{
			StateUninvited: {
				StateInvited: {},
			},
			StateInvited: {
				StateInvited:   {},
				StateConfirmed: {},
			},
			StateConfirmed: {
				StateConfirmed: {},
			},
		},
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
		hookErrorHandler: func(_ context.Context, _ TransitionHookPhase, err error, _ TransitionContext) error {
			return err
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

type invitationStateMachine struct {
	transitions      map[InvitationState]map[InvitationState]struct{}
	now              func() time.Time
	activitySink     ActivitySink
	logger           Logger
	hookErrorHandler HookErrorHandler
}

type transitionOptions struct {
	metadata    TransitionMetadata
	beforeHooks []TransitionHook
	afterHooks  []TransitionHook
}

func (o *transitionOptions) cloneMetadata() TransitionMetadata {
	return TransitionMetadata{
		Reason:   o.metadata.Reason,
		Metadata: copyMap(o.metadata.Metadata),
	}
}

// Transition validates from -> target, runs hooks around apply and records
// the state change. confirmed -> confirmed returns the user untouched
// without calling apply.
func (sm *invitationStateMachine) Transition(ctx context.Context, actor ActorRef, user *User, target InvitationState, apply ApplyFunc, opts ...TransitionOption) (*User, error) {
	if user == nil {
		return nil, newError(ErrInvalidTransition, nil, map[string]any{
			"to":     target,
			"reason": "user is nil",
		})
	}

	if target == "" {
		return nil, newError(ErrInvalidTransition, nil, map[string]any{
			"user_id": user.ID.String(),
			"reason":  "target state is empty",
		})
	}

	from := sm.CurrentState(user)

	if from == StateConfirmed {
		if target == StateConfirmed {
			return user, nil
		}
		return nil, newError(ErrAlreadyConfirmed, nil, map[string]any{
			"user_id": user.ID.String(),
			"email":   user.Email,
			"from":    from,
			"to":      target,
		})
	}

	if !sm.CanTransition(from, target) {
		return nil, newError(ErrInvalidTransition, nil, map[string]any{
			"user_id": user.ID.String(),
			"from":    from,
			"to":      target,
		})
	}

	options := sm.buildTransitionOptions(opts...)

	tc := TransitionContext{
		Actor: actor,
		User:  user,
		From:  from,
		To:    target,
		Meta:  options.cloneMetadata(),
	}

	if err := sm.runHooks(ctx, options.beforeHooks, tc, HookPhaseBefore); err != nil {
		return nil, err
	}

	updated := user
	if apply != nil {
		out, err := apply(ctx, tc)
		if err != nil {
			return nil, err
		}
		if out != nil {
			updated = out
		}
	}

	tc.User = updated
	if err := sm.runHooks(ctx, options.afterHooks, tc, HookPhaseAfter); err != nil {
		return nil, err
	}

	sm.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventStateChanged,
		Actor:     actor,
		UserID:    updated.ID.String(),
		Email:     updated.Email,
		FromState: from,
		ToState:   target,
		Outcome:   OutcomeSuccess,
		Metadata:  sm.transitionMetadata(tc.Meta),
	})

	return updated, nil
}

func (sm *invitationStateMachine) CurrentState(user *User) InvitationState {
	return user.State()
}

func (sm *invitationStateMachine) CanTransition(from, to InvitationState) bool {
	if allowed, ok := sm.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func (sm *invitationStateMachine) runHooks(ctx context.Context, hooks []TransitionHook, data TransitionContext, phase TransitionHookPhase) error {
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, data); err != nil {
			if sm.hookErrorHandler == nil {
				return err
			}
			return sm.hookErrorHandler(ctx, phase, err, data)
		}
	}
	return nil
}

func (sm *invitationStateMachine) buildTransitionOptions(opts ...TransitionOption) *transitionOptions {
	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	return options
}

func (sm *invitationStateMachine) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = sm.now()
	}

	sink := normalizeActivitySink(sm.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		sm.logger.Warn("state machine activity sink error", "error", err)
	}
}

func (sm *invitationStateMachine) transitionMetadata(meta TransitionMetadata) map[string]any {
	if meta.Reason == "" && len(meta.Metadata) == 0 {
		return nil
	}

	result := map[string]any{}
	if meta.Reason != "" {
		result["reason"] = meta.Reason
	}
	for k, v := range meta.Metadata {
		result[k] = v
	}
	return result
}
