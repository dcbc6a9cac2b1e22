package invite

import (
	"context"
	"fmt"
	"strings"
)

// Logger is satisfied by glog.Logger and most structured loggers.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// IdentityProvider issues invitation links and owns credentials.
type IdentityProvider interface {
	// InviteByEmail creates (or re-creates) the provider account and sends
	// the invitation email. It returns the provider's identity reference.
	InviteByEmail(ctx context.Context, email string, opts InviteOptions) (*InviteResult, error)
	// DeleteAccount removes the provider account with the given reference.
	DeleteAccount(ctx context.Context, identityID string) error
	// RequestRecovery starts a password reset for an existing account.
	RequestRecovery(ctx context.Context, email string, opts RecoveryOptions) (*RecoveryResult, error)
}

// InviteOptions are passed through to the identity provider.
type InviteOptions struct {
	RedirectURL string
	DisplayName string
	Metadata    map[string]any
}

// InviteResult is what the identity provider returns for an issued invite.
type InviteResult struct {
	IdentityID string
	// Link is only populated by providers that return the action link
	// instead of (or in addition to) mailing it.
	Link string
}

// RecoveryOptions are passed to the identity provider for a password reset.
type RecoveryOptions struct {
	RedirectURL string
	IdentityID  string
}

// RecoveryResult carries the reset link for providers that return it
// instead of mailing it.
type RecoveryResult struct {
	Link string
}

// ActorRef identifies who/what triggered an operation.
type ActorRef struct {
	ID   string
	Type string
}

type actorCtxKey struct{}

// WithActor stores the actor in ctx so operations can attribute events.
func WithActor(ctx context.Context, actor ActorRef) context.Context {
	return context.WithValue(ctx, actorCtxKey{}, actor)
}

// ActorFromContext returns the actor stored by WithActor.
func ActorFromContext(ctx context.Context) (ActorRef, bool) {
	if ctx == nil {
		return ActorRef{}, false
	}
	actor, ok := ctx.Value(actorCtxKey{}).(ActorRef)
	return actor, ok
}

type defLogger struct{}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Print("[DBG] INVITE " + formatLine(msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Print("[INF] INVITE " + formatLine(msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Print("[WRN] INVITE " + formatLine(msg, args...))
}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Print("[ERR] INVITE " + formatLine(msg, args...))
}

func formatLine(msg string, args ...any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	b.WriteString("\n")
	return b.String()
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
