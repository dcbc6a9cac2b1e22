package invite_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	invite "github.com/goliatone/go-auth-invite"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// MockUserStore implements invite.UserStore
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*invite.User, error) {
	args := m.Called(ctx, id)
	return userArg(args, 0), args.Error(1)
}

func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*invite.User, error) {
	args := m.Called(ctx, email)
	return userArg(args, 0), args.Error(1)
}

func (m *MockUserStore) GetByExternalIdentityID(ctx context.Context, externalID string) (*invite.User, error) {
	args := m.Called(ctx, externalID)
	return userArg(args, 0), args.Error(1)
}

func (m *MockUserStore) CreateTx(ctx context.Context, tx bun.IDB, record *invite.User, criteria ...repository.InsertCriteria) (*invite.User, error) {
	args := m.Called(ctx, record)
	return userArg(args, 0), args.Error(1)
}

func (m *MockUserStore) UpdateInvitationTx(ctx context.Context, tx bun.IDB, id uuid.UUID, externalID string) (*invite.User, error) {
	args := m.Called(ctx, id, externalID)
	return userArg(args, 0), args.Error(1)
}

func (m *MockUserStore) MarkConfirmedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, confirmedAt time.Time) (*invite.User, error) {
	args := m.Called(ctx, id, confirmedAt)
	return userArg(args, 0), args.Error(1)
}

func userArg(args mock.Arguments, idx int) *invite.User {
	if u, ok := args.Get(idx).(*invite.User); ok {
		return u
	}
	return nil
}

// MockTxRunner runs the transaction function inline.
type MockTxRunner struct {
	mock.Mock
}

func (m *MockTxRunner) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	m.Called(ctx)
	return f(ctx, bun.Tx{})
}

// MockIdentityProvider implements invite.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) InviteByEmail(ctx context.Context, email string, opts invite.InviteOptions) (*invite.InviteResult, error) {
	args := m.Called(ctx, email, opts)
	res, _ := args.Get(0).(*invite.InviteResult)
	return res, args.Error(1)
}

func (m *MockIdentityProvider) DeleteAccount(ctx context.Context, identityID string) error {
	args := m.Called(ctx, identityID)
	return args.Error(0)
}

func (m *MockIdentityProvider) RequestRecovery(ctx context.Context, email string, opts invite.RecoveryOptions) (*invite.RecoveryResult, error) {
	args := m.Called(ctx, email, opts)
	res, _ := args.Get(0).(*invite.RecoveryResult)
	return res, args.Error(1)
}

type capturingSink struct {
	mu     sync.Mutex
	events []invite.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt invite.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) byType(eventType invite.ActivityEventType) []invite.ActivityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []invite.ActivityEvent
	for _, evt := range c.events {
		if evt.EventType == eventType {
			out = append(out, evt)
		}
	}
	return out
}

type logEntry struct {
	level string
	msg   string
	args  []any
}

type capturingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *capturingLogger) log(level, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *capturingLogger) Debug(msg string, args ...any) { l.log("debug", msg, args...) }
func (l *capturingLogger) Info(msg string, args ...any)  { l.log("info", msg, args...) }
func (l *capturingLogger) Warn(msg string, args ...any)  { l.log("warn", msg, args...) }
func (l *capturingLogger) Error(msg string, args ...any) { l.log("error", msg, args...) }

func (l *capturingLogger) has(level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			return true
		}
	}
	return false
}

func (l *capturingLogger) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fmt.Sprintf("%+v", l.entries)
}
