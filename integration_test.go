package invite_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	invite "github.com/goliatone/go-auth-invite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider is an in-memory identity provider.
type fakeProvider struct {
	mu       sync.Mutex
	seq      int
	accounts  map[string]string
	recovered []string
	failNext  bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{accounts: map[string]string{}}
}

func (p *fakeProvider) InviteByEmail(ctx context.Context, email string, opts invite.InviteOptions) (*invite.InviteResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failNext {
		p.failNext = false
		return nil, &invite.ProviderError{Provider: "fake", Operation: invite.OperationInvite, Status: 500, Description: "mail server down"}
	}
	p.seq++
	id := fmt.Sprintf("fake|%d", p.seq)
	p.accounts[id] = email
	return &invite.InviteResult{IdentityID: id, Link: opts.RedirectURL + "#type=invite"}, nil
}

func (p *fakeProvider) DeleteAccount(ctx context.Context, identityID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.accounts[identityID]; !ok {
		return &invite.ProviderError{Provider: "fake", Operation: invite.OperationDelete, Status: 404, Code: "user_not_found"}
	}
	delete(p.accounts, identityID)
	return nil
}

func (p *fakeProvider) RequestRecovery(ctx context.Context, email string, opts invite.RecoveryOptions) (*invite.RecoveryResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.accounts[opts.IdentityID] != email {
		return nil, &invite.ProviderError{Provider: "fake", Operation: invite.OperationRecover, Status: 404, Code: "user_not_found"}
	}
	p.recovered = append(p.recovered, email)
	return &invite.RecoveryResult{Link: opts.RedirectURL + "#type=recovery"}, nil
}

func (p *fakeProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.accounts)
}

func TestInvitationLifecycleIntegration(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repos := invite.NewRepositoryManager(db)
	provider := newFakeProvider()
	sink := &capturingSink{}

	manager := invite.NewManager(repos.Users(), repos, provider,
		invite.WithActivitySink(sink),
		invite.WithLogger(&capturingLogger{}),
		invite.WithProviderName("fake"),
	)

	user, err := manager.CreateUser(ctx, invite.CreateUserInput{Email: "Jane@Example.com", Name: "Jane"})
	require.NoError(t, err)
	assert.Equal(t, invite.StateInvited, user.State())
	assert.Equal(t, 1, provider.count())

	_, err = manager.CreateUser(ctx, invite.CreateUserInput{Email: "jane@example.com"})
	require.Error(t, err)
	assert.True(t, invite.IsDuplicateEmail(err))
	assert.Equal(t, 1, provider.count())

	firstExternal := user.ExternalID()
	res, err := manager.ResendInvite(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", res.Email)
	assert.NotEqual(t, firstExternal, res.User.ExternalID())
	assert.Equal(t, 1, provider.count())

	stored, err := repos.Users().GetByID(ctx, user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, res.User.ExternalID(), stored.ExternalID())

	// provider account removed out of band
	require.NoError(t, provider.DeleteAccount(ctx, stored.ExternalID()))
	res, err = manager.ResendInvite(ctx, user.ID)
	require.NoError(t, err)
	deleted := sink.byType(invite.ActivityEventAccountDeleted)
	require.NotEmpty(t, deleted)
	assert.Equal(t, invite.OutcomeSkipped, deleted[len(deleted)-1].Outcome)

	confirmed, err := manager.MarkConfirmed(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, confirmed.IsConfirmed)
	require.NotNil(t, confirmed.ConfirmedAt)
	firstConfirmedAt := *confirmed.ConfirmedAt

	again, err := manager.MarkConfirmed(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, firstConfirmedAt.Equal(*again.ConfirmedAt))

	_, err = manager.ResendInvite(ctx, user.ID)
	require.Error(t, err)
	assert.True(t, invite.IsAlreadyConfirmed(err))

	stored, err = repos.Users().GetByID(ctx, user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, res.User.ExternalID(), stored.ExternalID())
	assert.True(t, stored.IsConfirmed)

	recovery, err := manager.RequestRecovery(ctx, "JANE@example.com")
	require.NoError(t, err)
	assert.Equal(t, manager.RecoveryRedirectURL()+"#type=recovery", recovery.Link)

	recovery, err = manager.RequestRecovery(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, recovery.Link)
	assert.Equal(t, []string{"jane@example.com"}, provider.recovered)
}

func TestProviderFailureIntegration(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repos := invite.NewRepositoryManager(db)
	provider := newFakeProvider()
	provider.failNext = true

	manager := invite.NewManager(repos.Users(), repos, provider, invite.WithLogger(&capturingLogger{}))

	_, err := manager.CreateUser(ctx, invite.CreateUserInput{Email: "sam@example.com"})
	require.Error(t, err)
	assert.True(t, invite.IsProviderFailure(err))

	_, err = repos.Users().GetByEmail(ctx, "sam@example.com")
	require.Error(t, err)

	user, err := manager.CreateUser(ctx, invite.CreateUserInput{Email: "sam@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "sam@example.com", user.Email)
}
