package auth0

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/auth0/go-auth0"
	"github.com/auth0/go-auth0/management"
	invite "github.com/goliatone/go-auth-invite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers struct {
	created   []*management.User
	deleted   []string
	createErr error
	deleteErr error
}

func (f *fakeUsers) Create(ctx context.Context, u *management.User, opts ...management.RequestOption) error {
	if f.createErr != nil {
		return f.createErr
	}
	u.ID = auth0.String("auth0|" + u.GetEmail())
	f.created = append(f.created, u)
	return nil
}

func (f *fakeUsers) Delete(ctx context.Context, id string, opts ...management.RequestOption) error {
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

type fakeTickets struct {
	tickets []*management.Ticket
	link    string
	err     error
}

func (f *fakeTickets) ChangePassword(ctx context.Context, t *management.Ticket, opts ...management.RequestOption) error {
	if f.err != nil {
		return f.err
	}
	t.Ticket = auth0.String(f.link)
	f.tickets = append(f.tickets, t)
	return nil
}

type statusErr struct {
	status int
}

func (e statusErr) Error() string { return http.StatusText(e.status) }
func (e statusErr) Status() int   { return e.status }

func TestInviter_InviteByEmail(t *testing.T) {
	users := &fakeUsers{}
	tickets := &fakeTickets{link: "https://tenant.auth0.com/lo/reset?ticket=abc#"}
	inviter := NewInviterWithAPI(DefaultConfig("tenant.auth0.com", []string{"https://api"}), users, tickets)

	res, err := inviter.InviteByEmail(context.Background(), " Jane@Example.com ", invite.InviteOptions{
		RedirectURL: "http://localhost:5000/auth/set-password",
		DisplayName: "Jane",
		Metadata:    map[string]any{"team": "ops"},
	})
	require.NoError(t, err)

	assert.Equal(t, "auth0|jane@example.com", res.IdentityID)
	assert.Equal(t, "https://tenant.auth0.com/lo/reset?ticket=abc#type=invite", res.Link)

	require.Len(t, users.created, 1)
	created := users.created[0]
	assert.Equal(t, DefaultConnection, created.GetConnection())
	assert.Equal(t, "jane@example.com", created.GetEmail())
	assert.Equal(t, "Jane", created.GetName())
	assert.NotEmpty(t, created.GetPassword())
	require.NotNil(t, created.UserMetadata)
	assert.Equal(t, "ops", (*created.UserMetadata)["team"])

	require.Len(t, tickets.tickets, 1)
	ticket := tickets.tickets[0]
	assert.Equal(t, "auth0|jane@example.com", ticket.GetUserID())
	assert.Equal(t, "http://localhost:5000/auth/set-password", ticket.GetResultURL())
	assert.Equal(t, int(DefaultTicketTTL.Seconds()), ticket.GetTTLSec())
}

func TestInviter_InviteByEmailCreateFailure(t *testing.T) {
	users := &fakeUsers{createErr: statusErr{status: http.StatusConflict}}
	inviter := NewInviterWithAPI(Config{}, users, &fakeTickets{})

	_, err := inviter.InviteByEmail(context.Background(), "jane@example.com", invite.InviteOptions{})
	require.Error(t, err)

	var perr *invite.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, ProviderName, perr.Provider)
	assert.Equal(t, invite.OperationInvite, perr.Operation)
	assert.Equal(t, http.StatusConflict, perr.Status)
}

func TestInviter_InviteByEmailTicketFailureRemovesAccount(t *testing.T) {
	users := &fakeUsers{}
	tickets := &fakeTickets{err: errors.New("rate limited")}
	inviter := NewInviterWithAPI(Config{}, users, tickets)

	_, err := inviter.InviteByEmail(context.Background(), "jane@example.com", invite.InviteOptions{})
	require.Error(t, err)
	assert.Equal(t, []string{"auth0|jane@example.com"}, users.deleted)
}

func TestInviter_DeleteAccountNotFoundIsAbsent(t *testing.T) {
	users := &fakeUsers{deleteErr: statusErr{status: http.StatusNotFound}}
	inviter := NewInviterWithAPI(Config{}, users, &fakeTickets{})

	err := inviter.DeleteAccount(context.Background(), "auth0|gone")
	require.Error(t, err)
	assert.True(t, invite.DefaultDeletionPolicy().IsAccountAbsent(err))
}

func TestInviter_DeleteAccountServerError(t *testing.T) {
	users := &fakeUsers{deleteErr: statusErr{status: http.StatusInternalServerError}}
	inviter := NewInviterWithAPI(Config{}, users, &fakeTickets{})

	err := inviter.DeleteAccount(context.Background(), "auth0|user")
	require.Error(t, err)
	assert.False(t, invite.DefaultDeletionPolicy().IsAccountAbsent(err))
}

func TestInviter_RequestRecovery(t *testing.T) {
	tickets := &fakeTickets{link: "https://tenant.auth0.com/lo/reset?ticket=xyz#"}
	inviter := NewInviterWithAPI(DefaultConfig("tenant.auth0.com", nil), &fakeUsers{}, tickets)

	res, err := inviter.RequestRecovery(context.Background(), "jane@example.com", invite.RecoveryOptions{
		RedirectURL: "http://localhost:5000/auth/reset-password",
		IdentityID:  "auth0|jane",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://tenant.auth0.com/lo/reset?ticket=xyz#type=recovery", res.Link)

	require.Len(t, tickets.tickets, 1)
	ticket := tickets.tickets[0]
	assert.Equal(t, "auth0|jane", ticket.GetUserID())
	assert.Equal(t, "http://localhost:5000/auth/reset-password", ticket.GetResultURL())
	assert.Nil(t, ticket.MarkEmailAsVerified)
}

func TestInviter_RequestRecoveryFailures(t *testing.T) {
	inviter := NewInviterWithAPI(Config{}, &fakeUsers{}, &fakeTickets{err: statusErr{status: http.StatusTooManyRequests}})

	_, err := inviter.RequestRecovery(context.Background(), "jane@example.com", invite.RecoveryOptions{IdentityID: "auth0|jane"})
	require.Error(t, err)
	var perr *invite.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, invite.OperationRecover, perr.Operation)
	assert.Equal(t, http.StatusTooManyRequests, perr.Status)

	_, err = inviter.RequestRecovery(context.Background(), "jane@example.com", invite.RecoveryOptions{})
	require.Error(t, err)
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusNotFound, perr.Status)
}

func TestActionLink(t *testing.T) {
	assert.Equal(t, "", actionLink("", "invite"))
	assert.Equal(t, "https://x/t?ticket=1#type=invite", actionLink("https://x/t?ticket=1", "invite"))
	assert.Equal(t, "https://x/t?ticket=1#type=recovery", actionLink("https://x/t?ticket=1#", "recovery"))
	assert.Equal(t, "https://x/t#a=b&type=invite", actionLink("https://x/t#a=b", "invite"))
}
