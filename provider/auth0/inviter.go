package auth0

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/auth0/go-auth0"
	"github.com/auth0/go-auth0/management"
	invite "github.com/goliatone/go-auth-invite"
)

// ProviderName labels Auth0 errors and events.
const ProviderName = "auth0"

// UserAPI is the subset of the management users endpoint the inviter uses.
type UserAPI interface {
	Create(ctx context.Context, u *management.User, opts ...management.RequestOption) error
	Delete(ctx context.Context, id string, opts ...management.RequestOption) error
}

// TicketAPI is the subset of the management tickets endpoint the inviter uses.
type TicketAPI interface {
	ChangePassword(ctx context.Context, t *management.Ticket, opts ...management.RequestOption) error
}

// Inviter implements invite.IdentityProvider on the Auth0 management API.
// An invite creates a database connection user with a random password and
// returns a password change ticket the user follows to pick their own.
type Inviter struct {
	config  Config
	users   UserAPI
	tickets TicketAPI
}

// NewInviter creates an Inviter using client credentials from cfg.
func NewInviter(ctx context.Context, cfg Config) (*Inviter, error) {
	domain := strings.TrimSpace(cfg.Domain)
	if domain == "" {
		return nil, fmt.Errorf("auth0: domain is required")
	}

	mgmt, err := management.New(
		domain,
		management.WithClientCredentials(ctx, cfg.ClientID, cfg.ClientSecret),
	)
	if err != nil {
		return nil, fmt.Errorf("auth0: failed to create management client: %w", err)
	}

	return NewInviterWithAPI(cfg, mgmt.User, mgmt.Ticket), nil
}

// NewInviterWithAPI creates an Inviter on top of existing endpoint clients.
func NewInviterWithAPI(cfg Config, users UserAPI, tickets TicketAPI) *Inviter {
	return &Inviter{
		config:  cfg,
		users:   users,
		tickets: tickets,
	}
}

// InviteByEmail implements invite.IdentityProvider.
func (i *Inviter) InviteByEmail(ctx context.Context, email string, opts invite.InviteOptions) (*invite.InviteResult, error) {
	email = invite.NormalizeEmail(email)
	if email == "" {
		return nil, &invite.ProviderError{
			Provider:    ProviderName,
			Operation:   invite.OperationInvite,
			Status:      http.StatusBadRequest,
			Description: "email is required",
		}
	}

	password, err := randomPassword()
	if err != nil {
		return nil, fmt.Errorf("auth0: failed to generate password: %w", err)
	}

	user := &management.User{
		Connection:    auth0.String(i.config.connection()),
		Email:         auth0.String(email),
		Password:      auth0.String(password),
		EmailVerified: auth0.Bool(false),
		VerifyEmail:   auth0.Bool(false),
	}
	if name := strings.TrimSpace(opts.DisplayName); name != "" {
		user.Name = auth0.String(name)
	}
	if len(opts.Metadata) > 0 {
		meta := make(map[string]interface{}, len(opts.Metadata))
		for k, v := range opts.Metadata {
			meta[k] = v
		}
		user.UserMetadata = &meta
	}

	if err := i.users.Create(ctx, user); err != nil {
		return nil, mapError(invite.OperationInvite, err)
	}

	identityID := user.GetID()
	ticket := &management.Ticket{
		UserID:              auth0.String(identityID),
		TTLSec:              auth0.Int(int(i.config.ticketTTL().Seconds())),
		MarkEmailAsVerified: auth0.Bool(true),
	}
	if redirect := strings.TrimSpace(opts.RedirectURL); redirect != "" {
		ticket.ResultURL = auth0.String(redirect)
	}

	if err := i.tickets.ChangePassword(ctx, ticket); err != nil {
		// the account is useless without a ticket
		_ = i.users.Delete(context.WithoutCancel(ctx), identityID)
		return nil, mapError(invite.OperationInvite, err)
	}

	return &invite.InviteResult{
		IdentityID: identityID,
		Link:       actionLink(ticket.GetTicket(), "invite"),
	}, nil
}

// DeleteAccount implements invite.IdentityProvider.
func (i *Inviter) DeleteAccount(ctx context.Context, identityID string) error {
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return &invite.ProviderError{
			Provider:    ProviderName,
			Operation:   invite.OperationDelete,
			Status:      http.StatusNotFound,
			Code:        "user_not_found",
			Description: "identity id is required",
		}
	}

	if err := i.users.Delete(ctx, identityID); err != nil {
		return mapError(invite.OperationDelete, err)
	}
	return nil
}

// RequestRecovery implements invite.IdentityProvider. Auth0 does not mail
// tickets created through the management API, the link is returned instead.
func (i *Inviter) RequestRecovery(ctx context.Context, email string, opts invite.RecoveryOptions) (*invite.RecoveryResult, error) {
	identityID := strings.TrimSpace(opts.IdentityID)
	if identityID == "" {
		return nil, &invite.ProviderError{
			Provider:    ProviderName,
			Operation:   invite.OperationRecover,
			Status:      http.StatusNotFound,
			Code:        "inexistent_user",
			Description: "identity id is required",
		}
	}

	ticket := &management.Ticket{
		UserID: auth0.String(identityID),
		TTLSec: auth0.Int(int(i.config.ticketTTL().Seconds())),
	}
	if redirect := strings.TrimSpace(opts.RedirectURL); redirect != "" {
		ticket.ResultURL = auth0.String(redirect)
	}

	if err := i.tickets.ChangePassword(ctx, ticket); err != nil {
		return nil, mapError(invite.OperationRecover, err)
	}

	return &invite.RecoveryResult{
		Link: actionLink(ticket.GetTicket(), "recovery"),
	}, nil
}

// actionLink tags a ticket URL with the link type the web app dispatches on.
func actionLink(ticket, linkType string) string {
	if ticket == "" {
		return ""
	}
	if strings.HasSuffix(ticket, "#") {
		return ticket + "type=" + linkType
	}
	if strings.Contains(ticket, "#") {
		return ticket + "&type=" + linkType
	}
	return ticket + "#type=" + linkType
}

func mapError(operation string, err error) error {
	perr := &invite.ProviderError{
		Provider:    ProviderName,
		Operation:   operation,
		Description: err.Error(),
		Err:         err,
	}

	var mErr management.Error
	if errors.As(err, &mErr) {
		perr.Status = mErr.Status()
		if perr.Status == http.StatusNotFound {
			perr.Code = "inexistent_user"
		}
	}
	return perr
}

func randomPassword() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	// satisfies the default connection password policy character classes
	return base64.RawURLEncoding.EncodeToString(buf) + "aA1!", nil
}
