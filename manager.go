package invite

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

const (
	DefaultWebBaseURL   = "http://localhost:5000"
	SetPasswordPath     = "/auth/set-password"
	ResetPasswordPath   = "/auth/reset-password"
	DefaultPhoneRegion  = "US"
	defaultProviderName = "identity"
)

// CreateUserInput is the administrative request to create and invite a user.
type CreateUserInput struct {
	Email        string         `json:"email"`
	Name         string         `json:"name,omitempty"`
	Phone        string         `json:"phone,omitempty"`
	TenantID     string         `json:"tenant_id,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
}

// Validate checks the input fields.
func (i CreateUserInput) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Email, validation.Required, is.Email, validation.Length(3, 320)),
		validation.Field(&i.Name, validation.Length(0, 255)),
		validation.Field(&i.TenantID, validation.Length(0, 255)),
	)
}

// ResendResult is returned by ResendInvite.
type ResendResult struct {
	Email string `json:"email"`
	User  *User  `json:"-"`
}

// Manager orchestrates the invitation lifecycle between the record store
// and the identity provider.
type Manager struct {
	users          UserStore
	tx             TxRunner
	provider       IdentityProvider
	providerName   string
	stateMachine   InvitationStateMachine
	verifier       TokenVerifier
	logger         Logger
	activitySink   ActivitySink
	now            func() time.Time
	redirectURL    string
	recoveryURL    string
	deletionPolicy DeletionPolicy
	strictDeletion bool
	hashIDs        bool
	phoneRegion    string
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithActivitySink sets the ActivitySink operations report to.
func WithActivitySink(sink ActivitySink) ManagerOption {
	return func(m *Manager) {
		m.activitySink = normalizeActivitySink(sink)
	}
}

// WithClock injects a custom clock.
func WithClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithWebBaseURL derives the set-password and reset-password redirects from
// the web app base URL.
func WithWebBaseURL(baseURL string) ManagerOption {
	return func(m *Manager) {
		if base := strings.TrimRight(strings.TrimSpace(baseURL), "/"); base != "" {
			m.redirectURL = base + SetPasswordPath
			m.recoveryURL = RecoveryRedirectURL(base)
		}
	}
}

// WithRecoveryRedirectURL sets the full reset-password redirect.
func WithRecoveryRedirectURL(redirect string) ManagerOption {
	return func(m *Manager) {
		if r := strings.TrimSpace(redirect); r != "" {
			m.recoveryURL = r
		}
	}
}

// WithRedirectURL sets the full set-password redirect.
func WithRedirectURL(redirect string) ManagerOption {
	return func(m *Manager) {
		if r := strings.TrimSpace(redirect); r != "" {
			m.redirectURL = r
		}
	}
}

// WithDeletionPolicy replaces the "account already absent" allow-list.
func WithDeletionPolicy(policy DeletionPolicy) ManagerOption {
	return func(m *Manager) {
		m.deletionPolicy = policy
	}
}

// WithStrictDeletion makes non allow-listed deletion failures abort ResendInvite.
func WithStrictDeletion() ManagerOption {
	return func(m *Manager) {
		m.strictDeletion = true
	}
}

// WithStateMachine overrides the invitation state machine.
func WithStateMachine(sm InvitationStateMachine) ManagerOption {
	return func(m *Manager) {
		if sm != nil {
			m.stateMachine = sm
		}
	}
}

// WithTokenVerifier sets the verifier used by CompleteInvite and CompleteRecovery.
func WithTokenVerifier(v TokenVerifier) ManagerOption {
	return func(m *Manager) {
		m.verifier = v
	}
}

// WithProviderName labels provider errors and events.
func WithProviderName(name string) ManagerOption {
	return func(m *Manager) {
		if n := strings.TrimSpace(name); n != "" {
			m.providerName = n
		}
	}
}

// WithHashidIDs derives user ids from the email address.
func WithHashidIDs() ManagerOption {
	return func(m *Manager) {
		m.hashIDs = true
	}
}

// WithPhoneRegion sets the region used to parse numbers without a country code.
func WithPhoneRegion(region string) ManagerOption {
	return func(m *Manager) {
		if r := strings.ToUpper(strings.TrimSpace(region)); r != "" {
			m.phoneRegion = r
		}
	}
}

// NewManager wires the lifecycle manager.
func NewManager(users UserStore, tx TxRunner, provider IdentityProvider, opts ...ManagerOption) *Manager {
	m := &Manager{
		users:          users,
		tx:             tx,
		provider:       provider,
		providerName:   defaultProviderName,
		logger:         defLogger{},
		activitySink:   noopActivitySink{},
		now:            time.Now,
		redirectURL:    DefaultWebBaseURL + SetPasswordPath,
		recoveryURL:    DefaultWebBaseURL + ResetPasswordPath,
		deletionPolicy: DefaultDeletionPolicy(),
		phoneRegion:    DefaultPhoneRegion,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	if m.stateMachine == nil {
		m.stateMachine = NewInvitationStateMachine(
			WithStateMachineActivitySink(m.activitySink),
			WithStateMachineLogger(m.logger),
			WithStateMachineClock(m.now),
		)
	}

	return m
}

// RedirectURL is the set-password URL sent with every invite.
func (m *Manager) RedirectURL() string {
	return m.redirectURL
}

// RecoveryRedirectURL is the reset-password URL sent with recovery requests.
func (m *Manager) RecoveryRedirectURL() string {
	return m.recoveryURL
}

// CreateUser validates the input, issues the invite and persists the record.
// The record is only written once the provider accepted the invite; a failed
// write rolls back the provider account.
func (m *Manager) CreateUser(ctx context.Context, input CreateUserInput) (*User, error) {
	actor := m.actor(ctx)

	normalized, err := m.normalizeInput(input)
	if err != nil {
		m.recordFailure(ctx, ActivityEventUserCreated, actor, nil, input.Email, err)
		return nil, err
	}

	existing, err := m.users.GetByEmail(ctx, normalized.Email)
	if err == nil && existing != nil {
		dupErr := newError(ErrDuplicateEmail, nil, map[string]any{
			"email":   normalized.Email,
			"user_id": existing.ID.String(),
		})
		m.recordFailure(ctx, ActivityEventUserCreated, actor, existing, normalized.Email, dupErr)
		return nil, dupErr
	}
	if err != nil && !isRecordNotFound(err) {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to look up user by email").
			WithMetadata(map[string]any{"email": normalized.Email})
	}

	record := &User{
		Email:        normalized.Email,
		Name:         normalized.Name,
		Phone:        normalized.Phone,
		TenantID:     normalized.TenantID,
		UserMetadata: copyMap(normalized.UserMetadata),
		AppMetadata:  copyMap(normalized.AppMetadata),
		IsActive:     true,
	}

	if m.hashIDs {
		id, err := hashid.NewUUID(record.Email)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to derive user id")
		}
		record.ID = id
	}

	created, err := m.stateMachine.Transition(ctx, actor, record, StateInvited, m.issueAndPersist,
		WithTransitionReason("user created"),
	)
	if err != nil {
		m.recordFailure(ctx, ActivityEventUserCreated, actor, record, record.Email, err)
		return nil, err
	}

	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventUserCreated,
		Actor:     actor,
		UserID:    created.ID.String(),
		Email:     created.Email,
		FromState: StateUninvited,
		ToState:   StateInvited,
		Outcome:   OutcomeSuccess,
	})

	return created, nil
}

func (m *Manager) issueAndPersist(ctx context.Context, tc TransitionContext) (*User, error) {
	record := tc.User

	res, err := m.issueInvite(ctx, tc.Actor, record)
	if err != nil {
		return nil, err
	}

	record.ExternalIdentityID = stringPtr(res.IdentityID)
	record.IsConfirmed = false

	var created *User
	err = m.tx.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var txErr error
		created, txErr = m.users.CreateTx(ctx, tx, record)
		return txErr
	})
	if err != nil {
		if isUniqueViolation(err) {
			if m.ownedByStoredRecord(ctx, record.Email, res.IdentityID) {
				m.logger.Info("provider account belongs to the stored record, skipping rollback",
					"email", record.Email, "identity_id", res.IdentityID)
			} else {
				m.compensate(ctx, tc.Actor, record, res.IdentityID, err)
			}
			return nil, newError(ErrDuplicateEmail, err, map[string]any{
				"email": record.Email,
			})
		}
		m.compensate(ctx, tc.Actor, record, res.IdentityID, err)
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to persist invited user").
			WithMetadata(map[string]any{"email": record.Email})
	}

	if created == nil {
		created = record
	}
	return created, nil
}

// ResendInvite replaces the provider account of an unconfirmed user and
// sends a fresh invite.
func (m *Manager) ResendInvite(ctx context.Context, id uuid.UUID) (*ResendResult, error) {
	actor := m.actor(ctx)

	user, err := m.getUser(ctx, id)
	if err != nil {
		m.recordFailure(ctx, ActivityEventInviteResent, actor, &User{ID: id}, "", err)
		return nil, err
	}

	updated, err := m.stateMachine.Transition(ctx, actor, user, StateInvited, m.reissue,
		WithTransitionReason("invite resent"),
	)
	if err != nil {
		m.recordFailure(ctx, ActivityEventInviteResent, actor, user, user.Email, err)
		return nil, err
	}

	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventInviteResent,
		Actor:     actor,
		UserID:    updated.ID.String(),
		Email:     updated.Email,
		FromState: user.State(),
		ToState:   StateInvited,
		Outcome:   OutcomeSuccess,
	})

	return &ResendResult{Email: updated.Email, User: updated}, nil
}

func (m *Manager) reissue(ctx context.Context, tc TransitionContext) (*User, error) {
	user := tc.User

	if user.HasExternalIdentity() {
		if err := m.deleteAccount(ctx, tc.Actor, user); err != nil {
			return nil, err
		}
	}

	res, err := m.issueInvite(ctx, tc.Actor, user)
	if err != nil {
		return nil, err
	}

	var updated *User
	err = m.tx.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var txErr error
		updated, txErr = m.users.UpdateInvitationTx(ctx, tx, user.ID, res.IdentityID)
		return txErr
	})
	if err != nil {
		m.compensate(ctx, tc.Actor, user, res.IdentityID, err)
		if IsAlreadyConfirmed(err) {
			return nil, err
		}
		if isRecordNotFound(err) {
			return nil, newError(ErrUserNotFound, err, map[string]any{
				"user_id": user.ID.String(),
			})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to store reissued invite").
			WithMetadata(map[string]any{"user_id": user.ID.String()})
	}

	if updated == nil {
		updated = user.Clone()
		updated.ExternalIdentityID = stringPtr(res.IdentityID)
		updated.IsConfirmed = false
	}
	return updated, nil
}

// MarkConfirmed records invite completion. Calling it again is a no-op that
// returns the stored record.
func (m *Manager) MarkConfirmed(ctx context.Context, id uuid.UUID) (*User, error) {
	actor := m.actor(ctx)

	user, err := m.getUser(ctx, id)
	if err != nil {
		m.recordFailure(ctx, ActivityEventUserConfirmed, actor, &User{ID: id}, "", err)
		return nil, err
	}

	if user.IsConfirmed {
		m.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventUserConfirmed,
			Actor:     actor,
			UserID:    user.ID.String(),
			Email:     user.Email,
			FromState: StateConfirmed,
			ToState:   StateConfirmed,
			Outcome:   OutcomeSkipped,
		})
		return user, nil
	}

	from := user.State()
	confirmed, err := m.stateMachine.Transition(ctx, actor, user, StateConfirmed, m.persistConfirmation,
		WithTransitionReason("invite accepted"),
	)
	if err != nil {
		m.recordFailure(ctx, ActivityEventUserConfirmed, actor, user, user.Email, err)
		return nil, err
	}

	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventUserConfirmed,
		Actor:     actor,
		UserID:    confirmed.ID.String(),
		Email:     confirmed.Email,
		FromState: from,
		ToState:   StateConfirmed,
		Outcome:   OutcomeSuccess,
	})

	return confirmed, nil
}

func (m *Manager) persistConfirmation(ctx context.Context, tc TransitionContext) (*User, error) {
	user := tc.User
	now := m.now()

	var updated *User
	err := m.tx.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var txErr error
		updated, txErr = m.users.MarkConfirmedTx(ctx, tx, user.ID, now)
		return txErr
	})
	if err != nil {
		if isRecordNotFound(err) {
			return nil, newError(ErrUserNotFound, err, map[string]any{
				"user_id": user.ID.String(),
			})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to mark user confirmed").
			WithMetadata(map[string]any{"user_id": user.ID.String()})
	}

	if updated == nil {
		updated = user.Clone()
		updated.IsConfirmed = true
		if updated.ConfirmedAt == nil {
			updated.ConfirmedAt = &now
		}
	}
	return updated, nil
}

// CompleteInvite is called once the invited user set a password. Only invite
// tokens are accepted.
func (m *Manager) CompleteInvite(ctx context.Context, token InvitationToken) (*User, error) {
	user, err := m.resolveToken(ctx, token, TokenTypeInvite)
	if err != nil {
		m.recordFailure(ctx, ActivityEventUserConfirmed, m.actor(ctx), user, "", err)
		return nil, err
	}
	return m.MarkConfirmed(WithActor(ctx, ActorRef{ID: user.ID.String(), Type: "user"}), user.ID)
}

// CompleteRecovery is called once a user reset their password. Only recovery
// tokens are accepted and confirmation state is left as is.
func (m *Manager) CompleteRecovery(ctx context.Context, token InvitationToken) (*User, error) {
	actor := m.actor(ctx)

	user, err := m.resolveToken(ctx, token, TokenTypeRecovery)
	if err != nil {
		m.recordFailure(ctx, ActivityEventRecoveryCompleted, actor, user, "", err)
		return nil, err
	}

	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventRecoveryCompleted,
		Actor:     ActorRef{ID: user.ID.String(), Type: "user"},
		UserID:    user.ID.String(),
		Email:     user.Email,
		Outcome:   OutcomeSuccess,
	})
	return user, nil
}

// RequestRecovery asks the identity provider to start a password reset.
// Unknown emails and users that were never invited are skipped without an
// error so callers cannot enumerate registered addresses.
func (m *Manager) RequestRecovery(ctx context.Context, email string) (*RecoveryResult, error) {
	actor := m.actor(ctx)
	email = NormalizeEmail(email)

	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		invalid := newError(ErrInvalidInput, err, map[string]any{
			"fields": "email: " + err.Error(),
		})
		m.recordFailure(ctx, ActivityEventRecoveryRequested, actor, nil, email, invalid)
		return nil, invalid
	}

	user, err := m.users.GetByEmail(ctx, email)
	if err != nil && !isRecordNotFound(err) {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to look up user by email").
			WithMetadata(map[string]any{"email": email})
	}

	if user == nil || !user.HasExternalIdentity() {
		reason := "unknown email"
		if user != nil {
			reason = "user was never invited"
		}
		m.logger.Debug("recovery request skipped", "email", email, "reason", reason)
		m.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventRecoveryRequested,
			Actor:     actor,
			UserID:    idString(user),
			Email:     email,
			Outcome:   OutcomeSkipped,
			Metadata:  map[string]any{"reason": reason},
		})
		return &RecoveryResult{}, nil
	}

	res, err := m.provider.RequestRecovery(ctx, user.Email, RecoveryOptions{
		RedirectURL: m.recoveryURL,
		IdentityID:  user.ExternalID(),
	})
	if err != nil {
		m.logger.Error("failed to request recovery", "email", user.Email, "error", err)
		m.recordFailure(ctx, ActivityEventRecoveryRequested, actor, user, user.Email, err)
		return nil, wrapProviderError(ErrProviderFailure, m.providerName, OperationRecover, err, map[string]any{
			"user_id": user.ID.String(),
			"email":   user.Email,
		})
	}
	if res == nil {
		res = &RecoveryResult{}
	}

	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventRecoveryRequested,
		Actor:     actor,
		UserID:    user.ID.String(),
		Email:     user.Email,
		FromState: user.State(),
		ToState:   user.State(),
		Outcome:   OutcomeSuccess,
		Metadata:  map[string]any{"identity_id": user.ExternalID()},
	})

	return res, nil
}

func (m *Manager) resolveToken(ctx context.Context, token InvitationToken, expected TokenType) (*User, error) {
	if err := token.Expect(expected); err != nil {
		return nil, err
	}

	if m.verifier == nil {
		return nil, newError(ErrInvalidToken, nil, map[string]any{
			"reason": "no token verifier configured",
		})
	}

	claims, err := m.verifier.Verify(ctx, token.AccessToken)
	if err != nil {
		if IsInvalidToken(err) {
			return nil, err
		}
		return nil, newError(ErrInvalidToken, err, nil)
	}

	user, err := m.users.GetByExternalIdentityID(ctx, claims.Subject)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, newError(ErrUserNotFound, err, map[string]any{
				"external_identity_id": claims.Subject,
			})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to look up user by identity")
	}
	return user, nil
}

func (m *Manager) issueInvite(ctx context.Context, actor ActorRef, user *User) (*InviteResult, error) {
	res, err := m.provider.InviteByEmail(ctx, user.Email, InviteOptions{
		RedirectURL: m.redirectURL,
		DisplayName: user.DisplayName(),
		Metadata:    copyMap(user.UserMetadata),
	})
	if err == nil && (res == nil || strings.TrimSpace(res.IdentityID) == "") {
		err = &ProviderError{
			Provider:    m.providerName,
			Operation:   OperationInvite,
			Description: "provider returned no identity id",
		}
	}

	if err != nil {
		m.logger.Error("failed to send invite", "email", user.Email, "error", err)
		m.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventInviteIssued,
			Actor:     actor,
			UserID:    idString(user),
			Email:     user.Email,
			Outcome:   OutcomeFailure,
			Metadata:  map[string]any{"error": err.Error()},
		})
		return nil, wrapProviderError(ErrProviderFailure, m.providerName, OperationInvite, err, map[string]any{
			"email": user.Email,
		})
	}

	m.logger.Debug("invite sent", "email", user.Email, "identity_id", res.IdentityID)
	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventInviteIssued,
		Actor:     actor,
		UserID:    idString(user),
		Email:     user.Email,
		Outcome:   OutcomeSuccess,
		Metadata:  map[string]any{"identity_id": res.IdentityID},
	})
	return res, nil
}

// deleteAccount removes the previous provider account. Failures are
// reported but only returned in strict mode.
func (m *Manager) deleteAccount(ctx context.Context, actor ActorRef, user *User) error {
	identityID := user.ExternalID()
	err := m.provider.DeleteAccount(ctx, identityID)

	event := ActivityEvent{
		EventType: ActivityEventAccountDeleted,
		Actor:     actor,
		UserID:    idString(user),
		Email:     user.Email,
		Metadata:  map[string]any{"identity_id": identityID},
	}

	switch {
	case err == nil:
		event.Outcome = OutcomeSuccess
		m.logger.Debug("deleted provider account", "user_id", event.UserID, "identity_id", identityID)
	case m.deletionPolicy.IsAccountAbsent(err):
		event.Outcome = OutcomeSkipped
		event.Metadata["error"] = err.Error()
		m.logger.Info("provider account already absent", "user_id", event.UserID, "identity_id", identityID)
	default:
		event.Outcome = OutcomeFailure
		event.Metadata["error"] = err.Error()
		m.logger.Error("failed to delete provider account", "user_id", event.UserID, "identity_id", identityID, "error", err)
	}

	m.recordActivity(ctx, event)

	if event.Outcome == OutcomeFailure && m.strictDeletion {
		return wrapProviderError(ErrProviderFailure, m.providerName, OperationDelete, err, map[string]any{
			"user_id": event.UserID,
		})
	}
	return nil
}

// ownedByStoredRecord reports whether the record that won a create race
// references identityID. Providers that re-invite an existing email return
// the same account, which must then survive the losing create.
func (m *Manager) ownedByStoredRecord(ctx context.Context, email, identityID string) bool {
	existing, err := m.users.GetByEmail(context.WithoutCancel(ctx), email)
	if err != nil || existing == nil {
		return false
	}
	return existing.ExternalID() == identityID
}

// compensate deletes a provider account whose record could not be written.
func (m *Manager) compensate(ctx context.Context, actor ActorRef, user *User, identityID string, cause error) {
	ctx = context.WithoutCancel(ctx)
	err := m.provider.DeleteAccount(ctx, identityID)

	event := ActivityEvent{
		EventType: ActivityEventCompensation,
		Actor:     actor,
		UserID:    idString(user),
		Email:     user.Email,
		Outcome:   OutcomeSuccess,
		Metadata: map[string]any{
			"identity_id": identityID,
			"cause":       cause.Error(),
		},
	}

	if err != nil && !m.deletionPolicy.IsAccountAbsent(err) {
		event.Outcome = OutcomeFailure
		event.Metadata["error"] = err.Error()
		m.logger.Error("failed to roll back provider account", "email", user.Email, "identity_id", identityID, "error", err, "cause", cause)
	} else {
		m.logger.Warn("rolled back provider account after store failure", "email", user.Email, "identity_id", identityID, "cause", cause)
	}

	m.recordActivity(ctx, event)
}

func (m *Manager) getUser(ctx context.Context, id uuid.UUID) (*User, error) {
	if id == uuid.Nil {
		return nil, newError(ErrUserNotFound, nil, map[string]any{
			"user_id": id.String(),
		})
	}

	user, err := m.users.GetByID(ctx, id.String())
	if err != nil {
		if isRecordNotFound(err) {
			return nil, newError(ErrUserNotFound, err, map[string]any{
				"user_id": id.String(),
			})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to load user").
			WithMetadata(map[string]any{"user_id": id.String()})
	}
	if user == nil {
		return nil, newError(ErrUserNotFound, nil, map[string]any{
			"user_id": id.String(),
		})
	}
	return user, nil
}

func (m *Manager) normalizeInput(input CreateUserInput) (CreateUserInput, error) {
	input.Email = NormalizeEmail(input.Email)
	input.Name = strings.TrimSpace(input.Name)
	input.TenantID = strings.TrimSpace(input.TenantID)
	input.Phone = strings.TrimSpace(input.Phone)

	if err := input.Validate(); err != nil {
		return input, newError(ErrInvalidInput, err, map[string]any{
			"fields": err.Error(),
		})
	}

	if input.Phone != "" {
		phone, err := NormalizePhone(input.Phone, m.phoneRegion)
		if err != nil {
			return input, newError(ErrInvalidInput, err, map[string]any{
				"fields": "phone: " + err.Error(),
			})
		}
		input.Phone = phone
	}

	return input, nil
}

// NormalizePhone returns the E.164 form of a phone number.
func NormalizePhone(raw, region string) (string, error) {
	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", err
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", errors.New("must be a valid phone number")
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// RecoveryRedirectURL returns the reset-password URL for a web base URL.
func RecoveryRedirectURL(baseURL string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = DefaultWebBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		base = DefaultWebBaseURL
	}
	return base + ResetPasswordPath
}

func (m *Manager) actor(ctx context.Context) ActorRef {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor
	}
	return ActorRef{Type: "system"}
}

func (m *Manager) recordFailure(ctx context.Context, eventType ActivityEventType, actor ActorRef, user *User, email string, err error) {
	if email == "" && user != nil {
		email = user.Email
	}
	m.recordActivity(ctx, ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		UserID:    idString(user),
		Email:     email,
		Outcome:   OutcomeFailure,
		Metadata:  map[string]any{"error": err.Error()},
	})
}

func (m *Manager) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = m.now()
	}

	sink := normalizeActivitySink(m.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		m.logger.Warn("invite activity sink error", "event", string(event.EventType), "error", err)
	}
}

func idString(user *User) string {
	if user == nil || user.ID == uuid.Nil {
		return ""
	}
	return user.ID.String()
}
