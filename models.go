package invite

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// InvitationState is the lifecycle position of a user record.
type InvitationState string

const (
	// StateUninvited means no invite was ever issued for the record.
	StateUninvited InvitationState = "uninvited"
	// StateInvited means an invite was issued and not yet accepted.
	StateInvited InvitationState = "invited"
	// StateConfirmed means the user set a password. Terminal.
	StateConfirmed InvitationState = "confirmed"
)

// User is the invited user record
type User struct {
	bun.BaseModel      `bun:"table:users,alias:usr"`
	ID                 uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email              string         `bun:"email,notnull,unique" json:"email,omitempty"`
	Name               string         `bun:"name" json:"name,omitempty"`
	Phone              string         `bun:"phone" json:"phone,omitempty"`
	TenantID           string         `bun:"tenant_id" json:"tenant_id,omitempty"`
	ExternalIdentityID *string        `bun:"external_identity_id" json:"external_identity_id,omitempty"`
	IsConfirmed        bool           `bun:"is_confirmed,notnull" json:"is_confirmed"`
	IsActive           bool           `bun:"is_active,notnull" json:"is_active"`
	ConfirmedAt        *time.Time     `bun:"confirmed_at,nullzero" json:"confirmed_at,omitempty"`
	LastSignInAt       *time.Time     `bun:"last_sign_in_at,nullzero" json:"last_sign_in_at,omitempty"`
	UserMetadata       map[string]any `bun:"user_metadata" json:"user_metadata,omitempty"`
	AppMetadata        map[string]any `bun:"app_metadata" json:"app_metadata,omitempty"`
	CreatedAt          *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt          *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// State derives the invitation state from the record fields.
func (u *User) State() InvitationState {
	if u == nil {
		return ""
	}
	if u.IsConfirmed {
		return StateConfirmed
	}
	if u.HasExternalIdentity() {
		return StateInvited
	}
	return StateUninvited
}

// HasExternalIdentity reports whether an invite was issued at least once.
func (u *User) HasExternalIdentity() bool {
	return u != nil && u.ExternalIdentityID != nil && *u.ExternalIdentityID != ""
}

// ExternalID returns the identity provider reference or an empty string.
func (u *User) ExternalID() string {
	if !u.HasExternalIdentity() {
		return ""
	}
	return *u.ExternalIdentityID
}

// DisplayName is what the identity provider shows in the invite.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if name := strings.TrimSpace(u.Name); name != "" {
		return name
	}
	return u.Email
}

// AddUserMetadata will append information to the user metadata attribute
func (u *User) AddUserMetadata(key string, val any) *User {
	if u.UserMetadata == nil {
		u.UserMetadata = make(map[string]any)
	}
	u.UserMetadata[key] = val
	return u
}

// Clone returns a shallow copy with its own pointers and maps.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.ExternalIdentityID != nil {
		id := *u.ExternalIdentityID
		c.ExternalIdentityID = &id
	}
	c.ConfirmedAt = cloneTime(u.ConfirmedAt)
	c.LastSignInAt = cloneTime(u.LastSignInAt)
	c.CreatedAt = cloneTime(u.CreatedAt)
	c.UpdatedAt = cloneTime(u.UpdatedAt)
	c.UserMetadata = copyMap(u.UserMetadata)
	c.AppMetadata = copyMap(u.AppMetadata)
	return &c
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func stringPtr(s string) *string {
	return &s
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyMap(source map[string]any) map[string]any {
	if source == nil {
		return nil
	}
	out := make(map[string]any, len(source))
	for k, v := range source {
		out[k] = v
	}
	return out
}
