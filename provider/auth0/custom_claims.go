package auth0

import (
	"context"
	"encoding/json"
)

// Auth0CustomClaims holds the custom claims read from Auth0 tokens.
type Auth0CustomClaims struct {
	Email         string         `json:"email"`
	EmailVerified bool           `json:"email_verified"`
	Name          string         `json:"name"`
	Metadata      map[string]any `json:"app_metadata"`
	TenantID      string         `json:"tenant_id"`
	Raw           map[string]any `json:"-"`
}

// Validate satisfies validator.CustomClaims.
func (c *Auth0CustomClaims) Validate(ctx context.Context) error {
	return nil
}

// UnmarshalJSON captures both known and raw claims.
func (c *Auth0CustomClaims) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	type alias Auth0CustomClaims
	var decoded alias
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	*c = Auth0CustomClaims(decoded)
	c.Raw = raw
	return nil
}
