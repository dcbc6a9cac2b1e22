package invite

import (
	"net/url"
	"strconv"
	"strings"
)

// TokenType tells the invite acceptance flow apart from password recovery.
type TokenType string

const (
	TokenTypeInvite   TokenType = "invite"
	TokenTypeRecovery TokenType = "recovery"
)

// InvitationToken is the credential pair delivered in an invitation or
// recovery link fragment.
type InvitationToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Type         TokenType `json:"type"`
	ExpiresIn    int       `json:"expires_in,omitempty"`
}

// Expect fails with ErrTokenTypeMismatch unless the token has the given type.
func (t InvitationToken) Expect(expected TokenType) error {
	if t.Type != expected {
		return newError(ErrTokenTypeMismatch, nil, map[string]any{
			"expected": string(expected),
			"received": string(t.Type),
		})
	}
	if strings.TrimSpace(t.AccessToken) == "" {
		return newError(ErrInvalidToken, nil, map[string]any{
			"reason": "missing access token",
		})
	}
	return nil
}

// ParseInvitationFragment reads the URL fragment of an invitation or
// recovery link. Both "#a=b&c=d" and "a=b&c=d" are accepted, as is a full URL.
// Provider error fragments (error, error_code, error_description) are
// returned as ErrInvalidToken.
func ParseInvitationFragment(fragment string) (InvitationToken, error) {
	raw := strings.TrimSpace(fragment)
	if idx := strings.Index(raw, "#"); idx >= 0 {
		raw = raw[idx+1:]
	}

	values, err := url.ParseQuery(raw)
	if err != nil {
		return InvitationToken{}, newError(ErrInvalidToken, err, map[string]any{
			"reason": "malformed fragment",
		})
	}

	if code := values.Get("error"); code != "" {
		return InvitationToken{}, newError(ErrInvalidToken, nil, map[string]any{
			"error":             code,
			"error_code":        values.Get("error_code"),
			"error_description": values.Get("error_description"),
		})
	}

	token := InvitationToken{
		AccessToken:  values.Get("access_token"),
		RefreshToken: values.Get("refresh_token"),
		Type:         TokenType(strings.ToLower(values.Get("type"))),
	}

	if token.AccessToken == "" || token.RefreshToken == "" {
		return InvitationToken{}, newError(ErrInvalidToken, nil, map[string]any{
			"reason": "invalid or expired link",
		})
	}

	if exp := values.Get("expires_in"); exp != "" {
		if n, err := strconv.Atoi(exp); err == nil {
			token.ExpiresIn = n
		}
	}

	return token, nil
}
