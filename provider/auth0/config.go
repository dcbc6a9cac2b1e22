package auth0

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
)

const (
	// DefaultConnection is the Auth0 database connection invited users are created in.
	DefaultConnection = "Username-Password-Authentication"
	// DefaultTicketTTL is how long the password change ticket stays valid.
	DefaultTicketTTL = 7 * 24 * time.Hour
)

// Config holds Auth0 configuration for invitations and token verification.
type Config struct {
	// Domain is the Auth0 tenant domain (e.g., "example.us.auth0.com").
	Domain string

	// ClientID is the M2M application client ID used for the management API.
	ClientID string

	// ClientSecret is the M2M application client secret.
	ClientSecret string

	// Connection is the database connection users are created in.
	// Default: "Username-Password-Authentication".
	Connection string

	// TicketTTL is the lifetime of the invitation ticket.
	// Default: 7 days.
	TicketTTL time.Duration

	// Audience is the API identifier(s) to validate access tokens against.
	Audience []string

	// Issuer overrides the default issuer URL (optional).
	// Default: "https://{Domain}/".
	Issuer string

	// CacheTTL is how long to cache JWKS keys.
	// Default: 5 minutes.
	CacheTTL time.Duration

	// CustomClaims defines custom claim types to extract.
	CustomClaims func() validator.CustomClaims

	// ContextFunc provides a context for JWKS fetch/validation when the
	// caller context is nil.
	// Default: context.Background.
	ContextFunc func() context.Context
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(domain string, audience []string) Config {
	return Config{
		Domain:     domain,
		Audience:   audience,
		Connection: DefaultConnection,
		TicketTTL:  DefaultTicketTTL,
		CacheTTL:   5 * time.Minute,
	}
}

func (c Config) connection() string {
	if conn := strings.TrimSpace(c.Connection); conn != "" {
		return conn
	}
	return DefaultConnection
}

func (c Config) ticketTTL() time.Duration {
	if c.TicketTTL > 0 {
		return c.TicketTTL
	}
	return DefaultTicketTTL
}

func (c Config) issuerURL() string {
	if c.Issuer != "" {
		return normalizeIssuer(c.Issuer)
	}

	domain := strings.TrimSpace(c.Domain)
	if domain == "" {
		return ""
	}

	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return normalizeIssuer(domain)
	}

	return fmt.Sprintf("https://%s/", strings.TrimSuffix(domain, "/"))
}

func normalizeIssuer(issuer string) string {
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return issuer
	}
	if strings.HasSuffix(issuer, "/") {
		return issuer
	}
	return issuer + "/"
}
