package auth0

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/golang-jwt/jwt/v5"
	invite "github.com/goliatone/go-auth-invite"
)

// TokenVerifier validates Auth0-issued access tokens using JWKS.
type TokenVerifier struct {
	config    Config
	validator *validator.Validator
}

// NewTokenVerifier creates a new Auth0 token verifier.
func NewTokenVerifier(cfg Config) (*TokenVerifier, error) {
	issuer := cfg.issuerURL()
	if issuer == "" {
		return nil, fmt.Errorf("auth0: issuer or domain is required")
	}

	issuerURL, err := url.Parse(issuer)
	if err != nil {
		return nil, fmt.Errorf("auth0: invalid issuer URL: %w", err)
	}
	if issuerURL.Scheme == "" || issuerURL.Host == "" {
		return nil, fmt.Errorf("auth0: invalid issuer URL: %s", issuer)
	}

	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 5 * time.Minute
	}

	provider := jwks.NewCachingProvider(issuerURL, cacheTTL)

	customClaims := cfg.CustomClaims
	if customClaims == nil {
		customClaims = func() validator.CustomClaims {
			return &Auth0CustomClaims{}
		}
	}

	jwtValidator, err := validator.New(
		provider.KeyFunc,
		validator.RS256,
		issuerURL.String(),
		cfg.Audience,
		validator.WithCustomClaims(customClaims),
	)
	if err != nil {
		return nil, fmt.Errorf("auth0: failed to create validator: %w", err)
	}

	return &TokenVerifier{
		config:    cfg,
		validator: jwtValidator,
	}, nil
}

// Verify implements invite.TokenVerifier.
func (v *TokenVerifier) Verify(ctx context.Context, accessToken string) (*invite.TokenClaims, error) {
	if ctx == nil {
		ctx = context.Background()
		if v.config.ContextFunc != nil {
			ctx = v.config.ContextFunc()
		}
	}

	token, err := v.validator.ValidateToken(ctx, strings.TrimSpace(accessToken))
	if err != nil {
		return nil, normalizeValidationError(err)
	}

	validated, ok := token.(*validator.ValidatedClaims)
	if !ok || validated == nil || validated.RegisteredClaims.Subject == "" {
		return nil, normalizeValidationError(fmt.Errorf("auth0: token has no subject"))
	}

	out := &invite.TokenClaims{
		Subject: validated.RegisteredClaims.Subject,
		Raw: jwt.MapClaims{
			"iss": validated.RegisteredClaims.Issuer,
			"sub": validated.RegisteredClaims.Subject,
		},
	}
	if validated.RegisteredClaims.Expiry > 0 {
		out.ExpiresAt = time.Unix(validated.RegisteredClaims.Expiry, 0).UTC()
	}

	if custom, ok := validated.CustomClaims.(*Auth0CustomClaims); ok && custom != nil {
		out.Email = custom.Email
		for k, val := range custom.Raw {
			out.Raw[k] = val
		}
	}

	return out, nil
}

func normalizeValidationError(err error) error {
	if err == nil {
		return nil
	}

	clone := invite.ErrInvalidToken.Clone()
	clone.Source = err

	meta := map[string]any{
		"provider": ProviderName,
		"cause":    err.Error(),
	}
	if stderrors.Is(err, jwt.ErrTokenExpired) || strings.Contains(err.Error(), "token is expired") {
		meta["reason"] = "expired"
	}
	return clone.WithMetadata(meta)
}
