package invite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims are the verified claims of an invitation access token.
type TokenClaims struct {
	Subject   string
	Email     string
	ExpiresAt time.Time
	Raw       jwt.MapClaims
}

// TokenVerifier validates access tokens issued by the identity provider.
type TokenVerifier interface {
	Verify(ctx context.Context, accessToken string) (*TokenClaims, error)
}

// TokenVerifierFunc adapts a function to the TokenVerifier interface.
type TokenVerifierFunc func(ctx context.Context, accessToken string) (*TokenClaims, error)

// Verify implements TokenVerifier.
func (f TokenVerifierFunc) Verify(ctx context.Context, accessToken string) (*TokenClaims, error) {
	return f(ctx, accessToken)
}

// JWTVerifier validates provider access tokens locally.
type JWTVerifier struct {
	keyFunc  jwt.Keyfunc
	methods  []string
	issuer   string
	audience string
	leeway   time.Duration
	logger   Logger
}

// JWTVerifierOption customizes a JWTVerifier.
type JWTVerifierOption func(*JWTVerifier)

// WithVerifierIssuer requires the iss claim to match.
func WithVerifierIssuer(issuer string) JWTVerifierOption {
	return func(v *JWTVerifier) {
		v.issuer = strings.TrimSpace(issuer)
	}
}

// WithVerifierAudience requires the aud claim to contain audience.
func WithVerifierAudience(audience string) JWTVerifierOption {
	return func(v *JWTVerifier) {
		v.audience = strings.TrimSpace(audience)
	}
}

// WithVerifierLeeway allows some clock skew when checking exp and nbf.
func WithVerifierLeeway(d time.Duration) JWTVerifierOption {
	return func(v *JWTVerifier) {
		if d >= 0 {
			v.leeway = d
		}
	}
}

// WithVerifierLogger sets the logger used for background JWK set refresh errors.
func WithVerifierLogger(logger Logger) JWTVerifierOption {
	return func(v *JWTVerifier) {
		v.logger = normalizeLogger(logger)
	}
}

// NewHMACVerifier verifies tokens signed with a shared secret, the GoTrue default.
func NewHMACVerifier(secret []byte, opts ...JWTVerifierOption) *JWTVerifier {
	v := &JWTVerifier{
		keyFunc: func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return secret, nil
		},
		methods: []string{"HS256", "HS384", "HS512"},
	}
	return v.apply(opts...)
}

// NewJWKSVerifier verifies tokens against one or more remote JWK sets.
func NewJWKSVerifier(jwksURLs []string, opts ...JWTVerifierOption) (*JWTVerifier, error) {
	if len(jwksURLs) == 0 {
		return nil, fmt.Errorf("at least one JWKS url is required")
	}

	v := (&JWTVerifier{
		methods: []string{"RS256", "ES256"},
		logger:  defLogger{},
	}).apply(opts...)

	kopts := keyfunc.Options{
		RefreshErrorHandler: v.refreshErrorHandler,
		RefreshInterval:     time.Hour,
		RefreshRateLimit:    time.Minute * 5,
		RefreshTimeout:      time.Second * 10,
		RefreshUnknownKID:   true,
	}

	m := make(map[string]keyfunc.Options, len(jwksURLs))
	for _, u := range jwksURLs {
		m[u] = kopts
	}

	multi, err := keyfunc.GetMultiple(m, keyfunc.MultipleOptions{
		KeySelector: keyfunc.KeySelectorFirst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get JWK set: %w", err)
	}

	v.keyFunc = multi.Keyfunc
	return v, nil
}

func (v *JWTVerifier) refreshErrorHandler(err error) {
	normalizeLogger(v.logger).Warn("failed to do a background refresh of JWT set", "error", err)
}

// NewKeyfuncVerifier wraps an existing jwt.Keyfunc.
func NewKeyfuncVerifier(kf jwt.Keyfunc, methods []string, opts ...JWTVerifierOption) *JWTVerifier {
	v := &JWTVerifier{keyFunc: kf, methods: methods}
	return v.apply(opts...)
}

func (v *JWTVerifier) apply(opts ...JWTVerifierOption) *JWTVerifier {
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// Verify implements TokenVerifier.
func (v *JWTVerifier) Verify(ctx context.Context, accessToken string) (*TokenClaims, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	parserOptions := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if len(v.methods) > 0 {
		parserOptions = append(parserOptions, jwt.WithValidMethods(v.methods))
	}
	if v.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		parserOptions = append(parserOptions, jwt.WithAudience(v.audience))
	}
	if v.leeway > 0 {
		parserOptions = append(parserOptions, jwt.WithLeeway(v.leeway))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(accessToken), claims, v.keyFunc, parserOptions...)
	if err != nil || token == nil || !token.Valid {
		return nil, newError(ErrInvalidToken, err, nil)
	}

	subject, _ := claims.GetSubject()
	if subject == "" {
		return nil, newError(ErrInvalidToken, nil, map[string]any{
			"reason": "missing sub claim",
		})
	}

	out := &TokenClaims{
		Subject: subject,
		Raw:     claims,
	}
	if email, ok := claims["email"].(string); ok {
		out.Email = email
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}

	return out, nil
}
