package invite

import (
	"strings"

	"github.com/goliatone/go-router"
)

// DefaultAdminContextKey is the Locals key AdminGuard stores verified claims under.
const DefaultAdminContextKey = "admin"

// AdminGuardConfig configures AdminGuard.
type AdminGuardConfig struct {
	// Verifier checks the bearer token. Required.
	Verifier TokenVerifier

	// Authorize runs after the token verified. A non nil error rejects the
	// request with 403, see RequireRole.
	Authorize func(claims *TokenClaims) error

	// Filter skips the guard when it returns true.
	Filter func(router.Context) bool

	// ErrorHandler renders rejections. Defaults to the ErrorResponse JSON body.
	ErrorHandler router.ErrorHandler

	// ContextKey for the verified claims (default: "admin")
	ContextKey string

	// AuthScheme expected in the Authorization header (default: "Bearer")
	AuthScheme string

	Logger Logger
}

// AdminGuard protects the administrative routes with a bearer token checked
// by the configured TokenVerifier. Verified requests carry the token subject
// as the actor for activity events.
func AdminGuard(cfg AdminGuardConfig) router.MiddlewareFunc {
	if cfg.Verifier == nil {
		panic("INVITE: admin guard configuration: Verifier is required.")
	}
	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultAdminContextKey
	}
	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}
	logger := normalizeLogger(cfg.Logger)
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(ctx router.Context, err error) error {
			status, body := ErrorResponse(err)
			return ctx.JSON(status, body)
		}
	}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return next(ctx)
			}

			raw, ok := bearerToken(ctx.Header(router.HeaderAuthorization), cfg.AuthScheme)
			if !ok {
				return cfg.ErrorHandler(ctx, newError(ErrUnauthorized, nil, map[string]any{
					"reason": "missing or malformed authorization header",
				}))
			}

			claims, err := cfg.Verifier.Verify(ctx.Context(), raw)
			if err != nil {
				logger.Debug("admin token rejected", "error", err)
				return cfg.ErrorHandler(ctx, newError(ErrUnauthorized, err, nil))
			}

			if cfg.Authorize != nil {
				if err := cfg.Authorize(claims); err != nil {
					logger.Debug("admin access denied", "subject", claims.Subject, "error", err)
					return cfg.ErrorHandler(ctx, newError(ErrForbidden, err, map[string]any{
						"subject": claims.Subject,
					}))
				}
			}

			ctx.Locals(cfg.ContextKey, claims)
			ctx.SetContext(WithActor(ctx.Context(), ActorRef{ID: claims.Subject, Type: "admin"}))

			return next(ctx)
		}
	}
}

// RequireRole accepts tokens whose role claim, or app_metadata.role, is one
// of roles.
func RequireRole(roles ...string) func(*TokenClaims) error {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		if r = strings.ToLower(strings.TrimSpace(r)); r != "" {
			allowed[r] = true
		}
	}

	return func(claims *TokenClaims) error {
		for _, role := range claimRoles(claims) {
			if allowed[strings.ToLower(role)] {
				return nil
			}
		}
		return newError(ErrForbidden, nil, map[string]any{
			"required_roles": roles,
		})
	}
}

func claimRoles(claims *TokenClaims) []string {
	if claims == nil || claims.Raw == nil {
		return nil
	}

	var roles []string
	if role, ok := claims.Raw["role"].(string); ok && role != "" {
		roles = append(roles, role)
	}
	if meta, ok := claims.Raw["app_metadata"].(map[string]any); ok {
		if role, ok := meta["role"].(string); ok && role != "" {
			roles = append(roles, role)
		}
	}
	return roles
}

func bearerToken(header, scheme string) (string, bool) {
	header = strings.TrimSpace(header)
	l := len(scheme)
	if len(header) > l+1 && strings.EqualFold(header[:l], scheme) && header[l] == ' ' {
		if token := strings.TrimSpace(header[l:]); token != "" {
			return token, true
		}
	}
	return "", false
}
