package invite

import (
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// HTTPConfig configures the HTTP controller.
type HTTPConfig struct {
	// UsersPath for the admin routes (default: "/users")
	UsersPath string

	// AuthPath for the invite and recovery completion routes (default: "/auth")
	AuthPath string

	// AdminMiddleware guards the users routes, see AdminGuard.
	AdminMiddleware []router.MiddlewareFunc

	// Debug prints request payloads
	Debug bool

	Logger Logger
}

// HTTPController exposes the Manager operations as JSON endpoints.
type HTTPController struct {
	manager *Manager
	config  HTTPConfig
	logger  Logger
}

// NewHTTPController creates a new invitation HTTP controller.
func NewHTTPController(manager *Manager, cfg HTTPConfig) *HTTPController {
	if manager == nil {
		panic("Missing Manager in invite controller...")
	}
	if cfg.UsersPath == "" {
		cfg.UsersPath = "/users"
	}
	if cfg.AuthPath == "" {
		cfg.AuthPath = "/auth"
	}

	return &HTTPController{
		manager: manager,
		config:  cfg,
		logger:  normalizeLogger(cfg.Logger),
	}
}

// RegisterRoutes registers the invitation routes.
func (c *HTTPController) RegisterRoutes(group RouteRegistrar) {
	users := strings.TrimRight(c.config.UsersPath, "/")
	authPath := strings.TrimRight(c.config.AuthPath, "/")

	admin := c.config.AdminMiddleware
	if len(admin) == 0 {
		c.logger.Warn("invite admin routes registered without middleware", "path", users)
	}

	group.Post(users, c.CreateUser, admin...).SetName("invite.users.create")
	group.Post(users+"/:id/resend-invite", c.ResendInvite, admin...).SetName("invite.users.resend")
	group.Post(users+"/:id/confirm", c.MarkConfirmed, admin...).SetName("invite.users.confirm")
	group.Post(authPath+"/recovery", c.RequestRecovery).SetName("invite.recovery.request")
	group.Post(authPath+"/invite/complete", c.CompleteInvite).SetName("invite.complete")
	group.Post(authPath+"/recovery/complete", c.CompleteRecovery).SetName("invite.recovery.complete")
}

// CreateUserPayload is the admin request body for POST /users.
type CreateUserPayload struct {
	Email        string         `json:"email"`
	Name         string         `json:"name"`
	Phone        string         `json:"phone"`
	TenantID     string         `json:"tenant_id"`
	UserMetadata map[string]any `json:"user_metadata"`
	AppMetadata  map[string]any `json:"app_metadata"`
}

// Validate will validate the payload
func (r CreateUserPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Name, validation.Length(0, 255)),
	)
}

// RecoveryPayload is the body for POST /auth/recovery.
type RecoveryPayload struct {
	Email string `json:"email"`
}

// Validate will validate the payload
func (r RecoveryPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// CompletePayload carries the credential pair from the link fragment,
// either as separate fields or as the raw fragment.
type CompletePayload struct {
	Fragment     string `json:"fragment"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Type         string `json:"type"`
}

// Validate will validate the payload
func (r CompletePayload) Validate() error {
	if strings.TrimSpace(r.Fragment) != "" {
		return nil
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.AccessToken, validation.Required),
		validation.Field(&r.RefreshToken, validation.Required),
		validation.Field(&r.Type, validation.Required, validation.In(string(TokenTypeInvite), string(TokenTypeRecovery))),
	)
}

// Token returns the InvitationToken described by the payload.
func (r CompletePayload) Token() (InvitationToken, error) {
	if strings.TrimSpace(r.Fragment) != "" {
		return ParseInvitationFragment(r.Fragment)
	}
	return InvitationToken{
		AccessToken:  strings.TrimSpace(r.AccessToken),
		RefreshToken: strings.TrimSpace(r.RefreshToken),
		Type:         TokenType(strings.ToLower(strings.TrimSpace(r.Type))),
	}, nil
}

func (c *HTTPController) CreateUser(ctx router.Context) error {
	payload := new(CreateUserPayload)
	if err := ctx.Bind(payload); err != nil {
		c.logger.Error("create user parse payload", "error", err)
		return c.sendError(ctx, newError(ErrInvalidInput, err, nil))
	}

	if err := payload.Validate(); err != nil {
		return c.sendError(ctx, newError(ErrInvalidInput, err, map[string]any{
			"fields": err.Error(),
		}))
	}

	if c.config.Debug {
		c.logger.Debug("create user payload", "payload", print.MaybePrettyJSON(payload))
	}

	var created *User
	handler := NewCreateUserHandler(c.manager)
	err := handler.Execute(ctx.Context(), CreateUserMessage{
		Email:        payload.Email,
		Name:         payload.Name,
		Phone:        payload.Phone,
		TenantID:     payload.TenantID,
		UserMetadata: payload.UserMetadata,
		AppMetadata:  payload.AppMetadata,
		OnCreated: func(u *User) {
			created = u
		},
	})
	if err != nil {
		return c.sendError(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, created)
}

func (c *HTTPController) ResendInvite(ctx router.Context) error {
	id, err := parseUserID(ctx.Param("id", ""))
	if err != nil {
		return c.sendError(ctx, err)
	}

	var res *ResendResult
	handler := NewResendInviteHandler(c.manager)
	err = handler.Execute(ctx.Context(), ResendInviteMessage{
		UserID: id,
		OnSent: func(r *ResendResult) {
			res = r
		},
	})
	if err != nil {
		return c.sendError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, ResendResponse(res))
}

func (c *HTTPController) MarkConfirmed(ctx router.Context) error {
	id, err := parseUserID(ctx.Param("id", ""))
	if err != nil {
		return c.sendError(ctx, err)
	}

	var confirmed *User
	handler := NewMarkConfirmedHandler(c.manager)
	err = handler.Execute(ctx.Context(), MarkConfirmedMessage{
		UserID: id,
		OnConfirmed: func(u *User) {
			confirmed = u
		},
	})
	if err != nil {
		return c.sendError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, confirmed)
}

// RequestRecovery answers the same way whether or not the email is known.
func (c *HTTPController) RequestRecovery(ctx router.Context) error {
	payload := new(RecoveryPayload)
	if err := ctx.Bind(payload); err != nil {
		return c.sendError(ctx, newError(ErrInvalidInput, err, nil))
	}

	if err := payload.Validate(); err != nil {
		return c.sendError(ctx, newError(ErrInvalidInput, err, map[string]any{
			"fields": err.Error(),
		}))
	}

	if _, err := c.manager.RequestRecovery(ctx.Context(), payload.Email); err != nil {
		return c.sendError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"message": "If the account exists a password reset link has been sent",
	})
}

func (c *HTTPController) CompleteInvite(ctx router.Context) error {
	token, err := c.bindToken(ctx)
	if err != nil {
		return c.sendError(ctx, err)
	}

	user, err := c.manager.CompleteInvite(ctx.Context(), token)
	if err != nil {
		return c.sendError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, user)
}

func (c *HTTPController) CompleteRecovery(ctx router.Context) error {
	token, err := c.bindToken(ctx)
	if err != nil {
		return c.sendError(ctx, err)
	}

	user, err := c.manager.CompleteRecovery(ctx.Context(), token)
	if err != nil {
		return c.sendError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, user)
}

func (c *HTTPController) bindToken(ctx router.Context) (InvitationToken, error) {
	payload := new(CompletePayload)
	if err := ctx.Bind(payload); err != nil {
		return InvitationToken{}, newError(ErrInvalidInput, err, nil)
	}

	if err := payload.Validate(); err != nil {
		return InvitationToken{}, newError(ErrInvalidToken, err, map[string]any{
			"fields": err.Error(),
		})
	}

	return payload.Token()
}

func (c *HTTPController) sendError(ctx router.Context, err error) error {
	status, body := ErrorResponse(err)
	if status >= http.StatusInternalServerError {
		c.logger.Error("invite request failed", "status", status, "error", err)
	} else {
		c.logger.Debug("invite request rejected", "status", status, "error", err)
	}
	return ctx.JSON(status, body)
}

// ResendResponse is the body returned after a successful resend.
func ResendResponse(res *ResendResult) map[string]any {
	email := ""
	if res != nil {
		email = res.Email
	}
	return map[string]any{
		"message": "Invite sent successfully",
		"email":   email,
	}
}

// ErrorResponse maps an error to an HTTP status and JSON body.
func ErrorResponse(err error) (int, map[string]any) {
	var richErr *goerrors.Error
	if err == nil || !goerrors.As(err, &richErr) {
		msg := "internal server error"
		if err != nil {
			msg = err.Error()
		}
		return http.StatusInternalServerError, map[string]any{
			"error": msg,
		}
	}

	status := richErr.Code
	if status == 0 {
		status = statusForCategory(richErr.Category)
	}

	message := richErr.Message
	switch {
	case IsUserNotFound(err):
		message = "User not found"
	case IsAlreadyConfirmed(err):
		message = "User has already confirmed their account"
	case IsProviderFailure(err):
		message = "Failed to send invite"
		if richErr.Source != nil {
			message += ": " + richErr.Source.Error()
		}
	}

	body := map[string]any{
		"error": message,
	}
	if richErr.TextCode != "" {
		body["code"] = richErr.TextCode
	}
	if fields, ok := richErr.Metadata["fields"]; ok {
		body["fields"] = fields
	}

	return status, body
}

func statusForCategory(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func parseUserID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, newError(ErrInvalidInput, err, map[string]any{
			"fields": "id: must be a valid UUID",
		})
	}
	return id, nil
}
