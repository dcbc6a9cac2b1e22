package gotrue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	invite "github.com/goliatone/go-auth-invite"
	"github.com/google/uuid"
	sdk "github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
)

// ProviderName labels GoTrue errors and events.
const ProviderName = "gotrue"

// DefaultTimeout bounds every admin API call.
const DefaultTimeout = 10 * time.Second

// DisplayNameKey is the user metadata key GoTrue dashboards read the name from.
const DisplayNameKey = "displayName"

// Config holds the GoTrue admin API settings.
type Config struct {
	// URL is the GoTrue base URL (e.g., "https://xyz.supabase.co/auth/v1").
	URL string

	// ServiceKey is the service role key used for admin calls.
	ServiceKey string

	// Timeout for each request.
	// Default: 10 seconds.
	Timeout time.Duration

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// Client implements invite.IdentityProvider on the supabase GoTrue SDK.
type Client struct {
	api  sdk.Client
	http http.Client
}

// New creates a GoTrue admin client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, fmt.Errorf("gotrue: url is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("gotrue: invalid url: %w", err)
	}
	key := strings.TrimSpace(cfg.ServiceKey)
	if key == "" {
		return nil, fmt.Errorf("gotrue: service key is required")
	}

	httpClient := http.Client{Timeout: cfg.Timeout}
	if cfg.HTTPClient != nil {
		httpClient = *cfg.HTTPClient
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = DefaultTimeout
	}

	return &Client{
		api:  sdk.New("", key).WithCustomGoTrueURL(base).WithToken(key),
		http: httpClient,
	}, nil
}

// InviteByEmail implements invite.IdentityProvider.
func (c *Client) InviteByEmail(ctx context.Context, email string, opts invite.InviteOptions) (*invite.InviteResult, error) {
	req := types.InviteRequest{
		Email: invite.NormalizeEmail(email),
		Data:  map[string]interface{}{},
	}
	for k, v := range opts.Metadata {
		req.Data[k] = v
	}
	if name := strings.TrimSpace(opts.DisplayName); name != "" {
		req.Data[DisplayNameKey] = name
	}

	res, err := c.with(ctx, opts.RedirectURL).Invite(req)
	if err != nil {
		return nil, mapError(invite.OperationInvite, err)
	}

	if res == nil || res.ID == uuid.Nil {
		return nil, &invite.ProviderError{
			Provider:    ProviderName,
			Operation:   invite.OperationInvite,
			Description: "response did not include a user id",
		}
	}

	return &invite.InviteResult{IdentityID: res.ID.String()}, nil
}

// DeleteAccount implements invite.IdentityProvider. GoTrue user ids are
// UUIDs, anything else cannot exist upstream and is reported as absent.
func (c *Client) DeleteAccount(ctx context.Context, identityID string) error {
	id, err := uuid.Parse(strings.TrimSpace(identityID))
	if err != nil || id == uuid.Nil {
		return &invite.ProviderError{
			Provider:    ProviderName,
			Operation:   invite.OperationDelete,
			Status:      http.StatusNotFound,
			Code:        "user_not_found",
			Description: "identity id is not a GoTrue user id",
		}
	}

	if err := c.with(ctx, "").AdminDeleteUser(types.AdminDeleteUserRequest{UserID: id}); err != nil {
		return mapError(invite.OperationDelete, err)
	}
	return nil
}

// RequestRecovery implements invite.IdentityProvider. GoTrue mails the
// recovery link itself so the result carries no link.
func (c *Client) RequestRecovery(ctx context.Context, email string, opts invite.RecoveryOptions) (*invite.RecoveryResult, error) {
	req := types.RecoverRequest{Email: invite.NormalizeEmail(email)}
	if err := c.with(ctx, opts.RedirectURL).Recover(req); err != nil {
		return nil, mapError(invite.OperationRecover, err)
	}
	return &invite.RecoveryResult{}, nil
}

// with scopes the SDK client to ctx and an optional redirect_to target.
func (c *Client) with(ctx context.Context, redirect string) sdk.Client {
	base := c.http.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	scoped := c.http
	scoped.Transport = &requestTransport{
		ctx:      ctx,
		redirect: strings.TrimSpace(redirect),
		base:     base,
	}
	return c.api.WithClient(scoped)
}

// requestTransport binds outgoing SDK requests to the caller context.
type requestTransport struct {
	ctx      context.Context
	redirect string
	base     http.RoundTripper
}

func (t *requestTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(t.ctx)
	if t.redirect != "" {
		q := out.URL.Query()
		q.Set("redirect_to", t.redirect)
		out.URL.RawQuery = q.Encode()
	}
	return t.base.RoundTrip(out)
}

// errorResponse covers both the current and the legacy GoTrue error bodies.
type errorResponse struct {
	Code             int    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

var statusPattern = regexp.MustCompile(`(?s)^response status code (\d{3})(?::\s?(.*))?$`)

// mapError turns SDK errors into invite.ProviderError. The SDK reports
// upstream failures as "response status code <n>: <body>".
func mapError(operation string, err error) error {
	match := statusPattern.FindStringSubmatch(err.Error())
	if match == nil {
		return &invite.ProviderError{
			Provider:    ProviderName,
			Operation:   operation,
			Description: err.Error(),
			Err:         err,
		}
	}

	status, _ := strconv.Atoi(match[1])
	perr := decodeError(operation, status, []byte(match[2]))
	perr.Err = err
	return perr
}

func decodeError(operation string, status int, data []byte) *invite.ProviderError {
	perr := &invite.ProviderError{
		Provider:  ProviderName,
		Operation: operation,
		Status:    status,
	}

	var body errorResponse
	if err := json.Unmarshal(data, &body); err != nil {
		perr.Description = strings.TrimSpace(string(data))
		if perr.Description == "" {
			perr.Description = http.StatusText(status)
		}
		return perr
	}

	raw := map[string]any{}
	_ = json.Unmarshal(data, &raw)
	perr.Raw = raw

	perr.Code = firstNonEmpty(body.ErrorCode, body.Error)
	perr.Description = firstNonEmpty(body.Msg, body.Message, body.ErrorDescription, http.StatusText(status))
	return perr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
