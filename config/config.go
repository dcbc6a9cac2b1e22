package config

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const (
	ProviderGoTrue = "gotrue"
	ProviderAuth0  = "auth0"
)

type BaseConfig struct {
	App         App         `koanf:"app" json:"app"`
	Server      Server      `koanf:"server" json:"server"`
	Persistence Persistence `koanf:"persistence" json:"persistence"`
	Web         Web         `koanf:"web" json:"web"`
	Provider    Provider    `koanf:"provider" json:"provider"`
}

type App struct {
	Name  string `koanf:"name" json:"name"`
	Env   string `koanf:"env" json:"env"`
	Debug bool   `koanf:"debug" json:"debug"`
}

type Server struct {
	Address    string   `koanf:"address" json:"address"`
	UsersPath  string   `koanf:"users_path" json:"users_path"`
	AuthPath   string   `koanf:"auth_path" json:"auth_path"`
	AdminRoles []string `koanf:"admin_roles" json:"admin_roles"`
}

type Persistence struct {
	Driver                string `koanf:"driver" json:"driver"`
	DSN                   string `koanf:"dsn" json:"dsn"`
	PingTimeoutExpression string `koanf:"ping_timeout" json:"ping_timeout"`
}

type Web struct {
	BaseURL        string `koanf:"base_url" json:"base_url"`
	RedirectURL    string `koanf:"redirect_url" json:"redirect_url"`
	RecoveryURL    string `koanf:"recovery_url" json:"recovery_url"`
	PhoneRegion    string `koanf:"phone_region" json:"phone_region"`
	HashidIDs      bool   `koanf:"hashid_ids" json:"hashid_ids"`
	StrictDeletion bool   `koanf:"strict_deletion" json:"strict_deletion"`
}

type Provider struct {
	Name   string `koanf:"name" json:"name"`
	GoTrue GoTrue `koanf:"gotrue" json:"gotrue"`
	Auth0  Auth0  `koanf:"auth0" json:"auth0"`
}

type GoTrue struct {
	URL               string `koanf:"url" json:"url"`
	ServiceKey        string `koanf:"service_key" json:"service_key"`
	JWTSecret         string `koanf:"jwt_secret" json:"jwt_secret"`
	JWKSURL           string `koanf:"jwks_url" json:"jwks_url"`
	Audience          string `koanf:"audience" json:"audience"`
	TimeoutExpression string `koanf:"timeout" json:"timeout"`
}

type Auth0 struct {
	Domain              string   `koanf:"domain" json:"domain"`
	ClientID            string   `koanf:"client_id" json:"client_id"`
	ClientSecret        string   `koanf:"client_secret" json:"client_secret"`
	Connection          string   `koanf:"connection" json:"connection"`
	Audience            []string `koanf:"audience" json:"audience"`
	TicketTTLExpression string   `koanf:"ticket_ttl" json:"ticket_ttl"`
}

func (a BaseConfig) Validate() error {
	if err := validation.ValidateStruct(&a.Web,
		validation.Field(&a.Web.BaseURL, validation.Required, is.URL),
		validation.Field(&a.Web.RedirectURL, is.URL),
		validation.Field(&a.Web.RecoveryURL, is.URL),
	); err != nil {
		return fmt.Errorf("web: %w", err)
	}

	if err := validation.ValidateStruct(&a.Persistence,
		validation.Field(&a.Persistence.DSN, validation.Required),
	); err != nil {
		return fmt.Errorf("persistence: %w", err)
	}

	switch a.Provider.GetName() {
	case ProviderGoTrue:
		g := a.Provider.GoTrue
		if err := validation.ValidateStruct(&g,
			validation.Field(&g.URL, validation.Required, is.URL),
			validation.Field(&g.ServiceKey, validation.Required),
		); err != nil {
			return fmt.Errorf("provider.gotrue: %w", err)
		}
	case ProviderAuth0:
		o := a.Provider.Auth0
		if err := validation.ValidateStruct(&o,
			validation.Field(&o.Domain, validation.Required),
			validation.Field(&o.ClientID, validation.Required),
			validation.Field(&o.ClientSecret, validation.Required),
			validation.Field(&o.Audience, validation.Required),
		); err != nil {
			return fmt.Errorf("provider.auth0: %w", err)
		}
	default:
		return fmt.Errorf("provider.name: unknown provider %q", a.Provider.Name)
	}

	return nil
}

func (a BaseConfig) GetApp() App                 { return a.App }
func (a BaseConfig) GetServer() Server           { return a.Server }
func (a BaseConfig) GetPersistence() Persistence { return a.Persistence }
func (a BaseConfig) GetWeb() Web                 { return a.Web }
func (a BaseConfig) GetProvider() Provider       { return a.Provider }

func (a App) GetName() string { return a.Name }
func (a App) GetDebug() bool  { return a.Debug }

func (s Server) GetAddress() string {
	if s.Address == "" {
		return ":8572"
	}
	return s.Address
}

func (s Server) GetUsersPath() string { return s.UsersPath }
func (s Server) GetAuthPath() string  { return s.AuthPath }

// GetAdminRoles lists the token roles allowed on the users routes.
func (s Server) GetAdminRoles() []string {
	if len(s.AdminRoles) == 0 {
		return []string{"admin", "service_role"}
	}
	return s.AdminRoles
}

func (p Persistence) GetDSN() string { return p.DSN }

func (p Persistence) GetPingTimeout() time.Duration {
	return mustDuration(p.PingTimeoutExpression, 2*time.Second)
}

func (w Web) GetBaseURL() string       { return w.BaseURL }
func (w Web) GetRedirectURL() string   { return w.RedirectURL }
func (w Web) GetRecoveryURL() string   { return w.RecoveryURL }
func (w Web) GetPhoneRegion() string   { return w.PhoneRegion }
func (w Web) GetHashidIDs() bool       { return w.HashidIDs }
func (w Web) GetStrictDeletion() bool  { return w.StrictDeletion }
func (p Provider) GetGoTrue() GoTrue   { return p.GoTrue }
func (p Provider) GetAuth0() Auth0     { return p.Auth0 }
func (p Provider) GetName() string     { return strings.ToLower(strings.TrimSpace(p.Name)) }
func (g GoTrue) GetURL() string        { return g.URL }
func (g GoTrue) GetServiceKey() string { return g.ServiceKey }
func (g GoTrue) GetJWTSecret() string  { return g.JWTSecret }
func (g GoTrue) GetJWKSURL() string    { return g.JWKSURL }
func (g GoTrue) GetAudience() string   { return g.Audience }

func (g GoTrue) GetTimeout() time.Duration {
	return mustDuration(g.TimeoutExpression, 10*time.Second)
}

func (o Auth0) GetTicketTTL() time.Duration {
	return mustDuration(o.TicketTTLExpression, 7*24*time.Hour)
}

func mustDuration(expr string, def time.Duration) time.Duration {
	if strings.TrimSpace(expr) == "" {
		return def
	}
	dur, err := time.ParseDuration(expr)
	if err != nil {
		panic(
			fmt.Sprintf("unable to parse time: expr %s", expr),
		)
	}
	return dur
}
