package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	invite "github.com/goliatone/go-auth-invite"
	"github.com/goliatone/go-auth-invite/activitymap"
	"github.com/goliatone/go-auth-invite/config"
	"github.com/goliatone/go-auth-invite/provider/auth0"
	"github.com/goliatone/go-auth-invite/provider/gotrue"
	gconfig "github.com/goliatone/go-config/config"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type App struct {
	config   *gconfig.Container[*config.BaseConfig]
	bunDB    *bun.DB
	repo     invite.RepositoryManager
	provider invite.IdentityProvider
	verifier invite.TokenVerifier
	manager  *invite.Manager
	srv      router.Server[*fiber.App]
	logger   *glog.BaseLogger
}

func (a *App) Config() *config.BaseConfig {
	return a.config.Raw()
}

func (a *App) SetRepository(repo invite.RepositoryManager) {
	a.repo = repo
}

func (a *App) SetDB(db *bun.DB) {
	a.bunDB = db
}

func (a *App) SetLogger(lgr *glog.BaseLogger) *App {
	a.logger = lgr
	return a
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func (a *App) SetHTTPServer(srv router.Server[*fiber.App]) {
	a.srv = srv
}

func (a *App) SetIdentityProvider(provider invite.IdentityProvider, verifier invite.TokenVerifier) {
	a.provider = provider
	a.verifier = verifier
}

func (a *App) SetManager(manager *invite.Manager) {
	a.manager = manager
}

func main() {

	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("app"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg := gconfig.New(&config.BaseConfig{}).
		WithLogger(lgr.GetLogger("config"))

	ctx := context.Background()
	if err := cfg.Load(ctx); err != nil {
		panic(err)
	}

	if cfg.Raw().GetApp().GetDebug() {
		fmt.Println("============")
		fmt.Println(print.MaybeHighlightJSON(cfg.Raw()))
		fmt.Println("============")
	}

	app := &App{
		config: cfg,
		logger: lgr,
	}

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}

	if err := WithIdentityProvider(ctx, app); err != nil {
		panic(err)
	}

	WithManager(app)

	WithHTTPServer(app)

	go func() {
		if err := app.srv.Serve(app.Config().GetServer().GetAddress()); err != nil {
			app.GetLogger("app").Error("server stopped", "error", err)
		}
	}()

	WaitExitSignal()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := app.srv.Shutdown(shutdownCtx); err != nil {
		app.GetLogger("app").Error("shutdown failed", "error", err)
	}
	if err := app.bunDB.Close(); err != nil {
		app.GetLogger("app").Error("close database failed", "error", err)
	}
}

func WithPersistence(ctx context.Context, app *App) error {
	pcfg := app.Config().GetPersistence()

	sqldb, err := sql.Open(sqliteshim.ShimName, pcfg.GetDSN())
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to open database")
	}

	pingCtx, cancel := context.WithTimeout(ctx, pcfg.GetPingTimeout())
	defer cancel()
	if err := sqldb.PingContext(pingCtx); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "database ping failed")
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if _, err := invite.Migrate(ctx, db, app.GetLogger("persistence")); err != nil {
		return err
	}

	repo := invite.NewRepositoryManager(db)
	if err := repo.Validate(); err != nil {
		return err
	}

	app.SetDB(db)
	app.SetRepository(repo)

	return nil
}

func WithIdentityProvider(ctx context.Context, app *App) error {
	pcfg := app.Config().GetProvider()

	switch pcfg.GetName() {
	case config.ProviderAuth0:
		acfg := pcfg.GetAuth0()
		a0 := auth0.DefaultConfig(acfg.Domain, acfg.Audience)
		a0.ClientID = acfg.ClientID
		a0.ClientSecret = acfg.ClientSecret
		a0.TicketTTL = acfg.GetTicketTTL()
		if acfg.Connection != "" {
			a0.Connection = acfg.Connection
		}

		inviter, err := auth0.NewInviter(ctx, a0)
		if err != nil {
			return err
		}

		verifier, err := auth0.NewTokenVerifier(a0)
		if err != nil {
			return err
		}

		app.SetIdentityProvider(inviter, verifier)
	default:
		gcfg := pcfg.GetGoTrue()
		client, err := gotrue.New(gotrue.Config{
			URL:        gcfg.GetURL(),
			ServiceKey: gcfg.GetServiceKey(),
			Timeout:    gcfg.GetTimeout(),
		})
		if err != nil {
			return err
		}

		opts := []invite.JWTVerifierOption{
			invite.WithVerifierLogger(app.GetLogger("verifier")),
		}
		if gcfg.GetAudience() != "" {
			opts = append(opts, invite.WithVerifierAudience(gcfg.GetAudience()))
		}

		var verifier invite.TokenVerifier
		if gcfg.GetJWKSURL() != "" {
			v, err := invite.NewJWKSVerifier([]string{gcfg.GetJWKSURL()}, opts...)
			if err != nil {
				return err
			}
			verifier = v
		} else if gcfg.GetJWTSecret() != "" {
			verifier = invite.NewHMACVerifier([]byte(gcfg.GetJWTSecret()), opts...)
		}

		app.SetIdentityProvider(client, verifier)
	}

	return nil
}

func WithManager(app *App) {
	web := app.Config().GetWeb()
	activityLogger := app.GetLogger("activity")

	sink := invite.MultiActivitySink{
		invite.NewLoggerActivitySink(activityLogger),
		activitymap.Sink(func(n activitymap.Normalized) error {
			activityLogger.Debug("activity",
				"actor_id", n.ActorID,
				"verb", n.Verb,
				"object_type", n.ObjectType,
				"object_id", n.ObjectID,
				"channel", n.Channel,
			)
			return nil
		}),
	}

	opts := []invite.ManagerOption{
		invite.WithLogger(app.GetLogger("invite")),
		invite.WithActivitySink(sink),
		invite.WithProviderName(app.Config().GetProvider().GetName()),
		invite.WithWebBaseURL(web.GetBaseURL()),
		invite.WithRedirectURL(web.GetRedirectURL()),
		invite.WithRecoveryRedirectURL(web.GetRecoveryURL()),
		invite.WithPhoneRegion(web.GetPhoneRegion()),
	}
	if app.verifier != nil {
		opts = append(opts, invite.WithTokenVerifier(app.verifier))
	}
	if web.GetHashidIDs() {
		opts = append(opts, invite.WithHashidIDs())
	}
	if web.GetStrictDeletion() {
		opts = append(opts, invite.WithStrictDeletion())
	}

	app.SetManager(invite.NewManager(app.repo.Users(), app.repo, app.provider, opts...))
}

func WithHTTPServer(app *App) {
	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			EnablePrintRoutes: app.Config().GetApp().GetDebug(),
			StrictRouting:     false,
		}))
	})

	srv.Router().WithLogger(app.GetLogger("router"))

	scfg := app.Config().GetServer()

	var admin []router.MiddlewareFunc
	if app.verifier != nil {
		admin = append(admin, invite.AdminGuard(invite.AdminGuardConfig{
			Verifier:  app.verifier,
			Authorize: invite.RequireRole(scfg.GetAdminRoles()...),
			Logger:    app.GetLogger("admin"),
		}))
	}

	controller := invite.NewHTTPController(app.manager, invite.HTTPConfig{
		UsersPath:       scfg.GetUsersPath(),
		AuthPath:        scfg.GetAuthPath(),
		AdminMiddleware: admin,
		Debug:           app.Config().GetApp().GetDebug(),
		Logger:          app.GetLogger("http"),
	})
	controller.RegisterRoutes(srv.Router())

	srv.Router().Get("/health", func(ctx router.Context) error {
		return ctx.JSON(router.StatusOK, map[string]any{"status": "ok"})
	})

	app.SetHTTPServer(srv)
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
