package initialize

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"time"

	"drive-eval/backend/app/controllers"
	"drive-eval/backend/app/db"
	"drive-eval/backend/app/evaluation"
	jwtutil "drive-eval/backend/app/jwt"
	"drive-eval/backend/app/middleware"
	"drive-eval/backend/app/policy"
	"drive-eval/backend/app/report"
	"drive-eval/backend/app/repo"
	"drive-eval/backend/app/services"
	"drive-eval/backend/config"
	"drive-eval/backend/global"
	"drive-eval/backend/router"

	"github.com/redis/go-redis/v9"
)

// App is the wired service layer shared by the HTTP server, the CLI and the TUI.
type App struct {
	Cfg         *config.Config
	Loc         *time.Location
	Policy      *policy.Policy
	Accounts    repo.AccountRepository
	Records     repo.RecordRepository
	AccountSvc  *services.AccountService
	RecordSvc   *services.RecordService
	Evaluations *services.EvaluationService
	Exports     *services.ExportService

	closers []func() error
}

// Build wires storage, session store and services from cfg and seeds the
// initial admin.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	global.Config = cfg
	app := &App{Cfg: cfg, Loc: cfg.Location()}
	app.Policy = policy.New(policy.Options{
		EvaluatorRequiresAccessFlag: cfg.Policy.EvaluatorRequiresAccessFlag,
		ViewerSeesAll:               cfg.Policy.ViewerSeesAll,
		EvaluatorCanDeleteOwn:       cfg.Policy.EvaluatorCanDeleteOwn,
	})

	if err := app.openStorage(); err != nil {
		app.Close()
		return nil, err
	}
	sessions, err := app.openSessions(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	var renderer report.Renderer
	if pdf, err := report.NewPDFRenderer(cfg.Export.PDFFontPath); err != nil {
		global.Logger.Warn().Err(err).Msg("pdf export disabled")
	} else {
		renderer = pdf
	}

	app.AccountSvc = services.NewAccountService(app.Accounts, app.Policy)
	app.RecordSvc = services.NewRecordService(app.Records, app.Policy)
	app.Evaluations = services.NewEvaluationService(sessions, app.Records, app.Accounts, app.Policy, app.Loc)
	app.Exports = services.NewExportService(app.RecordSvc, app.Policy, renderer, app.Loc)

	if err := app.Records.Ensure(); err != nil {
		app.Close()
		return nil, fmt.Errorf("records table: %w", err)
	}
	if err := app.AccountSvc.EnsureAdmin(cfg.Bootstrap.AdminUsername, cfg.Bootstrap.AdminPassword); err != nil {
		app.Close()
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}
	return app, nil
}

func (a *App) openStorage() error {
	cfg := a.Cfg.Storage
	if cfg.Driver == "csv" {
		a.Accounts = repo.NewAccountCSVRepository(cfg.AccountsFile)
		a.Records = repo.NewRecordCSVRepository(cfg.RecordsFile, a.Loc)
		return nil
	}
	gdb, err := db.Connect(db.Config{
		Driver:     cfg.Driver,
		SQLitePath: cfg.SQLitePath,
		Host:       cfg.MySQL.Host,
		Port:       cfg.MySQL.Port,
		User:       cfg.MySQL.User,
		Password:   cfg.MySQL.Pass,
		DBName:     cfg.MySQL.Name,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	global.Mdb = gdb
	if sqlDB, err := gdb.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}
	a.Accounts = repo.NewAccountGormRepository(gdb)
	a.Records = repo.NewRecordGormRepository(gdb, a.Loc)
	return nil
}

func (a *App) openSessions(ctx context.Context) (evaluation.Store, error) {
	if a.Cfg.Session.Store != "redis" {
		return evaluation.NewMemoryStore(), nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     a.Cfg.Session.RedisAddr,
		Password: a.Cfg.Session.RedisPassword,
		DB:       a.Cfg.Session.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	global.Rdb = rdb
	a.closers = append(a.closers, rdb.Close)
	return evaluation.NewRedisStore(rdb, a.Cfg.SessionTTL()), nil
}

// Handler builds the HTTP handler on top of the wired services.
func (a *App) Handler() http.Handler {
	secret := []byte(a.Cfg.JWT.Secret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		_, _ = rand.Read(secret)
		global.Logger.Warn().Msg("jwt.secret not set; tokens will not survive a restart")
	}
	signer := &jwtutil.Signer{Secret: secret, Issuer: a.Cfg.JWT.Issuer, ExpMin: a.Cfg.JWT.ExpMin}
	mw := &middleware.Auth{Signer: signer, Accounts: a.AccountSvc}
	limiter := middleware.NewRateLimiter(a.Cfg.HTTP.LoginRPS, a.Cfg.HTTP.LoginBurst)

	h := router.NewRouter(router.Controllers{
		HTTP:        controllers.NewHTTPController(),
		Auth:        controllers.NewAuthController(a.AccountSvc, signer),
		Accounts:    controllers.NewAccountController(a.AccountSvc),
		Evaluations: controllers.NewEvaluationController(a.Evaluations),
		Records:     controllers.NewRecordController(a.RecordSvc, a.Exports),
	}, mw, limiter, a.Cfg.HTTP.AllowedOrigins)
	return middleware.Logging(h)
}

// Close releases database and redis connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
