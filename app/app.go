// Package app wires the session bridge from configuration.
package app

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/onepointalo/alo/assistant"
	"github.com/onepointalo/alo/dualwrite"
	"github.com/onepointalo/alo/identity"
	"github.com/onepointalo/alo/identity/kratos"
	"github.com/onepointalo/alo/identity/postgres"
	"github.com/onepointalo/alo/internal/config"
	"github.com/onepointalo/alo/internal/logging"
	"github.com/onepointalo/alo/internal/tasks"
	"github.com/onepointalo/alo/localstate"
	"github.com/onepointalo/alo/sessions"
	"github.com/onepointalo/alo/storage"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	primaryTokens   = "kratos"
	secondaryTokens = "postgres"

	connectTimeout = 10 * time.Second
)

// App is the constructed object graph. Build one per process and pass its
// fields to whatever needs them.
type App struct {
	Config    config.Config
	Log       zerolog.Logger
	State     *localstate.Store
	Runner    *tasks.Runner
	Primary   *kratos.Provider
	Provider  identity.Provider
	Sessions  *sessions.Store
	Storage   *storage.S3Store
	Bootstrap *storage.Bootstrapper
	Uploader  *storage.Uploader
	Assistant assistant.Responder

	pool *pgxpool.Pool
}

// New builds the graph. An unreachable secondary backend is logged and the
// app runs with the primary alone.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("[app.New] config is required")
	}

	a := &App{Config: cfg, Log: log}

	state, err := localstate.Open(cfg.GetStatePath())
	if err != nil {
		return nil, errors.Wrap(err, "[app.New]")
	}
	a.State = state

	a.Runner = tasks.NewRunner(log, cfg.GetBackgroundConcurrency(), tasks.WithTimeout(cfg.GetMirrorTimeout()))

	a.Primary, err = kratos.New(kratos.Config{
		PublicURL: cfg.GetKratosPublicURL(),
		Timeout:   cfg.GetKratosTimeout(),
	}, state.Tokens(primaryTokens), log)
	if err != nil {
		a.closeResources()
		return nil, errors.Wrap(err, "[app.New]")
	}

	a.Provider, err = a.buildProvider(ctx)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	a.Storage, err = storage.NewS3Store(ctx, storage.S3Config{
		Endpoint:       cfg.GetS3Endpoint(),
		PublicEndpoint: cfg.GetS3PublicEndpoint(),
		Region:         cfg.GetS3Region(),
		AccessKeyID:    cfg.GetS3AccessKeyID(),
		SecretKey:      cfg.GetS3SecretKey(),
		UsePathStyle:   cfg.GetS3UsePathStyle(),
	}, log)
	if err != nil {
		a.closeResources()
		return nil, errors.Wrap(err, "[app.New]")
	}
	if a.Bootstrap, err = storage.NewBootstrapper(a.Storage, log, storage.WithListTimeout(cfg.GetBootstrapListTimeout())); err != nil {
		a.closeResources()
		return nil, errors.Wrap(err, "[app.New]")
	}
	if a.Uploader, err = storage.NewUploader(a.Storage, log); err != nil {
		a.closeResources()
		return nil, errors.Wrap(err, "[app.New]")
	}

	a.Sessions, err = sessions.New(a.Provider, a.Runner, log, sessions.WithActivationHook(a.Bootstrap.OnAuthenticated))
	if err != nil {
		a.closeResources()
		return nil, errors.Wrap(err, "[app.New]")
	}

	a.Assistant = assistant.New(assistant.OpenAIConfig{
		APIKey:  cfg.GetOpenAIKey(),
		BaseURL: cfg.GetOpenAIBaseURL(),
		Model:   cfg.GetOpenAIModel(),
	}, log)

	return a, nil
}

func (a *App) buildProvider(ctx context.Context) (identity.Provider, error) {
	cfg := a.Config
	if cfg.GetSecondaryDSN() == "" {
		a.Log.Info().Msg("secondary identity backend not configured, running primary only")
		return a.Primary, nil
	}
	if cfg.GetSecondaryTokenSecret() == "" {
		return nil, errors.New("[app.New] SECONDARY_TOKEN_SECRET is required when SECONDARY_DATABASE_URL is set")
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := postgres.Connect(connectCtx, cfg.GetSecondaryDSN())
	if err != nil {
		logging.NonCritical(a.Log, err).Msg("secondary identity backend unreachable, running primary only (non-critical)")
		return a.Primary, nil
	}
	if err := postgres.Migrate(connectCtx, pool); err != nil {
		pool.Close()
		logging.NonCritical(a.Log, err).Msg("secondary schema migration failed, running primary only (non-critical)")
		return a.Primary, nil
	}
	a.pool = pool

	secondary, err := postgres.New(pool, a.State.Tokens(secondaryTokens), cfg.GetSecondaryTokenSecret(), cfg.GetSecondaryTokenExpiry(), a.Log)
	if err != nil {
		return nil, errors.Wrap(err, "[app.New]")
	}
	provider, err := dualwrite.New(a.Primary, secondary, secondary, a.Runner, a.Log)
	if err != nil {
		return nil, errors.Wrap(err, "[app.New]")
	}
	return provider, nil
}

// Start restores the persisted session. A restore failure is returned for
// reporting; the app is usable signed out.
func (a *App) Start(ctx context.Context) error {
	return a.Sessions.Start(ctx)
}

// Watch re-validates the primary session until ctx is done.
func (a *App) Watch(ctx context.Context) {
	a.Primary.Watch(ctx, a.Config.GetSessionWatchInterval())
}

// Close drains background work, then releases connections.
func (a *App) Close(ctx context.Context) error {
	if a.Sessions != nil {
		a.Sessions.Close()
	}
	var err error
	if a.Runner != nil {
		err = a.Runner.Shutdown(ctx)
	}
	a.closeResources()
	return err
}

func (a *App) closeResources() {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	if a.State != nil {
		if err := a.State.Close(); err != nil {
			a.Log.Err(err).Msg("closing local state")
		}
		a.State = nil
	}
}
