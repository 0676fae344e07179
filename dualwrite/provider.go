// Package dualwrite mirrors account activity from the authoritative identity
// backend onto a secondary one without letting the secondary affect callers.
package dualwrite

import (
	"context"

	"github.com/onepointalo/alo/identity"
	"github.com/onepointalo/alo/internal/logging"
	"github.com/onepointalo/alo/internal/tasks"
	"github.com/onepointalo/alo/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var (
	_ identity.Provider       = (*Provider)(nil)
	_ identity.SessionAdopter = (*Provider)(nil)
)

// ProfileWriter stores the application profile row created after sign-up.
type ProfileWriter interface {
	InsertRow(ctx context.Context, table string, row map[string]any) error
}

// Provider answers every call from the primary and replays sign-up, sign-in
// and sign-out against the secondary in the background.
type Provider struct {
	primary   identity.Provider
	secondary identity.Provider
	profiles  ProfileWriter
	scheduler tasks.Scheduler
	log       zerolog.Logger
}

func New(primary, secondary identity.Provider, profiles ProfileWriter, scheduler tasks.Scheduler, log zerolog.Logger) (*Provider, error) {
	if primary == nil {
		return nil, errors.New("[dualwrite.New] primary provider is required")
	}
	if secondary == nil {
		return nil, errors.New("[dualwrite.New] secondary provider is required")
	}
	if profiles == nil {
		return nil, errors.New("[dualwrite.New] profile writer is required")
	}
	if scheduler == nil {
		return nil, errors.New("[dualwrite.New] scheduler is required")
	}

	return &Provider{
		primary:   primary,
		secondary: secondary,
		profiles:  profiles,
		scheduler: scheduler,
		log:       logging.Component(log, "dualwrite"),
	}, nil
}

func (p *Provider) RestoreSession(ctx context.Context) (*identity.Session, error) {
	return p.primary.RestoreSession(ctx)
}

func (p *Provider) SignIn(ctx context.Context, email, secret string) (*identity.Session, error) {
	session, err := p.primary.SignIn(ctx, email, secret)
	if err != nil {
		return nil, err
	}

	p.mirror("mirror-sign-in", func(ctx context.Context) error {
		_, err := p.secondary.SignIn(ctx, email, secret)
		return errors.Wrap(err, "secondary sign-in")
	})
	return session, nil
}

func (p *Provider) SignUp(ctx context.Context, email, secret, displayName string) (*identity.Session, error) {
	session, err := p.primary.SignUp(ctx, email, secret, displayName)
	if err != nil {
		return nil, err
	}

	p.mirror("mirror-sign-up", func(ctx context.Context) error {
		mirrored, err := p.secondary.SignUp(ctx, email, secret, displayName)
		if err != nil {
			return errors.Wrap(err, "secondary sign-up")
		}
		if mirrored == nil {
			return errors.New("secondary sign-up returned no session")
		}

		profile := users.NewProfile(mirrored.IdentityID, email, displayName)
		return errors.Wrap(p.profiles.InsertRow(ctx, users.ProfilesTable, profile.Row()), "insert user profile")
	})
	return session, nil
}

// SignOut ends the primary session and mirrors the sign-out best-effort.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mirror("mirror-sign-out", func(ctx context.Context) error {
		return errors.Wrap(p.secondary.SignOut(ctx), "secondary sign-out")
	})
	return p.primary.SignOut(ctx)
}

func (p *Provider) OnChange(handler identity.ChangeHandler) func() {
	return p.primary.OnChange(handler)
}

// AdoptSession re-persists a primary session. The secondary keeps its own
// tokens and is left alone.
func (p *Provider) AdoptSession(ctx context.Context, session *identity.Session) error {
	adopter, ok := p.primary.(identity.SessionAdopter)
	if !ok {
		return errors.New("[dualwrite.AdoptSession] primary provider cannot adopt a session")
	}
	return adopter.AdoptSession(ctx, session)
}

func (p *Provider) mirror(name string, fn tasks.Task) {
	p.scheduler.Go(name, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			logging.NonCritical(p.log, err).Str("op", name).Msg("secondary sync failed (non-critical)")
		}
		return nil
	})
}
