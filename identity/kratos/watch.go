package kratos

import (
	"context"
	"time"

	"github.com/onepointalo/alo/identity"
)

// DefaultWatchInterval is used when Watch is given a non-positive interval.
const DefaultWatchInterval = time.Minute

// Watch re-validates the persisted token every interval and emits a change
// event when the session ends or switches identity outside this process.
// It returns when ctx is done.
func (p *Provider) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.checkSession(ctx)
		}
	}
}

func (p *Provider) checkSession(ctx context.Context) {
	current, err := p.lookupSession(ctx)
	if err != nil {
		// Unreachable backend says nothing about the session; keep the last state.
		p.log.Debug().Err(err).Msg("session check failed")
		return
	}

	p.mu.Lock()
	changed := !identity.SameIdentity(p.known, current)
	p.known = current
	p.mu.Unlock()

	if changed {
		p.log.Info().Bool("signed_in", current != nil).Msg("session changed outside this process")
		p.listeners.Emit(current)
	}
}

// lookupSession resolves the persisted token without updating the
// session this provider last reported.
func (p *Provider) lookupSession(ctx context.Context) (*identity.Session, error) {
	token, err := p.tokens.GetToken(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, nil
	}
	return p.whoami(ctx, token)
}
