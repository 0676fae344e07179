package storage

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/onepointalo/alo/identity"
	"github.com/onepointalo/alo/internal/logging"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const DefaultListTimeout = 5 * time.Second

var ErrListTimeout = errors.New("container listing timed out")

// Report describes one bootstrap run. It is only ever logged.
type Report struct {
	Existing []string
	Created  []string
	Failed   map[string]error
	// Err is set when listing failed and no container was attempted.
	Err error
}

// OK reports whether the run ended with every required container present.
func (r Report) OK() bool {
	return r.Err == nil && len(r.Failed) == 0
}

// Bootstrapper makes sure the required containers exist.
type Bootstrapper struct {
	store       ContainerStore
	specs       []ContainerSpec
	listTimeout time.Duration
	log         zerolog.Logger
}

// BootstrapperOption defines a function type to modify the Bootstrapper instance.
type BootstrapperOption func(*Bootstrapper)

func WithListTimeout(d time.Duration) BootstrapperOption {
	return func(b *Bootstrapper) {
		if d > 0 {
			b.listTimeout = d
		}
	}
}

// WithContainers replaces RequiredContainers.
func WithContainers(specs ...ContainerSpec) BootstrapperOption {
	return func(b *Bootstrapper) {
		b.specs = specs
	}
}

func NewBootstrapper(store ContainerStore, log zerolog.Logger, options ...BootstrapperOption) (*Bootstrapper, error) {
	if store == nil {
		return nil, errors.New("[storage.NewBootstrapper] container store is required")
	}

	b := &Bootstrapper{
		store:       store,
		specs:       RequiredContainers(),
		listTimeout: DefaultListTimeout,
		log:         logging.Component(log, "storage-bootstrap"),
	}
	for _, opt := range options {
		opt(b)
	}
	return b, nil
}

// Run lists the store and creates every missing container. A listing failure
// or timeout aborts the run; a failed create does not stop the others.
func (b *Bootstrapper) Run(ctx context.Context) Report {
	var report Report

	existing, err := b.list(ctx)
	if err != nil {
		report.Err = err
		logging.NonCritical(b.log, err).Msg("storage initialization aborted (non-critical)")
		return report
	}
	report.Existing = existing

	for _, spec := range b.specs {
		if slices.Contains(existing, spec.Name) {
			continue
		}
		if err := b.store.CreateContainer(ctx, spec); err != nil {
			if report.Failed == nil {
				report.Failed = make(map[string]error)
			}
			report.Failed[spec.Name] = err
			logging.NonCritical(b.log, err).Str("container", spec.Name).Msg("container creation failed (non-critical)")
			continue
		}
		report.Created = append(report.Created, spec.Name)
		b.log.Info().Str("container", spec.Name).Int64("size_limit", spec.SizeLimitBytes).Msg("container created")
	}
	return report
}

// OnAuthenticated runs the bootstrap for a newly signed-in session.
func (b *Bootstrapper) OnAuthenticated(ctx context.Context, session *identity.Session) {
	report := b.Run(ctx)
	b.log.Debug().
		Str("identity_id", session.IdentityID).
		Strs("created", report.Created).
		Bool("ok", report.OK()).
		Msg("storage bootstrap finished")
}

// list stops waiting after the list timeout. The request itself keeps ctx and
// is left to finish; its late result is discarded.
func (b *Bootstrapper) list(ctx context.Context) ([]string, error) {
	type result struct {
		names []string
		err   error
	}
	done := make(chan result, 1)
	go func() {
		names, err := b.store.ListContainers(ctx)
		done <- result{names, err}
	}()

	timer := time.NewTimer(b.listTimeout)
	defer timer.Stop()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, errors.Wrap(r.err, "list containers")
		}
		return r.names, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w after %s", ErrListTimeout, b.listTimeout)
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "list containers")
	}
}
