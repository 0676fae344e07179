// Package sessions holds the process-wide answer to "who is logged in".
package sessions

import (
	"context"
	"sync"

	"github.com/onepointalo/alo/identity"
	alerrors "github.com/onepointalo/alo/internal/errors"
	"github.com/onepointalo/alo/internal/logging"
	"github.com/onepointalo/alo/internal/tasks"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ActivationHook runs, detached, once for every transition into Authenticated.
type ActivationHook func(ctx context.Context, session *identity.Session)

// Store owns the current session. Construct it once and pass it to consumers.
//
// Results of SignIn, SignUp and SignOut are applied only if no later call of
// those three was started in the meantime. When a dropped call had already
// changed the provider's persisted credential, the credential is brought back
// in line with the store once the newest call returns. Provider change events
// are applied as they arrive.
type Store struct {
	provider  identity.Provider
	scheduler tasks.Scheduler
	hooks     []ActivationHook
	log       zerolog.Logger

	mu         sync.Mutex
	session    *identity.Session
	state      State
	loading    bool
	callSeq    uint64
	settledSeq uint64 // newest call that has returned from the provider
	resync     bool   // a stale call may have replaced the provider's credential
	started    bool
	closed     bool
	unregister func()

	resyncMu sync.Mutex

	notifyMu    sync.Mutex
	subscribers *subscribers
}

// StoreOption defines a function type to modify the Store instance.
type StoreOption func(*Store)

// WithActivationHook adds a hook run on every transition into Authenticated.
func WithActivationHook(hook ActivationHook) StoreOption {
	return func(s *Store) {
		s.hooks = append(s.hooks, hook)
	}
}

func New(provider identity.Provider, scheduler tasks.Scheduler, log zerolog.Logger, options ...StoreOption) (*Store, error) {
	if provider == nil {
		return nil, errors.New("[sessions.New] provider is required")
	}
	if scheduler == nil {
		return nil, errors.New("[sessions.New] scheduler is required")
	}

	s := &Store{
		provider:    provider,
		scheduler:   scheduler,
		log:         logging.Component(log, "session-store"),
		state:       Initializing,
		loading:     true,
		subscribers: newSubscribers(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Start registers for provider changes and restores the persisted session.
// A restore failure leaves the store Anonymous and is returned for reporting only.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return errors.New("[sessions.Start] store already started")
	}
	s.started = true
	s.mu.Unlock()

	unregister := s.provider.OnChange(s.handleChange)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		unregister()
		return alerrors.ErrStoreClosed
	}
	s.unregister = unregister
	s.mu.Unlock()

	session, err := s.provider.RestoreSession(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("session restore failed, continuing signed out")
		session = nil
	}
	s.resolveRestore(session)
	return errors.Wrap(err, "[sessions.Start] restore session")
}

// Close unregisters the provider listener. The store keeps its last snapshot.
func (s *Store) Close() {
	s.mu.Lock()
	unregister := s.unregister
	s.unregister = nil
	s.closed = true
	s.mu.Unlock()

	if unregister != nil {
		unregister()
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Session returns the current session, nil when signed out.
func (s *Store) Session() *identity.Session {
	return s.Snapshot().Session
}

func (s *Store) Loading() bool {
	return s.Snapshot().Loading
}

// Subscribe calls fn with every new snapshot, in transition order. fn must not
// call SignIn, SignUp or SignOut synchronously.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	return s.subscribers.add(fn)
}

func (s *Store) SignIn(ctx context.Context, email, secret string) (*identity.Session, error) {
	seq, err := s.begin()
	if err != nil {
		return nil, err
	}

	session, err := s.provider.SignIn(ctx, email, secret)
	s.finishCall(ctx, seq, session, err, "sign_in")
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Store) SignUp(ctx context.Context, email, secret, displayName string) (*identity.Session, error) {
	seq, err := s.begin()
	if err != nil {
		return nil, err
	}

	session, err := s.provider.SignUp(ctx, email, secret, displayName)
	s.finishCall(ctx, seq, session, err, "sign_up")
	if err != nil {
		return nil, err
	}
	return session, nil
}

// SignOut clears the store before asking the provider to end the session, so
// no reader sees the old session once SignOut has returned. A provider failure
// is returned but does not restore the session.
func (s *Store) SignOut(ctx context.Context) error {
	seq, err := s.begin()
	if err != nil {
		return err
	}
	s.mu.Lock()
	if seq == s.callSeq {
		s.applyLocked(nil, "sign_out")
	} else {
		s.mu.Unlock()
	}

	perr := s.provider.SignOut(ctx)

	s.mu.Lock()
	s.settleLocked(seq, true)
	s.mu.Unlock()
	s.reconcile(ctx)

	if perr != nil {
		return errors.Wrap(perr, "[sessions.SignOut]")
	}
	return nil
}

func (s *Store) begin() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, alerrors.ErrStoreClosed
	}
	s.callSeq++
	return s.callSeq, nil
}

func (s *Store) handleChange(session *identity.Session) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.applyLocked(session, "provider_change")
}

func (s *Store) resolveRestore(session *identity.Session) {
	s.mu.Lock()
	if s.state != Initializing {
		// A call or change event already decided the state.
		s.mu.Unlock()
		s.log.Debug().Msg("restore result superseded")
		return
	}
	s.applyLocked(session, "restore")
}

// finishCall applies the result of a sign-in or sign-up if seq is still the
// newest call, then reconciles the provider credential if needed.
func (s *Store) finishCall(ctx context.Context, seq uint64, session *identity.Session, err error, cause string) {
	s.mu.Lock()
	s.settleLocked(seq, err == nil)
	switch {
	case seq != s.callSeq:
		s.mu.Unlock()
		s.log.Debug().Str("cause", cause).Uint64("seq", seq).Msg("stale result dropped")
	case err != nil:
		s.mu.Unlock()
	default:
		s.applyLocked(session, cause)
	}
	s.reconcile(ctx)
}

// settleLocked records that call seq has returned from the provider. touched
// reports whether the call may have written the provider's credential.
func (s *Store) settleLocked(seq uint64, touched bool) {
	if seq == s.callSeq {
		s.settledSeq = seq
		return
	}
	if touched {
		s.resync = true
	}
}

// reconcile points the provider's persisted credential back at the store's
// session after a stale call may have replaced it. It waits until the newest
// call has returned; that call reconciles otherwise.
func (s *Store) reconcile(ctx context.Context) {
	s.resyncMu.Lock()
	defer s.resyncMu.Unlock()

	for {
		s.mu.Lock()
		if !s.resync || s.settledSeq != s.callSeq {
			s.mu.Unlock()
			return
		}
		s.resync = false
		target, at := s.session, s.callSeq
		s.mu.Unlock()

		if err := s.resyncProvider(ctx, target); err != nil {
			s.log.Warn().Err(err).Msg("provider credential resync failed")
		} else {
			s.log.Debug().Bool("signed_in", target != nil).Msg("provider credential resynced")
		}

		s.mu.Lock()
		if s.callSeq != at {
			s.resync = true
		}
		s.mu.Unlock()
	}
}

func (s *Store) resyncProvider(ctx context.Context, target *identity.Session) error {
	if target == nil {
		return s.provider.SignOut(ctx)
	}
	adopter, ok := s.provider.(identity.SessionAdopter)
	if !ok {
		return errors.New("provider cannot adopt a session")
	}
	return adopter.AdoptSession(ctx, target)
}

// applyLocked replaces the session, notifies subscribers and schedules hooks.
// It is entered with mu held and releases it.
func (s *Store) applyLocked(session *identity.Session, cause string) {
	prev, prevState := s.session, s.state

	s.session = session
	s.loading = false
	if session != nil {
		s.state = Authenticated
	} else {
		s.state = Anonymous
	}
	activated := session != nil && (prevState != Authenticated || !identity.SameIdentity(prev, session))
	snap := s.snapshotLocked()

	s.notifyMu.Lock()
	s.mu.Unlock()
	s.subscribers.notify(snap)
	s.notifyMu.Unlock()

	s.log.Debug().Str("cause", cause).Stringer("from", prevState).Stringer("to", snap.State).Msg("session transition")

	if activated {
		s.activate(session)
	}
}

func (s *Store) activate(session *identity.Session) {
	for _, hook := range s.hooks {
		hook := hook
		s.scheduler.Go("session-activation", func(ctx context.Context) error {
			hook(ctx, session)
			return nil
		})
	}
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{Session: s.session, Loading: s.loading, State: s.state}
}
