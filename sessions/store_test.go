package sessions

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/onepointalo/alo/identity"
	"github.com/onepointalo/alo/identity/identityfakes"
	alerrors "github.com/onepointalo/alo/internal/errors"
	"github.com/onepointalo/alo/internal/tasks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type activationCounter struct {
	mu  sync.Mutex
	ids []string
}

func (c *activationCounter) hook(_ context.Context, s *identity.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, s.IdentityID)
}

func (c *activationCounter) activations() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.ids...)
}

func newTestStore(t *testing.T, provider identity.Provider) (*Store, *tasks.Runner, *activationCounter) {
	t.Helper()
	runner := tasks.NewRunner(zerolog.Nop(), 4)
	counter := &activationCounter{}
	store, err := New(provider, runner, zerolog.Nop(), WithActivationHook(counter.hook))
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store, runner, counter
}

func TestNew_Validation(t *testing.T) {
	runner := tasks.NewRunner(zerolog.Nop(), 1)

	_, err := New(nil, runner, zerolog.Nop())
	require.Error(t, err)

	_, err = New(identityfakes.NewFakeProvider("p"), nil, zerolog.Nop())
	require.Error(t, err)
}

func TestStore_InitialSnapshot(t *testing.T) {
	store, _, _ := newTestStore(t, identityfakes.NewFakeProvider("p"))

	snap := store.Snapshot()
	require.Nil(t, snap.Session)
	require.True(t, snap.Loading)
	require.Equal(t, Initializing, snap.State)
}

func TestStart_RestoresPersistedSession(t *testing.T) {
	provider := identityfakes.NewFakeProvider("p")
	persisted := provider.AddAccount("a@x.com", "pw123456", "Alex")
	provider.SetCurrent(persisted)

	store, runner, counter := newTestStore(t, provider)
	require.NoError(t, store.Start(context.Background()))
	runner.Wait()

	snap := store.Snapshot()
	require.Equal(t, Authenticated, snap.State)
	require.False(t, snap.Loading)
	require.Equal(t, "a@x.com", snap.Session.Email)
	require.Equal(t, []string{persisted.IdentityID}, counter.activations())
	require.Equal(t, 1, provider.ListenerCount())
}

func TestStart_NoSession(t *testing.T) {
	provider := identityfakes.NewFakeProvider("p")
	store, runner, counter := newTestStore(t, provider)

	require.NoError(t, store.Start(context.Background()))
	runner.Wait()

	snap := store.Snapshot()
	require.Equal(t, Anonymous, snap.State)
	require.False(t, snap.Loading)
	require.Empty(t, counter.activations())
}

func TestStart_RestoreFailureEndsAnonymous(t *testing.T) {
	provider := identityfakes.NewFakeProvider("p")
	provider.RestoreHook = func(context.Context) (*identity.Session, error) {
		return nil, identity.NewAuthError(identity.ReasonNetwork, "p.RestoreSession", errors.New("dial tcp: refused"))
	}
	store, _, _ := newTestStore(t, provider)

	err := store.Start(context.Background())
	require.ErrorIs(t, err, identity.ErrNetwork)

	snap := store.Snapshot()
	require.Equal(t, Anonymous, snap.State)
	require.False(t, snap.Loading)
}

func TestStart_Twice(t *testing.T) {
	store, _, _ := newTestStore(t, identityfakes.NewFakeProvider("p"))
	require.NoError(t, store.Start(context.Background()))
	require.Error(t, store.Start(context.Background()))
}

func TestLoading_ClearsExactlyOnce(t *testing.T) {
	for _, found := range []bool{true, false} {
		provider := identityfakes.NewFakeProvider("p")
		acct := provider.AddAccount("a@x.com", "pw123456", "Alex")
		if found {
			provider.SetCurrent(acct)
		}
		store, _, _ := newTestStore(t, provider)

		var loadingSeen []bool
		store.Subscribe(func(s Snapshot) { loadingSeen = append(loadingSeen, s.Loading) })

		require.NoError(t, store.Start(context.Background()))
		_, err := store.SignIn(context.Background(), "a@x.com", "pw123456")
		require.NoError(t, err)
		require.NoError(t, store.SignOut(context.Background()))

		require.Len(t, loadingSeen, 3)
		for _, l := range loadingSeen {
			require.False(t, l)
		}
	}
}

func TestSignIn_InvalidCredentialsLeavesStoreAnonymous(t *testing.T) {
	provider := identityfakes.NewFakeProvider("p")
	store, _, counter := newTestStore(t, provider)
	require.NoError(t, store.Start(context.Background()))

	session, err := store.SignIn(context.Background(), "bad@x.com", "wrong")
	require.Nil(t, session)

	var authErr *identity.AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, identity.ReasonInvalidCredentials, authErr.Reason)
	require.Equal(t, Anonymous, store.Snapshot().State)
	require.Empty(t, counter.activations())
}

func TestSignIn_LaterCallWins(t *testing.T) {
	provider := identityfakes.NewFakeProvider("p")
	sessionA := provider.AddAccount("a@x.com", "pw-a", "A")
	sessionB := provider.AddAccount("b@x.com", "pw-b", "B")

	entered := make(chan struct{})
	release := make(chan struct{})
	provider.SignInHook = func(_ context.Context, email, _ string) (*identity.Session, error) {
		if email == "a@x.com" {
			close(entered)
			<-release
			return sessionA, nil
		}
		return sessionB, nil
	}

	store, runner, counter := newTestStore(t, provider)
	require.NoError(t, store.Start(context.Background()))

	done := make(chan error, 1)
	go func() {
		_, err := store.SignIn(context.Background(), "a@x.com", "pw-a")
		done <- err
	}()
	<-entered

	got, err := store.SignIn(context.Background(), "b@x.com", "pw-b")
	require.NoError(t, err)
	require.Equal(t, sessionB, got)

	close(release)
	require.NoError(t, <-done)
	runner.Wait()

	require.Equal(t, sessionB.IdentityID, store.Session().IdentityID)
	require.Equal(t, []string{sessionB.IdentityID}, counter.activations())
}

func TestSignOut_ClearsBeforeReturning(t *testing.T) {
	provider := identityfakes.NewFakeProvider("p")
	provider.SetCurrent(provider.AddAccount("a@x.com", "pw123456", "Alex"))
	store, _, _ := newTestStore(t, provider)
	require.NoError(t, store.Start(context.Background()))

	var sawDuringProviderCall *identity.Session
	provider.SignOutHook = func(context.Context) error {
		sawDuringProviderCall = store.Session()
		return nil
	}

	require.NoError(t, store.SignOut(context.Background()))
	require.Nil(t, sawDuringProviderCall)
	require.Nil(t, store.Session())
	require.Equal(t, Anonymous, store.Snapshot().State)
}

func TestSignOut_ProviderFailureStillClears(t *testing.T) {
	provider := identityfakes.NewFakeProvider("p")
	provider.SetCurrent(provider.AddAccount("a@x.com", "pw123456", "Alex"))
	provider.SignOutHook = func(context.Context) error {
		return identity.NewAuthError(identity.ReasonNetwork, "p.SignOut", errors.New("timeout"))
	}
	store, _, _ := newTestStore(t, provider)
	require.NoError(t, store.Start(context.Background()))

	err := store.SignOut(context.Background())
	require.ErrorIs(t, err, identity.ErrNetwork)
	require.Nil(t, store.Session())
}

func TestSignOut_SupersedesPendingSignIn(t *testing.T) {
	provider := identityfakes.NewFakeProvider("p")
	acct := provider.AddAccount("a@x.com", "pw123456", "Alex")

	entered := make(chan struct{})
	release := make(chan struct{})
	provider.SignInHook = func(context.Context, string, string) (*identity.Session, error) {
		close(entered)
		<-release
		return acct, nil
	}

	store, _, _ := newTestStore(t, provider)
	require.NoError(t, store.Start(context.Background()))

	done := make(chan struct{})
	go func() {
		_, _ = store.SignIn(context.Background(), "a@x.com", "pw123456")
		close(done)
	}()
	<-entered

	require.NoError(t, store.SignOut(context.Background()))
	close(release)
	<-done

	require.Nil(t, store.Session())
}

func TestSignOut_RevokesCredentialOfStaleSignIn(t *testing.T) {
	provider := identityfakes.NewFakeProvider("p")
	acct := provider.AddAccount("a@x.com", "pw123456", "Alex")

	entered := make(chan struct{})
	release := make(chan struct{})
	provider.SignInHook = func(context.Context, string, string) (*identity.Session, error) {
		close(entered)
		<-release
		provider.SetCurrent(acct) // persisted before the result reaches the store
		return acct, nil
	}

	store, _, _ := newTestStore(t, provider)
	require.NoError(t, store.Start(context.Background()))

	done := make(chan struct{})
	go func() {
		_, _ = store.SignIn(context.Background(), "a@x.com", "pw123456")
		close(done)
	}()
	<-entered

	require.NoError(t, store.SignOut(context.Background()))
	close(release)
	<-done

	require.Nil(t, store.Session())
	require.Equal(t, 2, provider.CallCount("SignOut"))

	// A fresh start must not sign the user back in.
	restarted, _, _ := newTestStore(t, provider)
	require.NoError(t, restarted.Start(context.Background()))
	require.Equal(t, Anonymous, restarted.Snapshot().State)
}

func TestSignIn_StaleResultDoesNotReplaceCredential(t *testing.T) {
	provider := identityfakes.NewFakeProvider("p")
	sessionA := provider.AddAccount("a@x.com", "pw-a", "A")
	sessionB := provider.AddAccount("b@x.com", "pw-b", "B")

	entered := make(chan struct{})
	release := make(chan struct{})
	provider.SignInHook = func(_ context.Context, email, _ string) (*identity.Session, error) {
		if email == "a@x.com" {
			close(entered)
			<-release
			provider.SetCurrent(sessionA)
			return sessionA, nil
		}
		provider.SetCurrent(sessionB)
		return sessionB, nil
	}

	store, _, _ := newTestStore(t, provider)
	require.NoError(t, store.Start(context.Background()))

	done := make(chan struct{})
	go func() {
		_, _ = store.SignIn(context.Background(), "a@x.com", "pw-a")
		close(done)
	}()
	<-entered

	_, err := store.SignIn(context.Background(), "b@x.com", "pw-b")
	require.NoError(t, err)
	close(release)
	<-done

	require.Equal(t, sessionB.IdentityID, store.Session().IdentityID)
	persisted, err := provider.RestoreSession(context.Background())
	require.NoError(t, err)
	require.Equal(t, sessionB.IdentityID, persisted.IdentityID)
	require.Equal(t, 1, provider.CallCount("AdoptSession"))
}

func TestSignIn_StaleResultWaitsForNewestCall(t *testing.T) {
	provider := identityfakes.NewFakeProvider("p")
	sessionA := provider.AddAccount("a@x.com", "pw-a", "A")
	sessionB := provider.AddAccount("b@x.com", "pw-b", "B")

	enteredB := make(chan struct{})
	releaseB := make(chan struct{})
	provider.SignInHook = func(_ context.Context, email, _ string) (*identity.Session, error) {
		if email == "a@x.com" {
			provider.SetCurrent(sessionA)
			return sessionA, nil
		}
		close(enteredB)
		<-releaseB
		provider.SetCurrent(sessionB)
		return sessionB, nil
	}

	store, _, _ := newTestStore(t, provider)
	require.NoError(t, store.Start(context.Background()))

	// B is started before A but A's call returns first, while B is in flight.
	seqA, err := store.begin()
	require.NoError(t, err)
	doneB := make(chan struct{})
	go func() {
		_, _ = store.SignIn(context.Background(), "b@x.com", "pw-b")
		close(doneB)
	}()
	<-enteredB

	session, err := provider.SignIn(context.Background(), "a@x.com", "pw-a")
	store.finishCall(context.Background(), seqA, session, err, "sign_in")
	require.Zero(t, provider.CallCount("AdoptSession"))

	close(releaseB)
	<-doneB

	require.Equal(t, sessionB.IdentityID, store.Session().IdentityID)
	persisted, err := provider.RestoreSession(context.Background())
	require.NoError(t, err)
	require.Equal(t, sessionB.IdentityID, persisted.IdentityID)
}

func TestProviderChange_LastEventWins(t *testing.T) {
	provider := identityfakes.NewFakeProvider("p")
	acct := provider.AddAccount("a@x.com", "pw123456", "Alex")
	store, runner, counter := newTestStore(t, provider)
	require.NoError(t, store.Start(context.Background()))

	var states []State
	store.Subscribe(func(s Snapshot) { states = append(states, s.State) })

	provider.Emit(nil)
	provider.Emit(acct)
	runner.Wait()

	require.Equal(t, []State{Anonymous, Authenticated}, states)
	require.Equal(t, Authenticated, store.Snapshot().State)
	require.Equal(t, []string{acct.IdentityID}, counter.activations())
}

func TestProviderChange_BeforeRestoreResolves(t *testing.T) {
	provider := identityfakes.NewFakeProvider("p")
	acct := provider.AddAccount("a@x.com", "pw123456", "Alex")
	provider.RestoreHook = func(context.Context) (*identity.Session, error) {
		provider.Emit(acct)
		return nil, nil
	}
	store, _, _ := newTestStore(t, provider)

	require.NoError(t, store.Start(context.Background()))
	require.Equal(t, Authenticated, store.Snapshot().State)
	require.False(t, store.Loading())
}

func TestActivation_OncePerTransition(t *testing.T) {
	provider := identityfakes.NewFakeProvider("p")
	acct := provider.AddAccount("a@x.com", "pw123456", "Alex")
	other := provider.AddAccount("b@x.com", "pw123456", "Blake")
	store, runner, counter := newTestStore(t, provider)
	require.NoError(t, store.Start(context.Background()))

	_, err := store.SignIn(context.Background(), "a@x.com", "pw123456")
	require.NoError(t, err)
	// Same identity again, e.g. a token refresh event.
	provider.Emit(acct)
	_, err = store.SignIn(context.Background(), "b@x.com", "pw123456")
	require.NoError(t, err)
	require.NoError(t, store.SignOut(context.Background()))
	_, err = store.SignIn(context.Background(), "a@x.com", "pw123456")
	require.NoError(t, err)
	runner.Wait()

	require.Equal(t, []string{acct.IdentityID, other.IdentityID, acct.IdentityID}, counter.activations())
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	provider := identityfakes.NewFakeProvider("p")
	provider.AddAccount("a@x.com", "pw123456", "Alex")
	store, _, _ := newTestStore(t, provider)

	var calls atomic.Int32
	unsubscribe := store.Subscribe(func(Snapshot) { calls.Add(1) })
	require.NoError(t, store.Start(context.Background()))
	unsubscribe()
	unsubscribe()

	_, err := store.SignIn(context.Background(), "a@x.com", "pw123456")
	require.NoError(t, err)
	require.Equal(t, int32(1), calls.Load())
}

func TestClose_UnregistersAndRejectsCalls(t *testing.T) {
	provider := identityfakes.NewFakeProvider("p")
	acct := provider.AddAccount("a@x.com", "pw123456", "Alex")
	store, _, _ := newTestStore(t, provider)
	require.NoError(t, store.Start(context.Background()))

	store.Close()
	require.Equal(t, 0, provider.ListenerCount())

	_, err := store.SignIn(context.Background(), "a@x.com", "pw123456")
	require.ErrorIs(t, err, alerrors.ErrStoreClosed)
	require.ErrorIs(t, store.SignOut(context.Background()), alerrors.ErrStoreClosed)

	provider.Emit(acct)
	require.Equal(t, Anonymous, store.Snapshot().State)
}

type registerHookProvider struct {
	*identityfakes.FakeProvider
	onRegister func()
}

func (p registerHookProvider) OnChange(handler identity.ChangeHandler) func() {
	unregister := p.FakeProvider.OnChange(handler)
	p.onRegister()
	return unregister
}

func TestStart_CloseDuringRegistration(t *testing.T) {
	fake := identityfakes.NewFakeProvider("p")
	var store *Store
	provider := registerHookProvider{FakeProvider: fake, onRegister: func() { store.Close() }}

	store, _, _ = newTestStore(t, provider)
	require.ErrorIs(t, store.Start(context.Background()), alerrors.ErrStoreClosed)
	require.Equal(t, 0, fake.ListenerCount())
}

func TestSignIn_ConcurrentCallsSettle(t *testing.T) {
	provider := identityfakes.NewFakeProvider("p")
	provider.AddAccount("a@x.com", "pw123456", "Alex")
	store, runner, _ := newTestStore(t, provider)
	require.NoError(t, store.Start(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.SignIn(context.Background(), "a@x.com", "pw123456")
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		runner.Wait()
		return store.Snapshot().State == Authenticated
	}, time.Second, 10*time.Millisecond)
}
