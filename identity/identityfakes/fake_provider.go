package identityfakes

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/onepointalo/alo/identity"
)

var (
	_ identity.Provider       = (*FakeProvider)(nil)
	_ identity.SessionAdopter = (*FakeProvider)(nil)
)

type fakeAccount struct {
	id          string
	secret      string
	displayName string
}

// FakeProvider is an in-memory identity.Provider. Setting a hook replaces the
// default behaviour of that operation; hooks must be set before use.
type FakeProvider struct {
	name      string
	accounts  map[string]fakeAccount // email to account
	current   *identity.Session
	calls     []string
	listeners *identity.Listeners
	lock      sync.Mutex

	RestoreHook func(ctx context.Context) (*identity.Session, error)
	SignInHook  func(ctx context.Context, email, secret string) (*identity.Session, error)
	SignUpHook  func(ctx context.Context, email, secret, displayName string) (*identity.Session, error)
	SignOutHook func(ctx context.Context) error
}

func NewFakeProvider(name string) *FakeProvider {
	return &FakeProvider{
		name:      name,
		accounts:  make(map[string]fakeAccount),
		listeners: identity.NewListeners(),
	}
}

// AddAccount seeds an account and returns the session a sign-in would produce.
func (f *FakeProvider) AddAccount(email, secret, displayName string) *identity.Session {
	f.lock.Lock()
	defer f.lock.Unlock()

	acct := fakeAccount{id: uuid.New().String(), secret: secret, displayName: displayName}
	f.accounts[email] = acct
	return f.sessionFor(email, acct)
}

// SetCurrent sets the session RestoreSession returns by default.
func (f *FakeProvider) SetCurrent(s *identity.Session) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.current = s
}

// Emit simulates a change observed by the backend, e.g. from another device.
func (f *FakeProvider) Emit(s *identity.Session) {
	f.listeners.Emit(s)
}

func (f *FakeProvider) ListenerCount() int {
	return f.listeners.Len()
}

func (f *FakeProvider) Calls() []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *FakeProvider) CallCount(op string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == op {
			n++
		}
	}
	return n
}

func (f *FakeProvider) record(op string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.calls = append(f.calls, op)
}

func (f *FakeProvider) RestoreSession(ctx context.Context) (*identity.Session, error) {
	f.record("RestoreSession")
	if f.RestoreHook != nil {
		return f.RestoreHook(ctx)
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.current, nil
}

func (f *FakeProvider) SignIn(ctx context.Context, email, secret string) (*identity.Session, error) {
	f.record("SignIn")
	if f.SignInHook != nil {
		return f.SignInHook(ctx, email, secret)
	}

	f.lock.Lock()
	defer f.lock.Unlock()

	acct, ok := f.accounts[email]
	if !ok || acct.secret != secret {
		return nil, identity.NewAuthError(identity.ReasonInvalidCredentials, f.name+".SignIn", nil)
	}
	f.current = f.sessionFor(email, acct)
	return f.current, nil
}

func (f *FakeProvider) SignUp(ctx context.Context, email, secret, displayName string) (*identity.Session, error) {
	f.record("SignUp")
	if f.SignUpHook != nil {
		return f.SignUpHook(ctx, email, secret, displayName)
	}

	f.lock.Lock()
	defer f.lock.Unlock()

	if _, ok := f.accounts[email]; ok {
		return nil, identity.NewAuthError(identity.ReasonEmailTaken, f.name+".SignUp", nil)
	}
	acct := fakeAccount{id: uuid.New().String(), secret: secret, displayName: displayName}
	f.accounts[email] = acct
	f.current = f.sessionFor(email, acct)
	return f.current, nil
}

func (f *FakeProvider) SignOut(ctx context.Context) error {
	f.record("SignOut")
	if f.SignOutHook != nil {
		return f.SignOutHook(ctx)
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	f.current = nil
	return nil
}

// AdoptSession makes s the session RestoreSession returns.
func (f *FakeProvider) AdoptSession(ctx context.Context, s *identity.Session) error {
	f.record("AdoptSession")
	f.SetCurrent(s)
	return nil
}

func (f *FakeProvider) OnChange(handler identity.ChangeHandler) func() {
	return f.listeners.Add(handler)
}

func (f *FakeProvider) sessionFor(email string, acct fakeAccount) *identity.Session {
	return &identity.Session{
		IdentityID:  acct.id,
		Email:       email,
		DisplayName: acct.displayName,
		Metadata:    map[string]any{identity.MetadataFullName: acct.displayName},
		Token:       f.name + "-token-" + acct.id,
	}
}
