package identity

import "context"

// ChangeHandler receives the provider's session after every underlying change.
// A nil session means signed out.
type ChangeHandler func(session *Session)

// Provider is the capability surface every identity backend presents.
type Provider interface {
	// RestoreSession reads the persisted credential. No session is (nil, nil).
	RestoreSession(ctx context.Context) (*Session, error)

	// SignIn authenticates with the backend. Failures are *AuthError.
	SignIn(ctx context.Context, email, secret string) (*Session, error)

	// SignUp creates the account and signs it in. Failures are *AuthError.
	SignUp(ctx context.Context, email, secret, displayName string) (*Session, error)

	// SignOut ends the session and forgets the persisted credential.
	SignOut(ctx context.Context) error

	// OnChange registers a listener for changes the provider observes on its
	// own, such as expiry or sign-out from another device.
	OnChange(handler ChangeHandler) (unregister func())
}

// TokenStore persists a provider's session credential between runs.
type TokenStore interface {
	GetToken(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

// SessionAdopter is implemented by providers that can make a session they
// issued earlier the persisted credential again.
type SessionAdopter interface {
	AdoptSession(ctx context.Context, session *Session) error
}
