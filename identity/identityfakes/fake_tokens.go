package identityfakes

import (
	"context"
	"sync"

	"github.com/onepointalo/alo/identity"
)

var _ identity.TokenStore = (*FakeTokens)(nil)

// FakeTokens is an in-memory identity.TokenStore. Err, when set, fails every call.
type FakeTokens struct {
	token string
	lock  sync.Mutex
	Err   error
}

func NewFakeTokens(initial string) *FakeTokens {
	return &FakeTokens{token: initial}
}

func (t *FakeTokens) GetToken(ctx context.Context) (string, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.token, t.Err
}

func (t *FakeTokens) SetToken(ctx context.Context, token string) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.Err != nil {
		return t.Err
	}
	t.token = token
	return nil
}

func (t *FakeTokens) ClearToken(ctx context.Context) error {
	return t.SetToken(ctx, "")
}
