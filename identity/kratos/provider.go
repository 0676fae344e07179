// Package kratos is the primary identity provider, backed by the Ory Kratos
// native (API) self-service flows.
package kratos

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/onepointalo/alo/identity"
	"github.com/onepointalo/alo/internal/logging"
	kratosclient "github.com/ory/kratos-client-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	passwordMethod = "password"
	traitEmail     = "email"
)

var (
	_ identity.Provider       = (*Provider)(nil)
	_ identity.SessionAdopter = (*Provider)(nil)
)

// Config holds the connection settings for the Kratos public API.
type Config struct {
	PublicURL  string
	Timeout    time.Duration
	HTTPClient *http.Client // optional, overrides Timeout
}

// Provider talks to Kratos and persists the session token through a TokenStore.
type Provider struct {
	api       *kratosclient.APIClient
	tokens    identity.TokenStore
	listeners *identity.Listeners
	log       zerolog.Logger

	mu    sync.Mutex
	known *identity.Session // last session this provider reported
}

func New(cfg Config, tokens identity.TokenStore, log zerolog.Logger) (*Provider, error) {
	if cfg.PublicURL == "" {
		return nil, errors.New("[kratos.New] public URL is required")
	}
	if tokens == nil {
		return nil, errors.New("[kratos.New] token store is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	kc := kratosclient.NewConfiguration()
	kc.Servers = kratosclient.ServerConfigurations{{URL: cfg.PublicURL}}
	kc.HTTPClient = httpClient
	kc.DefaultHeader = map[string]string{"Accept": "application/json"}

	return &Provider{
		api:       kratosclient.NewAPIClient(kc),
		tokens:    tokens,
		listeners: identity.NewListeners(),
		log:       logging.Component(log, "kratos"),
	}, nil
}

// RestoreSession validates the persisted token. A missing, expired or revoked
// token is an empty result, not an error.
func (p *Provider) RestoreSession(ctx context.Context) (*identity.Session, error) {
	token, err := p.tokens.GetToken(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "[kratos.RestoreSession] read token")
	}
	if token == "" {
		p.setKnown(nil)
		return nil, nil
	}

	session, err := p.whoami(ctx, token)
	if err != nil {
		return nil, err
	}
	p.setKnown(session)
	return session, nil
}

func (p *Provider) SignIn(ctx context.Context, email, secret string) (*identity.Session, error) {
	const op = "kratos.SignIn"

	flow, httpResp, err := p.api.FrontendAPI.CreateNativeLoginFlow(ctx).Execute()
	if err != nil {
		return nil, classify(op, err, httpResp)
	}

	body := kratosclient.UpdateLoginFlowWithPasswordMethod{
		Identifier: email,
		Password:   secret,
		Method:     passwordMethod,
	}
	resp, httpResp, err := p.api.FrontendAPI.
		UpdateLoginFlow(ctx).
		Flow(flow.GetId()).
		UpdateLoginFlowBody(kratosclient.UpdateLoginFlowWithPasswordMethodAsUpdateLoginFlowBody(&body)).
		Execute()
	if err != nil {
		p.log.Debug().Err(err).Int("http_status", httpStatus(httpResp)).Msg("login flow rejected")
		return nil, classify(op, err, httpResp)
	}

	return p.activate(ctx, op, resp.GetSession(), resp.GetSessionToken())
}

func (p *Provider) SignUp(ctx context.Context, email, secret, displayName string) (*identity.Session, error) {
	const op = "kratos.SignUp"

	flow, httpResp, err := p.api.FrontendAPI.CreateNativeRegistrationFlow(ctx).Execute()
	if err != nil {
		return nil, classify(op, err, httpResp)
	}

	body := kratosclient.UpdateRegistrationFlowWithPasswordMethod{
		Method:   passwordMethod,
		Password: secret,
		Traits: map[string]interface{}{
			traitEmail:                email,
			identity.MetadataFullName: displayName,
		},
	}
	resp, httpResp, err := p.api.FrontendAPI.
		UpdateRegistrationFlow(ctx).
		Flow(flow.GetId()).
		UpdateRegistrationFlowBody(kratosclient.UpdateRegistrationFlowWithPasswordMethodAsUpdateRegistrationFlowBody(&body)).
		Execute()
	if err != nil {
		p.log.Debug().Err(err).Int("http_status", httpStatus(httpResp)).Msg("registration flow rejected")
		return nil, classify(op, err, httpResp)
	}

	// Registration without the session hook enabled returns no session.
	if resp.Session == nil || resp.GetSessionToken() == "" {
		return nil, identity.NewAuthError(identity.ReasonUnknown, op, errors.New("registration returned no session; enable the session after-registration hook"))
	}
	session := resp.GetSession()
	if session.Identity == nil {
		ident := resp.GetIdentity()
		session.Identity = &ident
	}
	return p.activate(ctx, op, session, resp.GetSessionToken())
}

// SignOut revokes the session token remotely and always forgets it locally.
func (p *Provider) SignOut(ctx context.Context) error {
	token, err := p.tokens.GetToken(ctx)
	if err != nil {
		return errors.Wrap(err, "[kratos.SignOut] read token")
	}
	p.setKnown(nil)
	if token == "" {
		return nil
	}

	if err := p.tokens.ClearToken(ctx); err != nil {
		return errors.Wrap(err, "[kratos.SignOut] clear token")
	}

	httpResp, err := p.api.FrontendAPI.
		PerformNativeLogout(ctx).
		PerformNativeLogoutBody(*kratosclient.NewPerformNativeLogoutBody(token)).
		Execute()
	if err != nil && !isUnauthorized(httpResp) {
		return classify("kratos.SignOut", err, httpResp)
	}
	return nil
}

func (p *Provider) OnChange(handler identity.ChangeHandler) func() {
	return p.listeners.Add(handler)
}

// AdoptSession persists the token of a session this provider issued earlier.
func (p *Provider) AdoptSession(ctx context.Context, session *identity.Session) error {
	if session == nil || session.Token == "" {
		return errors.New("[kratos.AdoptSession] session token is required")
	}
	if err := p.tokens.SetToken(ctx, session.Token); err != nil {
		return errors.Wrap(err, "[kratos.AdoptSession] persist token")
	}
	p.setKnown(session)
	return nil
}

func (p *Provider) activate(ctx context.Context, op string, ks kratosclient.Session, token string) (*identity.Session, error) {
	session, err := sessionFromKratos(ks, token)
	if err != nil {
		return nil, identity.NewAuthError(identity.ReasonUnknown, op, err)
	}
	if err := p.tokens.SetToken(ctx, token); err != nil {
		return nil, identity.NewAuthError(identity.ReasonUnknown, op, errors.Wrap(err, "persist token"))
	}
	p.setKnown(session)
	p.log.Info().Str("identity_id", session.IdentityID).Str("op", op).Msg("session established")
	return session, nil
}

// whoami resolves token to a session; (nil, nil) when Kratos no longer accepts it.
func (p *Provider) whoami(ctx context.Context, token string) (*identity.Session, error) {
	const op = "kratos.RestoreSession"

	ks, httpResp, err := p.api.FrontendAPI.ToSession(ctx).XSessionToken(token).Execute()
	if err != nil {
		if isUnauthorized(httpResp) {
			p.log.Info().Int("http_status", httpStatus(httpResp)).Msg("persisted session no longer valid")
			if cerr := p.tokens.ClearToken(ctx); cerr != nil {
				return nil, errors.Wrap(cerr, "["+op+"] clear token")
			}
			return nil, nil
		}
		return nil, classify(op, err, httpResp)
	}
	if ks.Active != nil && !*ks.Active {
		if cerr := p.tokens.ClearToken(ctx); cerr != nil {
			return nil, errors.Wrap(cerr, "["+op+"] clear token")
		}
		return nil, nil
	}

	session, err := sessionFromKratos(*ks, token)
	if err != nil {
		return nil, identity.NewAuthError(identity.ReasonUnknown, op, err)
	}
	return session, nil
}

func (p *Provider) setKnown(s *identity.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.known = s
}

func (p *Provider) getKnown() *identity.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.known
}

// sessionFromKratos maps a Kratos session onto identity.Session. Traits other
// than email, and public metadata, become Metadata.
func sessionFromKratos(ks kratosclient.Session, token string) (*identity.Session, error) {
	ident := ks.GetIdentity()
	if ident.Id == "" {
		return nil, errors.New("session has no identity")
	}

	metadata := make(map[string]any)
	var email string
	if traits, ok := ident.GetTraits().(map[string]interface{}); ok {
		for k, v := range traits {
			if k == traitEmail {
				email, _ = v.(string)
				continue
			}
			metadata[k] = v
		}
	}
	if public, ok := ident.GetMetadataPublic().(map[string]interface{}); ok {
		for k, v := range public {
			if _, exists := metadata[k]; !exists {
				metadata[k] = v
			}
		}
	}

	return &identity.Session{
		IdentityID:  ident.Id,
		Email:       email,
		DisplayName: identity.DisplayNameFrom(metadata),
		Metadata:    metadata,
		Token:       token,
	}, nil
}
