// Package postgres is the secondary identity provider. It keeps its own
// account table and session tokens so legacy read paths keep working, and
// offers the generic row insert used for profile records.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/onepointalo/alo/identity"
	"github.com/onepointalo/alo/internal/logging"
	"github.com/onepointalo/alo/users"
	"github.com/rs/zerolog"
)

const uniqueViolation = "23505"

var _ identity.Provider = (*Provider)(nil)

type Provider struct {
	db        DatabaseIface
	tokens    identity.TokenStore
	signer    tokenSigner
	listeners *identity.Listeners
	log       zerolog.Logger
	newID     func() string
}

// ProviderOption defines a function type to modify the Provider instance.
type ProviderOption func(*Provider)

// WithNowTime sets the clock used for token issue and validation (primarily for testing).
func WithNowTime(nowFunc func() time.Time) ProviderOption {
	return func(p *Provider) {
		p.signer.nowTime = nowFunc
	}
}

// WithIDGenerator sets the identity id generator (primarily for testing).
func WithIDGenerator(newID func() string) ProviderOption {
	return func(p *Provider) {
		p.newID = newID
	}
}

func New(db DatabaseIface, tokens identity.TokenStore, secret string, expiry time.Duration, log zerolog.Logger, options ...ProviderOption) (*Provider, error) {
	if db == nil {
		return nil, errors.New("[postgres.New] database is required")
	}
	if tokens == nil {
		return nil, errors.New("[postgres.New] token store is required")
	}
	if secret == "" {
		return nil, errors.New("[postgres.New] token secret is required")
	}
	if expiry <= 0 {
		expiry = 7 * 24 * time.Hour
	}

	p := &Provider{
		db:        db,
		tokens:    tokens,
		signer:    tokenSigner{secret: []byte(secret), expiry: expiry, nowTime: time.Now},
		listeners: identity.NewListeners(),
		log:       logging.Component(log, "postgres-identity"),
		newID:     func() string { return uuid.New().String() },
	}
	for _, opt := range options {
		opt(p)
	}
	return p, nil
}

func (p *Provider) RestoreSession(ctx context.Context) (*identity.Session, error) {
	token, err := p.tokens.GetToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("[postgres.RestoreSession] read token: %w", err)
	}
	if token == "" {
		return nil, nil
	}

	id, err := p.signer.subject(token)
	if err != nil {
		p.log.Info().Err(err).Msg("persisted session token rejected")
		return nil, p.tokens.ClearToken(ctx)
	}

	var email, displayName string
	var rawMetadata []byte
	err = p.db.QueryRow(ctx,
		`SELECT email, display_name, metadata FROM auth_identities WHERE id = $1`, id,
	).Scan(&email, &displayName, &rawMetadata)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, p.tokens.ClearToken(ctx)
	}
	if err != nil {
		return nil, classify("postgres.RestoreSession", err)
	}

	return p.newSession(id, email, displayName, rawMetadata, token), nil
}

func (p *Provider) SignIn(ctx context.Context, email, secret string) (*identity.Session, error) {
	const op = "postgres.SignIn"

	var id, hash, displayName string
	var rawMetadata []byte
	err := p.db.QueryRow(ctx,
		`SELECT id, password_hash, display_name, metadata FROM auth_identities WHERE email = $1`, email,
	).Scan(&id, &hash, &displayName, &rawMetadata)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, identity.NewAuthError(identity.ReasonInvalidCredentials, op, nil)
	}
	if err != nil {
		return nil, classify(op, err)
	}
	if !users.CheckPasswordHash(secret, hash) {
		return nil, identity.NewAuthError(identity.ReasonInvalidCredentials, op, nil)
	}

	token, err := p.issue(ctx, op, id, email)
	if err != nil {
		return nil, err
	}
	return p.newSession(id, email, displayName, rawMetadata, token), nil
}

func (p *Provider) SignUp(ctx context.Context, email, secret, displayName string) (*identity.Session, error) {
	const op = "postgres.SignUp"

	hash, err := users.HashPassword(secret)
	if err != nil {
		return nil, identity.NewAuthError(identity.ReasonUnknown, op, err)
	}
	metadata := map[string]any{
		identity.MetadataFullName:      displayName,
		identity.MetadataFullNameCamel: displayName,
	}
	rawMetadata, err := json.Marshal(metadata)
	if err != nil {
		return nil, identity.NewAuthError(identity.ReasonUnknown, op, err)
	}

	id := p.newID()
	_, err = p.db.Exec(ctx,
		`INSERT INTO auth_identities (id, email, password_hash, display_name, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, email, hash, displayName, rawMetadata, p.signer.nowTime().UTC(),
	)
	if err != nil {
		return nil, classify(op, err)
	}

	token, err := p.issue(ctx, op, id, email)
	if err != nil {
		return nil, err
	}
	return p.newSession(id, email, displayName, rawMetadata, token), nil
}

// SignOut forgets the token; secondary tokens are stateless and simply expire.
func (p *Provider) SignOut(ctx context.Context) error {
	return p.tokens.ClearToken(ctx)
}

// OnChange never fires: the secondary has no out-of-band session changes.
func (p *Provider) OnChange(handler identity.ChangeHandler) func() {
	return p.listeners.Add(handler)
}

// InsertRow inserts row into table. Columns are written in sorted order.
func (p *Provider) InsertRow(ctx context.Context, table string, row map[string]any) error {
	if len(row) == 0 {
		return fmt.Errorf("[postgres.InsertRow] %s: empty row", table)
	}

	columns := make([]string, 0, len(row))
	for c := range row {
		columns = append(columns, c)
	}
	sort.Strings(columns)

	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, c := range columns {
		quoted[i] = pgx.Identifier{c}.Sanitize()
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = row[c]
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pgx.Identifier{table}.Sanitize(), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	if _, err := p.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("[postgres.InsertRow] %s: %w", table, err)
	}
	return nil
}

func (p *Provider) issue(ctx context.Context, op, id, email string) (string, error) {
	token, err := p.signer.create(id, email)
	if err != nil {
		return "", identity.NewAuthError(identity.ReasonUnknown, op, err)
	}
	if err := p.tokens.SetToken(ctx, token); err != nil {
		return "", identity.NewAuthError(identity.ReasonUnknown, op, err)
	}
	return token, nil
}

func (p *Provider) newSession(id, email, displayName string, rawMetadata []byte, token string) *identity.Session {
	metadata := map[string]any{}
	if len(rawMetadata) > 0 {
		if err := json.Unmarshal(rawMetadata, &metadata); err != nil {
			p.log.Debug().Err(err).Str("identity_id", id).Msg("ignoring unreadable account metadata")
			metadata = map[string]any{}
		}
	}
	if displayName == "" {
		displayName = identity.DisplayNameFrom(metadata)
	}
	return &identity.Session{
		IdentityID:  id,
		Email:       email,
		DisplayName: displayName,
		Metadata:    metadata,
		Token:       token,
	}
}

func classify(op string, err error) *identity.AuthError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == uniqueViolation {
			return identity.NewAuthError(identity.ReasonEmailTaken, op, err)
		}
		return identity.NewAuthError(identity.ReasonUnknown, op, err)
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return identity.NewAuthError(identity.ReasonNetwork, op, err)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return identity.NewAuthError(identity.ReasonNetwork, op, err)
	}
	return identity.NewAuthError(identity.ReasonUnknown, op, err)
}
