package config

import "time"

type IdentityConfig interface {
	GetKratosPublicURL() string
	GetKratosTimeout() time.Duration
	GetSessionWatchInterval() time.Duration
	GetSecondaryDSN() string
	GetSecondaryTokenSecret() string
	GetSecondaryTokenExpiry() time.Duration
	GetMirrorTimeout() time.Duration
}

type Identity struct {
	KratosPublicURL      string        `env:"KRATOS_PUBLIC_URL" envDefault:"http://localhost:4433"`
	KratosTimeout        time.Duration `env:"KRATOS_TIMEOUT" envDefault:"30s"`
	SessionWatchInterval time.Duration `env:"SESSION_WATCH_INTERVAL" envDefault:"1m"`
	SecondaryDSN         string        `env:"SECONDARY_DATABASE_URL"`
	SecondaryTokenSecret string        `env:"SECONDARY_TOKEN_SECRET"`
	SecondaryTokenExpiry time.Duration `env:"SECONDARY_TOKEN_EXPIRY" envDefault:"168h"`
	MirrorTimeout        time.Duration `env:"MIRROR_TIMEOUT" envDefault:"15s"`
}

var _ IdentityConfig = Identity{}

func (i Identity) GetKratosPublicURL() string {
	return i.KratosPublicURL
}

func (i Identity) GetKratosTimeout() time.Duration {
	return i.KratosTimeout
}

// GetSessionWatchInterval falls back to one minute for non-positive values.
func (i Identity) GetSessionWatchInterval() time.Duration {
	if i.SessionWatchInterval <= 0 {
		return time.Minute
	}
	return i.SessionWatchInterval
}

// GetSecondaryDSN is empty when the mirror backend is disabled.
func (i Identity) GetSecondaryDSN() string {
	return i.SecondaryDSN
}

func (i Identity) GetSecondaryTokenSecret() string {
	return i.SecondaryTokenSecret
}

func (i Identity) GetSecondaryTokenExpiry() time.Duration {
	return i.SecondaryTokenExpiry
}

func (i Identity) GetMirrorTimeout() time.Duration {
	return i.MirrorTimeout
}
