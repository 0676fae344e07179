package assistant

import (
	"context"

	"github.com/onepointalo/alo/internal/logging"
	"github.com/rs/zerolog"
)

// Fallback asks primary first and answers from backup when it fails.
type Fallback struct {
	primary Responder
	backup  Responder
	log     zerolog.Logger
}

var _ Responder = (*Fallback)(nil)

func NewFallback(primary, backup Responder, log zerolog.Logger) *Fallback {
	return &Fallback{primary: primary, backup: backup, log: logging.Component(log, "assistant")}
}

func (f *Fallback) Reply(ctx context.Context, history []Message) (string, error) {
	if f.primary != nil {
		reply, err := f.primary.Reply(ctx, history)
		if err == nil {
			return reply, nil
		}
		logging.NonCritical(f.log, err).Msg("assistant backend failed, using canned reply (non-critical)")
	}
	return f.backup.Reply(ctx, history)
}

// New returns the OpenAI responder backed by canned replies, or canned
// replies alone when no API key is configured.
func New(cfg OpenAIConfig, log zerolog.Logger) Responder {
	if cfg.APIKey == "" {
		return Canned{}
	}
	primary, err := NewOpenAI(cfg, log)
	if err != nil {
		log.Warn().Err(err).Msg("openai responder unavailable")
		return Canned{}
	}
	return NewFallback(primary, Canned{}, log)
}
