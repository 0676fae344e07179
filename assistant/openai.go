package assistant

import (
	"context"
	"strings"

	"github.com/onepointalo/alo/internal/logging"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultModel = openai.GPT3Dot5Turbo

	systemPrompt = "You are a helpful assistant for OnePoint ALO, an autonomous life operating system. Help users manage their needs, find service providers, and organize their tasks efficiently. Be concise and friendly."
	emptyReply   = "Sorry, I could not generate a response."
)

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAI answers through a chat completion endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
	log    zerolog.Logger
}

var _ Responder = (*OpenAI)(nil)

func NewOpenAI(cfg OpenAIConfig, log zerolog.Logger) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("[assistant.NewOpenAI] api key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		log:    logging.Component(log, "assistant-openai"),
	}, nil
}

func (o *OpenAI) Reply(ctx context.Context, history []Message) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: messages,
	})
	if err != nil {
		return "", errors.Wrap(err, "[assistant.Reply] chat completion")
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		o.log.Debug().Str("model", o.model).Msg("empty completion")
		return emptyReply, nil
	}
	return resp.Choices[0].Message.Content, nil
}
