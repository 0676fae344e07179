package config

type AssistantConfig interface {
	GetOpenAIKey() string
	GetOpenAIBaseURL() string
	GetOpenAIModel() string
}

type Assistant struct {
	OpenAIKey     string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-3.5-turbo"`
}

var _ AssistantConfig = Assistant{}

// GetOpenAIKey is empty when only canned replies should be used.
func (a Assistant) GetOpenAIKey() string {
	return a.OpenAIKey
}

func (a Assistant) GetOpenAIBaseURL() string {
	return a.OpenAIBaseURL
}

func (a Assistant) GetOpenAIModel() string {
	return a.OpenAIModel
}
