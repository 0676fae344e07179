package config

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetLogFormat() string
	GetStatePath() string
	GetBackgroundConcurrency() int
}

type EnvVars struct {
	AppName               string `env:"APP_NAME" envDefault:"OnePoint ALO"`
	Environment           string `env:"ENV" envDefault:"DEV"`
	LogLevel              string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat             string `env:"LOG_FORMAT" envDefault:"console"`
	StatePath             string `env:"STATE_PATH" envDefault:"./data/alo.db"`
	BackgroundConcurrency int    `env:"BACKGROUND_CONCURRENCY" envDefault:"8"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	if e.Environment == "" {
		return "DEV"
	}
	return e.Environment
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

func (e EnvVars) GetLogFormat() string {
	return e.LogFormat
}

// GetStatePath is the SQLite file holding persisted tokens and local flags.
func (e EnvVars) GetStatePath() string {
	return e.StatePath
}

func (e EnvVars) GetBackgroundConcurrency() int {
	if e.BackgroundConcurrency <= 0 {
		return 1
	}
	return e.BackgroundConcurrency
}
