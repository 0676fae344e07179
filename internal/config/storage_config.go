package config

import "time"

type StorageConfig interface {
	GetS3Endpoint() string
	GetS3PublicEndpoint() string
	GetS3Region() string
	GetS3AccessKeyID() string
	GetS3SecretKey() string
	GetS3UsePathStyle() bool
	GetBootstrapListTimeout() time.Duration
}

type Storage struct {
	S3Endpoint           string        `env:"S3_ENDPOINT"`
	S3PublicEndpoint     string        `env:"S3_PUBLIC_ENDPOINT"`
	S3Region             string        `env:"S3_REGION" envDefault:"us-east-1"`
	S3AccessKeyID        string        `env:"S3_ACCESS_KEY_ID"`
	S3SecretKey          string        `env:"S3_SECRET_ACCESS_KEY"`
	S3UsePathStyle       bool          `env:"S3_USE_PATH_STYLE" envDefault:"true"`
	BootstrapListTimeout time.Duration `env:"STORAGE_BOOTSTRAP_LIST_TIMEOUT" envDefault:"5s"`
}

var _ StorageConfig = Storage{}

func (s Storage) GetS3Endpoint() string {
	return s.S3Endpoint
}

// GetS3PublicEndpoint is the base used for public object URLs, defaulting to the API endpoint.
func (s Storage) GetS3PublicEndpoint() string {
	if s.S3PublicEndpoint == "" {
		return s.S3Endpoint
	}
	return s.S3PublicEndpoint
}

func (s Storage) GetS3Region() string {
	return s.S3Region
}

func (s Storage) GetS3AccessKeyID() string {
	return s.S3AccessKeyID
}

func (s Storage) GetS3SecretKey() string {
	return s.S3SecretKey
}

func (s Storage) GetS3UsePathStyle() bool {
	return s.S3UsePathStyle
}

func (s Storage) GetBootstrapListTimeout() time.Duration {
	return s.BootstrapListTimeout
}
