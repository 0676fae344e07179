package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/onepointalo/alo/internal/config"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, "OnePoint ALO", c.GetAppName())
	require.Equal(t, 5*time.Second, c.GetBootstrapListTimeout())
	require.Equal(t, "gpt-3.5-turbo", c.GetOpenAIModel())
	require.Equal(t, 8, c.GetBackgroundConcurrency())
	require.Empty(t, c.GetSecondaryDSN())
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("KRATOS_PUBLIC_URL", "https://id.example.com")
	t.Setenv("STORAGE_BOOTSTRAP_LIST_TIMEOUT", "2s")
	t.Setenv("S3_ENDPOINT", "http://minio:9000")
	t.Setenv("BACKGROUND_CONCURRENCY", "0")
	t.Setenv("SESSION_WATCH_INTERVAL", "-5s")

	c, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, "https://id.example.com", c.GetKratosPublicURL())
	require.Equal(t, 2*time.Second, c.GetBootstrapListTimeout())
	require.Equal(t, "http://minio:9000", c.GetS3PublicEndpoint())
	require.Equal(t, 1, c.GetBackgroundConcurrency())
	require.Equal(t, time.Minute, c.GetSessionWatchInterval())
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("ALO_TEST_ONLY=1\nOPENAI_MODEL=gpt-4o-mini\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("ALO_TEST_ONLY")
		os.Unsetenv("OPENAI_MODEL")
	})

	c, err := config.Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	require.Equal(t, "gpt-4o-mini", c.GetOpenAIModel())
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("MIRROR_TIMEOUT", "soon")

	_, err := config.Load()
	require.Error(t, err)
}
