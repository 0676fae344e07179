package logging_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/onepointalo/alo/internal/logging"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter(t *testing.T) {
	t.Run("json output", func(t *testing.T) {
		var buf bytes.Buffer
		log, err := logging.NewWithWriter("debug", "json", &buf)
		require.NoError(t, err)

		logging.NonCritical(logging.Component(log, "mirror"), errors.New("boom")).Msg("mirror failed (non-critical)")

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		require.Equal(t, "warn", line["level"])
		require.Equal(t, "mirror", line["component"])
		require.Equal(t, true, line["non_critical"])
		require.Equal(t, "boom", line["error"])
	})

	t.Run("level filters", func(t *testing.T) {
		var buf bytes.Buffer
		log, err := logging.NewWithWriter("error", "json", &buf)
		require.NoError(t, err)

		log.Info().Msg("hidden")
		require.Zero(t, buf.Len())
	})

	t.Run("bad level", func(t *testing.T) {
		_, err := logging.NewWithWriter("loud", "json", &bytes.Buffer{})
		require.Error(t, err)
	})

	t.Run("bad format", func(t *testing.T) {
		_, err := logging.NewWithWriter("info", "xml", &bytes.Buffer{})
		require.Error(t, err)
	})
}
