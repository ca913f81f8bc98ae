package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithWriter_Levels(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	for in, want := range map[string]zerolog.Level{
		"debug":    zerolog.DebugLevel,
		"":         zerolog.InfoLevel,
		"WARN":     zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"disabled": zerolog.Disabled,
	} {
		require.NoError(t, InitWithWriter(in, &bytes.Buffer{}))
		assert.Equal(t, want, zerolog.GlobalLevel(), in)
	}
	assert.Error(t, InitWithWriter("verbose", &bytes.Buffer{}))
}

func TestInitWithWriter_WritesToGivenWriter(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	require.NoError(t, InitWithWriter("info", &buf))
	log.Info().Str("model", "tf1").Msg("model loaded")
	log.Debug().Msg("hidden")
	assert.Contains(t, buf.String(), "model loaded")
	assert.Contains(t, buf.String(), "tf1")
	assert.NotContains(t, buf.String(), "hidden")
}
