package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" warn "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
}

func TestInitJSON(t *testing.T) {
	saved := log.Logger
	defer func() {
		log.Logger = saved
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}()

	var buf bytes.Buffer
	InitWithWriter(&buf, "info", "json")
	log.Warn().Str("blob_key", "files/1/a").Msg("blob delete failed")
	log.Debug().Msg("filtered")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "files/1/a", line["blob_key"])
}
