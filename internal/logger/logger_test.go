package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNew_Levels(t *testing.T) {
	testCases := []struct {
		level    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"chatty", zerolog.InfoLevel},
	}
	for _, tc := range testCases {
		t.Run(tc.level, func(t *testing.T) {
			New(Config{Level: tc.level, Out: &bytes.Buffer{}})
			assert.Equal(t, tc.expected, zerolog.GlobalLevel())
		})
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func TestNew_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Out: &buf})
	l.Info().Int("routes", 3).Msg("plan built")
	assert.Contains(t, buf.String(), `"message":"plan built"`)
	assert.Contains(t, buf.String(), `"routes":3`)
	assert.Contains(t, buf.String(), `"service":"patrolnav"`)
}

func TestNew_Pretty(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Pretty: true, Out: &buf})
	l.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.NotContains(t, buf.String(), `"message"`)
}
