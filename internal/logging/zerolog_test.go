package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestZerologLogger_JSONFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewZerologWriter(ZerologOptions{Level: "debug", JSON: true, Output: buf})

	logger.Warn("skipping resource", "resource", "TestDB", "error", errors.New("boom"), "count", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "warn", line["level"])
	require.Equal(t, "skipping resource", line["message"])
	require.Equal(t, "TestDB", line["resource"])
	require.Equal(t, "boom", line["error"])
	require.InDelta(t, 3, line["count"], 0)
	require.Contains(t, line, "time")
}

func TestZerologLogger_LevelFilter(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewZerologWriter(ZerologOptions{Level: "error", JSON: true, Output: buf})

	logger.Info("hidden")
	logger.Debug("hidden")
	require.Empty(t, buf.String())

	logger.Error("shown", "dangling")
	require.Contains(t, buf.String(), "shown")
	require.Contains(t, buf.String(), "<missing>")
}

func TestParseZerologLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			require.Equal(t, want, ParseZerologLevel(in))
		})
	}
}

func TestNewZerolog(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewZerolog(zerolog.New(buf))
	logger.Info("hello", "k", "v")
	require.Contains(t, buf.String(), `"k":"v"`)
}
