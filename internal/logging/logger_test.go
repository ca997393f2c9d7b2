package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "warn", Output: &buf})

	logger.Info().Msg("dropped")
	logger.Warn().Msg("kept")

	if got := buf.String(); !bytes.Contains(buf.Bytes(), []byte("kept")) || bytes.Contains(buf.Bytes(), []byte("dropped")) {
		t.Errorf("output = %q, want only the warn line", got)
	}
}

func TestNew_UnknownLevelFallsBack(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "chatty", Output: &buf})
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Errorf("level = %v, want info", logger.GetLevel())
	}
}

func TestNew_StructuredOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "info", Output: &buf})
	logger.Info().Str("session_id", "abc").Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["session_id"] != "abc" || entry["message"] != "hello" {
		t.Errorf("entry = %v", entry)
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(Config{Level: "info", Output: &buf}, "resolver")
	logger.Info().Msg("x")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["component"] != "resolver" {
		t.Errorf("component = %v, want resolver", entry["component"])
	}
}
