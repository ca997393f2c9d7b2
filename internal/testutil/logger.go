// Package testutil holds small helpers shared by package tests.
package testutil

import (
	"io"
	"testing"

	"github.com/rs/zerolog"
)

// Logger returns a silent logger for tests. Use VerboseLogger when a
// failing test needs the log stream.
func Logger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(io.Discard)
}

// VerboseLogger routes log output through t.Log so it shows up with
// -v and on failure.
func VerboseLogger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(tWriter{t}).With().Timestamp().Logger()
}

type tWriter struct {
	t *testing.T
}

func (w tWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
