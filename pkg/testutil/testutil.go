// Package testutil holds small helpers shared across test suites.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"time"

	"fieldkey/pkg/requestcontext"
)

// ContextAt returns a context whose request clock is pinned to t. Services
// read time through requestcontext.Now, so tests control expiry behavior by
// choosing t.
func ContextAt(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

// Logger returns a logger that discards everything. Suites pass it to
// services whose log output is not under test.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
