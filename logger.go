package motorino

import (
	"context"
	"log/slog"
)

// nopHandler discards all log records. Enabled returns false so callers
// skip message formatting entirely, making disabled logging near-free.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output. The
// engine logs nothing unless WithLogger installs a real handler; the same
// sink receives validation-layer messages when validation is enabled.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }
