package buslog

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/sat8bit/machi/bus"
	"github.com/sat8bit/machi/notify"
)

// BusHandler is a slog.Handler that mirrors log records onto a bus.Bus so
// realtime observers can watch the simulation log. It wraps another
// slog.Handler to continue writing to the original destination.
type BusHandler struct {
	bus   bus.Bus
	inner slog.Handler
}

// NewBusHandler creates a new BusHandler wrapping inner.
func NewBusHandler(b bus.Bus, inner slog.Handler) *BusHandler {
	return &BusHandler{
		bus:   b,
		inner: inner,
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *BusHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle handles the Record.
// It broadcasts the log message to the bus and then passes the record
// to the wrapped handler. A bus failure never fails the log call.
func (h *BusHandler) Handle(ctx context.Context, r slog.Record) error {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("[%s] %s", r.Level, r.Message))
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(fmt.Sprintf(" %s=%v", a.Key, a.Value))
		return true
	})

	_ = h.bus.Broadcast(notify.Log(buf.String()))

	return h.inner.Handle(ctx, r)
}

// WithAttrs returns a new BusHandler whose attributes consist of
// the handler's attributes followed by attrs.
func (h *BusHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &BusHandler{
		bus:   h.bus,
		inner: h.inner.WithAttrs(attrs),
	}
}

// WithGroup returns a new BusHandler with the given group name.
func (h *BusHandler) WithGroup(name string) slog.Handler {
	return &BusHandler{
		bus:   h.bus,
		inner: h.inner.WithGroup(name),
	}
}

var _ slog.Handler = (*BusHandler)(nil)
