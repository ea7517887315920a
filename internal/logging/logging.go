// Package logging configures the slog logger used across the
// pipeline. Verbose runs get a colored, human-readable handler;
// everything else gets plain text at info level.
package logging

import (
	"context"
	"encoding/json"
	"io"
	stdlog "log"
	"log/slog"
	"os"

	"github.com/fatih/color"
)

// Setup returns the logger for this run.
func Setup(verbose bool) *slog.Logger {
	if verbose {
		return slog.New(newPrettyHandler(os.Stderr, slog.LevelDebug))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// prettyHandler is a slog.Handler that renders records as a colored
// level tag, the message, and the attributes as compact JSON.
type prettyHandler struct {
	level slog.Leveler
	out   *stdlog.Logger // plain log.Logger for writing, avoids recursion
	attrs []slog.Attr
}

func newPrettyHandler(w io.Writer, level slog.Leveler) *prettyHandler {
	return &prettyHandler{
		level: level,
		out:   stdlog.New(w, "", 0),
	}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	level := r.Level.String() + ":"
	switch r.Level {
	case slog.LevelDebug:
		level = color.MagentaString(level)
	case slog.LevelInfo:
		level = color.BlueString(level)
	case slog.LevelWarn:
		level = color.YellowString(level)
	case slog.LevelError:
		level = color.RedString(level)
	}

	fields := make(map[string]any, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		fields[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		fields[a.Key] = a.Value.Any()
		return true
	})

	var suffix string
	if len(fields) > 0 {
		if b, err := json.Marshal(fields); err == nil {
			suffix = " " + color.WhiteString(string(b))
		}
	}

	h.out.Println(r.Time.Format("[15:04:05.000]"), level, color.CyanString(r.Message)+suffix)
	return nil
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &prettyHandler{level: h.level, out: h.out, attrs: merged}
}

func (h *prettyHandler) WithGroup(string) slog.Handler {
	// Groups are not used by this tool's log sites.
	return h
}
