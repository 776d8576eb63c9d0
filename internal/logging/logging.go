// Package logging provides the slog handler used by the stanley-chat
// binaries: compact single-line records with colored level tags, meant
// for terminals rather than log aggregation.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Options configures a Handler.
type Options struct {
	Level      slog.Leveler
	TimeFormat string
}

// DefaultOptions logs Info and above with a wall-clock timestamp.
var DefaultOptions = &Options{
	Level:      slog.LevelInfo,
	TimeFormat: time.TimeOnly,
}

// Handler is a colored terminal slog.Handler.
type Handler struct {
	opts   Options
	groups []string
	attrs  []slog.Attr

	mu  *sync.Mutex
	out io.Writer
}

// NewHandler creates a handler writing to out. A nil opts uses
// DefaultOptions.
func NewHandler(out io.Writer, opts *Options) *Handler {
	h := &Handler{out: out, mu: &sync.Mutex{}}
	if opts == nil {
		opts = DefaultOptions
	}
	h.opts = *opts
	if h.opts.Level == nil {
		h.opts.Level = slog.LevelInfo
	}
	if h.opts.TimeFormat == "" {
		h.opts.TimeFormat = time.TimeOnly
	}
	return h
}

// Enabled implements slog.Handler.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

var levelTags = map[slog.Level]func(...any) string{
	slog.LevelDebug: color.New(color.FgCyan).Sprint,
	slog.LevelInfo:  color.New(color.FgGreen).Sprint,
	slog.LevelWarn:  color.New(color.FgYellow).Sprint,
	slog.LevelError: color.New(color.FgRed).Sprint,
}

// Handle implements slog.Handler.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	if !r.Time.IsZero() {
		b.WriteString(color.New(color.Faint).Sprint(r.Time.Format(h.opts.TimeFormat)))
		b.WriteByte(' ')
	}

	tag := levelTags[slog.LevelInfo]
	if t, ok := levelTags[r.Level]; ok {
		tag = t
	}
	b.WriteString(tag(fmt.Sprintf("%-5s", r.Level.String())))
	b.WriteByte(' ')
	b.WriteString(r.Message)

	writeAttr := func(key string, a slog.Attr) {
		fmt.Fprintf(&b, " %s=%v", color.New(color.Faint).Sprint(key), a.Value.Resolve())
	}
	for _, a := range h.attrs {
		// Bound attrs carry their group prefix from bind time.
		writeAttr(a.Key, a)
	}
	prefix := strings.Join(h.groups, ".")
	r.Attrs(func(a slog.Attr) bool {
		key := a.Key
		if prefix != "" {
			key = prefix + "." + key
		}
		writeAttr(key, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

// WithAttrs implements slog.Handler. The current group prefix is folded
// into the attr keys at bind time.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	prefix := strings.Join(h.groups, ".")
	bound := append([]slog.Attr{}, h.attrs...)
	for _, a := range attrs {
		if prefix != "" {
			a.Key = prefix + "." + a.Key
		}
		bound = append(bound, a)
	}
	clone.attrs = bound
	return clone
}

// WithGroup implements slog.Handler.
func (h *Handler) WithGroup(name string) slog.Handler {
	clone := h.clone()
	clone.groups = append(append([]string{}, h.groups...), name)
	return clone
}

func (h *Handler) clone() *Handler {
	return &Handler{
		opts:   h.opts,
		groups: h.groups,
		attrs:  h.attrs,
		mu:     h.mu,
		out:    h.out,
	}
}

// Err is a convenience attribute for error values.
func Err(err error) slog.Attr {
	return slog.Any("error", err)
}
