// Package logging provides a compact slog handler printing
// "[2006/01/02 15:04:05] [value]... message" lines.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

type Handler struct {
	level  slog.Leveler
	mu     *sync.Mutex
	out    io.Writer
	attrs  []string
	prefix string
}

func NewHandler(o io.Writer, opts *slog.HandlerOptions) *Handler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	level := opts.Level
	if level == nil {
		level = slog.LevelInfo
	}
	return &Handler{
		out:   o,
		level: level,
		mu:    &sync.Mutex{},
	}
}

// New returns a logger at Info level, or Debug when verbose.
func New(o io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(NewHandler(o, &slog.HandlerOptions{Level: level}))
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) format(a slog.Attr) string {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		var parts []string
		for _, g := range a.Value.Group() {
			parts = append(parts, h.format(g))
		}
		return strings.Join(parts, " ")
	}
	return fmt.Sprintf("[%s]", a.Value.String())
}

func (h *Handler) clone() *Handler {
	c := *h
	c.attrs = append([]string(nil), h.attrs...)
	return &c
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	for _, a := range attrs {
		c.attrs = append(c.attrs, c.format(a))
	}
	return c
}

// WithGroup only tags the output; values are printed without keys.
func (h *Handler) WithGroup(name string) slog.Handler {
	c := h.clone()
	c.prefix += name + ": "
	return c
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	strs := []string{r.Time.Format("[2006/01/02 15:04:05]")}
	if r.Level >= slog.LevelWarn {
		strs = append(strs, r.Level.String())
	}
	strs = append(strs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		strs = append(strs, h.format(a))
		return true
	})
	strs = append(strs, h.prefix+r.Message)

	b := []byte(strings.Join(strs, " ") + "\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(b)
	return err
}
