package logging

import (
	"bytes"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stamp = `^\[\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}\] `

func TestFormat(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := New(&buf, false)
	log.Info("event done", "event", 12, "llh", -41.5)
	assert.Regexp(t, regexp.MustCompile(stamp+`\[12\] \[-41\.5\] event done\n$`), buf.String())

	buf.Reset()
	log.Warn("hit dropped", "charge", -1)
	assert.Regexp(t, regexp.MustCompile(stamp+`WARN \[-1\] hit dropped\n$`), buf.String())
}

func TestLevels(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	New(&buf, false).Debug("hidden")
	assert.Empty(t, buf.String())
	New(&buf, true).Debug("shown")
	assert.Contains(t, buf.String(), "shown")

	h := NewHandler(&buf, nil)
	assert.False(t, h.Enabled(t.Context(), slog.LevelDebug))
	assert.True(t, h.Enabled(t.Context(), slog.LevelInfo))
}

func TestWithAttrsAndGroup(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := New(&buf, false).With("model", "spe").WithGroup("fit")
	log.Info("converged", slog.Group("x", "a", 1, "b", 2))
	line := buf.String()
	assert.Regexp(t, regexp.MustCompile(stamp+`\[spe\] \[1\] \[2\] fit: converged\n$`), line)

	// the parent logger is not affected
	buf.Reset()
	New(&buf, false).Info("plain")
	assert.NotContains(t, buf.String(), "spe")
}

func TestConcurrentLines(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := New(&buf, false)
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				log.Info("tick", "worker", i)
			}
		}()
	}
	wg.Wait()
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 400)
	for _, l := range lines {
		assert.True(t, strings.HasSuffix(l, "tick"), l)
	}
}
