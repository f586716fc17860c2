// Package debug owns the process logger and per-subsystem debug output.
//
// Verbosity and subject are controlled separately. SENSEI_LOG_LEVEL (or
// logging.level) picks the slog level. SENSEI_DEBUG (or logging.categories)
// is a comma list naming the subsystems whose debug lines are emitted:
//
//	SENSEI_DEBUG=providers,workflow SENSEI_LOG_LEVEL=debug sensei-server
//
// At TRACE, provider request bodies are logged as well.
package debug

import (
	"cmp"
	"context"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync/atomic"
	"unicode/utf8"
)

// LevelTrace sits below slog.LevelDebug.
const LevelTrace = slog.LevelDebug - 4

// All enables every category.
const All = "all"

// Categories lists the subsystems that emit debug lines.
var Categories = []string{"auth", "gateway", "mcp", "providers", "recorder", "workflow"}

var enabled atomic.Pointer[map[string]struct{}]

func init() {
	setCategories(os.Getenv("SENSEI_DEBUG"))
}

// Options configures the process logger.
type Options struct {
	Categories string
	Level      string
	// Format is "json" or "text". Anything else means text.
	Format string
	// Output defaults to stderr.
	Output io.Writer
}

// Init installs the default slog logger and the enabled categories. The
// SENSEI_DEBUG and SENSEI_LOG_LEVEL environment variables win over opts.
// Unknown category names are reported once the logger is in place.
func Init(opts Options) *slog.Logger {
	cats := cmp.Or(os.Getenv("SENSEI_DEBUG"), opts.Categories)
	unknown := setCategories(cats)

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	ho := &slog.HandlerOptions{
		Level:       ParseLevel(cmp.Or(os.Getenv("SENSEI_LOG_LEVEL"), opts.Level)),
		ReplaceAttr: renameTrace,
	}

	var h slog.Handler = slog.NewTextHandler(out, ho)
	if strings.EqualFold(opts.Format, "json") {
		h = slog.NewJSONHandler(out, ho)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)

	if len(unknown) > 0 {
		logger.Warn("unknown debug categories ignored", "categories", unknown, "known", Categories)
	}
	return logger
}

// Enabled reports whether debug lines for category are emitted.
func Enabled(category string) bool {
	set := *enabled.Load()
	_, all := set[All]
	_, ok := set[category]
	return all || ok
}

// Log emits a DEBUG line tagged with category when it is enabled.
func Log(category, msg string, args ...any) {
	emit(slog.LevelDebug, category, msg, args)
}

// Trace emits a TRACE line tagged with category when it is enabled.
func Trace(category, msg string, args ...any) {
	emit(LevelTrace, category, msg, args)
}

// TraceIsEnabled reports whether Trace for category would produce output.
// Callers use it to skip building large attributes.
func TraceIsEnabled(category string) bool {
	return Enabled(category) && slog.Default().Enabled(context.Background(), LevelTrace)
}

func emit(level slog.Level, category, msg string, args []any) {
	if !Enabled(category) {
		return
	}
	slog.Log(context.Background(), level, msg, append([]any{"category", category}, args...)...)
}

// ParseLevel maps a level name to a slog level. Unknown names mean INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Truncate shortens s to at most n bytes without splitting a UTF-8
// sequence and marks the cut with "...".
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

// setCategories replaces the enabled set and returns the names it did not
// recognise.
func setCategories(list string) []string {
	set := make(map[string]struct{})
	var unknown []string
	for c := range strings.SplitSeq(list, ",") {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if c != All && !slices.Contains(Categories, c) {
			unknown = append(unknown, c)
		}
		set[c] = struct{}{}
	}
	enabled.Store(&set)
	return unknown
}

func renameTrace(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
	}
	return a
}
