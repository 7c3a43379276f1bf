package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorWhite  = "\033[37m"
	colorGray   = "\033[90m"
)

var (
	rootOnce   sync.Once
	rootLogger *slog.Logger
)

// root собирается лениво: DRAWOCR_DEBUG включает debug в stdout,
// LOG_FILE дублирует всё (без цветов) в файл.
func root() *slog.Logger {
	rootOnce.Do(func() {
		level := slog.LevelInfo
		if on, _ := strconv.ParseBool(os.Getenv("DRAWOCR_DEBUG")); on {
			level = slog.LevelDebug
		}
		handlers := []slog.Handler{
			&lineHandler{w: os.Stdout, level: level, colors: true, mu: &sync.Mutex{}},
		}
		if path := strings.TrimSpace(os.Getenv("LOG_FILE")); path != "" {
			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err == nil {
				handlers = append(handlers, &lineHandler{w: f, level: slog.LevelDebug, mu: &sync.Mutex{}})
			}
		}
		rootLogger = slog.New(fanout(handlers))
	})
	return rootLogger
}

// GetLogger returns a logger tagged with the module name for filtering.
func GetLogger(module string) *slog.Logger {
	return root().With("module", module)
}

// New builds a logger writing plain lines to w. Used by tests and the bot.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(&lineHandler{w: w, level: level, mu: &sync.Mutex{}})
}

type lineHandler struct {
	w      io.Writer
	level  slog.Level
	attrs  []slog.Attr
	colors bool
	mu     *sync.Mutex
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *lineHandler) Handle(_ context.Context, record slog.Record) error {
	color, levelStr := levelStyle(record.Level)

	var module string
	var args []string
	collect := func(a slog.Attr) bool {
		if a.Key == "module" {
			module = a.Value.String()
			return true
		}
		args = append(args, fmt.Sprintf("%s=%v", a.Key, a.Value))
		return true
	}
	for _, a := range h.attrs {
		collect(a)
	}
	record.Attrs(collect)

	var b strings.Builder
	if module != "" {
		if h.colors {
			fmt.Fprintf(&b, "%s[%s]%s ", colorGray, module, colorReset)
		} else {
			fmt.Fprintf(&b, "[%s] ", module)
		}
	}
	if h.colors {
		fmt.Fprintf(&b, "%s%s%s: %s", color, levelStr, colorReset, record.Message)
	} else {
		fmt.Fprintf(&b, "%s: %s", levelStr, record.Message)
	}
	if len(args) > 0 {
		b.WriteString(" (" + strings.Join(args, ", ") + ")")
	}
	fmt.Fprintf(&b, " [%s]\n", record.Time.Format("15:04:05"))

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &lineHandler{w: h.w, level: h.level, attrs: merged, colors: h.colors, mu: h.mu}
}

// Группы не используются, атрибуты остаются плоскими.
func (h *lineHandler) WithGroup(string) slog.Handler { return h }

func levelStyle(l slog.Level) (string, string) {
	switch {
	case l >= slog.LevelError:
		return colorRed, "ERROR"
	case l >= slog.LevelWarn:
		return colorYellow, "WARNING"
	case l >= slog.LevelInfo:
		return colorBlue, "INFO"
	default:
		return colorWhite, "DEBUG"
	}
}

type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, record slog.Record) error {
	for _, h := range f {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
