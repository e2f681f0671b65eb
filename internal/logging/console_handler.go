package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset  = "\x1b[0m"
	ansiDim    = "\x1b[2m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
	ansiCyan   = "\x1b[36m"
)

// consoleHandler renders human-oriented log lines:
//
//	15:04:05 INFO  scanner  scan started  total=412 force=false
type consoleHandler struct {
	mu    *sync.Mutex
	w     io.Writer
	level *slog.LevelVar
	color bool
	attrs []slog.Attr
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar) slog.Handler {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	if s, ok := w.(*syncWriter); ok {
		if f, fok := s.w.(*os.File); fok {
			color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		}
	}
	return &consoleHandler{
		mu:    &sync.Mutex{},
		w:     w,
		level: lvl,
		color: color,
	}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	var b strings.Builder

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	h.writeDim(&b, ts.Format("15:04:05"))
	b.WriteByte(' ')
	h.writeLevel(&b, record.Level)
	b.WriteByte(' ')

	component := ""
	fields := make([]slog.Attr, 0, record.NumAttrs()+len(h.attrs))
	collect := func(attr slog.Attr) bool {
		if attr.Key == FieldComponent {
			component = attr.Value.String()
			return true
		}
		fields = append(fields, attr)
		return true
	}
	for _, attr := range h.attrs {
		collect(attr)
	}
	record.Attrs(collect)

	if component != "" {
		if h.color {
			b.WriteString(ansiCyan)
		}
		b.WriteString(fmt.Sprintf("%-12s", component))
		if h.color {
			b.WriteString(ansiReset)
		}
		b.WriteByte(' ')
	}

	b.WriteString(record.Message)

	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Key < fields[j].Key })
	for _, attr := range fields {
		b.WriteByte(' ')
		h.writeDim(&b, attr.Key+"=")
		b.WriteString(formatValue(attr.Value))
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *consoleHandler) WithGroup(string) slog.Handler { return h }

func (h *consoleHandler) writeLevel(b *strings.Builder, level slog.Level) {
	label := strings.ToUpper(level.String())
	if !h.color {
		b.WriteString(fmt.Sprintf("%-5s", label))
		return
	}
	var color string
	switch {
	case level >= slog.LevelError:
		color = ansiRed
	case level >= slog.LevelWarn:
		color = ansiYellow
	case level <= slog.LevelDebug:
		color = ansiDim
	default:
		color = ansiBlue
	}
	b.WriteString(color)
	b.WriteString(fmt.Sprintf("%-5s", label))
	b.WriteString(ansiReset)
}

func (h *consoleHandler) writeDim(b *strings.Builder, text string) {
	if h.color {
		b.WriteString(ansiDim)
		b.WriteString(text)
		b.WriteString(ansiReset)
		return
	}
	b.WriteString(text)
}

func formatValue(value slog.Value) string {
	value = value.Resolve()
	switch value.Kind() {
	case slog.KindString:
		s := value.String()
		if strings.ContainsAny(s, " \t") {
			return fmt.Sprintf("%q", s)
		}
		return s
	case slog.KindTime:
		return value.Time().Format(time.RFC3339)
	case slog.KindDuration:
		return value.Duration().String()
	default:
		return fmt.Sprint(value.Any())
	}
}
