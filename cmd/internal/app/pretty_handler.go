package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

type prettyHandler struct {
	w      io.Writer
	opts   slog.HandlerOptions
	attrs  []slog.Attr
	groups []string
	color  bool
	mu     *sync.Mutex

	// width overrides terminal detection when positive.
	width int
}

func newPrettyHandler(w io.Writer, opts *slog.HandlerOptions, color bool) slog.Handler {
	h := &prettyHandler{
		w:     w,
		color: color,
		mu:    &sync.Mutex{},
	}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	segs := []string{
		applyDim(ts.Format("15:04:05.000"), h.color) + " " + levelTag(r.Level, h.color) + " " + applyBold(r.Message, h.color),
	}

	var attrs strings.Builder
	for _, a := range h.attrs {
		h.appendAttr(&attrs, a, "")
	}
	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&attrs, a, "")
		return true
	})
	for _, kv := range strings.Split(strings.TrimSpace(attrs.String()), "\x00") {
		if kv = strings.TrimSpace(kv); kv != "" {
			segs = append(segs, kv)
		}
	}

	if h.opts.AddSource && r.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{r.PC})
		frame, _ := frames.Next()
		if frame.File != "" {
			segs = append(segs, "src="+applyDim(fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line), h.color))
		}
	}

	lines := wrapSegments(segs, " ", h.terminalWidth(), "    ")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, strings.Join(lines, "\n")+"\n")
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &cp
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if strings.TrimSpace(name) == "" {
		return h
	}
	cp := *h
	cp.groups = append(append([]string{}, h.groups...), name)
	return &cp
}

func (h *prettyHandler) appendAttr(b *strings.Builder, a slog.Attr, parent string) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	key := strings.TrimSpace(a.Key)
	if key == "" {
		return
	}

	fullKey := key
	if parent != "" {
		fullKey = parent + "." + key
	}
	if parent == "" && len(h.groups) > 0 {
		fullKey = strings.Join(h.groups, ".") + "." + fullKey
	}

	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			h.appendAttr(b, ga, fullKey)
		}
		return
	}

	b.WriteByte(0)
	b.WriteString(remapPrettyKey(fullKey))
	b.WriteByte('=')
	b.WriteString(h.prettyValue(fullKey, a.Value))
}

func (h *prettyHandler) prettyValue(key string, v slog.Value) string {
	trimmedKey := strings.TrimSpace(key)
	if i := strings.LastIndexByte(trimmedKey, '.'); i >= 0 {
		trimmedKey = trimmedKey[i+1:]
	}

	switch trimmedKey {
	case "method":
		return colorizeHTTPMethod(strings.ToUpper(strings.TrimSpace(v.String())), h.color)
	case "path":
		path := strings.TrimSpace(v.String())
		if h.color {
			return ansiCyan + path + ansiReset
		}
		return path
	case "status":
		if n, ok := valueToInt64(v); ok {
			return colorizeStatusCode(int(n), h.color)
		}
	case "status_class", "class":
		return colorizeStatusClass(strings.TrimSpace(v.String()), h.color)
	case "duration_ms":
		if n, ok := valueToInt64(v); ok {
			return colorizeDurationMS(n, h.color)
		}
	case "result":
		return colorizeResult(strings.ToLower(strings.TrimSpace(v.String())), h.color)
	}

	plain := valueToString(v)
	return quoteIfNeeded(plain)
}

func remapPrettyKey(k string) string {
	prefix, leaf := "", k
	if i := strings.LastIndexByte(k, '.'); i >= 0 {
		prefix, leaf = k[:i+1], k[i+1:]
	}
	switch leaf {
	case "status_class":
		return prefix + "class"
	case "duration_ms":
		return prefix + "duration"
	default:
		return k
	}
}

func valueToString(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindBool:
		if v.Bool() {
			return "true"
		}
		return "false"
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	default:
		return fmt.Sprint(v.Any())
	}
}

func quoteIfNeeded(s string) string {
	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, " \t\r\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

func levelTag(level slog.Level, color bool) string {
	switch {
	case level >= slog.LevelError:
		if color {
			return ansiRed + "[ERROR]" + ansiReset
		}
		return "[ERROR]"
	case level >= slog.LevelWarn:
		if color {
			return ansiYellow + "[WARN]" + ansiReset
		}
		return "[WARN]"
	case level < slog.LevelInfo:
		if color {
			return ansiMagenta + "[DEBUG]" + ansiReset
		}
		return "[DEBUG]"
	default:
		if color {
			return ansiBlue + "[INFO]" + ansiReset
		}
		return "[INFO]"
	}
}

func applyDim(s string, color bool) string {
	if !color {
		return s
	}
	return ansiDim + s + ansiReset
}

func applyBold(s string, color bool) string {
	if !color {
		return s
	}
	return ansiBright + s + ansiReset
}

const (
	ansiReset   = "\x1b[0m"
	ansiBright  = "\x1b[1m"
	ansiDim     = "\x1b[2m"
	ansiRed     = "\x1b[31m"
	ansiGreen   = "\x1b[32m"
	ansiYellow  = "\x1b[33m"
	ansiBlue    = "\x1b[34m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
)

const (
	defaultLogWidth = 100
	minLogWidth     = 40
	ellipsis        = "…"
)

func paint(s, code string, color bool) string {
	if !color || code == "" {
		return s
	}
	return code + s + ansiReset
}

func colorizeHTTPMethod(m string, color bool) string {
	switch m {
	case http.MethodGet, http.MethodHead:
		return paint(m, ansiGreen, color)
	case http.MethodPost:
		return paint(m, ansiBlue, color)
	case http.MethodPut, http.MethodPatch:
		return paint(m, ansiYellow, color)
	case http.MethodDelete:
		return paint(m, ansiRed, color)
	default:
		return paint(m, ansiMagenta, color)
	}
}

func statusColor(code int) string {
	switch {
	case code >= 500:
		return ansiRed
	case code >= 400:
		return ansiYellow
	case code >= 300:
		return ansiCyan
	default:
		return ansiGreen
	}
}

func colorizeStatusCode(code int, color bool) string {
	return paint(strconv.Itoa(code), statusColor(code), color)
}

func colorizeStatusClass(class string, color bool) string {
	if class == "" {
		return `""`
	}
	switch class[0] {
	case '5':
		return paint(class, ansiRed, color)
	case '4':
		return paint(class, ansiYellow, color)
	case '3':
		return paint(class, ansiCyan, color)
	default:
		return paint(class, ansiGreen, color)
	}
}

func colorizeDurationMS(ms int64, color bool) string {
	s := strconv.FormatInt(ms, 10) + "ms"
	switch {
	case ms >= 1000:
		return paint(s, ansiRed, color)
	case ms >= 250:
		return paint(s, ansiYellow, color)
	default:
		return paint(s, ansiDim, color)
	}
}

func colorizeResult(result string, color bool) string {
	switch result {
	case "success":
		return paint(result, ansiGreen, color)
	case "redirect":
		return paint(result, ansiCyan, color)
	case "client_error":
		return paint(result, ansiYellow, color)
	case "server_error":
		return paint(result, ansiRed, color)
	default:
		return quoteIfNeeded(result)
	}
}

func valueToInt64(v slog.Value) (int64, bool) {
	switch v.Kind() {
	case slog.KindInt64:
		return v.Int64(), true
	case slog.KindUint64:
		return int64(v.Uint64()), true
	case slog.KindFloat64:
		return int64(v.Float64()), true
	case slog.KindString:
		n, err := strconv.ParseInt(strings.TrimSpace(v.String()), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// stripANSI removes SGR escape sequences.
func stripANSI(s string) string {
	if !strings.Contains(s, "\x1b[") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == 0x1b && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && s[j] != 'm' {
				j++
			}
			i = j
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// visualLen is the printed width of s, counted in runes.
func visualLen(s string) int {
	return utf8.RuneCountInString(stripANSI(s))
}

// truncateVisual shortens s to width runes, ending in an ellipsis. Colors are dropped.
func truncateVisual(s string, width int) string {
	if visualLen(s) <= width {
		return s
	}
	if width <= 1 {
		return ellipsis
	}
	r := []rune(stripANSI(s))
	return string(r[:width-1]) + ellipsis
}

// wrapSegments packs segments into lines no wider than width. Continuation lines
// start with indent; a segment that cannot fit on its own line is truncated.
func wrapSegments(segs []string, sep string, width int, indent string) []string {
	if width < minLogWidth {
		width = minLogWidth
	}
	var (
		lines []string
		cur   strings.Builder
		used  int
	)
	flush := func() {
		if cur.Len() > 0 {
			lines = append(lines, cur.String())
			cur.Reset()
			used = 0
		}
	}
	for _, seg := range segs {
		prefix := ""
		if len(lines) > 0 && cur.Len() == 0 {
			prefix = indent
		}
		n := visualLen(seg)
		if cur.Len() > 0 && used+visualLen(sep)+n > width {
			flush()
			prefix = indent
		}
		if cur.Len() == 0 {
			avail := width - visualLen(prefix)
			seg = truncateVisual(seg, avail)
			cur.WriteString(prefix)
			cur.WriteString(seg)
			used = visualLen(prefix) + visualLen(seg)
			continue
		}
		cur.WriteString(sep)
		cur.WriteString(seg)
		used += visualLen(sep) + n
	}
	flush()
	return lines
}

// terminalWidth resolves STL_LOG_WIDTH, then COLUMNS, then the default. Values
// narrower than minLogWidth are ignored.
func (h *prettyHandler) terminalWidth() int {
	if h.width > 0 {
		return h.width
	}
	for _, key := range []string{"STL_LOG_WIDTH", "COLUMNS"} {
		if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil && n >= minLogWidth {
			return n
		}
	}
	return defaultLogWidth
}
