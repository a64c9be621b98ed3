package app

import (
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestStripANSI(t *testing.T) {
	t.Parallel()

	in := ansiBlue + "INFO" + ansiReset + " plain " + ansiRed + "ERR" + ansiReset
	got := stripANSI(in)
	want := "INFO plain ERR"
	if got != want {
		t.Fatalf("stripANSI()=%q want=%q", got, want)
	}
}

func TestWrapSegments_WrapsForNarrowWidth(t *testing.T) {
	t.Parallel()

	s1 := strings.Repeat("a", 20)
	s2 := strings.Repeat("b", 20)
	s3 := strings.Repeat("c", 20)

	lines := wrapSegments(
		[]string{s1, s2, s3},
		" | ",
		60,
		"-> ",
	)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d (%v)", len(lines), lines)
	}
	if lines[0] != s1+" | "+s2 {
		t.Fatalf("line[0]=%q want %q", lines[0], s1+" | "+s2)
	}
	if lines[1] != "-> "+s3 {
		t.Fatalf("line[1]=%q want %q", lines[1], "-> "+s3)
	}
}

func TestWrapSegments_TruncatesLongSegment(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 80)

	lines := wrapSegments(
		[]string{long},
		" | ",
		60,
		"-> ",
	)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if visualLen(lines[0]) > 60 {
		t.Fatalf("line too wide: %q (visualLen=%d)", lines[0], visualLen(lines[0]))
	}
	if !strings.Contains(lines[0], "…") {
		t.Fatalf("expected truncation marker in %q", lines[0])
	}
}

func TestTerminalWidth_PrefersExplicitOverride(t *testing.T) {
	h := &prettyHandler{}

	t.Setenv("STL_LOG_WIDTH", "88")
	t.Setenv("COLUMNS", "132")
	if got := h.terminalWidth(); got != 88 {
		t.Fatalf("terminalWidth()=%d want 88", got)
	}
}

func TestTerminalWidth_UsesColumnsWhenOverrideMissing(t *testing.T) {
	h := &prettyHandler{}

	t.Setenv("STL_LOG_WIDTH", "")
	t.Setenv("COLUMNS", "72")
	if got := h.terminalWidth(); got != 72 {
		t.Fatalf("terminalWidth()=%d want 72", got)
	}
}

func TestTerminalWidth_FallbackDefault(t *testing.T) {
	h := &prettyHandler{}

	t.Setenv("STL_LOG_WIDTH", "10")
	t.Setenv("COLUMNS", "20")
	if got := h.terminalWidth(); got != 100 {
		t.Fatalf("terminalWidth()=%d want 100", got)
	}
}

func TestPrettyHandler_GroupsAndRemappedKeys(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	h := &prettyHandler{w: &b, mu: &sync.Mutex{}, width: 200}
	log := slog.New(h).WithGroup("req")
	log.Info("http.request", "status_class", "4xx", slog.Group("client", "ip", "10.0.0.1"))

	out := b.String()
	for _, want := range []string{"[INFO]", "http.request", "req.class=4xx", "req.client.ip=10.0.0.1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}
