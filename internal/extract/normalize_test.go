package extract

import (
	"strings"
	"testing"
)

func TestWindow(t *testing.T) {
	lines := func(ls ...string) string { return strings.Join(ls, "\n") }
	filler := func(n int) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = "context line " + string(rune('a'+i))
		}
		return out
	}
	fenced := append(append(filler(10), "```", "c1", "c2", "c3", "c4", "c5", "```"), "tail x", "tail y", "tail z")

	tests := []struct {
		name     string
		snapshot string
		size     int
		want     string
	}{
		{
			name:     "ansi and spinner removed",
			snapshot: lines("\x1b[31mDelete the file?\x1b[0m", "✻ Thinking…", "────────"),
			size:     10,
			want:     "Delete the file?",
		},
		{
			name:     "blank runs collapsed",
			snapshot: lines("first", "", "", "", "second"),
			size:     10,
			want:     "first\n\nsecond",
		},
		{
			name:     "answered rounds dropped",
			snapshot: lines("Use tabs?", "> yes", "Reformatted 3 files", "Commit now?"),
			size:     10,
			want:     "Reformatted 3 files\nCommit now?",
		},
		{
			name:     "menu cursor kept",
			snapshot: lines("Pick one:", "› 1. Yes", "  2. No"),
			size:     10,
			want:     "Pick one:\n› 1. Yes\n  2. No",
		},
		{
			name:     "fence widened to its start",
			snapshot: lines(fenced...),
			size:     8,
			want:     lines(fenced[10:]...),
		},
		{
			name:     "fence too far skipped",
			snapshot: lines(fenced...),
			size:     6,
			want:     "tail x\ntail y\ntail z",
		},
		{
			name: "list item kept whole",
			snapshot: lines("Options:", "1. First option", "   continued detail",
				"2. Second option", "   more detail", "Pick one?"),
			size: 4,
			want: lines("1. First option", "   continued detail",
				"2. Second option", "   more detail", "Pick one?"),
		},
		{
			name:     "empty",
			snapshot: "\n\n",
			size:     10,
			want:     "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Window(tt.snapshot, tt.size); got != tt.want {
				t.Errorf("Window() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFallbackText(t *testing.T) {
	got := FallbackText(numbered(40), 30)
	if n := lineCount(got); n != 30 {
		t.Fatalf("lines = %d, want 30", n)
	}
	if !strings.HasSuffix(got, "step 40 wrote output") {
		t.Errorf("tail missing: %q", got)
	}
}
