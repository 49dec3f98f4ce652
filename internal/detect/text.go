package detect

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/x/ansi"
)

var (
	// Elapsed-time and token counters that tick while an agent works,
	// e.g. "(12s · ↑ 1.2k tokens)", "1m 12s", "3.4s elapsed".
	counterRegex = regexp.MustCompile(`\(\s*\d+(?:\.\d+)?[smh]\b[^)]*\)|\b\d+m\s?\d+s\b|\b\d+(?:\.\d+)?s\s+elapsed\b|[↑↓]\s*\d+(?:\.\d+)?k?\s+tokens`)

	whitespaceRun = regexp.MustCompile(`\s+`)

	boxRuleRegex  = regexp.MustCompile(`^[\s─━│┃┄┅┈┉┌┐└┘├┤┬┴┼╭╮╰╯═║╔╗╚╝▀▄█░▒▓▁▔]+$`)
	asciiRuleLine = regexp.MustCompile(`^\s*[-=_~]{3,}\s*$`)

	// A spinner frame followed by a single status word, e.g. "⠙ Working…".
	spinnerStatus = regexp.MustCompile(`^\p{L}+(?:…|\.{3})?$`)
)

// noiseTokens are animation glyphs that carry no meaning. Agents cycle through
// them every frame, so two captures of the same question differ only here.
var noiseTokens = []string{
	"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏",
	"✻", "✽", "✶", "✳", "✢", "✺", "✹",
	"◐", "◓", "◑", "◒",
	"◴", "◷", "◶", "◵",
}

var noiseTokenSet = func() map[rune]bool {
	set := make(map[rune]bool, len(noiseTokens))
	for _, tok := range noiseTokens {
		r, _ := utf8.DecodeRuneInString(tok)
		set[r] = true
	}
	return set
}()

// statusBarMarkers identify agent status and hint lines.
var statusBarMarkers = []string{
	"esc to interrupt",
	"ctrl+c to interrupt",
	"? for shortcuts",
	"shift+tab to cycle",
	"auto-accept edits",
	"bypass permissions on",
	"context left until auto-compact",
	"ctrl+t to show todos",
}

// StripAnsi removes ANSI escape sequences (CSI, OSC, charset selection and
// the rest of ECMA-48) from text. Newlines and tabs survive.
func StripAnsi(text string) string {
	return ansi.Strip(text)
}

// StripNoiseTokens removes animation glyphs and ticking counters from s.
func StripNoiseTokens(s string) string {
	s = counterRegex.ReplaceAllString(s, "")
	return strings.Map(func(r rune) rune {
		if noiseTokenSet[r] {
			return -1
		}
		return r
	}, s)
}

// CollapseWhitespace replaces every run of whitespace with one space and trims.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// IsNoiseLine reports whether a line is decoration: a box-drawing rule, a
// status bar, or a spinner frame with nothing else of substance.
func IsNoiseLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if boxRuleRegex.MatchString(trimmed) || asciiRuleLine.MatchString(trimmed) {
		return true
	}

	lower := strings.ToLower(trimmed)
	for _, marker := range statusBarMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}

	stripped := strings.TrimSpace(StripNoiseTokens(trimmed))
	first, _ := utf8.DecodeRuneInString(trimmed)
	if noiseTokenSet[first] && spinnerStatus.MatchString(stripped) {
		return true
	}

	rest := strings.TrimFunc(stripped, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	return rest == ""
}

// SplitLines splits text into lines, normalizing CRLF endings.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

// TailLines returns the last n lines of text, ignoring trailing blank lines.
func TailLines(text string, n int) []string {
	lines := SplitLines(text)
	end := len(lines)
	for end > 0 && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	lines = lines[:end]
	if n <= 0 {
		return nil
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

// LastNonEmptyLines returns the last n non-empty lines, trimmed.
func LastNonEmptyLines(lines []string, n int) []string {
	result := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(result) < n; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" {
			result = append([]string{line}, result...)
		}
	}
	return result
}
