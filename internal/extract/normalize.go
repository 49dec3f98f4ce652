package extract

import (
	"regexp"
	"strings"

	"github.com/Iron-Ham/agentwatch/internal/detect"
)

var (
	fenceLine = regexp.MustCompile("^\\s*(?:```|~~~)")
	listItem  = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+\S`)

	// An echoed user reply: the agent's input prompt followed by text.
	answerLine = regexp.MustCompile(`^\s*[│|]?\s*(?:>|›)\s+\S`)
	// A menu cursor, which looks like a reply but is part of the question.
	menuCursor = regexp.MustCompile(`^\s*[│|]?\s*(?:>|›|❯)\s*\d+[.)]`)
)

// prepareLines returns the snapshot as ANSI-free lines without trailing blanks.
func prepareLines(snapshot string) []string {
	return detect.TailLines(detect.StripAnsi(snapshot), len(snapshot)+1)
}

// windowStart returns the index of the first line of a window of size lines
// over all, moved so it does not cut a fenced code block or list item in
// half. The window is widened backwards when the block start is at most
// size/4 lines away, otherwise the partial block is left out.
func windowStart(all []string, size int) int {
	start := len(all) - size
	if start <= 0 {
		return 0
	}
	limit := max(size/4, 2)

	if open := openFence(all, start); open >= 0 {
		if start-open <= limit {
			return open
		}
		for i := start; i < len(all); i++ {
			if fenceLine.MatchString(all[i]) {
				return i + 1
			}
		}
		return start
	}

	if isContinuation(all[start]) {
		for i := start - 1; i >= 0 && start-i <= limit; i-- {
			if strings.TrimSpace(all[i]) == "" {
				break
			}
			if listItem.MatchString(all[i]) {
				return i
			}
		}
		for start < len(all) && isContinuation(all[start]) {
			start++
		}
	}
	return start
}

// openFence returns the index of the fence that is still open at line idx,
// or -1 when idx is outside any fenced block.
func openFence(all []string, idx int) int {
	open := -1
	for i := 0; i < idx; i++ {
		if fenceLine.MatchString(all[i]) {
			if open < 0 {
				open = i
			} else {
				open = -1
			}
		}
	}
	return open
}

// isContinuation reports whether line continues a list item above it.
func isContinuation(line string) bool {
	if strings.TrimSpace(line) == "" || listItem.MatchString(line) {
		return false
	}
	return line[0] == ' ' || line[0] == '\t'
}

// dropAnsweredRounds removes everything up to and including the last echoed
// user reply that still has agent output after it, so only the final
// unanswered exchange remains.
func dropAnsweredRounds(lines []string) []string {
	for i := len(lines) - 1; i >= 0; i-- {
		if !answerLine.MatchString(lines[i]) || menuCursor.MatchString(lines[i]) {
			continue
		}
		if hasContent(lines[i+1:]) {
			return lines[i+1:]
		}
	}
	return lines
}

func hasContent(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" && (!answerLine.MatchString(l) || menuCursor.MatchString(l)) {
			return true
		}
	}
	return false
}

// cleanLines removes decoration, animation glyphs and blank runs.
func cleanLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	blank := true // drops leading blanks
	for _, line := range lines {
		if detect.IsNoiseLine(line) {
			continue
		}
		line = strings.TrimRight(detect.StripNoiseTokens(line), " \t")
		if strings.TrimSpace(line) == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}

// Window returns the normalized text of the last size lines of snapshot.
func Window(snapshot string, size int) string {
	return window(prepareLines(snapshot), size)
}

func window(all []string, size int) string {
	if size <= 0 || len(all) == 0 {
		return ""
	}
	lines := all[windowStart(all, size):]
	lines = cleanLines(lines)
	lines = dropAnsweredRounds(lines)
	return strings.Join(lines, "\n")
}

// FallbackText is the raw tail surfaced when extraction is exhausted: the
// last n lines without ANSI codes or decoration.
func FallbackText(snapshot string, n int) string {
	all := prepareLines(snapshot)
	if n > 0 && len(all) > n {
		all = all[len(all)-n:]
	}
	return strings.Join(cleanLines(all), "\n")
}
