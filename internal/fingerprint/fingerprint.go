// Package fingerprint hashes question text so repeated captures of the same
// question compare equal.
//
// Fingerprints are only compared within one agent's notification lock. They
// are not content addresses and collisions across agents do not matter.
package fingerprint

import (
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/Iron-Ham/agentwatch/internal/detect"
)

// Normalize reduces text to the form that is hashed: ANSI codes, animation
// glyphs, ticking counters and decoration lines removed, whitespace runs
// collapsed, lower-cased.
func Normalize(text string) string {
	text = detect.StripAnsi(text)

	lines := detect.SplitLines(text)
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if detect.IsNoiseLine(line) {
			continue
		}
		line = detect.CollapseWhitespace(detect.StripNoiseTokens(line))
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.ToLower(strings.Join(kept, " "))
}

// Of returns the fingerprint of text.
func Of(text string) uint64 {
	return xxhash.Sum64String(Normalize(text))
}

// OfParts fingerprints a message and its options as one unit, so a changed
// option set is a new question.
func OfParts(text string, options []string) uint64 {
	if len(options) == 0 {
		return Of(text)
	}
	return Of(text + "\n" + strings.Join(options, "\n"))
}
