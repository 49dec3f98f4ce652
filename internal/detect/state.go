package detect

import (
	"regexp"
	"slices"
	"strings"
)

// WaitingState is the coarse state a regex pass can read from a capture.
type WaitingState int

const (
	// StateWorking means working indicators are visible, or nothing matched.
	StateWorking WaitingState = iota
	// StateWaitingPermission means the agent asks to run or apply something.
	StateWaitingPermission
	// StateWaitingQuestion means the agent asks the user a question.
	StateWaitingQuestion
	// StateWaitingInput means the agent sits at its idle input prompt.
	StateWaitingInput
	// StateError means the agent CLI reported a fatal error.
	StateError
)

// String returns a human-readable string for the waiting state.
func (s WaitingState) String() string {
	switch s {
	case StateWorking:
		return "working"
	case StateWaitingPermission:
		return "waiting_permission"
	case StateWaitingQuestion:
		return "waiting_question"
	case StateWaitingInput:
		return "waiting_input"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// IsWaiting returns true for permission, question and input states.
func (s WaitingState) IsWaiting() bool {
	return s == StateWaitingPermission || s == StateWaitingQuestion || s == StateWaitingInput
}

// Patterns groups the regex sources for each state. Adapters extend the
// defaults with their own prompt shapes.
type Patterns struct {
	Permission []string
	Question   []string
	Input      []string
	Error      []string
	Working    []string
}

// DefaultPatterns returns patterns shared by all supported agent CLIs.
func DefaultPatterns() Patterns {
	return Patterns{
		Permission: []string{
			`(?i)do you want (?:me )?to (?:proceed|continue|run|execute|apply|make|create|edit|allow)`,
			`(?i)(?:shall|should|can|may) I (?:proceed|continue|go ahead|run|execute|apply)`,
			`(?i)(?:allow|permit|approve) (?:this|the) (?:action|change|operation|command|edit)`,
			`(?i)\[Y(?:es)?/[Nn](?:o)?\]`,
			`(?i)\(y(?:es)?/n(?:o)?\)`,
			`(?i)press (?:y|enter) to (?:confirm|continue|proceed|approve)`,
			`(?i)waiting for (?:your )?(?:approval|confirmation|permission)`,
			`(?i)requires? (?:your )?(?:approval|confirmation|permission)`,
			`❯\s*1\.\s*Yes`,
		},
		Question: []string{
			`\?\s*$`,
			`(?i)(?:what|which|how|where|when|who|why) (?:would you|do you|should I|is the)`,
			`(?i)(?:can|could|would) you (?:tell me|specify|clarify|explain|provide)`,
			`(?i)please (?:specify|clarify|provide|tell me|let me know|choose|select)`,
			`(?i)(?:select|choose|pick) (?:one|an option|from)`,
			`(?i)waiting for (?:your )?(?:input|response|answer|reply)`,
		},
		Input: []string{
			`⏵⏵\s*bypass permissions`,
			`↵\s*send`,
			`\(shift\+tab to cycle\)`,
			`(?m)^[│|]?\s*>\s*[│|]?$`,
		},
		Error: []string{
			`(?i)^Error: (?:session|connection|authentication|api) `,
			`(?i)(?:claude|codex|opencode) (?:exited|terminated|crashed) (?:with|unexpectedly)`,
			`(?i)(?:api|request) (?:error|failed).*(?:401|403|500|502|503)`,
		},
		Working: []string{
			`(?i)esc to interrupt`,
			`(?i)(?:reading|writing|editing|creating|analyzing|searching|running|executing|building|compiling|testing|thinking)(?:\.{3}|…)`,
			`⠋|⠙|⠹|⠸|⠼|⠴|⠦|⠧|⠇|⠏`,
		},
	}
}

// Merge returns p with extra's patterns appended per state.
func (p Patterns) Merge(extra Patterns) Patterns {
	return Patterns{
		Permission: append(slices.Clone(p.Permission), extra.Permission...),
		Question:   append(slices.Clone(p.Question), extra.Question...),
		Input:      append(slices.Clone(p.Input), extra.Input...),
		Error:      append(slices.Clone(p.Error), extra.Error...),
		Working:    append(slices.Clone(p.Working), extra.Working...),
	}
}

// recentLineCount is how many trailing non-empty lines the detector inspects.
const recentLineCount = 10

// Detector matches compiled patterns against the tail of a capture.
// It is safe for concurrent use.
type Detector struct {
	permission []*regexp.Regexp
	question   []*regexp.Regexp
	input      []*regexp.Regexp
	errs       []*regexp.Regexp
	working    []*regexp.Regexp
}

// NewDetector compiles the given patterns. Invalid patterns are skipped.
func NewDetector(p Patterns) *Detector {
	return &Detector{
		permission: compilePatterns(p.Permission),
		question:   compilePatterns(p.Question),
		input:      compilePatterns(p.Input),
		errs:       compilePatterns(p.Error),
		working:    compilePatterns(p.Working),
	}
}

func compilePatterns(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if re, err := regexp.Compile(p); err == nil {
			compiled = append(compiled, re)
		}
	}
	return compiled
}

// Detect returns the state visible in the last lines of text.
//
// Priority: working indicators, errors, permission prompts, questions, idle
// input prompt. Nothing matching means StateWorking.
func (d *Detector) Detect(text string) WaitingState {
	if text == "" {
		return StateWorking
	}

	lines := SplitLines(StripAnsi(text))
	recent := strings.Join(LastNonEmptyLines(lines, recentLineCount), "\n")

	switch {
	case matchesAny(recent, d.working):
		return StateWorking
	case matchesAny(recent, d.errs):
		return StateError
	case matchesAny(recent, d.permission):
		return StateWaitingPermission
	case matchesAny(recent, d.question):
		return StateWaitingQuestion
	case matchesAny(recent, d.input):
		return StateWaitingInput
	default:
		return StateWorking
	}
}

func matchesAny(text string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
