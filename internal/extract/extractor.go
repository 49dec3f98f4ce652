package extract

import (
	"context"
	"slices"
	"time"

	"github.com/Iron-Ham/agentwatch/internal/errors"
	"github.com/Iron-Ham/agentwatch/internal/fingerprint"
	"github.com/Iron-Ham/agentwatch/internal/llm"
	"github.com/Iron-Ham/agentwatch/internal/logging"
)

const (
	// DefaultMaxIterations bounds the number of windows tried per run.
	DefaultMaxIterations = 5
	// DefaultTimeout bounds one extraction call.
	DefaultTimeout = 12 * time.Second
	// DefaultFallbackLines is the raw tail size used when extraction fails.
	DefaultFallbackLines = 30
)

// DefaultContextSizes are the escalating window sizes, in lines.
func DefaultContextSizes() []int {
	return []int{80, 150, 300, 500, 800}
}

// Extractor runs the escalating-context extraction loop.
type Extractor struct {
	extract       llm.ExtractFunc
	sizes         []int
	maxIterations int
	timeout       time.Duration
	logger        *logging.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithContextSizes sets the window sizes. Non-positive and duplicate sizes
// are dropped and the rest sorted ascending.
func WithContextSizes(sizes ...int) Option {
	return func(e *Extractor) {
		clean := make([]int, 0, len(sizes))
		for _, s := range sizes {
			if s > 0 {
				clean = append(clean, s)
			}
		}
		slices.Sort(clean)
		clean = slices.Compact(clean)
		if len(clean) > 0 {
			e.sizes = clean
		}
	}
}

// WithMaxIterations caps the number of windows tried.
func WithMaxIterations(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxIterations = n
		}
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// New creates an Extractor calling fn.
func New(fn llm.ExtractFunc, opts ...Option) *Extractor {
	e := &Extractor{
		extract:       fn,
		sizes:         DefaultContextSizes(),
		maxIterations: DefaultMaxIterations,
		timeout:       DefaultTimeout,
		logger:        logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithComponent("extractor")
	return e
}

// Sizes returns the configured window sizes in the order they are tried.
func (e *Extractor) Sizes() []int {
	return slices.Clone(e.sizes)
}

// MaxContext is the largest window the loop may use, which bounds how much
// scrollback needs capturing.
func (e *Extractor) MaxContext() int {
	n := min(e.maxIterations, len(e.sizes))
	return e.sizes[n-1]
}

// Extract pulls the pending question for agentID out of snapshot. status is
// the classifier's reading; a processing agent is skipped without any call.
func (e *Extractor) Extract(ctx context.Context, agentID, snapshot string, status llm.Status) Outcome {
	log := e.logger.WithAgent(agentID)
	if status == llm.StatusProcessing {
		return Outcome{Kind: OutcomeSkipped}
	}

	all := prepareLines(snapshot)
	var attempts []Attempt
	for i, size := range e.sizes {
		if i >= e.maxIterations || ctx.Err() != nil {
			break
		}
		// A snapshot shorter than size repeats the previous window; it is
		// sent again all the same.
		text := window(all, size)

		if text == "" {
			attempts = append(attempts, Attempt{ContextLines: size, Result: AttemptNeedMoreContext})
			continue
		}

		attempt := e.attempt(ctx, text, size)
		attempts = append(attempts, attempt)
		log.Debug("extraction attempt",
			"context_lines", size,
			"result", attempt.Result.String(),
			"elapsed_ms", attempt.Elapsed.Milliseconds())

		if attempt.Result == AttemptSuccess {
			return Outcome{Kind: OutcomeSuccess, Message: attempt.Message, Attempts: attempts}
		}
	}

	log.Warn("extraction exhausted", "attempts", len(attempts))
	return Outcome{Kind: OutcomeFailed, Attempts: attempts}
}

func (e *Extractor) attempt(ctx context.Context, text string, size int) Attempt {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	out, err := e.extract(callCtx, text)
	a := Attempt{ContextLines: size, Elapsed: time.Since(start), Called: true}
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, errors.ErrAITimeout) {
			err = errors.Join(errors.ErrAITimeout, err)
		}
		a.Result = AttemptFailed
		a.Err = err
		return a
	}
	if !out.ContextComplete {
		a.Result = AttemptNeedMoreContext
		return a
	}

	msg := &Message{
		Type:            out.MessageType,
		Text:            out.Text,
		Options:         out.Options,
		ProviderKey:     out.Fingerprint,
		ContextComplete: true,
		ContextLines:    size,
	}
	if !out.HasQuestion {
		msg.Type = llm.MessageIdle
		msg.LastAction = out.LastAction
	} else {
		msg.Fingerprint = fingerprint.OfParts(out.Text, out.Options)
	}
	a.Result = AttemptSuccess
	a.Message = msg
	return a
}
