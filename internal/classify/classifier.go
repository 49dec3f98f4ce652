// Package classify turns a terminal snapshot into a status reading.
//
// Classification never fails from the caller's point of view: provider
// errors, timeouts and malformed replies all degrade to [llm.StatusUnknown]
// with confidence 0, and Unknown always counts as notify-worthy.
package classify

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/Iron-Ham/agentwatch/internal/logging"
	"github.com/Iron-Ham/agentwatch/internal/llm"
)

const (
	// DefaultLowConfidence is the threshold below which a quality warning is raised.
	DefaultLowConfidence = 0.5
	// DefaultTimeout bounds one classification call.
	DefaultTimeout = 12 * time.Second
)

// IssueEmptySnapshot is reported for snapshots with no visible text.
const IssueEmptySnapshot = "empty snapshot"

// Result is the classifier's output.
type Result struct {
	Status     llm.Status
	Confidence float64
	Issues     []string
	// Err is the provider failure behind a degraded Unknown result.
	Err error
}

// ShouldNotify reports whether the status may need a human. Unknown is
// treated like WaitingForInput.
func (r Result) ShouldNotify() bool {
	return r.Status == llm.StatusWaitingForInput || r.Status == llm.StatusUnknown
}

// LowConfidence reports whether the result is below threshold.
func (r Result) LowConfidence(threshold float64) bool {
	return r.Confidence < threshold
}

// WarningFunc receives quality warnings for low-confidence results.
type WarningFunc func(ctx context.Context, agentID string, r Result)

// Classifier wraps a ClassifyFunc with timeout, clamping and warnings.
type Classifier struct {
	classify  llm.ClassifyFunc
	timeout   time.Duration
	threshold float64
	onWarning WarningFunc
	logger    *logging.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Classifier) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLowConfidence sets the quality warning threshold.
func WithLowConfidence(threshold float64) Option {
	return func(c *Classifier) { c.threshold = threshold }
}

// WithWarningHandler registers a callback for low-confidence results.
func WithWarningHandler(fn WarningFunc) Option {
	return func(c *Classifier) { c.onWarning = fn }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Classifier) { c.logger = l }
}

// New creates a Classifier calling fn.
func New(fn llm.ClassifyFunc, opts ...Option) *Classifier {
	c := &Classifier{
		classify:  fn,
		timeout:   DefaultTimeout,
		threshold: DefaultLowConfidence,
		logger:    logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent("classifier")
	return c
}

// Classify reads the status of agentID from snapshot.
func (c *Classifier) Classify(ctx context.Context, agentID, snapshot string) Result {
	log := c.logger.WithAgent(agentID)

	if strings.TrimSpace(snapshot) == "" {
		res := Result{Status: llm.StatusUnknown, Issues: []string{IssueEmptySnapshot}}
		c.warn(ctx, log, agentID, res)
		return res
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	out, err := c.classify(callCtx, snapshot)
	elapsed := time.Since(start)
	if err != nil {
		log.Warn("classification failed, treating as unknown",
			"error", err, "elapsed_ms", elapsed.Milliseconds())
		res := Result{Status: llm.StatusUnknown, Confidence: 0, Issues: []string{"classification failed"}, Err: err}
		c.warn(ctx, log, agentID, res)
		return res
	}

	res := Result{
		Status:     out.Status,
		Confidence: clamp(out.Confidence),
		Issues:     out.Issues,
	}
	if res.Status == "" {
		res.Status = llm.StatusUnknown
	}
	log.Debug("classified",
		"status", string(res.Status), "confidence", res.Confidence, "elapsed_ms", elapsed.Milliseconds())

	c.warn(ctx, log, agentID, res)
	return res
}

// warn emits the quality warning for low-confidence results.
func (c *Classifier) warn(ctx context.Context, log *logging.Logger, agentID string, res Result) {
	if !res.LowConfidence(c.threshold) {
		return
	}
	log.Warn("low classification confidence",
		"status", string(res.Status), "confidence", res.Confidence,
		"threshold", c.threshold, "issues", res.Issues)
	if c.onWarning != nil {
		c.onWarning(ctx, agentID, res)
	}
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
