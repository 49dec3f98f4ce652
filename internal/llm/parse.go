package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Iron-Ham/agentwatch/internal/errors"
)

// extractJSON returns the JSON object embedded in a model reply, tolerating
// code fences and surrounding prose.
func extractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimPrefix(text, "json")
		if i := strings.LastIndex(text, "```"); i >= 0 {
			text = text[:i]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("%w: no JSON object in reply", errors.ErrAIMalformedResponse)
	}
	return text[start : end+1], nil
}

type statusPayload struct {
	Status     string   `json:"status"`
	Confidence *float64 `json:"confidence"`
	Issues     []string `json:"issues"`
}

// parseStatusReply decodes a classification reply.
func parseStatusReply(text string) (StatusResult, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return StatusResult{}, err
	}

	var p statusPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return StatusResult{}, fmt.Errorf("%w: %v", errors.ErrAIMalformedResponse, err)
	}
	if p.Status == "" || p.Confidence == nil {
		return StatusResult{}, fmt.Errorf("%w: status and confidence are required", errors.ErrAIMalformedResponse)
	}

	return StatusResult{
		Status:     ParseStatus(p.Status),
		Confidence: *p.Confidence,
		Issues:     p.Issues,
	}, nil
}

type extractionPayload struct {
	HasQuestion     *bool    `json:"has_question"`
	MessageType     string   `json:"message_type"`
	MessageText     string   `json:"message_text"`
	Options         []string `json:"options"`
	Fingerprint     string   `json:"fingerprint"`
	ContextComplete *bool    `json:"context_complete"`
	LastAction      string   `json:"last_action"`
}

// parseExtractionReply decodes an extraction reply. A reply with no
// question is an idle extraction.
func parseExtractionReply(text string) (Extraction, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return Extraction{}, err
	}

	var p extractionPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Extraction{}, fmt.Errorf("%w: %v", errors.ErrAIMalformedResponse, err)
	}
	if p.HasQuestion == nil || p.ContextComplete == nil {
		return Extraction{}, fmt.Errorf("%w: has_question and context_complete are required", errors.ErrAIMalformedResponse)
	}

	ext := Extraction{
		HasQuestion:     *p.HasQuestion,
		Text:            strings.TrimSpace(p.MessageText),
		Fingerprint:     p.Fingerprint,
		ContextComplete: *p.ContextComplete,
		LastAction:      strings.TrimSpace(p.LastAction),
	}
	for _, opt := range p.Options {
		if opt = strings.TrimSpace(opt); opt != "" {
			ext.Options = append(ext.Options, opt)
		}
	}

	if !ext.HasQuestion {
		ext.MessageType = MessageIdle
		return ext, nil
	}

	mt, ok := ParseMessageType(p.MessageType)
	switch {
	case !ok:
		// A question of unrecognized shape still needs an answer.
		mt = MessageOpenEnded
	case mt == MessageIdle:
		return Extraction{}, fmt.Errorf("%w: idle message type with has_question=true", errors.ErrAIMalformedResponse)
	}
	ext.MessageType = mt

	if ext.Text == "" && ext.ContextComplete {
		return Extraction{}, fmt.Errorf("%w: question without message_text", errors.ErrAIMalformedResponse)
	}
	return ext, nil
}
