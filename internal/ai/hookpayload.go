package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Iron-Ham/agentwatch/internal/errors"
)

// ErrInvalidHookPayload is returned for payloads that are not a JSON object.
var ErrInvalidHookPayload = errors.New("invalid hook payload")

var (
	hookNameKeys    = []string{"hook_event_name", "hookEventName", "type", "event", "name"}
	hookMessageKeys = []string{"message", "last-assistant-message", "title", "text"}
)

// decodeHookPayload parses a JSON object and returns it with the event name
// found under the first matching key.
func decodeHookPayload(payload []byte) (map[string]any, string, error) {
	var data map[string]any
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidHookPayload, err)
	}
	if data == nil {
		return nil, "", fmt.Errorf("%w: not an object", ErrInvalidHookPayload)
	}
	return data, firstString(data, hookNameKeys), nil
}

func firstString(data map[string]any, keys []string) string {
	for _, key := range keys {
		if val, ok := data[key].(string); ok && val != "" {
			return val
		}
	}
	return ""
}

// newHookEvent builds the common part of a parsed event.
func newHookEvent(payload []byte, data map[string]any, name string, kind HookKind) HookEvent {
	return HookEvent{
		Kind:    kind,
		Name:    name,
		Message: strings.TrimSpace(firstString(data, hookMessageKeys)),
		Raw:     append([]byte(nil), payload...),
	}
}
