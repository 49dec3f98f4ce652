// Package detect analyzes captured terminal text from coding agents.
//
// It has two halves. The text helpers ([StripAnsi], [TailLines],
// [StripNoiseTokens], [IsNoiseLine]) clean a tmux capture before it is hashed
// or sent to the AI provider. The [Detector] is a cheap regex pass that
// recognizes prompts, permission requests and working indicators, which agent
// adapters use for ready detection and the watcher uses to label the
// notification event type.
//
// # Basic Usage
//
//	detector := detect.NewDetector(detect.DefaultPatterns())
//
//	switch detector.Detect(snapshot) {
//	case detect.StateWaitingPermission:
//	    // event type "permission"
//	case detect.StateWaitingQuestion:
//	    // event type "question"
//	}
package detect
