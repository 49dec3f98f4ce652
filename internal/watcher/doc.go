// Package watcher is the orchestration loop of agentwatch.
//
// Every tick, each tracked agent goes through the same pipeline: the
// strategy selector decides whether to poll, the pane is captured, the
// classifier reads the status, the extractor pulls out the pending
// question, and the deduplicator decides whether a notification goes to
// the dispatcher. Agents are processed one after another; one agent's error
// or panic ends up in its [Report] and the tick moves on.
package watcher
