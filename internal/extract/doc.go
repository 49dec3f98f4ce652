// Package extract pulls the pending question out of an agent's terminal.
//
// The [Extractor] asks the provider about a small window of the snapshot
// first and widens it only when the provider reports the question is cut
// off. A window is never retried and never shrunk. When every allowed size
// fails, the outcome is [OutcomeFailed] and callers fall back to
// [FallbackText].
package extract
