// Package writequeue decouples feed ingestion from storage latency.
//
// A Worker owns one feed store transaction and applies queued commands from
// a single goroutine:
//
//   - CmdWrite applies a mutation to the open transaction
//   - CmdFlush runs an optional prepare step (eviction), commits and reports back
//   - CmdShutdown drains what is queued, commits and stops
//
// The queue is unbounded so ingestion never blocks on a commit. The first
// storage error is sticky and returned from every later call.
//
// Staging keeps short-lived candidate items in an expiring LRU and only
// releases a write once a candidate has gathered enough interactions.
package writequeue
