// Package pkgroutine contains helpers for running goroutines safely.
//
// The Manager type bounds how many background tasks (such as uploaded
// replays) run at once, collects returned errors, and turns panics into
// collected errors so that background work does not crash the process.
package pkgroutine
