// Package main hosts the alfred CLI entrypoint and command graph.
//
// The Cobra-based command tree turns terminal invocations into git plumbing
// calls and generation requests against the alferd daemon, with an in-process
// model fallback when no daemon answers. Unrecognized commands are handed to
// git verbatim so alfred can front a normal git workflow.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
