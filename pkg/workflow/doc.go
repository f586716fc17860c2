// Package workflow models automation-engine workflow definitions and
// proxies reads, writes and executions to the engine's REST surface.
//
// Drafts are checked with [Validate] before they leave the process; the
// [Bridge] refuses to create or update a draft that fails validation.
package workflow
