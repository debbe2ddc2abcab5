// Package executor runs a single prediction request against an
// agent.Capability.
//
// Run prepares the capability's conversation memory, builds the callback
// pipeline, resolves the template variables and dispatches to the free-form
// or templated invocation. Capability errors are returned unchanged.
package executor
