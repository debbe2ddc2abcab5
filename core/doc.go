// Package core holds the small set of value types shared by every layer of
// agentexec: role-based content with typed parts (text, function calls and
// function responses), conversation turns used by memories and history
// overrides, and identifier generation.
//
// The package has no behaviour beyond conversions so that agents, memories
// and providers can depend on it without import cycles.
package core
