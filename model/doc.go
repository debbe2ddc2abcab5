// Package model defines the provider-agnostic abstractions for interacting
// with language models from the native function agent.
//
// Providers (OpenAI, Anthropic) implement Model so higher layers stay
// decoupled from vendor SDKs. Streaming and non-streaming generation share a
// single channel based interface: partial chunks carry text deltas and the
// final chunk carries the complete content including function calls.
package model
