// Package agent defines the Capability contract the executor drives and the
// native FunctionAgent implementation.
//
// A Capability is a configured, tool-using agent that can be invoked either
// free-form with the raw user input or with a bound map of template
// variables. FunctionAgent implements it on top of the model package: it
// renders the preamble as system instructions, prepends the conversation
// history from its memory, streams model output as token events into the
// callback pipeline and runs requested tools until the model produces a
// final answer.
package agent
