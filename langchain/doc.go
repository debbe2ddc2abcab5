// Package langchain adapts a langchaingo agent executor to the
// agent.Capability contract.
//
// The executor is driven by a function calling planner that talks to any
// llms.Model, a tools.Tool adapter over tool.Tool and a callbacks.Handler
// bridge that forwards langchaingo callbacks into a callback.Pipeline.
package langchain
