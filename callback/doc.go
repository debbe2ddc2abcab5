// Package callback implements the observer pipeline attached to a single
// agent invocation.
//
// Agents report lifecycle events (chain, llm, tool, agent action/finish and
// streamed tokens) to a Pipeline, which delivers each event synchronously to
// its observers in order. Build assembles the standard pipeline: the logging
// observer first, the streaming observer second when a stream target is
// present, then any externally supplied observers such as MetricsObserver or
// TracingObserver.
package callback
