// Package memory provides the conversation memories attached to agents.
//
// A Conversation wraps a langchaingo ConversationBuffer over a chat message
// history. Its Kind is fixed at construction: KindInProcess memories keep the
// history in the process and accept a request scoped history override,
// KindExternal memories (Redis) own their history and are never overwritten
// by the executor.
//
// The output mode selects what Load returns: OutputStructured yields
// []llms.ChatMessage, OutputFlattened yields a single prefixed transcript.
package memory
