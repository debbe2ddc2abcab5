// Package session keeps per-session conversation memory for the prediction
// server.
//
// Requests for the same session must not run concurrently because memory
// mutation is not guarded by the executor. InMemoryStore provides a lane
// lock per session id and creates each session's memory lazily through a
// MemoryFactory. Idle sessions can be evicted after a TTL.
package session
