package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/agentexec/logging"
	"github.com/hupe1980/agentexec/memory"
)

// MemoryFactory creates the conversation memory of a new session.
type MemoryFactory func(ctx context.Context, sessionID string) (memory.Conversation, error)

// InProcessFactory returns a factory creating in-process memories.
func InProcessFactory(optFns ...func(o *memory.Options)) MemoryFactory {
	return func(context.Context, string) (memory.Conversation, error) {
		return memory.NewInProcess(optFns...), nil
	}
}

// Session is a conversation container.
type Session struct {
	ID      string
	Memory  memory.Conversation
	Created time.Time
	Updated time.Time
}

// Options configures an InMemoryStore.
type Options struct {
	// TTL evicts sessions idle for longer than TTL. Zero disables eviction.
	TTL    time.Duration
	Logger logging.Logger
	// Now is the clock used for timestamps.
	Now func() time.Time
}

type lane struct {
	mu   sync.Mutex
	refs int
}

// InMemoryStore is a volatile session store keeping sessions in a process
// local map. It is safe for concurrent access.
type InMemoryStore struct {
	factory MemoryFactory
	opts    Options

	mu       sync.Mutex
	sessions map[string]*Session
	lanes    map[string]*lane
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore(factory MemoryFactory, optFns ...func(o *Options)) *InMemoryStore {
	opts := Options{Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if factory == nil {
		factory = InProcessFactory()
	}
	return &InMemoryStore{
		factory:  factory,
		opts:     opts,
		sessions: make(map[string]*Session),
		lanes:    make(map[string]*lane),
	}
}

// Get returns an existing session or creates a new one lazily.
func (s *InMemoryStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.Now()
	if sess, ok := s.sessions[sessionID]; ok {
		sess.Updated = now
		return sess, nil
	}

	mem, err := s.factory(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("create memory for session %s: %w", sessionID, err)
	}
	sess := &Session{ID: sessionID, Memory: mem, Created: now, Updated: now}
	s.sessions[sessionID] = sess
	s.opts.Logger.Debug("session.created", "session_id", sessionID, "memory_kind", mem.Kind().String())
	return sess, nil
}

// Lock acquires the lane of sessionID and returns its release function.
// Callers holding the lane have exclusive use of the session memory.
func (s *InMemoryStore) Lock(sessionID string) func() {
	s.mu.Lock()
	l, ok := s.lanes[sessionID]
	if !ok {
		l = &lane{}
		s.lanes[sessionID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			s.mu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(s.lanes, sessionID)
			}
			s.mu.Unlock()
		})
	}
}

// Delete removes a session.
func (s *InMemoryStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// IDs returns the known session ids, sorted.
func (s *InMemoryStore) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Evict removes sessions idle for longer than the TTL and returns how many
// were removed. Sessions whose lane is held are kept.
func (s *InMemoryStore) Evict() int {
	if s.opts.TTL <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.opts.Now().Add(-s.opts.TTL)
	n := 0
	for id, sess := range s.sessions {
		if _, busy := s.lanes[id]; busy {
			continue
		}
		if sess.Updated.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	if n > 0 {
		s.opts.Logger.Info("session.evicted", "count", n)
	}
	return n
}
