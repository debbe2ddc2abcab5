package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

// RedisOptions configures a Redis backed conversation.
type RedisOptions struct {
	Options
	// KeyPrefix is prepended to the session id to build the list key.
	KeyPrefix string
	// TTL expires the history after inactivity. Zero keeps it forever.
	TTL time.Duration
}

// NewRedis creates an external conversation memory storing the history of
// sessionID in a Redis list.
func NewRedis(client redis.UniversalClient, sessionID string, optFns ...func(o *RedisOptions)) *Buffer {
	opts := RedisOptions{
		Options:   defaultOptions(),
		KeyPrefix: "agentexec:history:",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	history := NewRedisHistory(client, opts.KeyPrefix+sessionID, opts.TTL)
	return newBuffer(KindExternal, history, opts.Options)
}

type redisEntry struct {
	Type    llms.ChatMessageType `json:"type"`
	Content string               `json:"content"`
}

// RedisHistory implements schema.ChatMessageHistory on a Redis list of JSON
// entries.
type RedisHistory struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

var _ schema.ChatMessageHistory = (*RedisHistory)(nil)

// NewRedisHistory creates a history stored under key.
func NewRedisHistory(client redis.UniversalClient, key string, ttl time.Duration) *RedisHistory {
	return &RedisHistory{client: client, key: key, ttl: ttl}
}

// Key returns the Redis list key.
func (h *RedisHistory) Key() string { return h.key }

// AddMessage implements schema.ChatMessageHistory.
func (h *RedisHistory) AddMessage(ctx context.Context, message llms.ChatMessage) error {
	entry, err := encodeEntry(message)
	if err != nil {
		return err
	}
	_, err = h.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, h.key, entry)
		if h.ttl > 0 {
			pipe.Expire(ctx, h.key, h.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis append %s: %w", h.key, err)
	}
	return nil
}

// AddUserMessage implements schema.ChatMessageHistory.
func (h *RedisHistory) AddUserMessage(ctx context.Context, message string) error {
	return h.AddMessage(ctx, llms.HumanChatMessage{Content: message})
}

// AddAIMessage implements schema.ChatMessageHistory.
func (h *RedisHistory) AddAIMessage(ctx context.Context, message string) error {
	return h.AddMessage(ctx, llms.AIChatMessage{Content: message})
}

// Clear implements schema.ChatMessageHistory.
func (h *RedisHistory) Clear(ctx context.Context) error {
	if err := h.client.Del(ctx, h.key).Err(); err != nil {
		return fmt.Errorf("redis clear %s: %w", h.key, err)
	}
	return nil
}

// Messages implements schema.ChatMessageHistory.
func (h *RedisHistory) Messages(ctx context.Context) ([]llms.ChatMessage, error) {
	raw, err := h.client.LRange(ctx, h.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis read %s: %w", h.key, err)
	}
	msgs := make([]llms.ChatMessage, 0, len(raw))
	for i, r := range raw {
		var e redisEntry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, fmt.Errorf("decode history entry %d: %w", i, err)
		}
		msgs = append(msgs, decodeEntry(e))
	}
	return msgs, nil
}

// SetMessages implements schema.ChatMessageHistory.
func (h *RedisHistory) SetMessages(ctx context.Context, messages []llms.ChatMessage) error {
	entries := make([]any, 0, len(messages))
	for _, m := range messages {
		e, err := encodeEntry(m)
		if err != nil {
			return err
		}
		entries = append(entries, e)
	}
	_, err := h.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, h.key)
		if len(entries) > 0 {
			pipe.RPush(ctx, h.key, entries...)
			if h.ttl > 0 {
				pipe.Expire(ctx, h.key, h.ttl)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis replace %s: %w", h.key, err)
	}
	return nil
}

func encodeEntry(m llms.ChatMessage) (string, error) {
	b, err := json.Marshal(redisEntry{Type: m.GetType(), Content: m.GetContent()})
	if err != nil {
		return "", fmt.Errorf("encode history entry: %w", err)
	}
	return string(b), nil
}

func decodeEntry(e redisEntry) llms.ChatMessage {
	switch e.Type {
	case llms.ChatMessageTypeHuman:
		return llms.HumanChatMessage{Content: e.Content}
	case llms.ChatMessageTypeAI:
		return llms.AIChatMessage{Content: e.Content}
	case llms.ChatMessageTypeSystem:
		return llms.SystemChatMessage{Content: e.Content}
	default:
		return llms.GenericChatMessage{Content: e.Content, Role: string(e.Type)}
	}
}
