// Package chats keeps the table of destination chats the bot has been added to.
package chats

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultKey is the Redis hash holding registered chats.
const DefaultKey = "siriusbot:chats"

// HashClient is the subset of the Redis API the registry needs.
type HashClient interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// Registry maps chat titles to chat ids. Static entries come from
// configuration, dynamic ones are persisted in a Redis hash.
type Registry struct {
	client HashClient
	key    string
	log    *zap.Logger

	mu     sync.RWMutex
	byName map[string]int64
	ids    map[int64]string
}

// NewRegistry creates a registry seeded with static entries. client may be
// nil, in which case nothing is persisted.
func NewRegistry(client HashClient, key string, static map[string]int64, log *zap.Logger) *Registry {
	if key == "" {
		key = DefaultKey
	}
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{
		client: client,
		key:    key,
		log:    log.Named("chats"),
		byName: make(map[string]int64, len(static)),
		ids:    make(map[int64]string, len(static)),
	}
	for name, id := range static {
		r.put(name, id)
	}
	return r
}

// Load merges the persisted entries into the registry. Static entries win.
func (r *Registry) Load(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	stored, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return fmt.Errorf("load chat registry %s: %w", r.key, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for name, raw := range stored {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			r.log.Warn("skipping malformed chat id", zap.String("name", name), zap.String("value", raw))
			continue
		}
		if _, ok := r.byName[name]; ok {
			continue
		}
		r.byName[name] = id
		r.ids[id] = name
	}
	return nil
}

// Add records a chat the bot has joined and persists it.
func (r *Registry) Add(ctx context.Context, name string, id int64) error {
	r.mu.Lock()
	r.put(name, id)
	r.mu.Unlock()

	r.log.Info("added to chat", zap.String("title", name), zap.Int64("chat_id", id))
	if r.client == nil {
		return nil
	}
	if err := r.client.HSet(ctx, r.key, name, strconv.FormatInt(id, 10)).Err(); err != nil {
		return fmt.Errorf("persist chat %q: %w", name, err)
	}
	return nil
}

// put assumes r.mu is held or r is not yet shared.
func (r *Registry) put(name string, id int64) {
	if old, ok := r.byName[name]; ok {
		delete(r.ids, old)
	}
	r.byName[name] = id
	r.ids[id] = name
}

// Lookup returns the chat id registered under name.
func (r *Registry) Lookup(name string) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	return id, ok
}

// Contains reports whether id is a registered destination chat.
func (r *Registry) Contains(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ids[id]
	return ok
}

// Table returns a snapshot of the name to id mapping.
func (r *Registry) Table() map[string]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int64, len(r.byName))
	for name, id := range r.byName {
		out[name] = id
	}
	return out
}
