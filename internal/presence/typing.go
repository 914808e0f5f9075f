package presence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTypingTTL is how long a typing signal stays visible without renewal.
const DefaultTypingTTL = 6 * time.Second

// TypingTracker records short-lived "actor is typing" signals per ticket.
// Entries expire on their own; a client renews by re-signaling.
type TypingTracker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTypingTracker builds a tracker on the shared Redis client.
func NewTypingTracker(client *redis.Client, ttl time.Duration) *TypingTracker {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	return &TypingTracker{client: client, ttl: ttl}
}

func typingKey(ticketNo, actorID string) string {
	return fmt.Sprintf("typing:%s:%s", ticketNo, actorID)
}

// Signal marks the actor as typing on the ticket, refreshing the TTL.
func (t *TypingTracker) Signal(ctx context.Context, ticketNo, actorID, actorName string) error {
	if t == nil || t.client == nil {
		return nil
	}
	return t.client.Set(ctx, typingKey(ticketNo, actorID), actorName, t.ttl).Err()
}

// Clear removes the actor's typing signal, typically after a comment posts.
func (t *TypingTracker) Clear(ctx context.Context, ticketNo, actorID string) error {
	if t == nil || t.client == nil {
		return nil
	}
	return t.client.Del(ctx, typingKey(ticketNo, actorID)).Err()
}

// Typist is one actor currently typing on a ticket.
type Typist struct {
	ActorID   string `json:"actor_id"`
	ActorName string `json:"actor_name"`
}

// ActiveTypists lists actors with a live typing signal for the ticket.
func (t *TypingTracker) ActiveTypists(ctx context.Context, ticketNo string) ([]Typist, error) {
	if t == nil || t.client == nil {
		return nil, nil
	}

	prefix := fmt.Sprintf("typing:%s:", ticketNo)
	var typists []Typist
	iter := t.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		name, err := t.client.Get(ctx, key).Result()
		if err != nil {
			// Key may have expired between scan and get.
			continue
		}
		typists = append(typists, Typist{
			ActorID:   strings.TrimPrefix(key, prefix),
			ActorName: name,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return typists, nil
}
