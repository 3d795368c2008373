// engine/invalidation/broadcast.go
package invalidation

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/aegis/engine/cache"
	logger "github.com/dev-mohitbeniwal/aegis/engine/logging"
)

const broadcastChannel = "inv:broadcast"

// dropMessage is the wire form of one cross-process drop notification.
type dropMessage struct {
	Origin string   `json:"origin"`
	Keys   []string `json:"keys"`
}

// Broadcaster fans local-tier drops out to peer processes. The remote tier
// is shared so deleting it once is enough, but every process holds its own
// first tier and a peer's copy would otherwise stay stale until its TTL.
// Delivery is best effort: a missed message is bounded by the first-tier TTL.
type Broadcaster struct {
	client  *redis.Client
	tierOne *cache.TierOne
	origin  string
}

func NewBroadcaster(client *redis.Client, tierOne *cache.TierOne, origin string) *Broadcaster {
	return &Broadcaster{client: client, tierOne: tierOne, origin: origin}
}

// Publish announces dropped keys to peers.
func (b *Broadcaster) Publish(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	payload, err := json.Marshal(dropMessage{Origin: b.origin, Keys: keys})
	if err != nil {
		return
	}
	if err := b.client.Publish(ctx, broadcastChannel, payload).Err(); err != nil {
		logger.Warn("Failed to broadcast local cache drop",
			zap.Int("keys", len(keys)), zap.Error(err))
	}
}

// Listen drops broadcast keys from the local first tier until ctx ends.
// Messages published by this process are skipped, the local delete already
// happened on the invalidation path.
func (b *Broadcaster) Listen(ctx context.Context) {
	sub := b.client.Subscribe(ctx, broadcastChannel)
	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var drop dropMessage
				if err := json.Unmarshal([]byte(msg.Payload), &drop); err != nil {
					logger.Warn("Malformed drop broadcast", zap.Error(err))
					continue
				}
				if drop.Origin == b.origin {
					continue
				}
				for _, key := range drop.Keys {
					b.tierOne.Delete(key)
				}
			}
		}
	}()
}
