package console

import (
	"context"
	"encoding/json"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

// redisChannel is the single Pub/Sub topic every console process publishes
// broadcast deltas to and subscribes on, so any number of front-end
// processes observe the same stream without the engine itself fanning out
// to more than one in-process client list (spec.md §6 NEW).
const redisChannel = "reviewbot:console:updates"

// redisRelay is a pure message-transport relay: nothing about BackendState
// is written to Redis, only the already-projected wire deltas, matching
// spec.md's "no persistence" non-goal.
type redisRelay struct {
	client *redis.Client
	pubsub *redis.PubSub
	cancel context.CancelFunc
}

func newRedisRelay(addr string, onRemoteDelta func(map[string][]versionedRecord), logger *log.Logger) *redisRelay {
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithCancel(context.Background())
	pubsub := client.Subscribe(ctx, redisChannel)

	r := &redisRelay{client: client, pubsub: pubsub, cancel: cancel}

	go func() {
		ch := pubsub.Channel()
		for msg := range ch {
			var delta map[string][]versionedRecord
			if err := json.Unmarshal([]byte(msg.Payload), &delta); err != nil {
				logger.Warn("console: malformed redis relay payload", "err", err)
				continue
			}
			onRemoteDelta(delta)
		}
	}()

	return r
}

func (r *redisRelay) publish(delta map[string][]versionedRecord) {
	data, err := json.Marshal(delta)
	if err != nil {
		return
	}
	r.client.Publish(context.Background(), redisChannel, data)
}

func (r *redisRelay) close() error {
	r.cancel()
	if err := r.pubsub.Close(); err != nil {
		return err
	}
	return r.client.Close()
}
