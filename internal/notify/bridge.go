package notify

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"localmart/pkg/logger"
)

const userChannelPrefix = "notify:user:"

// bridgeEnvelope wraps a payload with its origin so an instance can skip
// messages it published itself; local delivery already happened in the
// broadcaster.
type bridgeEnvelope struct {
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}

// RedisBridge carries invalidation pushes across server instances over Redis
// pub/sub. It is both the broadcaster's Publisher and the subscriber feeding
// the local registry.
type RedisBridge struct {
	client     *goredis.Client
	registry   *Registry
	instanceID string
	log        *logger.Logger
}

func NewRedisBridge(client *goredis.Client, registry *Registry, log *logger.Logger) *RedisBridge {
	return &RedisBridge{
		client:     client,
		registry:   registry,
		instanceID: uuid.New().String(),
		log:        log,
	}
}

func (b *RedisBridge) PublishToUser(ctx context.Context, userID string, payload []byte) error {
	env, err := json.Marshal(bridgeEnvelope{Origin: b.instanceID, Payload: payload})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, userChannelPrefix+userID, env).Err()
}

// Run subscribes to all per-user channels and feeds foreign messages into the
// local registry. It blocks until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) {
	pubsub := b.client.PSubscribe(ctx, userChannelPrefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.handle(msg)
		}
	}
}

func (b *RedisBridge) handle(msg *goredis.Message) {
	userID := strings.TrimPrefix(msg.Channel, userChannelPrefix)
	if userID == "" || userID == msg.Channel {
		return
	}

	var env bridgeEnvelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		if b.log != nil {
			b.log.Warnf("bad bridge payload on %s: %s", msg.Channel, err)
		}
		return
	}
	if env.Origin == b.instanceID {
		return
	}
	b.registry.Send(userID, env.Payload)
}
