package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	presenceKeyPrefix = "presence:"
	// DeliveryChannel carries frames for recipients connected to another instance.
	DeliveryChannel = "chat:deliver"
)

// releaseScript deletes the presence key only if it still belongs to the given connection,
// so a late disconnect never clears the marker of a newer connection.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// Delivery is a frame relayed between instances.
type Delivery struct {
	RecipientID uint            `json:"recipient_id"`
	Origin      string          `json:"origin"`
	Frame       json.RawMessage `json:"frame"`
}

// Presence tracks which users hold a live connection on any instance.
type Presence struct {
	Redis      *redis.Client
	InstanceID string
	TTL        time.Duration
}

func NewPresence(rdb *redis.Client, instanceID string, ttl time.Duration) *Presence {
	return &Presence{Redis: rdb, InstanceID: instanceID, TTL: ttl}
}

func presenceKey(userID uint) string {
	return presenceKeyPrefix + strconv.FormatUint(uint64(userID), 10)
}

// MarkOnline claims the user's presence for connID. Calling it again refreshes the TTL.
func (p *Presence) MarkOnline(ctx context.Context, userID uint, connID string) error {
	return p.Redis.Set(ctx, presenceKey(userID), connID, p.TTL).Err()
}

// MarkOffline releases the presence if connID still owns it.
func (p *Presence) MarkOffline(ctx context.Context, userID uint, connID string) error {
	return releaseScript.Run(ctx, p.Redis, []string{presenceKey(userID)}, connID).Err()
}

func (p *Presence) IsOnline(ctx context.Context, userID uint) (bool, error) {
	n, err := p.Redis.Exists(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Publish relays frame to whichever instance holds the recipient's connection.
func (p *Presence) Publish(ctx context.Context, recipientID uint, frame []byte) error {
	payload, err := json.Marshal(Delivery{RecipientID: recipientID, Origin: p.InstanceID, Frame: frame})
	if err != nil {
		return err
	}
	return p.Redis.Publish(ctx, DeliveryChannel, payload).Err()
}

// Listen calls handle for every relayed frame published by other instances until ctx ends.
func (p *Presence) Listen(ctx context.Context, log *zap.Logger, handle func(Delivery)) error {
	pubsub := p.Redis.Subscribe(ctx, DeliveryChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", DeliveryChannel, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			var delivery Delivery
			if err := json.Unmarshal([]byte(msg.Payload), &delivery); err != nil {
				log.Warn("Error unmarshalling relayed frame", zap.Error(err))
				continue
			}
			if delivery.Origin == p.InstanceID {
				continue
			}
			handle(delivery)
		}
	}
}
