package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"consultly/config"
)

// CacheClient is the generic cache client.
var CacheClient *redis.Client

// InitCache connects the cache client to the cache database and pings it.
func InitCache() error {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisCacheDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("failed to connect to Redis (cache): %w", err)
	}
	CacheClient = client
	return nil
}

// GetCacheClient returns the generic cache client.
func GetCacheClient() *redis.Client {
	return CacheClient
}

// EventDeduper remembers processed external events for a while so that
// redelivered webhooks are acknowledged without being processed twice.
type EventDeduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewEventDeduper(client *redis.Client, prefix string, ttl time.Duration) *EventDeduper {
	return &EventDeduper{client: client, prefix: prefix, ttl: ttl}
}

// Claim reports whether the caller is the first to see eventID.
func (d *EventDeduper) Claim(ctx context.Context, eventID string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.prefix+eventID, time.Now().Unix(), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim event %s: %w", eventID, err)
	}
	return ok, nil
}

// Release forgets eventID so a later delivery is processed again.
func (d *EventDeduper) Release(ctx context.Context, eventID string) error {
	return d.client.Del(ctx, d.prefix+eventID).Err()
}
