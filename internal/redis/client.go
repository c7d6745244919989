package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	*redis.Client
}

func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// AcquireOnce claims key for ttl if nobody holds it. Returns true for the
// first caller within the window, false for everyone after.
func (c *Client) AcquireOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.SetNX(ctx, key, 1, ttl).Result()
}

// CheckinChannel is the pub/sub channel carrying live redemption outcomes
// for one event.
func CheckinChannel(eventID string) string {
	return fmt.Sprintf("checkins:%s", eventID)
}

// ScanDedupeKey guards one (session, payload) pair for the duration of the
// duplicate-scan suppression window.
func ScanDedupeKey(sessionID, payloadHash string) string {
	return fmt.Sprintf("scan:dedupe:%s:%s", sessionID, payloadHash)
}
