package dedupe

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultHistoryKey is the sorted set holding fingerprints from past runs.
// The natural key of each fingerprint lives in a hash at DefaultHistoryKey+":keys".
const DefaultHistoryKey = "harvester:fingerprints"

// RedisHistory keeps fingerprints in a sorted set scored by expiry time, so
// each fingerprint ages out on its own schedule, and maps each one to the
// natural key of the record that produced it.
type RedisHistory struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisHistory connects to the server at redisURL and verifies it answers.
func NewRedisHistory(ctx context.Context, redisURL string, ttl time.Duration) (*RedisHistory, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisHistory{client: client, key: DefaultHistoryKey, ttl: ttl, now: time.Now}, nil
}

func (h *RedisHistory) keysKey() string { return h.key + ":keys" }

// Load drops expired fingerprints and returns the rest with their keys.
func (h *RedisHistory) Load(ctx context.Context) ([]Entry, error) {
	now := strconv.FormatInt(h.now().Unix(), 10)
	expired, err := h.client.ZRangeByScore(ctx, h.key, &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil {
		return nil, fmt.Errorf("find expired fingerprints: %w", err)
	}
	if len(expired) > 0 {
		_, err := h.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZRem(ctx, h.key, toAny(expired)...)
			pipe.HDel(ctx, h.keysKey(), expired...)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("expire fingerprints: %w", err)
		}
	}

	members, err := h.client.ZRange(ctx, h.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load fingerprints: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}
	keys, err := h.client.HMGet(ctx, h.keysKey(), members...).Result()
	if err != nil {
		return nil, fmt.Errorf("load fingerprint keys: %w", err)
	}

	entries := make([]Entry, 0, len(members))
	for i, m := range members {
		fp, err := strconv.ParseUint(m, 16, 64)
		if err != nil {
			continue
		}
		key, _ := keys[i].(string)
		entries = append(entries, Entry{Fingerprint: fp, Key: key})
	}
	return entries, nil
}

// Save records entries with a fresh expiry. Re-saving a fingerprint extends
// its lifetime.
func (h *RedisHistory) Save(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	expires := float64(h.now().Add(h.ttl).Unix())
	members := make([]redis.Z, 0, len(entries))
	keys := make([]any, 0, 2*len(entries))
	for _, e := range entries {
		hex := fmt.Sprintf("%016x", e.Fingerprint)
		members = append(members, redis.Z{Score: expires, Member: hex})
		keys = append(keys, hex, e.Key)
	}
	_, err := h.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, h.key, members...)
		pipe.HSet(ctx, h.keysKey(), keys...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save fingerprints: %w", err)
	}
	return nil
}

func (h *RedisHistory) Close() error {
	return h.client.Close()
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
