package enabled

import (
	"context"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"
)

const DefaultRedisKey = "goodluck-bot:enabled"

// RedisPersister keeps the set in a Redis sorted set scored by enable order.
type RedisPersister struct {
	client *goredis.Client
	key    string
}

// NewRedisPersister connects to redisURL and verifies the connection.
func NewRedisPersister(ctx context.Context, redisURL, key string) (*RedisPersister, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: ping failed: %w", err)
	}
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisPersister{client: client, key: key}, nil
}

// Load returns the ids in the order they were enabled.
func (p *RedisPersister) Load(ctx context.Context) ([]int64, error) {
	members, err := p.client.ZRange(ctx, p.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: load %s: %w", p.key, err)
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("redis: bad chat id %q in %s: %w", m, p.key, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (p *RedisPersister) Save(ctx context.Context, ids []int64) error {
	members := scoredMembers(ids)
	_, err := p.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, p.key)
		if len(members) > 0 {
			pipe.ZAdd(ctx, p.key, members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: save %s: %w", p.key, err)
	}
	return nil
}

// scoredMembers scores each id by its position so ZRANGE returns them in
// the order given.
func scoredMembers(ids []int64) []goredis.Z {
	members := make([]goredis.Z, 0, len(ids))
	for i, id := range ids {
		members = append(members, goredis.Z{Score: float64(i), Member: strconv.FormatInt(id, 10)})
	}
	return members
}

func (p *RedisPersister) Close() error {
	return p.client.Close()
}
