package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/meltforce/repcycle/internal/kv"
	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis backend.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Redis keeps profiles as plain string keys "<prefix>:<user>:<key>".
type Redis struct {
	client *redis.Client
	prefix string
}

// Compile-time check: *Redis satisfies Backend.
var _ Backend = (*Redis)(nil)

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "repcycle"
	}
	return &Redis{client: client, prefix: prefix}, nil
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Profile returns the key-value store of one user.
func (r *Redis) Profile(userID int) kv.Store {
	return &redisProfile{client: r.client, prefix: profilePrefix(r.prefix, userID)}
}

func profilePrefix(prefix string, userID int) string {
	return prefix + ":" + strconv.Itoa(userID) + ":"
}

// GetOrCreateUser maps a login to a numeric id allocated from a counter.
func (r *Redis) GetOrCreateUser(ctx context.Context, login, displayName string) (int, error) {
	usersKey := r.prefix + ":users"

	id, err := r.client.HGet(ctx, usersKey, login).Int()
	if errors.Is(err, redis.Nil) {
		next, err := r.client.Incr(ctx, r.prefix+":users:seq").Result()
		if err != nil {
			return 0, fmt.Errorf("allocating user id: %w", err)
		}
		created, err := r.client.HSetNX(ctx, usersKey, login, next).Result()
		if err != nil {
			return 0, fmt.Errorf("storing user: %w", err)
		}
		if created {
			id = int(next)
		} else {
			// another writer created the login first; its id wins
			if id, err = r.client.HGet(ctx, usersKey, login).Int(); err != nil {
				return 0, fmt.Errorf("reading user: %w", err)
			}
		}
	} else if err != nil {
		return 0, fmt.Errorf("reading user: %w", err)
	}

	if displayName != "" {
		if err := r.client.HSet(ctx, r.prefix+":user:"+strconv.Itoa(id), "display_name", displayName).Err(); err != nil {
			return 0, fmt.Errorf("updating display name: %w", err)
		}
	}
	return id, nil
}

type redisProfile struct {
	client *redis.Client
	prefix string
}

var _ kv.Batcher = (*redisProfile)(nil)

func (p *redisProfile) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := p.client.Get(ctx, p.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return value, true, nil
}

func (p *redisProfile) Set(ctx context.Context, key string, value []byte) error {
	if err := p.client.Set(ctx, p.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (p *redisProfile) Delete(ctx context.Context, key string) error {
	if err := p.client.Del(ctx, p.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// SetMany writes all values in a MULTI/EXEC transaction.
func (p *redisProfile) SetMany(ctx context.Context, values map[string][]byte) error {
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, value := range values {
			pipe.Set(ctx, p.prefix+key, value, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis transaction: %w", err)
	}
	return nil
}
