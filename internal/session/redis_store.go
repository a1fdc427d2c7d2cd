package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "clinicfinder:session:"

type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func sessionKey(key string) string {
	return keyPrefix + key
}

func indexKey(scope Scope, principalID int64) string {
	return keyPrefix + "idx:" + string(scope) + ":" + strconv.FormatInt(principalID, 10)
}

func (r *RedisStore) Save(ctx context.Context, key string, s Session) error {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return errors.New("session already expired")
	}

	b, err := json.Marshal(s)
	if err != nil {
		return err
	}

	idx := indexKey(s.Scope, s.PrincipalID)
	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, sessionKey(key), b, ttl)
		p.SAdd(ctx, idx, key)
		p.Expire(ctx, idx, ttl)
		return nil
	})
	return err
}

func (r *RedisStore) Get(ctx context.Context, key string) (Session, error) {
	b, err := r.rdb.Get(ctx, sessionKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}

	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	s, err := r.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, sessionKey(key))
		p.SRem(ctx, indexKey(s.Scope, s.PrincipalID), key)
		return nil
	})
	return err
}

func (r *RedisStore) DeleteForPrincipal(ctx context.Context, scope Scope, principalID int64) error {
	idx := indexKey(scope, principalID)

	keys, err := r.rdb.SMembers(ctx, idx).Result()
	if err != nil {
		return err
	}

	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, k := range keys {
			p.Del(ctx, sessionKey(k))
		}
		p.Del(ctx, idx)
		return nil
	})
	return err
}
