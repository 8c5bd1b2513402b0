package repository

import (
	"context"
	"errors"
	"fmt"

	repo "storefront/internal/repository"

	"github.com/redis/go-redis/v9"
)

// 楽観ロックのリトライ回数
const redisUpdateRetries = 10

// Redis上のKVストア。書き込みのたびに変更チャネルへpublishする。
type RedisKVStore struct {
	rdb *redis.Client
}

// DI
func NewRedisKVStore(rdb *redis.Client) *RedisKVStore {
	return &RedisKVStore{rdb: rdb}
}

func changeChannel(key string) string {
	return "kv:changed:" + key
}

func (s *RedisKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// SETとPUBLISHは同じMULTIで送る
func (s *RedisKVStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, key, value, 0)
		p.Publish(ctx, changeChannel(key), "set")
		return nil
	})
	return err
}

// WATCH/MULTIで読み込み→書き込みをアトミックにする
func (s *RedisKVStore) Update(ctx context.Context, key string, fn func(current []byte, found bool) ([]byte, error)) error {
	txf := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		found := true
		if errors.Is(err, redis.Nil) {
			found = false
		} else if err != nil {
			return err
		}

		next, err := fn(cur, found)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, next, 0)
			p.Publish(ctx, changeChannel(key), "update")
			return nil
		})
		return err
	}

	for i := 0; i < redisUpdateRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			// 他の書き込みと競合したのでやり直す
			continue
		}
		return err
	}
	return fmt.Errorf("update %s: %w", key, redis.TxFailedErr)
}

func (s *RedisKVStore) Watch(ctx context.Context, key string) (<-chan struct{}, error) {
	ps := s.rdb.Subscribe(ctx, changeChannel(key))

	//購読が成立するまで待つ
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	msgs := ps.Channel()
	out := make(chan struct{}, 1)

	go func() {
		defer close(out)
		defer func() { _ = ps.Close() }()

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	return out, nil
}
