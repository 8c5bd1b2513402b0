package repository

import (
	"context"
	"sync"

	repo "storefront/internal/repository"
)

// プロセス内のKVストア（ローカル開発・テスト用）
type MemoryKVStore struct {
	mu       sync.Mutex
	data     map[string][]byte
	watchers map[string]map[int]chan struct{}
	nextID   int
}

func NewMemoryKVStore() *MemoryKVStore {
	return &MemoryKVStore{
		data:     map[string][]byte{},
		watchers: map[string]map[int]chan struct{}{},
	}
}

func (s *MemoryKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.data[key]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *MemoryKVStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = append([]byte(nil), value...)
	s.notifyLocked(key)
	return nil
}

// ロック中にfnを呼ぶので、fnからこのストアを呼ばないこと
func (s *MemoryKVStore) Update(ctx context.Context, key string, fn func(current []byte, found bool) ([]byte, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, found := s.data[key]
	next, err := fn(append([]byte(nil), cur...), found)
	if err != nil {
		return err
	}

	s.data[key] = append([]byte(nil), next...)
	s.notifyLocked(key)
	return nil
}

func (s *MemoryKVStore) Watch(ctx context.Context, key string) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	if s.watchers[key] == nil {
		s.watchers[key] = map[int]chan struct{}{}
	}
	s.watchers[key][id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()

		s.mu.Lock()
		delete(s.watchers[key], id)
		s.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

// 詰まっている通知はまとめる
func (s *MemoryKVStore) notifyLocked(key string) {
	for _, ch := range s.watchers[key] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
