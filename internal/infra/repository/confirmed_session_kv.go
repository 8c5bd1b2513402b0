package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// KVに置く形（トークンは配列のまま）
type kvConfirmedSession struct {
	SessionID   string    `json:"session_id"`
	Tokens      []string  `json:"tokens"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

type confirmedSessionKVRepository struct {
	store repo.KVStore
}

// redis/メモリ構成用。1セッション1キー。
func NewConfirmedSessionKVRepository(store repo.KVStore) repo.ConfirmedSessionRepository {
	return &confirmedSessionKVRepository{store: store}
}

func confirmedSessionKey(sessionID string) string {
	return "confirmed:v1:" + sessionID
}

func (r *confirmedSessionKVRepository) FindBySessionID(ctx context.Context, sessionID string) (model.ConfirmedSession, error) {
	b, err := r.store.Get(ctx, confirmedSessionKey(sessionID))
	if err != nil {
		return model.ConfirmedSession{}, err
	}

	var s kvConfirmedSession
	if err := json.Unmarshal(b, &s); err != nil || s.SessionID == "" {
		// 壊れた記録は無かったものとして確定処理をやり直させる
		return model.ConfirmedSession{}, repo.ErrNotFound
	}
	return model.NewConfirmedSession(s.SessionID, s.Tokens, s.ConfirmedAt), nil
}

func (r *confirmedSessionKVRepository) Save(ctx context.Context, s model.ConfirmedSession) error {
	key := confirmedSessionKey(s.SessionID)

	b, err := json.Marshal(kvConfirmedSession{SessionID: s.SessionID, Tokens: s.Tokens(), ConfirmedAt: s.ConfirmedAt})
	if err != nil {
		return err
	}

	if a, ok := r.store.(repo.AtomicKVStore); ok {
		return a.Update(ctx, key, func(cur []byte, found bool) ([]byte, error) {
			if found {
				return cur, nil
			}
			return b, nil
		})
	}

	if _, err := r.store.Get(ctx, key); err == nil {
		return nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	return r.store.Set(ctx, key, b)
}
