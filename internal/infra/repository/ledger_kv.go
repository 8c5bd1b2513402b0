package repository

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// KVストアの1ドキュメント（sold.json）に台帳を置く
type LedgerKVRepository struct {
	store repo.KVStore
	key   string
}

func NewLedgerKVRepository(store repo.KVStore) *LedgerKVRepository {
	return &LedgerKVRepository{store: store, key: model.LedgerKey}
}

func (r *LedgerKVRepository) Load(ctx context.Context) (model.InventoryLedger, error) {
	b, err := r.store.Get(ctx, r.key)
	if errors.Is(err, repo.ErrNotFound) {
		return model.InventoryLedger{}, nil
	}
	if err != nil {
		return nil, err
	}

	l, err := model.DecodeLedger(b)
	if err != nil {
		return model.InventoryLedger{}, fmt.Errorf("%w: %v", repo.ErrCorruptLedger, err)
	}
	return l, nil
}

// アトミック更新できるストアならそれを使う。できなければ読み込み→マージ→上書き。
func (r *LedgerKVRepository) MarkSold(ctx context.Context, tokens []string) (model.InventoryLedger, error) {
	if a, ok := r.store.(repo.AtomicKVStore); ok {
		var merged model.InventoryLedger

		err := a.Update(ctx, r.key, func(cur []byte, found bool) ([]byte, error) {
			l := model.InventoryLedger{}
			if found {
				if decoded, err := model.DecodeLedger(cur); err == nil {
					l = decoded
				}
			}
			l.MarkSold(tokens)
			merged = l
			return l.Encode()
		})
		if err != nil {
			return nil, err
		}
		return merged, nil
	}

	l, err := r.Load(ctx)
	if err != nil && !errors.Is(err, repo.ErrCorruptLedger) {
		return nil, err
	}
	l.MarkSold(tokens)

	b, err := l.Encode()
	if err != nil {
		return nil, err
	}
	if err := r.store.Set(ctx, r.key, b); err != nil {
		return nil, err
	}
	return l, nil
}
