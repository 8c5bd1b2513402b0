package repository

import "context"

// 永続KVストア（カートのスナップショット・在庫台帳の保存先）
type KVStore interface {
	// 無ければ ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error

	// keyが外部から書き換わるたびに通知する。ctx終了でチャネルは閉じる。
	Watch(ctx context.Context, key string) (<-chan struct{}, error)
}

// 読み込み→更新→書き込みをアトミックに行えるストア
type AtomicKVStore interface {
	KVStore

	// fnは現在値（found=falseなら未保存）を受け取り、新しい値を返す。
	// 競合時はfnが再実行されることがある。
	Update(ctx context.Context, key string, fn func(current []byte, found bool) ([]byte, error)) error
}
