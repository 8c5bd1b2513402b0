package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
)

// 台帳ドキュメントがJSONとして読めない
var ErrCorruptLedger = errors.New("corrupt ledger document")

// 在庫台帳（purchaseToken → sold）の保存・取得の約束。
type InventoryLedgerRepository interface {
	// 未保存なら空の台帳。壊れている場合は空の台帳と ErrCorruptLedger。
	Load(ctx context.Context) (model.InventoryLedger, error)

	// tokensをtrueにして全体を書き戻す（和集合のみ）。マージ後の台帳を返す。
	MarkSold(ctx context.Context, tokens []string) (model.InventoryLedger, error)
}
