package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// カート明細の識別キー（itemId::variant）
type LineKey string

// 区切りと衝突しないよう、各部分の ":" と "%" はエスケープする
var lineKeyPart = strings.NewReplacer("%", "%25", ":", "%3A")

func NewLineKey(itemID, variant string) LineKey {
	return LineKey(lineKeyPart.Replace(itemID) + "::" + lineKeyPart.Replace(variant))
}

// カートの明細。追加時点の価格と在庫スナップショットを持つ。
type CartLine struct {
	ItemID        string          `json:"id"`
	Variant       string          `json:"variant"`
	Title         string          `json:"title"`
	UnitPrice     decimal.Decimal `json:"price"`
	Currency      string          `json:"currency"`
	Quantity      int             `json:"qty"`
	ImageRef      string          `json:"image"`
	PurchaseToken string          `json:"purchase_token"`
	KnownStock    int             `json:"stock"`
}

func (l CartLine) Key() LineKey {
	return NewLineKey(l.ItemID, l.Variant)
}

// 同じ明細かどうかは商品IDとバリアントで比べる
func (l CartLine) Is(itemID, variant string) bool {
	return l.ItemID == itemID && l.Variant == variant
}

// 単価 × 数量
func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
