package model

import "github.com/shopspring/decimal"

// 静的カタログの商品（このサービスからは読み取り専用）
type PurchasableItem struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Currency      string          `json:"currency"`
	Stock         Stock           `json:"stock"`
	PurchaseToken string          `json:"stripePriceId"`
	Cover         string          `json:"cover,omitempty"`
	Images        []string        `json:"images"`
	DefaultSize   string          `json:"defaultSize,omitempty"`

	// 外部マーケット専売（このストアでは買えない）
	SellOnVintedOnly bool   `json:"sellOnVintedOnly,omitempty"`
	VintedURL        string `json:"vintedUrl,omitempty"`
}

// 一覧・カートで使う代表画像
func (p PurchasableItem) ImageRef() string {
	if p.Cover != "" {
		return p.Cover
	}
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// サイズ指定が無ければ "Free"
func (p PurchasableItem) Variant() string {
	if p.DefaultSize == "" {
		return "Free"
	}
	return p.DefaultSize
}
