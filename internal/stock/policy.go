// Package stock は在庫に対する数量の上限を決める純粋関数だけを持つ。
// カートの数量変更はすべてここを通す。
package stock

import (
	"math"

	"storefront/internal/domain/model"
)

// 1明細あたりの上限
const MaxPerLine = 9

// 数値として分かっていれば0以上に丸めた値、分からなければ1点物として1。
func EffectiveStock(s model.Stock) int {
	if !s.Known {
		return 1
	}
	if s.Value < 0 {
		return 0
	}
	if s.Value > math.MaxInt {
		return math.MaxInt
	}
	return int(s.Value)
}

// 在庫0なら0。それ以外は [1, min(在庫, 9)] に収める（0以下の要求は1扱い）。
func ClampQuantity(s model.Stock, requested int) int {
	st := EffectiveStock(s)
	if st == 0 {
		return 0
	}

	limit := min(st, MaxPerLine)

	q := requested
	if q <= 0 {
		q = 1
	}
	return max(1, min(q, limit))
}
