package handler

import (
	"encoding/json"

	"storefront/internal/cart"
	"storefront/internal/domain/model"
)

// SSE用のView。Renderはロック中に呼ばれるので待たずに最新だけ残す。
type streamView struct {
	ch chan []model.CartLine
}

func newStreamView() *streamView {
	return &streamView{ch: make(chan []model.CartLine, 1)}
}

func (v *streamView) Render(lines []model.CartLine) {
	select {
	case v.ch <- lines:
		return
	default:
	}

	// 未送信の古い状態は捨てる
	select {
	case <-v.ch:
	default:
	}
	select {
	case v.ch <- lines:
	default:
	}
}

func (v *streamView) Reveal() {}

func encodeBagEvent(lines []model.CartLine) ([]byte, error) {
	if lines == nil {
		lines = []model.CartLine{}
	}
	count := 0
	for _, l := range lines {
		count += l.Quantity
	}
	return json.Marshal(BagResponse{
		Lines:    lines,
		Count:    count,
		Subtotal: cart.Subtotal(lines),
		Notices:  []string{},
	})
}
