// Package cart はバッグ（カート）の状態を持ち、変更のたびにKVストアへ丸ごと保存する。
package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"storefront/internal/domain/model"
	"storefront/internal/repository"
	"storefront/internal/stock"

	"github.com/shopspring/decimal"
)

var (
	ErrOutOfStock  = errors.New("out of stock")
	ErrInvalidItem = errors.New("invalid item")
	ErrPersist     = errors.New("bag could not be saved")
)

const (
	NoticeOutOfStock    = "This item is out of stock."
	NoticePersistFailed = "Your bag could not be saved. Please try again."
)

// バッグごとの保存キー
func StorageKey(bagID string) string {
	return "bag:v1:" + bagID
}

// 1バッグ分のカート。変更操作はmuの中で最後まで走る。
// View/Notifierはロック中に呼ばれるので、そこからStoreを呼ばないこと。
type Store struct {
	mu     sync.Mutex
	kv     repository.KVStore
	key    string
	view   View
	notify Notifier
	log    *slog.Logger

	lines []model.CartLine
}

// 保存済みのスナップショットを読み込んで作る
func NewStore(ctx context.Context, kv repository.KVStore, key string, view View, notify Notifier, log *slog.Logger) (*Store, error) {
	if view == nil {
		view = NopView{}
	}
	if notify == nil {
		notify = NotifierFunc(func(string) {})
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Store{
		kv:     kv,
		key:    key,
		view:   view,
		notify: notify,
		log:    log.With("bag_key", key),
	}

	lines, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	s.lines = lines
	return s, nil
}

func (s *Store) Add(ctx context.Context, item model.PurchasableItem, variant string, qty int) error {
	if item.ID == "" {
		return ErrInvalidItem
	}
	if qty <= 0 {
		qty = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	incoming := stock.EffectiveStock(item.Stock)
	if incoming == 0 {
		s.notify.Notice(NoticeOutOfStock)
		return ErrOutOfStock
	}

	next := s.cloneLocked()

	if i := indexOfLine(next, item.ID, variant); i >= 0 {
		line := next[i]
		// 在庫が数値で渡されたときだけスナップショットを更新する
		if item.Stock.Known {
			line.KnownStock = incoming
		}
		line.Quantity = stock.ClampQuantity(model.KnownStock(int64(line.KnownStock)), line.Quantity+qty)
		if line.Quantity == 0 {
			s.notify.Notice(NoticeOutOfStock)
			return ErrOutOfStock
		}
		next[i] = line
	} else {
		q := stock.ClampQuantity(item.Stock, qty)
		if q == 0 {
			s.notify.Notice(NoticeOutOfStock)
			return ErrOutOfStock
		}

		currency := item.Currency
		if currency == "" {
			currency = "EUR"
		}
		next = append(next, model.CartLine{
			ItemID:        item.ID,
			Variant:       variant,
			Title:         item.Title,
			UnitPrice:     item.Price,
			Currency:      currency,
			Quantity:      q,
			ImageRef:      item.ImageRef(),
			PurchaseToken: item.PurchaseToken,
			KnownStock:    incoming,
		})
	}

	return s.commitLocked(ctx, next, true)
}

// 0なら削除。それ以外は在庫に合わせて丸める。
func (s *Store) UpdateQty(ctx context.Context, key model.LineKey, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cloneLocked()
	i := indexOf(next, key)
	if i < 0 {
		return nil
	}
	if qty == 0 {
		return s.removeLocked(ctx, i)
	}

	line := next[i]
	line.Quantity = stock.ClampQuantity(model.KnownStock(int64(line.KnownStock)), qty)
	if line.Quantity == 0 {
		return s.removeLocked(ctx, i)
	}
	next[i] = line

	return s.commitLocked(ctx, next, false)
}

func (s *Store) RemoveAt(ctx context.Context, key model.LineKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.lines, key)
	if i < 0 {
		return nil
	}
	return s.removeLocked(ctx, i)
}

// 呼び出し側が書き換えてもStoreには影響しない
func (s *Store) Read() []model.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cloneLocked()
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, l := range s.lines {
		n += l.Quantity
	}
	return n
}

// 通貨は1つの前提
func (s *Store) Subtotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Subtotal(s.lines)
}

func Subtotal(lines []model.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineTotal())
	}
	return total
}

// 保存先を読み直す。メモリ上と違えば置き換えて再描画し、trueを返す。
func (s *Store) Reload(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.fetch(ctx)
	if err != nil {
		return false, err
	}
	if sameLines(s.lines, lines) {
		return false, nil
	}

	s.lines = lines
	s.view.Render(s.cloneLocked())
	return true, nil
}

// 保存先の変更通知を購読し、通知のたびにReloadする。ctx終了で止まる。
func (s *Store) Watch(ctx context.Context) error {
	ch, err := s.kv.Watch(ctx, s.key)
	if err != nil {
		return err
	}

	go func() {
		for range ch {
			if _, err := s.Reload(ctx); err != nil && ctx.Err() == nil {
				s.log.Warn("bag reload failed", "error", err)
			}
		}
	}()
	return nil
}

func (s *Store) removeLocked(ctx context.Context, i int) error {
	next := make([]model.CartLine, 0, len(s.lines))
	next = append(next, s.lines[:i]...)
	next = append(next, s.lines[i+1:]...)
	return s.commitLocked(ctx, next, false)
}

// メモリ上は保存の成否に関わらず更新する
func (s *Store) commitLocked(ctx context.Context, next []model.CartLine, reveal bool) error {
	s.lines = next

	err := s.persistLocked(ctx)

	s.view.Render(s.cloneLocked())
	if reveal {
		s.view.Reveal()
	}

	if err != nil {
		s.log.Error("bag persist failed", "error", err)
		s.notify.Notice(NoticePersistFailed)
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

func (s *Store) persistLocked(ctx context.Context) error {
	b, err := json.Marshal(s.lines)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, s.key, b)
}

// 未保存なら空。壊れていたら空として扱う。
func (s *Store) fetch(ctx context.Context) ([]model.CartLine, error) {
	b, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, repository.ErrNotFound) {
		return []model.CartLine{}, nil
	}
	if err != nil {
		return nil, err
	}

	var raw []model.CartLine
	if err := json.Unmarshal(b, &raw); err != nil {
		s.log.Warn("bag snapshot is corrupt, starting empty", "error", err)
		return []model.CartLine{}, nil
	}
	return normalize(raw), nil
}

func (s *Store) cloneLocked() []model.CartLine {
	out := make([]model.CartLine, len(s.lines))
	copy(out, s.lines)
	return out
}

// 保存データを信用しない：丸め直し、0個の行は捨て、同じキーはまとめる
func normalize(raw []model.CartLine) []model.CartLine {
	out := make([]model.CartLine, 0, len(raw))

	for _, l := range raw {
		if l.ItemID == "" || l.Quantity <= 0 || l.KnownStock <= 0 {
			continue
		}

		if i := indexOfLine(out, l.ItemID, l.Variant); i >= 0 {
			merged := out[i]
			merged.Quantity = stock.ClampQuantity(model.KnownStock(int64(merged.KnownStock)), merged.Quantity+l.Quantity)
			out[i] = merged
			continue
		}

		l.Quantity = stock.ClampQuantity(model.KnownStock(int64(l.KnownStock)), l.Quantity)
		out = append(out, l)
	}
	return out
}

func indexOfLine(lines []model.CartLine, itemID, variant string) int {
	for i, l := range lines {
		if l.Is(itemID, variant) {
			return i
		}
	}
	return -1
}

func indexOf(lines []model.CartLine, key model.LineKey) int {
	for i, l := range lines {
		if l.Key() == key {
			return i
		}
	}
	return -1
}

func sameLines(a, b []model.CartLine) bool {
	if len(a) != len(b) {
		return false
	}
	ab, err1 := json.Marshal(a)
	bb, err2 := json.Marshal(b)
	if err1 != nil || err2 != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}
