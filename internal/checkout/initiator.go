// Package checkout はバッグの中身を検証して、決済セッションの作成に渡す。
// 在庫の書き込みはしない（支払い完了後の確定処理だけが台帳を書く）。
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"storefront/internal/cart"
	"storefront/internal/domain/model"
	"storefront/internal/repository"
	"storefront/internal/stock"
	"storefront/internal/usecase"
)

var (
	ErrNotPurchasable = errors.New("not purchasable")
	ErrEmptyOrder     = errors.New("empty order")
)

const (
	DefaultShippingCountry = "DE"

	NoticeNotPurchasable = "One or more items are not purchasable yet."
	NoticeEmptyOrder     = "Your bag is empty."
	NoticeCheckoutFailed = "Checkout failed. Please try again."
	NoticeMissingURL     = "Missing checkout URL"
)

// 現在の在庫数が明細の数量より少ない
type InsufficientStockError struct {
	Title     string
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: %d available", e.Title, e.Available)
}

func (e *InsufficientStockError) Notice() string {
	return fmt.Sprintf("“%s” has only %d in stock.", e.Title, e.Available)
}

// 決済セッションを作れなかった（通信エラー・エラー応答）
type TransportError struct {
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type SessionCreator interface {
	CreateSession(ctx context.Context, req model.OrderRequest) (model.SessionHandle, error)
}

// 現在の在庫。カタログに無い商品は found=false
type StockSource interface {
	CurrentStock(ctx context.Context, itemID string) (st model.Stock, found bool, err error)
}

type Input struct {
	ContactEmail    string
	ShippingCountry string
}

type Result struct {
	SessionID  string `json:"id"`
	SessionURL string `json:"url"`
}

type Initiator struct {
	sessions SessionCreator
	stock    StockSource
	log      *slog.Logger
}

// DI（stockはnil可。そのときは明細のスナップショットで検証する）
func NewInitiator(sessions SessionCreator, stock StockSource, log *slog.Logger) *Initiator {
	if log == nil {
		log = slog.Default()
	}
	return &Initiator{sessions: sessions, stock: stock, log: log}
}

// 失敗はnotifyに1件だけ通知する。linesは書き換えない。
func (i *Initiator) Checkout(ctx context.Context, lines []model.CartLine, in Input, notify cart.Notifier) (Result, error) {
	if notify == nil {
		notify = cart.NotifierFunc(func(string) {})
	}

	// 空なら何もしない
	if len(lines) == 0 {
		return Result{}, nil
	}

	for _, l := range lines {
		available := i.available(ctx, l)
		if l.Quantity > available {
			e := &InsufficientStockError{Title: l.Title, Available: available}
			notify.Notice(e.Notice())
			return Result{}, e
		}
	}

	req := model.OrderRequest{
		Items:           make([]model.OrderLine, 0, len(lines)),
		CustomerEmail:   strings.TrimSpace(in.ContactEmail),
		ShippingCountry: shippingCountry(in.ShippingCountry),
	}
	for _, l := range lines {
		if strings.TrimSpace(l.PurchaseToken) == "" {
			notify.Notice(NoticeNotPurchasable)
			return Result{}, ErrNotPurchasable
		}
		req.Items = append(req.Items, model.OrderLine{PurchaseToken: l.PurchaseToken, Quantity: l.Quantity})
	}

	subtotal := cart.Subtotal(lines)
	if !subtotal.IsPositive() {
		notify.Notice(NoticeEmptyOrder)
		return Result{}, ErrEmptyOrder
	}
	req.SubtotalCents = subtotal.Shift(2).Round(0).IntPart()

	handle, err := i.sessions.CreateSession(ctx, req)
	if err != nil {
		msg := providerMessage(err)
		i.log.Warn("checkout session failed", "error", err)
		notify.Notice(msg)
		return Result{}, &TransportError{Message: msg, Err: err}
	}
	if handle.URL == "" {
		notify.Notice(NoticeMissingURL)
		return Result{}, &TransportError{Message: NoticeMissingURL}
	}

	return Result{SessionID: handle.ID, SessionURL: handle.URL}, nil
}

// 在庫ソースが使えなければ明細のスナップショット
func (i *Initiator) available(ctx context.Context, l model.CartLine) int {
	if i.stock != nil {
		st, found, err := i.stock.CurrentStock(ctx, l.ItemID)
		if err != nil {
			i.log.Warn("live stock lookup failed", "item_id", l.ItemID, "error", err)
		} else if found {
			return stock.EffectiveStock(st)
		}
	}
	return stock.EffectiveStock(model.KnownStock(int64(l.KnownStock)))
}

func shippingCountry(c string) string {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		return DefaultShippingCountry
	}
	return c
}

// ユーザーに見せてよいメッセージだけを取り出す
func providerMessage(err error) string {
	if he, ok := usecase.AsHTTPError(err); ok && he.Message != "" {
		return he.Message
	}
	if pe, ok := repository.AsProviderError(err); ok && pe.Message != "" {
		return pe.Message
	}
	return NoticeCheckoutFailed
}
