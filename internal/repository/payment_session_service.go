package repository

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/domain/model"
)

// 価格IDが使えない（存在しない・金額未設定）
var ErrInvalidPrice = errors.New("invalid price")

// 決済サービスが返したエラー
type ProviderError struct {
	Message    string
	Code       string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payment provider: %s (%s)", e.Message, e.Code)
	}
	return "payment provider: " + e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	ok := errors.As(err, &pe)
	return pe, ok
}

// 外部の決済セッションサービス
type PaymentSessionService interface {
	CreateSession(ctx context.Context, req model.SessionRequest) (model.SessionHandle, error)
	SessionStatus(ctx context.Context, sessionID string) (model.SessionStatus, error)
	ListPurchasedItems(ctx context.Context, sessionID string) ([]model.PurchasedItem, error)

	// 価格IDの単価（最小通貨単位）と通貨
	UnitAmount(ctx context.Context, purchaseToken string) (int64, string, error)

	SessionSummary(ctx context.Context, sessionID string) (model.SessionSummary, error)
}

// 署名付きwebhookを検証してイベントにする
type PaymentEventVerifier interface {
	VerifyEvent(payload []byte, signatureHeader string) (model.PaymentEvent, error)
}
