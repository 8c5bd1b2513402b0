package model

import "strings"

// 決済セッションの支払い状態
type SessionStatus struct {
	ID            string `json:"id"`
	PaymentStatus string `json:"payment_status"`
}

func (s SessionStatus) Paid() bool {
	return strings.EqualFold(strings.TrimSpace(s.PaymentStatus), "paid")
}

// 購入された明細（トークンが無い明細もそのまま返る）
type PurchasedItem struct {
	PurchaseToken string `json:"purchase_token"`
	Quantity      int64  `json:"quantity"`
}

type SkipReason string

const (
	SkipNotPaid     SkipReason = "not_paid"
	SkipNoLineItems SkipReason = "no_line_items"
)

// 失敗した段階
type ConfirmationStage string

const (
	StageInput         ConfirmationStage = "input"
	StageSessionStatus ConfirmationStage = "session_status"
	StageLineItems     ConfirmationStage = "line_items"
	StageLedgerRead    ConfirmationStage = "ledger_read"
	StageLedgerWrite   ConfirmationStage = "ledger_write"
	StageInternal      ConfirmationStage = "internal"
)

// 運用者向けの失敗情報
type ConfirmationFailure struct {
	Stage      ConfirmationStage `json:"stage"`
	Message    string            `json:"message"`
	Code       string            `json:"code,omitempty"`
	StatusCode int               `json:"status_code,omitempty"`
}

// セッション確定の結果。呼び出し側のtransportまで例外を上げないためのタグ付き結果。
type SessionConfirmationResult struct {
	OK       bool                 `json:"ok"`
	Skipped  SkipReason           `json:"skipped,omitempty"`
	Marked   []string             `json:"marked,omitempty"`
	Replayed bool                 `json:"replayed,omitempty"`
	Error    *ConfirmationFailure `json:"error,omitempty"`
}

// 決済完了イベント（webhook）
type PaymentEvent struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	// 銀行振込などの非同期決済は完了イベントの後に届く
	EventCheckoutSessionAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
)
