package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/metrics"
	repo "storefront/internal/repository"
)

// 支払い済みセッションの購入明細を在庫台帳に反映する。
// 同じセッションで何度呼んでも結果は同じ（再送・ポーリングでの再実行が前提）。
type ConfirmSessionUsecase struct {
	payments  repo.PaymentSessionService
	ledger    repo.InventoryLedgerRepository
	confirmed repo.ConfirmedSessionRepository
	metrics   *metrics.Metrics
	log       *slog.Logger
	now       func() time.Time
}

// DI（confirmed, mはnil可）
func NewConfirmSessionUsecase(
	payments repo.PaymentSessionService,
	ledger repo.InventoryLedgerRepository,
	confirmed repo.ConfirmedSessionRepository,
	m *metrics.Metrics,
	log *slog.Logger,
) *ConfirmSessionUsecase {
	if log == nil {
		log = slog.Default()
	}
	return &ConfirmSessionUsecase{
		payments:  payments,
		ledger:    ledger,
		confirmed: confirmed,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

// 失敗もpanicも結果として返す（呼び出し側には投げない）
func (u *ConfirmSessionUsecase) Confirm(ctx context.Context, sessionID string) (res model.SessionConfirmationResult) {
	id := strings.TrimSpace(sessionID)
	log := u.log.With("session_id", id)

	defer func() {
		if r := recover(); r != nil {
			log.Error("session confirmation panicked", "panic", r)
			res = failed(model.StageInternal, errors.New("internal error"))
		}
		u.observe(res)
	}()

	if id == "" {
		return failed(model.StageInput, errors.New("missing session id"))
	}

	//確定済みなら決済サービスを呼ばずに同じ結果
	if u.confirmed != nil {
		rec, err := u.confirmed.FindBySessionID(ctx, id)
		if err == nil {
			return model.SessionConfirmationResult{OK: true, Marked: rec.Tokens(), Replayed: true}
		}
		if !errors.Is(err, repo.ErrNotFound) {
			log.Warn("confirmed session lookup failed", "error", err)
		}
	}

	st, err := u.payments.SessionStatus(ctx, id)
	if err != nil {
		log.Error("session status failed", "error", err)
		return failed(model.StageSessionStatus, err)
	}
	if !st.Paid() {
		return model.SessionConfirmationResult{OK: true, Skipped: model.SkipNotPaid}
	}

	items, err := u.payments.ListPurchasedItems(ctx, id)
	if err != nil {
		log.Error("list line items failed", "error", err)
		return failed(model.StageLineItems, err)
	}
	tokens := purchaseTokens(items)
	if len(tokens) == 0 {
		return model.SessionConfirmationResult{OK: true, Skipped: model.SkipNoLineItems}
	}

	current, err := u.ledger.Load(ctx)
	if err != nil {
		if !errors.Is(err, repo.ErrCorruptLedger) {
			log.Error("ledger read failed", "error", err)
			return failed(model.StageLedgerRead, err)
		}
		// 壊れた台帳は空として上書きする
		log.Warn("ledger is corrupt, treating as empty", "error", err)
		current = model.InventoryLedger{}
	}

	if _, err := u.ledger.MarkSold(ctx, tokens); err != nil {
		log.Error("ledger write failed", "error", err)
		return failed(model.StageLedgerWrite, err)
	}

	added := current.Clone().MarkSold(tokens)
	if u.metrics != nil {
		u.metrics.TokensMarked.Add(float64(added))
	}
	log.Info("inventory marked sold", "tokens", tokens, "newly_marked", added)

	if u.confirmed != nil {
		if err := u.confirmed.Save(ctx, model.NewConfirmedSession(id, tokens, u.now())); err != nil {
			// 台帳は書けているので結果は成功のまま
			log.Warn("confirmed session save failed", "error", err)
		}
	}

	return model.SessionConfirmationResult{OK: true, Marked: tokens}
}

// トークン無しは捨てる。重複は最初の1つだけ。
func purchaseTokens(items []model.PurchasedItem) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, it := range items {
		t := strings.TrimSpace(it.PurchaseToken)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func failed(stage model.ConfirmationStage, err error) model.SessionConfirmationResult {
	f := &model.ConfirmationFailure{Stage: stage, Message: err.Error()}
	if pe, ok := repo.AsProviderError(err); ok {
		f.Message = pe.Message
		f.Code = pe.Code
		f.StatusCode = pe.StatusCode
	}
	return model.SessionConfirmationResult{OK: false, Error: f}
}

func (u *ConfirmSessionUsecase) observe(res model.SessionConfirmationResult) {
	if u.metrics == nil {
		return
	}

	result := "marked"
	switch {
	case !res.OK:
		result = "failed"
	case res.Replayed:
		result = "replayed"
	case res.Skipped != "":
		result = "skipped_" + string(res.Skipped)
	}
	u.metrics.Confirmations.WithLabelValues(result).Inc()
}
