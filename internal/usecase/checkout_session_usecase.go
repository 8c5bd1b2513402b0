package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"storefront/internal/domain/model"
	"storefront/internal/metrics"
	repo "storefront/internal/repository"
	"storefront/internal/stock"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// 配送先として受け付ける国（EU）
var AllowedShippingCountries = []string{
	"DE", "FR", "NL", "BE", "LU", "AT", "IT", "ES", "PT", "IE", "FI", "SE", "DK",
	"PL", "CZ", "HU", "SK", "SI", "HR", "RO", "BG", "EE", "LV", "LT", "MT", "CY",
}

const (
	defaultShippingCountry     = "DE"
	shippingCurrency           = "EUR"
	standardShippingCents      = 500
	freeShippingThresholdCents = 10000
)

// 「今すぐ購入」の入力（価格IDを使わない単品購入）
type BuyNowInput struct {
	Title         string
	Price         decimal.Decimal
	CustomerEmail string
}

// 価格IDに対応する現在の商品（在庫は台帳反映済み）
type TokenStockSource interface {
	ItemByToken(ctx context.Context, purchaseToken string) (model.PurchasableItem, bool, error)
}

type CheckoutSessionUsecase struct {
	payments     repo.PaymentSessionService
	stock        TokenStockSource
	clientOrigin string
	metrics      *metrics.Metrics
	log          *slog.Logger
	newRef       func() string
}

// DI（stock, mはnil可）
func NewCheckoutSessionUsecase(payments repo.PaymentSessionService, stocks TokenStockSource, clientOrigin string, m *metrics.Metrics, log *slog.Logger) *CheckoutSessionUsecase {
	if log == nil {
		log = slog.Default()
	}
	return &CheckoutSessionUsecase{
		payments:     payments,
		stock:        stocks,
		clientOrigin: strings.TrimRight(clientOrigin, "/"),
		metrics:      m,
		log:          log,
		newRef:       func() string { return uuid.NewString() },
	}
}

// バッグの注文から決済セッションを作る。金額は価格IDから引き直す。
func (u *CheckoutSessionUsecase) CreateSession(ctx context.Context, req model.OrderRequest) (model.SessionHandle, error) {
	if len(req.Items) == 0 {
		return u.reject(http.StatusBadRequest, "No items provided")
	}

	country, err := normalizeCountry(req.ShippingCountry)
	if err != nil {
		return u.reject(http.StatusBadRequest, err.Error())
	}

	lines := make([]model.SessionLine, 0, len(req.Items))
	for _, it := range req.Items {
		token := strings.TrimSpace(it.PurchaseToken)
		if token == "" {
			return u.reject(http.StatusBadRequest, "Missing Stripe Price ID in items.")
		}
		lines = append(lines, model.SessionLine{
			PurchaseToken: token,
			Quantity:      int64(clampLineQuantity(it.Quantity)),
		})
	}

	if err := u.checkStock(ctx, lines); err != nil {
		return model.SessionHandle{}, err
	}

	// 同じ価格IDは1回だけ問い合わせる
	amounts := map[string]int64{}
	for _, l := range lines {
		if _, ok := amounts[l.PurchaseToken]; ok {
			continue
		}
		amount, _, err := u.payments.UnitAmount(ctx, l.PurchaseToken)
		if err != nil {
			if errors.Is(err, repo.ErrInvalidPrice) {
				return u.reject(http.StatusBadRequest, "Invalid Stripe Price: "+l.PurchaseToken)
			}
			return u.fail(err)
		}
		amounts[l.PurchaseToken] = amount
	}

	var subtotal int64
	for _, l := range lines {
		subtotal += amounts[l.PurchaseToken] * l.Quantity
	}
	if req.SubtotalCents > 0 && req.SubtotalCents != subtotal {
		u.log.Warn("client subtotal differs from price subtotal",
			"client_subtotal_cents", req.SubtotalCents, "subtotal_cents", subtotal)
	}

	return u.create(ctx, lines, subtotal, req.CustomerEmail, country)
}

func (u *CheckoutSessionUsecase) BuyNow(ctx context.Context, in BuyNowInput) (model.SessionHandle, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || !in.Price.IsPositive() {
		return u.reject(http.StatusBadRequest, "Invalid payload for single-item checkout")
	}

	unit := in.Price.Shift(2).Round(0).IntPart()
	lines := []model.SessionLine{{
		AdHoc:    &model.AdHocPrice{Name: title, UnitAmount: unit, Currency: shippingCurrency},
		Quantity: 1,
	}}
	return u.create(ctx, lines, unit, in.CustomerEmail, defaultShippingCountry)
}

func (u *CheckoutSessionUsecase) SessionSummary(ctx context.Context, sessionID string) (model.SessionSummary, error) {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return model.SessionSummary{}, NewHTTPError(http.StatusBadRequest, "Missing session_id")
	}

	sum, err := u.payments.SessionSummary(ctx, id)
	if err != nil {
		if pe, ok := repo.AsProviderError(err); ok && pe.StatusCode == http.StatusNotFound {
			return model.SessionSummary{}, NewHTTPError(http.StatusNotFound, "session not found")
		}
		u.log.Error("session summary failed", "session_id", id, "error", err)
		return model.SessionSummary{}, NewHTTPError(http.StatusBadGateway, providerMessage(err, "Failed to retrieve session"))
	}
	return sum, nil
}

func (u *CheckoutSessionUsecase) create(ctx context.Context, lines []model.SessionLine, subtotal int64, email, country string) (model.SessionHandle, error) {
	sr := model.SessionRequest{
		Lines:             lines,
		CustomerEmail:     strings.TrimSpace(email),
		ShippingCountry:   country,
		AllowedCountries:  AllowedShippingCountries,
		ShippingOptions:   ShippingOptions(subtotal),
		SuccessURL:        u.clientOrigin + "/success.html?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:         u.clientOrigin + "/cancel.html",
		ClientReferenceID: u.newRef(),
		Metadata:          map[string]string{"shipping_country_hint": country},
	}

	h, err := u.payments.CreateSession(ctx, sr)
	if err != nil {
		return u.fail(err)
	}

	u.count("created")
	u.log.Info("checkout session created", "session_id", h.ID, "subtotal_cents", subtotal, "reference", sr.ClientReferenceID)
	return h, nil
}

// 価格IDごとの合計数量が現在の在庫以下であること。カタログに無い価格IDは決済側の検証に任せる
func (u *CheckoutSessionUsecase) checkStock(ctx context.Context, lines []model.SessionLine) error {
	if u.stock == nil {
		return nil
	}

	var order []string
	wanted := map[string]int64{}
	for _, l := range lines {
		if _, ok := wanted[l.PurchaseToken]; !ok {
			order = append(order, l.PurchaseToken)
		}
		wanted[l.PurchaseToken] += l.Quantity
	}

	for _, token := range order {
		item, found, err := u.stock.ItemByToken(ctx, token)
		if err != nil {
			u.log.Error("stock lookup failed", "purchase_token", token, "error", err)
			_, err = u.reject(http.StatusServiceUnavailable, "Inventory unavailable")
			return err
		}
		if !found {
			continue
		}
		available := stock.EffectiveStock(item.Stock)
		if wanted[token] > int64(available) {
			_, err = u.reject(http.StatusConflict, fmt.Sprintf("“%s” has only %d in stock.", item.Title, available))
			return err
		}
	}
	return nil
}

// 標準送料は常に、送料無料は小計が閾値以上のときだけ
func ShippingOptions(subtotalCents int64) []model.ShippingOption {
	opts := []model.ShippingOption{{
		DisplayName: "Standard Shipping",
		AmountCents: standardShippingCents,
		Currency:    shippingCurrency,
		MinDays:     2,
		MaxDays:     7,
	}}
	if subtotalCents >= freeShippingThresholdCents {
		opts = append(opts, model.ShippingOption{
			DisplayName: "Free Shipping (orders over €100)",
			AmountCents: 0,
			Currency:    shippingCurrency,
			MinDays:     2,
			MaxDays:     7,
		})
	}
	return opts
}

func clampLineQuantity(q int) int {
	return max(1, min(q, stock.MaxPerLine))
}

func normalizeCountry(c string) (string, error) {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		return defaultShippingCountry, nil
	}
	if !slices.Contains(AllowedShippingCountries, c) {
		return "", errors.New("Unsupported shipping country: " + c)
	}
	return c, nil
}

func (u *CheckoutSessionUsecase) reject(status int, msg string) (model.SessionHandle, error) {
	u.count("rejected")
	return model.SessionHandle{}, NewHTTPError(status, msg)
}

func (u *CheckoutSessionUsecase) fail(err error) (model.SessionHandle, error) {
	u.count("failed")
	u.log.Error("checkout session failed", "error", err)
	return model.SessionHandle{}, NewHTTPError(http.StatusBadGateway, providerMessage(err, "Failed to create session"))
}

func (u *CheckoutSessionUsecase) count(result string) {
	if u.metrics != nil {
		u.metrics.CheckoutSessions.WithLabelValues(result).Inc()
	}
}

func providerMessage(err error, fallback string) string {
	if pe, ok := repo.AsProviderError(err); ok && pe.Message != "" {
		return pe.Message
	}
	return fallback
}
