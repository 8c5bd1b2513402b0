package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// 1ページで取る明細数
const lineItemsPageSize = 100

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string

	// テスト用（空なら本番API）
	BackendURL string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Stripe Checkout を使った決済セッションサービス
type StripeService struct {
	api           *client.API
	webhookSecret string
}

func NewStripeService(cfg StripeConfig) *StripeService {
	bc := &stripe.BackendConfig{}
	if cfg.BackendURL != "" {
		bc.URL = stripe.String(cfg.BackendURL)
		bc.MaxNetworkRetries = stripe.Int64(0)
	}
	if cfg.HTTPClient != nil {
		bc.HTTPClient = cfg.HTTPClient
	}
	if cfg.Logger != nil {
		bc.LeveledLogger = &leveledLogger{log: cfg.Logger}
	}

	// 使うのはAPIバックエンドだけ
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, bc),
		Connect: stripe.GetBackend(stripe.ConnectBackend),
		Uploads: stripe.GetBackend(stripe.UploadsBackend),
	}

	return &StripeService{
		api:           client.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
	}
}

func (s *StripeService) CreateSession(ctx context.Context, req model.SessionRequest) (model.SessionHandle, error) {
	params := &stripe.CheckoutSessionParams{
		Params:                   stripe.Params{Context: ctx},
		Mode:                     stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes:       stripe.StringSlice([]string{"card"}),
		BillingAddressCollection: stripe.String(string(stripe.CheckoutSessionBillingAddressCollectionRequired)),
		PhoneNumberCollection:    &stripe.CheckoutSessionPhoneNumberCollectionParams{Enabled: stripe.Bool(true)},
		SuccessURL:               stripe.String(req.SuccessURL),
		CancelURL:                stripe.String(req.CancelURL),
		Metadata:                 req.Metadata,
	}

	for _, l := range req.Lines {
		li := &stripe.CheckoutSessionLineItemParams{Quantity: stripe.Int64(l.Quantity)}
		if l.AdHoc != nil {
			li.PriceData = &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(strings.ToLower(l.AdHoc.Currency)),
				UnitAmount:  stripe.Int64(l.AdHoc.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{Name: stripe.String(l.AdHoc.Name)},
			}
		} else {
			li.Price = stripe.String(l.PurchaseToken)
		}
		params.LineItems = append(params.LineItems, li)
	}

	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	if req.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(req.ClientReferenceID)
	}
	if len(req.AllowedCountries) > 0 {
		params.ShippingAddressCollection = &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice(req.AllowedCountries),
		}
	}
	for _, o := range req.ShippingOptions {
		params.ShippingOptions = append(params.ShippingOptions, shippingOptionParams(o))
	}

	cs, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return model.SessionHandle{}, toProviderError(err)
	}
	return model.SessionHandle{ID: cs.ID, URL: cs.URL}, nil
}

func shippingOptionParams(o model.ShippingOption) *stripe.CheckoutSessionShippingOptionParams {
	return &stripe.CheckoutSessionShippingOptionParams{
		ShippingRateData: &stripe.CheckoutSessionShippingOptionShippingRateDataParams{
			DisplayName: stripe.String(o.DisplayName),
			Type:        stripe.String("fixed_amount"),
			FixedAmount: &stripe.CheckoutSessionShippingOptionShippingRateDataFixedAmountParams{
				Amount:   stripe.Int64(o.AmountCents),
				Currency: stripe.String(strings.ToLower(o.Currency)),
			},
			DeliveryEstimate: &stripe.CheckoutSessionShippingOptionShippingRateDataDeliveryEstimateParams{
				Minimum: &stripe.CheckoutSessionShippingOptionShippingRateDataDeliveryEstimateMinimumParams{
					Unit:  stripe.String("business_day"),
					Value: stripe.Int64(o.MinDays),
				},
				Maximum: &stripe.CheckoutSessionShippingOptionShippingRateDataDeliveryEstimateMaximumParams{
					Unit:  stripe.String("business_day"),
					Value: stripe.Int64(o.MaxDays),
				},
			},
		},
	}
}

func (s *StripeService) SessionStatus(ctx context.Context, sessionID string) (model.SessionStatus, error) {
	cs, err := s.api.CheckoutSessions.Get(sessionID, &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return model.SessionStatus{}, toProviderError(err)
	}
	return model.SessionStatus{ID: cs.ID, PaymentStatus: string(cs.PaymentStatus)}, nil
}

// 価格IDが無い明細もそのまま返す（除外は呼び出し側）
func (s *StripeService) ListPurchasedItems(ctx context.Context, sessionID string) ([]model.PurchasedItem, error) {
	params := &stripe.CheckoutSessionListLineItemsParams{
		ListParams: stripe.ListParams{Context: ctx, Limit: stripe.Int64(lineItemsPageSize)},
		Session:    stripe.String(sessionID),
	}

	out := []model.PurchasedItem{}
	it := s.api.CheckoutSessions.ListLineItems(params)
	for it.Next() {
		li := it.LineItem()
		token := ""
		if li.Price != nil {
			token = li.Price.ID
		}
		out = append(out, model.PurchasedItem{PurchaseToken: token, Quantity: li.Quantity})
	}
	if err := it.Err(); err != nil {
		return nil, toProviderError(err)
	}
	return out, nil
}

func (s *StripeService) UnitAmount(ctx context.Context, purchaseToken string) (int64, string, error) {
	p, err := s.api.Prices.Get(purchaseToken, &stripe.PriceParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.HTTPStatusCode == http.StatusNotFound {
			return 0, "", fmt.Errorf("%w: %s", repo.ErrInvalidPrice, purchaseToken)
		}
		return 0, "", toProviderError(err)
	}

	// 金額を指定しない価格（寄付型など）は扱わない
	if p.CustomUnitAmount != nil || p.UnitAmount <= 0 {
		return 0, "", fmt.Errorf("%w: %s", repo.ErrInvalidPrice, purchaseToken)
	}
	return p.UnitAmount, string(p.Currency), nil
}

func (s *StripeService) SessionSummary(ctx context.Context, sessionID string) (model.SessionSummary, error) {
	params := &stripe.CheckoutSessionParams{Params: stripe.Params{Context: ctx}}
	params.AddExpand("line_items")
	params.AddExpand("line_items.data.price.product")

	cs, err := s.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return model.SessionSummary{}, toProviderError(err)
	}

	sum := model.SessionSummary{
		ID:            cs.ID,
		PaymentStatus: string(cs.PaymentStatus),
		AmountTotal:   cs.AmountTotal,
		Currency:      string(cs.Currency),
		LineItems:     []model.SummaryLine{},
	}
	if cs.CustomerDetails != nil {
		sum.CustomerDetails = &model.CustomerDetails{
			Email: cs.CustomerDetails.Email,
			Name:  cs.CustomerDetails.Name,
			Phone: cs.CustomerDetails.Phone,
		}
	}
	if cs.LineItems != nil {
		for _, li := range cs.LineItems.Data {
			line := model.SummaryLine{
				Quantity:       li.Quantity,
				AmountSubtotal: li.AmountSubtotal,
				AmountTotal:    li.AmountTotal,
				Currency:       string(li.Currency),
				Description:    lineDescription(li),
			}
			if li.Price != nil {
				ua := li.Price.UnitAmount
				line.UnitAmount = &ua
			}
			sum.LineItems = append(sum.LineItems, line)
		}
	}
	return sum, nil
}

// 説明が空なら商品名、価格ID、"Item" の順に使う
func lineDescription(li *stripe.LineItem) string {
	if li.Description != "" {
		return li.Description
	}
	if li.Price != nil {
		if li.Price.Product != nil && li.Price.Product.Name != "" {
			return li.Price.Product.Name
		}
		if li.Price.ID != "" {
			return li.Price.ID
		}
	}
	return "Item"
}

// 署名を検証してイベントにする。checkout.session.* 以外はSessionIDが空。
func (s *StripeService) VerifyEvent(payload []byte, signatureHeader string) (model.PaymentEvent, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signatureHeader, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return model.PaymentEvent{}, err
	}

	out := model.PaymentEvent{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data != nil && strings.HasPrefix(out.Type, "checkout.session.") {
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
			return model.PaymentEvent{}, fmt.Errorf("decode checkout session: %w", err)
		}
		out.SessionID = cs.ID
	}
	return out, nil
}

func toProviderError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		msg := se.Msg
		if msg == "" {
			msg = string(se.Type)
		}
		return &repo.ProviderError{
			Message:    msg,
			Code:       string(se.Code),
			StatusCode: se.HTTPStatusCode,
			Err:        err,
		}
	}
	return &repo.ProviderError{Message: "payment provider unreachable", Err: err}
}
