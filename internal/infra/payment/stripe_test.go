package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
)

func newTestService(t *testing.T, h http.HandlerFunc) *StripeService {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return NewStripeService(StripeConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: "whsec_test",
		BackendURL:    srv.URL,
		HTTPClient:    srv.Client(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestSessionStatus(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions/cs_1", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"id":"cs_1","object":"checkout.session","payment_status":"paid"}`)
	})

	st, err := s.SessionStatus(context.Background(), "cs_1")

	require.NoError(t, err)
	assert.Equal(t, "cs_1", st.ID)
	assert.True(t, st.Paid())
}

func TestListPurchasedItems(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions/cs_1/line_items", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		writeJSON(w, http.StatusOK, `{
			"object":"list","has_more":false,"url":"/v1/checkout/sessions/cs_1/line_items",
			"data":[
				{"id":"li_1","object":"item","quantity":1,"price":{"id":"price_a","object":"price"}},
				{"id":"li_2","object":"item","quantity":2,"price":null}
			]}`)
	})

	items, err := s.ListPurchasedItems(context.Background(), "cs_1")

	require.NoError(t, err)
	assert.Equal(t, []model.PurchasedItem{
		{PurchaseToken: "price_a", Quantity: 1},
		{PurchaseToken: "", Quantity: 2},
	}, items)
}

func TestUnitAmount(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/prices/price_a":
			writeJSON(w, http.StatusOK, `{"id":"price_a","object":"price","unit_amount":1500,"currency":"eur","active":true}`)
		case "/v1/prices/price_free":
			writeJSON(w, http.StatusOK, `{"id":"price_free","object":"price","unit_amount":null,"currency":"eur","custom_unit_amount":{"preset":500}}`)
		default:
			writeJSON(w, http.StatusNotFound, `{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such price"}}`)
		}
	})
	ctx := context.Background()

	amount, currency, err := s.UnitAmount(ctx, "price_a")
	require.NoError(t, err)
	assert.Equal(t, int64(1500), amount)
	assert.Equal(t, "eur", currency)

	_, _, err = s.UnitAmount(ctx, "price_missing")
	assert.ErrorIs(t, err, repo.ErrInvalidPrice)

	_, _, err = s.UnitAmount(ctx, "price_free")
	assert.ErrorIs(t, err, repo.ErrInvalidPrice)
}

func TestCreateSession(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.NoError(t, r.ParseForm())

		f := r.PostForm
		assert.Equal(t, "payment", f.Get("mode"))
		assert.Equal(t, "price_a", f.Get("line_items[0][price]"))
		assert.Equal(t, "2", f.Get("line_items[0][quantity]"))
		assert.Equal(t, "Tote", f.Get("line_items[1][price_data][product_data][name]"))
		assert.Equal(t, "eur", f.Get("line_items[1][price_data][currency]"))
		assert.Equal(t, "DE", f.Get("shipping_address_collection[allowed_countries][0]"))
		assert.Equal(t, "500", f.Get("shipping_options[0][shipping_rate_data][fixed_amount][amount]"))
		assert.Equal(t, "business_day", f.Get("shipping_options[0][shipping_rate_data][delivery_estimate][minimum][unit]"))
		assert.Equal(t, "me@example.com", f.Get("customer_email"))
		assert.Equal(t, "DE", f.Get("metadata[shipping_country_hint]"))

		writeJSON(w, http.StatusOK, `{"id":"cs_9","object":"checkout.session","url":"https://checkout.example/cs_9"}`)
	})

	h, err := s.CreateSession(context.Background(), model.SessionRequest{
		Lines: []model.SessionLine{
			{PurchaseToken: "price_a", Quantity: 2},
			{AdHoc: &model.AdHocPrice{Name: "Tote", UnitAmount: 2500, Currency: "EUR"}, Quantity: 1},
		},
		CustomerEmail:    "me@example.com",
		AllowedCountries: []string{"DE", "FR"},
		ShippingOptions:  []model.ShippingOption{{DisplayName: "Standard", AmountCents: 500, Currency: "EUR", MinDays: 2, MaxDays: 7}},
		SuccessURL:       "https://shop.example/success.html?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:        "https://shop.example/cancel.html",
		Metadata:         map[string]string{"shipping_country_hint": "DE"},
	})

	require.NoError(t, err)
	assert.Equal(t, model.SessionHandle{ID: "cs_9", URL: "https://checkout.example/cs_9"}, h)
}

func TestProviderErrorIsMapped(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"error":{"type":"invalid_request_error","code":"parameter_missing","message":"Missing required param: line_items."}}`)
	})

	_, err := s.CreateSession(context.Background(), model.SessionRequest{})

	pe, ok := repo.AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, "Missing required param: line_items.", pe.Message)
	assert.Equal(t, "parameter_missing", pe.Code)
	assert.Equal(t, http.StatusBadRequest, pe.StatusCode)
}

func TestSessionSummary(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "line_items", r.URL.Query().Get("expand[0]"))
		assert.Equal(t, "line_items.data.price.product", r.URL.Query().Get("expand[1]"))
		writeJSON(w, http.StatusOK, `{
			"id":"cs_1","object":"checkout.session","payment_status":"paid","amount_total":2000,"currency":"eur",
			"customer_details":{"email":"me@example.com","name":"Me","phone":"+49"},
			"line_items":{"object":"list","data":[
				{"id":"li_1","object":"item","quantity":1,"amount_subtotal":1500,"amount_total":1500,"currency":"eur","description":"Jacket","price":{"id":"price_a","unit_amount":1500}},
				{"id":"li_2","object":"item","quantity":1,"amount_subtotal":300,"amount_total":300,"currency":"eur","description":"","price":{"id":"price_b","unit_amount":300,"product":{"id":"prod_b","object":"product","name":"Socks"}}},
				{"id":"li_3","object":"item","quantity":1,"amount_subtotal":100,"amount_total":100,"currency":"eur","description":"","price":{"id":"price_c","unit_amount":100,"product":"prod_c"}},
				{"id":"li_4","object":"item","quantity":1,"amount_subtotal":100,"amount_total":100,"currency":"eur","description":""}
			]}}`)
	})

	sum, err := s.SessionSummary(context.Background(), "cs_1")

	require.NoError(t, err)
	assert.Equal(t, "paid", sum.PaymentStatus)
	assert.Equal(t, int64(2000), sum.AmountTotal)
	require.NotNil(t, sum.CustomerDetails)
	assert.Equal(t, "me@example.com", sum.CustomerDetails.Email)
	require.Len(t, sum.LineItems, 4)
	assert.Equal(t, "Jacket", sum.LineItems[0].Description)
	// 説明が空なら商品名、価格ID、"Item"
	assert.Equal(t, "Socks", sum.LineItems[1].Description)
	assert.Equal(t, "price_c", sum.LineItems[2].Description)
	assert.Equal(t, "Item", sum.LineItems[3].Description)
	require.NotNil(t, sum.LineItems[0].UnitAmount)
	assert.Equal(t, int64(1500), *sum.LineItems[0].UnitAmount)
}

func TestVerifyEvent(t *testing.T) {
	s := NewStripeService(StripeConfig{SecretKey: "sk_test_123", WebhookSecret: "whsec_test"})
	payload := []byte(`{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1","object":"checkout.session"}}}`)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: "whsec_test"})

	ev, err := s.VerifyEvent(payload, signed.Header)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentEvent{ID: "evt_1", Type: model.EventCheckoutSessionCompleted, SessionID: "cs_1"}, ev)

	forged := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: "whsec_other"})
	_, err = s.VerifyEvent(payload, forged.Header)
	assert.ErrorIs(t, err, webhook.ErrNoValidSignature)
}
