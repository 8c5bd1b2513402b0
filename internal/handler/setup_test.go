package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront/internal/checkout"
	"storefront/internal/config"
	"storefront/internal/domain/model"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/logging"
	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =====================
// Mocks
// =====================

type PaymentServiceMock struct{ mock.Mock }

func (m *PaymentServiceMock) CreateSession(ctx context.Context, req model.SessionRequest) (model.SessionHandle, error) {
	args := m.Called(ctx, req)
	h, _ := args.Get(0).(model.SessionHandle)
	return h, args.Error(1)
}

func (m *PaymentServiceMock) SessionStatus(ctx context.Context, sessionID string) (model.SessionStatus, error) {
	args := m.Called(ctx, sessionID)
	st, _ := args.Get(0).(model.SessionStatus)
	return st, args.Error(1)
}

func (m *PaymentServiceMock) ListPurchasedItems(ctx context.Context, sessionID string) ([]model.PurchasedItem, error) {
	args := m.Called(ctx, sessionID)
	items, _ := args.Get(0).([]model.PurchasedItem)
	return items, args.Error(1)
}

func (m *PaymentServiceMock) UnitAmount(ctx context.Context, purchaseToken string) (int64, string, error) {
	args := m.Called(ctx, purchaseToken)
	return args.Get(0).(int64), args.String(1), args.Error(2)
}

func (m *PaymentServiceMock) SessionSummary(ctx context.Context, sessionID string) (model.SessionSummary, error) {
	args := m.Called(ctx, sessionID)
	s, _ := args.Get(0).(model.SessionSummary)
	return s, args.Error(1)
}

type EventVerifierMock struct{ mock.Mock }

func (m *EventVerifierMock) VerifyEvent(payload []byte, signatureHeader string) (model.PaymentEvent, error) {
	args := m.Called(payload, signatureHeader)
	ev, _ := args.Get(0).(model.PaymentEvent)
	return ev, args.Error(1)
}

const testBagSecret = "test-bag-secret"

type testApp struct {
	e        *echo.Echo
	payments *PaymentServiceMock
	verifier *EventVerifierMock
	ledger   *infraRepo.LedgerKVRepository
	bagKV    *infraRepo.MemoryKVStore
}

func testCatalog() []model.PurchasableItem {
	return []model.PurchasableItem{
		{ID: "tee", Title: "Tee", Price: decimal.RequireFromString("25.50"), Currency: "EUR", Stock: model.KnownStock(3), PurchaseToken: "price_tee", DefaultSize: "M"},
		{ID: "cap", Title: "Cap", Price: decimal.RequireFromString("12"), Currency: "EUR", PurchaseToken: "price_cap"},
		{ID: "gone", Title: "Gone", Price: decimal.RequireFromString("40"), Currency: "EUR", Stock: model.KnownStock(0), PurchaseToken: "price_gone"},
		{ID: "coat", Title: "Coat", Price: decimal.RequireFromString("80"), Currency: "EUR", Stock: model.KnownStock(1), PurchaseToken: "price_coat", SellOnVintedOnly: true},
		{ID: "sock", Title: "Sock", Price: decimal.RequireFromString("8"), Currency: "EUR", Stock: model.KnownStock(20), PurchaseToken: "price_sock"},
		{ID: "draft", Title: "Draft", Price: decimal.RequireFromString("5"), Currency: "EUR", Stock: model.KnownStock(5)},
	}
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	log := logging.Discard()
	payments := new(PaymentServiceMock)
	verifier := new(EventVerifierMock)

	ledger := infraRepo.NewLedgerKVRepository(infraRepo.NewMemoryKVStore())
	catalog := infraRepo.NewCatalogRepository(testCatalog())
	bagKV := infraRepo.NewMemoryKVStore()

	availability := usecase.NewAvailabilityUsecase(catalog, ledger, log)
	confirm := usecase.NewConfirmSessionUsecase(payments, ledger, nil, nil, log)
	checkoutUC := usecase.NewCheckoutSessionUsecase(payments, availability, "http://shop.test", nil, log)
	initiator := checkout.NewInitiator(checkoutUC, availability, log)
	issuer := middleware.NewBagTokenIssuer(testBagSecret, time.Hour)

	cfg := config.Config{BagTokenSecret: testBagSecret}

	e := echo.New()
	NewBagHandler(bagKV, availability, initiator, issuer, log).RegisterRoutes(e, cfg)
	NewProductHandler(availability).RegisterRoutes(e)
	NewInventoryHandler(availability, confirm).RegisterRoutes(e)
	NewCheckoutHandler(checkoutUC).RegisterRoutes(e)
	NewWebhookHandler(verifier, confirm, log).RegisterRoutes(e)
	NewHealthHandler(nil).RegisterRoutes(e)

	return &testApp{e: e, payments: payments, verifier: verifier, ledger: ledger, bagKV: bagKV}
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) newBag(t *testing.T) NewBagResponse {
	t.Helper()

	rec := a.do(t, http.MethodPost, "/bag", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var out NewBagResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out.Token)
	return out
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
