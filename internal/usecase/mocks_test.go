package usecase

import (
	"context"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/stretchr/testify/mock"
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

type LedgerRepoMock struct{ mock.Mock }

func (m *LedgerRepoMock) Load(ctx context.Context) (model.InventoryLedger, error) {
	args := m.Called(ctx)
	l, _ := args.Get(0).(model.InventoryLedger)
	return l, args.Error(1)
}

func (m *LedgerRepoMock) MarkSold(ctx context.Context, tokens []string) (model.InventoryLedger, error) {
	args := m.Called(ctx, tokens)
	l, _ := args.Get(0).(model.InventoryLedger)
	return l, args.Error(1)
}

type ConfirmedSessionRepoMock struct{ mock.Mock }

func (m *ConfirmedSessionRepoMock) FindBySessionID(ctx context.Context, sessionID string) (model.ConfirmedSession, error) {
	args := m.Called(ctx, sessionID)
	s, _ := args.Get(0).(model.ConfirmedSession)
	return s, args.Error(1)
}

func (m *ConfirmedSessionRepoMock) Save(ctx context.Context, s model.ConfirmedSession) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

type CatalogRepoMock struct{ mock.Mock }

func (m *CatalogRepoMock) List(ctx context.Context) ([]model.PurchasableItem, error) {
	args := m.Called(ctx)
	items, _ := args.Get(0).([]model.PurchasableItem)
	return items, args.Error(1)
}

func (m *CatalogRepoMock) FindByID(ctx context.Context, id string) (model.PurchasableItem, error) {
	args := m.Called(ctx, id)
	it, _ := args.Get(0).(model.PurchasableItem)
	return it, args.Error(1)
}

type TokenStockMock struct{ mock.Mock }

func (m *TokenStockMock) ItemByToken(ctx context.Context, purchaseToken string) (model.PurchasableItem, bool, error) {
	args := m.Called(ctx, purchaseToken)
	it, _ := args.Get(0).(model.PurchasableItem)
	return it, args.Bool(1), args.Error(2)
}

var (
	_ TokenStockSource                = (*TokenStockMock)(nil)
	_ repo.PaymentSessionService      = (*PaymentServiceMock)(nil)
	_ repo.InventoryLedgerRepository  = (*LedgerRepoMock)(nil)
	_ repo.ConfirmedSessionRepository = (*ConfirmedSessionRepoMock)(nil)
	_ repo.CatalogRepository          = (*CatalogRepoMock)(nil)
)
