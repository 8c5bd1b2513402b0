package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// 静的カタログに在庫台帳を重ねる読み取り専用の経路
type AvailabilityUsecase struct {
	catalog repo.CatalogRepository
	ledger  repo.InventoryLedgerRepository
	log     *slog.Logger
}

// DI
func NewAvailabilityUsecase(catalog repo.CatalogRepository, ledger repo.InventoryLedgerRepository, log *slog.Logger) *AvailabilityUsecase {
	if log == nil {
		log = slog.Default()
	}
	return &AvailabilityUsecase{catalog: catalog, ledger: ledger, log: log}
}

// 読めなければ空（売り切れ無し）として返す
func (u *AvailabilityUsecase) Sold(ctx context.Context) model.InventoryLedger {
	l, err := u.ledger.Load(ctx)
	if err != nil {
		u.log.Warn("inventory ledger unavailable", "error", err)
		return model.InventoryLedger{}
	}
	if l == nil {
		return model.InventoryLedger{}
	}
	return l
}

func (u *AvailabilityUsecase) ListProducts(ctx context.Context) ([]model.PurchasableItem, error) {
	items, err := u.catalog.List(ctx)
	if err != nil {
		return nil, NewHTTPError(http.StatusInternalServerError, "catalog error")
	}

	sold := u.Sold(ctx)
	for i := range items {
		items[i] = applySold(items[i], sold)
	}
	return items, nil
}

func (u *AvailabilityUsecase) FindProduct(ctx context.Context, id string) (model.PurchasableItem, error) {
	item, err := u.catalog.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.PurchasableItem{}, NewHTTPError(http.StatusNotFound, "product not found")
		}
		return model.PurchasableItem{}, NewHTTPError(http.StatusInternalServerError, "catalog error")
	}
	return applySold(item, u.Sold(ctx)), nil
}

// チェックアウト時の在庫確認用。カタログに無ければ found=false
func (u *AvailabilityUsecase) CurrentStock(ctx context.Context, itemID string) (model.Stock, bool, error) {
	item, err := u.catalog.FindByID(ctx, itemID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Stock{}, false, nil
	}
	if err != nil {
		return model.Stock{}, false, err
	}
	return applySold(item, u.Sold(ctx)).Stock, true, nil
}

// 価格IDから商品を引く（台帳反映済み）。カタログに無ければ found=false
func (u *AvailabilityUsecase) ItemByToken(ctx context.Context, purchaseToken string) (model.PurchasableItem, bool, error) {
	items, err := u.catalog.List(ctx)
	if err != nil {
		return model.PurchasableItem{}, false, err
	}
	for _, it := range items {
		if it.PurchaseToken != "" && it.PurchaseToken == purchaseToken {
			return applySold(it, u.Sold(ctx)), true, nil
		}
	}
	return model.PurchasableItem{}, false, nil
}

// 売り切れトークンの商品は在庫0で上書き
func applySold(item model.PurchasableItem, sold model.InventoryLedger) model.PurchasableItem {
	if sold.IsSold(item.PurchaseToken) {
		item.Stock = model.KnownStock(0)
	}
	return item
}
