package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// 静的カタログの読み取りだけを約束。
type CatalogRepository interface {
	List(ctx context.Context) ([]model.PurchasableItem, error)
	FindByID(ctx context.Context, id string) (model.PurchasableItem, error)
}
