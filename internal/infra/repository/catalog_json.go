package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// products.json から読み込む静的カタログ
type JSONCatalogRepository struct {
	items []model.PurchasableItem
	byID  map[string]int
}

func NewJSONCatalogRepository(path string) (*JSONCatalogRepository, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	var items []model.PurchasableItem
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return NewCatalogRepository(items), nil
}

// 同じIDは先勝ち
func NewCatalogRepository(items []model.PurchasableItem) *JSONCatalogRepository {
	r := &JSONCatalogRepository{
		items: make([]model.PurchasableItem, 0, len(items)),
		byID:  make(map[string]int, len(items)),
	}
	for _, it := range items {
		if it.ID == "" {
			continue
		}
		if _, dup := r.byID[it.ID]; dup {
			continue
		}
		r.byID[it.ID] = len(r.items)
		r.items = append(r.items, it)
	}
	return r
}

func (r *JSONCatalogRepository) List(ctx context.Context) ([]model.PurchasableItem, error) {
	out := make([]model.PurchasableItem, len(r.items))
	copy(out, r.items)
	return out, nil
}

func (r *JSONCatalogRepository) FindByID(ctx context.Context, id string) (model.PurchasableItem, error) {
	i, ok := r.byID[id]
	if !ok {
		return model.PurchasableItem{}, repo.ErrNotFound
	}
	return r.items[i], nil
}

func (r *JSONCatalogRepository) Len() int {
	return len(r.items)
}
