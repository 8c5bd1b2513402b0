package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 在庫台帳をinventory_documentsの1行（JSON）として保存する
type LedgerGormRepository struct {
	db  *gorm.DB
	key string
}

func NewLedgerGormRepository(db *gorm.DB) *LedgerGormRepository {
	return &LedgerGormRepository{db: db, key: model.LedgerKey}
}

func (r *LedgerGormRepository) Load(ctx context.Context) (model.InventoryLedger, error) {
	var doc model.InventoryDocument

	err := r.db.WithContext(ctx).
		Where("key = ?", r.key).
		First(&doc).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.InventoryLedger{}, nil
	}
	if err != nil {
		return nil, err
	}

	l, err := model.DecodeLedger([]byte(doc.Value))
	if err != nil {
		return model.InventoryLedger{}, fmt.Errorf("%w: %v", repo.ErrCorruptLedger, err)
	}
	return l, nil
}

// 行ロック（FOR UPDATE）を取ってから読み込み→マージ→書き込み
func (r *LedgerGormRepository) MarkSold(ctx context.Context, tokens []string) (model.InventoryLedger, error) {
	var merged model.InventoryLedger

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		// 無ければ空のドキュメントを作る（同時作成は片方が何もしない）
		if err := tx.
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&model.InventoryDocument{Key: r.key, Value: "{}", UpdatedAt: now}).Error; err != nil {
			return err
		}

		var doc model.InventoryDocument
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("key = ?", r.key).
			First(&doc).Error; err != nil {
			return err
		}

		l, err := model.DecodeLedger([]byte(doc.Value))
		if err != nil {
			//壊れたドキュメントは空として扱う
			l = model.InventoryLedger{}
		}
		l.MarkSold(tokens)

		b, err := l.Encode()
		if err != nil {
			return err
		}

		res := tx.Model(&model.InventoryDocument{}).
			Where("key = ?", r.key).
			Updates(map[string]interface{}{"value": string(b), "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repo.ErrNotFound
		}

		merged = l
		return nil
	})

	if err != nil {
		return nil, err
	}
	return merged, nil
}
