package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type ConfirmedSessionRepository interface {
	// 無ければ ErrNotFound
	FindBySessionID(ctx context.Context, sessionID string) (model.ConfirmedSession, error)

	// 既に記録済みなら何もしない
	Save(ctx context.Context, s model.ConfirmedSession) error
}
