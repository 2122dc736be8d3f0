package repository

import (
	"context"

	"github.com/vibast-solutions/ms-go-wxpay/app/entity"
)

type CallbackRepository struct {
	db DBTX
}

func NewCallbackRepository(db DBTX) *CallbackRepository {
	return &CallbackRepository{db: db}
}

func (r *CallbackRepository) Create(ctx context.Context, callback *entity.GatewayCallback) error {
	query := `
		INSERT INTO gateway_callbacks (
			kind, reference, payload, status, error, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		callback.Kind,
		nullableStringValue(callback.Reference),
		callback.Payload,
		callback.Status,
		nullableStringValue(callback.Error),
		callback.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	callback.ID = uint64(id)

	return nil
}
