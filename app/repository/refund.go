package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-wxpay/app/entity"
)

var (
	ErrRefundNotFound      = errors.New("refund not found")
	ErrRefundAlreadyExists = errors.New("refund already exists")
)

const refundColumns = `
	id, order_id, out_trade_no, out_refund_no, refund_fee,
	refund_fee_type, refund_desc, refund_account,
	apply_json, refund_id, notify_json, query_json,
	status, version, created_at, updated_at`

type RefundRepository struct {
	db DBTX
}

func NewRefundRepository(db DBTX) *RefundRepository {
	return &RefundRepository{db: db}
}

func (r *RefundRepository) Create(ctx context.Context, refund *entity.Refund) error {
	snapshots, err := serializeSnapshots(refund.ApplyResult, refund.NotifyResult, refund.QueryResult)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO wxpay_refunds (
			order_id, out_trade_no, out_refund_no, refund_fee,
			refund_fee_type, refund_desc, refund_account,
			apply_json, refund_id, notify_json, query_json,
			status, version, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		refund.OrderID,
		refund.OutTradeNo,
		refund.OutRefundNo,
		refund.RefundFee,
		nullableStringValue(refund.RefundFeeType),
		nullableStringValue(refund.RefundDesc),
		nullableStringValue(refund.RefundAccount),
		snapshots[0],
		nullableStringValue(refund.RefundID),
		snapshots[1],
		snapshots[2],
		refund.Status,
		refund.Version,
		refund.CreatedAt,
		refund.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrRefundAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	refund.ID = uint64(id)
	return nil
}

func (r *RefundRepository) UpdateIfVersion(ctx context.Context, refund *entity.Refund) error {
	snapshots, err := serializeSnapshots(refund.ApplyResult, refund.NotifyResult, refund.QueryResult)
	if err != nil {
		return err
	}

	query := `
		UPDATE wxpay_refunds SET
			refund_fee_type = ?,
			refund_desc = ?,
			refund_account = ?,
			apply_json = ?,
			refund_id = ?,
			notify_json = ?,
			query_json = ?,
			status = ?,
			version = version + 1,
			updated_at = ?
		WHERE out_refund_no = ? AND version = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		nullableStringValue(refund.RefundFeeType),
		nullableStringValue(refund.RefundDesc),
		nullableStringValue(refund.RefundAccount),
		snapshots[0],
		nullableStringValue(refund.RefundID),
		snapshots[1],
		snapshots[2],
		refund.Status,
		refund.UpdatedAt,
		refund.OutRefundNo,
		refund.Version,
	)
	if err != nil {
		return err
	}
	if err := checkVersionedUpdate(result); err != nil {
		return err
	}

	refund.Version++
	return nil
}

func (r *RefundRepository) FindByOutRefundNo(ctx context.Context, outRefundNo string) (*entity.Refund, error) {
	query := `SELECT ` + refundColumns + `
		FROM wxpay_refunds
		WHERE out_refund_no = ?
		LIMIT 1
	`

	refund := &entity.Refund{}
	if err := scanRefund(r.db.QueryRowContext(ctx, query, outRefundNo), refund); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return refund, nil
}

func (r *RefundRepository) ListByOutTradeNo(ctx context.Context, outTradeNo string) ([]*entity.Refund, error) {
	query := `SELECT ` + refundColumns + `
		FROM wxpay_refunds
		WHERE out_trade_no = ?
		ORDER BY id ASC
	`
	return r.list(ctx, query, outTradeNo)
}

func (r *RefundRepository) ListForReconcile(ctx context.Context, states []string, before time.Time, limit int32) ([]*entity.Refund, error) {
	query := `SELECT ` + refundColumns + `
		FROM wxpay_refunds
		WHERE status IN (` + inPlaceholders(len(states)) + `)
		  AND updated_at <= ?
		ORDER BY updated_at ASC
		LIMIT ?
	`

	args := make([]interface{}, 0, len(states)+2)
	for _, state := range states {
		args = append(args, state)
	}
	args = append(args, before, limit)
	return r.list(ctx, query, args...)
}

func (r *RefundRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Refund, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refunds := make([]*entity.Refund, 0)
	for rows.Next() {
		item := &entity.Refund{}
		if err := scanRefund(rows, item); err != nil {
			return nil, err
		}
		refunds = append(refunds, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return refunds, nil
}

func scanRefund(scan rowScanner, refund *entity.Refund) error {
	var refundFeeType, refundDesc, refundAccount, refundID sql.NullString
	var applyJSON, notifyJSON, queryJSON sql.NullString

	err := scan.Scan(
		&refund.ID,
		&refund.OrderID,
		&refund.OutTradeNo,
		&refund.OutRefundNo,
		&refund.RefundFee,
		&refundFeeType,
		&refundDesc,
		&refundAccount,
		&applyJSON,
		&refundID,
		&notifyJSON,
		&queryJSON,
		&refund.Status,
		&refund.Version,
		&refund.CreatedAt,
		&refund.UpdatedAt,
	)
	if err != nil {
		return err
	}

	refund.RefundFeeType = stringPtrFromNull(refundFeeType)
	refund.RefundDesc = stringPtrFromNull(refundDesc)
	refund.RefundAccount = stringPtrFromNull(refundAccount)
	refund.RefundID = stringPtrFromNull(refundID)

	if refund.ApplyResult, err = parseSnapshot(applyJSON); err != nil {
		return err
	}
	if refund.NotifyResult, err = parseSnapshot(notifyJSON); err != nil {
		return err
	}
	if refund.QueryResult, err = parseSnapshot(queryJSON); err != nil {
		return err
	}

	return nil
}
