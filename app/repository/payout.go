package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-wxpay/app/entity"
)

var (
	ErrPayoutNotFound      = errors.New("payout not found")
	ErrPayoutAlreadyExists = errors.New("payout already exists")
)

const payoutColumns = `
	id, partner_trade_no, openid, check_name, re_user_name, amount, description,
	spbill_create_ip, device_info, pay_json, payment_no, query_json,
	status, version, created_at, updated_at`

type PayoutRepository struct {
	db DBTX
}

func NewPayoutRepository(db DBTX) *PayoutRepository {
	return &PayoutRepository{db: db}
}

func (r *PayoutRepository) Create(ctx context.Context, payout *entity.Payout) error {
	snapshots, err := serializeSnapshots(payout.PayResult, payout.QueryResult)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO wxpay_payouts (
			partner_trade_no, openid, check_name, re_user_name, amount, description,
			spbill_create_ip, device_info, pay_json, payment_no, query_json,
			status, version, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		payout.PartnerTradeNo,
		payout.OpenID,
		payout.CheckName,
		nullableStringValue(payout.ReUserName),
		payout.Amount,
		payout.Desc,
		payout.SpbillCreateIP,
		nullableStringValue(payout.DeviceInfo),
		snapshots[0],
		nullableStringValue(payout.PaymentNo),
		snapshots[1],
		payout.Status,
		payout.Version,
		payout.CreatedAt,
		payout.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrPayoutAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	payout.ID = uint64(id)
	return nil
}

func (r *PayoutRepository) UpdateIfVersion(ctx context.Context, payout *entity.Payout) error {
	snapshots, err := serializeSnapshots(payout.PayResult, payout.QueryResult)
	if err != nil {
		return err
	}

	query := `
		UPDATE wxpay_payouts SET
			pay_json = ?,
			payment_no = ?,
			query_json = ?,
			status = ?,
			version = version + 1,
			updated_at = ?
		WHERE partner_trade_no = ? AND version = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		snapshots[0],
		nullableStringValue(payout.PaymentNo),
		snapshots[1],
		payout.Status,
		payout.UpdatedAt,
		payout.PartnerTradeNo,
		payout.Version,
	)
	if err != nil {
		return err
	}
	if err := checkVersionedUpdate(result); err != nil {
		return err
	}

	payout.Version++
	return nil
}

func (r *PayoutRepository) FindByPartnerTradeNo(ctx context.Context, partnerTradeNo string) (*entity.Payout, error) {
	query := `SELECT ` + payoutColumns + `
		FROM wxpay_payouts
		WHERE partner_trade_no = ?
		LIMIT 1
	`

	payout := &entity.Payout{}
	if err := scanPayout(r.db.QueryRowContext(ctx, query, partnerTradeNo), payout); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return payout, nil
}

func (r *PayoutRepository) ListForReconcile(ctx context.Context, states []string, before time.Time, limit int32) ([]*entity.Payout, error) {
	query := `SELECT ` + payoutColumns + `
		FROM wxpay_payouts
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

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payouts := make([]*entity.Payout, 0)
	for rows.Next() {
		item := &entity.Payout{}
		if err := scanPayout(rows, item); err != nil {
			return nil, err
		}
		payouts = append(payouts, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payouts, nil
}

func scanPayout(scan rowScanner, payout *entity.Payout) error {
	var reUserName, deviceInfo, paymentNo sql.NullString
	var payJSON, queryJSON sql.NullString

	err := scan.Scan(
		&payout.ID,
		&payout.PartnerTradeNo,
		&payout.OpenID,
		&payout.CheckName,
		&reUserName,
		&payout.Amount,
		&payout.Desc,
		&payout.SpbillCreateIP,
		&deviceInfo,
		&payJSON,
		&paymentNo,
		&queryJSON,
		&payout.Status,
		&payout.Version,
		&payout.CreatedAt,
		&payout.UpdatedAt,
	)
	if err != nil {
		return err
	}

	payout.ReUserName = stringPtrFromNull(reUserName)
	payout.DeviceInfo = stringPtrFromNull(deviceInfo)
	payout.PaymentNo = stringPtrFromNull(paymentNo)

	if payout.PayResult, err = parseSnapshot(payJSON); err != nil {
		return err
	}
	if payout.QueryResult, err = parseSnapshot(queryJSON); err != nil {
		return err
	}

	return nil
}
