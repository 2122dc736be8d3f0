package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-wxpay/app/entity"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderAlreadyExists = errors.New("order already exists")
)

const orderColumns = `
	id, out_trade_no, body, total_fee, spbill_create_ip, trade_type,
	device_info, detail, attach, fee_type, time_start, time_expire, goods_tag,
	product_id, limit_pay, openid, scene_info, auth_code,
	placement_json, prepay_id, mweb_url, code_url, transaction_id,
	notify_json, query_json, trade_state, trade_state_desc,
	cancel_json, recall, state, version, created_at, updated_at`

type OrderRepository struct {
	db DBTX
}

func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, order *entity.Order) error {
	snapshots, err := serializeSnapshots(order.Placement, order.Notify, order.Query, order.Cancel)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO wxpay_orders (
			out_trade_no, body, total_fee, spbill_create_ip, trade_type,
			device_info, detail, attach, fee_type, time_start, time_expire, goods_tag,
			product_id, limit_pay, openid, scene_info, auth_code,
			placement_json, prepay_id, mweb_url, code_url, transaction_id,
			notify_json, query_json, trade_state, trade_state_desc,
			cancel_json, recall, state, version, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		order.OutTradeNo,
		order.Body,
		order.TotalFee,
		order.SpbillCreateIP,
		order.TradeType,
		nullableStringValue(order.DeviceInfo),
		nullableStringValue(order.Detail),
		nullableStringValue(order.Attach),
		nullableStringValue(order.FeeType),
		nullableStringValue(order.TimeStart),
		nullableStringValue(order.TimeExpire),
		nullableStringValue(order.GoodsTag),
		nullableStringValue(order.ProductID),
		nullableStringValue(order.LimitPay),
		nullableStringValue(order.OpenID),
		nullableStringValue(order.SceneInfo),
		nullableStringValue(order.AuthCode),
		snapshots[0],
		nullableStringValue(order.PrepayID),
		nullableStringValue(order.MwebURL),
		nullableStringValue(order.CodeURL),
		nullableStringValue(order.TransactionID),
		snapshots[1],
		snapshots[2],
		nullableStringValue(order.TradeState),
		nullableStringValue(order.TradeStateDesc),
		snapshots[3],
		nullableStringValue(order.Recall),
		order.State,
		order.Version,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrOrderAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	order.ID = uint64(id)
	return nil
}

// UpdateIfVersion writes order only when the stored version still equals
// order.Version, then advances order.Version.
func (r *OrderRepository) UpdateIfVersion(ctx context.Context, order *entity.Order) error {
	snapshots, err := serializeSnapshots(order.Placement, order.Notify, order.Query, order.Cancel)
	if err != nil {
		return err
	}

	query := `
		UPDATE wxpay_orders SET
			body = ?,
			total_fee = ?,
			spbill_create_ip = ?,
			trade_type = ?,
			device_info = ?,
			detail = ?,
			attach = ?,
			fee_type = ?,
			time_start = ?,
			time_expire = ?,
			goods_tag = ?,
			product_id = ?,
			limit_pay = ?,
			openid = ?,
			scene_info = ?,
			auth_code = ?,
			placement_json = ?,
			prepay_id = ?,
			mweb_url = ?,
			code_url = ?,
			transaction_id = ?,
			notify_json = ?,
			query_json = ?,
			trade_state = ?,
			trade_state_desc = ?,
			cancel_json = ?,
			recall = ?,
			state = ?,
			version = version + 1,
			updated_at = ?
		WHERE out_trade_no = ? AND version = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		order.Body,
		order.TotalFee,
		order.SpbillCreateIP,
		order.TradeType,
		nullableStringValue(order.DeviceInfo),
		nullableStringValue(order.Detail),
		nullableStringValue(order.Attach),
		nullableStringValue(order.FeeType),
		nullableStringValue(order.TimeStart),
		nullableStringValue(order.TimeExpire),
		nullableStringValue(order.GoodsTag),
		nullableStringValue(order.ProductID),
		nullableStringValue(order.LimitPay),
		nullableStringValue(order.OpenID),
		nullableStringValue(order.SceneInfo),
		nullableStringValue(order.AuthCode),
		snapshots[0],
		nullableStringValue(order.PrepayID),
		nullableStringValue(order.MwebURL),
		nullableStringValue(order.CodeURL),
		nullableStringValue(order.TransactionID),
		snapshots[1],
		snapshots[2],
		nullableStringValue(order.TradeState),
		nullableStringValue(order.TradeStateDesc),
		snapshots[3],
		nullableStringValue(order.Recall),
		order.State,
		order.UpdatedAt,
		order.OutTradeNo,
		order.Version,
	)
	if err != nil {
		return err
	}
	if err := checkVersionedUpdate(result); err != nil {
		return err
	}

	order.Version++
	return nil
}

func (r *OrderRepository) FindByOutTradeNo(ctx context.Context, outTradeNo string) (*entity.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM wxpay_orders
		WHERE out_trade_no = ?
		LIMIT 1
	`

	order := &entity.Order{}
	if err := scanOrder(r.db.QueryRowContext(ctx, query, outTradeNo), order); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return order, nil
}

// ListForReconcile returns orders in one of states that were last touched at
// or before before, oldest first.
func (r *OrderRepository) ListForReconcile(ctx context.Context, states []string, before time.Time, limit int32) ([]*entity.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM wxpay_orders
		WHERE state IN (` + inPlaceholders(len(states)) + `)
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

	orders := make([]*entity.Order, 0)
	for rows.Next() {
		item := &entity.Order{}
		if err := scanOrder(rows, item); err != nil {
			return nil, err
		}
		orders = append(orders, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

func scanOrder(scan rowScanner, order *entity.Order) error {
	var deviceInfo, detail, attach, feeType, timeStart, timeExpire sql.NullString
	var goodsTag, productID, limitPay, openID, sceneInfo, authCode sql.NullString
	var placementJSON, notifyJSON, queryJSON, cancelJSON sql.NullString
	var prepayID, mwebURL, codeURL, transactionID sql.NullString
	var tradeState, tradeStateDesc, recall sql.NullString

	err := scan.Scan(
		&order.ID,
		&order.OutTradeNo,
		&order.Body,
		&order.TotalFee,
		&order.SpbillCreateIP,
		&order.TradeType,
		&deviceInfo,
		&detail,
		&attach,
		&feeType,
		&timeStart,
		&timeExpire,
		&goodsTag,
		&productID,
		&limitPay,
		&openID,
		&sceneInfo,
		&authCode,
		&placementJSON,
		&prepayID,
		&mwebURL,
		&codeURL,
		&transactionID,
		&notifyJSON,
		&queryJSON,
		&tradeState,
		&tradeStateDesc,
		&cancelJSON,
		&recall,
		&order.State,
		&order.Version,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return err
	}

	order.DeviceInfo = stringPtrFromNull(deviceInfo)
	order.Detail = stringPtrFromNull(detail)
	order.Attach = stringPtrFromNull(attach)
	order.FeeType = stringPtrFromNull(feeType)
	order.TimeStart = stringPtrFromNull(timeStart)
	order.TimeExpire = stringPtrFromNull(timeExpire)
	order.GoodsTag = stringPtrFromNull(goodsTag)
	order.ProductID = stringPtrFromNull(productID)
	order.LimitPay = stringPtrFromNull(limitPay)
	order.OpenID = stringPtrFromNull(openID)
	order.SceneInfo = stringPtrFromNull(sceneInfo)
	order.AuthCode = stringPtrFromNull(authCode)
	order.PrepayID = stringPtrFromNull(prepayID)
	order.MwebURL = stringPtrFromNull(mwebURL)
	order.CodeURL = stringPtrFromNull(codeURL)
	order.TransactionID = stringPtrFromNull(transactionID)
	order.TradeState = stringPtrFromNull(tradeState)
	order.TradeStateDesc = stringPtrFromNull(tradeStateDesc)
	order.Recall = stringPtrFromNull(recall)

	if order.Placement, err = parseSnapshot(placementJSON); err != nil {
		return err
	}
	if order.Notify, err = parseSnapshot(notifyJSON); err != nil {
		return err
	}
	if order.Query, err = parseSnapshot(queryJSON); err != nil {
		return err
	}
	if order.Cancel, err = parseSnapshot(cancelJSON); err != nil {
		return err
	}

	return nil
}
