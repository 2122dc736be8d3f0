package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibast-solutions/ms-go-wxpay/app/entity"
)

var orderColumnNames = []string{
	"id", "out_trade_no", "body", "total_fee", "spbill_create_ip", "trade_type",
	"device_info", "detail", "attach", "fee_type", "time_start", "time_expire", "goods_tag",
	"product_id", "limit_pay", "openid", "scene_info", "auth_code",
	"placement_json", "prepay_id", "mweb_url", "code_url", "transaction_id",
	"notify_json", "query_json", "trade_state", "trade_state_desc",
	"cancel_json", "recall", "state", "version", "created_at", "updated_at",
}

func orderRow(now time.Time, placementJSON interface{}, state string) []driver.Value {
	return []driver.Value{
		int64(7), "202610180000000000000001", "Tea", int64(100), "127.0.0.1", "JSAPI",
		nil, nil, "gift", nil, nil, nil, nil,
		nil, nil, "openid-1", nil, nil,
		placementJSON, "wx201", nil, nil, nil,
		nil, nil, nil, nil,
		nil, nil, state, int64(2), now, now,
	}
}

func TestOrderRepositoryCreate(t *testing.T) {
	testCases := []struct {
		name    string
		mock    func(mock sqlmock.Sqlmock)
		wantErr error
		wantID  uint64
	}{
		{
			name: "inserted",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO wxpay_orders .*").WillReturnResult(sqlmock.NewResult(3, 1))
			},
			wantID: 3,
		},
		{
			name: "duplicate out_trade_no",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO wxpay_orders .*").WillReturnError(&mysql.MySQLError{Number: 1062})
			},
			wantErr: ErrOrderAlreadyExists,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			tc.mock(mock)

			order := &entity.Order{OutTradeNo: "202610180000000000000001", Body: "Tea", TotalFee: 100, TradeType: entity.TradeTypeJSAPI, State: entity.OrderStateCreated}
			err = NewOrderRepository(db).Create(context.Background(), order)
			assert.Equal(t, tc.wantErr, err)
			assert.Equal(t, tc.wantID, order.ID)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestOrderRepositoryUpdateIfVersion(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewOrderRepository(db)
	order := &entity.Order{
		OutTradeNo: "202610180000000000000001",
		TotalFee:   100,
		State:      entity.TradeStateNotPay,
		Version:    4,
		Placement:  &entity.ResultSnapshot{ResultCode: entity.ResultSuccess, State: entity.TradeStateNotPay, Verified: true},
	}

	mock.ExpectExec("UPDATE wxpay_orders SET .* WHERE out_trade_no = \\? AND version = \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateIfVersion(context.Background(), order))
	assert.Equal(t, int64(5), order.Version)

	mock.ExpectExec("UPDATE wxpay_orders SET .*").WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.UpdateIfVersion(context.Background(), order)
	assert.True(t, errors.Is(err, ErrConcurrentUpdate))
	assert.Equal(t, int64(5), order.Version)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepositoryFindByOutTradeNo(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	placement := `{"result_code":"SUCCESS","state":"NOTPAY","verified":true,"payload":{"prepay_id":"wx201"},"received_at":"2026-10-18T09:00:00Z"}`
	mock.ExpectQuery("SELECT .* FROM wxpay_orders WHERE out_trade_no = \\?").
		WithArgs("202610180000000000000001").
		WillReturnRows(sqlmock.NewRows(orderColumnNames).AddRow(orderRow(now, placement, "NOTPAY")...))

	order, err := NewOrderRepository(db).FindByOutTradeNo(context.Background(), "202610180000000000000001")
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, uint64(7), order.ID)
	assert.Equal(t, int64(100), order.TotalFee)
	assert.Equal(t, "gift", *order.Attach)
	assert.Nil(t, order.Detail)
	assert.Equal(t, "wx201", *order.PrepayID)
	require.NotNil(t, order.Placement)
	assert.True(t, order.Placement.Succeeded())
	assert.Equal(t, "wx201", order.Placement.Payload["prepay_id"])
	assert.Nil(t, order.Notify)
	assert.Equal(t, int64(2), order.Version)

	mock.ExpectQuery("SELECT .* FROM wxpay_orders").WillReturnRows(sqlmock.NewRows(orderColumnNames))
	missing, err := NewOrderRepository(db).FindByOutTradeNo(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, missing)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepositoryListForReconcile(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT .* FROM wxpay_orders WHERE state IN \\(\\?, \\?\\)").
		WithArgs("NOTPAY", "PAYERROR", now, int32(50)).
		WillReturnRows(sqlmock.NewRows(orderColumnNames).
			AddRow(orderRow(now, nil, "NOTPAY")...))

	orders, err := NewOrderRepository(db).ListForReconcile(context.Background(), []string{"NOTPAY", "PAYERROR"}, now, 50)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Nil(t, orders[0].Placement)
	assert.NoError(t, mock.ExpectationsWereMet())
}
