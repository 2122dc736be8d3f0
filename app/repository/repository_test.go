package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibast-solutions/ms-go-wxpay/app/entity"
)

func TestRefundRepositoryRoundTrip(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRefundRepository(db)
	refund := &entity.Refund{OrderID: 7, OutTradeNo: "o1", OutRefundNo: "r1", RefundFee: 50, Status: entity.RefundStateCreated}

	mock.ExpectExec("INSERT INTO wxpay_refunds .*").WillReturnResult(sqlmock.NewResult(11, 1))
	require.NoError(t, repo.Create(context.Background(), refund))
	assert.Equal(t, uint64(11), refund.ID)

	mock.ExpectExec("INSERT INTO wxpay_refunds .*").WillReturnError(&mysql.MySQLError{Number: 1062})
	assert.Equal(t, ErrRefundAlreadyExists, repo.Create(context.Background(), refund))

	mock.ExpectExec("UPDATE wxpay_refunds SET .* WHERE out_refund_no = \\? AND version = \\?").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.True(t, errors.Is(repo.UpdateIfVersion(context.Background(), refund), ErrConcurrentUpdate))

	now := time.Now().UTC()
	columns := []string{"id", "order_id", "out_trade_no", "out_refund_no", "refund_fee",
		"refund_fee_type", "refund_desc", "refund_account", "apply_json", "refund_id", "notify_json", "query_json",
		"status", "version", "created_at", "updated_at"}
	mock.ExpectQuery("SELECT .* FROM wxpay_refunds WHERE out_refund_no = \\?").
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			int64(11), int64(7), "o1", "r1", int64(50),
			nil, "damaged", nil, `{"result_code":"SUCCESS","state":"PROCESSING","verified":true}`, "50000", nil, nil,
			"PROCESSING", int64(1), now, now,
		))

	found, err := repo.FindByOutRefundNo(context.Background(), "r1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "damaged", *found.RefundDesc)
	assert.Equal(t, "50000", *found.RefundID)
	assert.Equal(t, entity.RefundStateProcessing, found.ApplyResult.State)
	assert.NotNil(t, found.ApplyResult.Payload)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPayoutRepositoryFind(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	columns := []string{"id", "partner_trade_no", "openid", "check_name", "re_user_name", "amount", "description",
		"spbill_create_ip", "device_info", "pay_json", "payment_no", "query_json",
		"status", "version", "created_at", "updated_at"}
	mock.ExpectQuery("SELECT .* FROM wxpay_payouts WHERE partner_trade_no = \\?").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			int64(1), "p1", "open", "NO_CHECK", nil, int64(100), "prize",
			"10.0.0.1", nil, nil, nil, `{"result_code":"SUCCESS","state":"PROCESSING","verified":true}`,
			"PROCESSING", int64(3), now, now,
		))

	payout, err := NewPayoutRepository(db).FindByPartnerTradeNo(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), payout.Amount)
	assert.Nil(t, payout.PayResult)
	assert.Equal(t, entity.PayoutStateProcessing, payout.QueryResult.State)

	mock.ExpectQuery("SELECT .* FROM wxpay_payouts").WillReturnError(sql.ErrConnDone)
	_, err = NewPayoutRepository(db).FindByPartnerTradeNo(context.Background(), "p2")
	assert.Equal(t, sql.ErrConnDone, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedPacketRepositoryCreateAndUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRedPacketRepository(db)
	packet := &entity.RedPacket{MchBillno: "b1", TotalAmount: 300, TotalNum: 3, Status: entity.RedPacketStateCreated}

	mock.ExpectExec("INSERT INTO wxpay_red_packets .*").WillReturnResult(sqlmock.NewResult(2, 1))
	require.NoError(t, repo.Create(context.Background(), packet))

	packet.SendResult = &entity.ResultSnapshot{ResultCode: entity.ResultSuccess, State: entity.RedPacketStateSent, Verified: true}
	packet.RecomputeState()
	mock.ExpectExec("UPDATE wxpay_red_packets SET .*").
		WithArgs(sqlmock.AnyArg(), nil, nil, entity.RedPacketStateSent, sqlmock.AnyArg(), "b1", int64(0)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateIfVersion(context.Background(), packet))
	assert.Equal(t, int64(1), packet.Version)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventAndCallbackRepositories(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO wxpay_events .*").WillReturnResult(sqlmock.NewResult(5, 1))
	event := &entity.Event{EntityType: entity.EntityOrder, Reference: "o1", EventType: "amount_mismatch", NewState: "NOTPAY"}
	require.NoError(t, NewEventRepository(db).Create(context.Background(), event))
	assert.Equal(t, uint64(5), event.ID)

	mock.ExpectExec("INSERT INTO gateway_callbacks .*").WillReturnResult(sqlmock.NewResult(6, 1))
	callback := &entity.GatewayCallback{Kind: entity.CallbackKindOrderNotify, Payload: "<xml/>", Status: entity.CallbackStatusRejected}
	require.NoError(t, NewCallbackRepository(db).Create(context.Background(), callback))
	assert.Equal(t, uint64(6), callback.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInPlaceholders(t *testing.T) {
	assert.Equal(t, "NULL", inPlaceholders(0))
	assert.Equal(t, "?", inPlaceholders(1))
	assert.Equal(t, "?, ?, ?", inPlaceholders(3))
}
