package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-wxpay/app/entity"
	"github.com/vibast-solutions/ms-go-wxpay/app/types"
)

func OrderToProto(item *entity.Order) *types.Order {
	if item == nil {
		return nil
	}

	return &types.Order{
		OutTradeNo:     item.OutTradeNo,
		Body:           item.Body,
		TotalFee:       item.TotalFee,
		SpbillCreateIp: item.SpbillCreateIP,
		TradeType:      item.TradeType,
		DeviceInfo:     derefString(item.DeviceInfo),
		Detail:         derefString(item.Detail),
		Attach:         derefString(item.Attach),
		FeeType:        derefString(item.FeeType),
		TimeStart:      derefString(item.TimeStart),
		TimeExpire:     derefString(item.TimeExpire),
		GoodsTag:       derefString(item.GoodsTag),
		ProductId:      derefString(item.ProductID),
		LimitPay:       derefString(item.LimitPay),
		Openid:         derefString(item.OpenID),
		SceneInfo:      derefString(item.SceneInfo),
		PrepayId:       derefString(item.PrepayID),
		MwebUrl:        derefString(item.MwebURL),
		CodeUrl:        derefString(item.CodeURL),
		TransactionId:  derefString(item.TransactionID),
		TradeState:     derefString(item.TradeState),
		TradeStateDesc: derefString(item.TradeStateDesc),
		Recall:         derefString(item.Recall),
		State:          item.State,
		Locked:         item.Locked(),
		Placement:      snapshotToProto(item.Placement),
		Notify:         snapshotToProto(item.Notify),
		Query:          snapshotToProto(item.Query),
		Cancel:         snapshotToProto(item.Cancel),
		CreatedAt:      formatTime(item.CreatedAt),
		UpdatedAt:      formatTime(item.UpdatedAt),
	}
}

func RefundToProto(item *entity.Refund) *types.Refund {
	if item == nil {
		return nil
	}

	return &types.Refund{
		OutRefundNo:   item.OutRefundNo,
		OutTradeNo:    item.OutTradeNo,
		RefundFee:     item.RefundFee,
		RefundFeeType: derefString(item.RefundFeeType),
		RefundDesc:    derefString(item.RefundDesc),
		RefundAccount: derefString(item.RefundAccount),
		RefundId:      derefString(item.RefundID),
		Status:        item.Status,
		Apply:         snapshotToProto(item.ApplyResult),
		Notify:        snapshotToProto(item.NotifyResult),
		Query:         snapshotToProto(item.QueryResult),
		CreatedAt:     formatTime(item.CreatedAt),
		UpdatedAt:     formatTime(item.UpdatedAt),
	}
}

func RefundsToProto(items []*entity.Refund) []*types.Refund {
	result := make([]*types.Refund, 0, len(items))
	for _, item := range items {
		result = append(result, RefundToProto(item))
	}
	return result
}

func PayoutToProto(item *entity.Payout) *types.Payout {
	if item == nil {
		return nil
	}

	return &types.Payout{
		PartnerTradeNo: item.PartnerTradeNo,
		Openid:         item.OpenID,
		CheckName:      item.CheckName,
		ReUserName:     derefString(item.ReUserName),
		Amount:         item.Amount,
		Desc:           item.Desc,
		SpbillCreateIp: item.SpbillCreateIP,
		DeviceInfo:     derefString(item.DeviceInfo),
		PaymentNo:      derefString(item.PaymentNo),
		Status:         item.Status,
		Pay:            snapshotToProto(item.PayResult),
		Query:          snapshotToProto(item.QueryResult),
		CreatedAt:      formatTime(item.CreatedAt),
		UpdatedAt:      formatTime(item.UpdatedAt),
	}
}

func RedPacketToProto(item *entity.RedPacket) *types.RedPacket {
	if item == nil {
		return nil
	}

	return &types.RedPacket{
		MchBillno:    item.MchBillno,
		SendName:     item.SendName,
		ReOpenid:     item.ReOpenID,
		TotalAmount:  item.TotalAmount,
		TotalNum:     item.TotalNum,
		Wishing:      item.Wishing,
		ActName:      item.ActName,
		Remark:       item.Remark,
		AmtType:      derefString(item.AmtType),
		ClientIp:     derefString(item.ClientIP),
		SceneId:      derefString(item.SceneID),
		RiskInfo:     derefString(item.RiskInfo),
		ConsumeMchId: derefString(item.ConsumeMchID),
		SendListid:   derefString(item.SendListID),
		Status:       item.Status,
		Send:         snapshotToProto(item.SendResult),
		Query:        snapshotToProto(item.QueryResult),
		CreatedAt:    formatTime(item.CreatedAt),
		UpdatedAt:    formatTime(item.UpdatedAt),
	}
}

func snapshotToProto(item *entity.ResultSnapshot) *types.ResultSnapshot {
	if item == nil {
		return nil
	}

	payload := make(map[string]string, len(item.Payload))
	for k, v := range item.Payload {
		payload[k] = v
	}
	return &types.ResultSnapshot{
		ResultCode: item.ResultCode,
		State:      item.State,
		Verified:   item.Verified,
		Payload:    payload,
		ReceivedAt: formatTime(item.ReceivedAt),
	}
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
