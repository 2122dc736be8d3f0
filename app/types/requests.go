package types

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
)

var tradeTypes = map[string]struct{}{
	"JSAPI":    {},
	"MWEB":     {},
	"NATIVE":   {},
	"APP":      {},
	"MICROPAY": {},
}

func NewCreateOrderRequestFromContext(ctx echo.Context) (*CreateOrderRequest, error) {
	var body CreateOrderRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.Body = strings.TrimSpace(body.Body)
	body.SpbillCreateIp = strings.TrimSpace(body.SpbillCreateIp)
	body.TradeType = strings.ToUpper(strings.TrimSpace(body.TradeType))
	body.Openid = strings.TrimSpace(body.Openid)
	body.AuthCode = strings.TrimSpace(body.AuthCode)
	body.ProductId = strings.TrimSpace(body.ProductId)

	return &body, nil
}

func (r *CreateOrderRequest) Validate() error {
	if r.GetBody() == "" {
		return errors.New("body is required")
	}
	if r.GetTotalFee() <= 0 {
		return errors.New("total_fee must be > 0")
	}
	if r.GetSpbillCreateIp() == "" {
		return errors.New("spbill_create_ip is required")
	}
	if _, ok := tradeTypes[r.GetTradeType()]; !ok {
		return errors.New("trade_type must be JSAPI, MWEB, NATIVE, APP or MICROPAY")
	}
	switch r.GetTradeType() {
	case "JSAPI":
		if r.GetOpenid() == "" {
			return errors.New("openid is required for JSAPI")
		}
	case "NATIVE":
		if r.GetProductId() == "" {
			return errors.New("product_id is required for NATIVE")
		}
	case "MICROPAY":
		if r.GetAuthCode() == "" {
			return errors.New("auth_code is required for MICROPAY")
		}
	}
	return nil
}

func NewUpdateOrderRequestFromContext(ctx echo.Context) (*UpdateOrderRequest, error) {
	var body UpdateOrderRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.OutTradeNo = strings.TrimSpace(ctx.Param("out_trade_no"))
	body.Body = strings.TrimSpace(body.Body)
	body.TradeType = strings.ToUpper(strings.TrimSpace(body.TradeType))

	return &body, nil
}

func (r *UpdateOrderRequest) Validate() error {
	if r.GetOutTradeNo() == "" {
		return errors.New("out_trade_no is required")
	}
	if r.GetTotalFee() < 0 {
		return errors.New("total_fee must be >= 0")
	}
	if r.GetTradeType() != "" {
		if _, ok := tradeTypes[r.GetTradeType()]; !ok {
			return errors.New("trade_type is invalid")
		}
	}
	return nil
}

func NewOrderReferenceRequestFromContext(ctx echo.Context) (*OrderReferenceRequest, error) {
	return &OrderReferenceRequest{OutTradeNo: strings.TrimSpace(ctx.Param("out_trade_no"))}, nil
}

func (r *OrderReferenceRequest) Validate() error {
	if r.GetOutTradeNo() == "" {
		return errors.New("out_trade_no is required")
	}
	return nil
}

func NewCreateRefundRequestFromContext(ctx echo.Context) (*CreateRefundRequest, error) {
	var body CreateRefundRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	if outTradeNo := strings.TrimSpace(ctx.Param("out_trade_no")); outTradeNo != "" {
		body.OutTradeNo = outTradeNo
	}
	body.OutTradeNo = strings.TrimSpace(body.OutTradeNo)
	body.RefundFeeType = strings.ToUpper(strings.TrimSpace(body.RefundFeeType))
	body.RefundAccount = strings.TrimSpace(body.RefundAccount)

	return &body, nil
}

func (r *CreateRefundRequest) Validate() error {
	if r.GetOutTradeNo() == "" {
		return errors.New("out_trade_no is required")
	}
	if r.GetRefundFee() <= 0 {
		return errors.New("refund_fee must be > 0")
	}
	return nil
}

func NewRefundReferenceRequestFromContext(ctx echo.Context) (*RefundReferenceRequest, error) {
	return &RefundReferenceRequest{OutRefundNo: strings.TrimSpace(ctx.Param("out_refund_no"))}, nil
}

func (r *RefundReferenceRequest) Validate() error {
	if r.GetOutRefundNo() == "" {
		return errors.New("out_refund_no is required")
	}
	return nil
}

func NewCreatePayoutRequestFromContext(ctx echo.Context) (*CreatePayoutRequest, error) {
	var body CreatePayoutRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.Openid = strings.TrimSpace(body.Openid)
	body.CheckName = strings.ToUpper(strings.TrimSpace(body.CheckName))
	body.ReUserName = strings.TrimSpace(body.ReUserName)
	body.Desc = strings.TrimSpace(body.Desc)
	body.SpbillCreateIp = strings.TrimSpace(body.SpbillCreateIp)

	return &body, nil
}

func (r *CreatePayoutRequest) Validate() error {
	if r.GetOpenid() == "" {
		return errors.New("openid is required")
	}
	if r.GetAmount() <= 0 {
		return errors.New("amount must be > 0")
	}
	if r.GetDesc() == "" {
		return errors.New("desc is required")
	}
	if r.GetSpbillCreateIp() == "" {
		return errors.New("spbill_create_ip is required")
	}
	switch r.GetCheckName() {
	case "", "NO_CHECK", "OPTION_CHECK":
	case "FORCE_CHECK":
		if r.GetReUserName() == "" {
			return errors.New("re_user_name is required for FORCE_CHECK")
		}
	default:
		return errors.New("check_name must be NO_CHECK, FORCE_CHECK or OPTION_CHECK")
	}
	return nil
}

func NewPayoutReferenceRequestFromContext(ctx echo.Context) (*PayoutReferenceRequest, error) {
	return &PayoutReferenceRequest{PartnerTradeNo: strings.TrimSpace(ctx.Param("partner_trade_no"))}, nil
}

func (r *PayoutReferenceRequest) Validate() error {
	if r.GetPartnerTradeNo() == "" {
		return errors.New("partner_trade_no is required")
	}
	return nil
}

func NewCreateRedPacketRequestFromContext(ctx echo.Context) (*CreateRedPacketRequest, error) {
	var body CreateRedPacketRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.SendName = strings.TrimSpace(body.SendName)
	body.ReOpenid = strings.TrimSpace(body.ReOpenid)
	body.Wishing = strings.TrimSpace(body.Wishing)
	body.ActName = strings.TrimSpace(body.ActName)
	body.Remark = strings.TrimSpace(body.Remark)
	body.AmtType = strings.ToUpper(strings.TrimSpace(body.AmtType))
	body.ClientIp = strings.TrimSpace(body.ClientIp)
	if body.TotalNum == 0 {
		body.TotalNum = 1
	}

	return &body, nil
}

func (r *CreateRedPacketRequest) Validate() error {
	if r.GetSendName() == "" || r.GetReOpenid() == "" {
		return errors.New("send_name and re_openid are required")
	}
	if r.GetWishing() == "" || r.GetActName() == "" || r.GetRemark() == "" {
		return errors.New("wishing, act_name and remark are required")
	}
	if r.GetTotalAmount() <= 0 {
		return errors.New("total_amount must be > 0")
	}
	if r.GetTotalNum() <= 0 {
		return errors.New("total_num must be > 0")
	}
	if r.GetTotalNum() == 1 && r.GetClientIp() == "" {
		return errors.New("client_ip is required for a single red packet")
	}
	return nil
}

func NewRedPacketReferenceRequestFromContext(ctx echo.Context) (*RedPacketReferenceRequest, error) {
	return &RedPacketReferenceRequest{MchBillno: strings.TrimSpace(ctx.Param("mch_billno"))}, nil
}

func (r *RedPacketReferenceRequest) Validate() error {
	if r.GetMchBillno() == "" {
		return errors.New("mch_billno is required")
	}
	return nil
}
