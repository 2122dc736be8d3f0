package types

// Message types shared by the HTTP and gRPC surfaces. Request getters are
// nil-safe so handlers can validate a nil request.

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type CreateOrderRequest struct {
	Body           string `json:"body"`
	TotalFee       int64  `json:"total_fee"`
	SpbillCreateIp string `json:"spbill_create_ip"`
	TradeType      string `json:"trade_type"`
	DeviceInfo     string `json:"device_info"`
	Detail         string `json:"detail"`
	Attach         string `json:"attach"`
	FeeType        string `json:"fee_type"`
	TimeStart      string `json:"time_start"`
	TimeExpire     string `json:"time_expire"`
	GoodsTag       string `json:"goods_tag"`
	ProductId      string `json:"product_id"`
	LimitPay       string `json:"limit_pay"`
	Openid         string `json:"openid"`
	SceneInfo      string `json:"scene_info"`
	AuthCode       string `json:"auth_code"`
}

func (x *CreateOrderRequest) GetBody() string {
	if x != nil {
		return x.Body
	}
	return ""
}

func (x *CreateOrderRequest) GetTotalFee() int64 {
	if x != nil {
		return x.TotalFee
	}
	return 0
}

func (x *CreateOrderRequest) GetSpbillCreateIp() string {
	if x != nil {
		return x.SpbillCreateIp
	}
	return ""
}

func (x *CreateOrderRequest) GetTradeType() string {
	if x != nil {
		return x.TradeType
	}
	return ""
}

func (x *CreateOrderRequest) GetDeviceInfo() string {
	if x != nil {
		return x.DeviceInfo
	}
	return ""
}

func (x *CreateOrderRequest) GetDetail() string {
	if x != nil {
		return x.Detail
	}
	return ""
}

func (x *CreateOrderRequest) GetAttach() string {
	if x != nil {
		return x.Attach
	}
	return ""
}

func (x *CreateOrderRequest) GetFeeType() string {
	if x != nil {
		return x.FeeType
	}
	return ""
}

func (x *CreateOrderRequest) GetTimeStart() string {
	if x != nil {
		return x.TimeStart
	}
	return ""
}

func (x *CreateOrderRequest) GetTimeExpire() string {
	if x != nil {
		return x.TimeExpire
	}
	return ""
}

func (x *CreateOrderRequest) GetGoodsTag() string {
	if x != nil {
		return x.GoodsTag
	}
	return ""
}

func (x *CreateOrderRequest) GetProductId() string {
	if x != nil {
		return x.ProductId
	}
	return ""
}

func (x *CreateOrderRequest) GetLimitPay() string {
	if x != nil {
		return x.LimitPay
	}
	return ""
}

func (x *CreateOrderRequest) GetOpenid() string {
	if x != nil {
		return x.Openid
	}
	return ""
}

func (x *CreateOrderRequest) GetSceneInfo() string {
	if x != nil {
		return x.SceneInfo
	}
	return ""
}

func (x *CreateOrderRequest) GetAuthCode() string {
	if x != nil {
		return x.AuthCode
	}
	return ""
}

type UpdateOrderRequest struct {
	OutTradeNo string `json:"out_trade_no"`
	Body       string `json:"body"`
	TotalFee   int64  `json:"total_fee"`
	TradeType  string `json:"trade_type"`
	Attach     string `json:"attach"`
	Openid     string `json:"openid"`
	AuthCode   string `json:"auth_code"`
}

func (x *UpdateOrderRequest) GetOutTradeNo() string {
	if x != nil {
		return x.OutTradeNo
	}
	return ""
}

func (x *UpdateOrderRequest) GetBody() string {
	if x != nil {
		return x.Body
	}
	return ""
}

func (x *UpdateOrderRequest) GetTotalFee() int64 {
	if x != nil {
		return x.TotalFee
	}
	return 0
}

func (x *UpdateOrderRequest) GetTradeType() string {
	if x != nil {
		return x.TradeType
	}
	return ""
}

func (x *UpdateOrderRequest) GetAttach() string {
	if x != nil {
		return x.Attach
	}
	return ""
}

func (x *UpdateOrderRequest) GetOpenid() string {
	if x != nil {
		return x.Openid
	}
	return ""
}

func (x *UpdateOrderRequest) GetAuthCode() string {
	if x != nil {
		return x.AuthCode
	}
	return ""
}

type OrderReferenceRequest struct {
	OutTradeNo string `json:"out_trade_no"`
}

func (x *OrderReferenceRequest) GetOutTradeNo() string {
	if x != nil {
		return x.OutTradeNo
	}
	return ""
}

type CreateRefundRequest struct {
	OutTradeNo    string `json:"out_trade_no"`
	RefundFee     int64  `json:"refund_fee"`
	RefundFeeType string `json:"refund_fee_type"`
	RefundDesc    string `json:"refund_desc"`
	RefundAccount string `json:"refund_account"`
}

func (x *CreateRefundRequest) GetOutTradeNo() string {
	if x != nil {
		return x.OutTradeNo
	}
	return ""
}

func (x *CreateRefundRequest) GetRefundFee() int64 {
	if x != nil {
		return x.RefundFee
	}
	return 0
}

func (x *CreateRefundRequest) GetRefundFeeType() string {
	if x != nil {
		return x.RefundFeeType
	}
	return ""
}

func (x *CreateRefundRequest) GetRefundDesc() string {
	if x != nil {
		return x.RefundDesc
	}
	return ""
}

func (x *CreateRefundRequest) GetRefundAccount() string {
	if x != nil {
		return x.RefundAccount
	}
	return ""
}

type RefundReferenceRequest struct {
	OutRefundNo string `json:"out_refund_no"`
}

func (x *RefundReferenceRequest) GetOutRefundNo() string {
	if x != nil {
		return x.OutRefundNo
	}
	return ""
}

type CreatePayoutRequest struct {
	Openid         string `json:"openid"`
	CheckName      string `json:"check_name"`
	ReUserName     string `json:"re_user_name"`
	Amount         int64  `json:"amount"`
	Desc           string `json:"desc"`
	SpbillCreateIp string `json:"spbill_create_ip"`
	DeviceInfo     string `json:"device_info"`
}

func (x *CreatePayoutRequest) GetOpenid() string {
	if x != nil {
		return x.Openid
	}
	return ""
}

func (x *CreatePayoutRequest) GetCheckName() string {
	if x != nil {
		return x.CheckName
	}
	return ""
}

func (x *CreatePayoutRequest) GetReUserName() string {
	if x != nil {
		return x.ReUserName
	}
	return ""
}

func (x *CreatePayoutRequest) GetAmount() int64 {
	if x != nil {
		return x.Amount
	}
	return 0
}

func (x *CreatePayoutRequest) GetDesc() string {
	if x != nil {
		return x.Desc
	}
	return ""
}

func (x *CreatePayoutRequest) GetSpbillCreateIp() string {
	if x != nil {
		return x.SpbillCreateIp
	}
	return ""
}

func (x *CreatePayoutRequest) GetDeviceInfo() string {
	if x != nil {
		return x.DeviceInfo
	}
	return ""
}

type PayoutReferenceRequest struct {
	PartnerTradeNo string `json:"partner_trade_no"`
}

func (x *PayoutReferenceRequest) GetPartnerTradeNo() string {
	if x != nil {
		return x.PartnerTradeNo
	}
	return ""
}

type CreateRedPacketRequest struct {
	SendName     string `json:"send_name"`
	ReOpenid     string `json:"re_openid"`
	TotalAmount  int64  `json:"total_amount"`
	TotalNum     int32  `json:"total_num"`
	Wishing      string `json:"wishing"`
	ActName      string `json:"act_name"`
	Remark       string `json:"remark"`
	AmtType      string `json:"amt_type"`
	ClientIp     string `json:"client_ip"`
	SceneId      string `json:"scene_id"`
	RiskInfo     string `json:"risk_info"`
	ConsumeMchId string `json:"consume_mch_id"`
}

func (x *CreateRedPacketRequest) GetSendName() string {
	if x != nil {
		return x.SendName
	}
	return ""
}

func (x *CreateRedPacketRequest) GetReOpenid() string {
	if x != nil {
		return x.ReOpenid
	}
	return ""
}

func (x *CreateRedPacketRequest) GetTotalAmount() int64 {
	if x != nil {
		return x.TotalAmount
	}
	return 0
}

func (x *CreateRedPacketRequest) GetTotalNum() int32 {
	if x != nil {
		return x.TotalNum
	}
	return 0
}

func (x *CreateRedPacketRequest) GetWishing() string {
	if x != nil {
		return x.Wishing
	}
	return ""
}

func (x *CreateRedPacketRequest) GetActName() string {
	if x != nil {
		return x.ActName
	}
	return ""
}

func (x *CreateRedPacketRequest) GetRemark() string {
	if x != nil {
		return x.Remark
	}
	return ""
}

func (x *CreateRedPacketRequest) GetAmtType() string {
	if x != nil {
		return x.AmtType
	}
	return ""
}

func (x *CreateRedPacketRequest) GetClientIp() string {
	if x != nil {
		return x.ClientIp
	}
	return ""
}

func (x *CreateRedPacketRequest) GetSceneId() string {
	if x != nil {
		return x.SceneId
	}
	return ""
}

func (x *CreateRedPacketRequest) GetRiskInfo() string {
	if x != nil {
		return x.RiskInfo
	}
	return ""
}

func (x *CreateRedPacketRequest) GetConsumeMchId() string {
	if x != nil {
		return x.ConsumeMchId
	}
	return ""
}

type RedPacketReferenceRequest struct {
	MchBillno string `json:"mch_billno"`
}

func (x *RedPacketReferenceRequest) GetMchBillno() string {
	if x != nil {
		return x.MchBillno
	}
	return ""
}

type ResultSnapshot struct {
	ResultCode string            `json:"result_code"`
	State      string            `json:"state"`
	Verified   bool              `json:"verified"`
	Payload    map[string]string `json:"payload,omitempty"`
	ReceivedAt string            `json:"received_at"`
}

type Order struct {
	OutTradeNo     string          `json:"out_trade_no"`
	Body           string          `json:"body"`
	TotalFee       int64           `json:"total_fee"`
	SpbillCreateIp string          `json:"spbill_create_ip"`
	TradeType      string          `json:"trade_type"`
	DeviceInfo     string          `json:"device_info"`
	Detail         string          `json:"detail"`
	Attach         string          `json:"attach"`
	FeeType        string          `json:"fee_type"`
	TimeStart      string          `json:"time_start"`
	TimeExpire     string          `json:"time_expire"`
	GoodsTag       string          `json:"goods_tag"`
	ProductId      string          `json:"product_id"`
	LimitPay       string          `json:"limit_pay"`
	Openid         string          `json:"openid"`
	SceneInfo      string          `json:"scene_info"`
	PrepayId       string          `json:"prepay_id"`
	MwebUrl        string          `json:"mweb_url"`
	CodeUrl        string          `json:"code_url"`
	TransactionId  string          `json:"transaction_id"`
	TradeState     string          `json:"trade_state"`
	TradeStateDesc string          `json:"trade_state_desc"`
	Recall         string          `json:"recall"`
	State          string          `json:"state"`
	Locked         bool            `json:"locked"`
	Placement      *ResultSnapshot `json:"placement,omitempty"`
	Notify         *ResultSnapshot `json:"notify,omitempty"`
	Query          *ResultSnapshot `json:"query,omitempty"`
	Cancel         *ResultSnapshot `json:"cancel,omitempty"`
	CreatedAt      string          `json:"created_at"`
	UpdatedAt      string          `json:"updated_at"`
}

type Refund struct {
	OutRefundNo   string          `json:"out_refund_no"`
	OutTradeNo    string          `json:"out_trade_no"`
	RefundFee     int64           `json:"refund_fee"`
	RefundFeeType string          `json:"refund_fee_type"`
	RefundDesc    string          `json:"refund_desc"`
	RefundAccount string          `json:"refund_account"`
	RefundId      string          `json:"refund_id"`
	Status        string          `json:"status"`
	Apply         *ResultSnapshot `json:"apply,omitempty"`
	Notify        *ResultSnapshot `json:"notify,omitempty"`
	Query         *ResultSnapshot `json:"query,omitempty"`
	CreatedAt     string          `json:"created_at"`
	UpdatedAt     string          `json:"updated_at"`
}

type Payout struct {
	PartnerTradeNo string          `json:"partner_trade_no"`
	Openid         string          `json:"openid"`
	CheckName      string          `json:"check_name"`
	ReUserName     string          `json:"re_user_name"`
	Amount         int64           `json:"amount"`
	Desc           string          `json:"desc"`
	SpbillCreateIp string          `json:"spbill_create_ip"`
	DeviceInfo     string          `json:"device_info"`
	PaymentNo      string          `json:"payment_no"`
	Status         string          `json:"status"`
	Pay            *ResultSnapshot `json:"pay,omitempty"`
	Query          *ResultSnapshot `json:"query,omitempty"`
	CreatedAt      string          `json:"created_at"`
	UpdatedAt      string          `json:"updated_at"`
}

type RedPacket struct {
	MchBillno    string          `json:"mch_billno"`
	SendName     string          `json:"send_name"`
	ReOpenid     string          `json:"re_openid"`
	TotalAmount  int64           `json:"total_amount"`
	TotalNum     int32           `json:"total_num"`
	Wishing      string          `json:"wishing"`
	ActName      string          `json:"act_name"`
	Remark       string          `json:"remark"`
	AmtType      string          `json:"amt_type"`
	ClientIp     string          `json:"client_ip"`
	SceneId      string          `json:"scene_id"`
	RiskInfo     string          `json:"risk_info"`
	ConsumeMchId string          `json:"consume_mch_id"`
	SendListid   string          `json:"send_listid"`
	Status       string          `json:"status"`
	Send         *ResultSnapshot `json:"send,omitempty"`
	Query        *ResultSnapshot `json:"query,omitempty"`
	CreatedAt    string          `json:"created_at"`
	UpdatedAt    string          `json:"updated_at"`
}

type OrderEnvelopeResponse struct {
	Order *Order `json:"order"`
}

type RefundEnvelopeResponse struct {
	Refund *Refund `json:"refund"`
}

type ListRefundsResponse struct {
	Refunds []*Refund `json:"refunds"`
}

type PayoutEnvelopeResponse struct {
	Payout *Payout `json:"payout"`
}

type RedPacketEnvelopeResponse struct {
	RedPacket *RedPacket `json:"red_packet"`
}

type JSAPIParamsResponse struct {
	Params map[string]string `json:"params"`
}
