package gateway

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-wxpay/app/entity"
)

const (
	DefaultBaseURL = "https://api.mch.weixin.qq.com"

	contentTypeXML = "application/xml; charset=utf-8"
	maxBodyBytes   = 1 << 20
)

const (
	PathUnifiedOrder   = "/pay/unifiedorder"
	PathMicropay       = "/pay/micropay"
	PathOrderQuery     = "/pay/orderquery"
	PathCloseOrder     = "/pay/closeorder"
	PathReverse        = "/secapi/pay/reverse"
	PathRefund         = "/secapi/pay/refund"
	PathRefundQuery    = "/pay/refundquery"
	PathTransfers      = "/mmpaymkttransfers/promotion/transfers"
	PathTransferInfo   = "/mmpaymkttransfers/gettransferinfo"
	PathSendRedPack    = "/mmpaymkttransfers/sendredpack"
	PathSendGroupRedPk = "/mmpaymkttransfers/sendgroupredpack"
	PathRedPackInfo    = "/mmpaymkttransfers/gethbinfo"
)

type Config struct {
	AppID           string
	MchID           string
	PayKey          string
	CertPath        string
	KeyPath         string
	NotifyURL       string
	RefundNotifyURL string
	BaseURL         string
	HTTPTimeout     time.Duration
}

// CallObserver receives one observation per outbound gateway call.
type CallObserver interface {
	ObserveGatewayCall(endpoint, outcome string, latency time.Duration)
}

type Option func(*Client)

// WithHTTPClients replaces the plain and the client-certificate transports.
func WithHTTPClients(plain, secure *http.Client) Option {
	return func(c *Client) {
		if plain != nil {
			c.plain = plain
		}
		if secure != nil {
			c.secure = secure
		}
	}
}

func WithObserver(observer CallObserver) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

func WithNonceFunc(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.nonce = fn
		}
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

type verifyPolicy int

const (
	verifySignature verifyPolicy = iota
	requireResultCode
)

type endpoint struct {
	path   string
	cert   bool
	policy verifyPolicy
}

var (
	epUnifiedOrder = endpoint{path: PathUnifiedOrder}
	epMicropay     = endpoint{path: PathMicropay}
	epOrderQuery   = endpoint{path: PathOrderQuery}
	epCloseOrder   = endpoint{path: PathCloseOrder}
	epReverse      = endpoint{path: PathReverse, cert: true, policy: requireResultCode}
	epRefund       = endpoint{path: PathRefund, cert: true}
	epRefundQuery  = endpoint{path: PathRefundQuery}
	epTransfers    = endpoint{path: PathTransfers, cert: true, policy: requireResultCode}
	epTransferInfo = endpoint{path: PathTransferInfo, cert: true, policy: requireResultCode}
	epSendRedPack  = endpoint{path: PathSendRedPack, cert: true, policy: requireResultCode}
	epSendGroupRP  = endpoint{path: PathSendGroupRedPk, cert: true, policy: requireResultCode}
	epRedPackInfo  = endpoint{path: PathRedPackInfo, cert: true, policy: requireResultCode}
)

// Client issues signed XML requests against the payment gateway. Every
// method returns the accepted response fields; a reply whose result_code is
// FAIL is still returned without error so callers can record it.
type Client struct {
	cfg      Config
	plain    *http.Client
	secure   *http.Client
	observer CallObserver
	nonce    func() string
	logger   logrus.FieldLogger
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	c := &Client{
		cfg:    cfg,
		plain:  &http.Client{Timeout: timeout},
		nonce:  NewNonce,
		logger: logrus.WithField("module", "wxpay-gateway"),
	}

	if strings.TrimSpace(cfg.CertPath) != "" && strings.TrimSpace(cfg.KeyPath) != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertPath, cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("load gateway client certificate: %w", err)
		}
		c.secure = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					Certificates: []tls.Certificate{cert},
					MinVersion:   tls.VersionTLS12,
				},
			},
		}
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) AppID() string {
	return c.cfg.AppID
}

func (c *Client) MchID() string {
	return c.cfg.MchID
}

// PlaceOrder submits a unified order, or a micropay charge for MICROPAY.
func (c *Client) PlaceOrder(ctx context.Context, order *entity.Order) (Fields, error) {
	fields := Fields{}
	fields.SetPtr("device_info", order.DeviceInfo)
	fields.Set("body", order.Body)
	fields.SetPtr("detail", order.Detail)
	fields.SetPtr("attach", order.Attach)
	fields.Set("out_trade_no", order.OutTradeNo)
	fields.Set("total_fee", strconv.FormatInt(order.TotalFee, 10))
	fields.SetPtr("fee_type", order.FeeType)
	fields.Set("spbill_create_ip", order.SpbillCreateIP)
	fields.SetPtr("goods_tag", order.GoodsTag)
	fields.SetPtr("limit_pay", order.LimitPay)
	fields.SetPtr("scene_info", order.SceneInfo)

	if order.TradeType == entity.TradeTypeMicropay {
		fields.SetPtr("auth_code", order.AuthCode)
		c.setIdentity(fields)
		return c.do(ctx, epMicropay, order.OutTradeNo, fields)
	}

	fields.SetPtr("time_start", order.TimeStart)
	fields.SetPtr("time_expire", order.TimeExpire)
	fields.Set("trade_type", order.TradeType)
	fields.SetPtr("product_id", order.ProductID)
	fields.SetPtr("openid", order.OpenID)
	if strings.TrimSpace(c.cfg.NotifyURL) == "" {
		return nil, &ConfigurationError{Field: "notify_url"}
	}
	fields.Set("notify_url", c.cfg.NotifyURL)
	c.setIdentity(fields)
	return c.do(ctx, epUnifiedOrder, order.OutTradeNo, fields)
}

func (c *Client) QueryOrder(ctx context.Context, outTradeNo string) (Fields, error) {
	fields := Fields{}
	fields.Set("out_trade_no", outTradeNo)
	c.setIdentity(fields)
	return c.do(ctx, epOrderQuery, outTradeNo, fields)
}

// CancelOrder closes an unpaid order, or reverses a MICROPAY charge.
func (c *Client) CancelOrder(ctx context.Context, order *entity.Order) (Fields, error) {
	fields := Fields{}
	fields.Set("out_trade_no", order.OutTradeNo)
	c.setIdentity(fields)
	if order.TradeType == entity.TradeTypeMicropay {
		return c.do(ctx, epReverse, order.OutTradeNo, fields)
	}
	return c.do(ctx, epCloseOrder, order.OutTradeNo, fields)
}

func (c *Client) Refund(ctx context.Context, refund *entity.Refund, order *entity.Order) (Fields, error) {
	fields := Fields{}
	fields.Set("out_refund_no", refund.OutRefundNo)
	fields.Set("refund_fee", strconv.FormatInt(refund.RefundFee, 10))
	fields.SetPtr("refund_fee_type", refund.RefundFeeType)
	fields.SetPtr("refund_desc", refund.RefundDesc)
	fields.SetPtr("refund_account", refund.RefundAccount)
	fields.Set("out_trade_no", order.OutTradeNo)
	fields.Set("total_fee", strconv.FormatInt(order.TotalFee, 10))
	fields.Set("notify_url", c.cfg.RefundNotifyURL)
	c.setIdentity(fields)
	return c.do(ctx, epRefund, refund.OutRefundNo, fields)
}

func (c *Client) QueryRefund(ctx context.Context, outRefundNo string) (Fields, error) {
	fields := Fields{}
	fields.Set("out_refund_no", outRefundNo)
	c.setIdentity(fields)
	return c.do(ctx, epRefundQuery, outRefundNo, fields)
}

func (c *Client) Payout(ctx context.Context, payout *entity.Payout) (Fields, error) {
	fields := Fields{}
	fields.SetPtr("device_info", payout.DeviceInfo)
	fields.Set("partner_trade_no", payout.PartnerTradeNo)
	fields.Set("openid", payout.OpenID)
	fields.Set("check_name", payout.CheckName)
	fields.SetPtr("re_user_name", payout.ReUserName)
	fields.Set("amount", strconv.FormatInt(payout.Amount, 10))
	fields.Set("desc", payout.Desc)
	fields.Set("spbill_create_ip", payout.SpbillCreateIP)
	fields.Set("mch_appid", c.cfg.AppID)
	fields.Set("mchid", c.cfg.MchID)
	return c.do(ctx, epTransfers, payout.PartnerTradeNo, fields)
}

func (c *Client) QueryPayout(ctx context.Context, partnerTradeNo string) (Fields, error) {
	fields := Fields{}
	fields.Set("partner_trade_no", partnerTradeNo)
	c.setIdentity(fields)
	return c.do(ctx, epTransferInfo, partnerTradeNo, fields)
}

// SendRedPacket sends a single red packet, or a group packet when TotalNum > 1.
func (c *Client) SendRedPacket(ctx context.Context, packet *entity.RedPacket) (Fields, error) {
	fields := Fields{}
	fields.Set("mch_billno", packet.MchBillno)
	fields.Set("send_name", packet.SendName)
	fields.Set("re_openid", packet.ReOpenID)
	fields.Set("total_amount", strconv.FormatInt(packet.TotalAmount, 10))
	fields.Set("total_num", strconv.FormatInt(int64(packet.TotalNum), 10))
	fields.Set("wishing", packet.Wishing)
	fields.Set("act_name", packet.ActName)
	fields.Set("remark", packet.Remark)
	fields.SetPtr("scene_id", packet.SceneID)
	fields.SetPtr("risk_info", packet.RiskInfo)
	fields.SetPtr("consume_mch_id", packet.ConsumeMchID)
	fields.Set("wxappid", c.cfg.AppID)
	fields.Set("mch_id", c.cfg.MchID)

	ep := epSendRedPack
	if packet.Group() {
		ep = epSendGroupRP
		amtType := entity.AmtTypeAllRand
		if packet.AmtType != nil && strings.TrimSpace(*packet.AmtType) != "" {
			amtType = *packet.AmtType
		}
		fields.Set("amt_type", amtType)
	} else {
		fields.SetPtr("client_ip", packet.ClientIP)
	}
	return c.do(ctx, ep, packet.MchBillno, fields)
}

func (c *Client) QueryRedPacket(ctx context.Context, mchBillno string) (Fields, error) {
	fields := Fields{}
	fields.Set("mch_billno", mchBillno)
	fields.Set("bill_type", "MCHT")
	c.setIdentity(fields)
	return c.do(ctx, epRedPackInfo, mchBillno, fields)
}

func (c *Client) setIdentity(fields Fields) {
	fields.Set("appid", c.cfg.AppID)
	fields.Set("mch_id", c.cfg.MchID)
}

func (c *Client) do(ctx context.Context, ep endpoint, reference string, fields Fields) (Fields, error) {
	start := time.Now()
	result, err := c.exchange(ctx, ep, reference, fields)
	if c.observer != nil {
		c.observer.ObserveGatewayCall(ep.path, callOutcome(result, err), time.Since(start))
	}
	return result, err
}

func (c *Client) exchange(ctx context.Context, ep endpoint, reference string, fields Fields) (Fields, error) {
	if strings.TrimSpace(c.cfg.AppID) == "" {
		return nil, &ConfigurationError{Field: "app_id"}
	}
	if strings.TrimSpace(c.cfg.MchID) == "" {
		return nil, &ConfigurationError{Field: "mch_id"}
	}

	httpClient := c.plain
	if ep.cert {
		if c.secure == nil {
			return nil, &ConfigurationError{Field: "cert_path"}
		}
		httpClient = c.secure
	}

	fields[FieldNonceStr] = c.nonce()
	signature, err := Sign(fields, c.cfg.PayKey)
	if err != nil {
		return nil, err
	}
	fields[FieldSign] = signature

	payload, err := Encode(fields)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+ep.path, bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Endpoint: ep.path, Err: err}
	}
	req.Header.Set("Content-Type", contentTypeXML)

	resp, err := httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{"endpoint": ep.path, "reference": reference}).Warn("Gateway request failed")
		return nil, &TransportError{Endpoint: ep.path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &TransportError{Endpoint: ep.path, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logRejected(ep, reference, body, fmt.Errorf("status=%d", resp.StatusCode))
		return nil, &TransportError{Endpoint: ep.path, StatusCode: resp.StatusCode}
	}

	result, err := Decode(body)
	if err != nil {
		c.logRejected(ep, reference, body, err)
		return nil, err
	}

	if err := c.accept(ep, result); err != nil {
		c.logRejected(ep, reference, body, err)
		return nil, err
	}
	return result, nil
}

// accept applies the endpoint's response policy. Money-movement endpoints in
// the payout, red packet and reversal family reply unsigned, so only the
// presence of result_code is required there.
func (c *Client) accept(ep endpoint, result Fields) error {
	if result.ReturnCode() != ResultSuccess {
		return &BusinessError{Endpoint: ep.path, ReturnCode: result.ReturnCode(), ReturnMsg: result[FieldReturnMsg]}
	}

	switch ep.policy {
	case requireResultCode:
		if !result.Has(FieldResultCode) {
			return &FormatError{Op: "accept " + ep.path, Err: errors.New("result_code is missing")}
		}
	default:
		if !VerifyPayload(result, c.cfg.PayKey) {
			return &CryptoError{Op: "verify " + ep.path, Err: errors.New("response signature mismatch")}
		}
	}
	return nil
}

func (c *Client) logRejected(ep endpoint, reference string, body []byte, err error) {
	c.logger.WithError(err).WithFields(logrus.Fields{
		"endpoint":  ep.path,
		"reference": reference,
		"raw_body":  string(body),
	}).Warn("Gateway response rejected")
}

func callOutcome(result Fields, err error) string {
	var (
		cfgErr       *ConfigurationError
		formatErr    *FormatError
		cryptoErr    *CryptoError
		transportErr *TransportError
		businessErr  *BusinessError
	)
	switch {
	case err == nil && result.ResultCode() == ResultSuccess:
		return "success"
	case err == nil:
		return "business_fail"
	case errors.As(err, &cfgErr):
		return "configuration"
	case errors.As(err, &formatErr):
		return "format"
	case errors.As(err, &cryptoErr):
		return "crypto"
	case errors.As(err, &transportErr):
		return "transport"
	case errors.As(err, &businessErr):
		return "rejected"
	default:
		return "error"
	}
}

// NewNonce returns a 16 character random string.
func NewNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// JSAPIPayParams builds the signed parameter set a JSAPI front end passes to
// the in-app payment bridge.
func JSAPIPayParams(appID, prepayID, payKey string, now time.Time, nonce string) (map[string]string, error) {
	if strings.TrimSpace(appID) == "" {
		return nil, &ConfigurationError{Field: "app_id"}
	}
	params := Fields{
		"appId":     appID,
		"timeStamp": strconv.FormatInt(now.Unix(), 10),
		"nonceStr":  nonce,
		"package":   "prepay_id=" + prepayID,
		"signType":  "MD5",
	}
	signature, err := Sign(params, payKey)
	if err != nil {
		return nil, err
	}
	params["paySign"] = signature
	return params, nil
}
