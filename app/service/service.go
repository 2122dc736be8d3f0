package service

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-wxpay/app/entity"
	"github.com/vibast-solutions/ms-go-wxpay/app/gateway"
	"github.com/vibast-solutions/ms-go-wxpay/config"
)

const (
	defaultBatchSize       = int32(100)
	defaultConcurrency     = 4
	defaultReversalRetries = 3
	defaultReversalBackoff = 5 * time.Second
	maxApplyAttempts       = 3
	maxReferenceAttempts   = 3
)

type gatewayClient interface {
	AppID() string
	MchID() string
	PlaceOrder(ctx context.Context, order *entity.Order) (gateway.Fields, error)
	QueryOrder(ctx context.Context, outTradeNo string) (gateway.Fields, error)
	CancelOrder(ctx context.Context, order *entity.Order) (gateway.Fields, error)
	Refund(ctx context.Context, refund *entity.Refund, order *entity.Order) (gateway.Fields, error)
	QueryRefund(ctx context.Context, outRefundNo string) (gateway.Fields, error)
	Payout(ctx context.Context, payout *entity.Payout) (gateway.Fields, error)
	QueryPayout(ctx context.Context, partnerTradeNo string) (gateway.Fields, error)
	SendRedPacket(ctx context.Context, packet *entity.RedPacket) (gateway.Fields, error)
	QueryRedPacket(ctx context.Context, mchBillno string) (gateway.Fields, error)
}

type orderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	UpdateIfVersion(ctx context.Context, order *entity.Order) error
	FindByOutTradeNo(ctx context.Context, outTradeNo string) (*entity.Order, error)
	ListForReconcile(ctx context.Context, states []string, before time.Time, limit int32) ([]*entity.Order, error)
}

type refundRepository interface {
	Create(ctx context.Context, refund *entity.Refund) error
	UpdateIfVersion(ctx context.Context, refund *entity.Refund) error
	FindByOutRefundNo(ctx context.Context, outRefundNo string) (*entity.Refund, error)
	ListByOutTradeNo(ctx context.Context, outTradeNo string) ([]*entity.Refund, error)
	ListForReconcile(ctx context.Context, states []string, before time.Time, limit int32) ([]*entity.Refund, error)
}

type payoutRepository interface {
	Create(ctx context.Context, payout *entity.Payout) error
	UpdateIfVersion(ctx context.Context, payout *entity.Payout) error
	FindByPartnerTradeNo(ctx context.Context, partnerTradeNo string) (*entity.Payout, error)
	ListForReconcile(ctx context.Context, states []string, before time.Time, limit int32) ([]*entity.Payout, error)
}

type redPacketRepository interface {
	Create(ctx context.Context, packet *entity.RedPacket) error
	UpdateIfVersion(ctx context.Context, packet *entity.RedPacket) error
	FindByMchBillno(ctx context.Context, mchBillno string) (*entity.RedPacket, error)
	ListForReconcile(ctx context.Context, states []string, before time.Time, limit int32) ([]*entity.RedPacket, error)
}

type eventRepository interface {
	Create(ctx context.Context, event *entity.Event) error
}

type callbackRepository interface {
	Create(ctx context.Context, callback *entity.GatewayCallback) error
}

type referenceLocker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// Fulfiller is invoked once per order when a verified SUCCESS notification is
// first applied.
type Fulfiller interface {
	Fulfill(ctx context.Context, order *entity.Order) error
}

type metricsRecorder interface {
	StateTransition(entityType, state string)
	Alert(entityType, kind string)
	Callback(kind, ack string)
}

// Dependencies groups the collaborators of PaymentService. Locker, Fulfiller
// and Metrics are optional.
type Dependencies struct {
	Gateway    gatewayClient
	Orders     orderRepository
	Refunds    refundRepository
	Payouts    payoutRepository
	RedPackets redPacketRepository
	Events     eventRepository
	Callbacks  callbackRepository
	Locker     referenceLocker
	Fulfiller  Fulfiller
	Metrics    metricsRecorder
}

type PaymentService struct {
	gateway      gatewayClient
	orderRepo    orderRepository
	refundRepo   refundRepository
	payoutRepo   payoutRepository
	packetRepo   redPacketRepository
	eventRepo    eventRepository
	callbackRepo callbackRepository
	locker       referenceLocker
	fulfiller    Fulfiller
	metrics      metricsRecorder

	wxCfg        config.WxPayConfig
	reconcileCfg config.ReconcileConfig
	decryptMode  gateway.CipherMode

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	nonce  func() string
	logger logrus.FieldLogger
}

func NewPaymentService(deps Dependencies, wxCfg config.WxPayConfig, reconcileCfg config.ReconcileConfig) *PaymentService {
	mode, err := gateway.ParseCipherMode(wxCfg.RefundDecryptMode)
	logger := logrus.WithField("module", "wxpay-service")
	if err != nil {
		logger.WithError(err).Warn("Unknown refund decrypt mode, falling back to ecb")
	}

	return &PaymentService{
		gateway:      deps.Gateway,
		orderRepo:    deps.Orders,
		refundRepo:   deps.Refunds,
		payoutRepo:   deps.Payouts,
		packetRepo:   deps.RedPackets,
		eventRepo:    deps.Events,
		callbackRepo: deps.Callbacks,
		locker:       deps.Locker,
		fulfiller:    deps.Fulfiller,
		metrics:      deps.Metrics,
		wxCfg:        wxCfg,
		reconcileCfg: reconcileCfg,
		decryptMode:  mode,
		now:          func() time.Time { return time.Now().UTC() },
		sleep:        sleepContext,
		nonce:        gateway.NewNonce,
		logger:       logger,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *PaymentService) batchSize() int32 {
	if s.reconcileCfg.BatchSize <= 0 {
		return defaultBatchSize
	}
	return s.reconcileCfg.BatchSize
}

func (s *PaymentService) concurrency() int {
	if s.reconcileCfg.Concurrency <= 0 {
		return defaultConcurrency
	}
	return s.reconcileCfg.Concurrency
}

func (s *PaymentService) reversalAttempts() int {
	if s.reconcileCfg.ReversalMaxAttempts <= 0 {
		return defaultReversalRetries
	}
	return s.reconcileCfg.ReversalMaxAttempts
}

func (s *PaymentService) reversalBackoff() time.Duration {
	if s.reconcileCfg.ReversalBackoff <= 0 {
		return defaultReversalBackoff
	}
	return s.reconcileCfg.ReversalBackoff
}

// withLock runs fn while holding the per-reference lock, if one is configured.
func (s *PaymentService) withLock(ctx context.Context, key string, fn func() error) error {
	if s.locker == nil {
		return fn()
	}
	release, err := s.locker.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

func (s *PaymentService) recordEvent(ctx context.Context, entityType, reference, eventType string, oldState *string, newState string, payload *string) {
	if s.eventRepo == nil {
		return
	}
	_ = s.eventRepo.Create(ctx, &entity.Event{
		EntityType:  entityType,
		Reference:   reference,
		EventType:   eventType,
		OldState:    oldState,
		NewState:    newState,
		PayloadJSON: payload,
		CreatedAt:   s.now(),
	})
}

func (s *PaymentService) alert(ctx context.Context, entityType, reference, kind, state string, detail string) {
	if s.metrics != nil {
		s.metrics.Alert(entityType, kind)
	}
	var payload *string
	if detail != "" {
		trimmed := truncate(detail, 1024)
		payload = &trimmed
	}
	s.recordEvent(ctx, entityType, reference, kind, nil, state, payload)
}

func (s *PaymentService) transitioned(entityType, state string) {
	if s.metrics != nil {
		s.metrics.StateTransition(entityType, state)
	}
}

// absorbGatewayError logs a failed gateway exchange and reports it as no
// state change. Configuration errors are returned because nothing can succeed
// until the deployment is fixed.
func (s *PaymentService) absorbGatewayError(err error, entityType, reference string) error {
	if err == nil {
		return nil
	}
	if gateway.IsConfiguration(err) {
		return err
	}
	s.logger.WithError(err).WithFields(logrus.Fields{
		"entity":    entityType,
		"reference": reference,
	}).Warn("Gateway call failed, entity left unchanged")
	return nil
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}

func strPtr(value string) *string {
	return &value
}

func trimmedPtr(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
