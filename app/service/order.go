package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-wxpay/app/entity"
	"github.com/vibast-solutions/ms-go-wxpay/app/gateway"
	"github.com/vibast-solutions/ms-go-wxpay/app/repository"
)

type createOrderRequest interface {
	GetBody() string
	GetTotalFee() int64
	GetSpbillCreateIp() string
	GetTradeType() string
	GetDeviceInfo() string
	GetDetail() string
	GetAttach() string
	GetFeeType() string
	GetTimeStart() string
	GetTimeExpire() string
	GetGoodsTag() string
	GetProductId() string
	GetLimitPay() string
	GetOpenid() string
	GetSceneInfo() string
	GetAuthCode() string
}

type updateOrderRequest interface {
	GetOutTradeNo() string
	GetBody() string
	GetTotalFee() int64
	GetTradeType() string
	GetAttach() string
	GetOpenid() string
	GetAuthCode() string
}

var validTradeTypes = map[string]struct{}{
	entity.TradeTypeJSAPI:    {},
	entity.TradeTypeMWEB:     {},
	entity.TradeTypeNative:   {},
	entity.TradeTypeApp:      {},
	entity.TradeTypeMicropay: {},
}

func validTradeType(tradeType string) bool {
	_, ok := validTradeTypes[tradeType]
	return ok
}

func (s *PaymentService) CreateOrder(ctx context.Context, req createOrderRequest) (*entity.Order, error) {
	tradeType := strings.ToUpper(strings.TrimSpace(req.GetTradeType()))
	body := strings.TrimSpace(req.GetBody())
	ip := strings.TrimSpace(req.GetSpbillCreateIp())
	if body == "" || ip == "" || req.GetTotalFee() <= 0 || !validTradeType(tradeType) {
		return nil, ErrInvalidRequest
	}
	if tradeType == entity.TradeTypeMicropay && strings.TrimSpace(req.GetAuthCode()) == "" {
		return nil, ErrInvalidRequest
	}
	if tradeType == entity.TradeTypeJSAPI && strings.TrimSpace(req.GetOpenid()) == "" {
		return nil, ErrInvalidRequest
	}

	now := s.now()
	order := &entity.Order{
		Body:           body,
		TotalFee:       req.GetTotalFee(),
		SpbillCreateIP: ip,
		TradeType:      tradeType,
		DeviceInfo:     trimmedPtr(req.GetDeviceInfo()),
		Detail:         trimmedPtr(req.GetDetail()),
		Attach:         trimmedPtr(req.GetAttach()),
		FeeType:        trimmedPtr(req.GetFeeType()),
		TimeStart:      trimmedPtr(req.GetTimeStart()),
		TimeExpire:     trimmedPtr(req.GetTimeExpire()),
		GoodsTag:       trimmedPtr(req.GetGoodsTag()),
		ProductID:      trimmedPtr(req.GetProductId()),
		LimitPay:       trimmedPtr(req.GetLimitPay()),
		OpenID:         trimmedPtr(req.GetOpenid()),
		SceneInfo:      trimmedPtr(req.GetSceneInfo()),
		AuthCode:       trimmedPtr(req.GetAuthCode()),
		State:          entity.OrderStateCreated,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		ref, err := newOutTradeNo(now)
		if err != nil {
			return nil, err
		}
		order.OutTradeNo = ref

		err = s.orderRepo.Create(ctx, order)
		if err == nil {
			s.recordEvent(ctx, entity.EntityOrder, order.OutTradeNo, "order_created", nil, order.State, nil)
			return order, nil
		}
		if !errors.Is(err, repository.ErrOrderAlreadyExists) {
			return nil, err
		}
		s.logger.WithField("out_trade_no", ref).Warn("Generated out_trade_no collided, retrying")
	}
	return nil, ErrOrderAlreadyExists
}

func (s *PaymentService) GetOrder(ctx context.Context, outTradeNo string) (*entity.Order, error) {
	return s.findOrder(ctx, outTradeNo)
}

func (s *PaymentService) findOrder(ctx context.Context, outTradeNo string) (*entity.Order, error) {
	outTradeNo = strings.TrimSpace(outTradeNo)
	if outTradeNo == "" {
		return nil, ErrInvalidRequest
	}
	order, err := s.orderRepo.FindByOutTradeNo(ctx, outTradeNo)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// UpdateOrder changes payment-initiation attributes of an order that has not
// been placed successfully yet.
func (s *PaymentService) UpdateOrder(ctx context.Context, req updateOrderRequest) (*entity.Order, error) {
	outTradeNo := strings.TrimSpace(req.GetOutTradeNo())
	tradeType := strings.ToUpper(strings.TrimSpace(req.GetTradeType()))
	if tradeType != "" && !validTradeType(tradeType) {
		return nil, ErrInvalidRequest
	}
	if req.GetTotalFee() < 0 {
		return nil, ErrInvalidRequest
	}

	var updated *entity.Order
	err := s.applyWithRetry(ctx, lockKey(entity.EntityOrder, outTradeNo), func() error {
		current, err := s.findOrder(ctx, outTradeNo)
		if err != nil {
			return err
		}
		if current.Locked() {
			return ErrOrderLocked
		}

		next := current.Clone()
		if body := strings.TrimSpace(req.GetBody()); body != "" {
			next.Body = body
		}
		if req.GetTotalFee() > 0 {
			next.TotalFee = req.GetTotalFee()
		}
		if tradeType != "" {
			next.TradeType = tradeType
		}
		if v := trimmedPtr(req.GetAttach()); v != nil {
			next.Attach = v
		}
		if v := trimmedPtr(req.GetOpenid()); v != nil {
			next.OpenID = v
		}
		if v := trimmedPtr(req.GetAuthCode()); v != nil {
			next.AuthCode = v
		}
		next.UpdatedAt = s.now()

		if err := s.orderRepo.UpdateIfVersion(ctx, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordEvent(ctx, entity.EntityOrder, outTradeNo, "order_updated", nil, updated.State, nil)
	return updated, nil
}

// PlaceOrder submits the order to the gateway. An order whose placement
// already succeeded is returned as is. The reference lock is held across the
// gateway call, so UpdateOrder cannot change what is being placed.
func (s *PaymentService) PlaceOrder(ctx context.Context, outTradeNo string) (*entity.Order, error) {
	order, err := s.findOrder(ctx, outTradeNo)
	if err != nil {
		return nil, err
	}
	if order.Locked() {
		return order, nil
	}

	placed := order
	err = s.withLock(ctx, lockKey(entity.EntityOrder, order.OutTradeNo), func() error {
		current, err := s.findOrder(ctx, order.OutTradeNo)
		if err != nil {
			return err
		}
		placed = current
		if current.Locked() {
			return nil
		}

		fields, err := s.gateway.PlaceOrder(ctx, current)
		if err != nil {
			return err
		}

		for attempt := 0; attempt < maxApplyAttempts; attempt++ {
			var applied *entity.Order
			applied, _, err = s.tryApplyOrder(ctx, current.OutTradeNo, entity.SlotPlacement, fields, sameInitiation(current))
			if applied != nil {
				placed = applied
			}
			if !errors.Is(err, ErrConcurrentUpdate) {
				break
			}
		}
		if err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"out_trade_no": current.OutTradeNo,
				"result_code":  fields.ResultCode(),
				"fields":       fields,
			}).Warn("Placement result not recorded")
		}
		if errors.Is(err, ErrOrderChanged) {
			s.alert(ctx, entity.EntityOrder, current.OutTradeNo, "placement_superseded", placed.State,
				fmt.Sprintf("sent total_fee=%d trade_type=%s", current.TotalFee, current.TradeType))
		}
		return err
	})
	if err != nil && isGatewayError(err) {
		return placed, s.absorbGatewayError(err, entity.EntityOrder, order.OutTradeNo)
	}
	return placed, err
}

func (s *PaymentService) QueryOrder(ctx context.Context, outTradeNo string) (*entity.Order, error) {
	order, err := s.findOrder(ctx, outTradeNo)
	if err != nil {
		return nil, err
	}

	updated, err := s.queryOrder(ctx, order.OutTradeNo)
	if err != nil {
		if isGatewayError(err) {
			return order, s.absorbGatewayError(err, entity.EntityOrder, order.OutTradeNo)
		}
		return order, err
	}
	return updated, nil
}

// queryOrder asks the gateway for the order and applies the answer to the
// query slot. Gateway errors are returned to the caller.
func (s *PaymentService) queryOrder(ctx context.Context, outTradeNo string) (*entity.Order, error) {
	fields, err := s.gateway.QueryOrder(ctx, outTradeNo)
	if err != nil {
		return nil, err
	}
	order, _, err := s.applyOrderResult(ctx, outTradeNo, entity.SlotQuery, fields, true)
	return order, err
}

// CancelOrder closes the order, or reverses it for MICROPAY.
func (s *PaymentService) CancelOrder(ctx context.Context, outTradeNo string) (*entity.Order, error) {
	order, err := s.findOrder(ctx, outTradeNo)
	if err != nil {
		return nil, err
	}

	updated, err := s.cancelOrder(ctx, order)
	if err != nil {
		if isGatewayError(err) {
			return order, s.absorbGatewayError(err, entity.EntityOrder, order.OutTradeNo)
		}
		return order, err
	}
	return updated, nil
}

func (s *PaymentService) cancelOrder(ctx context.Context, order *entity.Order) (*entity.Order, error) {
	fields, err := s.gateway.CancelOrder(ctx, order)
	if err != nil {
		return order, err
	}
	s.logger.WithFields(logrus.Fields{
		"out_trade_no": order.OutTradeNo,
		"result_code":  fields.ResultCode(),
		"recall":       fields["recall"],
	}).Info("Order cancel answered")

	applied, err := s.applyOrderCancel(ctx, order.OutTradeNo, fields)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"out_trade_no": order.OutTradeNo,
			"fields":       fields,
		}).Warn("Cancel result not recorded")
	}
	if applied == nil {
		applied = order
	}
	return applied, err
}

// JSAPIPayParams returns the signed parameters a JSAPI front end needs to
// open the payment sheet for a placed order.
func (s *PaymentService) JSAPIPayParams(ctx context.Context, outTradeNo string) (map[string]string, error) {
	order, err := s.findOrder(ctx, outTradeNo)
	if err != nil {
		return nil, err
	}
	if order.PrepayID == nil || strings.TrimSpace(*order.PrepayID) == "" {
		return nil, ErrOrderNotPlaced
	}
	return gateway.JSAPIPayParams(s.gateway.AppID(), *order.PrepayID, s.wxCfg.PayKey, s.now(), s.nonce())
}

func isGatewayError(err error) bool {
	var (
		cfgErr       *gateway.ConfigurationError
		formatErr    *gateway.FormatError
		cryptoErr    *gateway.CryptoError
		transportErr *gateway.TransportError
		businessErr  *gateway.BusinessError
	)
	return errors.As(err, &cfgErr) ||
		errors.As(err, &formatErr) ||
		errors.As(err, &cryptoErr) ||
		errors.As(err, &transportErr) ||
		errors.As(err, &businessErr)
}
