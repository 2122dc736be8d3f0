package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-wxpay/app/entity"
	"github.com/vibast-solutions/ms-go-wxpay/app/gateway"
)

const maxCallbackPayload = 65535

// HandleOrderNotify verifies and applies a payment result notification and
// returns the acknowledgement for the gateway. FAIL asks for redelivery, so it
// is only returned when the body could not be trusted or storage failed.
func (s *PaymentService) HandleOrderNotify(ctx context.Context, body []byte) gateway.NotifyAck {
	ack := s.handleOrderNotify(ctx, body)
	if s.metrics != nil {
		s.metrics.Callback(entity.CallbackKindOrderNotify, ack.ReturnCode)
	}
	return ack
}

func (s *PaymentService) handleOrderNotify(ctx context.Context, body []byte) gateway.NotifyAck {
	kind := entity.CallbackKindOrderNotify
	fields, err := gateway.Decode(body)
	if err != nil {
		s.persistCallback(ctx, kind, "", body, err)
		return gateway.AckFail("invalid payload")
	}

	outTradeNo := strings.TrimSpace(fields["out_trade_no"])
	logger := s.logger.WithFields(logrus.Fields{"callback": kind, "out_trade_no": outTradeNo})

	if fields.ReturnCode() != gateway.ResultSuccess {
		logger.WithField("return_msg", fields[gateway.FieldReturnMsg]).Warn("Payment notification without return_code SUCCESS")
		s.persistCallback(ctx, kind, outTradeNo, body, errors.New("return_code is not SUCCESS"))
		return gateway.AckSuccess()
	}

	verified := gateway.VerifyPayload(fields, s.wxCfg.PayKey)
	if outTradeNo == "" && verified {
		s.persistCallback(ctx, kind, "", body, errors.New("out_trade_no is missing"))
		return gateway.AckFail("out_trade_no is missing")
	}

	_, _, err = s.applyOrderResult(ctx, outTradeNo, entity.SlotNotify, fields, verified)
	return s.ackForApply(ctx, kind, outTradeNo, body, err, logger)
}

// HandleRefundNotify decrypts and applies a refund result notification. A
// newly successful refund triggers one query of the parent order.
func (s *PaymentService) HandleRefundNotify(ctx context.Context, body []byte) gateway.NotifyAck {
	ack := s.handleRefundNotify(ctx, body)
	if s.metrics != nil {
		s.metrics.Callback(entity.CallbackKindRefundNotify, ack.ReturnCode)
	}
	return ack
}

func (s *PaymentService) handleRefundNotify(ctx context.Context, body []byte) gateway.NotifyAck {
	kind := entity.CallbackKindRefundNotify
	if strings.TrimSpace(s.wxCfg.PayKey) == "" {
		s.persistCallback(ctx, kind, "", body, &gateway.ConfigurationError{Field: "pay_key"})
		return gateway.AckFail("service not configured")
	}

	_, inner, err := gateway.DecodeRefundNotify(body, s.wxCfg.PayKey, s.decryptMode)
	if err != nil {
		var businessErr *gateway.BusinessError
		if errors.As(err, &businessErr) {
			s.logger.WithError(err).Warn("Refund notification without return_code SUCCESS")
			s.persistCallback(ctx, kind, "", body, err)
			return gateway.AckSuccess()
		}
		s.logger.WithError(err).Warn("Refund notification rejected")
		s.persistCallback(ctx, kind, "", body, err)
		return gateway.AckFail("invalid payload")
	}

	outRefundNo := strings.TrimSpace(inner["out_refund_no"])
	logger := s.logger.WithFields(logrus.Fields{"callback": kind, "out_refund_no": outRefundNo})
	if outRefundNo == "" {
		s.persistCallback(ctx, kind, "", body, errors.New("out_refund_no is missing"))
		return gateway.AckFail("out_refund_no is missing")
	}

	// a payload that decrypts under the pay key is authenticated
	refund, tr, err := s.applyRefundResult(ctx, outRefundNo, entity.SlotNotify, inner, true)
	ack := s.ackForApply(ctx, kind, outRefundNo, body, err, logger)
	if err != nil || !tr.NewlySucceeded {
		return ack
	}

	if _, err := s.queryOrder(ctx, refund.OutTradeNo); err != nil {
		logger.WithError(err).WithField("out_trade_no", refund.OutTradeNo).Warn("Parent order query after refund success failed")
	}
	return ack
}

func (s *PaymentService) ackForApply(ctx context.Context, kind, reference string, body []byte, err error, logger logrus.FieldLogger) gateway.NotifyAck {
	switch {
	case err == nil:
		s.persistCallback(ctx, kind, reference, body, nil)
		return gateway.AckSuccess()
	case errors.Is(err, ErrUnverifiedPayload):
		logger.Warn("Notification signature verification failed")
		s.persistCallback(ctx, kind, reference, body, err)
		return gateway.AckFail("signature verification failed")
	case errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrRefundNotFound):
		logger.Warn("Notification for unknown reference")
		s.persistCallback(ctx, kind, reference, body, err)
		return gateway.AckSuccess()
	case errors.Is(err, ErrAmountMismatch):
		s.persistCallback(ctx, kind, reference, body, err)
		return gateway.AckSuccess()
	default:
		logger.WithError(err).Error("Failed to apply notification")
		s.persistCallback(ctx, kind, reference, body, err)
		return gateway.AckFail("internal error")
	}
}

func (s *PaymentService) persistCallback(ctx context.Context, kind, reference string, body []byte, cause error) {
	if s.callbackRepo == nil {
		return
	}

	callback := &entity.GatewayCallback{
		Kind:      kind,
		Reference: trimmedPtr(reference),
		Payload:   truncate(string(body), maxCallbackPayload),
		Status:    entity.CallbackStatusProcessed,
		CreatedAt: s.now(),
	}
	if cause != nil {
		reason := truncate(cause.Error(), 1024)
		callback.Status = entity.CallbackStatusRejected
		callback.Error = &reason
	}

	if err := s.callbackRepo.Create(ctx, callback); err != nil {
		s.logger.WithError(err).WithField("callback", kind).Warn("Failed to persist gateway callback")
	}
}
