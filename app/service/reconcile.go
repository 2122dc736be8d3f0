package service

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-wxpay/app/entity"
)

// UpdateOrderState re-queries the order and, when the payment errored,
// cancels it with bounded retries. Gateway errors leave the order unchanged.
func (s *PaymentService) UpdateOrderState(ctx context.Context, outTradeNo string) (*entity.Order, error) {
	order, err := s.findOrder(ctx, outTradeNo)
	if err != nil {
		return nil, err
	}
	updated, err := s.reconcileOrder(ctx, order.OutTradeNo)
	if updated == nil {
		updated = order
	}
	if err != nil && isGatewayError(err) {
		return updated, s.absorbGatewayError(err, entity.EntityOrder, order.OutTradeNo)
	}
	return updated, err
}

func (s *PaymentService) reconcileOrder(ctx context.Context, outTradeNo string) (*entity.Order, error) {
	order, err := s.queryOrder(ctx, outTradeNo)
	if err != nil {
		return order, err
	}
	if order.Query.StateValue() != entity.TradeStatePayError {
		return order, nil
	}

	logger := s.logger.WithField("out_trade_no", outTradeNo)
	attempts := s.reversalAttempts()
	var cancelErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		var next *entity.Order
		next, cancelErr = s.cancelOrder(ctx, order)
		if next != nil {
			order = next
		}
		if cancelErr != nil {
			break
		}
		if order.Recall == nil || *order.Recall != entity.RecallYes {
			break
		}
		if attempt == attempts {
			break
		}
		logger.WithField("attempt", attempt).Info("Gateway asked to recall the cancel, backing off")
		if err := s.sleep(ctx, s.reversalBackoff()); err != nil {
			return order, err
		}
	}

	if cancelErr == nil && order.Cancel.Succeeded() {
		return s.queryOrder(ctx, outTradeNo)
	}
	// The gateway answered but the answer was not stored; the next run re-queries.
	if cancelErr != nil && !isGatewayError(cancelErr) {
		return order, cancelErr
	}

	detail := "cancel result_code=" + order.Cancel.Code()
	if cancelErr != nil {
		detail = cancelErr.Error()
	}
	logger.WithError(cancelErr).WithFields(logrus.Fields{
		"cancel_result_code": order.Cancel.Code(),
		"trade_type":         order.TradeType,
	}).Error("Order cancel failed, manual handling required")
	s.alert(ctx, entity.EntityOrder, outTradeNo, "reversal_failed", order.State, detail)
	return order, cancelErr
}

// UpdateRefundState re-queries the refund and acts on its status: a success
// refreshes the parent order, a failure resubmits the application.
func (s *PaymentService) UpdateRefundState(ctx context.Context, outRefundNo string) (*entity.Refund, error) {
	refund, err := s.findRefund(ctx, outRefundNo)
	if err != nil {
		return nil, err
	}
	updated, err := s.reconcileRefund(ctx, refund.OutRefundNo)
	if updated == nil {
		updated = refund
	}
	if err != nil && isGatewayError(err) {
		return updated, s.absorbGatewayError(err, entity.EntityRefund, refund.OutRefundNo)
	}
	return updated, err
}

func (s *PaymentService) reconcileRefund(ctx context.Context, outRefundNo string) (*entity.Refund, error) {
	refund, err := s.queryRefund(ctx, outRefundNo)
	if err != nil {
		return refund, err
	}

	logger := s.logger.WithFields(logrus.Fields{"out_refund_no": outRefundNo, "refund_status": refund.Status})
	switch refund.Status {
	case entity.RefundStateSuccess:
		_, err := s.queryOrder(ctx, refund.OutTradeNo)
		return refund, err
	case entity.RefundStateProcessing:
		return refund, nil
	case entity.RefundStateChange:
		logger.Error("Refund needs manual handling")
		s.alert(ctx, entity.EntityRefund, outRefundNo, "refund_change", refund.Status, "")
		return refund, nil
	default:
		logger.Error("Refund failed, resubmitting")
		return s.applyForRefund(ctx, refund)
	}
}

// UpdatePayoutState re-queries the payout and resubmits it when it failed.
func (s *PaymentService) UpdatePayoutState(ctx context.Context, partnerTradeNo string) (*entity.Payout, error) {
	payout, err := s.findPayout(ctx, partnerTradeNo)
	if err != nil {
		return nil, err
	}
	updated, err := s.reconcilePayout(ctx, payout.PartnerTradeNo)
	if updated == nil {
		updated = payout
	}
	if err != nil && isGatewayError(err) {
		return updated, s.absorbGatewayError(err, entity.EntityPayout, payout.PartnerTradeNo)
	}
	return updated, err
}

func (s *PaymentService) reconcilePayout(ctx context.Context, partnerTradeNo string) (*entity.Payout, error) {
	payout, err := s.queryPayout(ctx, partnerTradeNo)
	if err != nil {
		return payout, err
	}
	if payout.Status != entity.PayoutStateFailed {
		return payout, nil
	}
	s.logger.WithField("partner_trade_no", partnerTradeNo).Error("Payout failed, resubmitting")
	return s.sendPayout(ctx, payout)
}

// UpdateRedPacketState re-queries the red packet and resends it when it failed.
func (s *PaymentService) UpdateRedPacketState(ctx context.Context, mchBillno string) (*entity.RedPacket, error) {
	packet, err := s.findRedPacket(ctx, mchBillno)
	if err != nil {
		return nil, err
	}
	updated, err := s.reconcileRedPacket(ctx, packet.MchBillno)
	if updated == nil {
		updated = packet
	}
	if err != nil && isGatewayError(err) {
		return updated, s.absorbGatewayError(err, entity.EntityRedPacket, packet.MchBillno)
	}
	return updated, err
}

func (s *PaymentService) reconcileRedPacket(ctx context.Context, mchBillno string) (*entity.RedPacket, error) {
	packet, err := s.queryRedPacket(ctx, mchBillno)
	if err != nil {
		return packet, err
	}
	if packet.Status != entity.RedPacketStateFailed {
		return packet, nil
	}
	s.logger.WithField("mch_billno", mchBillno).Error("Red packet failed, resending")
	return s.sendRedPacket(ctx, packet)
}
