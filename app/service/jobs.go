package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-wxpay/app/entity"
	"golang.org/x/sync/errgroup"
)

var (
	reconcileOrderStates = []string{
		entity.TradeStateNotPay,
		entity.TradeStateUserPaying,
		entity.TradeStatePayError,
	}
	reconcileRefundStates = []string{
		entity.RefundStateProcessing,
		entity.RefundStateApplyFailed,
	}
	reconcilePayoutStates = []string{
		entity.PayoutStateProcessing,
		entity.PayoutStateFailed,
	}
	reconcileRedPacketStates = []string{
		entity.RedPacketStateSending,
		entity.RedPacketStateSent,
		entity.RedPacketStateFailed,
		entity.RedPacketStateRefunding,
	}
)

func (s *PaymentService) RunReconcileOrdersBatch(ctx context.Context) error {
	items, err := s.orderRepo.ListForReconcile(ctx, reconcileOrderStates, s.staleBefore(), s.batchSize())
	if err != nil {
		return err
	}

	refs := make([]string, 0, len(items))
	for _, order := range items {
		if order != nil {
			refs = append(refs, order.OutTradeNo)
		}
	}
	return s.runBatch(ctx, entity.EntityOrder, refs, func(ctx context.Context, ref string) error {
		_, err := s.reconcileOrder(ctx, ref)
		return err
	})
}

func (s *PaymentService) RunReconcileRefundsBatch(ctx context.Context) error {
	items, err := s.refundRepo.ListForReconcile(ctx, reconcileRefundStates, s.staleBefore(), s.batchSize())
	if err != nil {
		return err
	}

	refs := make([]string, 0, len(items))
	for _, refund := range items {
		if refund != nil {
			refs = append(refs, refund.OutRefundNo)
		}
	}
	return s.runBatch(ctx, entity.EntityRefund, refs, func(ctx context.Context, ref string) error {
		_, err := s.reconcileRefund(ctx, ref)
		return err
	})
}

func (s *PaymentService) RunReconcilePayoutsBatch(ctx context.Context) error {
	items, err := s.payoutRepo.ListForReconcile(ctx, reconcilePayoutStates, s.staleBefore(), s.batchSize())
	if err != nil {
		return err
	}

	refs := make([]string, 0, len(items))
	for _, payout := range items {
		if payout != nil {
			refs = append(refs, payout.PartnerTradeNo)
		}
	}
	return s.runBatch(ctx, entity.EntityPayout, refs, func(ctx context.Context, ref string) error {
		_, err := s.reconcilePayout(ctx, ref)
		return err
	})
}

func (s *PaymentService) RunReconcileRedPacketsBatch(ctx context.Context) error {
	items, err := s.packetRepo.ListForReconcile(ctx, reconcileRedPacketStates, s.staleBefore(), s.batchSize())
	if err != nil {
		return err
	}

	refs := make([]string, 0, len(items))
	for _, packet := range items {
		if packet != nil {
			refs = append(refs, packet.MchBillno)
		}
	}
	return s.runBatch(ctx, entity.EntityRedPacket, refs, func(ctx context.Context, ref string) error {
		_, err := s.reconcileRedPacket(ctx, ref)
		return err
	})
}

func (s *PaymentService) staleBefore() time.Time {
	return s.now().Add(-s.reconcileCfg.StaleAfter)
}

// runBatch reconciles distinct references in parallel. Every reference is
// attempted; the first error is returned.
func (s *PaymentService) runBatch(ctx context.Context, entityType string, refs []string, fn func(ctx context.Context, ref string) error) error {
	seen := make(map[string]struct{}, len(refs))
	var g errgroup.Group
	g.SetLimit(s.concurrency())

	for _, ref := range refs {
		if _, dup := seen[ref]; dup || ref == "" {
			continue
		}
		seen[ref] = struct{}{}

		g.Go(func() error {
			if err := fn(ctx, ref); err != nil {
				s.logger.WithError(err).WithFields(logrus.Fields{
					"entity":    entityType,
					"reference": ref,
				}).Warn("Reconcile failed")
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
