package service

import (
	"context"
	"errors"
	"strings"

	"github.com/vibast-solutions/ms-go-wxpay/app/entity"
	"github.com/vibast-solutions/ms-go-wxpay/app/repository"
)

type createRefundRequest interface {
	GetOutTradeNo() string
	GetRefundFee() int64
	GetRefundFeeType() string
	GetRefundDesc() string
	GetRefundAccount() string
}

// refund applications are not resubmitted from these states
var refundSubmitGuard = map[string]struct{}{
	entity.RefundStateProcessing: {},
	entity.RefundStateSuccess:    {},
	entity.RefundStateChange:     {},
}

func (s *PaymentService) CreateRefund(ctx context.Context, req createRefundRequest) (*entity.Refund, error) {
	order, err := s.findOrder(ctx, req.GetOutTradeNo())
	if err != nil {
		return nil, err
	}
	if req.GetRefundFee() <= 0 || req.GetRefundFee() > order.TotalFee {
		return nil, ErrInvalidRequest
	}

	now := s.now()
	refund := &entity.Refund{
		OrderID:       order.ID,
		OutTradeNo:    order.OutTradeNo,
		RefundFee:     req.GetRefundFee(),
		RefundFeeType: trimmedPtr(req.GetRefundFeeType()),
		RefundDesc:    trimmedPtr(req.GetRefundDesc()),
		RefundAccount: trimmedPtr(req.GetRefundAccount()),
		Status:        entity.RefundStateCreated,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		ref, err := newOutRefundNo(order.OutTradeNo)
		if err != nil {
			return nil, err
		}
		refund.OutRefundNo = ref

		err = s.refundRepo.Create(ctx, refund)
		if err == nil {
			s.recordEvent(ctx, entity.EntityRefund, refund.OutRefundNo, "refund_created", nil, refund.Status, nil)
			return refund, nil
		}
		if !errors.Is(err, repository.ErrRefundAlreadyExists) {
			return nil, err
		}
		s.logger.WithField("out_refund_no", ref).Warn("Generated out_refund_no collided, retrying")
	}
	return nil, ErrRefundAlreadyExists
}

func (s *PaymentService) GetRefund(ctx context.Context, outRefundNo string) (*entity.Refund, error) {
	return s.findRefund(ctx, outRefundNo)
}

func (s *PaymentService) ListRefunds(ctx context.Context, outTradeNo string) ([]*entity.Refund, error) {
	order, err := s.findOrder(ctx, outTradeNo)
	if err != nil {
		return nil, err
	}
	return s.refundRepo.ListByOutTradeNo(ctx, order.OutTradeNo)
}

func (s *PaymentService) findRefund(ctx context.Context, outRefundNo string) (*entity.Refund, error) {
	outRefundNo = strings.TrimSpace(outRefundNo)
	if outRefundNo == "" {
		return nil, ErrInvalidRequest
	}
	refund, err := s.refundRepo.FindByOutRefundNo(ctx, outRefundNo)
	if err != nil {
		return nil, err
	}
	if refund == nil {
		return nil, ErrRefundNotFound
	}
	return refund, nil
}

// ApplyForRefund submits the refund application. Refunds that are
// processing, succeeded or need manual handling are returned unchanged.
func (s *PaymentService) ApplyForRefund(ctx context.Context, outRefundNo string) (*entity.Refund, error) {
	refund, err := s.findRefund(ctx, outRefundNo)
	if err != nil {
		return nil, err
	}

	updated, err := s.applyForRefund(ctx, refund)
	if err != nil {
		if isGatewayError(err) {
			return refund, s.absorbGatewayError(err, entity.EntityRefund, refund.OutRefundNo)
		}
		return refund, err
	}
	return updated, nil
}

func (s *PaymentService) applyForRefund(ctx context.Context, refund *entity.Refund) (*entity.Refund, error) {
	if _, guarded := refundSubmitGuard[refund.Status]; guarded {
		return refund, nil
	}

	order, err := s.findOrder(ctx, refund.OutTradeNo)
	if err != nil {
		return refund, err
	}

	fields, err := s.gateway.Refund(ctx, refund, order)
	if err != nil {
		return refund, err
	}
	updated, _, err := s.applyRefundResult(ctx, refund.OutRefundNo, entity.SlotPlacement, fields, true)
	if err != nil {
		return refund, err
	}
	return updated, nil
}

func (s *PaymentService) QueryRefund(ctx context.Context, outRefundNo string) (*entity.Refund, error) {
	refund, err := s.findRefund(ctx, outRefundNo)
	if err != nil {
		return nil, err
	}

	updated, err := s.queryRefund(ctx, refund.OutRefundNo)
	if err != nil {
		if isGatewayError(err) {
			return refund, s.absorbGatewayError(err, entity.EntityRefund, refund.OutRefundNo)
		}
		return refund, err
	}
	return updated, nil
}

func (s *PaymentService) queryRefund(ctx context.Context, outRefundNo string) (*entity.Refund, error) {
	fields, err := s.gateway.QueryRefund(ctx, outRefundNo)
	if err != nil {
		return nil, err
	}
	refund, _, err := s.applyRefundResult(ctx, outRefundNo, entity.SlotQuery, fields, true)
	return refund, err
}
