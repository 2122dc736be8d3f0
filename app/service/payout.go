package service

import (
	"context"
	"errors"
	"strings"

	"github.com/vibast-solutions/ms-go-wxpay/app/entity"
	"github.com/vibast-solutions/ms-go-wxpay/app/repository"
)

type createPayoutRequest interface {
	GetOpenid() string
	GetCheckName() string
	GetReUserName() string
	GetAmount() int64
	GetDesc() string
	GetSpbillCreateIp() string
	GetDeviceInfo() string
}

var payoutSubmitGuard = map[string]struct{}{
	entity.PayoutStateSuccess:    {},
	entity.PayoutStateProcessing: {},
}

func validCheckName(checkName string) bool {
	switch checkName {
	case entity.CheckNameNone, entity.CheckNameForce, entity.CheckNameOptional:
		return true
	}
	return false
}

func (s *PaymentService) CreatePayout(ctx context.Context, req createPayoutRequest) (*entity.Payout, error) {
	openID := strings.TrimSpace(req.GetOpenid())
	checkName := strings.ToUpper(strings.TrimSpace(req.GetCheckName()))
	if checkName == "" {
		checkName = entity.CheckNameNone
	}
	desc := strings.TrimSpace(req.GetDesc())
	ip := strings.TrimSpace(req.GetSpbillCreateIp())
	if openID == "" || desc == "" || ip == "" || req.GetAmount() <= 0 || !validCheckName(checkName) {
		return nil, ErrInvalidRequest
	}
	reUserName := trimmedPtr(req.GetReUserName())
	if checkName == entity.CheckNameForce && reUserName == nil {
		return nil, ErrInvalidRequest
	}

	now := s.now()
	payout := &entity.Payout{
		OpenID:         openID,
		CheckName:      checkName,
		ReUserName:     reUserName,
		Amount:         req.GetAmount(),
		Desc:           desc,
		SpbillCreateIP: ip,
		DeviceInfo:     trimmedPtr(req.GetDeviceInfo()),
		Status:         entity.PayoutStateCreated,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		ref, err := newMchReference(s.gateway.MchID(), now)
		if err != nil {
			return nil, err
		}
		payout.PartnerTradeNo = ref

		err = s.payoutRepo.Create(ctx, payout)
		if err == nil {
			s.recordEvent(ctx, entity.EntityPayout, payout.PartnerTradeNo, "payout_created", nil, payout.Status, nil)
			return payout, nil
		}
		if !errors.Is(err, repository.ErrPayoutAlreadyExists) {
			return nil, err
		}
		s.logger.WithField("partner_trade_no", ref).Warn("Generated partner_trade_no collided, retrying")
	}
	return nil, ErrPayoutAlreadyExists
}

func (s *PaymentService) GetPayout(ctx context.Context, partnerTradeNo string) (*entity.Payout, error) {
	return s.findPayout(ctx, partnerTradeNo)
}

func (s *PaymentService) findPayout(ctx context.Context, partnerTradeNo string) (*entity.Payout, error) {
	partnerTradeNo = strings.TrimSpace(partnerTradeNo)
	if partnerTradeNo == "" {
		return nil, ErrInvalidRequest
	}
	payout, err := s.payoutRepo.FindByPartnerTradeNo(ctx, partnerTradeNo)
	if err != nil {
		return nil, err
	}
	if payout == nil {
		return nil, ErrPayoutNotFound
	}
	return payout, nil
}

// SendPayout submits the transfer unless it already succeeded or is in flight.
func (s *PaymentService) SendPayout(ctx context.Context, partnerTradeNo string) (*entity.Payout, error) {
	payout, err := s.findPayout(ctx, partnerTradeNo)
	if err != nil {
		return nil, err
	}

	updated, err := s.sendPayout(ctx, payout)
	if err != nil {
		if isGatewayError(err) {
			return payout, s.absorbGatewayError(err, entity.EntityPayout, payout.PartnerTradeNo)
		}
		return payout, err
	}
	return updated, nil
}

func (s *PaymentService) sendPayout(ctx context.Context, payout *entity.Payout) (*entity.Payout, error) {
	if _, guarded := payoutSubmitGuard[payout.Status]; guarded {
		return payout, nil
	}

	fields, err := s.gateway.Payout(ctx, payout)
	if err != nil {
		return payout, err
	}
	updated, err := s.ApplyPayoutResult(ctx, payout.PartnerTradeNo, entity.SlotPlacement, fields, true)
	if err != nil {
		return payout, err
	}
	return updated, nil
}

func (s *PaymentService) QueryPayout(ctx context.Context, partnerTradeNo string) (*entity.Payout, error) {
	payout, err := s.findPayout(ctx, partnerTradeNo)
	if err != nil {
		return nil, err
	}

	updated, err := s.queryPayout(ctx, payout.PartnerTradeNo)
	if err != nil {
		if isGatewayError(err) {
			return payout, s.absorbGatewayError(err, entity.EntityPayout, payout.PartnerTradeNo)
		}
		return payout, err
	}
	return updated, nil
}

func (s *PaymentService) queryPayout(ctx context.Context, partnerTradeNo string) (*entity.Payout, error) {
	fields, err := s.gateway.QueryPayout(ctx, partnerTradeNo)
	if err != nil {
		return nil, err
	}
	return s.ApplyPayoutResult(ctx, partnerTradeNo, entity.SlotQuery, fields, true)
}
