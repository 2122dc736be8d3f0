package service

import (
	"context"
	"errors"
	"strings"

	"github.com/vibast-solutions/ms-go-wxpay/app/entity"
	"github.com/vibast-solutions/ms-go-wxpay/app/repository"
)

type createRedPacketRequest interface {
	GetSendName() string
	GetReOpenid() string
	GetTotalAmount() int64
	GetTotalNum() int32
	GetWishing() string
	GetActName() string
	GetRemark() string
	GetAmtType() string
	GetClientIp() string
	GetSceneId() string
	GetRiskInfo() string
	GetConsumeMchId() string
}

var redPacketSendGuard = map[string]struct{}{
	entity.RedPacketStateSending:   {},
	entity.RedPacketStateSent:      {},
	entity.RedPacketStateReceived:  {},
	entity.RedPacketStateRefunding: {},
	entity.RedPacketStateRefund:    {},
}

func (s *PaymentService) CreateRedPacket(ctx context.Context, req createRedPacketRequest) (*entity.RedPacket, error) {
	sendName := strings.TrimSpace(req.GetSendName())
	reOpenID := strings.TrimSpace(req.GetReOpenid())
	wishing := strings.TrimSpace(req.GetWishing())
	actName := strings.TrimSpace(req.GetActName())
	remark := strings.TrimSpace(req.GetRemark())
	if sendName == "" || reOpenID == "" || wishing == "" || actName == "" || remark == "" {
		return nil, ErrInvalidRequest
	}
	if req.GetTotalAmount() <= 0 || req.GetTotalNum() <= 0 {
		return nil, ErrInvalidRequest
	}

	now := s.now()
	packet := &entity.RedPacket{
		SendName:     sendName,
		ReOpenID:     reOpenID,
		TotalAmount:  req.GetTotalAmount(),
		TotalNum:     req.GetTotalNum(),
		Wishing:      wishing,
		ActName:      actName,
		Remark:       remark,
		AmtType:      trimmedPtr(req.GetAmtType()),
		ClientIP:     trimmedPtr(req.GetClientIp()),
		SceneID:      trimmedPtr(req.GetSceneId()),
		RiskInfo:     trimmedPtr(req.GetRiskInfo()),
		ConsumeMchID: trimmedPtr(req.GetConsumeMchId()),
		Status:       entity.RedPacketStateCreated,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if !packet.Group() && packet.ClientIP == nil {
		return nil, ErrInvalidRequest
	}

	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		ref, err := newMchReference(s.gateway.MchID(), now)
		if err != nil {
			return nil, err
		}
		packet.MchBillno = ref

		err = s.packetRepo.Create(ctx, packet)
		if err == nil {
			s.recordEvent(ctx, entity.EntityRedPacket, packet.MchBillno, "red_packet_created", nil, packet.Status, nil)
			return packet, nil
		}
		if !errors.Is(err, repository.ErrRedPacketAlreadyExists) {
			return nil, err
		}
		s.logger.WithField("mch_billno", ref).Warn("Generated mch_billno collided, retrying")
	}
	return nil, ErrRedPacketAlreadyExists
}

func (s *PaymentService) GetRedPacket(ctx context.Context, mchBillno string) (*entity.RedPacket, error) {
	return s.findRedPacket(ctx, mchBillno)
}

func (s *PaymentService) findRedPacket(ctx context.Context, mchBillno string) (*entity.RedPacket, error) {
	mchBillno = strings.TrimSpace(mchBillno)
	if mchBillno == "" {
		return nil, ErrInvalidRequest
	}
	packet, err := s.packetRepo.FindByMchBillno(ctx, mchBillno)
	if err != nil {
		return nil, err
	}
	if packet == nil {
		return nil, ErrRedPacketNotFound
	}
	return packet, nil
}

// SendRedPacket sends the packet unless the gateway already accepted it.
func (s *PaymentService) SendRedPacket(ctx context.Context, mchBillno string) (*entity.RedPacket, error) {
	packet, err := s.findRedPacket(ctx, mchBillno)
	if err != nil {
		return nil, err
	}

	updated, err := s.sendRedPacket(ctx, packet)
	if err != nil {
		if isGatewayError(err) {
			return packet, s.absorbGatewayError(err, entity.EntityRedPacket, packet.MchBillno)
		}
		return packet, err
	}
	return updated, nil
}

func (s *PaymentService) sendRedPacket(ctx context.Context, packet *entity.RedPacket) (*entity.RedPacket, error) {
	if _, guarded := redPacketSendGuard[packet.Status]; guarded {
		return packet, nil
	}

	fields, err := s.gateway.SendRedPacket(ctx, packet)
	if err != nil {
		return packet, err
	}
	updated, err := s.ApplyRedPacketResult(ctx, packet.MchBillno, entity.SlotPlacement, fields, true)
	if err != nil {
		return packet, err
	}
	return updated, nil
}

func (s *PaymentService) QueryRedPacket(ctx context.Context, mchBillno string) (*entity.RedPacket, error) {
	packet, err := s.findRedPacket(ctx, mchBillno)
	if err != nil {
		return nil, err
	}

	updated, err := s.queryRedPacket(ctx, packet.MchBillno)
	if err != nil {
		if isGatewayError(err) {
			return packet, s.absorbGatewayError(err, entity.EntityRedPacket, packet.MchBillno)
		}
		return packet, err
	}
	return updated, nil
}

func (s *PaymentService) queryRedPacket(ctx context.Context, mchBillno string) (*entity.RedPacket, error) {
	fields, err := s.gateway.QueryRedPacket(ctx, mchBillno)
	if err != nil {
		return nil, err
	}
	return s.ApplyRedPacketResult(ctx, mchBillno, entity.SlotQuery, fields, true)
}
