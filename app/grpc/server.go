package grpc

import (
	"context"
	"errors"

	"github.com/vibast-solutions/ms-go-wxpay/app/entity"
	"github.com/vibast-solutions/ms-go-wxpay/app/gateway"
	"github.com/vibast-solutions/ms-go-wxpay/app/mapper"
	"github.com/vibast-solutions/ms-go-wxpay/app/service"
	"github.com/vibast-solutions/ms-go-wxpay/app/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type validator interface {
	Validate() error
}

type Server struct {
	paymentService *service.PaymentService
}

var _ WxPayServiceServer = (*Server)(nil)

func NewServer(paymentService *service.PaymentService) *Server {
	return &Server{paymentService: paymentService}
}

func (s *Server) Health(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return respond(&types.HealthResponse{Status: "ok"})
}

func (s *Server) CreateOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := &types.CreateOrderRequest{}
	if err := bind(ctx, in, req); err != nil {
		return nil, err
	}

	item, err := s.paymentService.CreateOrder(ctx, req)
	if err != nil {
		return nil, statusForError(ctx, err, "Create order failed")
	}
	return respond(&types.OrderEnvelopeResponse{Order: mapper.OrderToProto(item)})
}

func (s *Server) UpdateOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := &types.UpdateOrderRequest{}
	if err := bind(ctx, in, req); err != nil {
		return nil, err
	}

	item, err := s.paymentService.UpdateOrder(ctx, req)
	if err != nil {
		return nil, statusForError(ctx, err, "Update order failed")
	}
	return respond(&types.OrderEnvelopeResponse{Order: mapper.OrderToProto(item)})
}

func (s *Server) GetOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.orderAction(ctx, in, "Get order failed", s.paymentService.GetOrder)
}

func (s *Server) PlaceOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.orderAction(ctx, in, "Place order failed", s.paymentService.PlaceOrder)
}

func (s *Server) QueryOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.orderAction(ctx, in, "Query order failed", s.paymentService.QueryOrder)
}

func (s *Server) CancelOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.orderAction(ctx, in, "Cancel order failed", s.paymentService.CancelOrder)
}

func (s *Server) ReconcileOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.orderAction(ctx, in, "Reconcile order failed", s.paymentService.UpdateOrderState)
}

func (s *Server) GetJSAPIParams(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := &types.OrderReferenceRequest{}
	if err := bind(ctx, in, req); err != nil {
		return nil, err
	}

	params, err := s.paymentService.JSAPIPayParams(ctx, req.GetOutTradeNo())
	if err != nil {
		return nil, statusForError(ctx, err, "Build JSAPI params failed")
	}
	return respond(&types.JSAPIParamsResponse{Params: params})
}

func (s *Server) CreateRefund(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := &types.CreateRefundRequest{}
	if err := bind(ctx, in, req); err != nil {
		return nil, err
	}

	item, err := s.paymentService.CreateRefund(ctx, req)
	if err != nil {
		return nil, statusForError(ctx, err, "Create refund failed")
	}
	return respond(&types.RefundEnvelopeResponse{Refund: mapper.RefundToProto(item)})
}

func (s *Server) ListRefunds(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := &types.OrderReferenceRequest{}
	if err := bind(ctx, in, req); err != nil {
		return nil, err
	}

	items, err := s.paymentService.ListRefunds(ctx, req.GetOutTradeNo())
	if err != nil {
		return nil, statusForError(ctx, err, "List refunds failed")
	}
	return respond(&types.ListRefundsResponse{Refunds: mapper.RefundsToProto(items)})
}

func (s *Server) GetRefund(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.refundAction(ctx, in, "Get refund failed", s.paymentService.GetRefund)
}

func (s *Server) ApplyForRefund(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.refundAction(ctx, in, "Apply for refund failed", s.paymentService.ApplyForRefund)
}

func (s *Server) QueryRefund(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.refundAction(ctx, in, "Query refund failed", s.paymentService.QueryRefund)
}

func (s *Server) ReconcileRefund(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.refundAction(ctx, in, "Reconcile refund failed", s.paymentService.UpdateRefundState)
}

func (s *Server) CreatePayout(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := &types.CreatePayoutRequest{}
	if err := bind(ctx, in, req); err != nil {
		return nil, err
	}

	item, err := s.paymentService.CreatePayout(ctx, req)
	if err != nil {
		return nil, statusForError(ctx, err, "Create payout failed")
	}
	return respond(&types.PayoutEnvelopeResponse{Payout: mapper.PayoutToProto(item)})
}

func (s *Server) GetPayout(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.payoutAction(ctx, in, "Get payout failed", s.paymentService.GetPayout)
}

func (s *Server) SendPayout(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.payoutAction(ctx, in, "Send payout failed", s.paymentService.SendPayout)
}

func (s *Server) QueryPayout(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.payoutAction(ctx, in, "Query payout failed", s.paymentService.QueryPayout)
}

func (s *Server) ReconcilePayout(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.payoutAction(ctx, in, "Reconcile payout failed", s.paymentService.UpdatePayoutState)
}

func (s *Server) CreateRedPacket(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := &types.CreateRedPacketRequest{}
	if err := bind(ctx, in, req); err != nil {
		return nil, err
	}

	item, err := s.paymentService.CreateRedPacket(ctx, req)
	if err != nil {
		return nil, statusForError(ctx, err, "Create red packet failed")
	}
	return respond(&types.RedPacketEnvelopeResponse{RedPacket: mapper.RedPacketToProto(item)})
}

func (s *Server) GetRedPacket(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.redPacketAction(ctx, in, "Get red packet failed", s.paymentService.GetRedPacket)
}

func (s *Server) SendRedPacket(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.redPacketAction(ctx, in, "Send red packet failed", s.paymentService.SendRedPacket)
}

func (s *Server) QueryRedPacket(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.redPacketAction(ctx, in, "Query red packet failed", s.paymentService.QueryRedPacket)
}

func (s *Server) ReconcileRedPacket(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.redPacketAction(ctx, in, "Reconcile red packet failed", s.paymentService.UpdateRedPacketState)
}

func (s *Server) orderAction(ctx context.Context, in *structpb.Struct, logMessage string, fn func(context.Context, string) (*entity.Order, error)) (*structpb.Struct, error) {
	req := &types.OrderReferenceRequest{}
	if err := bind(ctx, in, req); err != nil {
		return nil, err
	}

	item, err := fn(ctx, req.GetOutTradeNo())
	if err != nil {
		return nil, statusForError(ctx, err, logMessage)
	}
	return respond(&types.OrderEnvelopeResponse{Order: mapper.OrderToProto(item)})
}

func (s *Server) refundAction(ctx context.Context, in *structpb.Struct, logMessage string, fn func(context.Context, string) (*entity.Refund, error)) (*structpb.Struct, error) {
	req := &types.RefundReferenceRequest{}
	if err := bind(ctx, in, req); err != nil {
		return nil, err
	}

	item, err := fn(ctx, req.GetOutRefundNo())
	if err != nil {
		return nil, statusForError(ctx, err, logMessage)
	}
	return respond(&types.RefundEnvelopeResponse{Refund: mapper.RefundToProto(item)})
}

func (s *Server) payoutAction(ctx context.Context, in *structpb.Struct, logMessage string, fn func(context.Context, string) (*entity.Payout, error)) (*structpb.Struct, error) {
	req := &types.PayoutReferenceRequest{}
	if err := bind(ctx, in, req); err != nil {
		return nil, err
	}

	item, err := fn(ctx, req.GetPartnerTradeNo())
	if err != nil {
		return nil, statusForError(ctx, err, logMessage)
	}
	return respond(&types.PayoutEnvelopeResponse{Payout: mapper.PayoutToProto(item)})
}

func (s *Server) redPacketAction(ctx context.Context, in *structpb.Struct, logMessage string, fn func(context.Context, string) (*entity.RedPacket, error)) (*structpb.Struct, error) {
	req := &types.RedPacketReferenceRequest{}
	if err := bind(ctx, in, req); err != nil {
		return nil, err
	}

	item, err := fn(ctx, req.GetMchBillno())
	if err != nil {
		return nil, statusForError(ctx, err, logMessage)
	}
	return respond(&types.RedPacketEnvelopeResponse{RedPacket: mapper.RedPacketToProto(item)})
}

func bind(ctx context.Context, in *structpb.Struct, req validator) error {
	if err := decodeStruct(in, req); err != nil {
		return status.Error(codes.InvalidArgument, "invalid request")
	}
	if err := req.Validate(); err != nil {
		loggerWithContext(ctx).WithError(err).Debug("Request validation failed")
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return nil
}

func respond(payload interface{}) (*structpb.Struct, error) {
	out, err := encodeStruct(payload)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return out, nil
}

// statusForError maps service and gateway errors onto gRPC status codes.
func statusForError(ctx context.Context, err error, logMessage string) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrRefundNotFound),
		errors.Is(err, service.ErrPayoutNotFound),
		errors.Is(err, service.ErrRedPacketNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrOrderAlreadyExists),
		errors.Is(err, service.ErrRefundAlreadyExists),
		errors.Is(err, service.ErrPayoutAlreadyExists),
		errors.Is(err, service.ErrRedPacketAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, service.ErrOrderLocked),
		errors.Is(err, service.ErrOrderNotPlaced),
		errors.Is(err, service.ErrOrderChanged),
		errors.Is(err, service.ErrAmountMismatch):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, service.ErrConcurrentUpdate):
		return status.Error(codes.Aborted, err.Error())
	case gateway.IsConfiguration(err):
		loggerWithContext(ctx).WithError(err).Error(logMessage)
		return status.Error(codes.Unavailable, "payment gateway is not configured")
	default:
		loggerWithContext(ctx).WithError(err).Error(logMessage)
		return status.Error(codes.Internal, "internal server error")
	}
}
