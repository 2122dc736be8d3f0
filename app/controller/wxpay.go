package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-wxpay/app/factory"
	"github.com/vibast-solutions/ms-go-wxpay/app/gateway"
	"github.com/vibast-solutions/ms-go-wxpay/app/mapper"
	"github.com/vibast-solutions/ms-go-wxpay/app/service"
	"github.com/vibast-solutions/ms-go-wxpay/app/types"
)

type WxPayController struct {
	paymentService *service.PaymentService
	logger         logrus.FieldLogger
}

func NewWxPayController(paymentService *service.PaymentService) *WxPayController {
	return &WxPayController{
		paymentService: paymentService,
		logger:         factory.NewModuleLogger("wxpay-controller"),
	}
}

func (c *WxPayController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *WxPayController) CreateOrder(ctx echo.Context) error {
	req, err := types.NewCreateOrderRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.CreateOrder(ctx.Request().Context(), req)
	if err != nil {
		return c.writeServiceError(ctx, err, "Create order failed")
	}
	return ctx.JSON(http.StatusCreated, &types.OrderEnvelopeResponse{Order: mapper.OrderToProto(item)})
}

func (c *WxPayController) UpdateOrder(ctx echo.Context) error {
	req, err := types.NewUpdateOrderRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.UpdateOrder(ctx.Request().Context(), req)
	if err != nil {
		return c.writeServiceError(ctx, err, "Update order failed")
	}
	return ctx.JSON(http.StatusOK, &types.OrderEnvelopeResponse{Order: mapper.OrderToProto(item)})
}

func (c *WxPayController) GetOrder(ctx echo.Context) error {
	return c.orderAction(ctx, "Get order failed", c.paymentService.GetOrder)
}

func (c *WxPayController) PlaceOrder(ctx echo.Context) error {
	return c.orderAction(ctx, "Place order failed", c.paymentService.PlaceOrder)
}

func (c *WxPayController) QueryOrder(ctx echo.Context) error {
	return c.orderAction(ctx, "Query order failed", c.paymentService.QueryOrder)
}

func (c *WxPayController) CancelOrder(ctx echo.Context) error {
	return c.orderAction(ctx, "Cancel order failed", c.paymentService.CancelOrder)
}

func (c *WxPayController) ReconcileOrder(ctx echo.Context) error {
	return c.orderAction(ctx, "Reconcile order failed", c.paymentService.UpdateOrderState)
}

func (c *WxPayController) JSAPIParams(ctx echo.Context) error {
	req, err := types.NewOrderReferenceRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	params, err := c.paymentService.JSAPIPayParams(ctx.Request().Context(), req.GetOutTradeNo())
	if err != nil {
		return c.writeServiceError(ctx, err, "Build JSAPI params failed")
	}
	return ctx.JSON(http.StatusOK, &types.JSAPIParamsResponse{Params: params})
}

func (c *WxPayController) CreateRefund(ctx echo.Context) error {
	req, err := types.NewCreateRefundRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.CreateRefund(ctx.Request().Context(), req)
	if err != nil {
		return c.writeServiceError(ctx, err, "Create refund failed")
	}
	return ctx.JSON(http.StatusCreated, &types.RefundEnvelopeResponse{Refund: mapper.RefundToProto(item)})
}

func (c *WxPayController) ListRefunds(ctx echo.Context) error {
	req, err := types.NewOrderReferenceRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, err := c.paymentService.ListRefunds(ctx.Request().Context(), req.GetOutTradeNo())
	if err != nil {
		return c.writeServiceError(ctx, err, "List refunds failed")
	}
	return ctx.JSON(http.StatusOK, &types.ListRefundsResponse{Refunds: mapper.RefundsToProto(items)})
}

func (c *WxPayController) GetRefund(ctx echo.Context) error {
	return c.refundAction(ctx, "Get refund failed", c.paymentService.GetRefund)
}

func (c *WxPayController) ApplyForRefund(ctx echo.Context) error {
	return c.refundAction(ctx, "Apply for refund failed", c.paymentService.ApplyForRefund)
}

func (c *WxPayController) QueryRefund(ctx echo.Context) error {
	return c.refundAction(ctx, "Query refund failed", c.paymentService.QueryRefund)
}

func (c *WxPayController) ReconcileRefund(ctx echo.Context) error {
	return c.refundAction(ctx, "Reconcile refund failed", c.paymentService.UpdateRefundState)
}

func (c *WxPayController) CreatePayout(ctx echo.Context) error {
	req, err := types.NewCreatePayoutRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.CreatePayout(ctx.Request().Context(), req)
	if err != nil {
		return c.writeServiceError(ctx, err, "Create payout failed")
	}
	return ctx.JSON(http.StatusCreated, &types.PayoutEnvelopeResponse{Payout: mapper.PayoutToProto(item)})
}

func (c *WxPayController) GetPayout(ctx echo.Context) error {
	return c.payoutAction(ctx, "Get payout failed", c.paymentService.GetPayout)
}

func (c *WxPayController) SendPayout(ctx echo.Context) error {
	return c.payoutAction(ctx, "Send payout failed", c.paymentService.SendPayout)
}

func (c *WxPayController) QueryPayout(ctx echo.Context) error {
	return c.payoutAction(ctx, "Query payout failed", c.paymentService.QueryPayout)
}

func (c *WxPayController) ReconcilePayout(ctx echo.Context) error {
	return c.payoutAction(ctx, "Reconcile payout failed", c.paymentService.UpdatePayoutState)
}

func (c *WxPayController) CreateRedPacket(ctx echo.Context) error {
	req, err := types.NewCreateRedPacketRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.CreateRedPacket(ctx.Request().Context(), req)
	if err != nil {
		return c.writeServiceError(ctx, err, "Create red packet failed")
	}
	return ctx.JSON(http.StatusCreated, &types.RedPacketEnvelopeResponse{RedPacket: mapper.RedPacketToProto(item)})
}

func (c *WxPayController) GetRedPacket(ctx echo.Context) error {
	return c.redPacketAction(ctx, "Get red packet failed", c.paymentService.GetRedPacket)
}

func (c *WxPayController) SendRedPacket(ctx echo.Context) error {
	return c.redPacketAction(ctx, "Send red packet failed", c.paymentService.SendRedPacket)
}

func (c *WxPayController) QueryRedPacket(ctx echo.Context) error {
	return c.redPacketAction(ctx, "Query red packet failed", c.paymentService.QueryRedPacket)
}

func (c *WxPayController) ReconcileRedPacket(ctx echo.Context) error {
	return c.redPacketAction(ctx, "Reconcile red packet failed", c.paymentService.UpdateRedPacketState)
}

func (c *WxPayController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}

func (c *WxPayController) writeServiceError(ctx echo.Context, err error, logMessage string) error {
	statusCode, message := StatusForError(err)
	if statusCode >= http.StatusInternalServerError {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error(logMessage)
	}
	return c.writeError(ctx, statusCode, message)
}

// StatusForError maps service and gateway errors onto HTTP status codes.
func StatusForError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrRefundNotFound),
		errors.Is(err, service.ErrPayoutNotFound),
		errors.Is(err, service.ErrRedPacketNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrOrderAlreadyExists),
		errors.Is(err, service.ErrRefundAlreadyExists),
		errors.Is(err, service.ErrPayoutAlreadyExists),
		errors.Is(err, service.ErrRedPacketAlreadyExists),
		errors.Is(err, service.ErrOrderLocked),
		errors.Is(err, service.ErrOrderNotPlaced),
		errors.Is(err, service.ErrOrderChanged),
		errors.Is(err, service.ErrAmountMismatch),
		errors.Is(err, service.ErrConcurrentUpdate):
		return http.StatusConflict, err.Error()
	case gateway.IsConfiguration(err):
		return http.StatusServiceUnavailable, "payment gateway is not configured"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
