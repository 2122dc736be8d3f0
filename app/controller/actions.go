package controller

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-wxpay/app/entity"
	"github.com/vibast-solutions/ms-go-wxpay/app/mapper"
	"github.com/vibast-solutions/ms-go-wxpay/app/types"
)

type (
	orderFunc     func(ctx context.Context, outTradeNo string) (*entity.Order, error)
	refundFunc    func(ctx context.Context, outRefundNo string) (*entity.Refund, error)
	payoutFunc    func(ctx context.Context, partnerTradeNo string) (*entity.Payout, error)
	redPacketFunc func(ctx context.Context, mchBillno string) (*entity.RedPacket, error)
)

func (c *WxPayController) orderAction(ctx echo.Context, logMessage string, fn orderFunc) error {
	req, err := types.NewOrderReferenceRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := fn(ctx.Request().Context(), req.GetOutTradeNo())
	if err != nil {
		return c.writeServiceError(ctx, err, logMessage)
	}
	return ctx.JSON(http.StatusOK, &types.OrderEnvelopeResponse{Order: mapper.OrderToProto(item)})
}

func (c *WxPayController) refundAction(ctx echo.Context, logMessage string, fn refundFunc) error {
	req, err := types.NewRefundReferenceRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := fn(ctx.Request().Context(), req.GetOutRefundNo())
	if err != nil {
		return c.writeServiceError(ctx, err, logMessage)
	}
	return ctx.JSON(http.StatusOK, &types.RefundEnvelopeResponse{Refund: mapper.RefundToProto(item)})
}

func (c *WxPayController) payoutAction(ctx echo.Context, logMessage string, fn payoutFunc) error {
	req, err := types.NewPayoutReferenceRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := fn(ctx.Request().Context(), req.GetPartnerTradeNo())
	if err != nil {
		return c.writeServiceError(ctx, err, logMessage)
	}
	return ctx.JSON(http.StatusOK, &types.PayoutEnvelopeResponse{Payout: mapper.PayoutToProto(item)})
}

func (c *WxPayController) redPacketAction(ctx echo.Context, logMessage string, fn redPacketFunc) error {
	req, err := types.NewRedPacketReferenceRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := fn(ctx.Request().Context(), req.GetMchBillno())
	if err != nil {
		return c.writeServiceError(ctx, err, logMessage)
	}
	return ctx.JSON(http.StatusOK, &types.RedPacketEnvelopeResponse{RedPacket: mapper.RedPacketToProto(item)})
}
