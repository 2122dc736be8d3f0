package controller

import (
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-wxpay/app/factory"
	"github.com/vibast-solutions/ms-go-wxpay/app/gateway"
)

const maxNotifyBody = 64 << 10

type notifyHandler interface {
	HandleOrderNotify(ctx context.Context, body []byte) gateway.NotifyAck
	HandleRefundNotify(ctx context.Context, body []byte) gateway.NotifyAck
}

// NotifyController serves the gateway webhooks. It always answers 200 with an
// XML acknowledgement; a FAIL ack asks the gateway to redeliver.
type NotifyController struct {
	handler notifyHandler
	logger  logrus.FieldLogger
}

func NewNotifyController(handler notifyHandler) *NotifyController {
	return &NotifyController{
		handler: handler,
		logger:  factory.NewModuleLogger("wxpay-notify-controller"),
	}
}

func (c *NotifyController) OrderNotify(ctx echo.Context) error {
	body, err := readNotifyBody(ctx)
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Warn("Failed to read order notification")
		return c.writeAck(ctx, gateway.AckFail("unreadable body"))
	}
	return c.writeAck(ctx, c.handler.HandleOrderNotify(ctx.Request().Context(), body))
}

func (c *NotifyController) RefundNotify(ctx echo.Context) error {
	body, err := readNotifyBody(ctx)
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Warn("Failed to read refund notification")
		return c.writeAck(ctx, gateway.AckFail("unreadable body"))
	}
	return c.writeAck(ctx, c.handler.HandleRefundNotify(ctx.Request().Context(), body))
}

func (c *NotifyController) writeAck(ctx echo.Context, ack gateway.NotifyAck) error {
	return ctx.Blob(http.StatusOK, echo.MIMEApplicationXMLCharsetUTF8, ack.Bytes())
}

func readNotifyBody(ctx echo.Context) ([]byte, error) {
	defer ctx.Request().Body.Close()
	body, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxNotifyBody+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxNotifyBody {
		return nil, echo.ErrStatusRequestEntityTooLarge
	}
	return body, nil
}
