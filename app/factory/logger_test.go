package factory

import (
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

func TestNewModuleLogger(t *testing.T) {
	logger := NewModuleLogger("wxpay-controller")
	if logger == nil {
		t.Fatal("expected logger")
	}
}

func TestLoggerWithContextAddsRequestID(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	logger := LoggerWithContext(NewModuleLogger("wxpay-controller"), ctx)
	if logger == nil {
		t.Fatal("expected logger with context")
	}
}

func TestLoggerWithContextFallsBackToResponseHeader(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("POST", "/orders", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Response().Header().Set(echo.HeaderXRequestID, " generated-1 ")

	entry, ok := LoggerWithContext(NewModuleLogger("wxpay-controller"), ctx).(*logrus.Entry)
	if !ok {
		t.Fatal("expected a logrus entry")
	}
	if entry.Data["request_id"] != "generated-1" || entry.Data["module"] != "wxpay-controller" {
		t.Fatalf("unexpected logger fields: %v", entry.Data)
	}
}

func TestLoggerWithContextWithoutRequestID(t *testing.T) {
	base := NewModuleLogger("wxpay-notify")
	if LoggerWithContext(base, nil) != base {
		t.Fatal("expected the base logger for a nil context")
	}

	e := echo.New()
	ctx := e.NewContext(httptest.NewRequest("GET", "/health", nil), httptest.NewRecorder())
	if LoggerWithContext(base, ctx) != base {
		t.Fatal("expected the base logger without a request id")
	}
}
