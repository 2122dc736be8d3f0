package cmd

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	authclient "github.com/vibast-solutions/lib-go-auth/client"
	authmiddleware "github.com/vibast-solutions/lib-go-auth/middleware"
	authlibservice "github.com/vibast-solutions/lib-go-auth/service"
	"github.com/vibast-solutions/ms-go-wxpay/app/controller"
	"github.com/vibast-solutions/ms-go-wxpay/app/events"
	"github.com/vibast-solutions/ms-go-wxpay/app/gateway"
	wxpaygrpc "github.com/vibast-solutions/ms-go-wxpay/app/grpc"
	"github.com/vibast-solutions/ms-go-wxpay/app/lock"
	"github.com/vibast-solutions/ms-go-wxpay/app/metrics"
	"github.com/vibast-solutions/ms-go-wxpay/app/repository"
	"github.com/vibast-solutions/ms-go-wxpay/app/service"
	"github.com/vibast-solutions/ms-go-wxpay/app/types"
	"github.com/vibast-solutions/ms-go-wxpay/config"

	"github.com/IBM/sarama"
	_ "github.com/go-sql-driver/mysql"
	rlock "github.com/gotomicro/redis-lock"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const metricsPath = "/metrics"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  "Start both HTTP (Echo) and gRPC servers for the wxpay service, including the gateway notification webhooks.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	app := mustCreatePaymentService()
	defer app.cleanup()
	cfg := app.cfg

	wxpayController := controller.NewWxPayController(app.paymentService)
	notifyController := controller.NewNotifyController(app.paymentService)
	grpcWxPayServer := wxpaygrpc.NewServer(app.paymentService)

	authGRPCClient, err := authclient.NewGRPCClientFromAddr(context.Background(), cfg.InternalEndpoints.AuthGRPCAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize auth gRPC client")
	}
	defer authGRPCClient.Close()

	internalAuthService := authlibservice.NewInternalAuthService(authGRPCClient)
	echoInternalAuthMiddleware := authmiddleware.NewEchoInternalAuthMiddleware(internalAuthService)
	grpcInternalAuthMiddleware := authmiddleware.NewGRPCInternalAuthMiddleware(internalAuthService)

	e := setupHTTPServer(wxpayController, notifyController, echoInternalAuthMiddleware.RequireInternalAccess(cfg.App.ServiceName))
	grpcSrv, lis := setupGRPCServer(cfg, grpcWxPayServer, grpcInternalAuthMiddleware, cfg.App.ServiceName)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	go func() {
		logrus.WithField("addr", lis.Addr().String()).Info("Starting gRPC server")
		if err := grpcSrv.Serve(lis); err != nil {
			logrus.WithError(err).Fatal("gRPC server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}
	grpcSrv.GracefulStop()

	logrus.Info("Server stopped")
}

func setupHTTPServer(
	wxpayController *controller.WxPayController,
	notifyController *controller.NotifyController,
	internalAuth echo.MiddlewareFunc,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
				"request_id": v.RequestID,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())

	// The gateway calls the webhooks without request ids or api keys, and
	// metrics are scraped without them.
	public := []string{config.OrderNotifyPath, config.RefundNotifyPath, metricsPath}
	e.Use(skipPaths(requireRequestID(), public...))
	e.Use(skipPaths(internalAuth, public...))

	e.GET("/health", wxpayController.Health)
	e.GET(metricsPath, echo.WrapHandler(promhttp.Handler()))

	e.POST(config.OrderNotifyPath, notifyController.OrderNotify)
	e.POST(config.RefundNotifyPath, notifyController.RefundNotify)

	orders := e.Group("/orders")
	orders.POST("", wxpayController.CreateOrder)
	orders.GET("/:out_trade_no", wxpayController.GetOrder)
	orders.PATCH("/:out_trade_no", wxpayController.UpdateOrder)
	orders.POST("/:out_trade_no/place", wxpayController.PlaceOrder)
	orders.POST("/:out_trade_no/query", wxpayController.QueryOrder)
	orders.POST("/:out_trade_no/cancel", wxpayController.CancelOrder)
	orders.POST("/:out_trade_no/reconcile", wxpayController.ReconcileOrder)
	orders.GET("/:out_trade_no/jsapi-params", wxpayController.JSAPIParams)
	orders.GET("/:out_trade_no/refunds", wxpayController.ListRefunds)
	orders.POST("/:out_trade_no/refunds", wxpayController.CreateRefund)

	refunds := e.Group("/refunds")
	refunds.POST("", wxpayController.CreateRefund)
	refunds.GET("/:out_refund_no", wxpayController.GetRefund)
	refunds.POST("/:out_refund_no/apply", wxpayController.ApplyForRefund)
	refunds.POST("/:out_refund_no/query", wxpayController.QueryRefund)
	refunds.POST("/:out_refund_no/reconcile", wxpayController.ReconcileRefund)

	payouts := e.Group("/payouts")
	payouts.POST("", wxpayController.CreatePayout)
	payouts.GET("/:partner_trade_no", wxpayController.GetPayout)
	payouts.POST("/:partner_trade_no/send", wxpayController.SendPayout)
	payouts.POST("/:partner_trade_no/query", wxpayController.QueryPayout)
	payouts.POST("/:partner_trade_no/reconcile", wxpayController.ReconcilePayout)

	redPackets := e.Group("/red-packets")
	redPackets.POST("", wxpayController.CreateRedPacket)
	redPackets.GET("/:mch_billno", wxpayController.GetRedPacket)
	redPackets.POST("/:mch_billno/send", wxpayController.SendRedPacket)
	redPackets.POST("/:mch_billno/query", wxpayController.QueryRedPacket)
	redPackets.POST("/:mch_billno/reconcile", wxpayController.ReconcileRedPacket)

	return e
}

func requireRequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			requestID := strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderXRequestID))
			if requestID == "" {
				return ctx.JSON(http.StatusBadRequest, &types.ErrorResponse{Error: "x-request-id header is required"})
			}
			ctx.Response().Header().Set(echo.HeaderXRequestID, requestID)
			return next(ctx)
		}
	}
}

// skipPaths runs middleware for every route except the given route paths.
func skipPaths(middleware echo.MiddlewareFunc, paths ...string) echo.MiddlewareFunc {
	skipped := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		skipped[path] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		wrapped := middleware(next)
		return func(ctx echo.Context) error {
			if _, ok := skipped[ctx.Path()]; ok {
				return next(ctx)
			}
			return wrapped(ctx)
		}
	}
}

func setupGRPCServer(
	cfg *config.Config,
	wxpayServer *wxpaygrpc.Server,
	internalAuthMiddleware *authmiddleware.GRPCInternalAuthMiddleware,
	appServiceName string,
) (*grpc.Server, net.Listener) {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen on gRPC port")
	}

	grpcSrv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			wxpaygrpc.RecoveryInterceptor(),
			wxpaygrpc.RequestIDInterceptor(),
			wxpaygrpc.LoggingInterceptor(),
			internalAuthMiddleware.UnaryRequireInternalAccess(appServiceName),
		),
	)
	wxpaygrpc.RegisterWxPayServiceServer(grpcSrv, wxpayServer)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(wxpaygrpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)

	return grpcSrv, lis
}

type application struct {
	cfg            *config.Config
	paymentService *service.PaymentService
	metrics        *metrics.Metrics
	cleanup        func()
}

func mustCreatePaymentService() *application {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}
	closers = append(closers, func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	})

	collectors := metrics.New(prometheus.DefaultRegisterer)

	gatewayClient, err := gateway.NewClient(gateway.Config{
		AppID:           cfg.WxPay.AppID,
		MchID:           cfg.WxPay.MchID,
		PayKey:          cfg.WxPay.PayKey,
		CertPath:        cfg.WxPay.CertPath,
		KeyPath:         cfg.WxPay.KeyPath,
		NotifyURL:       cfg.WxPay.OrderNotifyURL(),
		RefundNotifyURL: cfg.WxPay.RefundNotifyURL(),
		BaseURL:         cfg.WxPay.APIBaseURL,
		HTTPTimeout:     cfg.WxPay.HTTPTimeout,
	}, gateway.WithObserver(collectors))
	if err != nil {
		cleanup()
		logrus.WithError(err).Fatal("Failed to initialize payment gateway client")
	}

	locker, closeLocker := mustCreateLocker(cfg.Redis)
	closers = append(closers, closeLocker)

	fulfiller, closeFulfiller := mustCreateFulfiller(cfg.Kafka)
	closers = append(closers, closeFulfiller)

	paymentService := service.NewPaymentService(service.Dependencies{
		Gateway:    gatewayClient,
		Orders:     repository.NewOrderRepository(db),
		Refunds:    repository.NewRefundRepository(db),
		Payouts:    repository.NewPayoutRepository(db),
		RedPackets: repository.NewRedPacketRepository(db),
		Events:     repository.NewEventRepository(db),
		Callbacks:  repository.NewCallbackRepository(db),
		Locker:     locker,
		Fulfiller:  fulfiller,
		Metrics:    collectors,
	}, cfg.WxPay, cfg.Reconcile)

	return &application{
		cfg:            cfg,
		paymentService: paymentService,
		metrics:        collectors,
		cleanup:        cleanup,
	}
}

// mustCreateLocker returns the Redis locker when Redis is configured and an
// in-process locker otherwise.
func mustCreateLocker(cfg config.RedisConfig) (lock.Locker, func()) {
	if strings.TrimSpace(cfg.Addr) == "" {
		logrus.Info("Redis not configured, using in-process apply lock")
		return lock.NewLocalLocker(), func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		logrus.WithError(err).Fatal("Failed to ping redis")
	}

	locker := lock.NewRedisLocker(rlock.NewClient(rdb), lock.RedisLockerConfig{
		Expiration:    cfg.LockTTL,
		RetryInterval: cfg.LockRetryInterval,
		MaxRetries:    int(cfg.LockTimeout / max(cfg.LockRetryInterval, time.Millisecond)),
		Timeout:       cfg.LockTimeout,
	})
	return locker, func() {
		if err := rdb.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close redis client")
		}
	}
}

// mustCreateFulfiller publishes paid orders to Kafka when brokers are
// configured and only logs them otherwise.
func mustCreateFulfiller(cfg config.KafkaConfig) (service.Fulfiller, func()) {
	if len(cfg.Brokers) == 0 {
		logrus.Info("Kafka not configured, paid orders are only logged")
		return events.NewLogFulfiller(), func() {}
	}

	client, err := events.NewKafkaClient(cfg.Brokers, cfg.ClientID)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to kafka")
	}
	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		logrus.WithError(err).Fatal("Failed to create kafka producer")
	}

	publisher := events.NewFulfillmentPublisher(producer, cfg.FulfillmentTopic)
	return publisher, func() {
		if err := publisher.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close kafka producer")
		}
		if err := client.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close kafka client")
		}
	}
}
