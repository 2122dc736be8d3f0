package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	OrderNotifyPath  = "/webhooks/wxpay/order-notify"
	RefundNotifyPath = "/webhooks/wxpay/refund-notify"
)

type Config struct {
	App               AppConfig
	HTTP              ServerConfig
	GRPC              ServerConfig
	MySQL             MySQLConfig
	Log               LogConfig
	InternalEndpoints InternalEndpointsConfig
	WxPay             WxPayConfig
	Redis             RedisConfig
	Kafka             KafkaConfig
	Reconcile         ReconcileConfig
	Jobs              JobsConfig
}

type AppConfig struct {
	ServiceName string
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type InternalEndpointsConfig struct {
	AuthGRPCAddr string
}

type WxPayConfig struct {
	AppID             string
	MchID             string
	PayKey            string
	CertPath          string
	KeyPath           string
	NotifyBaseURL     string
	APIBaseURL        string
	HTTPTimeout       time.Duration
	RefundDecryptMode string
	APITicket         string
}

// OrderNotifyURL is the payment result callback sent with unified orders.
func (c WxPayConfig) OrderNotifyURL() string {
	return notifyURL(c.NotifyBaseURL, OrderNotifyPath)
}

func (c WxPayConfig) RefundNotifyURL() string {
	return notifyURL(c.NotifyBaseURL, RefundNotifyPath)
}

func notifyURL(base, path string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return ""
	}
	return base + path
}

// RedisConfig enables the distributed apply lock when Addr is set.
type RedisConfig struct {
	Addr              string
	Password          string
	DB                int
	LockTTL           time.Duration
	LockRetryInterval time.Duration
	LockTimeout       time.Duration
}

// KafkaConfig enables fulfillment publishing when Brokers is not empty.
type KafkaConfig struct {
	Brokers          []string
	ClientID         string
	FulfillmentTopic string
}

type ReconcileConfig struct {
	StaleAfter          time.Duration
	BatchSize           int32
	Concurrency         int
	ReversalMaxAttempts int
	ReversalBackoff     time.Duration
}

// JobsConfig holds worker intervals. A non-empty cron spec takes precedence
// over the interval of the same job.
type JobsConfig struct {
	ReconcileOrdersInterval     time.Duration
	ReconcileRefundsInterval    time.Duration
	ReconcilePayoutsInterval    time.Duration
	ReconcileRedPacketsInterval time.Duration

	ReconcileOrdersCron     string
	ReconcileRefundsCron    string
	ReconcilePayoutsCron    string
	ReconcileRedPacketsCron string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "wxpay-service"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		GRPC: ServerConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnv("GRPC_PORT", "9090"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getIntEnv("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getIntEnv("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getIntEnv("LOG_MAX_AGE_DAYS", 30),
		},
		InternalEndpoints: InternalEndpointsConfig{
			AuthGRPCAddr: getEnv("AUTH_SERVICE_GRPC_ADDR", "localhost:9090"),
		},
		WxPay: WxPayConfig{
			AppID:             getEnv("WXPAY_APP_ID", ""),
			MchID:             getEnv("WXPAY_MCH_ID", ""),
			PayKey:            getEnv("WXPAY_PAY_KEY", ""),
			CertPath:          getEnv("WXPAY_CERT_PATH", ""),
			KeyPath:           getEnv("WXPAY_KEY_PATH", ""),
			NotifyBaseURL:     getEnv("WXPAY_NOTIFY_BASE_URL", ""),
			APIBaseURL:        getEnv("WXPAY_API_BASE_URL", "https://api.mch.weixin.qq.com"),
			HTTPTimeout:       getSecondsEnv("WXPAY_HTTP_TIMEOUT_SECONDS", 10*time.Second),
			RefundDecryptMode: getEnv("WXPAY_REFUND_DECRYPT_MODE", "ecb"),
			APITicket:         getEnv("WXPAY_API_TICKET", ""),
		},
		Redis: RedisConfig{
			Addr:              getEnv("REDIS_ADDR", ""),
			Password:          getEnv("REDIS_PASSWORD", ""),
			DB:                getIntEnv("REDIS_DB", 0),
			LockTTL:           getSecondsEnv("REDIS_LOCK_TTL_SECONDS", 30*time.Second),
			LockRetryInterval: getMillisecondsEnv("REDIS_LOCK_RETRY_INTERVAL_MS", 100*time.Millisecond),
			LockTimeout:       getSecondsEnv("REDIS_LOCK_TIMEOUT_SECONDS", time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:          getListEnv("KAFKA_BROKERS"),
			ClientID:         getEnv("KAFKA_CLIENT_ID", "wxpay-service"),
			FulfillmentTopic: getEnv("KAFKA_FULFILLMENT_TOPIC", "wxpay_order_paid"),
		},
		Reconcile: ReconcileConfig{
			StaleAfter:          getMinutesEnv("WXPAY_RECONCILE_STALE_AFTER_MINUTES", 5*time.Minute),
			BatchSize:           int32(getIntEnv("WXPAY_RECONCILE_BATCH_SIZE", 100)),
			Concurrency:         getIntEnv("WXPAY_RECONCILE_CONCURRENCY", 4),
			ReversalMaxAttempts: getIntEnv("WXPAY_REVERSAL_MAX_ATTEMPTS", 3),
			ReversalBackoff:     getSecondsEnv("WXPAY_REVERSAL_BACKOFF_SECONDS", 5*time.Second),
		},
		Jobs: JobsConfig{
			ReconcileOrdersInterval:     getMinutesEnv("WXPAY_RECONCILE_ORDERS_INTERVAL_MINUTES", 2*time.Minute),
			ReconcileRefundsInterval:    getMinutesEnv("WXPAY_RECONCILE_REFUNDS_INTERVAL_MINUTES", 5*time.Minute),
			ReconcilePayoutsInterval:    getMinutesEnv("WXPAY_RECONCILE_PAYOUTS_INTERVAL_MINUTES", 5*time.Minute),
			ReconcileRedPacketsInterval: getMinutesEnv("WXPAY_RECONCILE_REDPACKETS_INTERVAL_MINUTES", 10*time.Minute),
			ReconcileOrdersCron:         getEnv("WXPAY_RECONCILE_ORDERS_CRON", ""),
			ReconcileRefundsCron:        getEnv("WXPAY_RECONCILE_REFUNDS_CRON", ""),
			ReconcilePayoutsCron:        getEnv("WXPAY_RECONCILE_PAYOUTS_CRON", ""),
			ReconcileRedPacketsCron:     getEnv("WXPAY_RECONCILE_REDPACKETS_CRON", ""),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	items := make([]string, 0)
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

func getMillisecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.Atoi(value); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}
