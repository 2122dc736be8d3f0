package config

import (
	"os"
	"testing"
	"time"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("setenv %s failed: %v", key, err)
	}
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	_ = os.Unsetenv(key)
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		}
	})
}

func TestLoadRequiresMySQLDSN(t *testing.T) {
	unsetEnv(t, "MYSQL_DSN")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing MYSQL_DSN")
	}
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	setEnv(t, "MYSQL_DSN", "root:root@tcp(localhost:3306)/wxpay?parseTime=true")
	setEnv(t, "APP_SERVICE_NAME", "wxpay-test")
	setEnv(t, "HTTP_PORT", "8181")
	setEnv(t, "GRPC_PORT", "9191")
	setEnv(t, "MYSQL_MAX_OPEN_CONNS", "20")
	setEnv(t, "MYSQL_MAX_IDLE_CONNS", "8")
	setEnv(t, "MYSQL_CONN_MAX_LIFETIME_MINUTES", "40")
	setEnv(t, "WXPAY_APP_ID", "wx2421b1c4370ec43b")
	setEnv(t, "WXPAY_MCH_ID", "10000100")
	setEnv(t, "WXPAY_NOTIFY_BASE_URL", "https://merchant.example.com/")
	setEnv(t, "WXPAY_HTTP_TIMEOUT_SECONDS", "4")
	setEnv(t, "WXPAY_REFUND_DECRYPT_MODE", "cbc")
	setEnv(t, "WXPAY_RECONCILE_STALE_AFTER_MINUTES", "13")
	setEnv(t, "WXPAY_RECONCILE_BATCH_SIZE", "99")
	setEnv(t, "WXPAY_REVERSAL_BACKOFF_SECONDS", "2")
	setEnv(t, "REDIS_LOCK_RETRY_INTERVAL_MS", "250")
	setEnv(t, "KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,,")
	setEnv(t, "WXPAY_RECONCILE_ORDERS_CRON", "*/2 * * * *")
	unsetEnv(t, "REDIS_ADDR")
	unsetEnv(t, "WXPAY_API_BASE_URL")
	unsetEnv(t, "WXPAY_REVERSAL_MAX_ATTEMPTS")
	unsetEnv(t, "WXPAY_RECONCILE_REFUNDS_CRON")
	unsetEnv(t, "WXPAY_RECONCILE_ORDERS_INTERVAL_MINUTES")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.App.ServiceName != "wxpay-test" {
		t.Fatalf("unexpected app service name: %s", cfg.App.ServiceName)
	}
	if cfg.HTTP.Port != "8181" || cfg.GRPC.Port != "9191" {
		t.Fatalf("unexpected ports: http=%s grpc=%s", cfg.HTTP.Port, cfg.GRPC.Port)
	}
	if cfg.MySQL.MaxOpenConns != 20 || cfg.MySQL.MaxIdleConns != 8 {
		t.Fatalf("unexpected mysql pool config: %+v", cfg.MySQL)
	}
	if cfg.MySQL.ConnMaxLifetime != 40*time.Minute {
		t.Fatalf("unexpected mysql lifetime: %v", cfg.MySQL.ConnMaxLifetime)
	}
	if cfg.WxPay.AppID != "wx2421b1c4370ec43b" || cfg.WxPay.MchID != "10000100" {
		t.Fatalf("unexpected wxpay identity: %+v", cfg.WxPay)
	}
	if cfg.WxPay.APIBaseURL != "https://api.mch.weixin.qq.com" {
		t.Fatalf("unexpected api base url: %s", cfg.WxPay.APIBaseURL)
	}
	if cfg.WxPay.HTTPTimeout != 4*time.Second || cfg.WxPay.RefundDecryptMode != "cbc" {
		t.Fatalf("unexpected wxpay transport config: %+v", cfg.WxPay)
	}
	if got := cfg.WxPay.OrderNotifyURL(); got != "https://merchant.example.com/webhooks/wxpay/order-notify" {
		t.Fatalf("unexpected order notify url: %s", got)
	}
	if got := cfg.WxPay.RefundNotifyURL(); got != "https://merchant.example.com/webhooks/wxpay/refund-notify" {
		t.Fatalf("unexpected refund notify url: %s", got)
	}
	if cfg.Reconcile.StaleAfter != 13*time.Minute || cfg.Reconcile.BatchSize != 99 {
		t.Fatalf("unexpected reconcile config: %+v", cfg.Reconcile)
	}
	if cfg.Reconcile.ReversalMaxAttempts != 3 || cfg.Reconcile.ReversalBackoff != 2*time.Second {
		t.Fatalf("unexpected reversal config: %+v", cfg.Reconcile)
	}
	if cfg.Redis.Addr != "" || cfg.Redis.LockRetryInterval != 250*time.Millisecond {
		t.Fatalf("unexpected redis config: %+v", cfg.Redis)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "kafka-2:9092" {
		t.Fatalf("unexpected kafka brokers: %v", cfg.Kafka.Brokers)
	}
	if cfg.Jobs.ReconcileOrdersCron != "*/2 * * * *" || cfg.Jobs.ReconcileRefundsCron != "" {
		t.Fatalf("unexpected job cron specs: %+v", cfg.Jobs)
	}
	if cfg.Jobs.ReconcileOrdersInterval != 2*time.Minute {
		t.Fatalf("unexpected orders interval: %v", cfg.Jobs.ReconcileOrdersInterval)
	}
}

func TestNotifyURLWithoutBase(t *testing.T) {
	cfg := WxPayConfig{}
	if cfg.OrderNotifyURL() != "" || cfg.RefundNotifyURL() != "" {
		t.Fatal("expected empty notify urls without a base url")
	}
}
