package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-wxpay/app/metrics"
	"github.com/vibast-solutions/ms-go-wxpay/app/service"
	"github.com/vibast-solutions/ms-go-wxpay/config"
)

var (
	workerMode bool
)

type jobFunc func(s *service.PaymentService, ctx context.Context) error

// jobSchedule resolves the worker interval and the optional cron spec of a job.
type jobSchedule func(cfg config.JobsConfig) (time.Duration, string)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Run background jobs",
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile stale orders, refunds, payouts and red packets with the gateway",
}

var reconcileOrdersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Re-query stale orders and reverse errored payments",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"reconcile_orders",
			func(cfg config.JobsConfig) (time.Duration, string) {
				return cfg.ReconcileOrdersInterval, cfg.ReconcileOrdersCron
			},
			func(s *service.PaymentService, ctx context.Context) error {
				return s.RunReconcileOrdersBatch(ctx)
			},
		)
	},
}

var reconcileRefundsCmd = &cobra.Command{
	Use:   "refunds",
	Short: "Re-query pending refunds and resubmit failed ones",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"reconcile_refunds",
			func(cfg config.JobsConfig) (time.Duration, string) {
				return cfg.ReconcileRefundsInterval, cfg.ReconcileRefundsCron
			},
			func(s *service.PaymentService, ctx context.Context) error {
				return s.RunReconcileRefundsBatch(ctx)
			},
		)
	},
}

var reconcilePayoutsCmd = &cobra.Command{
	Use:   "payouts",
	Short: "Re-query pending payouts and resubmit failed ones",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"reconcile_payouts",
			func(cfg config.JobsConfig) (time.Duration, string) {
				return cfg.ReconcilePayoutsInterval, cfg.ReconcilePayoutsCron
			},
			func(s *service.PaymentService, ctx context.Context) error {
				return s.RunReconcilePayoutsBatch(ctx)
			},
		)
	},
}

var reconcileRedPacketsCmd = &cobra.Command{
	Use:   "redpackets",
	Short: "Re-query pending red packets and resend failed ones",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"reconcile_redpackets",
			func(cfg config.JobsConfig) (time.Duration, string) {
				return cfg.ReconcileRedPacketsInterval, cfg.ReconcileRedPacketsCron
			},
			func(s *service.PaymentService, ctx context.Context) error {
				return s.RunReconcileRedPacketsBatch(ctx)
			},
		)
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(reconcileCmd)
	reconcileCmd.AddCommand(reconcileOrdersCmd)
	reconcileCmd.AddCommand(reconcileRefundsCmd)
	reconcileCmd.AddCommand(reconcilePayoutsCmd)
	reconcileCmd.AddCommand(reconcileRedPacketsCmd)

	jobsCmd.PersistentFlags().BoolVar(&workerMode, "worker", false, "Run continuously using the configured interval or cron spec")
}

func runCommand(name string, schedule jobSchedule, fn jobFunc) {
	app := mustCreatePaymentService()
	defer app.cleanup()

	run := func(ctx context.Context) {
		runJob(name, app.metrics, func() error { return fn(app.paymentService, ctx) })
	}

	if !workerMode {
		run(context.Background())
		return
	}

	interval, spec := schedule(app.cfg.Jobs)
	if strings.TrimSpace(spec) != "" {
		runCronWorker(name, spec, run)
		return
	}
	runWorker(name, interval, run)
}

func runWorker(name string, interval time.Duration, run func(ctx context.Context)) {
	if interval <= 0 {
		logrus.WithField("job", name).Fatal("invalid worker interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	run(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-quit:
			logrus.WithField("job", name).Info("Worker shutdown requested")
			return
		case <-ticker.C:
			run(ctx)
		}
	}
}

// runCronWorker runs the job on a cron spec; a run still in progress makes
// the next tick skip.
func runCronWorker(name, spec string, run func(ctx context.Context)) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := scheduler.AddFunc(spec, func() { run(ctx) }); err != nil {
		logrus.WithError(err).WithField("job", name).WithField("spec", spec).Fatal("invalid worker cron spec")
	}
	scheduler.Start()
	logrus.WithField("job", name).WithField("spec", spec).Info("Cron worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.WithField("job", name).Info("Worker shutdown requested")

	cancel()
	<-scheduler.Stop().Done()
}

func runJob(name string, recorder *metrics.Metrics, fn func() error) {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	recorder.JobRun(name, err)
	if err != nil {
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return
	}
	logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
}
