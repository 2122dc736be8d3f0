package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "wxpay",
	Short: "WeChat Pay gateway microservice",
	Long:  "A payments microservice for WeChat Pay orders, refunds, payouts and red packets, gateway notifications and reconciliation jobs.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
