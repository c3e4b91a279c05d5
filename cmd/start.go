package cmd

import (
	"time"

	"github.com/findy-network/findy-courier/agent/agency"
	"github.com/findy-network/findy-courier/agent/utils"
	"github.com/findy-network/findy-courier/cmds/courier"
	"github.com/lainio/err2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var startFlags = courier.Cmd{}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the courier service",
	PreRunE: func(cmd *cobra.Command, args []string) (err error) {
		defer err2.Handle(&err, "start cmd")
		return startFlags.Validate()
	},
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		defer err2.Handle(&err, "start cmd")
		startFlags.VersionInfo = "Findy courier v. " + utils.Version
		return startFlags.Exec(agency.Deps{})
	},
}

func init() {
	flags := startCmd.Flags()
	flags.StringVar(&startFlags.HTTPAddr, "http-addr", ":8080",
		"HTTP listen address, empty disables")
	flags.StringVar(&startFlags.WSAddr, "ws-addr", "",
		"WebSocket listen address, empty disables")
	flags.StringVar(&startFlags.HostAddr, "host-addr", "localhost",
		"host address seen from the internet")
	flags.DurationVar(&startFlags.Timeout, "timeout", utils.HTTPReqTimeout,
		"transport I/O timeout")
	flags.IntVar(&startFlags.MaxRetryCount, "retry-max", 4,
		"delivery attempts before giving up")
	flags.DurationVar(&startFlags.RetryDelay, "retry-delay", 10*time.Second,
		"base delay between delivery retries")
	flags.IntVar(&startFlags.MaxInFlight, "max-in-flight", 16,
		"concurrent delivery attempt bound")
	flags.DurationVar(&startFlags.MailboxTTL, "mailbox-ttl", 7*24*time.Hour,
		"how long undelivered mail waits for pickup")
	flags.DurationVar(&startFlags.MaintenanceInterval, "maintenance-interval",
		time.Hour, "mailbox sweep interval")
	flags.BoolVar(&startFlags.PlaintextFallback, "plaintext-fallback", true,
		"keep failed-decrypt bytes as plaintext")
	flags.BoolVar(&startFlags.AcceptUndelivered, "accept-undelivered", true,
		"park undeliverable mail in the mailbox for pickup")

	try0(viper.BindPFlags(flags))
	rootCmd.AddCommand(startCmd)
}
