// Package courier has the start command logic of the courier service:
// validating the configuration and building the running agency from it.
package courier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/findy-network/findy-courier/agent/agency"
	"github.com/findy-network/findy-courier/agent/didcomm"
	"github.com/findy-network/findy-courier/agent/inbound"
	"github.com/findy-network/findy-courier/agent/trans"
	"github.com/findy-network/findy-courier/agent/utils"
	"github.com/findy-network/findy-courier/protocol/trustping"
	"github.com/findy-network/findy-courier/server"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

type Cmd struct {
	HTTPAddr string
	WSAddr   string
	HostAddr string

	Timeout       time.Duration
	MaxRetryCount int
	RetryDelay    time.Duration
	MaxInFlight   int

	MailboxTTL          time.Duration
	MaintenanceInterval time.Duration

	PlaintextFallback bool
	AcceptUndelivered bool

	VersionInfo string
}

func (c *Cmd) Validate() error {
	if c.HTTPAddr == "" && c.WSAddr == "" {
		return errors.New("at least one listen address must be given")
	}
	if c.HostAddr == "" {
		return errors.New("host address cannot be empty")
	}
	if c.MaxRetryCount <= 0 {
		return errors.New("retry count must be positive")
	}
	if c.MaxInFlight <= 0 {
		return errors.New("in-flight limit must be positive")
	}
	return nil
}

// Setup moves the validated configuration into the settings hub.
func (c *Cmd) Setup() {
	utils.Settings.SetHostAddr(c.HostAddr)
	utils.Settings.SetVersionInfo(c.VersionInfo)
	if c.Timeout != 0 {
		utils.Settings.SetTimeout(c.Timeout)
	}
	utils.Settings.SetMaxRetryCount(c.MaxRetryCount)
	if c.RetryDelay != 0 {
		utils.Settings.SetRetryDelay(c.RetryDelay)
	}
	utils.Settings.SetMaxInFlight(c.MaxInFlight)
	if c.MailboxTTL != 0 {
		utils.Settings.SetMailboxTTL(c.MailboxTTL)
	}
	if c.MaintenanceInterval != 0 {
		utils.Settings.SetMaintenanceInterval(c.MaintenanceInterval)
	}
	utils.Settings.SetPlaintextFallback(c.PlaintextFallback)
}

// Exec builds the agency, registers protocols and transports per the
// configuration and blocks until the process gets a termination signal.
func (c *Cmd) Exec(deps agency.Deps) (err error) {
	defer err2.Handle(&err, "courier exec")

	try.To(c.Validate())
	c.Setup()

	a := agency.New(deps)

	try.To(trustping.Register(a.Registry))

	a.Inbound.AddFactory("http", server.NewHTTPFactory())
	a.Inbound.AddFactory("ws", server.NewWSFactory())
	if c.HTTPAddr != "" {
		try.To(a.Inbound.Register(inbound.DriverConfig{
			Scheme: "http", Addr: c.HTTPAddr,
			AcceptUndelivered: c.AcceptUndelivered,
		}))
	}
	if c.WSAddr != "" {
		try.To(a.Inbound.Register(inbound.DriverConfig{
			Scheme: "ws", Addr: c.WSAddr,
			AcceptUndelivered: c.AcceptUndelivered,
		}))
	}

	httpDriver := trans.NewHTTP()
	try.To(a.Outbound.RegisterDriver("http", httpDriver))
	try.To(a.Outbound.RegisterDriver("https", httpDriver))
	try.To(a.Outbound.RegisterDriver("ws", trans.NewWS()))
	a.Outbound.SetUndelivered(func(msg *didcomm.Outbound, cause error) {
		glog.Errorf("UNDELIVERED mail for %s: %v", msg.ReplyToVerKey, cause)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	try.To(a.Start(ctx))

	fmt.Println(utils.Settings.VersionInfo())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	glog.V(1).Infoln("shutdown signal")

	return a.Stop()
}
