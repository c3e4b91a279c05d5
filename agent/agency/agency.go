/*
Package agency assembles the runtime: one wire codec over the injected
sealer, the inbound and outbound managers wired to each other thru the
dispatcher, and the mailbox underneath as the store-and-forward fallback.
Everything is explicit configuration built once at startup, there are no
ambient singletons to reach for.
*/
package agency

import (
	"context"

	"github.com/findy-network/findy-courier/agent/didcomm"
	"github.com/findy-network/findy-courier/agent/dispatch"
	"github.com/findy-network/findy-courier/agent/inbound"
	"github.com/findy-network/findy-courier/agent/mailbox"
	"github.com/findy-network/findy-courier/agent/outbound"
	"github.com/findy-network/findy-courier/agent/sec"
	"github.com/findy-network/findy-courier/agent/utils"
	"github.com/findy-network/findy-courier/agent/wire"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Deps are the external collaborators. Every field may be nil: the runtime
// then runs key-less, connection-less and still relays plaintext.
type Deps struct {
	Sealer   wire.Sealer
	Conns    dispatch.ConnResolver
	Resolver outbound.TargetsResolver
}

type Agency struct {
	Codec      *wire.Codec
	Registry   *dispatch.Registry
	Dispatcher *dispatch.Dispatcher
	Inbound    *inbound.Manager
	Outbound   *outbound.Manager
	Mailbox    *mailbox.Queue
}

// New wires the runtime together. Protocol and driver registrations happen
// after this, before Start.
func New(deps Deps) *Agency {
	sealer := deps.Sealer
	if sealer == nil {
		sealer = sec.NullSealer{}
	}

	a := &Agency{
		Codec:    wire.New(sealer),
		Registry: dispatch.NewRegistry(),
		Mailbox:  mailbox.New(),
	}
	a.Mailbox.SetTTL(utils.Settings.MailboxTTL())

	a.Dispatcher = dispatch.NewDispatcher(a.Registry,
		func(ctx context.Context, out *didcomm.Outbound) error {
			return a.Outbound.EnqueueMessage(ctx, out)
		}, deps.Conns)

	a.Inbound = inbound.NewManager(a.Codec, a.Dispatcher.Route())
	a.Inbound.SetUndeliveredSink(a.Mailbox.AddMessage)
	a.Outbound = outbound.NewManager(a.Codec, a.Inbound, a.Mailbox, deps.Resolver)
	return a
}

// Start brings the delivery loop, mailbox maintenance and every registered
// inbound driver up. The first driver failing to start aborts the whole
// startup.
func (a *Agency) Start(ctx context.Context) (err error) {
	defer err2.Handle(&err, "agency start")

	a.Outbound.Start()
	a.Mailbox.StartMaintenance(utils.Settings.MaintenanceInterval())

	try.To(a.Inbound.Start(ctx))

	glog.V(1).Infof("agency up, %d message type(s) registered",
		len(a.Registry.Types()))
	return nil
}

// Stop tears everything down in reverse order. Outstanding delivery
// attempts are drained before Stop returns.
func (a *Agency) Stop() error {
	err := a.Inbound.Stop()
	a.Outbound.Stop()
	a.Mailbox.StopMaintenance()
	return err
}
