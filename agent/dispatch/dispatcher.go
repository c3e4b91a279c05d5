package dispatch

import (
	"context"

	"github.com/findy-network/findy-courier/agent/decorator"
	"github.com/findy-network/findy-courier/agent/didcomm"
	"github.com/findy-network/findy-courier/agent/pltype"
	"github.com/findy-network/findy-courier/agent/sesn"
	"github.com/findy-network/findy-courier/agent/utils"
	"github.com/golang/glog"
	"github.com/lainio/err2"
)

// ConnResolver correlates a message to an existing connection by the keys
// on its receipt. Best effort: not finding one is normal for the first
// message of a new connection.
type ConnResolver interface {
	FindConnection(senderVerKey, recipientVerKey string) (connectionID string, found bool)
}

// TaskErrFunc is the supervision hook for handler failures. Parse and
// resolve failures never reach it, they become problem reports.
type TaskErrFunc func(err error, in *didcomm.Inbound)

type Dispatcher struct {
	registry *Registry
	send     SendFunc
	conns    ConnResolver
	onErr    TaskErrFunc
}

func NewDispatcher(registry *Registry, send SendFunc, conns ConnResolver) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		send:     send,
		conns:    conns,
		onErr: func(err error, in *didcomm.Inbound) {
			glog.Errorf("handler error for %s: %v", in.Fields.Type(), err)
		},
	}
}

// SetTaskErr replaces the default supervision hook.
func (d *Dispatcher) SetTaskErr(fn TaskErrFunc) {
	d.onErr = fn
}

// Route returns the inbound binding for sessions. Every message gets its
// own goroutine, detached from the caller's cancellation, so handling one
// message never blocks intake of the next.
func (d *Dispatcher) Route() sesn.InboundFunc {
	return func(ctx context.Context, in *didcomm.Inbound) {
		go d.run(context.WithoutCancel(ctx), in)
	}
}

func (d *Dispatcher) run(ctx context.Context, in *didcomm.Inbound) {
	defer in.MarkProcessed()
	defer err2.Catch(func(err error) error {
		d.onErr(err, in)
		return nil
	})

	if err := d.Dispatch(ctx, in); err != nil {
		d.onErr(err, in)
	}
}

// Dispatch resolves in to a handler and runs it. Unknown type and
// constructor failure don't raise, they answer with a thread correlated
// problem report; handler errors propagate to the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, in *didcomm.Inbound) error {
	receipt := in.Receipt

	connectionID := ""
	if d.conns != nil {
		if id, found := d.conns.FindConnection(
			receipt.SenderVerKey, receipt.RecipientVerKey); found {
			connectionID = id
			in.ConnectionID = id
		}
	}

	typ := in.Fields.Type()
	reg, ok := d.registry.resolve(typ)
	if !ok {
		glog.Warningf("no handler for message type %q", typ)
		d.reportProblem(ctx, in, "unrecognized message type "+typ)
		return nil
	}

	msg, err := reg.ctor(in.Fields)
	if err != nil {
		glog.Warningf("cannot build %s: %v", typ, err)
		d.reportProblem(ctx, in, "malformed message")
		return nil
	}

	responder := &Responder{
		send:         d.send,
		inbound:      in,
		connectionID: connectionID,
	}
	return reg.handler(ctx, Packet{
		Inbound:      in,
		Msg:          msg,
		ConnectionID: connectionID,
	}, responder)
}

// reportProblem sends a problem report back to the sender, correlated by
// thread id when we have one. Best effort only.
func (d *Dispatcher) reportProblem(ctx context.Context, in *didcomm.Inbound, explain string) {
	receipt := in.Receipt
	if receipt.SenderVerKey == "" {
		glog.V(3).Infoln("no sender key, skipping problem report")
		return
	}

	report := didcomm.Fields{
		pltype.FieldTypeV1: pltype.NotificationProblemReport,
		pltype.FieldIDV1:   utils.UUID(),
		"description":      map[string]any{"en": explain},
	}
	if receipt.ThreadID != "" {
		report[pltype.DecoratorThread] = decorator.CheckThread(nil, receipt.ThreadID)
	}

	out := &didcomm.Outbound{
		Fields:          report,
		ReplySessionID:  in.SessionID,
		ReplyThreadID:   receipt.ThreadID,
		ReplyToVerKey:   receipt.SenderVerKey,
		ReplyFromVerKey: receipt.RecipientVerKey,
		ToSessionOnly:   true,
	}
	if err := d.send(ctx, out); err != nil {
		glog.Warningln("cannot send problem report:", err)
	}
}
