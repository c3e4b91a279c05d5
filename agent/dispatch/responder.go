package dispatch

import (
	"context"

	"github.com/findy-network/findy-courier/agent/decorator"
	"github.com/findy-network/findy-courier/agent/didcomm"
	"github.com/findy-network/findy-courier/agent/pltype"
	"github.com/findy-network/findy-courier/agent/utils"
)

// SendFunc hands an outbound message to the delivery engine. The outbound
// manager's enqueue is the production binding.
type SendFunc func(ctx context.Context, out *didcomm.Outbound) error

// Responder lets a handler reply without knowing anything about transports.
// It's bound to the inbound message it answers, so reply correlation and
// return route matching come for free.
type Responder struct {
	send         SendFunc
	inbound      *didcomm.Inbound
	connectionID string
}

// SendFields replies with plaintext fields. The thread decorator is filled
// from the inbound receipt when the fields don't carry one.
func (r *Responder) SendFields(ctx context.Context, f didcomm.Fields) error {
	if _, ok := f[pltype.FieldIDV1]; !ok {
		f[pltype.FieldIDV1] = utils.UUID()
	}
	if _, ok := f[pltype.DecoratorThread]; !ok && r.inbound.Receipt.ThreadID != "" {
		f[pltype.DecoratorThread] = decorator.CheckThread(nil, r.inbound.Receipt.ThreadID)
	}
	return r.Send(ctx, &didcomm.Outbound{Fields: f})
}

// Send fills the reply correlation of out from the inbound message and
// hands it to the delivery engine. Explicit values in out win.
func (r *Responder) Send(ctx context.Context, out *didcomm.Outbound) error {
	receipt := r.inbound.Receipt
	if out.ReplySessionID == "" {
		out.ReplySessionID = r.inbound.SessionID
	}
	if out.ReplyThreadID == "" {
		out.ReplyThreadID = receipt.ThreadID
	}
	if out.ReplyToVerKey == "" {
		out.ReplyToVerKey = receipt.SenderVerKey
	}
	if out.ReplyFromVerKey == "" {
		out.ReplyFromVerKey = receipt.RecipientVerKey
	}
	if out.ConnectionID == "" {
		out.ConnectionID = r.connectionID
	}
	return r.send(ctx, out)
}

// ConnectionID returns the correlated connection or empty when the message
// arrived outside any known connection.
func (r *Responder) ConnectionID() string {
	return r.connectionID
}
