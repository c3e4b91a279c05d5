package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/findy-network/findy-courier/agent/decorator"
	"github.com/findy-network/findy-courier/agent/didcomm"
	"github.com/findy-network/findy-courier/agent/pltype"
	"github.com/stretchr/testify/require"
)

func passCtor(f didcomm.Fields) (didcomm.Fields, error) {
	return f, nil
}

func newInbound(f didcomm.Fields, senderKey string) *didcomm.Inbound {
	receipt := &didcomm.Receipt{
		SenderVerKey:    senderKey,
		RecipientVerKey: "MY_KEY",
		ThreadID:        f.ThreadID(),
		RecvTime:        time.Now(),
	}
	return didcomm.NewInbound(f, receipt, "sid-1", "test")
}

func TestRegistry_DoubleRegistration(t *testing.T) {
	r := NewRegistry()
	noop := func(context.Context, Packet, *Responder) error { return nil }

	require.NoError(t, r.Register("test/1.0/ping", passCtor, noop))
	err := r.Register("test/1.0/ping", passCtor, noop)
	require.Error(t, err)
	require.ErrorIs(t, err, didcomm.ErrRegistration)
}

func TestDispatch_InvokesHandler(t *testing.T) {
	r := NewRegistry()
	handled := make(chan Packet, 1)
	require.NoError(t, r.Register("test/1.0/ping", passCtor,
		func(_ context.Context, p Packet, _ *Responder) error {
			handled <- p
			return nil
		}))

	d := NewDispatcher(r,
		func(context.Context, *didcomm.Outbound) error { return nil }, nil)

	in := newInbound(didcomm.Fields{
		pltype.FieldTypeV1: "test/1.0/ping",
		pltype.FieldIDV1:   "id-1",
	}, "VK1")
	require.NoError(t, d.Dispatch(context.Background(), in))

	p := <-handled
	require.Equal(t, in, p.Inbound)
	require.Equal(t, "test/1.0/ping", p.Msg.Type())
}

func TestDispatch_UnknownTypeSendsProblemReport(t *testing.T) {
	sent := make(chan *didcomm.Outbound, 1)
	d := NewDispatcher(NewRegistry(),
		func(_ context.Context, out *didcomm.Outbound) error {
			sent <- out
			return nil
		}, nil)

	in := newInbound(didcomm.Fields{
		pltype.FieldTypeV1: "bogus/1.0/nothing",
		pltype.FieldIDV1:   "id-1",
		pltype.DecoratorThread: map[string]any{
			"thid": "T1",
		},
	}, "VK1")
	require.NoError(t, d.Dispatch(context.Background(), in))

	out := <-sent
	require.Equal(t, pltype.NotificationProblemReport, out.Fields.Type())
	require.Equal(t, "T1", out.ReplyThreadID)
	require.Equal(t, "VK1", out.ReplyToVerKey)
	require.True(t, out.ToSessionOnly)
}

func TestDispatch_CtorFailureSendsProblemReport(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("test/1.0/ping",
		func(didcomm.Fields) (didcomm.Fields, error) {
			return nil, errors.New("missing field")
		},
		func(context.Context, Packet, *Responder) error {
			t.Fatal("handler must not run")
			return nil
		}))

	sent := make(chan *didcomm.Outbound, 1)
	d := NewDispatcher(r,
		func(_ context.Context, out *didcomm.Outbound) error {
			sent <- out
			return nil
		}, nil)

	in := newInbound(didcomm.Fields{
		pltype.FieldTypeV1: "test/1.0/ping",
		pltype.FieldIDV1:   "id-1",
	}, "VK1")
	require.NoError(t, d.Dispatch(context.Background(), in))

	out := <-sent
	require.Equal(t, pltype.NotificationProblemReport, out.Fields.Type())
}

func TestDispatch_NoSenderKeyNoProblemReport(t *testing.T) {
	d := NewDispatcher(NewRegistry(),
		func(context.Context, *didcomm.Outbound) error {
			t.Fatal("nothing should be sent")
			return nil
		}, nil)

	in := newInbound(didcomm.Fields{
		pltype.FieldTypeV1: "bogus/1.0/nothing",
	}, "")
	require.NoError(t, d.Dispatch(context.Background(), in))
}

type staticConns struct{ id string }

func (c staticConns) FindConnection(senderKey, _ string) (string, bool) {
	return c.id, c.id != ""
}

func TestDispatch_ConnectionCorrelation(t *testing.T) {
	r := NewRegistry()
	handled := make(chan Packet, 1)
	require.NoError(t, r.Register("test/1.0/ping", passCtor,
		func(_ context.Context, p Packet, _ *Responder) error {
			handled <- p
			return nil
		}))

	d := NewDispatcher(r,
		func(context.Context, *didcomm.Outbound) error { return nil },
		staticConns{id: "conn-7"})

	in := newInbound(didcomm.Fields{
		pltype.FieldTypeV1: "test/1.0/ping",
		pltype.FieldIDV1:   "id-1",
	}, "VK1")
	require.NoError(t, d.Dispatch(context.Background(), in))

	p := <-handled
	require.Equal(t, "conn-7", p.ConnectionID)
	require.Equal(t, "conn-7", in.ConnectionID)
}

func TestRoute_HandlerErrorHitsSupervision(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("test/1.0/ping", passCtor,
		func(context.Context, Packet, *Responder) error {
			return errors.New("boom")
		}))

	d := NewDispatcher(r,
		func(context.Context, *didcomm.Outbound) error { return nil }, nil)
	caught := make(chan error, 1)
	d.SetTaskErr(func(err error, _ *didcomm.Inbound) { caught <- err })

	in := newInbound(didcomm.Fields{
		pltype.FieldTypeV1: "test/1.0/ping",
		pltype.FieldIDV1:   "id-1",
	}, "VK1")
	d.Route()(context.Background(), in)

	require.NoError(t, in.WaitProcessing(context.Background()))
	require.EqualError(t, <-caught, "boom")
}

func TestResponder_FillsReplyCorrelation(t *testing.T) {
	sent := make(chan *didcomm.Outbound, 1)
	r := &Responder{
		send: func(_ context.Context, out *didcomm.Outbound) error {
			sent <- out
			return nil
		},
		inbound:      newInbound(didcomm.Fields{pltype.FieldIDV1: "id-9"}, "VK1"),
		connectionID: "conn-1",
	}

	require.NoError(t, r.SendFields(context.Background(),
		didcomm.Fields{pltype.FieldTypeV1: "test/1.0/pong"}))

	out := <-sent
	require.Equal(t, "VK1", out.ReplyToVerKey)
	require.Equal(t, "MY_KEY", out.ReplyFromVerKey)
	require.Equal(t, "sid-1", out.ReplySessionID)
	require.Equal(t, "id-9", out.ReplyThreadID)
	require.Equal(t, "conn-1", out.ConnectionID)
	require.Equal(t, decorator.CheckThread(nil, "id-9"),
		out.Fields[pltype.DecoratorThread])
}
