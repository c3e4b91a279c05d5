package trustping

import (
	"context"
	"testing"
	"time"

	"github.com/findy-network/findy-courier/agent/didcomm"
	"github.com/findy-network/findy-courier/agent/dispatch"
	"github.com/findy-network/findy-courier/agent/pltype"
	"github.com/stretchr/testify/require"
)

func dispatchPing(t *testing.T, fields didcomm.Fields) chan *didcomm.Outbound {
	t.Helper()

	registry := dispatch.NewRegistry()
	require.NoError(t, Register(registry))

	sent := make(chan *didcomm.Outbound, 1)
	d := dispatch.NewDispatcher(registry,
		func(_ context.Context, out *didcomm.Outbound) error {
			sent <- out
			return nil
		}, nil)

	receipt := &didcomm.Receipt{
		SenderVerKey: "VK1",
		ThreadID:     fields.ThreadID(),
		RecvTime:     time.Now(),
	}
	in := didcomm.NewInbound(fields, receipt, "sid-1", "test")
	require.NoError(t, d.Dispatch(context.Background(), in))
	return sent
}

func TestPingAnswersWithPingResponse(t *testing.T) {
	sent := dispatchPing(t, didcomm.Fields{
		pltype.FieldTypeV1: pltype.TrustPingPing,
		pltype.FieldIDV1:   "ping-1",
	})

	out := <-sent
	require.Equal(t, pltype.TrustPingPingResponse, out.Fields.Type())
	require.Equal(t, "ping-1", out.ReplyThreadID)
	require.Equal(t, "VK1", out.ReplyToVerKey)
}

func TestPingWithoutResponseRequested(t *testing.T) {
	sent := dispatchPing(t, didcomm.Fields{
		pltype.FieldTypeV1:   pltype.TrustPingPing,
		pltype.FieldIDV1:     "ping-2",
		"response_requested": false,
	})

	select {
	case <-sent:
		t.Fatal("nothing should be sent")
	default:
	}
}

func TestPingResponseIsTerminal(t *testing.T) {
	sent := dispatchPing(t, didcomm.Fields{
		pltype.FieldTypeV1: pltype.TrustPingPingResponse,
		pltype.FieldIDV1:   "pong-1",
	})

	select {
	case <-sent:
		t.Fatal("a ping response never generates more traffic")
	default:
	}
}
