/*
Package trustping registers the trust ping protocol. It's the smallest real
protocol there is and the reference registrant for the dispatch runtime:
ping answers with ping_response over the return route when the sender asked
for one.
*/
package trustping

import (
	"context"
	"fmt"

	"github.com/findy-network/findy-courier/agent/didcomm"
	"github.com/findy-network/findy-courier/agent/dispatch"
	"github.com/findy-network/findy-courier/agent/pltype"
	"github.com/findy-network/findy-courier/agent/utils"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Register adds the trust ping message types to the protocol registry.
func Register(registry *dispatch.Registry) (err error) {
	defer err2.Handle(&err, "register trust ping")

	try.To(registry.Register(pltype.TrustPingPing, newPing, handlePing))
	try.To(registry.Register(pltype.TrustPingPingResponse, newPing, handlePingResponse))
	return nil
}

func newPing(f didcomm.Fields) (didcomm.Fields, error) {
	if f.ID() == "" {
		return nil, fmt.Errorf("ping without id: %w", didcomm.ErrParse)
	}
	return f, nil
}

func handlePing(ctx context.Context, packet dispatch.Packet, r *dispatch.Responder) (err error) {
	defer err2.Handle(&err, "handle trust ping")

	glog.V(1).Infof("trust ping from %s", packet.Inbound.Receipt.SenderVerKey)

	responseRequested := true
	if rr, ok := packet.Msg["response_requested"].(bool); ok {
		responseRequested = rr
	}
	if !responseRequested {
		return nil
	}

	return r.SendFields(ctx, didcomm.Fields{
		pltype.FieldTypeV1: pltype.TrustPingPingResponse,
		pltype.FieldIDV1:   utils.UUID(),
	})
}

func handlePingResponse(_ context.Context, packet dispatch.Packet, _ *dispatch.Responder) error {
	glog.V(1).Infof("trust ping response for thread %s",
		packet.Inbound.Receipt.ThreadID)
	return nil
}
