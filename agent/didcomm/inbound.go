package didcomm

import (
	"context"
	"sync"
)

// Inbound is one received message on its way through the runtime: the parsed
// fields, the receipt, and the correlation ids the dispatcher fills in while
// routing. Consumers can await handler completion thru the done channel.
type Inbound struct {
	Fields  Fields
	Receipt *Receipt

	ConnectionID  string
	SessionID     string
	TransportType string

	done     chan struct{}
	doneOnce sync.Once
}

func NewInbound(f Fields, receipt *Receipt, sessionID, transportType string) *Inbound {
	return &Inbound{
		Fields:        f,
		Receipt:       receipt,
		SessionID:     sessionID,
		TransportType: transportType,
		done:          make(chan struct{}),
	}
}

// MarkProcessed signals everyone awaiting this message that its handler has
// finished. Safe to call many times.
func (in *Inbound) MarkProcessed() {
	in.doneOnce.Do(func() { close(in.done) })
}

// ProcessingDone returns a channel that closes when the handler finishes.
func (in *Inbound) ProcessingDone() <-chan struct{} {
	return in.done
}

// WaitProcessing blocks until the handler finishes or ctx is canceled.
func (in *Inbound) WaitProcessing(ctx context.Context) error {
	select {
	case <-in.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
