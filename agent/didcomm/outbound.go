package didcomm

import (
	"encoding/json"
	"fmt"

	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Outbound is one message on its way out. It carries either plaintext
// content (Fields or pre-marshaled Payload) or pre-encoded wire bytes
// (EncPayload), addressing thru an explicit target list or a connection id,
// and the reply correlation the sessions use for return route matching.
type Outbound struct {
	Fields     Fields
	Payload    []byte // marshaled plaintext, lazily filled from Fields
	EncPayload []byte // ready wire bytes, skips encoding when set

	Target       *Target
	Targets      []*Target
	ConnectionID string

	ReplySessionID  string
	ReplyThreadID   string
	ReplyToVerKey   string
	ReplyFromVerKey string

	// ToSessionOnly messages are never pushed thru a transport driver;
	// they wait in the mailbox when no live session takes them.
	ToSessionOnly bool
}

// HasContent tells if there is anything to send. An Outbound must have
// plaintext or pre-encoded bytes before encoding, never neither.
func (out *Outbound) HasContent() bool {
	return out.Fields != nil || len(out.Payload) > 0 || len(out.EncPayload) > 0
}

// PlainBytes returns the marshaled plaintext payload, marshaling Fields on
// first use.
func (out *Outbound) PlainBytes() (data []byte, err error) {
	defer err2.Handle(&err, "outbound plain bytes")

	if out.Payload == nil && out.Fields != nil {
		out.Payload = try.To1(json.Marshal(out.Fields))
	}
	if out.Payload == nil {
		return nil, fmt.Errorf("outbound has no content: %w", ErrEncoding)
	}
	return out.Payload, nil
}

// AllTargets returns the explicit targets of the message as one list.
func (out *Outbound) AllTargets() []*Target {
	if out.Target != nil {
		return []*Target{out.Target}
	}
	return out.Targets
}
