/*
Package didcomm holds the shared data model of the courier runtime: the
parsed message fields, the per-message receipt, the inbound and outbound
message wrappers, and the connection target addressing record. The packages
wire, sesn, dispatch, outbound and mailbox all build on these types, which is
why they live here and not in any of them.
*/
package didcomm

import (
	"github.com/findy-network/findy-courier/agent/pltype"
)

// Fields is a parsed DIDComm message as generic JSON fields. We keep the
// message generic at the transport level; protocol packages deserialize the
// fields into their own structs.
type Fields map[string]any

// Type returns the declared message type, v1 @type first, then v2 type.
// Empty string means the message doesn't declare a type at all which at the
// wire level marks an encrypted envelope.
func (f Fields) Type() string {
	if t, ok := f[pltype.FieldTypeV1].(string); ok {
		return t
	}
	if t, ok := f[pltype.FieldTypeV2].(string); ok {
		return t
	}
	return ""
}

// ID returns the message id, v1 @id first, then v2 id.
func (f Fields) ID() string {
	if id, ok := f[pltype.FieldIDV1].(string); ok {
		return id
	}
	if id, ok := f[pltype.FieldIDV2].(string); ok {
		return id
	}
	return ""
}

// ThreadID resolves the thread this message belongs to: the explicit thread
// decorator when present, the message's own id when not.
func (f Fields) ThreadID() string {
	if thread, ok := f[pltype.DecoratorThread].(map[string]any); ok {
		if thid, ok := thread["thid"].(string); ok && thid != "" {
			return thid
		}
	}
	if thid, ok := f[pltype.FieldThidV2].(string); ok && thid != "" {
		return thid
	}
	return f.ID()
}

// ParentThreadID returns the parent thread id or empty.
func (f Fields) ParentThreadID() string {
	if thread, ok := f[pltype.DecoratorThread].(map[string]any); ok {
		if pthid, ok := thread["pthid"].(string); ok {
			return pthid
		}
	}
	if pthid, ok := f[pltype.FieldPthidV2].(string); ok {
		return pthid
	}
	return ""
}

// ReturnRoute reads the requested return route mode from the v1 transport
// decorator or the v2 top level field. Empty when the sender didn't ask for
// one.
func (f Fields) ReturnRoute() string {
	if transport, ok := f[pltype.DecoratorTransport].(map[string]any); ok {
		if rr, ok := transport["return_route"].(string); ok {
			return rr
		}
	}
	if rr, ok := f[pltype.FieldReturnV2].(string); ok {
		return rr
	}
	return ""
}
