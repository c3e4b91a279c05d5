package didcomm

import "time"

// ReturnRoute modes a sender can request with the transport decorator.
type ReturnRoute string

const (
	ReturnRouteNone   ReturnRoute = "none"
	ReturnRouteAll    ReturnRoute = "all"
	ReturnRouteThread ReturnRoute = "thread"
)

// Receipt is the delivery metadata of one received message. Every Inbound
// has exactly one.
type Receipt struct {
	SenderVerKey    string
	RecipientVerKey string

	ThreadID       string
	ParentThreadID string

	// DirectResponseRequested tells the sender asked replies to travel
	// back over the same open connection, Mode tells how wide the request
	// is.
	DirectResponseRequested bool
	Mode                    ReturnRoute

	RecvTime time.Time
}

// NewReceipt builds a receipt from parsed fields and the unpack result keys.
func NewReceipt(f Fields, senderKey, recipientKey string) *Receipt {
	r := &Receipt{
		SenderVerKey:    senderKey,
		RecipientVerKey: recipientKey,
		ThreadID:        f.ThreadID(),
		ParentThreadID:  f.ParentThreadID(),
		RecvTime:        time.Now(),
	}
	switch ReturnRoute(f.ReturnRoute()) {
	case ReturnRouteAll:
		r.Mode = ReturnRouteAll
		r.DirectResponseRequested = true
	case ReturnRouteThread:
		r.Mode = ReturnRouteThread
		r.DirectResponseRequested = true
	default:
		r.Mode = ReturnRouteNone
	}
	return r
}
