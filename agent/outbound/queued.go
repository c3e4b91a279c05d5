package outbound

import (
	"time"

	"github.com/findy-network/findy-courier/agent/didcomm"
)

// deliveryState is the life of one queued outbound message. done and failed
// are terminal; failed messages are reported, never silently dropped.
type deliveryState int

const (
	stateNew deliveryState = iota
	stateEncode
	stateDeliver
	stateRetry
	stateDone
	stateFailed
)

func (s deliveryState) String() string {
	return [...]string{
		"NEW", "ENCODE", "DELIVER", "RETRY", "DONE", "FAILED",
	}[s]
}

// queued wraps one outbound message for one target endpoint while the
// processing loop drives it to a terminal state. Only the loop and the
// delivery goroutine it spawns touch a queued instance, field access needs
// the manager lock.
type queued struct {
	msg    *didcomm.Outbound
	target *didcomm.Target

	endpoint string
	scheme   string
	payload  []byte

	state    deliveryState
	attempts int
	retryAt  time.Time
	lastErr  error
}

func (q *queued) terminal() bool {
	return q.state == stateDone || q.state == stateFailed
}

// ready tells if the loop should dispatch this message now.
func (q *queued) ready(now time.Time) bool {
	switch q.state {
	case stateNew:
		return true
	case stateRetry:
		return !q.retryAt.After(now)
	}
	return false
}
