/*
Package sesn tracks one open inbound transport connection. A session knows
whether the peer asked replies back over the same connection (return route),
which verkeys and threads are eligible for that, and it buffers at most one
outbound reply at a time for the transport driver to pick up.
*/
package sesn

import (
	"context"
	"sync"

	"github.com/findy-network/findy-courier/agent/didcomm"
	"github.com/findy-network/findy-courier/agent/utils"
	"github.com/findy-network/findy-courier/agent/wire"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// State of a session. Closed is terminal and reachable from any state.
type State int

const (
	Open State = iota
	ResponsePending
	Closed
)

func (s State) String() string {
	return [...]string{"OPEN", "RESPONSE_PENDING", "CLOSED"}[s]
}

// InboundFunc is the router binding: every message a session receives goes
// thru it into the dispatcher.
type InboundFunc func(ctx context.Context, in *didcomm.Inbound)

// Config carries everything a transport driver gives the session factory.
type Config struct {
	TransportType     string
	CanRespond        bool
	AcceptUndelivered bool
	ClientInfo        map[string]string

	Codec     *wire.Codec
	InboundFn InboundFunc
	OnClose   func(s *Session)

	// OnUndelivered takes a reply that was still buffered when the session
	// closed. Only consulted when the session accepts undelivered mail.
	OnUndelivered func(out *didcomm.Outbound)
}

type Session struct {
	ID                string
	TransportType     string
	CanRespond        bool
	AcceptUndelivered bool
	ClientInfo        map[string]string

	codec         *wire.Codec
	inboundFn     InboundFunc
	onClose       func(s *Session)
	onUndelivered func(out *didcomm.Outbound)

	lk           sync.Mutex
	state        State
	replyMode    didcomm.ReturnRoute
	replyVerkeys map[string]struct{}
	replyThreads map[string]struct{}
	response     *didcomm.Outbound

	slot      chan struct{} // signaled when the reply buffer fills
	done      chan struct{} // closed on Close
	closeOnce sync.Once
}

func New(cfg Config) *Session {
	return &Session{
		ID:                utils.UUID(),
		TransportType:     cfg.TransportType,
		CanRespond:        cfg.CanRespond,
		AcceptUndelivered: cfg.AcceptUndelivered,
		ClientInfo:        cfg.ClientInfo,
		codec:             cfg.Codec,
		inboundFn:         cfg.InboundFn,
		onClose:           cfg.OnClose,
		onUndelivered:     cfg.OnUndelivered,
		replyMode:         didcomm.ReturnRouteNone,
		replyVerkeys:      make(map[string]struct{}),
		replyThreads:      make(map[string]struct{}),
		slot:              make(chan struct{}, 1),
		done:              make(chan struct{}),
	}
}

// Receive parses raw bytes from the transport, books the reply eligibility
// from the receipt and routes the message into the dispatcher. The returned
// Inbound can be awaited for processing completion.
func (s *Session) Receive(ctx context.Context, raw []byte) (in *didcomm.Inbound, err error) {
	defer err2.Handle(&err, "session %s receive", s.ID)

	f, receipt, err := s.codec.ParseMessage(raw)
	try.To(err)

	in = didcomm.NewInbound(f, receipt, s.ID, s.TransportType)
	s.ProcessInbound(in)
	s.inboundFn(ctx, in)
	return in, nil
}

// ProcessInbound books reply eligibility from the receipt. The latest
// receipt's requested mode is authoritative: a message without a return
// route request drops the mode back to none and clears the eligibility.
func (s *Session) ProcessInbound(in *didcomm.Inbound) {
	s.lk.Lock()
	defer s.lk.Unlock()

	receipt := in.Receipt
	s.replyMode = receipt.Mode
	if receipt.Mode == didcomm.ReturnRouteNone {
		clear(s.replyVerkeys)
		clear(s.replyThreads)
		return
	}

	if s.state == Open {
		s.state = ResponsePending
	}
	if receipt.SenderVerKey != "" {
		s.replyVerkeys[receipt.SenderVerKey] = struct{}{}
	}
	if receipt.Mode == didcomm.ReturnRouteThread && receipt.ThreadID != "" {
		s.replyThreads[receipt.ThreadID] = struct{}{}
	}
}

// SelectOutbound tells if this session may carry out as a direct reply.
func (s *Session) SelectOutbound(out *didcomm.Outbound) bool {
	s.lk.Lock()
	defer s.lk.Unlock()
	return s.selectOutbound(out)
}

func (s *Session) selectOutbound(out *didcomm.Outbound) bool {
	if !s.CanRespond || s.state == Closed {
		return false
	}
	if _, ok := s.replyVerkeys[out.ReplyToVerKey]; !ok {
		return false
	}
	switch s.replyMode {
	case didcomm.ReturnRouteAll:
		return true
	case didcomm.ReturnRouteThread:
		_, ok := s.replyThreads[out.ReplyThreadID]
		return ok
	}
	return false
}

// AcceptResponse offers out to this session. Not accepted and not retryable
// when the session isn't eligible at all; retryable when the single reply
// slot is already taken and the caller should try another route.
func (s *Session) AcceptResponse(out *didcomm.Outbound) (accepted, retry bool) {
	s.lk.Lock()
	defer s.lk.Unlock()

	if !s.selectOutbound(out) {
		return false, false
	}
	if s.response != nil {
		return false, true
	}
	s.response = out

	// cap 1 channel, the signal never blocks
	select {
	case s.slot <- struct{}{}:
	default:
	}
	return true, false
}

// WaitResponse suspends until a reply is buffered or the session closes.
// A buffered reply without pre-encoded bytes is encoded here, lazily; an
// encoding failure drops that reply and the wait continues. A closed
// session wakes the waiter with no data.
func (s *Session) WaitResponse(ctx context.Context) (data []byte, err error) {
	for {
		select {
		case <-s.done:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.slot:
			if data, ok := s.takeResponse(); ok {
				return data, nil
			}
		}
	}
}

func (s *Session) takeResponse() (data []byte, ok bool) {
	s.lk.Lock()
	defer s.lk.Unlock()

	out := s.response
	if out == nil {
		return nil, false
	}
	if out.EncPayload == nil {
		if err := s.encodeResponse(out); err != nil {
			glog.Warningf("session %s: dropping reply: %v", s.ID, err)
			s.response = nil
			return nil, false
		}
	}
	s.response = nil
	return out.EncPayload, true
}

// encodeResponse packs the buffered reply with the reply correlation keys,
// or the explicit target keys when the message carries a target.
func (s *Session) encodeResponse(out *didcomm.Outbound) (err error) {
	defer err2.Handle(&err, "session encode")

	payload := try.To1(out.PlainBytes())

	recipientKeys := []string{out.ReplyToVerKey}
	routingKeys := []string{}
	senderKey := out.ReplyFromVerKey
	if out.Target != nil {
		recipientKeys = out.Target.RecipientKeys
		routingKeys = out.Target.RoutingKeys
		senderKey = out.Target.SenderKey
	}

	out.EncPayload = try.To1(s.codec.EncodeMessage(
		payload, recipientKeys, routingKeys, senderKey))
	return nil
}

// State returns the current session state.
func (s *Session) State() State {
	s.lk.Lock()
	defer s.lk.Unlock()
	return s.state
}

// Close is idempotent: the state flips to Closed once, waiters wake with an
// empty result, and the close callback fires exactly once. A reply still
// buffered in a session that accepts undelivered mail goes to the
// undelivered sink instead of being lost.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.lk.Lock()
		s.state = Closed
		pending := s.response
		s.response = nil
		s.lk.Unlock()

		if pending != nil && s.AcceptUndelivered && s.onUndelivered != nil {
			glog.V(3).Infoln("session closing with a buffered reply, parking it")
			s.onUndelivered(pending)
		}

		close(s.done)
		glog.V(3).Infoln("session closed:", s.ID)
		if s.onClose != nil {
			s.onClose(s)
		}
	})
}
