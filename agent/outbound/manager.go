/*
Package outbound is the delivery engine. Enqueued messages become queued
delivery units, one per target. A single coordinator loop dispatches every
due unit to its own bounded goroutine: open inbound sessions are probed
first for a direct reply, then the message is encoded and pushed thru the
transport driver for its endpoint scheme, with bounded retry on I/O failure.
Terminally failed mail is reported and parked in the mailbox for pickup,
never silently dropped.
*/
package outbound

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/findy-network/findy-courier/agent/didcomm"
	"github.com/findy-network/findy-courier/agent/mailbox"
	"github.com/findy-network/findy-courier/agent/sesn"
	"github.com/findy-network/findy-courier/agent/utils"
	"github.com/findy-network/findy-courier/agent/wire"
	"github.com/golang/glog"
	"github.com/lainio/err2"
)

// Driver is one outbound transport: it performs the network write and
// reports transport I/O trouble as didcomm.ErrDelivery.
type Driver interface {
	HandleMessage(ctx context.Context, payload []byte, endpoint string) error
}

// SessionRegistry is the inbound manager surface we probe for direct
// replies and consult before parking mail for pickup.
type SessionRegistry interface {
	EachSession(fn func(s *sesn.Session) bool)
	AcceptUndelivered() bool
}

// TargetsResolver maps a connection id to its current targets. Injected by
// the connection layer; nil when the runtime runs without one.
type TargetsResolver func(connectionID string) ([]*didcomm.Target, error)

// UndeliveredFunc is the operator visible channel for mail that reached its
// terminal FAILED state. Called exactly once per failed delivery unit.
type UndeliveredFunc func(msg *didcomm.Outbound, err error)

type Manager struct {
	codec    *wire.Codec
	sessions SessionRegistry
	mailbox  *mailbox.Queue
	resolve  TargetsResolver

	drivers     map[string]Driver
	undelivered UndeliveredFunc

	lk    sync.Mutex
	queue []*queued

	wake     chan struct{}
	inflight chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewManager(
	codec *wire.Codec,
	sessions SessionRegistry,
	mbox *mailbox.Queue,
	resolve TargetsResolver,
) *Manager {
	return &Manager{
		codec:    codec,
		sessions: sessions,
		mailbox:  mbox,
		resolve:  resolve,
		drivers:  make(map[string]Driver),
		wake:     make(chan struct{}, 1),
		inflight: make(chan struct{}, utils.Settings.MaxInFlight()),
		stop:     make(chan struct{}),
		undelivered: func(msg *didcomm.Outbound, err error) {
			glog.Errorf("undelivered message (thread %s): %v", msg.ReplyThreadID, err)
		},
	}
}

// RegisterDriver installs a driver for an endpoint scheme. Registered once
// at startup; duplicates are refused.
func (m *Manager) RegisterDriver(scheme string, d Driver) (err error) {
	defer err2.Handle(&err, "register outbound %s", scheme)

	m.lk.Lock()
	defer m.lk.Unlock()
	if _, dup := m.drivers[scheme]; dup {
		return fmt.Errorf("scheme %s already registered: %w",
			scheme, didcomm.ErrRegistration)
	}
	m.drivers[scheme] = d
	return nil
}

// SetUndelivered replaces the default failed delivery report hook.
func (m *Manager) SetUndelivered(fn UndeliveredFunc) {
	m.undelivered = fn
}

// EnqueueMessage accepts msg for delivery: one queued unit per target.
// A message without explicit targets gets them resolved from its connection
// id; resolving zero targets is reported and the message dropped, it is not
// an error to the caller.
func (m *Manager) EnqueueMessage(_ context.Context, msg *didcomm.Outbound) (err error) {
	defer err2.Handle(&err, "enqueue")

	if !msg.HasContent() {
		return fmt.Errorf("outbound without content: %w", didcomm.ErrEncoding)
	}

	targets := msg.AllTargets()
	if len(targets) == 0 && msg.ConnectionID != "" && m.resolve != nil {
		resolved, err := m.resolve(msg.ConnectionID)
		if err != nil {
			glog.Warningf("cannot resolve targets for %s: %v", msg.ConnectionID, err)
		}
		targets = resolved
	}

	if len(targets) == 0 {
		if msg.ReplyToVerKey != "" || msg.ToSessionOnly {
			// session only delivery, one unit without an endpoint
			m.push(&queued{msg: msg})
			return nil
		}
		glog.Warningln("outbound message with zero targets, dropped")
		return nil
	}

	for _, t := range targets {
		m.push(&queued{msg: msg, target: t, endpoint: t.Endpoint})
	}
	return nil
}

func (m *Manager) push(q *queued) {
	m.lk.Lock()
	m.queue = append(m.queue, q)
	m.lk.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Start launches the coordinator loop.
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.processLoop()
}

// Stop shuts the loop down and waits for in-flight deliveries to finish.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()
}

// processLoop pulls due messages, newly enqueued and elapsed retries alike,
// and dispatches each to its own delivery goroutine bounded by the
// in-flight limit. No delivery is awaited before the next is considered.
func (m *Manager) processLoop() {
	defer m.wg.Done()

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		due, next := m.collectDue()
		for _, q := range due {
			select {
			case m.inflight <- struct{}{}:
			case <-m.stop:
				return
			}
			m.wg.Add(1)
			go m.deliver(q)
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		wait := time.Hour
		if !next.IsZero() {
			wait = time.Until(next)
			if wait < 0 {
				wait = time.Millisecond
			}
		}
		timer.Reset(wait)

		select {
		case <-m.stop:
			return
		case <-m.wake:
		case <-timer.C:
		}
	}
}

// collectDue marks due messages DELIVER and returns them, plus the earliest
// retry deadline among the waiting ones. Terminal messages are dropped from
// the queue here.
func (m *Manager) collectDue() (due []*queued, next time.Time) {
	now := time.Now()

	m.lk.Lock()
	defer m.lk.Unlock()

	kept := m.queue[:0]
	for _, q := range m.queue {
		if q.terminal() {
			continue
		}
		if q.ready(now) {
			q.state = stateDeliver
			due = append(due, q)
		} else if q.state == stateRetry &&
			(next.IsZero() || q.retryAt.Before(next)) {
			next = q.retryAt
		}
		kept = append(kept, q)
	}
	m.queue = kept
	return due, next
}

// deliver drives one queued unit thru one attempt. It runs in its own
// goroutine with an in-flight slot held.
func (m *Manager) deliver(q *queued) {
	defer m.wg.Done()
	defer func() { <-m.inflight }()

	ctx, cancel := context.WithTimeout(context.Background(),
		utils.Settings.Timeout())
	defer cancel()

	// a live session skips the transport driver entirely
	if m.trySession(q.msg) {
		m.setState(q, stateDone, nil)
		glog.V(3).Infoln("delivered thru open session")
		return
	}
	if q.msg.ToSessionOnly || q.target == nil {
		// session bound mail waits for pickup instead of a transport push
		if m.parkingAllowed() {
			m.mailbox.AddMessage(q.msg)
			m.setState(q, stateDone, nil)
			glog.V(3).Infoln("no live session, parked for pickup")
			return
		}
		m.fail(q, fmt.Errorf("no session accepts undelivered mail: %w",
			didcomm.ErrDelivery))
		return
	}

	if err := m.encode(q); err != nil {
		m.fail(q, err) // missing keys or crypto trouble never heals by retry
		return
	}

	driver, err := m.driverFor(q)
	if err != nil {
		m.fail(q, err)
		return
	}

	if err := driver.HandleMessage(ctx, q.payload, q.endpoint); err != nil {
		m.retryOrFail(q, err)
		return
	}
	m.setState(q, stateDone, nil)
}

func (m *Manager) trySession(msg *didcomm.Outbound) bool {
	if m.sessions == nil || msg.ReplyToVerKey == "" {
		return false
	}
	accepted := false
	m.sessions.EachSession(func(s *sesn.Session) bool {
		acc, retry := s.AcceptResponse(msg)
		if acc {
			accepted = true
			return false
		}
		// retry means the session's reply slot was taken, some other
		// session may still carry the message
		_ = retry
		return true
	})
	return accepted
}

func (m *Manager) encode(q *queued) (err error) {
	defer err2.Handle(&err, "encode for %s", q.endpoint)

	m.setState(q, stateEncode, nil)
	if q.payload != nil {
		return nil
	}
	if q.msg.EncPayload != nil {
		q.payload = q.msg.EncPayload
		return nil
	}

	plain, err := q.msg.PlainBytes()
	if err != nil {
		return err
	}
	q.payload, err = m.codec.EncodeMessage(plain,
		q.target.RecipientKeys, q.target.RoutingKeys, q.target.SenderKey)
	return err
}

func (m *Manager) driverFor(q *queued) (d Driver, err error) {
	if q.scheme == "" {
		q.scheme, err = q.target.Scheme()
		if err != nil {
			return nil, err
		}
	}

	m.lk.Lock()
	d, ok := m.drivers[q.scheme]
	m.lk.Unlock()
	if !ok {
		return nil, fmt.Errorf("no outbound driver for %s: %w",
			q.scheme, didcomm.ErrRegistration)
	}
	return d, nil
}

// retryOrFail books one failed attempt: schedule a backed off retry while
// attempts remain, otherwise the unit is terminally failed.
func (m *Manager) retryOrFail(q *queued, cause error) {
	m.lk.Lock()
	q.attempts++
	q.lastErr = cause
	attempts := q.attempts
	if attempts < utils.Settings.MaxRetryCount() {
		q.state = stateRetry
		q.retryAt = time.Now().Add(
			utils.Settings.RetryDelay() << uint(attempts-1))
		m.lk.Unlock()

		glog.V(2).Infof("delivery attempt %d to %s failed: %v, retrying",
			attempts, q.endpoint, cause)
		select {
		case m.wake <- struct{}{}:
		default:
		}
		return
	}
	m.lk.Unlock()
	m.fail(q, cause)
}

// parkingAllowed tells if failed or session-bound mail may wait in the
// mailbox. It may when a mailbox is configured and the inbound side has a
// transport accepting undelivered mail. A nil registry means the delivery
// engine runs standalone and the mailbox alone decides.
func (m *Manager) parkingAllowed() bool {
	if m.mailbox == nil {
		return false
	}
	return m.sessions == nil || m.sessions.AcceptUndelivered()
}

// fail moves q to its terminal FAILED state: reported exactly once thru the
// undelivered hook and, when pickup is supported, parked in the mailbox.
func (m *Manager) fail(q *queued, cause error) {
	m.setState(q, stateFailed, cause)
	glog.Errorf("giving up on %s after %d attempt(s): %v",
		q.endpoint, q.attempts, cause)

	if m.parkingAllowed() {
		m.mailbox.AddMessage(q.msg)
	}
	if m.undelivered != nil {
		m.undelivered(q.msg, cause)
	}
}

func (m *Manager) setState(q *queued, s deliveryState, cause error) {
	m.lk.Lock()
	q.state = s
	if cause != nil {
		q.lastErr = cause
	}
	m.lk.Unlock()
}
