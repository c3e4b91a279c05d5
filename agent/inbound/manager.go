/*
Package inbound owns the inbound side of the transport layer: the driver
registration table, driver lifecycle, and the registry of live sessions the
outbound side probes for direct replies.
*/
package inbound

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/findy-network/findy-courier/agent/didcomm"
	"github.com/findy-network/findy-courier/agent/sesn"
	"github.com/findy-network/findy-courier/agent/wire"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Driver is one listening transport. Start returns when the driver is bound
// and serving in the background, Stop tears the listener down.
type Driver interface {
	Start(ctx context.Context) error
	Stop() error
}

// DriverConfig selects and parameterizes a driver.
type DriverConfig struct {
	Scheme string
	Addr   string

	// AcceptUndelivered marks sessions of this transport as pickup
	// capable: replies they couldn't carry out may wait in the mailbox.
	AcceptUndelivered bool
}

// CreateSessionFn is the session factory handed to drivers. The manager
// keeps the bookkeeping, the driver fills in what it knows about the
// connection.
type CreateSessionFn func(
	transportType string,
	canRespond, acceptUndelivered bool,
	clientInfo map[string]string,
) *sesn.Session

// DriverFactory builds a driver from its config and the session factory.
type DriverFactory func(cfg DriverConfig, createSession CreateSessionFn) (Driver, error)

// Manager is the inbound transport manager. The factory table is filled at
// startup and read-only after; drivers and sessions churn at runtime under
// the lock.
type Manager struct {
	codec *wire.Codec
	route sesn.InboundFunc

	factories       map[string]DriverFactory
	undeliveredSink func(out *didcomm.Outbound)

	lk                sync.Mutex
	drivers           map[string]Driver
	sessions          map[string]*sesn.Session
	acceptUndelivered bool
}

func NewManager(codec *wire.Codec, route sesn.InboundFunc) *Manager {
	return &Manager{
		codec:     codec,
		route:     route,
		factories: make(map[string]DriverFactory),
		drivers:   make(map[string]Driver),
		sessions:  make(map[string]*sesn.Session),
	}
}

// AddFactory installs a driver constructor for a scheme. Called once at
// startup, before Register.
func (m *Manager) AddFactory(scheme string, f DriverFactory) {
	m.factories[scheme] = f
}

// SetUndeliveredSink installs the destination for replies that were still
// buffered when their session closed, typically the mailbox. Called once at
// startup.
func (m *Manager) SetUndeliveredSink(fn func(out *didcomm.Outbound)) {
	m.undeliveredSink = fn
}

// Register builds a driver for cfg. Unknown scheme and double registration
// of a scheme both fail and leave existing registrations untouched.
func (m *Manager) Register(cfg DriverConfig) (err error) {
	defer err2.Handle(&err, "register inbound %s", cfg.Scheme)

	factory, ok := m.factories[cfg.Scheme]
	if !ok {
		return fmt.Errorf("no driver for scheme %s: %w",
			cfg.Scheme, didcomm.ErrRegistration)
	}

	m.lk.Lock()
	defer m.lk.Unlock()

	if _, dup := m.drivers[cfg.Scheme]; dup {
		return fmt.Errorf("scheme %s already registered: %w",
			cfg.Scheme, didcomm.ErrRegistration)
	}
	driver := try.To1(factory(cfg, m.CreateSession))
	m.drivers[cfg.Scheme] = driver
	if cfg.AcceptUndelivered {
		m.acceptUndelivered = true
	}
	glog.V(1).Infof("inbound transport registered: %s (%s)", cfg.Scheme, cfg.Addr)
	return nil
}

// AcceptUndelivered tells if any registered transport was configured for
// undelivered mail pickup. The outbound side parks mail in the mailbox only
// when this holds.
func (m *Manager) AcceptUndelivered() bool {
	m.lk.Lock()
	defer m.lk.Unlock()
	return m.acceptUndelivered
}

// Start starts every registered driver concurrently. The first driver that
// fails to start is fatal: already started drivers are stopped and the
// error propagates.
func (m *Manager) Start(ctx context.Context) (err error) {
	defer err2.Handle(&err, "inbound start")

	m.lk.Lock()
	drivers := make([]Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		drivers = append(drivers, d)
	}
	m.lk.Unlock()

	errs := make(chan error, len(drivers))
	for _, d := range drivers {
		go func(d Driver) {
			errs <- d.Start(ctx)
		}(d)
	}
	for range drivers {
		if err := <-errs; err != nil {
			m.stopAll()
			return err
		}
	}
	return nil
}

// Stop attempts every driver regardless of individual failures and closes
// all live sessions. The first error is reported after all drivers were
// tried.
func (m *Manager) Stop() error {
	err := m.stopAll()

	m.lk.Lock()
	sessions := make([]*sesn.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.lk.Unlock()
	for _, s := range sessions {
		s.Close()
	}
	return err
}

func (m *Manager) stopAll() error {
	m.lk.Lock()
	drivers := make([]Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		drivers = append(drivers, d)
	}
	m.lk.Unlock()

	var errs []error
	for _, d := range drivers {
		if err := d.Stop(); err != nil {
			glog.Warningln("driver stop:", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CreateSession is the factory the drivers call per accepted connection.
// The session is registered until it closes.
func (m *Manager) CreateSession(
	transportType string,
	canRespond, acceptUndelivered bool,
	clientInfo map[string]string,
) *sesn.Session {
	s := sesn.New(sesn.Config{
		TransportType:     transportType,
		CanRespond:        canRespond,
		AcceptUndelivered: acceptUndelivered,
		ClientInfo:        clientInfo,
		Codec:             m.codec,
		InboundFn:         m.route,
		OnClose:           m.removeSession,
		OnUndelivered:     m.undeliveredSink,
	})

	m.lk.Lock()
	m.sessions[s.ID] = s
	m.lk.Unlock()

	glog.V(3).Infof("session created: %s (%s)", s.ID, transportType)
	return s
}

func (m *Manager) removeSession(s *sesn.Session) {
	m.lk.Lock()
	delete(m.sessions, s.ID)
	m.lk.Unlock()
}

// Session returns a live session by id, nil when gone.
func (m *Manager) Session(id string) *sesn.Session {
	m.lk.Lock()
	defer m.lk.Unlock()
	return m.sessions[id]
}

// EachSession calls fn for live sessions until fn returns false.
func (m *Manager) EachSession(fn func(s *sesn.Session) bool) {
	m.lk.Lock()
	sessions := make([]*sesn.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.lk.Unlock()

	for _, s := range sessions {
		if !fn(s) {
			return
		}
	}
}
