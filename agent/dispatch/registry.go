/*
Package dispatch resolves received messages to protocol handlers. The
protocol registry is an explicit table built once at startup: protocol
support is a build time decision, there is no dynamic class loading. The
dispatcher schedules every message as its own unit of work so a slow handler
never blocks intake.
*/
package dispatch

import (
	"context"
	"fmt"

	"github.com/findy-network/findy-courier/agent/didcomm"
)

// Ctor builds and validates a protocol message from generic fields.
type Ctor func(f didcomm.Fields) (didcomm.Fields, error)

// Handler processes one resolved message and emits replies thru the
// responder.
type Handler func(ctx context.Context, packet Packet, r *Responder) error

// Packet is what a handler gets: the inbound wrapper and the validated
// message.
type Packet struct {
	Inbound      *didcomm.Inbound
	Msg          didcomm.Fields
	ConnectionID string
}

type registration struct {
	ctor    Ctor
	handler Handler
}

// Registry maps message type strings to constructors and handlers. It's
// populated during startup and read-only during steady state dispatch,
// which is why it carries no lock.
type Registry struct {
	regs map[string]registration
}

func NewRegistry() *Registry {
	return &Registry{regs: make(map[string]registration)}
}

// Register adds a message type. Double registration is refused so protocol
// packages can't shadow each other silently.
func (r *Registry) Register(typ string, ctor Ctor, h Handler) error {
	if _, dup := r.regs[typ]; dup {
		return fmt.Errorf("type %s already registered: %w",
			typ, didcomm.ErrRegistration)
	}
	r.regs[typ] = registration{ctor: ctor, handler: h}
	return nil
}

// Types returns the registered message types, mostly for startup logging.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.regs))
	for t := range r.regs {
		types = append(types, t)
	}
	return types
}

func (r *Registry) resolve(typ string) (registration, bool) {
	reg, ok := r.regs[typ]
	return reg, ok
}
