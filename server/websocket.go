package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/findy-network/findy-courier/agent/inbound"
	"github.com/findy-network/findy-courier/agent/sesn"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"golang.org/x/net/websocket"
)

// WSDriver keeps one session per socket for its whole life, so the peer can
// request return route replies over the open connection.
type WSDriver struct {
	addr              string
	acceptUndelivered bool
	createSession     inbound.CreateSessionFn
	server            *http.Server
}

// NewWSFactory is the registration table entry for ws inbound.
func NewWSFactory() inbound.DriverFactory {
	return func(cfg inbound.DriverConfig, createSession inbound.CreateSessionFn) (inbound.Driver, error) {
		return &WSDriver{
			addr:              cfg.Addr,
			acceptUndelivered: cfg.AcceptUndelivered,
			createSession:     createSession,
		}, nil
	}
}

func (d *WSDriver) Start(_ context.Context) (err error) {
	defer err2.Handle(&err, "ws driver start")

	mux := http.NewServeMux()
	mux.Handle("/", websocket.Handler(d.listen))

	ln := try.To1(net.Listen("tcp", d.addr))
	d.server = &http.Server{Addr: d.addr, Handler: mux}

	go func() {
		if err := d.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			glog.Error("ws serve:", err)
		}
	}()

	glog.V(1).Infoln("inbound WebSocket server on", d.addr)
	return nil
}

func (d *WSDriver) Stop() error {
	if d.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return d.server.Shutdown(ctx)
}

// listen is the per connection loop: a writer drains the session's replies
// into the socket while this loop feeds received frames in.
func (d *WSDriver) listen(ws *websocket.Conn) {
	defer err2.Catch(func(err error) error {
		glog.Error("ws listen error:", err)
		return nil
	})

	glog.V(2).Info("incoming WebSocket connection from ", ws.Request().RemoteAddr)

	session := d.createSession("ws", true, d.acceptUndelivered,
		map[string]string{"remote": ws.Request().RemoteAddr})
	defer session.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.writeReplies(ctx, ws, session)

	for {
		var data []byte
		if err := websocket.Message.Receive(ws, &data); err != nil {
			glog.V(3).Info("websocket is closed: ", err)
			return
		}
		if _, err := session.Receive(ctx, data); err != nil {
			glog.Warningln("bad ws message:", err)
		}
	}
}

func (d *WSDriver) writeReplies(ctx context.Context, ws *websocket.Conn, session *sesn.Session) {
	for {
		reply, err := session.WaitResponse(ctx)
		if err != nil || reply == nil {
			return
		}
		if err := websocket.Message.Send(ws, reply); err != nil {
			glog.Warningln("ws reply send:", err)
			return
		}
	}
}
