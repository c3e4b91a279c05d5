/*
Package server encapsulates the inbound transport listeners, the server
side of the runtime. Every accepted connection gets a session from the
inbound manager's factory; the listeners only move bytes between the socket
and the session.
*/
package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/findy-network/findy-courier/agent/inbound"
	"github.com/findy-network/findy-courier/agent/pltype"
	"github.com/findy-network/findy-courier/agent/utils"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// HTTPDriver serves one POST per message. When the sender requests a direct
// response the handler blocks on the session until the reply is ready and
// writes it back on the same connection.
type HTTPDriver struct {
	addr              string
	acceptUndelivered bool
	createSession     inbound.CreateSessionFn
	server            *http.Server
}

// NewHTTPFactory is the registration table entry for http inbound.
func NewHTTPFactory() inbound.DriverFactory {
	return func(cfg inbound.DriverConfig, createSession inbound.CreateSessionFn) (inbound.Driver, error) {
		return &HTTPDriver{
			addr:              cfg.Addr,
			acceptUndelivered: cfg.AcceptUndelivered,
			createSession:     createSession,
		}, nil
	}
}

// Start binds the listener and serves in the background. A failing bind is
// returned synchronously so manager startup can abort.
func (d *HTTPDriver) Start(_ context.Context) (err error) {
	defer err2.Handle(&err, "http driver start")

	mux := http.NewServeMux()
	mux.HandleFunc("/", d.handleMessage)
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		if glog.V(5) {
			glog.Info("/version requested")
		}
		_, _ = w.Write([]byte(utils.Version))
	})

	ln := try.To1(net.Listen("tcp", d.addr))
	d.server = &http.Server{Addr: d.addr, Handler: mux}

	go func() {
		if err := d.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			glog.Error("http serve:", err)
		}
	}()

	glog.V(1).Infoln("inbound HTTP server on", d.addr)
	return nil
}

func (d *HTTPDriver) Stop() error {
	if d.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return d.server.Shutdown(ctx)
}

func (d *HTTPDriver) handleMessage(w http.ResponseWriter, r *http.Request) {
	defer err2.Catch(func(err error) error {
		glog.Error("http inbound error:", err)
		http.Error(w, "500 - Error", http.StatusInternalServerError)
		return nil
	})

	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	data := try.To1(io.ReadAll(r.Body))

	session := d.createSession("http", true, d.acceptUndelivered,
		map[string]string{"remote": r.RemoteAddr})
	defer session.Close()

	in, err := session.Receive(r.Context(), data)
	if err != nil {
		// the body couldn't be parsed at all, the sender's fault
		glog.Warningln("bad inbound message:", err)
		http.Error(w, fmt.Sprintf("400 - %v", err), http.StatusBadRequest)
		return
	}

	if !in.Receipt.DirectResponseRequested {
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), utils.Settings.Timeout())
	defer cancel()

	reply, err := session.WaitResponse(ctx)
	if err != nil || reply == nil {
		// no direct reply in time, it travels the outbound path instead
		glog.V(3).Infoln("direct response wait over:", err)
		w.WriteHeader(http.StatusOK)
		return
	}
	w.Header().Set("Content-Type", pltype.MediaTypeEncryptedEnvelope)
	_, _ = w.Write(reply)
}
