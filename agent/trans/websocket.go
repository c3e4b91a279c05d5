package trans

import (
	"context"
	"fmt"

	"github.com/findy-network/findy-courier/agent/didcomm"
	"github.com/golang/glog"
	"golang.org/x/net/websocket"
)

// WSDriver delivers wire messages over a WebSocket dial per message. Good
// enough for agents that only expose a ws endpoint; agents wanting a
// persistent socket connect inbound and use the return route instead.
type WSDriver struct{}

func NewWS() *WSDriver {
	return &WSDriver{}
}

func (d *WSDriver) HandleMessage(
	_ context.Context,
	payload []byte,
	endpoint string,
) error {
	ws, err := wsConnect(endpoint)
	if err != nil {
		return fmt.Errorf("dial %s: %v: %w", endpoint, err, didcomm.ErrDelivery)
	}
	defer func() {
		if err := ws.Close(); err != nil {
			glog.Warningln("ws close:", err)
		}
	}()

	if err := websocket.Message.Send(ws, payload); err != nil {
		return fmt.Errorf("ws send %s: %v: %w", endpoint, err, didcomm.ErrDelivery)
	}
	return nil
}

func wsConnect(endpoint string) (ws *websocket.Conn, err error) {
	// Go's API insists on an origin even when the server doesn't check
	// it. Note! that this must be correct URL though.
	origin := "http://localhost/"

	return websocket.Dial(endpoint, "", origin)
}
