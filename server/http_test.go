package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/findy-network/findy-courier/agent/didcomm"
	"github.com/findy-network/findy-courier/agent/inbound"
	"github.com/findy-network/findy-courier/agent/sesn"
	"github.com/findy-network/findy-courier/agent/utils"
	"github.com/findy-network/findy-courier/agent/wire"
	"github.com/hyperledger/aries-framework-go/pkg/didcomm/transport"
	"github.com/stretchr/testify/require"
)

type passSealer struct{}

func (passSealer) PackMessage(env *transport.Envelope) ([]byte, error) {
	return env.Message, nil
}

func (passSealer) UnpackMessage(enc []byte) (*transport.Envelope, error) {
	return &transport.Envelope{Message: enc}, nil
}

func newTestHTTPDriver(inFn sesn.InboundFunc) *HTTPDriver {
	if inFn == nil {
		inFn = func(context.Context, *didcomm.Inbound) {}
	}
	var factory inbound.CreateSessionFn = func(
		transportType string,
		canRespond, acceptUndelivered bool,
		clientInfo map[string]string,
	) *sesn.Session {
		return sesn.New(sesn.Config{
			TransportType:     transportType,
			CanRespond:        canRespond,
			AcceptUndelivered: acceptUndelivered,
			ClientInfo:        clientInfo,
			Codec:             wire.New(passSealer{}),
			InboundFn:         inFn,
		})
	}
	return &HTTPDriver{acceptUndelivered: true, createSession: factory}
}

func TestHandleMessage_PostOnly(t *testing.T) {
	d := newTestHTTPDriver(nil)

	w := httptest.NewRecorder()
	d.handleMessage(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleMessage_BadMessage(t *testing.T) {
	d := newTestHTTPDriver(nil)

	w := httptest.NewRecorder()
	d.handleMessage(w, httptest.NewRequest(http.MethodPost, "/",
		strings.NewReader("this is no JSON")))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleMessage_NoReturnRoute(t *testing.T) {
	d := newTestHTTPDriver(nil)

	w := httptest.NewRecorder()
	d.handleMessage(w, httptest.NewRequest(http.MethodPost, "/",
		strings.NewReader(`{"@type":"test/1.0/ping","@id":"id-1"}`)))
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, w.Body.Bytes())
}

func TestHandleMessage_DirectResponseWaitTimesOutToOK(t *testing.T) {
	oldTimeout := utils.Settings.Timeout()
	utils.Settings.SetTimeout(30 * time.Millisecond)
	t.Cleanup(func() { utils.Settings.SetTimeout(oldTimeout) })

	d := newTestHTTPDriver(nil)

	// return route requested but no reply ever arrives: the wait runs out
	// and the sender gets an empty OK, not an error
	w := httptest.NewRecorder()
	d.handleMessage(w, httptest.NewRequest(http.MethodPost, "/",
		strings.NewReader(
			`{"@type":"test/1.0/ping","@id":"id-1",`+
				`"~transport":{"return_route":"all"}}`)))
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, w.Body.Bytes())
}
