/*
Package trans has the outbound transport drivers, the client side of the
runtime: they take ready wire bytes and an endpoint URL and perform the
network write. Transport I/O trouble surfaces as didcomm.ErrDelivery so the
delivery engine knows it may retry.
*/
package trans

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/findy-network/findy-courier/agent/didcomm"
	"github.com/findy-network/findy-courier/agent/pltype"
	"github.com/findy-network/findy-courier/agent/utils"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// errorMessageMaxLength is the maximum length of the response body we will
// include into the generated error message
const errorMessageMaxLength = 80

var (
	// SendAndWaitReq is proxy function to route actual call to http or pseudo http in tests.
	SendAndWaitReq = sendAndWaitHTTPRequest

	c = &http.Client{}
)

// HTTPDriver delivers wire messages with a POST per message.
type HTTPDriver struct{}

func NewHTTP() *HTTPDriver {
	return &HTTPDriver{}
}

// HandleMessage posts payload to endpoint. Connection refusal and
// non-success responses come back wrapped as didcomm.ErrDelivery.
func (d *HTTPDriver) HandleMessage(
	ctx context.Context,
	payload []byte,
	endpoint string,
) error {
	_, err := SendAndWaitReq(ctx, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("post %s: %v: %w", endpoint, err, didcomm.ErrDelivery)
	}
	return nil
}

func sendAndWaitHTTPRequest(ctx context.Context, urlStr string, msg io.Reader) (data []byte, err error) {
	defer err2.Handle(&err, "call http")

	URL := try.To1(url.Parse(urlStr))

	ctx, cancel := context.WithTimeout(ctx, utils.Settings.Timeout())
	defer cancel()

	request := try.To1(http.NewRequestWithContext(ctx, "POST", URL.String(), msg))
	request.Close = true // deferred response.Body.Close isn't always enough

	request.Header.Set("Content-Type", pltype.MediaTypeEncryptedEnvelope)

	response := try.To1(c.Do(request))

	defer func() {
		closeErr := response.Body.Close()
		if closeErr != nil {
			glog.Warningln("body.Close: ", closeErr)
		}
	}()

	data, err = io.ReadAll(response.Body)

	return checkHTTPStatus(response, data)
}

// checkHTTPStatus checks the status code and gets the server message
func checkHTTPStatus(response *http.Response, data []byte) ([]byte, error) {
	if response.StatusCode != http.StatusOK {
		glog.Warning("http code:", response.Status)
		contentType := response.Header.Get("Content-type")
		// from our server: text/plain; charset=utf-8
		if strings.HasPrefix(contentType, "text/plain") {
			l := len(data)
			return nil, fmt.Errorf("%s: %s",
				response.Status, data[0:min(errorMessageMaxLength, l)])
		}
		return nil, fmt.Errorf("%v", response.Status)
	}
	return data, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// SetTimeout overrides the shared client timeout, mostly for tests.
func SetTimeout(to time.Duration) {
	c.Timeout = to
}
