package didcomm

import (
	"fmt"
	"net/url"

	"github.com/mr-tron/base58"
)

// Target is the addressing record for reaching one peer agent: the service
// endpoint URL, the recipient keys in order, the mediator routing keys in
// order, and our sender key.
type Target struct {
	Endpoint      string
	RecipientKeys []string
	RoutingKeys   []string
	SenderKey     string
}

// Scheme returns the transport scheme of the endpoint URL. The outbound
// manager uses it to pick the driver.
func (t *Target) Scheme() (string, error) {
	u, err := url.Parse(t.Endpoint)
	if err != nil || u.Scheme == "" {
		return "", fmt.Errorf("endpoint %s: no scheme: %w", t.Endpoint, ErrRegistration)
	}
	return u.Scheme, nil
}

// ValidVerKey tells if s is a base58 encoded ed25519 public key.
func ValidVerKey(s string) bool {
	data, err := base58.Decode(s)
	return err == nil && len(data) == 32
}
