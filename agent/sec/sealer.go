/*
Package sec is the seam to the key management capability. The wallet/KMS
stack of a full agent implements wire.Sealer with its packers; this package
only has what the runtime itself needs to run without one.
*/
package sec

import (
	"fmt"

	"github.com/findy-network/findy-courier/agent/didcomm"
	"github.com/hyperledger/aries-framework-go/pkg/didcomm/transport"
)

// NullSealer is the stand-in when no wallet is attached: nothing can be
// packed, and unpack failure lets the codec fall back to plaintext. That
// makes a key-less courier a plaintext relay, which is exactly what the
// permissive parse path is for.
type NullSealer struct{}

func (NullSealer) PackMessage(*transport.Envelope) ([]byte, error) {
	return nil, fmt.Errorf("no packer attached: %w", didcomm.ErrEncoding)
}

func (NullSealer) UnpackMessage([]byte) (*transport.Envelope, error) {
	return nil, fmt.Errorf("no packer attached: %w", didcomm.ErrParse)
}
