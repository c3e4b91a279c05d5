/*
Package wire implements the wire codec of the runtime: parsing received
bytes into message fields plus a receipt, and encoding outbound plaintext
into the encrypted envelope with the mediator forward chain. The crypto
itself is behind the injected Sealer capability, the codec only decides what
gets packed for whom.
*/
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/findy-network/findy-courier/agent/didcomm"
	"github.com/findy-network/findy-courier/agent/pltype"
	"github.com/findy-network/findy-courier/agent/utils"
	"github.com/golang/glog"
	"github.com/hyperledger/aries-framework-go/pkg/didcomm/transport"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Sealer is the injected key management capability: it packs plaintext for
// recipient keys and unpacks received envelopes. The agent's wallet/KMS
// stack implements it, tests use a fake.
type Sealer interface {
	PackMessage(envelope *transport.Envelope) ([]byte, error)
	UnpackMessage(encMessage []byte) (*transport.Envelope, error)
}

// Codec packs and parses wire messages thru one Sealer.
type Codec struct {
	sealer Sealer
}

func New(sealer Sealer) *Codec {
	return &Codec{sealer: sealer}
}

// ParseMessage parses received bytes into message fields and a receipt.
// Bytes without a declared type field are treated as an encrypted envelope
// and unpacked first. Unpack failure is not fatal: when the plaintext
// fallback is on we keep the original parse result so plaintext test
// messages keep working.
func (c *Codec) ParseMessage(raw []byte) (f didcomm.Fields, receipt *didcomm.Receipt, err error) {
	defer err2.Handle(&err, "parse message")

	if len(raw) == 0 {
		return nil, nil, fmt.Errorf("empty message: %w", didcomm.ErrParse)
	}

	f = make(didcomm.Fields)
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, nil, fmt.Errorf("invalid JSON object: %w", didcomm.ErrParse)
	}

	senderKey, recipientKey := "", ""
	if f.Type() == "" {
		// no declared type, this should be an encrypted envelope
		env, err := c.sealer.UnpackMessage(raw)
		switch {
		case err != nil && utils.Settings.PlaintextFallback():
			glog.Warningf("unpack failed (%v), using raw message as is", err)
		case err != nil:
			return nil, nil, fmt.Errorf("unpack: %v: %w", err, didcomm.ErrParse)
		default:
			inner := make(didcomm.Fields)
			if err := json.Unmarshal(env.Message, &inner); err != nil {
				return nil, nil, fmt.Errorf(
					"invalid JSON inside envelope: %w", didcomm.ErrParse)
			}
			f = inner
			senderKey = string(env.FromKey)
			recipientKey = string(env.ToKey)
		}
	}

	receipt = didcomm.NewReceipt(f, senderKey, recipientKey)
	if glog.V(5) {
		glog.Infof("<== %s (thid %s)", f.Type(), receipt.ThreadID)
	}
	return f, receipt, nil
}

// EncodeMessage packs payload for the recipient keys and wraps the result in
// one forward envelope per routing key, innermost first. Without a sender
// key or recipient keys the payload travels as plaintext, that's the
// return-route-none reply path.
func (c *Codec) EncodeMessage(
	payload []byte,
	recipientKeys, routingKeys []string,
	senderKey string,
) (
	data []byte,
	err error,
) {
	defer err2.Handle(&err, "encode message")

	if senderKey == "" || len(recipientKeys) == 0 {
		glog.V(5).Infoln("plaintext passthrough, no keys")
		return payload, nil
	}

	data, packErr := c.sealer.PackMessage(&transport.Envelope{
		MediaTypeProfile: pltype.MediaTypeProfileV1,
		Message:          payload,
		FromKey:          []byte(senderKey),
		ToKeys:           recipientKeys,
	})
	if packErr != nil {
		return nil, fmt.Errorf("pack: %v: %w", packErr, didcomm.ErrEncoding)
	}

	// Mediator chain: every hop gets a forward message carrying the
	// previous hop's key as its target, anonymously packed to the hop
	// itself.
	prevKey := recipientKeys[0]
	for _, routingKey := range routingKeys {
		data = try.To1(c.wrapForward(data, prevKey, routingKey))
		prevKey = routingKey
	}
	return data, nil
}

func (c *Codec) wrapForward(inner []byte, to, routingKey string) (data []byte, err error) {
	defer err2.Handle(&err, "wrap forward to %s", routingKey)

	fwd := didcomm.Fields{
		pltype.FieldTypeV1: pltype.RoutingForward,
		pltype.FieldIDV1:   utils.UUID(),
		"to":               to,
		"msg":              json.RawMessage(inner),
	}
	fwdBytes := try.To1(json.Marshal(fwd))

	// empty FromKey selects the anoncrypt packer
	data, packErr := c.sealer.PackMessage(&transport.Envelope{
		MediaTypeProfile: pltype.MediaTypeProfileV1,
		Message:          fwdBytes,
		ToKeys:           []string{routingKey},
	})
	if packErr != nil {
		return nil, fmt.Errorf("pack forward: %v: %w", packErr, didcomm.ErrEncoding)
	}
	return data, nil
}
