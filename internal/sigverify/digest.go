// Package sigverify provides the content digest computation and the
// pluggable signature verification capability used by the signature
// collector. The digest binds a domain tag, the action id and the nonce into
// every signed message, so a signature can never be replayed against a
// different action even with an identical payload.
package sigverify

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// DefaultDomainTag separates this engine's signatures from any other system
// sharing keys. Deployments override it via configuration.
const DefaultDomainTag = "quorumgate/v1"

var encMode cbor.EncMode

func init() {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("sigverify: cbor encoder init: %v", err))
	}
	encMode = em
}

// Envelope is the canonical signing structure. Field order is fixed by the
// CBOR keys, so any two encoders produce byte-identical output.
type Envelope struct {
	Domain        string `cbor:"1,keyasint"`
	ActionID      string `cbor:"2,keyasint"`
	Nonce         string `cbor:"3,keyasint"`
	Target        string `cbor:"4,keyasint"`
	Value         int64  `cbor:"5,keyasint"`
	PayloadDigest []byte `cbor:"6,keyasint"`
}

// PayloadDigest hashes an opaque payload for inclusion in the envelope.
func PayloadDigest(payload []byte) []byte {
	sum := sha256.Sum256(payload)
	return sum[:]
}

// ComputeDigest deterministically encodes the envelope and returns the hex
// SHA-256 content digest signers commit to.
func ComputeDigest(env Envelope) (string, error) {
	raw, err := encMode.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("failed to encode signing envelope: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
