package sigverify

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// Verifier is the injected signature verification capability. The engine
// never implements the algorithms itself; it only asks whether a signature
// over the digest is valid for the signer identity.
type Verifier interface {
	Verify(identity string, digest []byte, signature []byte) bool
}

// Ed25519Verifier treats signer identities as hex-encoded Ed25519 public
// keys. Unknown or malformed identities never verify.
type Ed25519Verifier struct{}

// NewEd25519Verifier creates an Ed25519Verifier.
func NewEd25519Verifier() *Ed25519Verifier {
	return &Ed25519Verifier{}
}

// Verify reports whether the signature over the digest is valid for the
// identity's public key.
func (v *Ed25519Verifier) Verify(identity string, digest []byte, signature []byte) bool {
	key, err := hex.DecodeString(identity)
	if err != nil || len(key) != ed25519.PublicKeySize {
		return false
	}
	if len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(key), digest, signature)
}

// HMACVerifier validates HMAC-SHA256 signatures against per-identity shared
// secrets. Used in tests and development where no key infrastructure exists.
type HMACVerifier struct {
	mu      sync.RWMutex
	secrets map[string][]byte
}

// NewHMACVerifier creates an empty HMACVerifier.
func NewHMACVerifier() *HMACVerifier {
	return &HMACVerifier{secrets: make(map[string][]byte)}
}

// SetSecret registers the shared secret for an identity.
func (v *HMACVerifier) SetSecret(identity string, secret []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.secrets[identity] = append([]byte(nil), secret...)
}

// Sign produces the signature an identity's secret would yield over the
// digest. Test helper counterpart to Verify.
func (v *HMACVerifier) Sign(identity string, digest []byte) []byte {
	v.mu.RLock()
	secret, ok := v.secrets[identity]
	v.mu.RUnlock()
	if !ok {
		return nil
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(digest)
	return mac.Sum(nil)
}

// Verify reports whether the signature matches the identity's shared secret.
func (v *HMACVerifier) Verify(identity string, digest []byte, signature []byte) bool {
	expected := v.Sign(identity, digest)
	if expected == nil {
		return false
	}
	return hmac.Equal(expected, signature)
}
