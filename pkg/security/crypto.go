package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// KeySize is the symmetric key length (AES-256).
const KeySize = 32

// ErrIntegrity is returned when an envelope fails authentication: the
// ciphertext or tag was modified, or the wrong key was supplied. No
// plaintext is ever returned alongside it.
var ErrIntegrity = errors.New("envelope integrity check failed")

// ErrKeyMismatch is returned when key material has the wrong size or
// format for the codec.
var ErrKeyMismatch = errors.New("invalid key size or format")

// Envelope is the authenticated-encryption output bundle. Ciphertext
// includes the GCM tag appended by Seal.
type Envelope struct {
	Nonce      []byte
	Ciphertext []byte
}

// GenerateKey produces a fresh 256-bit key from the OS entropy source.
// Failure here is fatal and non-retryable.
func GenerateKey() ([]byte, error) {
	k := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		return nil, fmt.Errorf("entropy source failed: %w", err)
	}
	return k, nil
}

// Encrypt seals plaintext under key with AES-256-GCM. A fresh random
// nonce is drawn per call; reuse is impossible by construction since the
// nonce never comes from the caller.
func Encrypt(plaintext, key []byte) (Envelope, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return Envelope{}, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return Envelope{}, fmt.Errorf("entropy source failed: %w", err)
	}
	ct := gcm.Seal(nil, nonce, plaintext, nil)
	return Envelope{Nonce: nonce, Ciphertext: ct}, nil
}

// Decrypt opens an envelope. Returns ErrIntegrity if the tag does not
// verify and ErrKeyMismatch if the key is malformed; never returns
// partial plaintext.
func Decrypt(env Envelope, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(env.Nonce) != gcm.NonceSize() {
		return nil, ErrIntegrity
	}
	pt, err := gcm.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, ErrIntegrity
	}
	return pt, nil
}

// WrapKey seals a DEK under the master key (KEK) so only the wrapped
// form is ever persisted. Output is nonce|ciphertext in one blob.
func WrapKey(kek, dek []byte) ([]byte, error) {
	env, err := Encrypt(dek, kek)
	if err != nil {
		return nil, err
	}
	return append(env.Nonce, env.Ciphertext...), nil
}

// UnwrapKey reverses WrapKey.
func UnwrapKey(kek, wrapped []byte) ([]byte, error) {
	gcm, err := newGCM(kek)
	if err != nil {
		return nil, err
	}
	ns := gcm.NonceSize()
	if len(wrapped) < ns {
		return nil, ErrIntegrity
	}
	return Decrypt(Envelope{Nonce: wrapped[:ns], Ciphertext: wrapped[ns:]}, kek)
}

// Checksum returns the hex SHA-256 digest of b. Used for document
// integrity verification; independent of encryption.
func Checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// ParseKeyHex decodes a 64-hex-char master key.
func ParseKeyHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: not hex", ErrKeyMismatch)
	}
	if len(b) != KeySize {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrKeyMismatch, KeySize, len(b))
	}
	return b, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrKeyMismatch, KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyMismatch, err)
	}
	return cipher.NewGCM(block)
}
