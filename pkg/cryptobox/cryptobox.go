// Package cryptobox protects message content at rest with authenticated
// encryption. Payloads are stored as base64(iv || salt || authTag || ciphertext)
// with a per-message key derived from a shared secret via scrypt.
package cryptobox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

const (
	IVLen   = 16
	SaltLen = 64
	TagLen  = 16

	keyLen = 32

	// scrypt cost parameters. Deliberately slow: a leaked row cannot be
	// brute-forced without paying the derivation cost per salt.
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// headerLen is the minimum decoded size of an encrypted payload. Anything
// shorter cannot have been produced by Encrypt.
const headerLen = IVLen + SaltLen + TagLen

// ErrDecryptionFailed is returned when a payload has the encrypted layout but
// fails GCM authentication. It is the only hard error Decrypt produces.
var ErrDecryptionFailed = errors.New("cryptobox: authentication failed")

type Box struct {
	secret      []byte
	allowLegacy bool
}

type Option func(*Box)

// WithoutLegacyFallback disables the plaintext compatibility branch. With it,
// every input that does not decode and authenticate as an encrypted payload is
// treated as corrupt. Only safe on deployments with no pre-encryption rows.
func WithoutLegacyFallback() Option {
	return func(b *Box) { b.allowLegacy = false }
}

func New(secret string, opts ...Option) *Box {
	b := &Box{secret: []byte(secret), allowLegacy: true}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Encrypt seals plaintext under a key derived from a fresh 64-byte salt, with
// a fresh 16-byte IV. Two calls with the same plaintext never produce the same
// output.
func (b *Box) Encrypt(plaintext []byte) (string, error) {
	iv := make([]byte, IVLen)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generating iv: %w", err)
	}
	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	gcm, err := b.aead(salt)
	if err != nil {
		return "", err
	}

	// Seal appends the tag after the ciphertext; the storage layout wants the
	// tag between the header and the ciphertext.
	sealed := gcm.Seal(nil, iv, plaintext, nil)
	ct := sealed[:len(sealed)-TagLen]
	tag := sealed[len(sealed)-TagLen:]

	buf := make([]byte, 0, headerLen+len(ct))
	buf = append(buf, iv...)
	buf = append(buf, salt...)
	buf = append(buf, tag...)
	buf = append(buf, ct...)

	return base64.StdEncoding.EncodeToString(buf), nil
}

// Decrypt reverses Encrypt. Values that fail base64 decoding or are shorter
// than the combined header are legacy rows written before encryption was
// introduced; they are returned unchanged rather than rejected, unless the
// fallback is disabled. A well-formed payload that fails authentication
// returns ErrDecryptionFailed.
func (b *Box) Decrypt(payload string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(raw) < headerLen {
		if b.allowLegacy {
			return []byte(payload), nil
		}
		return nil, ErrDecryptionFailed
	}

	iv := raw[:IVLen]
	salt := raw[IVLen : IVLen+SaltLen]
	tag := raw[IVLen+SaltLen : headerLen]
	ct := raw[headerLen:]

	gcm, err := b.aead(salt)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(ct)+TagLen)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func (b *Box) aead(salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(b.secret, salt, scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("initializing cipher: %w", err)
	}
	return cipher.NewGCMWithNonceSize(block, IVLen)
}
