package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	// KeySize is the only accepted key length (AES-256).
	KeySize = 32
	// nonceSize is the GCM-standard 96-bit nonce.
	nonceSize = 12
	// tagSize is the GCM authentication tag length.
	tagSize = 16
)

var (
	ErrInvalidKeySize = errors.New("encryption key must be 32 bytes")
	ErrDecryption     = errors.New("decryption failed")
)

// EncryptedPayload is the at-rest form of a message body. The three fields
// are produced together by one Encrypt call and are only meaningful
// together; a missing field is a decryption failure, not a crash.
type EncryptedPayload struct {
	IV         string `json:"iv"`
	Ciphertext string `json:"ciphertext"`
	Tag        string `json:"tag"`
}

// Cipher performs authenticated encryption of message bodies with a
// process-wide AES-256-GCM key. The key is loaded once at startup and
// never mutated afterwards.
type Cipher struct {
	aead cipher.AEAD
}

// New builds a Cipher from a raw 256-bit key.
func New(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init aes: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce. The nonce is drawn
// from crypto/rand on every call; it is never cached or derived, so reuse
// under the same key cannot happen.
func (c *Cipher) Encrypt(plaintext string) (EncryptedPayload, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return EncryptedPayload{}, fmt.Errorf("generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)

	// Seal appends the tag to the ciphertext; store them as separate fields.
	split := len(sealed) - tagSize
	return EncryptedPayload{
		IV:         base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(sealed[:split]),
		Tag:        base64.StdEncoding.EncodeToString(sealed[split:]),
	}, nil
}

// Decrypt opens a payload. It fails closed with ErrDecryption when any
// field is absent or malformed or when the authentication tag does not
// verify; it never returns unauthenticated plaintext.
func (c *Cipher) Decrypt(payload EncryptedPayload) (string, error) {
	// An empty Ciphertext is legitimate (empty plaintext); the tag
	// still authenticates it. IV and Tag can never be empty.
	if payload.IV == "" || payload.Tag == "" {
		return "", fmt.Errorf("%w: missing payload field", ErrDecryption)
	}

	nonce, err := base64.StdEncoding.DecodeString(payload.IV)
	if err != nil {
		return "", fmt.Errorf("%w: bad iv encoding", ErrDecryption)
	}
	if len(nonce) != nonceSize {
		return "", fmt.Errorf("%w: bad iv length", ErrDecryption)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(payload.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: bad ciphertext encoding", ErrDecryption)
	}

	tag, err := base64.StdEncoding.DecodeString(payload.Tag)
	if err != nil {
		return "", fmt.Errorf("%w: bad tag encoding", ErrDecryption)
	}
	if len(tag) != tagSize {
		return "", fmt.Errorf("%w: bad tag length", ErrDecryption)
	}

	plaintext, err := c.aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryption, err)
	}

	return string(plaintext), nil
}

// DeriveKey stretches a passphrase into a 256-bit key with argon2id, for
// deployments that configure a passphrase instead of a raw base64 key.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, KeySize)
}
