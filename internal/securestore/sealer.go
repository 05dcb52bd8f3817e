package securestore

import (
	"bytes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	SaltSize     = 16
	valuePrefix  = "AIMSEAL1"
	kdfTime      = 2
	kdfMemoryKB  = 64 * 1024
	kdfThreads   = 1
	minSecretLen = 8
)

var (
	ErrAuthFailed   = errors.New("securestore authentication failed")
	ErrInvalid      = errors.New("securestore value is invalid")
	ErrLegacyData   = errors.New("securestore legacy plaintext data")
	ErrWeakSecret   = errors.New("securestore secret is too short")
	ErrSaltRequired = errors.New("securestore salt is required")
)

// Sealer encrypts individual values with XChaCha20-Poly1305. The key is
// derived once with argon2id, so per-value cost is a single AEAD call.
type Sealer struct {
	aead cipher.AEAD
}

func NewSealer(secret string, salt []byte) (*Sealer, error) {
	secret = strings.TrimSpace(secret)
	if len(secret) < minSecretLen {
		return nil, ErrWeakSecret
	}
	if len(salt) < SaltSize {
		return nil, ErrSaltRequired
	}
	key := argon2.IDKey([]byte(secret), salt, kdfTime, kdfMemoryKB, kdfThreads, chacha20poly1305.KeySize)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// Seal returns prefix | nonce | ciphertext.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(valuePrefix)+len(nonce)+len(plaintext)+s.aead.Overhead())
	out = append(out, valuePrefix...)
	out = append(out, nonce...)
	return s.aead.Seal(out, nonce, plaintext, nil), nil
}

func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if !bytes.HasPrefix(sealed, []byte(valuePrefix)) {
		return nil, ErrLegacyData
	}
	body := sealed[len(valuePrefix):]
	if len(body) < chacha20poly1305.NonceSizeX+s.aead.Overhead() {
		return nil, ErrInvalid
	}
	nonce, ciphertext := body[:chacha20poly1305.NonceSizeX], body[chacha20poly1305.NonceSizeX:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
