package securestore

import (
	"errors"
	"testing"
)

func newTestSealer(t *testing.T, secret string, salt []byte) *Sealer {
	t.Helper()
	s, err := NewSealer(secret, salt)
	if err != nil {
		t.Fatalf("new sealer failed: %v", err)
	}
	return s
}

func TestSealOpenRoundtrip(t *testing.T) {
	salt, err := NewSalt()
	if err != nil {
		t.Fatalf("salt failed: %v", err)
	}
	s := newTestSealer(t, "correct horse battery", salt)
	sealed, err := s.Seal([]byte(`{"id":"m1"}`))
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	plain, err := s.Open(sealed)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if string(plain) != `{"id":"m1"}` {
		t.Fatalf("unexpected plaintext: %q", string(plain))
	}
}

func TestOpenTamperedFailsDeterministically(t *testing.T) {
	salt, _ := NewSalt()
	s := newTestSealer(t, "correct horse battery", salt)
	sealed, err := s.Seal([]byte("secret"))
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	sealed[len(sealed)-2] ^= 0xFF
	if _, err := s.Open(sealed); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestOpenWithWrongSecretFails(t *testing.T) {
	salt, _ := NewSalt()
	sealed, err := newTestSealer(t, "correct horse battery", salt).Seal([]byte("secret"))
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	if _, err := newTestSealer(t, "wrong horse battery", salt).Open(sealed); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestOpenPlaintextReportsLegacy(t *testing.T) {
	salt, _ := NewSalt()
	s := newTestSealer(t, "correct horse battery", salt)
	if _, err := s.Open([]byte(`{"id":"m1"}`)); !errors.Is(err, ErrLegacyData) {
		t.Fatalf("expected ErrLegacyData, got %v", err)
	}
}

func TestNewSealerRejectsWeakInput(t *testing.T) {
	salt, _ := NewSalt()
	if _, err := NewSealer("short", salt); !errors.Is(err, ErrWeakSecret) {
		t.Fatalf("expected ErrWeakSecret, got %v", err)
	}
	if _, err := NewSealer("correct horse battery", nil); !errors.Is(err, ErrSaltRequired) {
		t.Fatalf("expected ErrSaltRequired, got %v", err)
	}
}
