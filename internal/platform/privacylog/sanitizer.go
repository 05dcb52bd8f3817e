// Package privacylog keeps message content and raw participant ids out of
// the service logs.
package privacylog

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
)

const redactedValue = "[REDACTED]"

// processSalt makes fingerprints comparable within one process only.
var processSalt = newSalt()

type rule int

const (
	keep rule = iota
	redact
	fingerprint
)

// classify maps a lower-cased attribute key to its rule. Every *_id key that
// names a chat entity is fingerprinted; user-authored text and credentials
// are redacted.
func classify(key string) rule {
	switch key {
	case "content", "body", "name", "description":
		return redact
	case "user_id", "actor_id", "sender_id", "recipient_id", "participant_id",
		"target_id", "conversation_id", "message_id", "notification_id":
		return fingerprint
	}
	for _, part := range []string{"token", "secret", "password", "authorization", "cookie"} {
		if strings.Contains(key, part) {
			return redact
		}
	}
	return keep
}

type handler struct {
	next slog.Handler
}

// WrapHandler returns next behind the redaction rules. A nil next stays nil.
func WrapHandler(next slog.Handler) slog.Handler {
	if next == nil {
		return nil
	}
	return handler{next: next}
}

func (h handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h handler) Handle(ctx context.Context, rec slog.Record) error {
	clean := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	rec.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(scrub(a))
		return true
	})
	return h.next.Handle(ctx, clean)
}

func (h handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return handler{next: h.next.WithAttrs(scrubAll(attrs))}
}

func (h handler) WithGroup(name string) slog.Handler {
	return handler{next: h.next.WithGroup(name)}
}

// FingerprintID hashes id with the process salt. Surrounding space is
// ignored and an empty id stays empty.
func FingerprintID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(id + "|" + processSalt))
	return "fp_" + hex.EncodeToString(sum[:8])
}

func scrub(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()
	key := strings.TrimSpace(a.Key)
	switch classify(strings.ToLower(key)) {
	case redact:
		return slog.String(key, redactedValue)
	case fingerprint:
		return slog.String(key+"_fp", FingerprintID(a.Value.String()))
	}
	if a.Value.Kind() == slog.KindGroup {
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(scrubAll(a.Value.Group())...)}
	}
	return a
}

func scrubAll(attrs []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = scrub(a)
	}
	return out
}

func newSalt() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "static"
	}
	return hex.EncodeToString(buf)
}
