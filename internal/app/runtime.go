package app

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"aim-chat/conversation-core/internal/platform/privacylog"

	"github.com/google/uuid"
)

// DefaultLogger writes JSON records to stdout through the privacy sanitizer.
func DefaultLogger(level string) *slog.Logger {
	return NewLogger(os.Stdout, level)
}

func NewLogger(w io.Writer, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return slog.New(privacylog.WrapHandler(handler))
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GeneratePrefixedID returns prefix_<uuid v7>. v7 ids sort by creation time,
// which keeps storage index keys roughly append-only.
func GeneratePrefixedID(prefix string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return prefix + "_" + id.String(), nil
}
