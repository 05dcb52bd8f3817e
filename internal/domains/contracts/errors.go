package contracts

import (
	"errors"
	"strings"

	"aim-chat/conversation-core/pkg/models"
)

const (
	KindUnauthenticated = "unauthenticated"
	KindNotFound        = "not_found"
	KindForbidden       = "forbidden"
	KindBadRequest      = "bad_request"
	KindInternal        = "internal"
)

func normalizeKind(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindUnauthenticated:
		return KindUnauthenticated
	case KindNotFound:
		return KindNotFound
	case KindForbidden:
		return KindForbidden
	case KindBadRequest:
		return KindBadRequest
	default:
		return KindInternal
	}
}

// NewError builds a classified sentinel. The returned pointer is stable, so
// errors.Is works against it after wrapping.
func NewError(kind, reason, message string) error {
	return &KindError{
		Kind:   normalizeKind(kind),
		Reason: strings.TrimSpace(reason),
		Err:    errors.New(message),
	}
}

// WrapKind attaches a kind to err unless err is already classified.
func WrapKind(kind string, err error) error {
	if err == nil {
		return nil
	}
	var existing *KindError
	if errors.As(err, &existing) {
		return err
	}
	return &KindError{Kind: normalizeKind(kind), Err: err}
}

func Internal(err error) error {
	return WrapKind(KindInternal, err)
}

// KindOf reports the kind of err; unclassified errors are internal.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	var classified *KindError
	if errors.As(err, &classified) {
		return normalizeKind(classified.Kind)
	}
	return KindInternal
}

func ReasonOf(err error) string {
	var classified *KindError
	if errors.As(err, &classified) {
		return classified.Reason
	}
	return ""
}

var (
	ErrUnauthenticated = NewError(KindUnauthenticated, "auth_required", "actor identity is required")
	ErrInvalidActor    = NewError(KindUnauthenticated, "invalid_actor", "actor identity is malformed")
	ErrInvalidParams   = NewError(KindBadRequest, "invalid_params", "invalid params")
	// ErrRecordNotFound is returned by repositories when a read-modify-write
	// targets a missing document.
	ErrRecordNotFound = NewError(KindNotFound, "", "record not found")
)

// RequireActor trims the actor id and rejects anonymous or malformed calls.
func RequireActor(actorID string) (string, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return "", ErrUnauthenticated
	}
	if !models.ValidUserID(actorID) {
		return "", ErrInvalidActor
	}
	return actorID, nil
}
