package storage

import (
	"context"
	"strings"

	privacymodel "aim-chat/conversation-core/internal/domains/privacy/model"
	"aim-chat/conversation-core/pkg/models"
)

// StarStore keeps per-user starred message sets. Stars are independent of the
// message and survive its deletion.
type StarStore struct {
	docs *DocumentStore
}

func NewStarStore(docs *DocumentStore) *StarStore {
	return &StarStore{docs: docs}
}

func (s *StarStore) Star(ctx context.Context, star models.StarredMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validID(star.UserID) || !validID(star.MessageID) {
		return ErrInvalidRecordID
	}
	_, _, err := UpdateDoc(s.docs, starKey(star.UserID, star.MessageID), func(doc *models.StarredMessage, found bool) (bool, error) {
		if found {
			return false, nil
		}
		*doc = star
		return true, nil
	})
	return err
}

func (s *StarStore) Unstar(ctx context.Context, userID, messageID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validID(userID) || !validID(messageID) {
		return nil
	}
	return s.docs.Delete(starKey(userID, messageID))
}

func (s *StarStore) ListStarred(ctx context.Context, userID string) ([]models.StarredMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ScanDocs[models.StarredMessage](s.docs, starUserPrefix(userID), false, 0)
}

// NotificationStore is append-only; listing is newest first.
type NotificationStore struct {
	docs *DocumentStore
}

func NewNotificationStore(docs *DocumentStore) *NotificationStore {
	return &NotificationStore{docs: docs}
}

func (s *NotificationStore) AppendNotification(ctx context.Context, n models.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validID(n.RecipientID) || !validID(n.ID) {
		return ErrInvalidRecordID
	}
	return s.docs.Put(notificationKey(n.RecipientID, n.CreatedAt, n.ID), n)
}

func (s *NotificationStore) ListNotifications(ctx context.Context, recipientID string, limit int) ([]models.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ScanDocs[models.Notification](s.docs, notificationRecipientPrefix(recipientID), true, limit)
}

// DirectoryStore serves the user directory and privacy settings records.
// Both are written by external subsystems; Put methods exist for seeding.
type DirectoryStore struct {
	docs *DocumentStore
}

func NewDirectoryStore(docs *DocumentStore) *DirectoryStore {
	return &DirectoryStore{docs: docs}
}

func (s *DirectoryStore) GetUser(ctx context.Context, userID string) (models.UserProfile, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.UserProfile{}, false, err
	}
	userID = strings.TrimSpace(userID)
	if !validID(userID) {
		return models.UserProfile{}, false, nil
	}
	var u models.UserProfile
	found, err := s.docs.Get(userKey(userID), &u)
	return u, found, err
}

func (s *DirectoryStore) PutUser(ctx context.Context, u models.UserProfile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validID(u.ID) {
		return ErrInvalidRecordID
	}
	return s.docs.Put(userKey(u.ID), u)
}

func (s *DirectoryStore) GetPrivacySettings(ctx context.Context, userID string) (privacymodel.PrivacySettings, bool, error) {
	if err := ctx.Err(); err != nil {
		return privacymodel.PrivacySettings{}, false, err
	}
	userID = strings.TrimSpace(userID)
	if !validID(userID) {
		return privacymodel.PrivacySettings{}, false, nil
	}
	var settings privacymodel.PrivacySettings
	found, err := s.docs.Get(privacyKey(userID), &settings)
	return settings, found, err
}

func (s *DirectoryStore) PutPrivacySettings(ctx context.Context, settings privacymodel.PrivacySettings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	settings = privacymodel.NormalizePrivacySettings(settings)
	if !validID(settings.UserID) {
		return ErrInvalidRecordID
	}
	return s.docs.Put(privacyKey(settings.UserID), settings)
}
