package chatservice

import (
	"aim-chat/conversation-core/internal/config"
	"aim-chat/conversation-core/internal/storage"
)

type StorageBundle struct {
	Docs          *storage.DocumentStore
	Conversations *storage.ConversationStore
	Messages      *storage.MessageStore
	Stars         *storage.StarStore
	Notifications *storage.NotificationStore
	Directory     *storage.DirectoryStore
	Blobs         *storage.BlobResolver
}

func BuildStorageBundle(storageCfg config.StorageConfig, blobCfg config.BlobConfig) (StorageBundle, error) {
	blobs, err := storage.NewBlobResolver(blobCfg.BaseURL)
	if err != nil {
		return StorageBundle{}, err
	}
	docs, err := storage.Open(storageCfg.Path, storage.Options{
		InMemory: storageCfg.InMemory,
		Secret:   storageCfg.EncryptionSecret,
	})
	if err != nil {
		return StorageBundle{}, err
	}
	return StorageBundle{
		Docs:          docs,
		Conversations: storage.NewConversationStore(docs),
		Messages:      storage.NewMessageStore(docs),
		Stars:         storage.NewStarStore(docs),
		Notifications: storage.NewNotificationStore(docs),
		Directory:     storage.NewDirectoryStore(docs),
		Blobs:         blobs,
	}, nil
}
