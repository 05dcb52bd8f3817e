package privacy

import (
	"aim-chat/conversation-core/internal/domains/contracts"
	privacyusecase "aim-chat/conversation-core/internal/domains/privacy/usecase"
)

type Gate = privacyusecase.Gate

func NewGate(settings contracts.PrivacySettingsStore, directory contracts.UserDirectory) *Gate {
	return privacyusecase.NewGate(settings, directory)
}
