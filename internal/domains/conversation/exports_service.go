package conversation

import conversationusecase "aim-chat/conversation-core/internal/domains/conversation/usecase"

type Service = conversationusecase.Service
type ServiceDeps = conversationusecase.ServiceDeps
type AccessChecker = conversationusecase.AccessChecker

func NewService(deps ServiceDeps) *Service {
	return conversationusecase.NewService(deps)
}
