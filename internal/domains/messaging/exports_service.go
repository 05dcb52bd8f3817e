package messaging

import messagingusecase "aim-chat/conversation-core/internal/domains/messaging/usecase"

type Service = messagingusecase.Service
type ServiceDeps = messagingusecase.ServiceDeps
type AccessChecker = messagingusecase.AccessChecker
type DirectResolver = messagingusecase.DirectResolver
type SendLimiter = messagingusecase.SendLimiter

func NewService(deps ServiceDeps) *Service {
	return messagingusecase.NewService(deps)
}
