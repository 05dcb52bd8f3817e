package rpckit

import "aim-chat/conversation-core/internal/domains/contracts"

// Error is a transport-level RPC error that can be mapped by the caller
// to a concrete wire format (e.g. JSON-RPC error object).
type Error struct {
	Code    int
	Message string
	Kind    string
	Reason  string
}

const (
	CodeInvalidParams   = -32602
	CodeUnauthenticated = -32001
	CodeForbidden       = -32003
	CodeNotFound        = -32004
	CodeBadRequest      = -32010
	CodeInternal        = -32099
)

func InvalidParams() *Error {
	return &Error{Code: CodeInvalidParams, Message: "invalid params", Kind: contracts.KindBadRequest}
}

// ServiceError classifies err by kind. Internal failures hide their message.
func ServiceError(err error) *Error {
	kind := contracts.KindOf(err)
	out := &Error{Message: err.Error(), Kind: kind, Reason: contracts.ReasonOf(err)}
	switch kind {
	case contracts.KindUnauthenticated:
		out.Code = CodeUnauthenticated
	case contracts.KindForbidden:
		out.Code = CodeForbidden
	case contracts.KindNotFound:
		out.Code = CodeNotFound
	case contracts.KindBadRequest:
		out.Code = CodeBadRequest
	default:
		out.Code = CodeInternal
		out.Message = "internal error"
	}
	return out
}
