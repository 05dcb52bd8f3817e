package rpc

import "aim-chat/conversation-core/internal/domains/rpckit"

const (
	codeParseError          = -32700
	codeInvalidRequest      = -32600
	codeMethodNotFound      = -32601
	codeInternal            = rpckit.CodeInternal
	codeIdempotencyConflict = -32020
)

type rpcError struct {
	Code    int           `json:"code"`
	Message string        `json:"message"`
	Data    *rpcErrorData `json:"data,omitempty"`
}

// rpcErrorData lets clients branch on the failure class without parsing
// messages, e.g. kind "forbidden" with reason "friends_only".
type rpcErrorData struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason,omitempty"`
}

func (d *rpcErrorData) reason() string {
	if d == nil {
		return ""
	}
	return d.Reason
}

func fromKit(err *rpckit.Error) *rpcError {
	if err == nil {
		return nil
	}
	return &rpcError{
		Code:    err.Code,
		Message: err.Message,
		Data:    &rpcErrorData{Kind: err.Kind, Reason: err.Reason},
	}
}
