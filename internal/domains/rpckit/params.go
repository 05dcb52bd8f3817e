package rpckit

import (
	"bytes"
	"encoding/json"
)

// DecodeParams strictly decodes JSON-RPC params into out. Unknown fields are
// rejected so typos fail loudly instead of silently dropping an update.
func DecodeParams(raw json.RawMessage, out any) *Error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return InvalidParams()
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return InvalidParams()
	}
	return nil
}

// Call runs fn and converts its error into a classified RPC error.
func Call(fn func() (any, error)) (any, *Error) {
	result, err := fn()
	if err != nil {
		return nil, ServiceError(err)
	}
	return result, nil
}
