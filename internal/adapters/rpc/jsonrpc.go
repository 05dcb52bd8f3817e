package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	conversationrpc "aim-chat/conversation-core/internal/domains/conversation/adapters/rpc"
	messagingrpc "aim-chat/conversation-core/internal/domains/messaging/adapters/rpc"
	privacyrpc "aim-chat/conversation-core/internal/domains/privacy/adapters/rpc"
	"aim-chat/conversation-core/internal/domains/rpckit"

	"github.com/google/uuid"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

const maxRPCBodyBytes int64 = 1 << 20 // 1 MiB

type dispatchFunc func(ctx context.Context, actorID, method string, raw json.RawMessage) (any, *rpckit.Error, bool)

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if !s.applyCORS(w, r) {
		return
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if !s.authorize(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor := actorID(r)
	if !s.rpcLimiter.Allow(rateLimitKey(r, actor), time.Now()) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRPCBodyBytes)
	var req rpcRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		writeRPC(w, rpcResponse{
			JSONRPC: "2.0",
			Error:   &rpcError{Code: codeParseError, Message: "parse error"},
		})
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeRPCInvalidRequest(w, req.ID)
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		writeRPCInvalidRequest(w, req.ID)
		return
	}

	cacheKey := idempotencyKey(r.Header.Get(idempotencyHeader), actor, req.Method)
	requestHash := requestHash(req)
	if cacheKey != "" {
		if cached, ok, conflict := s.idempotency.get(cacheKey, requestHash, time.Now()); conflict {
			writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeIdempotencyConflict, Message: "idempotency key reused with different params"}})
			return
		} else if ok {
			cached.ID = req.ID
			writeRPC(w, cached)
			return
		}
	}

	reqID := uuid.NewString()
	started := time.Now()
	logger := s.deps.Logger.With("request_id", reqID, "method", req.Method)
	logger.Debug("rpc request", "actor_id", actor)

	result, rpcErr := s.dispatchRPC(r.Context(), actor, req.Method, req.Params)
	if rpcErr != nil && rpcErr.Code == codeInternal {
		logger.Error("rpc failed", "rpc_code", rpcErr.Code, "latency_ms", time.Since(started).Milliseconds())
	} else if rpcErr != nil {
		logger.Info("rpc rejected", "rpc_code", rpcErr.Code, "reason", rpcErr.Data.reason(), "latency_ms", time.Since(started).Milliseconds())
	} else {
		logger.Debug("rpc response", "latency_ms", time.Since(started).Milliseconds())
	}
	resp := rpcResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
		Error:   rpcErr,
	}
	if cacheKey != "" && rpcErr == nil {
		s.idempotency.set(cacheKey, requestHash, resp, time.Now())
	}
	writeRPC(w, resp)
}

func (s *Server) dispatchRPC(ctx context.Context, actor, method string, rawParams json.RawMessage) (any, *rpcError) {
	if method == "health_check" {
		return map[string]string{"status": "ok"}, nil
	}
	chain := []dispatchFunc{
		func(ctx context.Context, actor, method string, raw json.RawMessage) (any, *rpckit.Error, bool) {
			return privacyrpc.Dispatch(ctx, s.deps.Service, actor, method, raw)
		},
		func(ctx context.Context, actor, method string, raw json.RawMessage) (any, *rpckit.Error, bool) {
			return conversationrpc.Dispatch(ctx, s.deps.Service, actor, method, raw)
		},
		func(ctx context.Context, actor, method string, raw json.RawMessage) (any, *rpckit.Error, bool) {
			return messagingrpc.Dispatch(ctx, s.deps.Service, actor, method, raw)
		},
	}
	for _, dispatch := range chain {
		if result, rpcErr, ok := dispatch(ctx, actor, method, rawParams); ok {
			return result, fromKit(rpcErr)
		}
	}
	return nil, &rpcError{Code: codeMethodNotFound, Message: "method not found"}
}

func writeRPC(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func writeRPCInvalidRequest(w http.ResponseWriter, id json.RawMessage) {
	writeRPC(w, rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: codeInvalidRequest, Message: "invalid request"},
	})
}
