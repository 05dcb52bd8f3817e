package rpc

import (
	"net"
	"net/http"
	"strings"
)

// rateLimitKey buckets by actor when one is asserted, else by client IP.
func rateLimitKey(r *http.Request, actorID string) string {
	if strings.TrimSpace(actorID) != "" {
		return "actor:" + actorID
	}
	remote := strings.TrimSpace(r.RemoteAddr)
	if remote == "" {
		return "ip:unknown"
	}
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return "ip:" + remote
	}
	if strings.TrimSpace(host) == "" {
		return "ip:unknown"
	}
	return "ip:" + host
}
