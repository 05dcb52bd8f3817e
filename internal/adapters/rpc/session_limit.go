package rpc

import "sync"

const (
	defaultMaxSessions        = 4096
	defaultMaxSessionsPerUser = 8
)

// sessionLimiter caps concurrent live sessions globally and per user.
type sessionLimiter struct {
	maxGlobal  int
	maxPerUser int

	mu     sync.Mutex
	global int
	byUser map[string]int
}

func newSessionLimiter(maxGlobal, maxPerUser int) *sessionLimiter {
	if maxGlobal <= 0 {
		maxGlobal = defaultMaxSessions
	}
	if maxPerUser <= 0 {
		maxPerUser = defaultMaxSessionsPerUser
	}
	return &sessionLimiter{
		maxGlobal:  maxGlobal,
		maxPerUser: maxPerUser,
		byUser:     make(map[string]int),
	}
}

func (l *sessionLimiter) acquire(userID string) (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.global >= l.maxGlobal || l.byUser[userID] >= l.maxPerUser {
		return nil, false
	}
	l.global++
	l.byUser[userID]++
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.global > 0 {
			l.global--
		}
		next := l.byUser[userID] - 1
		if next <= 0 {
			delete(l.byUser, userID)
			return
		}
		l.byUser[userID] = next
	}, true
}
