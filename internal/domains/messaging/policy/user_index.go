package policy

import "aim-chat/conversation-core/pkg/models"

// byUser keys per-user entries of a message by user id and remembers first
// insertion order, so the stored lists stay ordered. The first entry for a
// user wins; later duplicates are dropped.
type byUser[T any] struct {
	order []string
	items map[string]T
}

func indexByUser[T any](list []T, userOf func(T) string) *byUser[T] {
	ix := &byUser[T]{order: make([]string, 0, len(list)), items: make(map[string]T, len(list))}
	for _, item := range list {
		ix.put(userOf(item), item)
	}
	return ix
}

func (ix *byUser[T]) get(userID string) (T, bool) {
	item, ok := ix.items[userID]
	return item, ok
}

// put inserts or replaces in place. Reports whether the user was new.
func (ix *byUser[T]) put(userID string, item T) bool {
	_, exists := ix.items[userID]
	if !exists {
		ix.order = append(ix.order, userID)
	}
	ix.items[userID] = item
	return !exists
}

func (ix *byUser[T]) remove(userID string) bool {
	if _, ok := ix.items[userID]; !ok {
		return false
	}
	delete(ix.items, userID)
	return true
}

func (ix *byUser[T]) list() []T {
	out := make([]T, 0, len(ix.items))
	for _, userID := range ix.order {
		if item, ok := ix.items[userID]; ok {
			out = append(out, item)
		}
	}
	return out
}

func reactionUser(r models.Reaction) string { return r.UserID }

func receiptUser(r models.ReadReceipt) string { return r.UserID }
