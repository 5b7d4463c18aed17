package idempotency

import (
	"strconv"
	"strings"
	"sync"
)

const DefaultCapacity = 4096

func MessageKey(chatID, messageID int64) string {
	return "msg:" + strconv.FormatInt(chatID, 10) + ":" + strconv.FormatInt(messageID, 10)
}

func CallbackKey(callbackID string) string {
	return "cb:" + strings.TrimSpace(callbackID)
}

// NoticeKey identifies a one-off notice sent to a user.
func NoticeKey(notice string, userID int64) string {
	return "notice:" + strings.TrimSpace(notice) + ":" + strconv.FormatInt(userID, 10)
}

// Seen remembers the most recent keys up to a fixed capacity. Older keys are
// forgotten in insertion order.
type Seen struct {
	mu    sync.Mutex
	cap   int
	keys  map[string]struct{}
	order []string
	next  int
}

func NewSeen(capacity int) *Seen {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Seen{
		cap:   capacity,
		keys:  make(map[string]struct{}, capacity),
		order: make([]string, 0, capacity),
	}
}

// Mark records key and reports whether it was new.
func (s *Seen) Mark(key string) bool {
	if key == "" {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return false
	}
	if len(s.order) < s.cap {
		s.order = append(s.order, key)
	} else {
		delete(s.keys, s.order[s.next])
		s.order[s.next] = key
		s.next = (s.next + 1) % s.cap
	}
	s.keys[key] = struct{}{}
	return true
}

func (s *Seen) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}
