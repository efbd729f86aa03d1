package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Notice sources
const (
	SourceRender      = "render"
	SourceAI          = "ai"
	SourcePersistence = "persistence"
)

// maxNotices bounds the notice list; the oldest are dropped first.
const maxNotices = 50

// Notice is a dismissible message about a failed background operation.
type Notice struct {
	ID      string    `json:"id"`
	Source  string    `json:"source"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// noticeBoard has its own lock so render callbacks, which may fire while
// the session lock is held, can post notices.
type noticeBoard struct {
	mu       sync.Mutex
	notices  []Notice
	onNotice func(Notice)
}

func (b *noticeBoard) add(source, message string) Notice {
	n := Notice{
		ID:      uuid.NewString(),
		Source:  source,
		Message: message,
		Time:    time.Now(),
	}
	b.mu.Lock()
	b.notices = append(b.notices, n)
	if len(b.notices) > maxNotices {
		b.notices = append([]Notice(nil), b.notices[len(b.notices)-maxNotices:]...)
	}
	fn := b.onNotice
	b.mu.Unlock()

	if fn != nil {
		fn(n)
	}
	return n
}

func (b *noticeBoard) list() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Notice(nil), b.notices...)
}

func (b *noticeBoard) dismiss(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, n := range b.notices {
		if n.ID == id {
			b.notices = append(b.notices[:i:i], b.notices[i+1:]...)
			return true
		}
	}
	return false
}

// Notices returns the notices not yet dismissed, oldest first.
func (s *Session) Notices() []Notice {
	return s.notices.list()
}

// DismissNotice removes a notice. It reports whether the notice existed.
func (s *Session) DismissNotice(id string) bool {
	return s.notices.dismiss(id)
}
