package session

import (
	"sync"

	"github.com/juzeexs/lanches-bebidas/internal/domain"
	"go.uber.org/zap"
)

// DefaultInboxSize bounds the toasts kept for a session between polls.
const DefaultInboxSize = 20

// Inbox queues notifications until the client drains them. When full the
// oldest notification is dropped.
type Inbox struct {
	mu     sync.Mutex
	notes  []domain.Notification
	max    int
	logger *zap.Logger
}

func NewInbox(max int, logger *zap.Logger) *Inbox {
	if max <= 0 {
		max = DefaultInboxSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inbox{max: max, logger: logger}
}

func (i *Inbox) Notify(n domain.Notification) {
	i.logger.Debug("notification",
		zap.String("severity", string(n.Severity)),
		zap.String("message", n.Message))

	i.mu.Lock()
	defer i.mu.Unlock()
	i.notes = append(i.notes, n)
	if over := len(i.notes) - i.max; over > 0 {
		i.notes = append(i.notes[:0:0], i.notes[over:]...)
	}
}

// Drain returns the queued notifications, oldest first, and empties the inbox.
func (i *Inbox) Drain() []domain.Notification {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := i.notes
	i.notes = nil
	if out == nil {
		out = []domain.Notification{}
	}
	return out
}
