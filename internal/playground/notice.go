package playground

import (
	"sync"
	"time"
)

// NoticeLevel is the tone of a user-facing notification.
type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
	NoticeInfo    NoticeLevel = "info"
)

// Notice is a short-lived message for the user, the equivalent of a toast.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
	Time    time.Time   `json:"time"`
}

// notifier fans notices out to subscribers and keeps the most recent ones
// for clients that poll.
type notifier struct {
	mu     sync.Mutex
	recent []Notice
	subs   map[int]chan Notice
	next   int
}

const recentNotices = 32

func newNotifier() *notifier {
	return &notifier{subs: make(map[int]chan Notice)}
}

func (n *notifier) publish(level NoticeLevel, msg string) Notice {
	notice := Notice{Level: level, Message: msg, Time: time.Now()}

	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.recent) >= recentNotices {
		n.recent = n.recent[1:]
	}
	n.recent = append(n.recent, notice)
	for _, ch := range n.subs {
		select {
		case ch <- notice:
		default:
		}
	}
	return notice
}

func (n *notifier) snapshot() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]Notice, len(n.recent))
	copy(out, n.recent)
	return out
}

func (n *notifier) subscribe(buffer int) (<-chan Notice, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Notice, buffer)

	n.mu.Lock()
	key := n.next
	n.next++
	n.subs[key] = ch
	n.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			if _, ok := n.subs[key]; ok {
				delete(n.subs, key)
				close(ch)
			}
		})
	}
}

// closeAll ends every subscription.
func (n *notifier) closeAll() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for key, ch := range n.subs {
		delete(n.subs, key)
		close(ch)
	}
}
