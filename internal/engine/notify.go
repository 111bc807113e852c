package engine

import "sync"

// NoticeType discriminates notices pushed to the frontend.
type NoticeType string

const (
	NoticeStateChanged   NoticeType = "state_changed"
	NoticeTrialCompleted NoticeType = "trial_completed"
	NoticeWrongAnswer    NoticeType = "wrong_answer"
	NoticeHint           NoticeType = "hint"
	NoticeResumeFallback NoticeType = "resume_fallback"
	NoticeGameComplete   NoticeType = "game_complete"
	NoticeWarning        NoticeType = "warning"
)

// Notice is one event pushed to subscribed frontends.
type Notice struct {
	Type    NoticeType `json:"type"`
	Message string     `json:"message,omitempty"`
	State   State      `json:"state,omitempty"`
	TrialID string     `json:"trialId,omitempty"`
	Score   int        `json:"score,omitempty"`
}

// Notifier is an in-process pub/sub for engine notices.
type Notifier struct {
	mu   sync.RWMutex
	subs map[chan Notice]struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[chan Notice]struct{})}
}

// Subscribe returns a channel that receives every published notice.
func (n *Notifier) Subscribe() chan Notice {
	ch := make(chan Notice, 16)
	n.mu.Lock()
	n.subs[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel from the subscribers.
func (n *Notifier) Unsubscribe(ch chan Notice) {
	n.mu.Lock()
	delete(n.subs, ch)
	n.mu.Unlock()
}

// Publish sends a notice to all subscribers.
func (n *Notifier) Publish(notice Notice) {
	n.mu.RLock()
	for ch := range n.subs {
		select {
		case ch <- notice:
		default:
			// Drop if subscriber is slow.
		}
	}
	n.mu.RUnlock()
}
