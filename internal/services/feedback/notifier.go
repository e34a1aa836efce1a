package feedback

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/tablesync/internal/dependencies/clock"
	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/services/listeners"
)

// Notifier holds at most one visible notification
type Notifier struct {
	mu      sync.Mutex
	clock   clock.Clock
	ttl     time.Duration
	current *model.Notification
	timer   clock.Timer
	gen     uint64
	closed  bool

	changes listeners.List[*model.Notification]
	logger  *slog.Logger
}

// NewNotifier creates a Notifier whose toasts last ttl
func NewNotifier(clk clock.Clock, ttl time.Duration, logger *slog.Logger) *Notifier {
	return &Notifier{
		clock:  clk,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "notifier")),
	}
}

// Show replaces the current notification and restarts the timer
func (n *Notifier) Show(text string, level model.NotificationLevel) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	if n.timer != nil {
		n.timer.Stop()
	}
	n.gen++
	gen := n.gen
	note := model.Notification{Text: text, Level: level, ShownAt: n.clock.Now()}
	n.current = &note
	n.timer = n.clock.AfterFunc(n.ttl, func() { n.expire(gen) })
	n.mu.Unlock()

	n.logger.Debug("notification shown", slog.String("level", string(level)), slog.String("text", text))
	n.changes.Notify(&note)
}

// Error shows err with the user-facing message of its category
func (n *Notifier) Error(err error) {
	n.Show(model.UserMessage(err), model.LevelError)
}

func (n *Notifier) expire(gen uint64) {
	n.mu.Lock()
	if n.closed || gen != n.gen {
		n.mu.Unlock()
		return
	}
	n.current = nil
	n.timer = nil
	n.mu.Unlock()

	n.changes.Notify(nil)
}

// Dismiss hides the current notification early
func (n *Notifier) Dismiss() {
	n.mu.Lock()
	if n.closed || n.current == nil {
		n.mu.Unlock()
		return
	}
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.gen++
	n.current = nil
	n.mu.Unlock()

	n.changes.Notify(nil)
}

// Current returns the visible notification, if any
func (n *Notifier) Current() (model.Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return model.Notification{}, false
	}
	return *n.current, true
}

// OnChange registers fn for shown and cleared notifications. A cleared
// slot is reported as nil.
func (n *Notifier) OnChange(fn func(*model.Notification)) (cancel func()) {
	return n.changes.Add(fn)
}

// Close cancels the pending timer. Nothing fires afterwards.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.current = nil
	n.changes.Clear()
}
