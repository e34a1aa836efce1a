package feedback

import (
	"sort"
	"sync"
	"time"

	"github.com/mcoot/tablesync/internal/dependencies/clock"
	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/services/listeners"
)

type slot struct {
	item  model.OverlayItem
	timer clock.Timer
	gen   uint64
}

// Overlay shows one bubble per player. Each slot expires on its own timer.
type Overlay struct {
	mu     sync.Mutex
	clock  clock.Clock
	cfg    Config
	slots  map[string]*slot
	gen    uint64
	closed bool

	changes listeners.List[[]model.OverlayItem]
}

// NewOverlay creates an empty Overlay
func NewOverlay(clk clock.Clock, cfg Config) *Overlay {
	return &Overlay{
		clock: clk,
		cfg:   cfg,
		slots: make(map[string]*slot),
	}
}

// ShowEmoji puts emoji in player's slot
func (o *Overlay) ShowEmoji(player, emoji string) {
	o.show(player, model.OverlayEmoji, emoji, o.cfg.EmojiTTL)
}

// ShowMessage puts a canned message in player's slot
func (o *Overlay) ShowMessage(player, message string) {
	o.show(player, model.OverlayMessage, message, o.cfg.MessageTTL)
}

func (o *Overlay) show(player string, kind model.OverlayKind, content string, ttl time.Duration) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	if old, ok := o.slots[player]; ok {
		old.timer.Stop()
	}
	o.gen++
	gen := o.gen
	s := &slot{
		item: model.OverlayItem{
			Player:    player,
			Kind:      kind,
			Content:   content,
			ExpiresAt: o.clock.Now().Add(ttl),
		},
		gen: gen,
	}
	s.timer = o.clock.AfterFunc(ttl, func() { o.expire(player, gen) })
	o.slots[player] = s
	items := o.itemsLocked()
	o.mu.Unlock()

	o.changes.Notify(items)
}

func (o *Overlay) expire(player string, gen uint64) {
	o.mu.Lock()
	s, ok := o.slots[player]
	if o.closed || !ok || s.gen != gen {
		o.mu.Unlock()
		return
	}
	delete(o.slots, player)
	items := o.itemsLocked()
	o.mu.Unlock()

	o.changes.Notify(items)
}

// Items returns the visible bubbles ordered by player
func (o *Overlay) Items() []model.OverlayItem {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.itemsLocked()
}

func (o *Overlay) itemsLocked() []model.OverlayItem {
	items := make([]model.OverlayItem, 0, len(o.slots))
	for _, s := range o.slots {
		items = append(items, s.item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Player < items[j].Player })
	return items
}

// OnChange registers fn for every change to the visible set
func (o *Overlay) OnChange(fn func([]model.OverlayItem)) (cancel func()) {
	return o.changes.Add(fn)
}

// Close cancels every slot timer
func (o *Overlay) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	for player, s := range o.slots {
		s.timer.Stop()
		delete(o.slots, player)
	}
	o.changes.Clear()
}
