package mediagroup

import (
	"fmt"
	"sync"
	"time"
)

// Item is one photo of a Telegram album.
type Item struct {
	ChatID       int64
	UserID       int64
	MediaGroupID string
	FileID       string
	FileName     string
}

// Group is a settled album. Items keep arrival order.
type Group struct {
	ChatID int64
	UserID int64
	Items  []Item
}

// First is the photo a run is started with.
func (g Group) First() Item {
	if len(g.Items) == 0 {
		return Item{}
	}
	return g.Items[0]
}

type Options struct {
	Debounce time.Duration
	OnFlush  func(Group)
}

// Aggregator collects album items per chat until no new item has arrived for
// the debounce window, then hands the whole album to OnFlush once.
type Aggregator struct {
	mu       sync.Mutex
	debounce time.Duration
	onFlush  func(Group)
	groups   map[string]*pendingGroup
	stopped  bool
}

type pendingGroup struct {
	group Group
	timer *time.Timer
}

func New(opts Options) *Aggregator {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 1200 * time.Millisecond
	}

	return &Aggregator{
		debounce: debounce,
		onFlush:  opts.OnFlush,
		groups:   make(map[string]*pendingGroup),
	}
}

// Add records item and restarts the album's timer. It reports whether the
// item opened a new album.
func (a *Aggregator) Add(item Item) bool {
	if item.MediaGroupID == "" || item.FileID == "" {
		return false
	}

	key := makeKey(item.ChatID, item.MediaGroupID)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return false
	}

	pg, ok := a.groups[key]
	if !ok {
		pg = &pendingGroup{group: Group{ChatID: item.ChatID, UserID: item.UserID}}
		a.groups[key] = pg
	}
	pg.group.Items = append(pg.group.Items, item)

	if pg.timer != nil {
		pg.timer.Stop()
	}
	pg.timer = time.AfterFunc(a.debounce, func() {
		a.flush(key)
	})
	return !ok
}

func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.groups)
}

// Stop drops pending albums without flushing them.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopped = true
	for key, pg := range a.groups {
		pg.timer.Stop()
		delete(a.groups, key)
	}
}

func (a *Aggregator) flush(key string) {
	a.mu.Lock()
	pg, ok := a.groups[key]
	if !ok {
		a.mu.Unlock()
		return
	}
	delete(a.groups, key)
	group := pg.group
	onFlush := a.onFlush
	a.mu.Unlock()

	if onFlush != nil {
		onFlush(group)
	}
}

func makeKey(chatID int64, mediaGroupID string) string {
	return fmt.Sprintf("%d:%s", chatID, mediaGroupID)
}
