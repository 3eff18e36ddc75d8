// Package notify holds the in-memory notification center, its optional
// persistence, and outbound delivery.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/barberfinder/internal/model"
	"github.com/sells-group/barberfinder/internal/store"
)

// ErrUnknownNotification is returned by MarkRead for an id the center has
// never seen.
var ErrUnknownNotification = eris.New("notify: unknown notification")

// Center is an append-only notification log with read tracking. It is safe
// for concurrent use.
type Center struct {
	mu      sync.Mutex
	items   []model.Notification
	index   map[string]int
	unread  int
	subs    map[int]chan model.Notification
	nextSub int

	store   store.NotificationStore
	nowFunc func() time.Time
}

// Option configures a Center.
type Option func(*Center)

// WithStore enables write-through persistence.
func WithStore(s store.NotificationStore) Option {
	return func(c *Center) {
		c.store = s
	}
}

// WithClock overrides the read timestamp source.
func WithClock(fn func() time.Time) Option {
	return func(c *Center) {
		c.nowFunc = fn
	}
}

// NewCenter creates an empty Center.
func NewCenter(opts ...Option) *Center {
	c := &Center{
		index:   make(map[string]int),
		subs:    make(map[int]chan model.Notification),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load hydrates the center from its store. Notifications already present
// are skipped. Without a store Load is a no-op.
func (c *Center) Load(ctx context.Context) (int, error) {
	if c.store == nil {
		return 0, nil
	}
	ns, err := c.store.ListNotifications(ctx, store.NotificationFilter{})
	if err != nil {
		return 0, eris.Wrap(err, "notify: load")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	loaded := 0
	for _, n := range ns {
		if c.appendLocked(n) {
			loaded++
		}
	}
	return loaded, nil
}

// Add appends notifications in order, ignoring any whose ID is already
// known, and returns how many were added. Subscribers see each new entry.
func (c *Center) Add(ns ...model.Notification) int {
	c.mu.Lock()
	var added []model.Notification
	for _, n := range ns {
		if n.ID == "" {
			logger().Warn("notify: dropping notification without id", zap.String("kind", string(n.Kind)))
			continue
		}
		if c.appendLocked(n) {
			added = append(added, n)
		}
	}
	for _, n := range added {
		c.publishLocked(n)
	}
	c.mu.Unlock()

	for _, n := range added {
		c.persist(func(ctx context.Context) error {
			return c.store.InsertNotification(ctx, n)
		}, "insert", n.ID)
	}
	return len(added)
}

func (c *Center) appendLocked(n model.Notification) bool {
	if _, ok := c.index[n.ID]; ok {
		return false
	}
	c.index[n.ID] = len(c.items)
	c.items = append(c.items, n)
	if !n.IsRead {
		c.unread++
	}
	return true
}

// publishLocked never blocks; a full subscriber buffer drops the entry.
func (c *Center) publishLocked(n model.Notification) {
	for id, ch := range c.subs {
		select {
		case ch <- n:
		default:
			logger().Debug("notify: subscriber buffer full", zap.Int("subscriber", id), zap.String("id", n.ID))
		}
	}
}

// List returns a copy of every notification in insertion order.
func (c *Center) List() []model.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Notification, len(c.items))
	copy(out, c.items)
	return out
}

// Unread returns the unread notifications in insertion order.
func (c *Center) Unread() []model.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []model.Notification
	for _, n := range c.items {
		if !n.IsRead {
			out = append(out, n)
		}
	}
	return out
}

// Get returns the notification with id.
func (c *Center) Get(id string) (model.Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.index[id]
	if !ok {
		return model.Notification{}, false
	}
	return c.items[i], true
}

// MarkRead marks id as read and reports whether its state changed.
// Repeating the call is a no-op.
func (c *Center) MarkRead(id string) (bool, error) {
	c.mu.Lock()
	i, ok := c.index[id]
	if !ok {
		c.mu.Unlock()
		return false, eris.Wrapf(ErrUnknownNotification, "id %s", id)
	}
	if c.items[i].IsRead {
		c.mu.Unlock()
		return false, nil
	}
	now := c.nowFunc().UTC()
	c.items[i].IsRead = true
	c.items[i].ReadAt = &now
	c.unread--
	c.mu.Unlock()

	c.persist(func(ctx context.Context) error {
		return c.store.MarkNotificationRead(ctx, id, now)
	}, "mark read", id)
	return true, nil
}

// MarkAllRead marks every notification read and returns how many changed.
func (c *Center) MarkAllRead() int {
	c.mu.Lock()
	now := c.nowFunc().UTC()
	changed := 0
	for i := range c.items {
		if c.items[i].IsRead {
			continue
		}
		c.items[i].IsRead = true
		c.items[i].ReadAt = &now
		changed++
	}
	c.unread = 0
	c.mu.Unlock()

	if changed > 0 {
		c.persist(func(ctx context.Context) error {
			_, err := c.store.MarkAllNotificationsRead(ctx, now)
			return err
		}, "mark all read", "")
	}
	return changed
}

// UnreadCount returns the number of unread notifications.
func (c *Center) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread
}

// Len returns the total number of notifications.
func (c *Center) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Subscribe returns a channel receiving every notification added after the
// call, and a cancel func that closes it. buf below 1 is treated as 1.
func (c *Center) Subscribe(buf int) (<-chan model.Notification, func()) {
	if buf < 1 {
		buf = 1
	}
	ch := make(chan model.Notification, buf)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(ch)
		})
	}
}

func logger() *zap.Logger {
	return zap.L().With(zap.String("component", "notify.center"))
}

const persistTimeout = 5 * time.Second

// persist runs a write-through call. Failures are logged, never returned.
func (c *Center) persist(fn func(ctx context.Context) error, op, id string) {
	if c.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		logger().Error("notify: store write failed",
			zap.String("op", op),
			zap.String("id", id),
			zap.Error(err),
		)
	}
}
