// Package feed keeps one user's notification list fresh for an open view
// and tracks read state.
package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/nhle/teamtasks/internal/apperr"
	"github.com/nhle/teamtasks/internal/model"
	"github.com/nhle/teamtasks/internal/notify"
	"github.com/nhle/teamtasks/internal/store"
)

const (
	// DefaultLimit is how many of the most recent notifications are loaded.
	DefaultLimit = 50

	// DefaultInterval is the poll period.
	DefaultInterval = 30 * time.Second

	// fetchTimeout bounds a single background load.
	fetchTimeout = 30 * time.Second
)

// Snapshot is the loaded state after a refresh or a read-state change.
// Err is set when a background load failed; Items then holds the previous
// state.
type Snapshot struct {
	Items    []model.Notification
	Unread   int
	LoadedAt time.Time
	Err      error
}

// UpdateMsg is a tea.Msg carrying a new Snapshot.
type UpdateMsg Snapshot

// Options configures a Feed.
type Options struct {
	Limit    int
	Interval time.Duration

	// Subscriber, when set, triggers a reload as soon as a notification is
	// pushed for the user. Polling continues as the fallback.
	Subscriber notify.Subscriber

	Logger *zap.Logger
}

// Feed is the notification list of one user. Overlapping loads are not
// ordered: the last one to finish wins.
type Feed struct {
	store    store.Store
	user     model.Identity
	limit    int
	interval time.Duration
	sub      notify.Subscriber
	log      *zap.Logger

	mu       sync.Mutex
	items    []model.Notification
	loadedAt time.Time
	running  bool
	gen      uint64
	stopCh   chan struct{}

	triggerCh chan struct{}
	updates   chan Snapshot
}

// New creates a Feed for user.
func New(s store.Store, user model.Identity, opts Options) *Feed {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Feed{
		store:     s,
		user:      user,
		limit:     opts.Limit,
		interval:  opts.Interval,
		sub:       opts.Subscriber,
		log:       log.Named("feed").With(zap.String("user_id", user.ID)),
		triggerCh: make(chan struct{}, 1),
		updates:   make(chan Snapshot, 1),
	}
}

// Load fetches the most recent notifications, newest first, and replaces
// the loaded list.
func (f *Feed) Load(ctx context.Context) ([]model.Notification, error) {
	items, err := f.fetch(ctx)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.replace(items)
	snap := f.snapshotLocked()
	f.mu.Unlock()

	f.publish(snap)
	return snap.Items, nil
}

func (f *Feed) fetch(ctx context.Context) ([]model.Notification, error) {
	items, err := f.store.GetNotifications(ctx, store.NotificationFilter{
		UserID: f.user.ID,
		Limit:  f.limit,
	})
	if err != nil {
		return nil, apperr.Dependency("feed.load", err)
	}
	return items, nil
}

// Items returns a copy of the loaded notifications.
func (f *Feed) Items() []model.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Notification(nil), f.items...)
}

// UnreadCount returns how many loaded notifications are unread.
func (f *Feed) UnreadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unreadLocked()
}

// Snapshot returns the current state.
func (f *Feed) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

// MarkRead marks one notification read. Marking an already-read
// notification again succeeds without touching the store.
func (f *Feed) MarkRead(ctx context.Context, id string) error {
	const op = "feed.mark_read"

	if id == "" {
		return apperr.Validation(op, "notification id is required")
	}

	f.mu.Lock()
	if i := f.indexLocked(id); i >= 0 && f.items[i].Read {
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()

	err := f.store.MarkNotificationRead(ctx, f.user.ID, id)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(op, "notification", id)
	}
	if err != nil {
		return apperr.Dependency(op, err)
	}

	f.mu.Lock()
	f.setReadLocked(id)
	snap := f.snapshotLocked()
	f.mu.Unlock()

	f.publish(snap)
	return nil
}

// MarkAllRead marks every loaded unread notification read, one at a time.
// It is not transactional and does not retry: on partial failure the
// successful ones stay read and the combined error is returned.
func (f *Feed) MarkAllRead(ctx context.Context) error {
	const op = "feed.mark_all_read"

	f.mu.Lock()
	var ids []string
	for _, n := range f.items {
		if !n.Read {
			ids = append(ids, n.ID)
		}
	}
	f.mu.Unlock()

	var errs error
	marked := 0
	for _, id := range ids {
		if err := f.store.MarkNotificationRead(ctx, f.user.ID, id); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		f.mu.Lock()
		f.setReadLocked(id)
		f.mu.Unlock()
		marked++
	}

	if marked > 0 {
		f.publish(f.Snapshot())
	}
	if errs != nil {
		f.log.Warn("marking notifications read failed",
			zap.Int("failed", len(multierr.Errors(errs))),
			zap.Int("marked", marked),
			zap.Error(errs),
		)
		return apperr.Dependency(op, errs)
	}
	return nil
}

// Start begins background refresh: an immediate load, then one every poll
// interval and one whenever a notification is pushed. Calling Start on a
// running feed does nothing.
func (f *Feed) Start(ctx context.Context) {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return
	}
	f.running = true
	f.gen++
	gen := f.gen
	stopCh := make(chan struct{})
	f.stopCh = stopCh
	f.mu.Unlock()

	var pushed <-chan model.Notification
	cancelSub := func() {}
	if f.sub != nil {
		ch, cancel, err := f.sub.Subscribe(ctx, f.user.ID)
		if err != nil {
			f.log.Warn("push subscription failed, polling only", zap.Error(err))
		} else {
			pushed, cancelSub = ch, cancel
		}
	}

	go f.run(ctx, gen, stopCh, pushed, cancelSub)
}

// Stop halts background refresh. Loads still in flight are discarded when
// they finish.
func (f *Feed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return
	}
	close(f.stopCh)
	f.running = false
	f.gen++
}

// Running reports whether background refresh is active.
func (f *Feed) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// Refresh asks the running loop for an immediate load.
func (f *Feed) Refresh() {
	select {
	case f.triggerCh <- struct{}{}:
	default:
	}
}

// Updates delivers a Snapshot after each load or read-state change. Only
// the latest undelivered snapshot is kept.
func (f *Feed) Updates() <-chan Snapshot {
	return f.updates
}

// WaitForUpdate returns a tea.Cmd that waits for the next Snapshot.
func (f *Feed) WaitForUpdate() tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-f.updates
		if !ok {
			return nil
		}
		return UpdateMsg(snap)
	}
}

func (f *Feed) run(
	ctx context.Context,
	gen uint64,
	stopCh <-chan struct{},
	pushed <-chan model.Notification,
	cancelSub func(),
) {
	defer cancelSub()

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	f.backgroundLoad(ctx, gen)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			f.mu.Lock()
			if f.running && f.gen == gen {
				close(f.stopCh)
				f.running = false
				f.gen++
			}
			f.mu.Unlock()
			return
		case <-ticker.C:
			f.backgroundLoad(ctx, gen)
		case <-f.triggerCh:
			f.backgroundLoad(ctx, gen)
		case _, ok := <-pushed:
			if !ok {
				// Subscription dropped; keep polling.
				pushed = nil
				continue
			}
			f.backgroundLoad(ctx, gen)
		}
	}
}

// backgroundLoad loads and applies the result only if the loop that issued
// it is still the current one.
func (f *Feed) backgroundLoad(ctx context.Context, gen uint64) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	items, err := f.fetch(ctx)

	f.mu.Lock()
	if !f.running || f.gen != gen {
		f.mu.Unlock()
		return
	}
	if err != nil {
		snap := f.snapshotLocked()
		f.mu.Unlock()
		f.log.Warn("refreshing notifications failed", zap.Error(err))
		snap.Err = err
		f.publish(snap)
		return
	}
	f.replace(items)
	snap := f.snapshotLocked()
	f.mu.Unlock()

	f.publish(snap)
}

func (f *Feed) replace(items []model.Notification) {
	f.items = items
	f.loadedAt = time.Now()
}

func (f *Feed) indexLocked(id string) int {
	for i := range f.items {
		if f.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (f *Feed) setReadLocked(id string) {
	if i := f.indexLocked(id); i >= 0 {
		f.items[i].Read = true
	}
}

func (f *Feed) unreadLocked() int {
	n := 0
	for _, item := range f.items {
		if !item.Read {
			n++
		}
	}
	return n
}

func (f *Feed) snapshotLocked() Snapshot {
	return Snapshot{
		Items:    append([]model.Notification(nil), f.items...),
		Unread:   f.unreadLocked(),
		LoadedAt: f.loadedAt,
	}
}

// publish hands snap to Updates, replacing an undelivered older one.
func (f *Feed) publish(snap Snapshot) {
	select {
	case f.updates <- snap:
		return
	default:
	}
	select {
	case <-f.updates:
	default:
	}
	select {
	case f.updates <- snap:
	default:
	}
}
