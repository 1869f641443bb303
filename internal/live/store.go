// internal/live/store.go
package live

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	apperrors "notification-workers/internal/common/errors"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/feed"
	"notification-workers/internal/identity"
	"notification-workers/internal/notification"
)

type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoading       State = "loading"
	StateReady         State = "ready"
	StateError         State = "error"
)

// PendingOp marks a row with a mutation issued but not yet seen on the feed.
type PendingOp string

const (
	PendingRead   PendingOp = "pending_read"
	PendingDelete PendingOp = "pending_delete"
)

const defaultPageSize = 50

var ErrNotReady = errors.New("live notification store is not ready")

// Repository is the query side of the notification service.
type Repository interface {
	GetUserNotifications(ctx context.Context, userID string, filter notification.ListFilter, page notification.Page) ([]notification.Notification, int, error)
	// MarkRead returns how many rows went from unread to read.
	MarkRead(ctx context.Context, userID string, ids []string) (int, error)
	MarkAllRead(ctx context.Context, userID string, organizationID *string) error
	DeleteNotifications(ctx context.Context, userID string, ids []string) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, name string, filter feed.Filter, handler feed.Handler) (feed.Subscription, error)
}

type Snapshot struct {
	Version       uint64                      `json:"version"`
	State         State                       `json:"state"`
	Notifications []notification.Notification `json:"notifications"`
	UnreadCount   int                         `json:"unreadCount"`
	Pending       map[string]PendingOp        `json:"pending,omitempty"`
	Error         string                      `json:"error,omitempty"`
}

// Store is the in-memory view of one user's notifications. The list only
// changes in response to feed events; mutations mark rows pending until the
// matching event arrives.
type Store struct {
	repo     Repository
	feed     Subscriber
	log      logger.Logger
	pageSize int

	mu         sync.Mutex
	generation uint64
	version    uint64
	state      State
	userID     string
	items      []notification.Notification
	pending    map[string]PendingOp
	buffered   []feed.Event
	sub        feed.Subscription
	lastErr    error

	listeners    map[int]func(Snapshot)
	nextListener int
}

func NewStore(repo Repository, subscriber Subscriber, log logger.Logger, pageSize int) *Store {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Store{
		repo:      repo,
		feed:      subscriber,
		log:       log.WithFields(map[string]interface{}{"component": "live-store"}),
		pageSize:  pageSize,
		state:     StateUninitialized,
		items:     []notification.Notification{},
		pending:   make(map[string]PendingOp),
		listeners: make(map[int]func(Snapshot)),
	}
}

// Start loads userID's notifications and follows their change feed. It
// subscribes before fetching and replays events seen while loading.
func (s *Store) Start(ctx context.Context, userID string) error {
	s.mu.Lock()
	old := s.resetLocked(userID, StateLoading)
	gen := s.generation
	s.mu.Unlock()
	if old != nil {
		old.Unsubscribe()
	}
	s.emit()

	filter := feed.Filter{Table: "notifications", Column: "user_id", Value: userID}
	sub, err := s.feed.Subscribe(ctx, "live-notifications:"+userID, filter, func(ev feed.Event) {
		s.handleEvent(gen, ev)
	})
	if err != nil {
		s.fail(gen, err)
		return err
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		sub.Unsubscribe()
		return nil
	}
	s.sub = sub
	s.mu.Unlock()

	items, _, err := s.repo.GetUserNotifications(ctx, userID, notification.ListFilter{}, notification.Page{Limit: s.pageSize})
	if err != nil {
		s.fail(gen, err)
		return err
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return nil
	}
	s.items = append([]notification.Notification{}, items...)
	for _, ev := range s.buffered {
		s.applyLocked(ev)
	}
	s.buffered = nil
	s.state = StateReady
	s.mu.Unlock()

	s.log.Debug("live store ready", map[string]interface{}{"userId": userID, "count": len(items)})
	s.emit()
	return nil
}

// Stop releases the feed subscription and clears all state. It must not be
// called from an OnUpdate listener.
func (s *Store) Stop() {
	s.mu.Lock()
	if s.state == StateUninitialized && s.sub == nil {
		s.mu.Unlock()
		return
	}
	old := s.resetLocked("", StateUninitialized)
	s.mu.Unlock()
	if old != nil {
		old.Unsubscribe()
	}
	s.emit()
}

// OnAuthStateChange follows the signed-in user. A nil user tears down.
func (s *Store) OnAuthStateChange(ctx context.Context, user *identity.Identity) error {
	if user == nil {
		s.Stop()
		return nil
	}

	s.mu.Lock()
	same := s.userID == user.ID && s.state != StateUninitialized
	s.mu.Unlock()
	if same {
		return nil
	}
	return s.Start(ctx, user.ID)
}

func (s *Store) MarkAsRead(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return ErrNotReady
	}
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return apperrors.NewNotFoundError("notification", id)
	}
	if s.items[idx].IsRead() || s.pending[id] != "" {
		s.mu.Unlock()
		return nil
	}
	s.pending[id] = PendingRead
	gen, userID := s.generation, s.userID
	s.mu.Unlock()
	s.emit()

	changed, err := s.repo.MarkRead(ctx, userID, []string{id})
	if err != nil {
		s.clearPending(gen, PendingRead, id)
		return err
	}
	if changed == 0 {
		// Read or deleted elsewhere; no feed event will confirm this one.
		s.clearPending(gen, PendingRead, id)
	}
	return nil
}

func (s *Store) MarkAllAsRead(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return ErrNotReady
	}
	var ids []string
	for _, n := range s.items {
		if !n.IsRead() && s.pending[n.ID] == "" {
			ids = append(ids, n.ID)
			s.pending[n.ID] = PendingRead
		}
	}
	gen, userID := s.generation, s.userID
	s.mu.Unlock()
	// Rows past the loaded page may still be unread, so the store is always called.
	if len(ids) > 0 {
		s.emit()
	}

	if err := s.repo.MarkAllRead(ctx, userID, nil); err != nil {
		s.clearPending(gen, PendingRead, ids...)
		return err
	}
	return nil
}

func (s *Store) DeleteNotification(ctx context.Context, id string) error {
	return s.DeleteNotifications(ctx, []string{id})
}

// DeleteNotifications ignores ids that are not in the list. Rows stay visible
// until the delete events arrive.
func (s *Store) DeleteNotifications(ctx context.Context, ids []string) error {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return ErrNotReady
	}
	var targets []string
	for _, id := range ids {
		if s.indexLocked(id) >= 0 && s.pending[id] != PendingDelete {
			targets = append(targets, id)
			s.pending[id] = PendingDelete
		}
	}
	gen, userID := s.generation, s.userID
	s.mu.Unlock()
	if len(targets) == 0 {
		return nil
	}
	s.emit()

	if err := s.repo.DeleteNotifications(ctx, userID, targets); err != nil {
		s.clearPending(gen, PendingDelete, targets...)
		return err
	}
	return nil
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// OnUpdate registers fn for every state change and returns its remover.
// fn runs outside the store lock, possibly on the feed goroutine.
func (s *Store) OnUpdate(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) handleEvent(gen uint64, ev feed.Event) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	switch s.state {
	case StateLoading:
		s.buffered = append(s.buffered, ev)
		s.mu.Unlock()
		return
	case StateReady:
		if !s.applyLocked(ev) {
			s.mu.Unlock()
			return
		}
	default:
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.emit()
}

// applyLocked merges ev by id and reports whether the list changed.
func (s *Store) applyLocked(ev feed.Event) bool {
	var n notification.Notification
	if err := json.Unmarshal(ev.Row(), &n); err != nil || n.ID == "" {
		s.log.Warn("ignoring undecodable notification event", map[string]interface{}{
			"event": string(ev.Type),
		})
		return false
	}

	idx := s.indexLocked(n.ID)
	switch ev.Type {
	case feed.EventInsert:
		if idx >= 0 {
			s.items[idx] = n
		} else {
			s.items = append([]notification.Notification{n}, s.items...)
		}
	case feed.EventUpdate:
		if idx < 0 {
			return false
		}
		s.items[idx] = n
		if s.pending[n.ID] == PendingRead && n.IsRead() {
			delete(s.pending, n.ID)
		}
	case feed.EventDelete:
		delete(s.pending, n.ID)
		if idx < 0 {
			return false
		}
		s.items = append(s.items[:idx], s.items[idx+1:]...)
	default:
		return false
	}
	return true
}

func (s *Store) fail(gen uint64, err error) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	sub := s.sub
	s.sub = nil
	s.state = StateError
	s.lastErr = err
	s.items = []notification.Notification{}
	s.buffered = nil
	userID := s.userID
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	s.log.Error("live store failed to load", map[string]interface{}{"userId": userID, "error": err})
	s.emit()
}

func (s *Store) clearPending(gen uint64, op PendingOp, ids ...string) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	for _, id := range ids {
		if s.pending[id] == op {
			delete(s.pending, id)
		}
	}
	s.mu.Unlock()
	s.emit()
}

// resetLocked starts a new generation and returns the subscription to release.
func (s *Store) resetLocked(userID string, state State) feed.Subscription {
	old := s.sub
	s.generation++
	s.sub = nil
	s.userID = userID
	s.state = state
	s.items = []notification.Notification{}
	s.pending = make(map[string]PendingOp)
	s.buffered = nil
	s.lastErr = nil
	return old
}

func (s *Store) indexLocked(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Version:       s.version,
		State:         s.state,
		Notifications: append([]notification.Notification{}, s.items...),
		UnreadCount:   unreadCount(s.items),
	}
	if len(s.pending) > 0 {
		snap.Pending = make(map[string]PendingOp, len(s.pending))
		for id, op := range s.pending {
			snap.Pending[id] = op
		}
	}
	if s.lastErr != nil {
		snap.Error = s.lastErr.Error()
	}
	return snap
}

func (s *Store) emit() {
	s.mu.Lock()
	s.version++
	snap := s.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func unreadCount(items []notification.Notification) int {
	n := 0
	for i := range items {
		if !items[i].IsRead() {
			n++
		}
	}
	return n
}
