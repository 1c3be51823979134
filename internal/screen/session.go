package screen

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/catalog-admin/internal/domain/catalog"
)

const defaultSharedTTL = time.Minute

// StoreConfig configures a session Store.
type StoreConfig struct {
	// TTL is how long a session may stay idle before it is evicted.
	TTL time.Duration
	// MaxSessions caps the sessions held, 0 means no cap. At the cap the least
	// recently seen session is evicted to make room.
	MaxSessions int
	// SharedTTL is how long the shared catalog is reused before it is
	// reloaded. Defaults to a minute.
	SharedTTL time.Duration
	// New builds the screen of a fresh session.
	New     func() *Screen
	Logger  *zap.Logger
	Metrics *Metrics
	Now     func() time.Time
}

type session struct {
	screen   *Screen
	lastSeen time.Time
}

// Store keeps one Screen per browser session.
type Store struct {
	cfg StoreConfig

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
	shared   *Screen
	sharedAt time.Time
}

// NewStore returns an empty Store.
func NewStore(cfg StoreConfig) *Store {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.SharedTTL <= 0 {
		cfg.SharedTTL = defaultSharedTTL
	}
	return &Store{
		cfg:      cfg,
		sessions: make(map[uuid.UUID]*session),
	}
}

// Acquire returns the screen of session id. When id is malformed, unknown or
// expired a new session is created and mounted; created reports that case.
func (st *Store) Acquire(ctx context.Context, id string) (_ uuid.UUID, _ *Screen, created bool) {
	now := st.cfg.Now()

	st.mu.Lock()
	if key, err := uuid.Parse(id); err == nil {
		if sess, ok := st.sessions[key]; ok && now.Sub(sess.lastSeen) < st.cfg.TTL {
			sess.lastSeen = now
			st.mu.Unlock()
			return key, sess.screen, false
		}
	}
	var evicted *Screen
	if st.cfg.MaxSessions > 0 && len(st.sessions) >= st.cfg.MaxSessions {
		evicted = st.evictOldest()
	}
	key := uuid.New()
	sc := st.cfg.New()
	st.sessions[key] = &session{screen: sc, lastSeen: now}
	st.mu.Unlock()

	if evicted != nil {
		evicted.Close()
		st.cfg.Metrics.session(ctx, -1)
		st.cfg.Logger.Debug("Session evicted at capacity", zap.Int("max", st.cfg.MaxSessions))
	}
	st.cfg.Metrics.session(ctx, 1)
	if err := sc.Mount(); err != nil {
		st.cfg.Logger.Warn("Mount screen", zap.Stringer("session", key), zap.Error(err))
	}
	st.cfg.Logger.Debug("Session created", zap.Stringer("session", key))
	return key, sc, true
}

// evictOldest removes the least recently seen session. st.mu must be held.
func (st *Store) evictOldest() *Screen {
	var (
		oldest uuid.UUID
		seen   time.Time
		found  bool
	)
	for key, sess := range st.sessions {
		if !found || sess.lastSeen.Before(seen) {
			oldest, seen, found = key, sess.lastSeen, true
		}
	}
	if !found {
		return nil
	}
	sc := st.sessions[oldest].screen
	delete(st.sessions, oldest)
	return sc
}

// Shared returns the screen serving reads that carry no session. It is built
// on first use and reloaded when its last load failed or is older than
// SharedTTL. Callers share one in-flight load; no session is created.
func (st *Store) Shared() *Screen {
	now := st.cfg.Now()

	st.mu.Lock()
	if st.shared == nil {
		st.shared = st.cfg.New()
	}
	sc, loadedAt := st.shared, st.sharedAt
	st.mu.Unlock()

	if !loadedAt.IsZero() && now.Sub(loadedAt) < st.cfg.SharedTTL && sc.Phase() != catalog.PhaseFailed {
		return sc
	}
	if err := sc.Refresh(); err != nil {
		st.cfg.Logger.Warn("Refresh shared catalog", zap.Error(err))
		return sc
	}

	st.mu.Lock()
	st.sharedAt = now
	st.mu.Unlock()
	return sc
}

// Lookup returns the screen of an existing, live session without creating one.
func (st *Store) Lookup(id string) (*Screen, bool) {
	key, err := uuid.Parse(id)
	if err != nil {
		return nil, false
	}
	now := st.cfg.Now()

	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[key]
	if !ok || now.Sub(sess.lastSeen) >= st.cfg.TTL {
		return nil, false
	}
	sess.lastSeen = now
	return sess.screen, true
}

// Len returns the number of sessions held, expired ones included until the
// next sweep.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep evicts and closes sessions idle for at least the TTL.
func (st *Store) Sweep(ctx context.Context, now time.Time) int {
	var expired []*Screen

	st.mu.Lock()
	for key, sess := range st.sessions {
		if now.Sub(sess.lastSeen) >= st.cfg.TTL {
			expired = append(expired, sess.screen)
			delete(st.sessions, key)
		}
	}
	st.mu.Unlock()

	for _, sc := range expired {
		sc.Close()
	}
	if n := len(expired); n > 0 {
		st.cfg.Metrics.session(ctx, -int64(n))
		st.cfg.Logger.Debug("Sessions evicted", zap.Int("count", n))
	}
	return len(expired)
}

// StartSweeper evicts idle sessions every interval until ctx is cancelled.
func (st *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st.Sweep(ctx, st.cfg.Now())
			}
		}
	}()
}

// Close closes every session and the shared screen.
func (st *Store) Close() {
	st.mu.Lock()
	sessions, shared := st.sessions, st.shared
	st.sessions = make(map[uuid.UUID]*session)
	st.shared = nil
	st.mu.Unlock()

	for _, sess := range sessions {
		sess.screen.Close()
	}
	if shared != nil {
		shared.Close()
	}
}
