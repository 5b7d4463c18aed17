package album

import (
	"sync"
	"time"
)

type userLock struct {
	mu   sync.Mutex
	refs int
}

// Registry owns every live draft and pending deletion in the process.
// Map access is guarded by one mutex; Lock additionally serializes whole
// event handling per user so two events from one sender never interleave.
type Registry struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	pending  map[int64]PendingDeletion
	locks    map[int64]*userLock
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[int64]*Session),
		pending:  make(map[int64]PendingDeletion),
		locks:    make(map[int64]*userLock),
		now:      time.Now,
	}
}

// Lock blocks until the caller owns user's lock and returns the release func.
func (r *Registry) Lock(user int64) func() {
	r.mu.Lock()
	l, ok := r.locks[user]
	if !ok {
		l = &userLock{}
		r.locks[user] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, user)
		}
		r.mu.Unlock()
	}
}

func (r *Registry) View(user int64) SessionView {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := SessionView{}
	if s, ok := r.sessions[user]; ok {
		v.HasSession = true
		v.State = s.State
	}
	_, v.HasPending = r.pending[user]
	return v
}

// Get returns a copy of user's draft.
func (r *Registry) Get(user int64) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[user]
	if !ok {
		return Session{}, false
	}
	return s.clone(), true
}

// Create stores s as user's draft unless one is already live.
func (r *Registry) Create(user int64, s Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[user]; ok {
		return ErrAlreadyActive
	}
	now := r.now()
	s = s.clone()
	s.UserID = user
	if s.StartedAt.IsZero() {
		s.StartedAt = now
	}
	s.UpdatedAt = now
	r.sessions[user] = &s
	return nil
}

// Mutate applies fn to a copy of user's draft and commits the copy only when
// fn returns nil.
func (r *Registry) Mutate(user int64, fn func(*Session) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.sessions[user]
	if !ok {
		return ErrNoActiveSession
	}
	next := cur.clone()
	if err := fn(&next); err != nil {
		return err
	}
	next.UpdatedAt = r.now()
	r.sessions[user] = &next
	return nil
}

func (r *Registry) Remove(user int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[user]
	delete(r.sessions, user)
	return ok
}

func (r *Registry) Pending(user int64) (PendingDeletion, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[user]
	return p, ok
}

// SetPending records p, replacing any earlier pending deletion of the user.
func (r *Registry) SetPending(p PendingDeletion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now()
	}
	r.pending[p.UserID] = p
}

// TakePending removes and returns user's pending deletion.
func (r *Registry) TakePending(user int64) (PendingDeletion, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[user]
	delete(r.pending, user)
	return p, ok
}

func (r *Registry) Counts() (sessions, pending int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions), len(r.pending)
}

// EvictIdle drops drafts and pending deletions untouched for maxIdle.
// Users currently holding their lock are skipped.
func (r *Registry) EvictIdle(maxIdle time.Duration) (sessions, pending int) {
	if maxIdle <= 0 {
		return 0, 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-maxIdle)
	for user, s := range r.sessions {
		if _, busy := r.locks[user]; busy {
			continue
		}
		if s.UpdatedAt.Before(cutoff) {
			delete(r.sessions, user)
			sessions++
		}
	}
	for user, p := range r.pending {
		if _, busy := r.locks[user]; busy {
			continue
		}
		if p.CreatedAt.Before(cutoff) {
			delete(r.pending, user)
			pending++
		}
	}
	return sessions, pending
}
