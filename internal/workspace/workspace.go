// Package workspace keeps the screen state of every signed-in session: one
// feed, one profile and the detail screens the user has opened.
package workspace

import (
	"context"
	"sync"
	"time"

	"synerthree/internal/detail"
	"synerthree/internal/feed"
	"synerthree/internal/observability"
	"synerthree/internal/profile"
	"synerthree/internal/session"
)

// maxDetails bounds the detail screens kept per session; the least recently
// used one is dropped first.
const maxDetails = 32

// Backend is everything the screens need from the remote client.
type Backend interface {
	feed.Backend
	detail.Backend
	profile.Backend
}

// Workspace is the screen state of one session. Screens do not share post
// data; each refetches on its own.
type Workspace struct {
	Session *session.Session
	Feed    *feed.Controller
	Profile *profile.Controller

	backend  Backend
	insights detail.Asker

	mu       sync.Mutex
	details  map[uint]*detailEntry
	lastSeen time.Time
}

type detailEntry struct {
	ctrl     *detail.Controller
	lastUsed time.Time
	// ready is closed once the first load has finished; err is its result.
	ready chan struct{}
	err   error
}

func newWorkspace(backend Backend, insights detail.Asker, sess *session.Session) *Workspace {
	return &Workspace{
		Session:  sess,
		Feed:     feed.NewController(backend, sess),
		Profile:  profile.NewController(backend, sess),
		backend:  backend,
		insights: insights,
		details:  make(map[uint]*detailEntry),
		lastSeen: time.Now(),
	}
}

// OpenDetail returns the loaded detail screen for postID. The first caller
// loads it and concurrent callers wait for that load. A screen whose first
// load failed is dropped so the next call tries again.
func (w *Workspace) OpenDetail(ctx context.Context, postID uint) (*detail.Controller, error) {
	e, first := w.detailEntry(postID)
	if first {
		err := e.ctrl.Load(ctx)
		if err != nil {
			w.mu.Lock()
			if w.details[postID] == e {
				delete(w.details, postID)
			}
			w.mu.Unlock()
		}
		e.err = err
		close(e.ready)
	} else {
		select {
		case <-e.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.err != nil {
		return nil, e.err
	}
	return e.ctrl, nil
}

func (w *Workspace) detailEntry(postID uint) (*detailEntry, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now()
	w.lastSeen = now
	if e, ok := w.details[postID]; ok {
		e.lastUsed = now
		return e, false
	}
	if len(w.details) >= maxDetails {
		w.evictLocked()
	}
	e := &detailEntry{
		ctrl:     detail.NewController(w.backend, w.insights, w.Session, postID),
		lastUsed: now,
		ready:    make(chan struct{}),
	}
	w.details[postID] = e
	return e, true
}

// CloseDetail drops the detail screen for postID.
func (w *Workspace) CloseDetail(postID uint) {
	w.mu.Lock()
	delete(w.details, postID)
	w.mu.Unlock()
}

func (w *Workspace) evictLocked() {
	var oldest uint
	var oldestAt time.Time
	for id, e := range w.details {
		if oldestAt.IsZero() || e.lastUsed.Before(oldestAt) {
			oldest, oldestAt = id, e.lastUsed
		}
	}
	delete(w.details, oldest)
}

func (w *Workspace) touch() {
	w.mu.Lock()
	w.lastSeen = time.Now()
	w.mu.Unlock()
}

func (w *Workspace) idleSince() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}

// Registry maps session ids to workspaces.
type Registry struct {
	backend  Backend
	insights detail.Asker

	mu     sync.Mutex
	spaces map[string]*Workspace
}

// NewRegistry creates an empty Registry.
func NewRegistry(backend Backend, insights detail.Asker) *Registry {
	return &Registry{
		backend:  backend,
		insights: insights,
		spaces:   make(map[string]*Workspace),
	}
}

// Open returns the workspace of sess, creating it on first use.
func (r *Registry) Open(sess *session.Session) *Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.spaces[sess.ID]; ok {
		w.touch()
		return w
	}
	w := newWorkspace(r.backend, r.insights, sess)
	r.spaces[sess.ID] = w
	observability.ActiveWorkspaces.Set(float64(len(r.spaces)))
	return w
}

// Anonymous returns a throwaway workspace for a viewer without a session.
func (r *Registry) Anonymous() *Workspace {
	return newWorkspace(r.backend, r.insights, nil)
}

// Close discards the workspace of a session.
func (r *Registry) Close(sessionID string) {
	r.mu.Lock()
	delete(r.spaces, sessionID)
	observability.ActiveWorkspaces.Set(float64(len(r.spaces)))
	r.mu.Unlock()
}

// Len is the number of open workspaces.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.spaces)
}

// Sweep drops workspaces whose session has expired or that have been idle
// longer than idle. It returns how many were dropped.
func (r *Registry) Sweep(now time.Time, idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	dropped := 0
	for id, w := range r.spaces {
		if !w.Session.Valid(now) || now.Sub(w.idleSince()) > idle {
			delete(r.spaces, id)
			dropped++
		}
	}
	observability.ActiveWorkspaces.Set(float64(len(r.spaces)))
	return dropped
}
