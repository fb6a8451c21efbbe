package avatar

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("avatar session not found")
	ErrSessionInactive = errors.New("avatar session is no longer active")
)

// Session is the caller-visible snapshot of a realtime avatar session.
type Session struct {
	ID        string         `json:"session_id"`
	ClientID  string         `json:"client_id"`
	Config    ResolvedConfig `json:"avatar_config"`
	CreatedAt time.Time      `json:"created_at"`
	Active    bool           `json:"active"`
}

// entry pairs the session state with its synthesis handle. The per-entry
// mutex serializes Send and Close on the same session id; the registry map
// itself is guarded separately.
type entry struct {
	mu     sync.Mutex
	sess   Session
	handle Handle
}

// Registry owns realtime avatar sessions: none -> created/active -> closed.
// Sessions never expire on their own; close is the only exit.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	builder  *Builder
	engine   HandleEngine
}

func NewRegistry(builder *Builder, engine HandleEngine) *Registry {
	return &Registry{
		sessions: make(map[string]*entry),
		builder:  builder,
		engine:   engine,
	}
}

// Open validates and resolves the avatar configuration, acquires a synthesis
// handle bound to the resolved voice and registers the session as active.
func (r *Registry) Open(ctx context.Context, clientID string, overrides Overrides) (Session, error) {
	resolved := r.builder.Build(overrides)

	handle, err := r.engine.NewHandle(ctx, resolved.Voice)
	if err != nil {
		return Session{}, err
	}

	s := Session{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		Config:    resolved,
		CreatedAt: time.Now().UTC(),
		Active:    true,
	}

	r.mu.Lock()
	r.sessions[s.ID] = &entry{sess: s, handle: handle}
	r.mu.Unlock()

	return s, nil
}

// Get returns a snapshot of the session.
func (r *Registry) Get(sessionID string) (Session, error) {
	r.mu.RLock()
	e, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return Session{}, ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess, nil
}

// SendResult reports the outcome of one realtime utterance.
type SendResult struct {
	Success  bool          `json:"success"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Send speaks text through the session's bound handle using the stored
// configuration. Engine failures come back as an unsuccessful SendResult;
// the returned error is reserved for absent or inactive sessions.
func (r *Registry) Send(ctx context.Context, sessionID, text string) (SendResult, error) {
	r.mu.RLock()
	e, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return SendResult{}, ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.sess.Active {
		return SendResult{}, ErrSessionInactive
	}

	ssml := Compose(text, e.sess.Config, e.sess.Config.Gesture)
	res, err := e.handle.Speak(ctx, ssml)
	if err != nil {
		return SendResult{Success: false, Error: err.Error()}, nil
	}
	return SendResult{Success: true, Duration: res.Duration}, nil
}

// Close deactivates and removes the session. Closing an unknown id reports
// ErrSessionNotFound; closing twice does the same.
func (r *Registry) Close(sessionID string) error {
	r.mu.Lock()
	e, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	e.mu.Lock()
	e.sess.Active = false
	handle := e.handle
	e.mu.Unlock()

	if handle != nil {
		_ = handle.Close()
	}
	return nil
}

// ListActive returns the active session ids in sorted order.
func (r *Registry) ListActive() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id, e := range r.sessions {
		e.mu.Lock()
		active := e.sess.Active
		e.mu.Unlock()
		if active {
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// ActiveCount reports how many sessions are currently active.
func (r *Registry) ActiveCount() int {
	return len(r.ListActive())
}
