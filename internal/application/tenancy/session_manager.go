package tenancy

import (
	"context"
	"strings"
	"sync"

	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/tenancy"
	"go.uber.org/zap"
)

// SessionManager keeps one Session per signed-in user so the cache paint,
// the viewing override and the request lists survive across requests. A
// support agent gets a separate session per support target, so alternating
// between their own view and a supported business never resets either.
type SessionManager struct {
	deps SessionDeps
	cfg  SessionConfig

	mu       sync.Mutex
	sessions map[sessionKey]*Session
}

type sessionKey struct {
	uid           string
	supportTarget string
}

func keyFor(uid string, support tenancy.SupportSession) sessionKey {
	key := sessionKey{uid: uid}
	if support.Active() {
		key.supportTarget = strings.TrimSpace(support.BusinessID)
	}
	return key
}

// NewSessionManager creates a new session manager
func NewSessionManager(deps SessionDeps, cfg SessionConfig) *SessionManager {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &SessionManager{
		deps:     deps,
		cfg:      cfg,
		sessions: make(map[sessionKey]*Session),
	}
}

// Session returns the session for identity, creating it and starting the
// first resolution when needed. A changed email, display name or support
// details for the same target restart resolution.
func (m *SessionManager) Session(ctx context.Context, identity tenancy.Identity, support tenancy.SupportSession) *Session {
	key := keyFor(identity.UID, support)
	m.mu.Lock()
	session, ok := m.sessions[key]
	if !ok {
		session = NewSession(m.deps, m.cfg)
		m.sessions[key] = session
	}
	m.mu.Unlock()

	current := session.Identity()
	if current == nil || *current != identity || session.Support() != support {
		session.SetIdentity(ctx, &identity, support)
	}
	return session
}

// Lookup returns the user's own session, outside support mode, without
// starting one
func (m *SessionManager) Lookup(uid string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionKey{uid: uid}]
	return session, ok
}

// Forget tears down every session of uid, support sessions included
func (m *SessionManager) Forget(ctx context.Context, uid string) {
	m.mu.Lock()
	var forgotten []*Session
	for key, session := range m.sessions {
		if key.uid == uid {
			forgotten = append(forgotten, session)
			delete(m.sessions, key)
		}
	}
	m.mu.Unlock()

	for _, session := range forgotten {
		session.SetIdentity(ctx, nil, tenancy.SupportSession{})
		session.Close()
	}
}

// Len returns the number of live sessions
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops every session
func (m *SessionManager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[sessionKey]*Session)
	m.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}
