package ws

import (
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/handoff-service/internal/domain"
	apperrors "github.com/spec-kit/handoff-service/pkg/util"
)

// MinOperatorNameLength is the shortest accepted display name after trimming.
const MinOperatorNameLength = 2

// Registry tracks live session identities. Sessions are in-memory only; a
// process restart drops all of them and clients re-register on reconnect.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*domain.Session)}
}

// Register binds an identity to a session, replacing any previous binding for
// the same session id. Names shorter than two characters after trimming are
// rejected without touching existing state.
func (r *Registry) Register(sessionID string, identity domain.Identity) (*domain.Session, error) {
	identity.Name = strings.TrimSpace(identity.Name)
	if len(identity.Name) < MinOperatorNameLength {
		return nil, apperrors.NewInvalidIdentity("operator name must be at least 2 characters")
	}

	session := &domain.Session{
		ID:          sessionID,
		Identity:    identity,
		ConnectedAt: time.Now(),
	}

	r.mu.Lock()
	if existing, ok := r.sessions[sessionID]; ok {
		session.ConnectedAt = existing.ConnectedAt
	}
	r.sessions[sessionID] = session
	r.mu.Unlock()
	return session, nil
}

// Resolve returns the identity bound to a session. Unregistered sessions get
// the placeholder identity so message flow never blocks on registration.
func (r *Registry) Resolve(sessionID string) domain.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if session, ok := r.sessions[sessionID]; ok {
		return session.Identity
	}
	return domain.PlaceholderIdentity()
}

// Lookup returns the session when registered.
func (r *Registry) Lookup(sessionID string) (*domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[sessionID]
	return session, ok
}

// Unregister drops the session binding. Unknown ids are a no-op.
func (r *Registry) Unregister(sessionID string) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	r.mu.Unlock()
}

// FindByOperator returns the session ids currently bound to an operator id. An
// operator may hold several sessions from different devices.
func (r *Registry) FindByOperator(operatorID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id, session := range r.sessions {
		if session.Identity.OperatorID != nil && *session.Identity.OperatorID == operatorID {
			ids = append(ids, id)
		}
	}
	return ids
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
