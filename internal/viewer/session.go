package viewer

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Session is one live viewing session: the loaded slots, the composed scene
// and the landmark annotator bound to the active mesh. Sessions and their
// decoded geometry are process-local and die with navigation.
type Session struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	Slots     map[string]*Slot
	Annotator *Annotator
	CreatedAt time.Time
}

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("viewer session not found")

// SessionManager owns the live sessions.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[uuid.UUID]*Session)}
}

// Put registers a new session and returns it.
func (m *SessionManager) Put(patientID uuid.UUID, slots map[string]*Slot, annotator *Annotator) *Session {
	s := &Session{
		ID:        uuid.New(),
		PatientID: patientID,
		Slots:     slots,
		Annotator: annotator,
		CreatedAt: time.Now(),
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get looks a session up by id.
func (m *SessionManager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Drop discards a session and the geometry it owns.
func (m *SessionManager) Drop(id uuid.UUID) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}
