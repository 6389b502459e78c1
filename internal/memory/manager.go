package memory

import (
	"sync"

	"github.com/themobileprof/kernelchat/pkg/llm"
)

// session holds the recent turns of one chat session
type session struct {
	turns llm.Conversation
	mu    sync.RWMutex
}

// Manager keeps short-term chat history for every session
type Manager struct {
	sessions map[string]*session
	size     int
	mu       sync.RWMutex
}

// NewManager creates a manager that keeps the last size turns per session
func NewManager(size int) *Manager {
	if size <= 0 {
		size = 20
	}
	return &Manager{
		sessions: make(map[string]*session),
		size:     size,
	}
}

// get returns the session, creating it when create is set
func (m *Manager) get(id string, create bool) *session {
	m.mu.RLock()
	s, exists := m.sessions[id]
	m.mu.RUnlock()
	if exists || !create {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, exists = m.sessions[id]; !exists {
		s = &session{turns: make(llm.Conversation, 0, m.size)}
		m.sessions[id] = s
	}
	return s
}

// Append adds turns to the session, keeping only the most recent ones
func (m *Manager) Append(id string, turns ...llm.Turn) {
	s := m.get(id, true)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = append(s.turns, turns...)
	if len(s.turns) > m.size {
		kept := make(llm.Conversation, m.size)
		copy(kept, s.turns[len(s.turns)-m.size:])
		s.turns = kept
	}
}

// History returns a copy of the session's turns, oldest first
func (m *Manager) History(id string) llm.Conversation {
	s := m.get(id, false)
	if s == nil {
		return llm.Conversation{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	history := make(llm.Conversation, len(s.turns))
	copy(history, s.turns)
	return history
}

// Exists reports whether the session has been seen
func (m *Manager) Exists(id string) bool {
	return m.get(id, false) != nil
}

// Clear empties the session's history but keeps the session
func (m *Manager) Clear(id string) {
	s := m.get(id, false)
	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = make(llm.Conversation, 0, m.size)
}

// Remove forgets the session
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
