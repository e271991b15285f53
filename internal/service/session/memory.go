package session

import (
	"sort"
	"sync"

	"inkwell/internal/domain/models/chat"
)

// MemoryStore holds incognito sessions for the lifetime of the process.
// Nothing in here ever touches the database, and a restart forgets it
// all. Sessions are copied on the way in and out so callers and the
// engine never share message slices with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*chat.Session
}

// NewMemoryStore creates an empty incognito store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*chat.Session)}
}

func cloneSession(s *chat.Session) *chat.Session {
	cp := *s
	cp.Messages = make([]chat.Message, len(s.Messages))
	copy(cp.Messages, s.Messages)
	return &cp
}

// Put stores a snapshot of the session, replacing any previous one.
func (m *MemoryStore) Put(s *chat.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = cloneSession(s)
}

// Get returns a copy of the session, reporting whether it exists for
// this user.
func (m *MemoryStore) Get(sessionID, userID string) (*chat.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok || s.UserID != userID {
		return nil, false
	}
	return cloneSession(s), true
}

// Has reports whether the session exists at all, regardless of owner.
func (m *MemoryStore) Has(sessionID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[sessionID]
	return ok
}

// ListByStory returns copies of the user's incognito sessions for one
// story, newest first.
func (m *MemoryStore) ListByStory(storyID, userID string) []chat.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []chat.Session{}
	for _, s := range m.sessions {
		if s.StoryID == storyID && s.UserID == userID {
			out = append(out, *cloneSession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Delete removes the session, reporting whether it was present for
// this user.
func (m *MemoryStore) Delete(sessionID, userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok || s.UserID != userID {
		return false
	}
	delete(m.sessions, sessionID)
	return true
}
