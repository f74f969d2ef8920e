// Package conversation holds the per-user draft state machine that collects a
// filter definition over a sequence of messages.
package conversation

import "sync"

// State is the closed set of conversation states. Advance is total over it, so
// an unhandled state is a compile-time gap, not a silent no-op.
type State int

const (
	StateItem State = iota
	StatePrice
	StateLocation
	StateConfirmation
	StateEditItem
	StateEditPrice
	StateEditLocation
)

// Prompt tells the caller which question to ask after a transition.
type Prompt int

const (
	PromptNone Prompt = iota
	PromptPrice
	PromptLocation
	PromptConfirmation
)

// Draft is the filter record currently under construction. It is a named
// field of the session, never "the last element of some list".
type Draft struct {
	Item     string
	Price    string
	Location string
}

// Complete reports whether all three fields have been supplied.
func (d Draft) Complete() bool {
	return d.Item != "" && d.Price != "" && d.Location != ""
}

type Session struct {
	State State
	Draft Draft
}

// Advance applies one free-text input to the session and returns the prompt
// for the next question. Field values are stored exactly as typed; nothing is
// validated here.
func (s *Session) Advance(input string) Prompt {
	switch s.State {
	case StateItem:
		s.Draft.Item = input
		s.State = StatePrice
		return PromptPrice
	case StatePrice:
		s.Draft.Price = input
		s.State = StateLocation
		return PromptLocation
	case StateLocation:
		s.Draft.Location = input
		s.State = StateConfirmation
		return PromptConfirmation
	case StateConfirmation:
		// Unrecognized text at the confirmation step re-asks the summary.
		return PromptConfirmation
	case StateEditItem:
		s.Draft.Item = input
		s.State = StateConfirmation
		return PromptConfirmation
	case StateEditPrice:
		s.Draft.Price = input
		s.State = StateConfirmation
		return PromptConfirmation
	case StateEditLocation:
		s.Draft.Location = input
		s.State = StateConfirmation
		return PromptConfirmation
	}
	return PromptNone
}

// SetLocation applies a location button selection; it behaves like free text
// in the location state.
func (s *Session) SetLocation(location string) {
	s.Draft.Location = location
	s.State = StateConfirmation
}

// BeginEdit re-enters field collection against the current draft, starting at
// the item.
func (s *Session) BeginEdit() {
	s.State = StateEditItem
}

// Manager owns the active draft sessions, keyed by user. Sessions live only
// for the duration of a conversation and are never persisted.
type Manager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[int64]*Session)}
}

// Ensure returns the user's session, creating a fresh one if none is active.
func (m *Manager) Ensure(userID int64) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		return s
	}
	s := &Session{State: StateItem}
	m.sessions[userID] = s
	return s
}

// Begin resets the user to a fresh session awaiting the item.
func (m *Manager) Begin(userID int64) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &Session{State: StateItem}
	m.sessions[userID] = s
	return s
}

func (m *Manager) Get(userID int64) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	return s, ok
}

func (m *Manager) Active(userID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[userID]
	return ok
}

func (m *Manager) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}
