package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/hotel-frontdesk/backend/internal/model/chat"
)

// MemoryStore implements Store in memory. Used by tests and the CLI when no
// database path is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]chat.Session
	messages map[string][]chat.Message
}

// NewMemoryStore bootstraps an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]chat.Session),
		messages: make(map[string][]chat.Message),
	}
}

// EnsureSession records the session if it is new.
func (s *MemoryStore) EnsureSession(_ context.Context, sessionID string, guestID *int64) error {
	if sessionID == "" {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		session = chat.Session{ID: sessionID, CreatedAt: time.Now().UTC()}
	}
	if session.GuestID == nil && guestID != nil {
		id := *guestID
		session.GuestID = &id
	}
	s.sessions[sessionID] = session
	return nil
}

// AppendMessage appends a message to the session history.
func (s *MemoryStore) AppendMessage(_ context.Context, message chat.Message) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[message.SessionID]; !ok {
		return chat.Message{}, ErrSessionNotFound
	}

	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	s.messages[message.SessionID] = append(s.messages[message.SessionID], message)
	return message, nil
}

// RecentMessages returns the last limit messages, oldest first.
func (s *MemoryStore) RecentMessages(_ context.Context, sessionID string, limit int) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := s.messages[sessionID]
	start := 0
	if limit > 0 && len(messages) > limit {
		start = len(messages) - limit
	}

	copied := make([]chat.Message, len(messages)-start)
	copy(copied, messages[start:])
	return copied, nil
}

// History returns the last limit messages, newest first.
func (s *MemoryStore) History(ctx context.Context, sessionID string, limit int) ([]chat.Message, error) {
	recent, _ := s.RecentMessages(ctx, sessionID, limit)
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}
	return recent, nil
}
