package services

import (
	"sync"
	"time"

	"github.com/dyk-im/Break-Bias/models"
)

const defaultMaxMessages = 20

type conversation struct {
	// turn is held for a whole chat turn so turns of one conversation never
	// interleave.
	turn sync.Mutex
	// removed is set by Clear while holding turn; a turn that was waiting
	// on a removed conversation starts over on the live one.
	removed  bool
	mu       sync.Mutex
	messages []models.ChatMessage
}

// ConversationStore keeps bounded in-memory chat histories.
type ConversationStore struct {
	mu            sync.RWMutex
	conversations map[string]*conversation
	maxMessages   int
	now           func() time.Time
}

// NewConversationStore creates a store keeping the last maxMessages messages
// of every conversation.
func NewConversationStore(maxMessages int) *ConversationStore {
	if maxMessages <= 0 {
		maxMessages = defaultMaxMessages
	}
	return &ConversationStore{
		conversations: make(map[string]*conversation),
		maxMessages:   maxMessages,
		now:           time.Now,
	}
}

func (s *ConversationStore) get(id string, create bool) *conversation {
	s.mu.RLock()
	c, ok := s.conversations[id]
	s.mu.RUnlock()
	if ok || !create {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.conversations[id]; ok {
		return c
	}
	c = &conversation{}
	s.conversations[id] = c
	return c
}

// Lock serialises turns of one conversation and returns the unlock function.
func (s *ConversationStore) Lock(id string) func() {
	for {
		c := s.get(id, true)
		c.turn.Lock()
		if !c.removed {
			return c.turn.Unlock
		}
		c.turn.Unlock()
	}
}

// Append adds a message and drops the oldest beyond the limit.
func (s *ConversationStore) Append(id, role, content string) {
	c := s.get(id, true)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, models.ChatMessage{Role: role, Content: content, CreatedAt: s.now()})
	if over := len(c.messages) - s.maxMessages; over > 0 {
		c.messages = append([]models.ChatMessage(nil), c.messages[over:]...)
	}
}

// History returns a copy of the conversation, oldest first. Unknown ids
// have an empty history.
func (s *ConversationStore) History(id string) []models.ChatMessage {
	c := s.get(id, false)
	if c == nil {
		return []models.ChatMessage{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.ChatMessage{}, c.messages...)
}

// Clear drops a conversation, waiting for any turn in progress. Unknown ids
// are a no-op.
func (s *ConversationStore) Clear(id string) bool {
	for {
		c := s.get(id, false)
		if c == nil {
			return false
		}
		c.turn.Lock()
		if c.removed {
			c.turn.Unlock()
			continue
		}

		s.mu.Lock()
		delete(s.conversations, id)
		c.removed = true
		s.mu.Unlock()

		c.mu.Lock()
		c.messages = nil
		c.mu.Unlock()
		c.turn.Unlock()
		return true
	}
}

// Count returns the number of live conversations.
func (s *ConversationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}
