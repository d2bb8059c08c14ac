package pipeline

import "sync"

// maxHistory bounds the per-conversation turn count on each track.
const maxHistory = 100

// QueryTurn records one successful data exchange: the question asked and
// the SQL that answered it.
type QueryTurn struct {
	Query string `json:"user_query"`
	SQL   string `json:"sql"`
}

// ChatTurn records one general-track exchange.
type ChatTurn struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// ConversationStore keeps bounded per-conversation history, with separate
// tracks for data exchanges and general chat. Safe for concurrent use.
type ConversationStore struct {
	mu      sync.Mutex
	data    map[string][]QueryTurn
	general map[string][]ChatTurn
}

// NewConversationStore builds an empty store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		data:    make(map[string][]QueryTurn),
		general: make(map[string][]ChatTurn),
	}
}

// DataHistory returns a copy of the data-track turns for a conversation.
func (s *ConversationStore) DataHistory(id string) []QueryTurn {
	if id == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := s.data[id]
	out := make([]QueryTurn, len(turns))
	copy(out, turns)
	return out
}

// GeneralHistory returns a copy of the general-track turns for a conversation.
func (s *ConversationStore) GeneralHistory(id string) []ChatTurn {
	if id == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := s.general[id]
	out := make([]ChatTurn, len(turns))
	copy(out, turns)
	return out
}

// HasDataHistory reports whether a conversation holds any data exchanges.
func (s *ConversationStore) HasDataHistory(id string) bool {
	if id == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data[id]) > 0
}

// AppendData records a data exchange. A no-op when id is empty. The oldest
// turn is dropped once the track exceeds its bound.
func (s *ConversationStore) AppendData(id string, turn QueryTurn) {
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := append(s.data[id], turn)
	if len(turns) > maxHistory {
		turns = turns[1:]
	}
	s.data[id] = turns
}

// AppendGeneral records a general exchange under the same bounding rules.
func (s *ConversationStore) AppendGeneral(id string, turn ChatTurn) {
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := append(s.general[id], turn)
	if len(turns) > maxHistory {
		turns = turns[1:]
	}
	s.general[id] = turns
}

// Clear drops both tracks for one conversation.
func (s *ConversationStore) Clear(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	delete(s.general, id)
}

// ClearAll drops every conversation.
func (s *ConversationStore) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string][]QueryTurn)
	s.general = make(map[string][]ChatTurn)
}

// Conversations counts conversations holding data history.
func (s *ConversationStore) Conversations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// TotalDataTurns counts data-track turns across all conversations.
func (s *ConversationStore) TotalDataTurns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, turns := range s.data {
		total += len(turns)
	}
	return total
}
