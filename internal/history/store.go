// Package history persists conversation transcripts. The transcript is an
// append-only record: turns are inserted and read back in order, never
// updated in place. The authoritative history for a turn is still the one
// the client threads through the request; the store exists for audit and
// for clients that reconnect without their local transcript.
package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alanmarkz/promptifi/internal/models"
)

// Store records and replays conversation transcripts.
type Store interface {
	// Append records the messages of one settled turn.
	Append(ctx context.Context, conversationID, wallet string, messages []models.ConversationMessage) error

	// Load replays a conversation's messages in insertion order.
	Load(ctx context.Context, conversationID string) ([]models.ConversationMessage, error)

	// Conversations lists a wallet's conversation ids, most recent first.
	Conversations(ctx context.Context, wallet string) ([]string, error)

	Close()
}

type memoryRecord struct {
	wallet   string
	messages []models.ConversationMessage
	updated  time.Time
}

// MemoryStore keeps transcripts in process memory. It is the fallback when
// no database is configured; transcripts do not survive a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*memoryRecord
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*memoryRecord)}
}

func (s *MemoryStore) Append(_ context.Context, conversationID, wallet string, messages []models.ConversationMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[conversationID]
	if !ok {
		record = &memoryRecord{wallet: wallet}
		s.records[conversationID] = record
	}
	record.messages = append(record.messages, messages...)
	record.updated = time.Now()
	return nil
}

func (s *MemoryStore) Load(_ context.Context, conversationID string) ([]models.ConversationMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[conversationID]
	if !ok {
		return nil, nil
	}
	out := make([]models.ConversationMessage, len(record.messages))
	copy(out, record.messages)
	return out, nil
}

func (s *MemoryStore) Conversations(_ context.Context, wallet string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type entry struct {
		id      string
		updated time.Time
	}
	entries := make([]entry, 0)
	for id, record := range s.records {
		if record.wallet == wallet {
			entries = append(entries, entry{id: id, updated: record.updated})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].updated.After(entries[j].updated) })
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids, nil
}

func (s *MemoryStore) Close() {}
