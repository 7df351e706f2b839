// Package chat holds the client-local projection of the shared
// conversation log and the mutation protocol that operates on it.
package chat

import (
	"sort"
	"sync"
	"time"

	"github.com/drheny/cab-sub000/internal/models"
)

// Store is the single source of truth for what this client displays as
// the conversation. It reconciles three input streams: local optimistic
// sends, remote channel events and bulk refetch results.
//
// Committed messages are ordered by created_at; ties keep insertion
// order. Optimistic entries sit at the tail until reconciled. A mutex
// serializes the reader goroutine against UI-triggered calls.
type Store struct {
	mu      sync.RWMutex
	entries []models.Message
	index   map[string]int // id -> position in entries
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{index: make(map[string]int)}
}

// Messages returns a copy of the current ordered sequence.
func (s *Store) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Message, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of entries, optimistic included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Get returns the message with the given id.
func (s *Store) Get(id string) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return models.Message{}, false
	}
	return s.entries[i], true
}

// UnreadCount counts messages not yet read that were authored by someone
// other than the given identity.
func (s *Store) UnreadCount(me models.Identity) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for i := range s.entries {
		if !s.entries[i].IsRead && !s.entries[i].Mine(me) {
			n++
		}
	}
	return n
}

// AppendOptimistic inserts a draft at the tail with a temporary id and
// returns that id, the handle for a later Reconcile or Rollback.
func (s *Store) AppendOptimistic(draft models.Draft, author models.Identity) string {
	now := time.Now()
	msg := models.Message{
		ID:           models.NewTempID(),
		SenderRole:   author.Role,
		SenderName:   author.Name,
		Content:      draft.Content,
		ReplyTo:      draft.ReplyTo,
		ReplyPreview: draft.ReplyPreview,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.index[msg.ID] = len(s.entries)
	s.entries = append(s.entries, msg)
	return msg.ID
}

// Reconcile replaces the optimistic entry's temporary id and fields with
// the server-committed message, in place. The entry keeps its position so
// the just-sent message never jumps.
func (s *Store) Reconcile(tempID string, committed models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[tempID]
	if !ok {
		return false
	}

	// The authoritative echo may have slipped in first; drop the
	// optimistic duplicate instead of double-inserting.
	if j, dup := s.index[committed.ID]; dup && j != i {
		s.removeAt(i)
		return true
	}

	delete(s.index, tempID)
	s.entries[i] = committed
	s.index[committed.ID] = i
	return true
}

// Rollback removes an optimistic entry entirely, restoring the store to
// its pre-append state. Used when the originating send fails.
func (s *Store) Rollback(tempID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[tempID]
	if !ok || !models.IsTempID(tempID) {
		return false
	}
	s.removeAt(i)
	return true
}

// IngestCreated appends a remotely created message. Ingestion is
// idempotent: an id already present is ignored, so duplicate delivery of
// the same event leaves exactly one copy.
func (s *Store) IngestCreated(msg models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[msg.ID]; exists {
		return false
	}
	s.insertSorted(msg)
	return true
}

// IngestUpdated replaces the committed message by id, preserving
// position. A missing target (already deleted locally) is a no-op. The
// read flag is monotonic and never reverts.
func (s *Store) IngestUpdated(msg models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[msg.ID]
	if !ok {
		return false
	}
	if s.entries[i].IsRead {
		msg.IsRead = true
	}
	s.entries[i] = msg
	return true
}

// IngestDeleted removes a message by id. Idempotent against a missing
// target.
func (s *Store) IngestDeleted(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return false
	}
	s.removeAt(i)
	return true
}

// IngestRead flags a message as read. One-way: nothing ever resets it.
func (s *Store) IngestRead(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return false
	}
	s.entries[i].IsRead = true
	return true
}

// Restore re-inserts a previously removed message at its chronological
// position. Compensation path for a delete the server refused.
func (s *Store) Restore(msg models.Message) bool {
	return s.IngestCreated(msg)
}

// ClearAll empties the sequence and returns how many entries were
// dropped. Callers run this only after the backend confirmed the bulk
// delete; it is irreversible from the client's point of view.
func (s *Store) ClearAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.entries)
	s.entries = nil
	s.index = make(map[string]int)
	return n
}

// ReplaceAll swaps in the full committed log from a bulk fetch. Pending
// optimistic entries survive at the tail so an in-flight send is not
// lost by a concurrent refetch.
func (s *Store) ReplaceAll(committed []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []models.Message
	for _, e := range s.entries {
		if models.IsTempID(e.ID) {
			pending = append(pending, e)
		}
	}

	sorted := make([]models.Message, len(committed))
	copy(sorted, committed)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	s.entries = nil
	s.index = make(map[string]int)
	for _, m := range sorted {
		if _, dup := s.index[m.ID]; dup {
			continue
		}
		s.index[m.ID] = len(s.entries)
		s.entries = append(s.entries, m)
	}
	for _, m := range pending {
		s.index[m.ID] = len(s.entries)
		s.entries = append(s.entries, m)
	}
}

// HasPending reports whether an optimistic entry with the given
// temporary id is still awaiting reconciliation.
func (s *Store) HasPending(tempID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[tempID]
	return ok && models.IsTempID(tempID)
}

// HasPendingFrom reports whether any optimistic entry from the given
// identity is awaiting reconciliation. Fallback echo heuristic when the
// server does not echo correlation ids.
func (s *Store) HasPendingFrom(me models.Identity) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.entries {
		if models.IsTempID(s.entries[i].ID) && s.entries[i].Mine(me) {
			return true
		}
	}
	return false
}

// insertSorted places msg at the last position whose created_at is not
// after msg's, keeping arrival order for equal timestamps. Caller holds
// the write lock.
func (s *Store) insertSorted(msg models.Message) {
	pos := sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].CreatedAt.After(msg.CreatedAt)
	})
	s.entries = append(s.entries, models.Message{})
	copy(s.entries[pos+1:], s.entries[pos:])
	s.entries[pos] = msg
	s.reindexFrom(pos)
}

// removeAt drops the entry at position i. Caller holds the write lock.
func (s *Store) removeAt(i int) {
	id := s.entries[i].ID
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	delete(s.index, id)
	s.reindexFrom(i)
}

// reindexFrom rebuilds id positions from i onward. Caller holds the
// write lock.
func (s *Store) reindexFrom(i int) {
	for ; i < len(s.entries); i++ {
		s.index[s.entries[i].ID] = i
	}
}
