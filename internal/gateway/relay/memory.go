package relay

import (
	"context"
	"sync"
	"time"
)

// MemoryStore 是默认的进程内邮箱存储。
type MemoryStore struct {
	mu    sync.RWMutex
	boxes map[string]Mailbox
}

// NewMemoryStore 创建空存储。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{boxes: make(map[string]Mailbox)}
}

// Get 实现 Store。
func (s *MemoryStore) Get(_ context.Context, id string) (Mailbox, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	box, ok := s.boxes[id]
	return box, ok, nil
}

// Put 实现 Store。
func (s *MemoryStore) Put(_ context.Context, id string, box Mailbox) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.boxes[id]; ok {
		return ErrExists
	}
	s.boxes[id] = box
	return nil
}

// Delete 实现 Store。
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.boxes, id)
	s.mu.Unlock()
	return nil
}

// DeleteBefore 实现 Store。
func (s *MemoryStore) DeleteBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, box := range s.boxes {
		if box.CreatedAt.Before(cutoff) {
			delete(s.boxes, id)
			removed++
		}
	}
	return removed, nil
}

// Close 实现 Store。
func (s *MemoryStore) Close() error { return nil }
