package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"meetcal/internal/model"
)

// Memory is an in-process MeetingStore. Meetings are kept in creation order
// so equal starts come back in the order they were stored.
type Memory struct {
	mu       sync.RWMutex
	meetings []model.Meeting
	index    map[string]int
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{index: make(map[string]int)}
}

func (s *Memory) ListByRange(ctx context.Context, q RangeQuery) (ListResult, error) {
	if err := ctx.Err(); err != nil {
		return ListResult{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return paginate(s.meetings, q), nil
}

func (s *Memory) Get(_ context.Context, id string) (model.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return model.Meeting{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.meetings[i].Clone(), nil
}

func (s *Memory) Create(_ context.Context, d model.Draft) (model.Meeting, error) {
	if err := d.Validate(); err != nil {
		return model.Meeting{}, err
	}
	m := model.NewMeeting(d)
	m.ID = uuid.NewString()
	m.Version = 1

	s.mu.Lock()
	defer s.mu.Unlock()
	s.index[m.ID] = len(s.meetings)
	s.meetings = append(s.meetings, m)
	return m.Clone(), nil
}

func (s *Memory) Update(_ context.Context, id string, p model.Patch) (model.Meeting, error) {
	if err := p.Validate(); err != nil {
		return model.Meeting{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return model.Meeting{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cur := s.meetings[i]
	if err := checkVersion(p.IfMatch, cur.Version); err != nil {
		return model.Meeting{}, fmt.Errorf("%w: %s has version %d", err, id, cur.Version)
	}
	next, err := p.Apply(cur)
	if err != nil {
		return model.Meeting{}, err
	}
	next.Version = cur.Version + 1
	s.meetings[i] = next
	return next.Clone(), nil
}

func (s *Memory) Delete(_ context.Context, id string, opts DeleteOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cur := s.meetings[i]
	if err := checkOwner(opts.Actor, cur.Owner); err != nil {
		return fmt.Errorf("%w: %s may not delete %s", err, opts.Actor, id)
	}
	if err := checkVersion(opts.IfMatch, cur.Version); err != nil {
		return fmt.Errorf("%w: %s has version %d", err, id, cur.Version)
	}

	s.meetings = append(s.meetings[:i], s.meetings[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.meetings); j++ {
		s.index[s.meetings[j].ID] = j
	}
	return nil
}
