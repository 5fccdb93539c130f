package stats

import (
	"context"
	"sync/atomic"
)

type MemoryStore struct {
	visits   atomic.Int64
	analyses atomic.Int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Incr(_ context.Context, c Counter) (int64, error) {
	switch c {
	case Visits:
		return s.visits.Add(1), nil
	case Analyses:
		return s.analyses.Add(1), nil
	}
	return 0, checkCounter(c)
}

func (s *MemoryStore) Snapshot(context.Context) (Snapshot, error) {
	return Snapshot{Visits: s.visits.Load(), Analyses: s.analyses.Load()}, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
