// Package stats keeps the visit and analysis counters. Every backend
// increments atomically; none of them read, modify and write back.
package stats

import (
	"context"
	"fmt"
)

type Counter string

const (
	Visits   Counter = "visits"
	Analyses Counter = "analyses"
)

func (c Counter) Valid() bool {
	return c == Visits || c == Analyses
}

type Snapshot struct {
	Visits   int64 `json:"visits"`
	Analyses int64 `json:"analyses"`
}

func (s *Snapshot) set(c Counter, v int64) {
	switch c {
	case Visits:
		s.Visits = v
	case Analyses:
		s.Analyses = v
	}
}

type Store interface {
	// Incr adds one to the counter and returns the new value.
	Incr(ctx context.Context, c Counter) (int64, error)
	Snapshot(ctx context.Context) (Snapshot, error)
	Close() error
}

func checkCounter(c Counter) error {
	if !c.Valid() {
		return fmt.Errorf("unknown counter %q", c)
	}
	return nil
}
