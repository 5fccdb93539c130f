package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

var ErrClosed = errors.New("stats store closed")

type fileOp struct {
	counter Counter // empty for snapshot requests
	reply   chan fileReply
}

type fileReply struct {
	value    int64
	snapshot Snapshot
	err      error
}

// FileStore persists counters to a JSON file. A single goroutine owns the
// counts and the file, so concurrent requests are serialized through a
// channel instead of racing on read-then-write.
type FileStore struct {
	path   string
	ops    chan fileOp
	done   chan struct{}
	closed chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	counts, err := loadCounts(path)
	if err != nil {
		return nil, err
	}

	s := &FileStore{
		path:   path,
		ops:    make(chan fileOp),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
		logger: logger.With("component", "stats_file"),
	}
	go s.run(counts)
	return s, nil
}

func loadCounts(path string) (Snapshot, error) {
	var counts Snapshot
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return counts, nil
		}
		return counts, fmt.Errorf("failed to read stats file: %w", err)
	}
	if len(data) == 0 {
		return counts, nil
	}
	if err := json.Unmarshal(data, &counts); err != nil {
		return counts, fmt.Errorf("failed to parse stats file: %w", err)
	}
	return counts, nil
}

func (s *FileStore) run(counts Snapshot) {
	defer close(s.closed)

	for {
		select {
		case <-s.done:
			return
		case op := <-s.ops:
			if op.counter == "" {
				op.reply <- fileReply{snapshot: counts}
				continue
			}

			switch op.counter {
			case Visits:
				counts.Visits++
				op.reply <- fileReply{value: counts.Visits, err: s.save(counts)}
			case Analyses:
				counts.Analyses++
				op.reply <- fileReply{value: counts.Analyses, err: s.save(counts)}
			}
		}
	}
}

func (s *FileStore) save(counts Snapshot) error {
	data, err := json.MarshalIndent(counts, "", "  ")
	if err != nil {
		return err
	}

	// Write to temp file first for atomicity
	tmpFile := s.path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		s.logger.Error("failed to write stats", "error", err)
		return err
	}

	return os.Rename(tmpFile, s.path)
}

func (s *FileStore) do(ctx context.Context, op fileOp) (fileReply, error) {
	op.reply = make(chan fileReply, 1)
	select {
	case s.ops <- op:
	case <-s.closed:
		return fileReply{}, ErrClosed
	case <-ctx.Done():
		return fileReply{}, ctx.Err()
	}
	return <-op.reply, nil
}

func (s *FileStore) Incr(ctx context.Context, c Counter) (int64, error) {
	if err := checkCounter(c); err != nil {
		return 0, err
	}
	r, err := s.do(ctx, fileOp{counter: c})
	if err != nil {
		return 0, err
	}
	return r.value, r.err
}

func (s *FileStore) Snapshot(ctx context.Context) (Snapshot, error) {
	r, err := s.do(ctx, fileOp{})
	if err != nil {
		return Snapshot{}, err
	}
	return r.snapshot, nil
}

func (s *FileStore) Close() error {
	s.once.Do(func() { close(s.done) })
	<-s.closed
	return nil
}
