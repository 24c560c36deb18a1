package snapshot

import (
	"context"
	"errors"
	"sync"
	"time"

	"saldo/internal/log"
)

// Saver writes snapshots in the background so mutations never wait on storage.
// Each key has a single pending slot: a newer payload replaces one that has
// not been written yet.
type Saver struct {
	persister Persister
	logger    *log.Logger
	timeout   time.Duration

	mu      sync.Mutex
	pending map[Key][]byte
	writeMu sync.Mutex

	wake      chan struct{}
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewSaver starts the background writer. timeout bounds each Save call.
func NewSaver(p Persister, logger *log.Logger, timeout time.Duration) *Saver {
	if logger == nil {
		logger = log.Discard()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s := &Saver{
		persister: p,
		logger:    logger.WithComponent(log.ComponentSnapshot),
		timeout:   timeout,
		pending:   make(map[Key][]byte),
		wake:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go s.run()
	return s
}

// Enqueue schedules data to be written under key and returns immediately.
func (s *Saver) Enqueue(key Key, data []byte) {
	s.mu.Lock()
	s.pending[key] = data
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Flush writes everything pending now and returns the joined save errors.
func (s *Saver) Flush(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	batch := s.pending
	s.pending = make(map[Key][]byte)
	s.mu.Unlock()

	var errs []error
	for _, key := range Keys {
		data, ok := batch[key]
		if !ok {
			continue
		}
		saveCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := s.persister.Save(saveCtx, key, data)
		cancel()
		if err != nil {
			s.logger.ErrorContext(ctx, "Snapshot save failed",
				log.NewFields().WithSnapshotKey(string(key)).WithOperation(log.OpSave).WithError(err).ToSlice()...)
			errs = append(errs, err)
			continue
		}
		s.logger.DebugContext(ctx, "Snapshot saved", log.FieldSnapshotKey, key, "bytes", len(data))
	}
	return errors.Join(errs...)
}

// Close stops the background writer after a final flush. It returns early
// with ctx's error if the flush does not finish in time.
func (s *Saver) Close(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.stop) })
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Saver) run() {
	defer close(s.done)
	for {
		select {
		case <-s.wake:
			_ = s.Flush(context.Background())
		case <-s.stop:
			_ = s.Flush(context.Background())
			return
		}
	}
}
