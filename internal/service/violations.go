package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/quotaguard/gateway/internal/models"
	"github.com/quotaguard/gateway/internal/repository"
)

const (
	violationBatchSize    = 100
	violationFlushEvery   = 5 * time.Second
	violationInsertWindow = 10 * time.Second
)

// ViolationService records denied requests asynchronously. Writes go
// through a buffered channel and a background worker that batch
// inserts, so the hot path never waits on Postgres. A full buffer
// drops the entry rather than blocking a request.
type ViolationService struct {
	repo    *repository.ViolationRepository
	entries chan models.Violation
	done    chan struct{}
	wg      sync.WaitGroup
}

func NewViolationService(repo *repository.ViolationRepository, bufferSize int) *ViolationService {
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	s := &ViolationService{
		repo:    repo,
		entries: make(chan models.Violation, bufferSize),
		done:    make(chan struct{}),
	}

	s.wg.Add(1)
	go s.worker()

	return s
}

// Record queues a violation for insertion. Never blocks.
func (s *ViolationService) Record(v models.Violation) {
	if v.Timestamp.IsZero() {
		v.Timestamp = time.Now().UTC()
	}

	select {
	case s.entries <- v:
	default:
		log.Printf("WARN: violation buffer full, dropping entry for %s", v.Identifier)
	}
}

// Recent returns the newest recorded violations.
func (s *ViolationService) Recent(ctx context.Context, limit int) ([]models.Violation, error) {
	return s.repo.Recent(ctx, limit)
}

// Summary aggregates denials per failed check over the given lookback.
func (s *ViolationService) Summary(ctx context.Context, lookback time.Duration) ([]repository.CheckSummary, error) {
	return s.repo.SummarySince(ctx, time.Now().UTC().Add(-lookback))
}

// Close flushes pending entries and stops the worker.
func (s *ViolationService) Close() {
	close(s.done)
	s.wg.Wait()
}

func (s *ViolationService) worker() {
	defer s.wg.Done()

	batch := make([]models.Violation, 0, violationBatchSize)
	ticker := time.NewTicker(violationFlushEvery)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), violationInsertWindow)
		if err := s.repo.CreateBatch(ctx, batch); err != nil {
			log.Printf("WARN: failed to insert %d violations: %v", len(batch), err)
		}
		cancel()

		batch = batch[:0]
	}

	for {
		select {
		case v := <-s.entries:
			batch = append(batch, v)
			if len(batch) >= violationBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.done:
			// Drain whatever is still queued before exiting
			for {
				select {
				case v := <-s.entries:
					batch = append(batch, v)
				default:
					flush()
					return
				}
			}
		}
	}
}
