package watch

import (
	"context"
	"sync"

	"complaintdesk/internal/complaint"

	"github.com/rs/zerolog"
)

// Result is the outcome of announcing one complaint.
type Result struct {
	Complaint complaint.Complaint
	MessageID int
	Err       error
}

// WorkerPool announces complaints concurrently.
//
// Lifecycle:
//  1. NewWorkerPool starts the workers
//  2. Submit queues complaints (blocks when the buffer is full)
//  3. Close stops accepting jobs, waits for workers, closes Results
type WorkerPool struct {
	jobs    chan complaint.Complaint
	results chan Result
	wg      sync.WaitGroup
}

// NewWorkerPool starts workerCount workers that announce through a.
func NewWorkerPool(ctx context.Context, a Announcer, workerCount int, log zerolog.Logger) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	pool := &WorkerPool{
		jobs:    make(chan complaint.Complaint, 100),
		results: make(chan Result, 100),
	}

	for i := 0; i < workerCount; i++ {
		pool.wg.Add(1)
		go func(id int) {
			defer pool.wg.Done()
			wlog := log.With().Int("worker", id).Logger()
			for c := range pool.jobs {
				msgID, err := a.AnnounceComplaint(ctx, c)
				if err != nil {
					wlog.Warn().Err(err).Int("complaint_id", c.ID).Msg("announce failed")
				} else {
					wlog.Debug().Int("complaint_id", c.ID).Int("message_id", msgID).Msg("announced")
				}
				pool.results <- Result{Complaint: c, MessageID: msgID, Err: err}
			}
		}(i + 1)
	}

	log.Debug().Int("workers", workerCount).Msg("worker pool started")
	return pool
}

// Submit queues a complaint for announcement.
func (p *WorkerPool) Submit(c complaint.Complaint) {
	p.jobs <- c
}

// Close signals that no more jobs are coming, waits for the workers and
// closes the results channel.
func (p *WorkerPool) Close() {
	close(p.jobs)
	p.wg.Wait()
	close(p.results)
}

// Results returns the channel results are delivered on.
func (p *WorkerPool) Results() <-chan Result {
	return p.results
}
