package manager

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/go-gotop/bnconnector/wsmanager"
)

type job struct {
	conn    *wsmanager.Connection
	renewal bool
}

// reconnectQueue runs reconnect and renewal jobs one at a time, spaced by the throttle.
// The worker goroutine only exists while jobs are queued.
type reconnectQueue struct {
	mu         sync.Mutex
	jobs       []job
	processing bool
	limiter    *rate.Limiter
	run        func(job)
}

func newReconnectQueue(throttle time.Duration, run func(job)) *reconnectQueue {
	limit := rate.Inf
	if throttle > 0 {
		limit = rate.Every(throttle)
	}
	return &reconnectQueue{
		limiter: rate.NewLimiter(limit, 1),
		run:     run,
	}
}

func (q *reconnectQueue) enqueue(j job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, j)
	if !q.processing {
		q.processing = true
		go q.process()
	}
}

func (q *reconnectQueue) process() {
	for {
		q.mu.Lock()
		if len(q.jobs) == 0 {
			q.processing = false
			q.mu.Unlock()
			return
		}
		j := q.jobs[0]
		q.jobs = q.jobs[1:]
		q.mu.Unlock()

		_ = q.limiter.Wait(context.Background())
		q.run(j)
	}
}

func (q *reconnectQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
