package orchestrator

import (
	"context"
	"sync"
)

// job is one attempt of one selected test case.
type job struct {
	// index into the ordered selection
	index int

	// attempt is 1-based
	attempt int
}

// workQueue is the FIFO shared by all workers. Retries are appended to the
// tail, so any worker may pick them up.
type workQueue struct {
	mu sync.Mutex

	// queue holds jobs in FIFO order
	queue []job

	// processing tracks selection indexes currently being executed
	processing map[int]bool

	// cond is used for blocking Get operations
	cond *sync.Cond

	// shuttingDown stops dispatch; queued jobs are left for Drain
	shuttingDown bool
}

func newWorkQueue() *workQueue {
	q := &workQueue{
		queue:      make([]job, 0),
		processing: make(map[int]bool),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Add appends j. It is ignored once the queue is shutting down or while the
// same test case is queued or processing.
func (q *workQueue) Add(j job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.shuttingDown || q.processing[j.index] {
		return false
	}
	for _, existing := range q.queue {
		if existing.index == j.index {
			return false
		}
	}

	q.queue = append(q.queue, j)
	q.cond.Signal()
	return true
}

// Get blocks until a job is available. It returns false once the queue is
// shutting down or ctx is done, even if jobs remain queued.
func (q *workQueue) Get(ctx context.Context) (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.shuttingDown || ctx.Err() != nil {
			return job{}, false
		}
		if len(q.queue) > 0 {
			break
		}

		// The helper goroutine wakes us on cancellation; closing done
		// releases it after a normal wakeup.
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				q.mu.Lock()
				q.cond.Broadcast()
				q.mu.Unlock()
			case <-done:
			}
		}()

		q.cond.Wait()
		close(done)
	}

	j := q.queue[0]
	q.queue = q.queue[1:]
	q.processing[j.index] = true

	return j, true
}

// Done marks the job's test case as no longer processing.
func (q *workQueue) Done(j job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.processing, j.index)
}

// Len returns the queue length.
func (q *workQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// Shutdown stops dispatch and wakes every waiting worker.
func (q *workQueue) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.shuttingDown = true
	q.cond.Broadcast()
}

// Drain removes and returns the jobs that were never dispatched.
func (q *workQueue) Drain() []job {
	q.mu.Lock()
	defer q.mu.Unlock()
	remaining := q.queue
	q.queue = nil
	return remaining
}
