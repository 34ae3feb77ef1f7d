package reactive

import "sync"

// Batch runs fn synchronously; all cell notifications raised during the call
// are deferred, deduplicated per subscriber, and flushed once after fn
// returns. Nested Batch calls flush only at the outermost exit. Outside an
// explicit batch, every mutation is its own single-operation batch.
func Batch(fn func()) {
	sched.begin()
	defer sched.end()
	fn()
}

type job struct {
	id  uint64
	run func()
}

// scheduler coalesces notification jobs. A job id identifies a subscriber;
// while a subscriber is queued, further notifications for it are dropped.
// Once its job has run it may be queued again, so cascaded updates raised
// during a flush still propagate within the same flush.
type scheduler struct {
	mu       sync.Mutex
	depth    int
	flushing bool
	queue    []job
	queued   map[uint64]bool
}

var sched = &scheduler{queued: make(map[uint64]bool)}

func (s *scheduler) begin() {
	s.mu.Lock()
	s.depth++
	s.mu.Unlock()
}

func (s *scheduler) end() {
	s.mu.Lock()
	s.depth--
	if s.depth == 0 && !s.flushing && len(s.queue) > 0 {
		s.flushLocked()
		return
	}
	s.mu.Unlock()
}

func (s *scheduler) enqueueLocked(id uint64, run func()) {
	if s.queued[id] {
		return
	}
	s.queued[id] = true
	s.queue = append(s.queue, job{id: id, run: run})
}

// dispatch queues a set of jobs and, when no batch or flush is active,
// flushes immediately (the single-operation batch).
func (s *scheduler) dispatch(jobs []job) {
	s.mu.Lock()
	for _, j := range jobs {
		s.enqueueLocked(j.id, j.run)
	}
	if s.depth > 0 || s.flushing || len(s.queue) == 0 {
		s.mu.Unlock()
		return
	}
	s.flushLocked()
}

// flushLocked drains the queue, releasing the lock around each job. The
// caller must hold s.mu; the lock is released on return.
func (s *scheduler) flushLocked() {
	s.flushing = true
	for len(s.queue) > 0 {
		j := s.queue[0]
		s.queue = s.queue[1:]
		delete(s.queued, j.id)
		s.mu.Unlock()
		j.run()
		s.mu.Lock()
	}
	s.flushing = false
	s.mu.Unlock()
}
