package maatest

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/haivivi/maafw/pkg/maa/native"
)

// job is one asynchronous operation.
type job struct {
	id     int64
	status atomic.Int32
	done   chan struct{}
}

// queue runs jobs one at a time on its own goroutine, like the worker
// thread each native handle owns.
type queue struct {
	e *Engine

	mu      sync.Mutex
	jobs    map[int64]*job
	pending []func()
	wake    chan struct{}
	closed  bool
	active  int

	exited chan struct{}
}

func newQueue(e *Engine) *queue {
	q := &queue{
		e:      e,
		jobs:   make(map[int64]*job),
		wake:   make(chan struct{}, 1),
		exited: make(chan struct{}),
	}
	go q.loop()
	return q
}

func (q *queue) loop() {
	defer close(q.exited)
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.mu.Unlock()
			<-q.wake
			q.mu.Lock()
		}
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return
		}
		fn := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()
		fn()
	}
}

// post schedules run and returns the job id, or InvalidID after close.
func (q *queue) post(run func(j *job) bool) int64 {
	j := &job{id: q.e.newID(), done: make(chan struct{})}
	j.status.Store(native.StatusPending)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return native.InvalidID
	}
	q.jobs[j.id] = j
	q.active++
	q.pending = append(q.pending, func() {
		q.mu.Lock()
		closed := q.closed
		q.mu.Unlock()
		ok := false
		if !closed {
			j.status.Store(native.StatusRunning)
			ok = run(j)
		}
		q.finish(j, ok)
	})
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return j.id
}

// done records a job that completed without being queued.
func (q *queue) done(ok bool) int64 {
	j := &job{id: q.e.newID(), done: make(chan struct{})}
	q.mu.Lock()
	q.jobs[j.id] = j
	q.active++
	q.mu.Unlock()
	q.finish(j, ok)
	return j.id
}

func (q *queue) finish(j *job, ok bool) {
	if ok {
		j.status.Store(native.StatusSucceeded)
	} else {
		j.status.Store(native.StatusFailed)
	}
	q.mu.Lock()
	q.active--
	q.mu.Unlock()
	close(j.done)
}

// busy reports whether a job is pending or running.
func (q *queue) busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active > 0
}

func (q *queue) status(id int64) int32 {
	if code, ok := q.e.forcedStatus(id); ok {
		return code
	}
	q.mu.Lock()
	j, ok := q.jobs[id]
	q.mu.Unlock()
	if !ok {
		return native.StatusInvalid
	}
	return j.status.Load()
}

func (q *queue) wait(id int64) int32 {
	q.mu.Lock()
	j, ok := q.jobs[id]
	q.mu.Unlock()
	if ok {
		<-j.done
	}
	return q.status(id)
}

// close fails every pending job and waits for the running one.
func (q *queue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
	<-q.exited
}

// ============================================================================
// Sinks
// ============================================================================

type sinkEntry struct {
	cb, arg uintptr
}

type sinkSet struct {
	mu sync.Mutex
	m  map[int64]sinkEntry
}

func (s *sinkSet) add(e *Engine, cb, arg uintptr) int64 {
	if cb == 0 {
		return native.InvalidID
	}
	id := e.newID()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = make(map[int64]sinkEntry)
	}
	s.m[id] = sinkEntry{cb, arg}
	return id
}

func (s *sinkSet) remove(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, id)
}

func (s *sinkSet) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = nil
}

// emit sends message with details marshaled as JSON to every sink, from
// the calling goroutine.
func (s *sinkSet) emit(e *Engine, handle uintptr, message string, details any) {
	s.mu.Lock()
	entries := make([]sinkEntry, 0, len(s.m))
	for _, en := range s.m {
		entries = append(entries, en)
	}
	s.mu.Unlock()
	if len(entries) == 0 {
		return
	}

	b, err := json.Marshal(details)
	if err != nil {
		b = []byte("{}")
	}
	a := new(arena)
	defer a.release()
	msg, detail := a.cstr(message), a.cstr(string(b))
	for _, en := range entries {
		if fn, ok := callback[native.EventCallback](e, en.cb); ok {
			fn(handle, msg, detail, en.arg)
		}
	}
}
