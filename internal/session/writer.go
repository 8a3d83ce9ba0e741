package session

import (
	"sync"
)

// writer serializes answer upserts per question. A write that is still queued
// when a newer edit of the same question arrives is skipped, so the server
// only ever sees edits in order.
type writer struct {
	mu      sync.Mutex
	idle    *sync.Cond
	pending int
	latest  map[string]uint64
	locks   map[string]*sync.Mutex
}

func newWriter() *writer {
	w := &writer{
		latest: map[string]uint64{},
		locks:  map[string]*sync.Mutex{},
	}
	w.idle = sync.NewCond(&w.mu)
	return w
}

// enqueue runs send in the background after earlier writes for the same
// question, or skip if a newer write was enqueued meanwhile.
func (w *writer) enqueue(questionID string, send func(), skip func()) {
	w.mu.Lock()
	w.latest[questionID]++
	seq := w.latest[questionID]
	lock, ok := w.locks[questionID]
	if !ok {
		lock = &sync.Mutex{}
		w.locks[questionID] = lock
	}
	w.pending++
	w.mu.Unlock()

	go func() {
		defer w.done()
		lock.Lock()
		defer lock.Unlock()

		if w.superseded(questionID, seq) {
			if skip != nil {
				skip()
			}
			return
		}
		send()
	}()
}

func (w *writer) superseded(questionID string, seq uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.latest[questionID] != seq
}

func (w *writer) done() {
	w.mu.Lock()
	w.pending--
	if w.pending == 0 {
		w.idle.Broadcast()
	}
	w.mu.Unlock()
}

// wait blocks until no write is queued or in flight.
func (w *writer) wait() {
	w.mu.Lock()
	for w.pending > 0 {
		w.idle.Wait()
	}
	w.mu.Unlock()
}
