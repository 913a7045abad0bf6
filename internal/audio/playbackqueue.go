package audio

import "sync"

// PlaybackQueue holds decoded frames waiting to be played back. Frames are
// returned in the same order they were pushed. The queue is bounded: once
// full, pushing a new frame drops the oldest one.
//
// It is meant to be fed by a single producer (the network receive loop) and
// drained by a single consumer (the playback callback). Neither Push nor Pop
// ever block waiting for the other side.
type PlaybackQueue struct {
	mtx   sync.Mutex
	items [][]float32
	head  int
	n     int
}

// NewPlaybackQueue creates a new queue that holds up to capacity frames.
func NewPlaybackQueue(capacity int) *PlaybackQueue {
	if capacity <= 0 {
		capacity = DefaultQueueFrames
	}
	return &PlaybackQueue{items: make([][]float32, capacity)}
}

// Push adds frame to the tail of the queue. If the queue was full, the
// oldest frame is removed and returned so its buffer may be reused.
// Otherwise this returns nil.
func (q *PlaybackQueue) Push(frame []float32) (dropped []float32) {
	q.mtx.Lock()
	if q.n == len(q.items) {
		dropped = q.items[q.head]
		q.items[q.head] = nil
		q.head = (q.head + 1) % len(q.items)
		q.n--
	}
	q.items[(q.head+q.n)%len(q.items)] = frame
	q.n++
	q.mtx.Unlock()
	return
}

// Pop removes and returns the frame at the head of the queue. Returns false
// if the queue is empty.
func (q *PlaybackQueue) Pop() ([]float32, bool) {
	q.mtx.Lock()
	if q.n == 0 {
		q.mtx.Unlock()
		return nil, false
	}
	frame := q.items[q.head]
	q.items[q.head] = nil
	q.head = (q.head + 1) % len(q.items)
	q.n--
	q.mtx.Unlock()
	return frame, true
}

// Len returns the number of frames in the queue.
func (q *PlaybackQueue) Len() int {
	q.mtx.Lock()
	n := q.n
	q.mtx.Unlock()
	return n
}

// Cap returns the max number of frames held by the queue.
func (q *PlaybackQueue) Cap() int {
	return len(q.items)
}

// Clear removes every frame from the queue.
func (q *PlaybackQueue) Clear() {
	q.mtx.Lock()
	for i := range q.items {
		q.items[i] = nil
	}
	q.head, q.n = 0, 0
	q.mtx.Unlock()
}
