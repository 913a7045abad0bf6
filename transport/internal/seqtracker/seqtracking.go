package seqtracker

import "sync"

// winSize is the size of the tracked window. MUST match the size of
// Tracker.win.
const winSize = 16

// resyncAfter is the number of consecutive packets behind the window after
// which the tracker assumes the remote stream restarted and resyncs to it.
const resyncAfter = 50

// Tracker tracks 16 bit RTP sequence numbers inside a 16-packet wide window,
// rejecting duplicated packets and packets too old to be useful.
//
// Sequence numbers are unwrapped into a 64 bit counter, so wrapping around
// the max uint16 value is handled transparently. The first sequence number
// received initializes the tracker.
//
// An empty sequence tracker is ready for use.
type Tracker struct {
	mtx sync.Mutex

	started bool

	// seq is the highest (unwrapped) sequence number received.
	seq int64

	// win is the bitmap that tracks received packets witin the receiving
	// window (i.e. packets [seq-16..seq]).
	win uint16

	// behind is the number of consecutive packets rejected for being
	// before the window.
	behind int
}

// MayAccept returns true if the packet with sequence number s should be
// accepted. This advances the state of the sequence tracker.
func (st *Tracker) MayAccept(s uint16) (accept bool) {
	st.mtx.Lock()
	defer st.mtx.Unlock()

	if !st.started {
		st.reset(int64(s))
		return true
	}

	d := int64(int16(s - uint16(st.seq)))
	is := st.seq + d
	switch {
	case d > 0:
		// Moving seq window forward.
		accept = true
		st.seq = is
		st.behind = 0
		if d > winSize {
			// Completely reset window tracking.
			st.win = 1
		} else {
			// Moving forward < window size.
			st.win = st.win<<byte(d) | 1
		}

	case d > -winSize:
		// Seq in the past and inside window. Accept if not received
		// yet.
		mask := uint16(1) << byte(-d)
		accept = (st.win & mask) == 0
		st.win = st.win | mask
		st.behind = 0

	default:
		st.behind++
		if st.behind >= resyncAfter {
			st.reset(is)
			accept = true
		}
	}
	return
}

// Reset clears the tracker so that the next sequence number is accepted
// unconditionally.
func (st *Tracker) Reset() {
	st.mtx.Lock()
	st.started = false
	st.mtx.Unlock()
}

func (st *Tracker) reset(seq int64) {
	st.started = true
	st.seq = seq
	st.win = 1
	st.behind = 0
}
