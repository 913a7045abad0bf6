package audio

import (
	"testing"

	"github.com/companyzero/voicerelay/internal/assert"
)

// TestCaptureFramer asserts the capture callback is only called with full
// frames, independently of the size of the chunks written by the driver.
func TestCaptureFramer(t *testing.T) {
	t.Parallel()

	var frames [][]float32
	f := newCaptureFramer(func(samples []float32) {
		assert.DeepEqual(t, len(samples), FrameSize)
		frames = append(frames, append([]float32(nil), samples...))
	})

	// Write 2.5 frames worth of samples in odd-sized chunks.
	var next float32
	chunk := make([]float32, 333)
	total := FrameSize*2 + FrameSize/2
	for written := 0; written < total; {
		n := min(len(chunk), total-written)
		for i := 0; i < n; i++ {
			chunk[i] = next
			next++
		}
		f.write(chunk[:n])
		written += n
	}

	assert.DeepEqual(t, len(frames), 2)
	assert.DeepEqual(t, frames[0][0], float32(0))
	assert.DeepEqual(t, frames[1][0], float32(FrameSize))
	assert.DeepEqual(t, frames[1][FrameSize-1], float32(FrameSize*2-1))
	assert.DeepEqual(t, f.n, FrameSize/2)
}

// TestPlaybackFramer asserts the playback callback is called once per frame
// consumed by the driver.
func TestPlaybackFramer(t *testing.T) {
	t.Parallel()

	var calls int
	f := newPlaybackFramer(func(out []float32) {
		assert.DeepEqual(t, len(out), FrameSize)
		calls++
		for i := range out {
			out[i] = float32(calls)
		}
	})

	out := make([]float32, 700)
	f.read(out)
	assert.DeepEqual(t, calls, 1)
	f.read(out)
	assert.DeepEqual(t, calls, 2)
	assert.DeepEqual(t, out[FrameSize-700-1], float32(1))
	assert.DeepEqual(t, out[FrameSize-700], float32(2))
	f.read(out[:FrameSize*2-1400])
	assert.DeepEqual(t, calls, 2)
	f.read(out[:1])
	assert.DeepEqual(t, calls, 3)
}
