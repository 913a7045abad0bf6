package audio

// captureFramer accumulates samples delivered by the audio driver (in
// whatever period size it chose) and calls the capture callback once for
// every full frame.
type captureFramer struct {
	buf []float32
	n   int
	cb  CaptureFunc
}

func newCaptureFramer(cb CaptureFunc) *captureFramer {
	return &captureFramer{buf: make([]float32, FrameSize*Channels), cb: cb}
}

func (f *captureFramer) write(samples []float32) {
	for len(samples) > 0 {
		c := copy(f.buf[f.n:], samples)
		f.n += c
		samples = samples[c:]
		if f.n == len(f.buf) {
			f.cb(f.buf)
			f.n = 0
		}
	}
}

// playbackFramer requests full frames from the playback callback and hands
// them out to the audio driver in whatever period size it asks for.
type playbackFramer struct {
	buf []float32
	off int
	cb  PlaybackFunc
}

func newPlaybackFramer(cb PlaybackFunc) *playbackFramer {
	buf := make([]float32, FrameSize*Channels)
	return &playbackFramer{buf: buf, off: len(buf), cb: cb}
}

func (f *playbackFramer) read(out []float32) {
	for len(out) > 0 {
		if f.off == len(f.buf) {
			f.cb(f.buf)
			f.off = 0
		}
		c := copy(out, f.buf[f.off:])
		f.off += c
		out = out[c:]
	}
}
