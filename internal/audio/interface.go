package audio

// CaptureFunc is called with every frame of captured audio. samples has
// exactly FrameSize*Channels entries and is only valid during the call.
type CaptureFunc func(samples []float32)

// PlaybackFunc is called every time the playback device needs a new frame
// of audio. It must fill out, which has exactly FrameSize*Channels entries.
type PlaybackFunc func(out []float32)

// Stream is an initialized capture or playback device.
type Stream interface {
	Start() error
	Stop() error
	Uninit()
}

// Context is the audio device subsystem. A context is created when a voice
// session starts and is freed when it stops.
type Context interface {
	Name() string
	InitCapture(id DeviceID, cb CaptureFunc) (Stream, error)
	InitPlayback(id DeviceID, cb PlaybackFunc) (Stream, error)
	Free() error
}

// newContext is set by the build-specific implementations.
var newContext func() (Context, error)

// NewContext initializes the audio subsystem of the platform.
func NewContext() (Context, error) {
	return newContext()
}
