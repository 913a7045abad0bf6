package voicechat

import (
	"errors"
	"sync"
	"testing"

	"github.com/companyzero/voicerelay/internal/audio"
)

// testStream is a fake capture or playback device.
type testStream struct {
	tac  *testAudioContext
	name string
}

func (ts *testStream) Start() error {
	ts.tac.events <- ts.name + " start"
	return ts.tac.startErr[ts.name]
}

func (ts *testStream) Stop() error {
	ts.tac.events <- ts.name + " stop"
	return nil
}

func (ts *testStream) Uninit() {
	ts.tac.events <- ts.name + " uninit"
}

// testAudioContext is a fake audio context. Tests drive the device callbacks
// by calling capture() and playback().
type testAudioContext struct {
	t testing.TB

	mtx        sync.Mutex
	captureCB  audio.CaptureFunc
	playbackCB audio.PlaybackFunc

	// events receives a string for every device operation.
	events chan string

	initPlaybackErr error
	startErr        map[string]error
}

func newTestAudioContext(t testing.TB) *testAudioContext {
	return &testAudioContext{
		t:        t,
		events:   make(chan string, 100),
		startErr: make(map[string]error),
	}
}

// newContext is used as the session's audio context constructor.
func (tac *testAudioContext) newContext() (audio.Context, error) {
	tac.events <- "ctx init"
	return tac, nil
}

func (tac *testAudioContext) Name() string { return "testaudio" }

func (tac *testAudioContext) InitCapture(id audio.DeviceID, cb audio.CaptureFunc) (audio.Stream, error) {
	tac.mtx.Lock()
	tac.captureCB = cb
	tac.mtx.Unlock()
	tac.events <- "capture init"
	return &testStream{tac: tac, name: "capture"}, nil
}

func (tac *testAudioContext) InitPlayback(id audio.DeviceID, cb audio.PlaybackFunc) (audio.Stream, error) {
	if tac.initPlaybackErr != nil {
		return nil, tac.initPlaybackErr
	}
	tac.mtx.Lock()
	tac.playbackCB = cb
	tac.mtx.Unlock()
	tac.events <- "playback init"
	return &testStream{tac: tac, name: "playback"}, nil
}

func (tac *testAudioContext) Free() error {
	tac.events <- "ctx free"
	return nil
}

// capture simulates the capture device delivering a frame.
func (tac *testAudioContext) capture(samples []float32) {
	tac.t.Helper()
	tac.mtx.Lock()
	cb := tac.captureCB
	tac.mtx.Unlock()
	if cb == nil {
		tac.t.Fatal("capture callback not initialized")
	}
	cb(samples)
}

// playback simulates the playback device requesting a frame.
func (tac *testAudioContext) playback() []float32 {
	tac.t.Helper()
	tac.mtx.Lock()
	cb := tac.playbackCB
	tac.mtx.Unlock()
	if cb == nil {
		tac.t.Fatal("playback callback not initialized")
	}
	out := make([]float32, audio.FrameSize)
	for i := range out {
		// Garbage that must be overwritten.
		out[i] = 42
	}
	cb(out)
	return out
}

// drainEvents returns every event received so far.
func (tac *testAudioContext) drainEvents() []string {
	var res []string
	for {
		select {
		case e := <-tac.events:
			res = append(res, e)
		default:
			return res
		}
	}
}

var errTestDevice = errors.New("test device error")

// constFrame returns a frame with every sample set to v.
func constFrame(v float32) []float32 {
	frame := make([]float32, audio.FrameSize)
	for i := range frame {
		frame[i] = v
	}
	return frame
}
