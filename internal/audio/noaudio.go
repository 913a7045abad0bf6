//go:build !cgo || noaudio

// This audio context is only used in cgo-less and noaudio builds.

package audio

import (
	"errors"

	"github.com/decred/slog"
)

func init() {
	newContext = newNullContext
}

type nullContext struct{}

func newNullContext() (Context, error) {
	return nullContext{}, nil
}

func (nullContext) Name() string { return "nullaudio" }

type nullStream struct{}

func (nullStream) Start() error { return nil }
func (nullStream) Stop() error  { return nil }
func (nullStream) Uninit()      {}

func (nullContext) InitCapture(DeviceID, CaptureFunc) (Stream, error) {
	return nullStream{}, nil
}

func (nullContext) InitPlayback(DeviceID, PlaybackFunc) (Stream, error) {
	return nullStream{}, nil
}

func (nullContext) Free() error { return nil }

var errAudioDisabledCompilation = errors.New("audio was disabled during compilation")

func NewOpusEncoder(bitrate int) (Encoder, error) {
	return nil, errAudioDisabledCompilation
}

func NewOpusDecoder() (Decoder, error) {
	return nil, errAudioDisabledCompilation
}

func ListAudioDevices(log slog.Logger) (Devices, error) {
	return Devices{}, errAudioDisabledCompilation
}
