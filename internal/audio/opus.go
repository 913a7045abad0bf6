//go:build cgo && !noaudio

package audio

import (
	"fmt"

	"github.com/companyzero/gopus"
)

type opusEncoder struct {
	enc *gopus.Encoder
	pcm []int16
}

// NewOpusEncoder creates a new Opus encoder tuned for voice.
func NewOpusEncoder(bitrate int) (Encoder, error) {
	enc, err := gopus.NewEncoder(SampleRate, Channels, gopus.Voip)
	if err != nil {
		return nil, err
	}
	enc.SetBitrate(bitrate)
	return &opusEncoder{enc: enc, pcm: make([]int16, FrameSize*Channels)}, nil
}

func (e *opusEncoder) Encode(pcm []float32, out []byte) (int, error) {
	if len(pcm) != len(e.pcm) {
		return 0, errFrameSize
	}
	f32ToS16Slice(pcm, e.pcm)
	encoded, err := e.enc.Encode(e.pcm, FrameSize, out)
	if err != nil {
		return 0, err
	}
	return len(encoded), nil
}

type opusDecoder struct {
	dec *gopus.Decoder
	pcm []int16
}

// NewOpusDecoder creates a new Opus decoder.
func NewOpusDecoder() (Decoder, error) {
	dec, err := gopus.NewDecoder(SampleRate, Channels)
	if err != nil {
		return nil, err
	}
	return &opusDecoder{dec: dec, pcm: make([]int16, FrameSize*Channels*2)}, nil
}

func (d *opusDecoder) Decode(data []byte, out []float32) (int, error) {
	if len(data) == 0 {
		return 0, ErrInvalidPayload
	}
	decoded, err := d.dec.Decode(data, FrameSize, false, d.pcm)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(out) < len(decoded) {
		return 0, errFrameSize
	}
	s16ToF32Slice(decoded, out)
	return len(decoded) / Channels, nil
}
