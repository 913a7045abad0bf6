package audio

import (
	"errors"
	"math"
	"testing"

	"github.com/companyzero/voicerelay/internal/assert"
)

// TestPCM16Codec tests encoding and decoding frames with the PCM16 codec.
func TestPCM16Codec(t *testing.T) {
	t.Parallel()

	c := NewPCM16Codec()
	pcm := make([]float32, FrameSize)
	for i := range pcm {
		pcm[i] = float32(math.Sin(float64(i) / 10))
	}

	buf := make([]byte, MaxPayloadSize)
	n, err := c.Encode(pcm, buf)
	assert.NilErr(t, err)
	assert.DeepEqual(t, n, FrameSize*2)

	out := make([]float32, FrameSize)
	got, err := c.Decode(buf[:n], out)
	assert.NilErr(t, err)
	assert.DeepEqual(t, got, FrameSize)
	for i := range pcm {
		if math.Abs(float64(pcm[i]-out[i])) > 1.0/32768 {
			t.Fatalf("sample %d differs: got %v, want %v", i, out[i], pcm[i])
		}
	}
}

// TestPCM16CodecErrors tests the failure modes of the PCM16 codec.
func TestPCM16CodecErrors(t *testing.T) {
	t.Parallel()

	c := NewPCM16Codec()
	out := make([]float32, FrameSize)

	_, err := c.Decode([]byte{1, 2, 3}, out)
	assert.ErrorIs(t, err, ErrInvalidPayload)
	_, err = c.Decode(nil, out)
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = c.Encode(make([]float32, 10), make([]byte, MaxPayloadSize))
	assert.ErrorIs(t, err, errFrameSize)
	_, err = c.Encode(make([]float32, FrameSize), make([]byte, 10))
	assert.NonNilErr(t, err)
}

// TestNewCodec tests selecting codecs by name.
func TestNewCodec(t *testing.T) {
	t.Parallel()

	enc, dec, err := NewCodec(CodecPCM16, EncodeBitRate)
	assert.NilErr(t, err)
	if _, ok := enc.(PCM16Codec); !ok {
		t.Fatalf("unexpected encoder type %T", enc)
	}
	if _, ok := dec.(PCM16Codec); !ok {
		t.Fatalf("unexpected decoder type %T", dec)
	}

	_, _, err = NewCodec("mp3", EncodeBitRate)
	if !errors.Is(err, ErrUnknownCodec) {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestSampleConversion tests converting between sample formats.
func TestSampleConversion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		f    float32
		want int16
	}{
		{f: 0, want: 0},
		{f: 0.5, want: 16384},
		{f: -0.5, want: -16384},
		{f: -1, want: math.MinInt16},
		{f: 1, want: math.MaxInt16},
		{f: 3, want: math.MaxInt16},
		{f: -3, want: math.MinInt16},
		{f: float32(math.NaN()), want: 0},
	}
	for _, tc := range tests {
		if got := f32ToS16(tc.f); got != tc.want {
			t.Fatalf("unexpected conversion of %v: got %d, want %d",
				tc.f, got, tc.want)
		}
	}

	assert.DeepEqual(t, s16ToF32(16384), float32(0.5))
	assert.DeepEqual(t, s16ToF32(math.MinInt16), float32(-1))
}
