package audio

import "fmt"

// Encoder compresses frames of audio.
type Encoder interface {
	// Encode encodes one frame of pcm samples into out, returning the
	// number of bytes written.
	Encode(pcm []float32, out []byte) (int, error)
}

// Decoder decompresses frames of audio.
type Decoder interface {
	// Decode decodes data into out, returning the number of samples
	// (per channel) written.
	Decode(data []byte, out []float32) (int, error)
}

const (
	CodecOpus  = "opus"
	CodecPCM16 = "pcm16"
)

// NewCodec returns the encoder and decoder for the named codec.
func NewCodec(name string, bitrate int) (Encoder, Decoder, error) {
	switch name {
	case CodecOpus, "":
		enc, err := NewOpusEncoder(bitrate)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to create opus encoder: %w", err)
		}
		dec, err := NewOpusDecoder()
		if err != nil {
			return nil, nil, fmt.Errorf("unable to create opus decoder: %w", err)
		}
		return enc, dec, nil

	case CodecPCM16:
		c := NewPCM16Codec()
		return c, c, nil

	default:
		return nil, nil, fmt.Errorf("%w %q", ErrUnknownCodec, name)
	}
}

// PCM16Codec encodes frames as raw little endian signed 16 bit samples.
// It has no state, so a single value may be used both as encoder and as
// decoder.
type PCM16Codec struct{}

// NewPCM16Codec returns a new PCM16 codec.
func NewPCM16Codec() PCM16Codec {
	return PCM16Codec{}
}

func (PCM16Codec) Encode(pcm []float32, out []byte) (int, error) {
	if len(pcm) != FrameSize*Channels {
		return 0, errFrameSize
	}
	if len(out) < len(pcm)*rawFormatSampleSize {
		return 0, fmt.Errorf("output buffer too small (%d < %d)", len(out),
			len(pcm)*rawFormatSampleSize)
	}
	return f32SliceToBytes(pcm, out), nil
}

// Decode only accepts payloads that carry exactly one frame.
func (PCM16Codec) Decode(data []byte, out []float32) (int, error) {
	if len(data) != FrameSize*Channels*rawFormatSampleSize {
		return 0, ErrInvalidPayload
	}
	if len(out) < FrameSize*Channels {
		return 0, errFrameSize
	}
	return bytesToF32Slice(data, out) / Channels, nil
}
