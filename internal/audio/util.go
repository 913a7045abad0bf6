package audio

import "math"

// s16ToF32 converts a signed 16 bit sample to a float sample in [-1, 1).
func s16ToF32(s int16) float32 {
	return float32(s) / 32768
}

// f32ToS16 converts a float sample to a signed 16 bit sample, saturating
// values outside [-1, 1].
func f32ToS16(f float32) int16 {
	v := math.Round(float64(f) * 32768)
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	case math.IsNaN(v):
		return 0
	}
	return int16(v)
}

// f32ToS16Slice converts src into dst. dst must be at least as large as src.
func f32ToS16Slice(src []float32, dst []int16) {
	for i, f := range src {
		dst[i] = f32ToS16(f)
	}
}

// s16ToF32Slice converts src into dst. dst must be at least as large as src.
func s16ToF32Slice(src []int16, dst []float32) {
	for i, s := range src {
		dst[i] = s16ToF32(s)
	}
}

// bytesToF32Slice decodes little endian signed 16 bit samples from src into
// dst. Returns the number of samples decoded.
func bytesToF32Slice(src []byte, dst []float32) int {
	n := min(len(src)/2, len(dst))
	for i := 0; i < n; i++ {
		dst[i] = s16ToF32(int16(src[i*2]) | (int16(src[i*2+1]) << 8))
	}
	return n
}

// f32SliceToBytes encodes src as little endian signed 16 bit samples into
// dst. Returns the number of bytes written.
func f32SliceToBytes(src []float32, dst []byte) int {
	n := min(len(src), len(dst)/2)
	for i := 0; i < n; i++ {
		s := f32ToS16(src[i])
		dst[i*2] = byte(s)
		dst[i*2+1] = byte(s >> 8)
	}
	return n * 2
}
