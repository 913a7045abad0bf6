package audio

import (
	"math"
	"sync"
)

const (
	// MinVolume is the gain applied to a remote speaker that is at or
	// beyond MaxDistance.
	MinVolume = 0.1

	// MaxDistance is the distance at which a remote speaker reaches
	// MinVolume.
	MaxDistance = 1.0
)

// Attenuation models how loud a remote speaker sounds at a given distance.
// The gain falls off quadratically from 1 at distance zero to MinVolume at
// MaxDistance.
type Attenuation struct {
	MinVolume   float64
	MaxDistance float64
}

// DefaultAttenuation is the attenuation model used by voice sessions.
var DefaultAttenuation = Attenuation{
	MinVolume:   MinVolume,
	MaxDistance: MaxDistance,
}

// Gain returns the playback gain for a speaker at the given distance. The
// result is always inside [MinVolume, 1].
func (a Attenuation) Gain(distance float64) float64 {
	if a.MaxDistance <= 0 {
		return 1
	}

	// NaN is treated as far away.
	if math.IsNaN(distance) || distance > a.MaxDistance {
		distance = a.MaxDistance
	}
	if distance < 0 {
		distance = 0
	}

	n := distance / a.MaxDistance
	return a.clamp(1 - n*n)
}

func (a Attenuation) clamp(gain float64) float64 {
	switch {
	case math.IsNaN(gain):
		return a.MinVolume
	case gain < a.MinVolume:
		return a.MinVolume
	case gain > 1:
		return 1
	default:
		return gain
	}
}

// Volume is the current playback gain of a session. It is safe for
// concurrent use.
type Volume struct {
	model Attenuation

	mtx  sync.Mutex
	gain float64
}

// NewVolume returns a new volume state at full gain.
func NewVolume(model Attenuation) *Volume {
	return &Volume{model: model, gain: 1}
}

// SetDistance updates the gain based on the distance to the remote
// speaker. Returns the new gain.
func (v *Volume) SetDistance(distance float64) float64 {
	gain := v.model.Gain(distance)
	v.mtx.Lock()
	v.gain = gain
	v.mtx.Unlock()
	return gain
}

// SetGain sets the gain directly. It is clamped to the model's range.
func (v *Volume) SetGain(gain float64) {
	gain = v.model.clamp(gain)
	v.mtx.Lock()
	v.gain = gain
	v.mtx.Unlock()
}

// Gain returns the current gain.
func (v *Volume) Gain() float64 {
	v.mtx.Lock()
	gain := v.gain
	v.mtx.Unlock()
	return gain
}

// Apply scales every sample of frame by gain, storing the result in out.
// out must be at least as large as frame.
func Apply(gain float64, frame, out []float32) {
	g := float32(gain)
	for i, s := range frame {
		out[i] = s * g
	}
}
