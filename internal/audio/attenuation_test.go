package audio

import (
	"math"
	"sync"
	"testing"
)

// TestAttenuationGain tests the distance to gain model.
func TestAttenuationGain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		distance float64
		want     float64
	}{
		{name: "zero distance", distance: 0, want: 1},
		{name: "max distance", distance: MaxDistance, want: MinVolume},
		{name: "half distance", distance: 0.5, want: 0.75},
		{name: "negative", distance: -3, want: 1},
		{name: "beyond max", distance: 7, want: MinVolume},
		{name: "close to max", distance: 0.99, want: MinVolume},
		{name: "nan", distance: math.NaN(), want: MinVolume},
		{name: "inf", distance: math.Inf(1), want: MinVolume},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := DefaultAttenuation.Gain(tc.distance)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("unexpected gain: got %v, want %v", got, tc.want)
			}
		})
	}
}

// TestAttenuationMonotonic asserts the gain never increases as the
// distance grows and always stays inside its range.
func TestAttenuationMonotonic(t *testing.T) {
	t.Parallel()

	last := math.Inf(1)
	for d := -0.5; d <= 1.5; d += 0.001 {
		g := DefaultAttenuation.Gain(d)
		if g > last {
			t.Fatalf("gain increased at distance %v: %v > %v", d, g, last)
		}
		if g < MinVolume || g > 1 {
			t.Fatalf("gain %v out of range at distance %v", g, d)
		}
		last = g
	}
}

// TestVolumeState tests the Volume type.
func TestVolumeState(t *testing.T) {
	t.Parallel()

	v := NewVolume(DefaultAttenuation)
	if g := v.Gain(); g != 1 {
		t.Fatalf("unexpected initial gain %v", g)
	}

	if g := v.SetDistance(MaxDistance); g != MinVolume {
		t.Fatalf("unexpected gain %v", g)
	}
	if g := v.Gain(); g != MinVolume {
		t.Fatalf("unexpected stored gain %v", g)
	}

	v.SetGain(2)
	if g := v.Gain(); g != 1 {
		t.Fatalf("gain not clamped: %v", g)
	}
	v.SetGain(0)
	if g := v.Gain(); g != MinVolume {
		t.Fatalf("gain not clamped: %v", g)
	}

	// Concurrent readers and writers.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				v.SetDistance(float64(j) / 1000)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if g := v.Gain(); g < MinVolume || g > 1 {
					t.Errorf("gain %v out of range", g)
					return
				}
			}
		}()
	}
	wg.Wait()
}

// TestApplyGain tests scaling a frame.
func TestApplyGain(t *testing.T) {
	t.Parallel()

	frame := []float32{1, -1, 0.5, 0}
	out := make([]float32, len(frame))
	Apply(0.5, frame, out)
	want := []float32{0.5, -0.5, 0.25, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("unexpected sample %d: got %v, want %v", i, out[i], want[i])
		}
	}
}
