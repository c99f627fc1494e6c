package audiocapture

import "math"

// Noise suppression parameters, on the int16 sample scale.
const (
	dcPole        = 0.995 // High-pass pole; cutoff around 40 Hz at 48 kHz
	gateThreshold = 500.0 // Frame RMS below this is treated as background
	gateFloor     = 0.1   // Gain applied to background frames
	gateSmoothing = 0.5   // Per-frame step toward the target gain
)

// suppressor removes DC offset and rumble, then attenuates frames that
// carry only background noise.
type suppressor struct {
	prevIn  float64
	prevOut float64
	gain    float64
}

func newSuppressor() *suppressor {
	return &suppressor{gain: 1}
}

// process filters frame in place.
func (s *suppressor) process(frame []int16) {
	if len(frame) == 0 {
		return
	}

	out := make([]float64, len(frame))
	var energy float64
	for i, v := range frame {
		x := float64(v)
		y := x - s.prevIn + dcPole*s.prevOut
		s.prevIn, s.prevOut = x, y
		out[i] = y
		energy += y * y
	}

	target := 1.0
	if math.Sqrt(energy/float64(len(frame))) < gateThreshold {
		target = gateFloor
	}
	s.gain += (target - s.gain) * gateSmoothing

	for i, y := range out {
		frame[i] = clamp16(y * s.gain)
	}
}

func clamp16(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(math.Round(v))
	}
}
