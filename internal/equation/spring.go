package equation

import (
	"math"

	"github.com/charmbracelet/harmonica"
)

// Spring eases from (X1, Y1) to (X2, Y2) along a sampled damped spring.
// Damping below 1 is raised to 1 so the curve never overshoots and stays
// monotonic. Outside [X1, X2] the end values are held.
type Spring struct {
	X1, Y1  float64
	X2, Y2  float64
	samples []float64 // normalised progress, samples[0] == 0, last == 1
}

// NewSpring samples a spring at fps frames across the input range.
func NewSpring(x1, y1, x2, y2 float64, fps int, frequency, damping float64) Spring {
	s := Spring{X1: x1, Y1: y1, X2: x2, Y2: y2}
	if fps < 2 || frequency <= 0 || x1 == x2 {
		return s
	}
	spring := harmonica.NewSpring(harmonica.FPS(fps), frequency, math.Max(damping, 1))

	samples := make([]float64, fps+1)
	pos, vel := 0.0, 0.0
	for i := 1; i <= fps; i++ {
		pos, vel = spring.Update(pos, vel, 1)
		samples[i] = pos
	}
	end := samples[fps]
	if end <= 0 {
		return s
	}
	for i := range samples {
		samples[i] = min(samples[i]/end, 1)
	}
	s.samples = samples
	return s
}

func (s Spring) Value(x float64) float64 {
	if s.X1 == s.X2 {
		return Linear{X1: s.X1, Y1: s.Y1, X2: s.X2, Y2: s.Y2}.Value(x)
	}
	u := (x - s.X1) / (s.X2 - s.X1)
	if math.IsNaN(u) || u <= 0 {
		return s.Y1
	}
	if u >= 1 {
		return s.Y2
	}
	progress := u
	if len(s.samples) > 1 {
		pos := u * float64(len(s.samples)-1)
		i := int(pos)
		frac := pos - float64(i)
		progress = s.samples[i] + (s.samples[i+1]-s.samples[i])*frac
	}
	return s.Y1 + (s.Y2-s.Y1)*progress
}
