package metrics

import (
	"math"

	"github.com/san-kum/dronetrace/internal/dynamo"
)

// Stability is the fraction of steps whose live roll and pitch both stayed
// within threshold radians.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(rec dynamo.StepRecord) {
	s.samples++
	rpy := rec.Live.RPY
	if math.Abs(rpy.X) > s.threshold || math.Abs(rpy.Y) > s.threshold || !finite(rec.Live) {
		s.violations++
	}
}

func finite(st dynamo.VehicleState) bool {
	for _, v := range st.Vector() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
