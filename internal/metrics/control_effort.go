package metrics

import (
	"math"

	"github.com/san-kum/dronetrace/internal/dynamo"
)

// ControlEffort is the mean commanded rotor speed.
type ControlEffort struct {
	name    string
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{
		name: "control_effort",
	}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) Observe(rec dynamo.StepRecord) {
	for _, rpm := range rec.Command {
		c.sum += math.Abs(rpm)
	}
	c.samples += len(rec.Command)
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}

// Saturation is the fraction of steps where any rotor command sat at a bound.
type Saturation struct {
	name     string
	min, max float64
	hits     int
	samples  int
}

func NewSaturation(minRPM, maxRPM float64) *Saturation {
	return &Saturation{name: "saturation", min: minRPM, max: maxRPM}
}

func (s *Saturation) Name() string { return s.name }

func (s *Saturation) Observe(rec dynamo.StepRecord) {
	s.samples++
	const eps = 1e-6
	for _, rpm := range rec.Command {
		if rpm <= s.min+eps || rpm >= s.max-eps {
			s.hits++
			break
		}
	}
}

func (s *Saturation) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return float64(s.hits) / float64(s.samples)
}

func (s *Saturation) Reset() {
	s.hits = 0
	s.samples = 0
}
