package metrics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/dronetrace/internal/dynamo"
)

// TrackingRMSE is the root-mean-square distance between live and reference
// positions at equal step indices.
type TrackingRMSE struct {
	name    string
	sumSq   float64
	samples int
}

func NewTrackingRMSE() *TrackingRMSE {
	return &TrackingRMSE{name: "tracking_rmse"}
}

func (m *TrackingRMSE) Name() string { return m.name }

func (m *TrackingRMSE) Observe(rec dynamo.StepRecord) {
	d := r3.Norm(r3.Sub(rec.Live.Pos, rec.Reference.Pos))
	m.sumSq += d * d
	m.samples++
}

func (m *TrackingRMSE) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return math.Sqrt(m.sumSq / float64(m.samples))
}

func (m *TrackingRMSE) Reset() {
	m.sumSq = 0
	m.samples = 0
}

// MaxTrackingError is the largest live-to-reference distance seen.
type MaxTrackingError struct {
	name string
	max  float64
}

func NewMaxTrackingError() *MaxTrackingError {
	return &MaxTrackingError{name: "max_tracking_error"}
}

func (m *MaxTrackingError) Name() string { return m.name }

func (m *MaxTrackingError) Observe(rec dynamo.StepRecord) {
	m.max = math.Max(m.max, r3.Norm(r3.Sub(rec.Live.Pos, rec.Reference.Pos)))
}

func (m *MaxTrackingError) Value() float64 { return m.max }

func (m *MaxTrackingError) Reset() { m.max = 0 }

// TargetError is the controller's position error at the last step.
type TargetError struct {
	name string
	last float64
}

func NewTargetError() *TargetError {
	return &TargetError{name: "final_target_error"}
}

func (m *TargetError) Name() string { return m.name }

func (m *TargetError) Observe(rec dynamo.StepRecord) { m.last = rec.PosErr }

func (m *TargetError) Value() float64 { return m.last }

func (m *TargetError) Reset() { m.last = 0 }
