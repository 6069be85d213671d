package control

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/dronetrace/internal/dynamo"
)

// Hover ignores the target and commands a fixed speed on every rotor.
type Hover struct {
	RPM float64
}

func NewHover(rpm float64) *Hover {
	return &Hover{RPM: rpm}
}

func (h *Hover) ComputeCommand(dt float64, state dynamo.VehicleState, targetPos, targetVel r3.Vec) (dynamo.ActuatorCommand, float64, float64) {
	cmd := dynamo.ActuatorCommand{h.RPM, h.RPM, h.RPM, h.RPM}
	return cmd, r3.Norm(r3.Sub(targetPos, state.Pos)), math.Abs(state.RPY.Z)
}

func (h *Hover) Reset() {}
