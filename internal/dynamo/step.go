package dynamo

// StepRecord is everything one control step produced. Observers receive it
// by value and may keep it.
type StepRecord struct {
	Step      int
	Time      float64 // i / rate
	TraceTime float64
	Reference VehicleState
	Live      VehicleState
	Target    ControlTarget
	Command   ActuatorCommand // computed this step, applied on the next
	PosErr    float64
	YawErr    float64
}
