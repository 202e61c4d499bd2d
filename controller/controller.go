// Package controller implements a fixed-point proportional-integral-
// differential (PID) controller.
//
// Grounded on diminuto_controller.c: gains are expressed as integer
// numerator/denominator ratios rather than floating point, applying a
// ratio is special-cased (apply_gain's denominator==0 / numerator==0 /
// numerator==denominator / denominator==1 / numerator==1 branches) to
// avoid both needless multiplication and divide-by-zero, the integral
// term is accumulated post-gain and clamped against windup, the
// differential term is computed on the (optionally low-pass filtered)
// sample rather than on the error to avoid derivative kick, and the
// output is clamped to [Minimum, Maximum] and then snapped to Minimum if
// it lies strictly between Minimum and Lower, or to Maximum if it lies
// strictly between Upper and Maximum.
package controller

import "fmt"

// Input, Output, and Value mirror diminuto_controller.h's deliberately
// narrow integer types: Input/Output limit dynamic range to whatever a
// real sensor/actuator pair can represent, Value is the wider type used
// for intermediate arithmetic so the P/I/D terms don't overflow before
// a gain ratio is applied.
type (
	Input  = int16
	Output = int16
	Value  = int32
)

// MaximumValue is the largest representable Value.
const MaximumValue Value = 1<<31 - 1

// MinimumOutput and MaximumOutput are the limits of Output's range.
const (
	MinimumOutput Output = -1 << 15
	MaximumOutput Output = 1<<15 - 1
)

// Gain expresses a PID coefficient as a ratio, avoiding floating point.
// A Numerator greater than Denominator is a gain; less, a loss; zero
// eliminates the term entirely; a negative Numerator (with a positive
// Denominator) inverts the term.
type Gain struct {
	Numerator   int16
	Denominator int16
}

// applyGain reproduces apply_gain's special cases in the order
// diminuto_controller.c checks them, avoiding a multiply or divide
// wherever the ratio makes one redundant and avoiding divide-by-zero
// when Denominator is zero.
func applyGain(value Value, g Gain) Value {
	switch {
	case g.Denominator == 0:
		return MaximumValue
	case g.Numerator == 0:
		return 0
	case g.Numerator == g.Denominator:
		return value
	case g.Denominator == 1:
		return value * Value(g.Numerator)
	case g.Numerator == 1:
		return value / Value(g.Denominator)
	default:
		return value * Value(g.Numerator) / Value(g.Denominator)
	}
}

// Parameters is a controller's static configuration: the gains, the
// windup limit, and the output range. It does not change between
// Step calls and may be shared by several independently-running
// State values.
type Parameters struct {
	Windup           Value
	Minimum, Maximum Output
	Lower, Upper     Output
	Kp, Ki, Kd, Kc   Gain
	Filter           bool
}

// DefaultParameters returns the same neutral defaults
// diminuto_controller_init applies: unity gains (no-op ratios), the
// full Output range as both the clamp and the deadband thresholds (so
// the deadband never triggers until the caller narrows it), windup
// capped at MaximumValue, and the low-pass filter enabled.
func DefaultParameters() Parameters {
	unity := Gain{Numerator: 1, Denominator: 1}
	return Parameters{
		Windup:  MaximumValue,
		Minimum: MinimumOutput,
		Maximum: MaximumOutput,
		Lower:   MinimumOutput,
		Upper:   MaximumOutput,
		Kp:      unity,
		Ki:      unity,
		Kd:      unity,
		Kc:      unity,
		Filter:  true,
	}
}

// String renders Parameters in diminuto_controller_parameters_print's
// field order.
func (p Parameters) String() string {
	return fmt.Sprintf(
		"windup=%d minimum=%d maximum=%d lower=%d upper=%d Kp=%d/%d Ki=%d/%d Kd=%d/%d Kc=%d/%d filter=%t",
		p.Windup, p.Minimum, p.Maximum, p.Lower, p.Upper,
		p.Kp.Numerator, p.Kp.Denominator,
		p.Ki.Numerator, p.Ki.Denominator,
		p.Kd.Numerator, p.Kd.Denominator,
		p.Kc.Numerator, p.Kc.Denominator,
		p.Filter,
	)
}

// State is a controller's dynamic state: the running sample, the three
// PID terms, and enough history to compute the next step. The zero
// value is a valid, uninitialized State; Step initializes it on its
// first call, exactly as diminuto_controller treats a cleared
// diminuto_controller_state_t.
type State struct {
	Sample       Value
	Proportional Value
	Integral     Value
	Differential Value
	Total        Value
	Delta        Value
	Previous     Input
	Initialized  bool
}

// String renders State in diminuto_controller_state_print's field
// order.
func (s State) String() string {
	return fmt.Sprintf(
		"sample=%d proportional=%d integral=%d differential=%d total=%d delta=%d previous=%d initialized=%t",
		s.Sample, s.Proportional, s.Integral, s.Differential, s.Total, s.Delta, s.Previous, s.Initialized,
	)
}

// Reset clears State back to its uninitialized zero value, the Go
// equivalent of clearing a diminuto_controller_state_t to make the
// next Step reinitialize from scratch.
func (s *State) Reset() {
	*s = State{}
}

// Step advances the controller by one sample period: target is the
// desired input, input is the latest measurement (e.g. a sensor
// reading), and output is the previous output value the controller is
// adjusting. Step assumes it is called on a consistent, periodic
// sampling interval; changing that interval changes the effective
// gains.
func Step(p Parameters, s *State, target, input Input, output Output) Output {
	if !s.Initialized {
		s.Integral = 0
		s.Previous = input
		s.Sample = Value(input)
		s.Initialized = true
	}

	if p.Filter {
		s.Sample += Value(input)
		s.Sample >>= 1
	} else {
		s.Sample = Value(input)
	}

	s.Proportional = Value(target) - s.Sample

	s.Total = applyGain(s.Proportional, p.Kp)

	s.Integral += applyGain(s.Proportional, p.Ki)
	if s.Integral > p.Windup {
		s.Integral = p.Windup
	} else if s.Integral < -p.Windup {
		s.Integral = -p.Windup
	}
	s.Total += s.Integral

	s.Differential = s.Sample - Value(s.Previous)
	s.Total -= applyGain(s.Differential, p.Kd)
	s.Previous = Input(s.Sample)

	s.Delta = applyGain(s.Total, p.Kc)

	result := Value(output) + s.Delta

	if result < Value(p.Minimum) {
		result = Value(p.Minimum)
	} else if result > Value(p.Maximum) {
		result = Value(p.Maximum)
	}

	if Value(p.Minimum) < result && result < Value(p.Lower) {
		result = Value(p.Minimum)
	} else if Value(p.Upper) < result && result < Value(p.Maximum) {
		result = Value(p.Maximum)
	}

	return Output(result)
}
