package pco

import "math"

// DelayExposure holds the four PCO device registers that together
// express exposure and delay timing, per spec.md §3/§4.3: an integer
// count and a Timebase enum for each of exposure and delay.
//
// Equality is ordinary struct equality: all four fields are
// comparable, so two DelayExposure values compare equal exactly when
// every field matches, per spec.md's equality invariant.
type DelayExposure struct {
	ExposureTime     uint32
	DelayTime        uint32
	ExposureTimebase Timebase
	DelayTimebase    Timebase
}

// selectTimebase picks ns if t<1us, us if t<1ms, otherwise ms, per the
// selection policy in spec.md §3.
func selectTimebase(t float64) Timebase {
	switch {
	case t < TimebaseUs.Value():
		return TimebaseNs
	case t < TimebaseMs.Value():
		return TimebaseUs
	default:
		return TimebaseMs
	}
}

// DelayExposureFrom derives device register values from a desired
// exposure time and frame rate, per spec.md §4.3. Negative delay (when
// exposureS >= 1/frameRateHz) is not validated; the caller is
// responsible for choosing a compatible frame rate.
func DelayExposureFrom(exposureS, frameRateHz float64) DelayExposure {
	expTimebase := selectTimebase(exposureS)
	expTime := uint32(math.Floor(exposureS / expTimebase.Value()))

	framePeriod := 1.0 / frameRateHz
	delayS := framePeriod - exposureS

	delayTimebase := selectTimebase(delayS)
	delayTime := uint32(math.Floor(delayS / delayTimebase.Value()))

	return DelayExposure{
		ExposureTime:     expTime,
		DelayTime:        delayTime,
		ExposureTimebase: expTimebase,
		DelayTimebase:    delayTimebase,
	}
}

// ExposureTimeSeconds returns the exposure time in seconds.
func (d DelayExposure) ExposureTimeSeconds() float64 {
	return float64(d.ExposureTime) * d.ExposureTimebase.Value()
}

// DelayTimeSeconds returns the delay time in seconds.
func (d DelayExposure) DelayTimeSeconds() float64 {
	return float64(d.DelayTime) * d.DelayTimebase.Value()
}

// FrameRateHz returns the derived frame rate: 1/(exposure+delay).
func (d DelayExposure) FrameRateHz() float64 {
	return 1.0 / (d.ExposureTimeSeconds() + d.DelayTimeSeconds())
}
