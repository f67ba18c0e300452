package pco

import "testing"

// TestDelayExposureRoundTrip exercises the round-trip property: for an
// exposure time shorter than the frame period, the frame period
// recovered from the derived registers must not exceed the requested
// period, and may fall short of it by at most one count of each
// register's timebase (both registers are truncated, not rounded).
func TestDelayExposureRoundTrip(t *testing.T) {
	exposures := []float64{1e-7, 1e-4, 2.5e-3}
	rates := []float64{10, 100, 1000}

	for _, e := range exposures {
		for _, r := range rates {
			if e >= 1.0/r {
				continue
			}
			d := DelayExposureFrom(e, r)
			got := d.FrameRateHz()
			// Registers quantise to their timebase's resolution, so allow
			// slack of one count of each timebase in play.
			wantPeriod := 1.0 / r
			gotPeriod := 1.0 / got
			slack := d.ExposureTimebase.Value() + d.DelayTimebase.Value()
			if gotPeriod > wantPeriod*(1+1e-9) || gotPeriod < wantPeriod-slack {
				t.Errorf("DelayExposureFrom(%v, %v).FrameRateHz() = %v, want a period within %v below %v", e, r, got, slack, wantPeriod)
			}
		}
	}
}

// TestDelayExposureS4Scenario checks the exact register values for the
// documented exposure_time=0.001s / frame_rate=100Hz scenario.
func TestDelayExposureS4Scenario(t *testing.T) {
	d := DelayExposureFrom(0.001, 100.0)

	if d.ExposureTime != 1 || d.ExposureTimebase != TimebaseMs {
		t.Errorf("exposure = %d/%v, want 1/ms", d.ExposureTime, d.ExposureTimebase)
	}
	if d.DelayTime != 9 || d.DelayTimebase != TimebaseMs {
		t.Errorf("delay = %d/%v, want 9/ms", d.DelayTime, d.DelayTimebase)
	}
}

func TestSelectTimebaseBoundaries(t *testing.T) {
	cases := []struct {
		t    float64
		want Timebase
	}{
		{0, TimebaseNs},
		{999e-9, TimebaseNs},
		{1e-6, TimebaseUs},
		{999e-6, TimebaseUs},
		{1e-3, TimebaseMs},
		{1.0, TimebaseMs},
	}
	for _, c := range cases {
		if got := selectTimebase(c.t); got != c.want {
			t.Errorf("selectTimebase(%v) = %v, want %v", c.t, got, c.want)
		}
	}
}

func TestDelayExposureEquality(t *testing.T) {
	a := DelayExposureFrom(0.001, 100.0)
	b := DelayExposureFrom(0.001, 100.0)
	if a != b {
		t.Errorf("two identical derivations compared unequal: %+v vs %+v", a, b)
	}
}
