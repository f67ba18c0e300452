package pco

import (
	"sync"
	"time"
)

// FakeCamera is a scriptable CameraDriver used by tests and the
// -sim flag of cmd/inairadecoder. It behaves like one of the PCO SDK's
// own simulator cameras (sdk3's doc comment notes indices 1 and 2 are
// simulators) rather than exercising real hardware.
type FakeCamera struct {
	mu sync.Mutex

	// FailOp, when non-empty, names the next operation that should fail
	// with FailErr. Cleared after firing once.
	FailOp  string
	FailErr error

	opened bool
	info   CameraInfo

	delayTime, exposureTime         uint32
	delayTimebase, exposureTimebase Timebase

	recording bool
}

// NewFakeCamera returns a FakeCamera reporting info for Info(). Its
// delay/exposure registers start at the values DelayExposureFrom derives
// for DefaultExposureTime and DefaultFrameRate.
func NewFakeCamera(info CameraInfo) *FakeCamera {
	d := DelayExposureFrom(DefaultExposureTime, DefaultFrameRate)
	return &FakeCamera{
		info:             info,
		delayTime:        d.DelayTime,
		exposureTime:     d.ExposureTime,
		delayTimebase:    d.DelayTimebase,
		exposureTimebase: d.ExposureTimebase,
	}
}

func (f *FakeCamera) maybeFail(op string) error {
	if f.FailOp == op {
		f.FailOp = ""
		return f.FailErr
	}
	return nil
}

func (f *FakeCamera) Open(index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.maybeFail("Open"); err != nil {
		return err
	}
	f.opened = true
	return nil
}

func (f *FakeCamera) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.maybeFail("Close"); err != nil {
		return err
	}
	f.opened = false
	return nil
}

func (f *FakeCamera) Info() (CameraInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.maybeFail("Info"); err != nil {
		return CameraInfo{}, err
	}
	return f.info, nil
}

func (f *FakeCamera) DelayExposure() (uint32, uint32, Timebase, Timebase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.maybeFail("DelayExposure"); err != nil {
		return 0, 0, 0, 0, err
	}
	return f.delayTime, f.exposureTime, f.delayTimebase, f.exposureTimebase, nil
}

func (f *FakeCamera) SetDelayExposure(delayTime, exposureTime uint32, delayTimebase, exposureTimebase Timebase) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.maybeFail("SetDelayExposure"); err != nil {
		return err
	}
	f.delayTime, f.exposureTime = delayTime, exposureTime
	f.delayTimebase, f.exposureTimebase = delayTimebase, exposureTimebase
	return nil
}

func (f *FakeCamera) Arm() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maybeFail("Arm")
}

func (f *FakeCamera) RecordingState() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.maybeFail("RecordingState"); err != nil {
		return false, err
	}
	return f.recording, nil
}

func (f *FakeCamera) SetRecordingState(running bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.maybeFail("SetRecordingState"); err != nil {
		return err
	}
	f.recording = running
	return nil
}

// FakeGrabber is a scriptable GrabberDriver pairing with FakeCamera. It
// synthesises images by filling each byte of the destination buffer
// with its own index (truncated to a byte), so tests can assert on
// frame content if desired.
type FakeGrabber struct {
	mu sync.Mutex

	FailOp  string
	FailErr error

	width, height int
	acquiring     bool
	timeout       time.Duration

	// NextImageDelay, if non-zero, is slept before WaitForNextImage
	// returns, simulating device latency.
	NextImageDelay time.Duration
}

// NewFakeGrabber returns a FakeGrabber reporting the given image size.
func NewFakeGrabber(width, height int) *FakeGrabber {
	return &FakeGrabber{width: width, height: height}
}

func (g *FakeGrabber) maybeFail(op string) error {
	if g.FailOp == op {
		g.FailOp = ""
		return g.FailErr
	}
	return nil
}

func (g *FakeGrabber) Open(index int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.maybeFail("Open")
}

func (g *FakeGrabber) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.maybeFail("Close")
}

func (g *FakeGrabber) SetTimeout(d time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.maybeFail("SetTimeout"); err != nil {
		return err
	}
	g.timeout = d
	return nil
}

func (g *FakeGrabber) PostArm() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.maybeFail("PostArm")
}

func (g *FakeGrabber) ActualSize() (int, int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.maybeFail("ActualSize"); err != nil {
		return 0, 0, err
	}
	return g.width, g.height, nil
}

func (g *FakeGrabber) StartAcquire() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.maybeFail("StartAcquire"); err != nil {
		return err
	}
	g.acquiring = true
	return nil
}

func (g *FakeGrabber) StopAcquire() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.maybeFail("StopAcquire"); err != nil {
		return err
	}
	g.acquiring = false
	return nil
}

func (g *FakeGrabber) WaitForNextImage(dst []byte, timeout time.Duration) error {
	if g.NextImageDelay > 0 {
		time.Sleep(g.NextImageDelay)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.maybeFail("WaitForNextImage"); err != nil {
		return err
	}
	for i := range dst {
		dst[i] = byte(i)
	}
	return nil
}
