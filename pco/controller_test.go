package pco

import (
	"log"
	"testing"
	"time"

	"github.com/odin-detector/inaira-decoder/frame"
)

// TestBoundedAcquisition is S3: num_frames=3 against a fake grabber
// that always succeeds. Expect exactly three NotifyFrameReady calls
// with frame numbers 0, 1, 2, and the state machine transitioning to
// armed exactly once afterwards.
func TestBoundedAcquisition(t *testing.T) {
	ctrl, _, _ := newTestController(t)
	pool := ctrl.pool.(*FakeBufferPool)

	if err := ctrl.ExecuteCommand("connect"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := ctrl.ExecuteCommand("arm"); err != nil {
		t.Fatalf("arm: %v", err)
	}
	ctrl.config.NumFrames = 3

	if err := ctrl.ExecuteCommand("start"); err != nil {
		t.Fatalf("start: %v", err)
	}
	ctrl.StartAcquisitionLoop()

	deadline := time.Now().Add(2 * time.Second)
	for ctrl.State().Current() == Recording && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	ctrl.StopAcquisitionLoop()

	if len(pool.Ready) != 3 {
		t.Fatalf("NotifyFrameReady called %d times, want 3", len(pool.Ready))
	}
	for i, r := range pool.Ready {
		if r.FrameNumber != uint32(i) {
			t.Errorf("frame %d: FrameNumber = %d, want %d", i, r.FrameNumber, i)
		}
	}
	if got := ctrl.State().Current(); got != Armed {
		t.Fatalf("state after bounded acquisition = %v, want armed", got)
	}
}

// TestMonotonicFrameNumbers is P7: across one recording session the
// notified frame numbers are dense, monotonic, and start at 0.
func TestMonotonicFrameNumbers(t *testing.T) {
	ctrl, _, _ := newTestController(t)
	pool := ctrl.pool.(*FakeBufferPool)

	mustExecute(t, ctrl, "connect", "arm")
	ctrl.config.NumFrames = 5
	mustExecute(t, ctrl, "start")
	ctrl.StartAcquisitionLoop()

	deadline := time.Now().Add(2 * time.Second)
	for ctrl.State().Current() == Recording && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	ctrl.StopAcquisitionLoop()

	if len(pool.Ready) != 5 {
		t.Fatalf("got %d notifications, want 5", len(pool.Ready))
	}
	for i, r := range pool.Ready {
		if int(r.FrameNumber) != i {
			t.Errorf("notification %d has FrameNumber %d, want %d (gap or duplicate)", i, r.FrameNumber, i)
		}
	}
}

// TestCancellationBound is P8: after StopAcquisitionLoop is called on
// an unbounded recording, the goroutine must exit promptly (bounded
// by the grabber timeout, here effectively immediate since the fake
// grabber never blocks).
func TestCancellationBound(t *testing.T) {
	ctrl, _, _ := newTestController(t)
	mustExecute(t, ctrl, "connect", "arm", "start")

	ctrl.StartAcquisitionLoop()
	time.Sleep(5 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		ctrl.StopAcquisitionLoop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("StopAcquisitionLoop did not return within the cancellation bound")
	}
}

// TestPartialConfigUpdate is S5: updating only num_frames leaves every
// other field at its default.
func TestPartialConfigUpdate(t *testing.T) {
	ctrl, _, _ := newTestController(t)

	if err := ctrl.UpdateConfiguration(map[string]interface{}{"num_frames": 42.0}); err != nil {
		t.Fatalf("UpdateConfiguration: %v", err)
	}
	if ctrl.config.NumFrames != 42 {
		t.Errorf("NumFrames = %d, want 42", ctrl.config.NumFrames)
	}
	if ctrl.config.ExposureTime != DefaultExposureTime {
		t.Errorf("ExposureTime = %v, want default %v", ctrl.config.ExposureTime, DefaultExposureTime)
	}
	if ctrl.config.FrameRate != DefaultFrameRate {
		t.Errorf("FrameRate = %v, want default %v", ctrl.config.FrameRate, DefaultFrameRate)
	}
	if ctrl.config.ImageTimeout != DefaultImageTimeout {
		t.Errorf("ImageTimeout = %v, want default %v", ctrl.config.ImageTimeout, DefaultImageTimeout)
	}
}

// TestDelayExposureWiring is S4's controller-facing half: configuring
// exposure_time/frame_rate pushes the derived registers to the device.
func TestDelayExposureWiring(t *testing.T) {
	ctrl, cam, _ := newTestController(t)

	err := ctrl.UpdateConfiguration(map[string]interface{}{
		"exposure_time": 0.001,
		"frame_rate":    100.0,
	})
	if err != nil {
		t.Fatalf("UpdateConfiguration: %v", err)
	}

	delayTime, exposureTime, delayTimebase, exposureTimebase, err := cam.DelayExposure()
	if err != nil {
		t.Fatalf("cam.DelayExposure: %v", err)
	}
	if exposureTime != 1 || exposureTimebase != TimebaseMs {
		t.Errorf("device exposure = %d/%v, want 1/ms", exposureTime, exposureTimebase)
	}
	if delayTime != 9 || delayTimebase != TimebaseMs {
		t.Errorf("device delay = %d/%v, want 9/ms", delayTime, delayTimebase)
	}
}

// TestBringUpDerivesDataTypeFromDynamicRes is the round-trip for
// connect()'s pixel byte size formula: a camera reporting an 8-bit
// dynamic resolution yields Raw8 and an image size of width*height,
// not the Raw16 default.
func TestBringUpDerivesDataTypeFromDynamicRes(t *testing.T) {
	cam := NewFakeCamera(CameraInfo{Name: "pco.pixelfly", DynamicResBits: 8})
	grab := NewFakeGrabber(64, 48)
	pool := NewFakeBufferPool(4, frameHeaderSize+64*48)
	ctrl, err := NewController(0, cam, grab, pool, log.New(&discard{}, "", 0))
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}

	if ctrl.GetImageDataType() != frame.Raw8 {
		t.Errorf("GetImageDataType() = %v, want Raw8", ctrl.GetImageDataType())
	}
	if want := 64 * 48; ctrl.GetImageSize() != want {
		t.Errorf("GetImageSize() = %d, want %d", ctrl.GetImageSize(), want)
	}
}

func TestDataTypeForDynamicRes(t *testing.T) {
	cases := []struct {
		bits int
		want frame.DataType
	}{
		{8, frame.Raw8},
		{10, frame.Raw16},
		{12, frame.Raw16},
		{16, frame.Raw16},
		{24, frame.Raw32},
		{32, frame.Raw32},
		{48, frame.Raw64},
	}
	for _, c := range cases {
		if got := dataTypeForDynamicRes(c.bits); got != c.want {
			t.Errorf("dataTypeForDynamicRes(%d) = %v, want %v", c.bits, got, c.want)
		}
	}
}

func mustExecute(t *testing.T, ctrl *Controller, commands ...string) {
	t.Helper()
	for _, cmd := range commands {
		if err := ctrl.ExecuteCommand(cmd); err != nil {
			t.Fatalf("ExecuteCommand(%q): %v", cmd, err)
		}
	}
}
