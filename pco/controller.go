package pco

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/odin-detector/inaira-decoder/frame"
)

// frameHeaderSize is the number of bytes the acquisition loop reserves
// at the start of every borrowed buffer for the FrameHeader, per
// spec.md §3.
const frameHeaderSize = frame.HeaderSize

// Controller owns the camera and grabber handles, the configuration
// and status containers, the DelayExposure register state, the state
// machine, and the acquisition loop, per spec.md §4.4.
type Controller struct {
	log *log.Logger

	camera  CameraDriver
	grabber GrabberDriver
	pool    BufferPool

	cameraIndex int

	state *State

	config *CameraConfig
	status *CameraStatus

	delayExposure DelayExposure

	cameraOpened  bool
	grabberOpened bool

	imageWidth    int
	imageHeight   int
	imageDataType frame.DataType
	imageSize     int

	// cameraRecording, acquiring and framesAcquired are written by the
	// acquisition goroutine and read by control-channel handlers
	// without a mutex, per spec.md §5 — they require atomic semantics.
	cameraRecording atomic.Bool
	acquiring       atomic.Bool
	framesAcquired  atomic.Uint64

	// runThread is cleared to request the acquisition goroutine stop.
	runThread atomic.Bool

	wg     sync.Mutex // guards start/stop of the acquisition goroutine itself
	doneCh chan struct{}
}

// NewController constructs a Controller around the given driver
// handles and pool, then drives the bring-up sequence described in
// spec.md §4.4: connect → arm → start → (read image size) → stop,
// followed by a disconnect (see bringUp), so that callers can query
// image dimensions before ever issuing a command of their own. Any
// failure along the way leaves the state machine in Error and is
// returned wrapped in *DecoderInitError.
func NewController(cameraIndex int, camera CameraDriver, grabber GrabberDriver, pool BufferPool, logger *log.Logger) (*Controller, error) {
	c := &Controller{
		log:         logger,
		camera:      camera,
		grabber:     grabber,
		pool:        pool,
		cameraIndex: cameraIndex,
		config:      NewCameraConfig(),
		status:      NewCameraStatus(),
	}
	c.state = newState(c)

	if err := c.bringUp(); err != nil {
		return nil, err
	}
	return c, nil
}

// bringUp probes the device once at construction time so that callers
// can query image dimensions before ever issuing a command, per
// spec.md §4.4: connect → arm → start → (read image size) → stop →
// disconnect. It calls the controller operations directly rather than
// through the public state machine, then leaves State in Disconnected
// — the probe is invisible to the control channel, which always sees
// a controller that starts life Disconnected (this is the resolution
// to the ambiguity between §4.4's prose, which stops short of
// disconnecting, and the P6/S1/S2/S6 scenarios in §8, which all
// require a freshly constructed controller to start Disconnected).
func (c *Controller) bringUp() error {
	if err := c.connect(); err != nil {
		c.state.forceState(Error)
		return &DecoderInitError{Step: "connect", Err: err}
	}
	if err := c.arm(); err != nil {
		c.state.forceState(Error)
		return &DecoderInitError{Step: "arm", Err: err}
	}
	if err := c.startRecording(); err != nil {
		c.state.forceState(Error)
		return &DecoderInitError{Step: "start", Err: err}
	}

	w, h, err := c.grabber.ActualSize()
	if err != nil {
		c.state.forceState(Error)
		return &DecoderInitError{Step: "read image size", Err: err}
	}
	c.imageWidth = w
	c.imageHeight = h
	c.imageSize = w * h * c.imageDataType.BytesPerPixel()

	if err := c.stopRecording(); err != nil {
		c.state.forceState(Error)
		return &DecoderInitError{Step: "stop", Err: err}
	}
	if err := c.disconnect(false); err != nil {
		c.state.forceState(Error)
		return &DecoderInitError{Step: "disconnect", Err: err}
	}
	c.state.forceState(Disconnected)
	return nil
}

// State returns the controller's state machine, for façades that need
// to dispatch commands.
func (c *Controller) State() *State { return c.state }

// connect creates and opens the camera and grabber handles, reads
// device identity and timing, and ensures the device is not already
// recording, per spec.md §4.4.
func (c *Controller) connect() error {
	if err := c.camera.Open(c.cameraIndex); err != nil {
		return c.fail("connect: open camera", err)
	}
	c.cameraOpened = true

	if err := c.grabber.Open(c.cameraIndex); err != nil {
		return c.fail("connect: open grabber", err)
	}
	c.grabberOpened = true

	timeoutMs := time.Duration(c.config.ImageTimeout * float64(time.Second))
	if err := c.grabber.SetTimeout(timeoutMs); err != nil {
		return c.fail("connect: set grabber timeout", err)
	}

	info, err := c.camera.Info()
	if err != nil {
		return c.fail("connect: read camera info", err)
	}
	c.status.InfoName = info.Name
	c.status.InfoType = info.Type
	c.status.InfoSerial = info.Serial
	c.imageDataType = dataTypeForDynamicRes(info.DynamicResBits)

	delayTime, exposureTime, delayTimebase, exposureTimebase, err := c.camera.DelayExposure()
	if err != nil {
		return c.fail("connect: read delay/exposure", err)
	}
	c.delayExposure = DelayExposure{
		DelayTime:        delayTime,
		ExposureTime:     exposureTime,
		DelayTimebase:    delayTimebase,
		ExposureTimebase: exposureTimebase,
	}
	c.config.ExposureTime = c.delayExposure.ExposureTimeSeconds()
	c.config.FrameRate = c.delayExposure.FrameRateHz()

	recording, err := c.camera.RecordingState()
	if err != nil {
		return c.fail("connect: read recording state", err)
	}
	if recording {
		if err := c.camera.SetRecordingState(false); err != nil {
			return c.fail("connect: stop stale recording", err)
		}
	}

	c.status.ClearError()
	return nil
}

// disconnect stops recording if needed, closes whichever handles are
// open, and drops them. When resetErr is true the status error fields
// are cleared too, implementing the reset command's semantics.
func (c *Controller) disconnect(resetErr bool) error {
	if c.cameraRecording.Load() {
		if err := c.stopRecording(); err != nil {
			c.log.Printf("disconnect: stop_recording failed: %v", err)
		}
	}

	var firstErr error
	if c.grabberOpened {
		if err := c.grabber.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		c.grabberOpened = false
	}
	if c.cameraOpened {
		if err := c.camera.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		c.cameraOpened = false
	}

	if resetErr {
		c.status.ClearError()
	}
	if firstErr != nil {
		return c.fail("disconnect", firstErr)
	}
	return nil
}

// arm arms the camera then post-arms the grabber, per spec.md §4.4.
func (c *Controller) arm() error {
	if err := c.camera.Arm(); err != nil {
		return c.fail("arm: camera", err)
	}
	if err := c.grabber.PostArm(); err != nil {
		return c.fail("arm: grabber post-arm", err)
	}
	return nil
}

// disarm is logic-only; no device call is issued.
func (c *Controller) disarm() error {
	return nil
}

// startRecording sets the device recording state and marks
// cameraRecording true on success, which wakes the acquisition loop's
// idle branch.
func (c *Controller) startRecording() error {
	if err := c.camera.SetRecordingState(true); err != nil {
		return c.fail("start: set recording state", err)
	}
	c.cameraRecording.Store(true)
	return nil
}

// stopRecording clears cameraRecording first so the acquisition loop
// exits its inner phase, then waits — bounded by image_timeout·2 — for
// acquiring to drop to false, and finally clears the device recording
// state.
func (c *Controller) stopRecording() error {
	c.cameraRecording.Store(false)

	deadline := time.Duration(c.config.ImageTimeout*2*1000) * time.Millisecond
	const pollInterval = time.Millisecond
	waited := time.Duration(0)
	for c.acquiring.Load() {
		if waited >= deadline {
			break
		}
		time.Sleep(pollInterval)
		waited += pollInterval
	}

	if err := c.camera.SetRecordingState(false); err != nil {
		return c.fail("stop: clear recording state", err)
	}
	return nil
}

// fail records a device error into the status container and returns
// it wrapped as a *DeviceError-annotated error for the caller.
func (c *Controller) fail(op string, err error) error {
	wrapped := errors.Wrap(err, op)
	if de, ok := err.(*DeviceError); ok {
		c.status.SetError(uint64(de.Code), de.Error())
	} else {
		c.status.SetError(1, wrapped.Error())
	}
	return wrapped
}

// UpdateConfiguration applies doc into the config container; if the
// resulting (exposure, frame_rate) differs from the device's current
// DelayExposure, the new timebases and times are pushed to the
// device. If the camera is not currently recording, the new timing
// only takes effect after a subsequent arm, per spec.md §4.4.
func (c *Controller) UpdateConfiguration(doc map[string]interface{}) error {
	if err := c.config.UpdateDoc(doc); err != nil {
		return err
	}

	next := DelayExposureFrom(c.config.ExposureTime, c.config.FrameRate)
	if next == c.delayExposure {
		return nil
	}
	if err := c.camera.SetDelayExposure(next.DelayTime, next.ExposureTime, next.DelayTimebase, next.ExposureTimebase); err != nil {
		return c.fail("update_configuration: push delay/exposure", err)
	}
	c.delayExposure = next
	return nil
}

// GetConfiguration encodes the config container into doc under
// prefix.
func (c *Controller) GetConfiguration(doc map[string]interface{}, prefix string) error {
	return c.config.EncodeInto(doc, prefix)
}

// GetStatus syncs the atomic acquisition-loop fields into the status
// container, then encodes it into doc under prefix. This sync is why
// status access must happen on the single control thread, per
// spec.md §5: the container itself is not safe for concurrent access.
func (c *Controller) GetStatus(doc map[string]interface{}, prefix string) error {
	c.status.State = c.state.Current().String()
	c.status.Acquiring = c.acquiring.Load()
	c.status.FramesAcquired = c.framesAcquired.Load()
	return c.status.EncodeInto(doc, prefix)
}

// ExecuteCommand forwards command to the state machine.
func (c *Controller) ExecuteCommand(command string) error {
	return c.state.Execute(command)
}

// GetImageWidth, GetImageHeight, GetImageDataType and GetImageSize
// report the dimensions read during bring-up.
func (c *Controller) GetImageWidth() int               { return c.imageWidth }
func (c *Controller) GetImageHeight() int              { return c.imageHeight }
func (c *Controller) GetImageDataType() frame.DataType { return c.imageDataType }
func (c *Controller) GetImageSize() int                { return c.imageSize }

// dataTypeForDynamicRes derives the per-pixel frame.DataType from a
// camera's dynamic resolution in bits, per spec.md §4.4's pixel byte
// size formula floor((dyn_res-1)/8)+1. The resulting byte count is
// rounded up to the nearest frame.DataType the wire format defines.
func dataTypeForDynamicRes(dynResBits int) frame.DataType {
	bytesPerPixel := (dynResBits-1)/8 + 1
	switch {
	case bytesPerPixel <= 1:
		return frame.Raw8
	case bytesPerPixel <= 2:
		return frame.Raw16
	case bytesPerPixel <= 4:
		return frame.Raw32
	default:
		return frame.Raw64
	}
}

// DecodeBCDImageNumber decodes a PCO BCD-encoded image number, as
// embedded in a recorded frame's timestamp field. Each nibble of v,
// from most to least significant, is a decimal digit.
func DecodeBCDImageNumber(v uint32) uint32 {
	var n uint32
	mul := uint32(1)
	for i := 0; i < 8; i++ {
		nibble := (v >> (4 * uint(i))) & 0xF
		n += nibble * mul
		mul *= 10
	}
	return n
}
