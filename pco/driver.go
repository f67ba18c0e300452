// Package pco implements the camera control core of spec.md: the
// CameraConfig/CameraStatus parameter containers, the DelayExposure
// calculator, the camera state machine, and the camera controller that
// drives device lifecycle and the acquisition service loop.
//
// The PCO SDK itself (CPco_com/CPco_grab_clhs) is out of scope per
// spec.md §1 and is modeled here only as the opaque CameraDriver and
// GrabberDriver interfaces, the same shape as the sdk3.Camera wrapper's
// Open/Close/Get*/Set* surface.
package pco

import (
	"fmt"
	"time"
)

// Timebase is the unit in which a PCO time register is interpreted.
type Timebase int

// Recognised timebases, matching the PCO SDK's own encoding.
const (
	TimebaseNs Timebase = 0
	TimebaseUs Timebase = 1
	TimebaseMs Timebase = 2
)

func (t Timebase) String() string {
	switch t {
	case TimebaseNs:
		return "ns"
	case TimebaseUs:
		return "us"
	case TimebaseMs:
		return "ms"
	default:
		return "??"
	}
}

// Value returns the duration, in seconds, of one count of t.
func (t Timebase) Value() float64 {
	switch t {
	case TimebaseNs:
		return 1e-9
	case TimebaseUs:
		return 1e-6
	case TimebaseMs:
		return 1e-3
	default:
		return 0
	}
}

// CameraInfo is the static descriptor read from the camera at connect
// time.
type CameraInfo struct {
	Type            uint32
	Serial          uint64
	Name            string
	DynamicResBits  int // dynamic resolution, in bits
	SensorWidthPx   int
	SensorHeightPx  int
}

// DeviceError wraps a non-zero status code from the camera/grabber SDK,
// annotated with the SDK's translated error text, mirroring sdk3's
// DRVError.
type DeviceError struct {
	Op      string
	Code    uint32
	Message string
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("pco: %s failed with code 0x%08x: %s", e.Op, e.Code, e.Message)
}

// CameraDriver is the opaque interface to the PCO camera SDK
// (CPco_com_clhs in the source system). Implementations talk to real
// hardware or, for tests and -sim mode, simulate it.
type CameraDriver interface {
	Open(index int) error
	Close() error

	// Info reads the camera's static descriptor: type, serial, name,
	// and dynamic resolution.
	Info() (CameraInfo, error)

	// DelayExposure reads the camera's current delay/exposure registers.
	DelayExposure() (delayTime, exposureTime uint32, delayTimebase, exposureTimebase Timebase, err error)

	// SetDelayExposure programs the camera's delay/exposure registers.
	SetDelayExposure(delayTime, exposureTime uint32, delayTimebase, exposureTimebase Timebase) error

	// Arm commits pending settings to the camera (PCO_ArmCamera).
	Arm() error

	// RecordingState reports whether the camera is currently recording.
	RecordingState() (running bool, err error)

	// SetRecordingState starts or stops the camera's recording state.
	SetRecordingState(running bool) error
}

// GrabberDriver is the opaque interface to the frame grabber SDK
// (CPco_grab_clhs in the source system).
type GrabberDriver interface {
	Open(index int) error
	Close() error

	// SetTimeout sets the grabber's image-wait timeout.
	SetTimeout(d time.Duration) error

	// PostArm commits pending settings to the grabber, after the
	// camera itself has been armed.
	PostArm() error

	// ActualSize returns the currently configured image width and
	// height in pixels.
	ActualSize() (width, height int, err error)

	StartAcquire() error
	StopAcquire() error

	// WaitForNextImage blocks until the next image is written into dst,
	// or timeout elapses, returning an error in either failure case.
	WaitForNextImage(dst []byte, timeout time.Duration) error
}
