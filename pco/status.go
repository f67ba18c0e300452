package pco

import "github.com/odin-detector/inaira-decoder/paramcontainer"

// CameraStatus is the read-only (from the control channel's point of
// view) status container described in spec.md §3. Its fields are
// plain, not atomic: the controller is responsible for syncing the
// acquisition loop's atomic counters into these fields before encoding
// a status reply, since all container access happens on the single
// control thread per spec.md §5.
type CameraStatus struct {
	paramcontainer.Container

	State          string
	Acquiring      bool
	FramesAcquired uint64
	ErrorCode      uint64
	ErrorMessage   string
	InfoName       string
	InfoType       uint32
	InfoSerial     uint64
}

// Default values for a freshly constructed CameraStatus.
const (
	DefaultState        = "unknown"
	DefaultErrorMessage = "no error"
)

// NewCameraStatus returns a CameraStatus with its bindings registered
// and default values applied.
func NewCameraStatus() *CameraStatus {
	s := &CameraStatus{
		Container:    paramcontainer.New(),
		State:        DefaultState,
		ErrorMessage: DefaultErrorMessage,
	}
	s.BindString("camera/state", &s.State)
	s.BindBool("acquisition/acquiring", &s.Acquiring)
	s.BindU64("acquisition/frames_acquired", &s.FramesAcquired)
	s.BindU64("camera/error/code", &s.ErrorCode)
	s.BindString("camera/error/message", &s.ErrorMessage)
	s.BindString("camera/info/name", &s.InfoName)
	s.BindU32("camera/info/type", &s.InfoType)
	s.BindU64("camera/info/serial", &s.InfoSerial)
	return s
}

// SetError records a device error into the status's error fields.
func (s *CameraStatus) SetError(code uint64, message string) {
	s.ErrorCode = code
	s.ErrorMessage = message
}

// ClearError resets the error fields to their no-error defaults, used
// by the state machine's reset command.
func (s *CameraStatus) ClearError() {
	s.ErrorCode = 0
	s.ErrorMessage = DefaultErrorMessage
}
