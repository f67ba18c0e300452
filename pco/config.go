package pco

import "github.com/odin-detector/inaira-decoder/paramcontainer"

// CameraConfig is the control-channel-mutable configuration container
// described in spec.md §3. All fields are bound to ParamContainer
// paths by NewCameraConfig. Control-channel changes arrive through
// Update*; the controller's connect also writes ExposureTime and
// FrameRate directly from the device's timing registers.
type CameraConfig struct {
	paramcontainer.Container

	CameraNum     uint32
	ImageTimeout  float64 // seconds
	NumFrames     uint32  // 0 = unlimited
	TimestampMode uint32
	ExposureTime  float64 // seconds
	FrameRate     float64 // Hertz
}

// Defaults for a freshly constructed CameraConfig.
const (
	DefaultImageTimeout = 10.0
	DefaultExposureTime = 0.01
	DefaultFrameRate    = 10.0
)

// NewCameraConfig returns a CameraConfig with its bindings registered
// and default values applied.
func NewCameraConfig() *CameraConfig {
	c := &CameraConfig{
		Container:    paramcontainer.New(),
		ImageTimeout: DefaultImageTimeout,
		ExposureTime: DefaultExposureTime,
		FrameRate:    DefaultFrameRate,
	}
	c.BindU32("camera_num", &c.CameraNum)
	c.BindF64("image_timeout", &c.ImageTimeout)
	c.BindU32("num_frames", &c.NumFrames)
	c.BindU32("timestamp_mode", &c.TimestampMode)
	c.BindF64("exposure_time", &c.ExposureTime)
	c.BindF64("frame_rate", &c.FrameRate)
	return c
}

// Clone returns a new CameraConfig with freshly registered bindings
// whose values are replayed from c, per spec.md's copy invariant:
// bindings are never shared between the two containers.
func (c *CameraConfig) Clone() (*CameraConfig, error) {
	nc := NewCameraConfig()
	if err := nc.Container.UpdateFrom(&c.Container); err != nil {
		return nil, err
	}
	return nc, nil
}
