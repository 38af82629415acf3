// Package camera provides camera frame capture and illumination control
// with hardware abstraction. The real implementations use the Linux V4L2
// and GPIO character devices. The fakes allow testing without hardware.
package camera

import "errors"

// Sentinel errors for start-time failures. Wrapped by the real
// implementations; the session maps them to user-actionable error kinds.
var (
	// ErrPermissionDenied means the process may not open the device.
	ErrPermissionDenied = errors.New("camera: permission denied")
	// ErrNoDevice means the device node does not exist.
	ErrNoDevice = errors.New("camera: device not found")
	// ErrBusy means another holder has claimed the resource.
	ErrBusy = errors.New("camera: resource busy")
)

// Frame is one captured video frame in a packed pixel format.
type Frame struct {
	Pix    []byte
	Width  int
	Height int
	// Stride is the length of one row in bytes.
	Stride int
}

// Source captures video frames from a fixed camera configuration.
type Source interface {
	// Open claims the camera and starts streaming.
	Open() error

	// PixelLayout reports the bytes per pixel and the byte offset of the
	// channel to average for the frames this source produces. Only
	// meaningful after Open has negotiated a format.
	PixelLayout() (bytesPerPixel, channelOffset int)

	// ReadFrame returns the next available frame. A read failure is
	// transient: the caller skips the tick and tries again.
	ReadFrame() (Frame, error)

	// Close stops streaming and releases the camera.
	Close() error
}

// Torch controls the illumination source. It is a singleton hardware
// resource: Acquire fails while another holder has the line claimed, so
// two concurrent sessions can never both drive it.
type Torch interface {
	// Acquire claims the illumination line.
	Acquire() error

	// On switches the illumination on.
	On() error

	// Off switches the illumination off.
	Off() error

	// Release switches the line off and returns the claim. Must be safe to
	// call after a failed Acquire.
	Release() error
}
