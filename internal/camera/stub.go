//go:build !linux

package camera

import "errors"

// DefaultDevice is the usual first V4L2 capture node.
const DefaultDevice = "/dev/video0"

// DefaultTorchLine is the BCM line number the illumination LED ring is
// wired to on the reference rig.
const DefaultTorchLine = 18

var errUnsupported = errors.New("camera: not supported on this platform (requires Linux)")

// RealSource is not available on non-Linux platforms.
type RealSource struct{}

// NewRealSource returns a source that fails to open on non-Linux platforms.
func NewRealSource(device string, width, height int) *RealSource {
	return &RealSource{}
}

// Open is not implemented on non-Linux platforms.
func (s *RealSource) Open() error { return errUnsupported }

// ReadFrame is not implemented on non-Linux platforms.
func (s *RealSource) ReadFrame() (Frame, error) { return Frame{}, errUnsupported }

// PixelLayout returns a nominal BGRA layout on non-Linux platforms.
func (s *RealSource) PixelLayout() (int, int) { return 4, 2 }

// Close is not implemented on non-Linux platforms.
func (s *RealSource) Close() error { return nil }

// RealTorch is not available on non-Linux platforms.
type RealTorch struct{}

// NewRealTorch returns a torch that fails to acquire on non-Linux platforms.
func NewRealTorch(chipName string, offset int) *RealTorch {
	return &RealTorch{}
}

// Acquire is not implemented on non-Linux platforms.
func (t *RealTorch) Acquire() error { return errUnsupported }

// On is not implemented on non-Linux platforms.
func (t *RealTorch) On() error { return errUnsupported }

// Off is not implemented on non-Linux platforms.
func (t *RealTorch) Off() error { return errUnsupported }

// Release is not implemented on non-Linux platforms.
func (t *RealTorch) Release() error { return nil }
