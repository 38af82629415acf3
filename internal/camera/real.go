//go:build linux

package camera

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/blackjack/webcam"
)

// V4L2 fourcc codes for the packed formats the sampler understands,
// in preference order.
const (
	fourccRGB24 = 0x33424752 // 'RGB3'
	fourccBGR24 = 0x33524742 // 'BGR3'
	fourccYUYV  = 0x56595559 // 'YUYV'
)

// DefaultDevice is the usual first V4L2 capture node.
const DefaultDevice = "/dev/video0"

// frameWaitSeconds bounds a single frame wait; at 30 fps a frame should
// arrive within ~33ms, so one second means the stream has stalled.
const frameWaitSeconds = 1

// RealSource captures frames from a V4L2 device.
type RealSource struct {
	device string
	width  uint32
	height uint32
	cam    *webcam.Webcam
	format webcam.PixelFormat
}

// NewRealSource creates a source for the given V4L2 device node.
func NewRealSource(device string, width, height int) *RealSource {
	return &RealSource{device: device, width: uint32(width), height: uint32(height)}
}

// Open claims the device, negotiates a packed pixel format, and starts
// streaming.
func (s *RealSource) Open() error {
	cam, err := webcam.Open(s.device)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("open %s: %w", s.device, ErrPermissionDenied)
		}
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("open %s: %w", s.device, ErrNoDevice)
		}
		return fmt.Errorf("open %s: %w", s.device, err)
	}

	format, err := pickFormat(cam.GetSupportedFormats())
	if err != nil {
		cam.Close()
		return fmt.Errorf("%s: %w", s.device, err)
	}

	f, w, h, err := cam.SetImageFormat(format, s.width, s.height)
	if err != nil {
		cam.Close()
		return fmt.Errorf("set format on %s: %w", s.device, err)
	}

	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return fmt.Errorf("start streaming on %s: %w", s.device, err)
	}

	s.cam = cam
	s.format = f
	s.width = w
	s.height = h
	return nil
}

// PixelLayout returns the sampler geometry for the negotiated format:
// bytes per pixel and the byte offset of the channel to average
// (red for RGB formats, luma for YUYV).
func (s *RealSource) PixelLayout() (bytesPerPixel, channelOffset int) {
	switch s.format {
	case fourccRGB24:
		return 3, 0
	case fourccBGR24:
		return 3, 2
	default: // YUYV
		return 2, 0
	}
}

// ReadFrame waits for and returns the next frame.
func (s *RealSource) ReadFrame() (Frame, error) {
	if s.cam == nil {
		return Frame{}, fmt.Errorf("read %s: source not open", s.device)
	}
	if err := s.cam.WaitForFrame(frameWaitSeconds); err != nil {
		return Frame{}, fmt.Errorf("wait for frame on %s: %w", s.device, err)
	}
	pix, err := s.cam.ReadFrame()
	if err != nil {
		return Frame{}, fmt.Errorf("read frame on %s: %w", s.device, err)
	}
	if len(pix) == 0 {
		return Frame{}, fmt.Errorf("read frame on %s: empty frame", s.device)
	}
	bpp, _ := s.PixelLayout()
	return Frame{
		Pix:    pix,
		Width:  int(s.width),
		Height: int(s.height),
		Stride: int(s.width) * bpp,
	}, nil
}

// Close stops streaming and releases the device.
func (s *RealSource) Close() error {
	if s.cam == nil {
		return nil
	}
	cam := s.cam
	s.cam = nil
	if err := cam.StopStreaming(); err != nil {
		cam.Close()
		return fmt.Errorf("stop streaming on %s: %w", s.device, err)
	}
	if err := cam.Close(); err != nil {
		return fmt.Errorf("close %s: %w", s.device, err)
	}
	return nil
}

func pickFormat(supported map[webcam.PixelFormat]string) (webcam.PixelFormat, error) {
	for _, want := range []webcam.PixelFormat{fourccRGB24, fourccBGR24, fourccYUYV} {
		if _, ok := supported[want]; ok {
			return want, nil
		}
	}
	return 0, fmt.Errorf("no supported pixel format (need RGB24, BGR24, or YUYV, device offers %d formats)", len(supported))
}
