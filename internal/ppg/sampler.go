package ppg

import "fmt"

// FrameSampler reduces a raw pixel buffer to a single scalar by averaging
// one color channel over a strided central region. Sampling only the
// middle of the frame avoids edge vignetting and lens distortion that add
// noise unrelated to blood-flow-driven color change.
type FrameSampler struct {
	// BytesPerPixel is the packed pixel size (4 for BGRA/RGBA, 3 for RGB24,
	// 2 for YUYV).
	BytesPerPixel int
	// ChannelOffset selects the byte within a pixel to sample
	// (2 = red in BGRA, 0 = luma in YUYV).
	ChannelOffset int
	// ROIFraction is the fraction of each axis covered by the central
	// region of interest.
	ROIFraction float64
	// PixelStride skips pixels within the region for per-frame cost.
	PixelStride int
}

// NewFrameSampler returns a sampler for 32-bit BGRA frames reading the red
// channel over the central 50%x50% region with a stride of 2.
func NewFrameSampler() *FrameSampler {
	return &FrameSampler{
		BytesPerPixel: 4,
		ChannelOffset: 2,
		ROIFraction:   0.5,
		PixelStride:   2,
	}
}

// Sample averages the configured channel over the central region and
// returns the mean intensity. rowStride is the length of one row in bytes.
// An empty or truncated frame is an error; the caller skips the tick.
func (s *FrameSampler) Sample(pix []byte, width, height, rowStride int) (float64, error) {
	if len(pix) == 0 || width <= 0 || height <= 0 {
		return 0, fmt.Errorf("ppg: empty frame (%dx%d, %d bytes)", width, height, len(pix))
	}

	margin := (1 - s.ROIFraction) / 2
	x0 := int(float64(width) * margin)
	x1 := int(float64(width) * (1 - margin))
	y0 := int(float64(height) * margin)
	y1 := int(float64(height) * (1 - margin))

	stride := s.PixelStride
	if stride < 1 {
		stride = 1
	}

	var sum float64
	var n int
	for y := y0; y < y1; y += stride {
		row := y * rowStride
		for x := x0; x < x1; x += stride {
			idx := row + x*s.BytesPerPixel + s.ChannelOffset
			if idx >= len(pix) {
				return 0, fmt.Errorf("ppg: frame buffer too short: need index %d, have %d bytes", idx, len(pix))
			}
			sum += float64(pix[idx])
			n++
		}
	}
	if n == 0 {
		return 0, fmt.Errorf("ppg: no readable pixels in %dx%d region", x1-x0, y1-y0)
	}
	return sum / float64(n), nil
}
