package camera

import "errors"

// FakeSource is a test double that returns scripted frames.
type FakeSource struct {
	// Frames contains scripted frames to return. Each call to ReadFrame
	// consumes the next frame; when exhausted the last frame repeats.
	Frames []Frame

	// FrameFunc, if set, generates the i-th frame instead of Frames.
	FrameFunc func(i int) Frame

	// BytesPerPixel and ChannelOffset describe the layout of the frames
	// this fake produces. Zero values report the 32-bit BGRA default.
	BytesPerPixel int
	ChannelOffset int

	// OpenError, if set, will be returned by Open.
	OpenError error

	// ReadError, if set, will be returned by ReadFrame.
	ReadError error

	// Opened tracks if Open was called successfully.
	Opened bool

	// Closed tracks if Close was called.
	Closed bool

	// Reads counts ReadFrame calls.
	Reads int

	index int
}

// NewFakeSource creates a FakeSource with the given scripted frames.
func NewFakeSource(frames []Frame) *FakeSource {
	return &FakeSource{Frames: frames}
}

// Open marks the source as opened, or fails with OpenError.
func (f *FakeSource) Open() error {
	if f.OpenError != nil {
		return f.OpenError
	}
	f.Opened = true
	f.Closed = false
	return nil
}

// PixelLayout reports the configured frame layout, defaulting to BGRA.
func (f *FakeSource) PixelLayout() (int, int) {
	if f.BytesPerPixel == 0 {
		return 4, 2
	}
	return f.BytesPerPixel, f.ChannelOffset
}

// ReadFrame returns the next scripted frame.
func (f *FakeSource) ReadFrame() (Frame, error) {
	f.Reads++
	if f.ReadError != nil {
		return Frame{}, f.ReadError
	}
	if f.FrameFunc != nil {
		frame := f.FrameFunc(f.index)
		f.index++
		return frame, nil
	}
	if len(f.Frames) == 0 {
		return Frame{}, errors.New("no frames configured")
	}
	frame := f.Frames[f.index]
	if f.index < len(f.Frames)-1 {
		f.index++
	}
	return frame, nil
}

// Close marks the source as closed.
func (f *FakeSource) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds the source to the first frame.
func (f *FakeSource) Reset() {
	f.index = 0
	f.Reads = 0
	f.Opened = false
	f.Closed = false
}

// FakeTorch records illumination control calls for test assertions.
type FakeTorch struct {
	// AcquireError, if set, will be returned by Acquire.
	AcquireError error

	// OnError, if set, will be returned by On.
	OnError error

	// Acquired tracks whether the torch is currently claimed.
	Acquired bool

	// OnCalls and OffCalls count switch operations.
	OnCalls  int
	OffCalls int

	// ReleaseCalls counts Release invocations.
	ReleaseCalls int

	// Lit is the current illumination state.
	Lit bool
}

// NewFakeTorch creates a FakeTorch for testing.
func NewFakeTorch() *FakeTorch {
	return &FakeTorch{}
}

// Acquire claims the fake torch. A second claim fails with ErrBusy, same
// as the kernel refusing an already-requested GPIO line.
func (f *FakeTorch) Acquire() error {
	if f.AcquireError != nil {
		return f.AcquireError
	}
	if f.Acquired {
		return ErrBusy
	}
	f.Acquired = true
	return nil
}

// On records the switch-on.
func (f *FakeTorch) On() error {
	if f.OnError != nil {
		return f.OnError
	}
	f.OnCalls++
	f.Lit = true
	return nil
}

// Off records the switch-off.
func (f *FakeTorch) Off() error {
	f.OffCalls++
	f.Lit = false
	return nil
}

// Release returns the claim and switches off.
func (f *FakeTorch) Release() error {
	f.ReleaseCalls++
	f.Acquired = false
	f.Lit = false
	return nil
}
