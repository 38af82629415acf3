package session

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/pulse-meter/internal/camera"
	"github.com/sweeney/pulse-meter/internal/ppg"
)

const frameInterval = time.Second / 30

// testClock returns a now func that advances one frame interval per call,
// so every tick observes exactly one frame period of elapsed time.
func testClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(frameInterval)
		return t
	}
}

// pulseFrame builds a uniform 32x24 BGRA frame whose red channel holds
// the given brightness.
func pulseFrame(value float64) camera.Frame {
	v := byte(math.Round(math.Max(0, math.Min(255, value))))
	width, height := 32, 24
	pix := make([]byte, width*height*4)
	for i := 2; i < len(pix); i += 4 {
		pix[i] = v
	}
	return camera.Frame{Pix: pix, Width: width, Height: height, Stride: width * 4}
}

// pulseSource generates frames tracing a sinusoidal pulse at the given
// beat frequency, with a small deterministic noise component so that
// crests never quantize into flat plateaus.
func pulseSource(freqHz, amplitude, offset float64) *camera.FakeSource {
	return &camera.FakeSource{FrameFunc: func(i int) camera.Frame {
		t := float64(i) / 30
		noise := 1.5 * math.Sin(float64(i)*1.7+0.5)
		return pulseFrame(offset + amplitude*math.Sin(2*math.Pi*freqHz*t) + noise)
	}}
}

// lumaSource produces tightly packed 2-byte-per-pixel frames in a
// luma/chroma interleave: even-pixel luma bytes trace the pulse, odd-pixel
// luma bytes stay at zero, chroma bytes are saturated. Only a sampler
// configured for the source's own layout reads the pulsing channel.
func lumaSource(freqHz, amplitude, offset float64) *camera.FakeSource {
	width, height := 32, 24
	return &camera.FakeSource{
		BytesPerPixel: 2,
		ChannelOffset: 0,
		FrameFunc: func(i int) camera.Frame {
			t := float64(i) / 30
			noise := 1.5 * math.Sin(float64(i)*1.7+0.5)
			v := byte(math.Round(math.Max(0, math.Min(255, offset+amplitude*math.Sin(2*math.Pi*freqHz*t)+noise))))
			pix := make([]byte, width*height*2)
			for p := 0; p < len(pix); p += 4 {
				pix[p] = v
				pix[p+1] = 255
				if p+3 < len(pix) {
					pix[p+2] = 0
					pix[p+3] = 255
				}
			}
			return camera.Frame{Pix: pix, Width: width, Height: height, Stride: width * 2}
		},
	}
}

// collector records callback invocations for assertions.
type collector struct {
	mu         sync.Mutex
	bpms       []int
	bpmAtFrame []int // processed-frame count when each BPM fired
	qualities  []ppg.Quality
	progresses []float64
	finished   []int
	errs       []ErrorKind
	done       chan struct{}
}

func newCollector() *collector {
	return &collector{done: make(chan struct{}, 2)}
}

func (c *collector) callbacks() Callbacks {
	return Callbacks{
		OnBPM: func(bpm int) {
			c.mu.Lock()
			c.bpms = append(c.bpms, bpm)
			c.bpmAtFrame = append(c.bpmAtFrame, len(c.progresses))
			c.mu.Unlock()
		},
		OnQuality: func(q ppg.Quality) {
			c.mu.Lock()
			c.qualities = append(c.qualities, q)
			c.mu.Unlock()
		},
		OnProgress: func(p float64) {
			c.mu.Lock()
			c.progresses = append(c.progresses, p)
			c.mu.Unlock()
		},
		OnFinished: func(avg int) {
			c.mu.Lock()
			c.finished = append(c.finished, avg)
			c.mu.Unlock()
			c.done <- struct{}{}
		},
		OnError: func(kind ErrorKind) {
			c.mu.Lock()
			c.errs = append(c.errs, kind)
			c.mu.Unlock()
			c.done <- struct{}{}
		},
	}
}

func (c *collector) waitDone(t *testing.T) {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for session completion")
	}
}

// prefilledTicks returns a tick channel already loaded with n ticks.
func prefilledTicks(n int) chan time.Time {
	tick := make(chan time.Time, n)
	for i := 0; i < n; i++ {
		tick <- time.Time{}
	}
	return tick
}

// Feed a synthetic 72 BPM pulse for the full 20 seconds: the averaged
// result must land within a few BPM and the first reading must arrive
// well before the halfway mark.
func TestSessionEndToEnd(t *testing.T) {
	src := pulseSource(1.2, 10, 128) // 72 BPM
	torch := camera.NewFakeTorch()
	col := newCollector()
	s := New(src, torch, DefaultConfig(), col.callbacks())

	if err := s.start(testClock(), prefilledTicks(650), func() {}); err != nil {
		t.Fatalf("start: %v", err)
	}
	col.waitDone(t)
	s.Stop()

	col.mu.Lock()
	defer col.mu.Unlock()

	if len(col.errs) != 0 {
		t.Fatalf("unexpected errors: %v", col.errs)
	}
	if len(col.finished) != 1 {
		t.Fatalf("expected exactly one finished event, got %d", len(col.finished))
	}
	if avg := col.finished[0]; avg < 69 || avg > 75 {
		t.Errorf("expected averaged BPM within 3 of 72, got %d", avg)
	}

	if len(col.bpms) == 0 {
		t.Fatal("expected per-tick BPM updates")
	}
	// First reading must arrive before the 10-second mark (frame 300).
	if first := col.bpmAtFrame[0]; first >= 300 {
		t.Errorf("first BPM update at frame %d, expected before 300", first)
	}
	for _, bpm := range col.bpms {
		if bpm < ppg.MinBPM || bpm > ppg.MaxBPM {
			t.Errorf("surfaced BPM %d outside [%d, %d]", bpm, ppg.MinBPM, ppg.MaxBPM)
		}
	}

	// Quality and progress fire on every processed frame.
	if len(col.qualities) != len(col.progresses) {
		t.Errorf("quality updates (%d) and progress updates (%d) diverge",
			len(col.qualities), len(col.progresses))
	}
	if last := col.progresses[len(col.progresses)-1]; last < 0.99 {
		t.Errorf("expected progress to reach 1.0, got %v", last)
	}

	if torch.ReleaseCalls != 1 {
		t.Errorf("expected exactly one torch release, got %d", torch.ReleaseCalls)
	}
	if torch.Lit {
		t.Error("torch still lit after session end")
	}
	if !src.Closed {
		t.Error("camera not closed after session end")
	}
}

// The sampler geometry must follow the layout the source negotiated at
// open time: a 2-byte-per-pixel source is read as such, not with the
// BGRA defaults.
func TestSessionDerivesSamplerFromSourceLayout(t *testing.T) {
	src := lumaSource(1.2, 10, 128) // 72 BPM in the luma channel
	torch := camera.NewFakeTorch()
	col := newCollector()
	s := New(src, torch, DefaultConfig(), col.callbacks())

	if err := s.start(testClock(), prefilledTicks(650), func() {}); err != nil {
		t.Fatalf("start: %v", err)
	}
	col.waitDone(t)

	col.mu.Lock()
	defer col.mu.Unlock()
	if len(col.errs) != 0 {
		t.Fatalf("unexpected errors: %v", col.errs)
	}
	if len(col.finished) != 1 {
		t.Fatalf("expected a result, got %d finished events", len(col.finished))
	}
	if avg := col.finished[0]; avg < 69 || avg > 75 {
		t.Errorf("expected averaged BPM within 3 of 72, got %d", avg)
	}
}

func TestSessionStartRejectsInvalidRate(t *testing.T) {
	src := camera.NewFakeSource(nil)
	torch := camera.NewFakeTorch()
	s := New(src, torch, Config{}, Callbacks{})

	if err := s.Start(); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
	if s.Running() {
		t.Error("session running after rejected start")
	}
	if src.Opened {
		t.Error("camera opened despite invalid config")
	}
	if torch.Acquired {
		t.Error("torch claimed despite invalid config")
	}
}

// A flat signal has no pulsatile component: the session must complete
// with MEASUREMENT_FAILED and never report a result.
func TestSessionZeroReadings(t *testing.T) {
	src := camera.NewFakeSource([]camera.Frame{pulseFrame(128)})
	torch := camera.NewFakeTorch()
	col := newCollector()
	s := New(src, torch, DefaultConfig(), col.callbacks())

	if err := s.start(testClock(), prefilledTicks(650), func() {}); err != nil {
		t.Fatalf("start: %v", err)
	}
	col.waitDone(t)

	col.mu.Lock()
	defer col.mu.Unlock()

	if len(col.finished) != 0 {
		t.Errorf("expected no finished event, got %v", col.finished)
	}
	if len(col.errs) != 1 || col.errs[0] != KindMeasurementFailed {
		t.Fatalf("expected MEASUREMENT_FAILED, got %v", col.errs)
	}
	if len(col.bpms) != 0 {
		t.Errorf("expected no BPM updates from a flat signal, got %v", col.bpms)
	}
	// Flat brightness means no amplitude: quality must stay POOR.
	for i, q := range col.qualities {
		if q != ppg.QualityPoor {
			t.Errorf("quality[%d]: expected POOR for flat signal, got %s", i, q)
			break
		}
	}
	if torch.ReleaseCalls != 1 {
		t.Errorf("expected exactly one torch release, got %d", torch.ReleaseCalls)
	}
}

// Stopping mid-measurement must release the torch exactly once before
// Stop returns, and a session with no readings reports nothing.
func TestSessionStopMidMeasurement(t *testing.T) {
	src := pulseSource(1.2, 10, 128)
	torch := camera.NewFakeTorch()
	col := newCollector()
	s := New(src, torch, DefaultConfig(), col.callbacks())

	tick := make(chan time.Time)
	if err := s.start(testClock(), tick, func() {}); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 20; i++ {
		tick <- time.Time{}
	}
	s.Stop()

	if torch.ReleaseCalls != 1 {
		t.Fatalf("expected torch released exactly once by Stop, got %d", torch.ReleaseCalls)
	}
	if torch.Lit {
		t.Error("torch still lit after Stop")
	}
	if !src.Closed {
		t.Error("camera not closed after Stop")
	}
	if s.Running() {
		t.Error("session still running after Stop")
	}

	col.mu.Lock()
	if len(col.finished) != 0 {
		t.Errorf("expected no result from a 20-frame session, got %v", col.finished)
	}
	col.mu.Unlock()

	// Stop is idempotent.
	s.Stop()
	if torch.ReleaseCalls != 1 {
		t.Errorf("second Stop released again: %d releases", torch.ReleaseCalls)
	}
}

// Stopping after readings were collected still reports the partial
// average.
func TestSessionStopReportsPartialAverage(t *testing.T) {
	src := pulseSource(1.2, 10, 128)
	torch := camera.NewFakeTorch()
	col := newCollector()
	s := New(src, torch, DefaultConfig(), col.callbacks())

	tick := make(chan time.Time)
	if err := s.start(testClock(), tick, func() {}); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 250; i++ { // past MinSamplesForCalculation
		tick <- time.Time{}
	}
	s.Stop()

	col.mu.Lock()
	defer col.mu.Unlock()
	if len(col.bpms) == 0 {
		t.Fatal("expected readings before stop")
	}
	if len(col.finished) != 1 {
		t.Fatalf("expected partial average on stop, got %v", col.finished)
	}
	if avg := col.finished[0]; avg < 60 || avg > 85 {
		t.Errorf("partial average %d implausible for a 72 BPM signal", avg)
	}
}

func TestSessionPermissionDenied(t *testing.T) {
	src := camera.NewFakeSource(nil)
	src.OpenError = fmt.Errorf("open /dev/video0: %w", camera.ErrPermissionDenied)
	torch := camera.NewFakeTorch()
	col := newCollector()
	s := New(src, torch, DefaultConfig(), col.callbacks())

	err := s.Start()
	if err == nil {
		t.Fatal("expected start to fail")
	}
	if !errors.Is(err, camera.ErrPermissionDenied) {
		t.Errorf("expected wrapped ErrPermissionDenied, got %v", err)
	}
	col.mu.Lock()
	if len(col.errs) != 1 || col.errs[0] != KindPermissionDenied {
		t.Errorf("expected PERMISSION_DENIED, got %v", col.errs)
	}
	col.mu.Unlock()
	if s.Running() {
		t.Error("session must stay idle after a failed start")
	}
	if torch.Acquired {
		t.Error("torch must not be claimed when the camera fails to open")
	}
}

func TestSessionCameraUnavailable(t *testing.T) {
	src := camera.NewFakeSource(nil)
	src.OpenError = errors.New("device wedged")
	torch := camera.NewFakeTorch()
	col := newCollector()
	s := New(src, torch, DefaultConfig(), col.callbacks())

	if err := s.Start(); err == nil {
		t.Fatal("expected start to fail")
	}
	col.mu.Lock()
	if len(col.errs) != 1 || col.errs[0] != KindCameraUnavailable {
		t.Errorf("expected CAMERA_UNAVAILABLE, got %v", col.errs)
	}
	col.mu.Unlock()
}

func TestSessionTorchBusy(t *testing.T) {
	src := camera.NewFakeSource([]camera.Frame{pulseFrame(128)})
	torch := camera.NewFakeTorch()
	if err := torch.Acquire(); err != nil { // someone else holds the line
		t.Fatalf("setup acquire: %v", err)
	}
	col := newCollector()
	s := New(src, torch, DefaultConfig(), col.callbacks())

	if err := s.Start(); err == nil {
		t.Fatal("expected start to fail with the torch claimed elsewhere")
	}
	col.mu.Lock()
	if len(col.errs) != 1 || col.errs[0] != KindIlluminationUnavailable {
		t.Errorf("expected ILLUMINATION_UNAVAILABLE, got %v", col.errs)
	}
	col.mu.Unlock()
	if !src.Closed {
		t.Error("camera must be closed again when the torch claim fails")
	}
	if s.Running() {
		t.Error("session must stay idle")
	}
}

func TestSessionTorchOnFailure(t *testing.T) {
	src := camera.NewFakeSource([]camera.Frame{pulseFrame(128)})
	torch := camera.NewFakeTorch()
	torch.OnError = errors.New("led driver fault")
	col := newCollector()
	s := New(src, torch, DefaultConfig(), col.callbacks())

	if err := s.Start(); err == nil {
		t.Fatal("expected start to fail")
	}
	if torch.ReleaseCalls != 1 {
		t.Errorf("expected the failed claim to be released, got %d releases", torch.ReleaseCalls)
	}
	col.mu.Lock()
	if len(col.errs) != 1 || col.errs[0] != KindIlluminationUnavailable {
		t.Errorf("expected ILLUMINATION_UNAVAILABLE, got %v", col.errs)
	}
	col.mu.Unlock()
}

// Starting while a measurement is active implicitly stops the prior one:
// the hardware is never claimed twice.
func TestSessionRestartWhileRunning(t *testing.T) {
	src := pulseSource(1.2, 10, 128)
	torch := camera.NewFakeTorch()
	col := newCollector()
	s := New(src, torch, DefaultConfig(), col.callbacks())

	if err := s.start(testClock(), make(chan time.Time), func() {}); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if !s.Running() {
		t.Fatal("expected session running after first start")
	}

	if err := s.start(testClock(), make(chan time.Time), func() {}); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if torch.ReleaseCalls != 1 {
		t.Errorf("expected first claim released exactly once, got %d", torch.ReleaseCalls)
	}
	if !torch.Acquired {
		t.Error("expected torch claimed by the second measurement")
	}
	if !s.Running() {
		t.Error("expected session running after restart")
	}

	s.Stop()
	if torch.ReleaseCalls != 2 {
		t.Errorf("expected both claims released, got %d", torch.ReleaseCalls)
	}
}

// Frame read errors skip ticks without killing the session; a session of
// nothing but failed reads completes as MEASUREMENT_FAILED.
func TestSessionFrameErrorsAreTransient(t *testing.T) {
	src := camera.NewFakeSource([]camera.Frame{pulseFrame(128)})
	src.ReadError = errors.New("transient capture fault")
	torch := camera.NewFakeTorch()
	col := newCollector()

	cfg := DefaultConfig()
	cfg.Duration = 2 * time.Second
	s := New(src, torch, cfg, col.callbacks())

	if err := s.start(testClock(), prefilledTicks(80), func() {}); err != nil {
		t.Fatalf("start: %v", err)
	}
	col.waitDone(t)

	col.mu.Lock()
	defer col.mu.Unlock()
	if len(col.progresses) != 0 {
		t.Errorf("skipped ticks must not emit progress, got %d updates", len(col.progresses))
	}
	if len(col.errs) != 1 || col.errs[0] != KindMeasurementFailed {
		t.Fatalf("expected MEASUREMENT_FAILED, got %v", col.errs)
	}
	if torch.ReleaseCalls != 1 {
		t.Errorf("expected exactly one torch release, got %d", torch.ReleaseCalls)
	}
}
