// Package session orchestrates a fixed-duration pulse measurement: it
// drives the camera and illumination hardware, feeds frames through the
// ppg pipeline, and reports readings, quality, and progress through
// injected callbacks.
package session

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/sweeney/pulse-meter/internal/camera"
	"github.com/sweeney/pulse-meter/internal/ppg"
)

// ErrorKind identifies a user-actionable measurement failure.
type ErrorKind string

const (
	// KindCameraUnavailable means the camera could not be opened.
	KindCameraUnavailable ErrorKind = "CAMERA_UNAVAILABLE"
	// KindIlluminationUnavailable means the torch could not be claimed or lit.
	KindIlluminationUnavailable ErrorKind = "ILLUMINATION_UNAVAILABLE"
	// KindPermissionDenied means the process may not access the camera.
	KindPermissionDenied ErrorKind = "PERMISSION_DENIED"
	// KindMeasurementFailed means the session completed without one valid reading.
	KindMeasurementFailed ErrorKind = "MEASUREMENT_FAILED"
)

// Config holds the measurement tuning constants.
type Config struct {
	// SampleRateHz is the target frame rate.
	SampleRateHz float64
	// Duration bounds the measurement; the session auto-stops when it
	// elapses regardless of reading quality.
	Duration time.Duration
	// MinSamplesForCalculation is the fewest buffered samples before a
	// BPM computation is attempted.
	MinSamplesForCalculation int
	// MaxSamples bounds the signal buffer (FIFO eviction beyond it).
	MaxSamples int
	// MinPeakDistanceSeconds is the shortest allowed beat-to-beat gap.
	MinPeakDistanceSeconds float64
	// UseSpectral blends the FFT frequency estimate into each reading
	// when it agrees with the peak-interval estimate.
	UseSpectral bool
	// Sampler overrides the frame sampler geometry (nil = derived from
	// the source's pixel layout once the camera is open).
	Sampler *ppg.FrameSampler
}

// DefaultConfig returns the standard 20-second measurement at 30 Hz.
func DefaultConfig() Config {
	return Config{
		SampleRateHz:             30,
		Duration:                 20 * time.Second,
		MinSamplesForCalculation: 150,
		MaxSamples:               600,
		MinPeakDistanceSeconds:   0.3,
		UseSpectral:              true,
	}
}

// Callbacks receive measurement output. Any field may be nil. They are
// invoked on the frame-processing goroutine; handlers must hand values to
// their own context without blocking.
type Callbacks struct {
	// OnBPM fires when a new BPM value is computed from the current
	// window (it may repeat the same value).
	OnBPM func(bpm int)
	// OnQuality fires on every processed frame.
	OnQuality func(q ppg.Quality)
	// OnProgress fires on every processed frame with a value in [0, 1].
	OnProgress func(progress float64)
	// OnFinished fires when the measurement ends with at least one
	// collected reading, carrying the integer mean of all readings.
	OnFinished func(averageBPM int)
	// OnError fires on start-time faults and on completed measurements
	// that produced no readings.
	OnError func(kind ErrorKind)
}

// Session owns one measurement lifecycle. A Session may be started again
// after it stops; only one measurement runs at a time, and starting while
// one is active implicitly stops it first.
type Session struct {
	cfg     Config
	src     camera.Source
	torch   camera.Torch
	cb      Callbacks
	sampler *ppg.FrameSampler
	filter  ppg.BandpassFilter

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// New creates a session over the given hardware handles.
func New(src camera.Source, torch camera.Torch, cfg Config, cb Callbacks) *Session {
	return &Session{
		cfg:    cfg,
		src:    src,
		torch:  torch,
		cb:     cb,
		filter: ppg.NewBandpassFilter(),
	}
}

// Running reports whether a measurement is in progress.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start claims the camera and torch and begins measuring. On a hardware
// failure the session stays idle, the matching error kind is emitted, and
// the cause is returned. A non-positive sample rate is rejected before
// any hardware is touched.
func (s *Session) Start() error {
	if s.cfg.SampleRateHz <= 0 {
		return fmt.Errorf("invalid sample rate %v", s.cfg.SampleRateHz)
	}
	interval := time.Duration(float64(time.Second) / s.cfg.SampleRateHz)
	ticker := time.NewTicker(interval)
	if err := s.start(time.Now, ticker.C, ticker.Stop); err != nil {
		ticker.Stop()
		return err
	}
	return nil
}

// start is Start with an injectable clock and tick channel for tests,
// mirroring the daemon run loop. cleanup runs when the measurement
// goroutine exits.
func (s *Session) start(now func() time.Time, tick <-chan time.Time, cleanup func()) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.Stop()
		s.mu.Lock()
	}
	// Wait out a finishing goroutine so its hardware release cannot race
	// our fresh claim.
	if s.done != nil {
		done := s.done
		s.mu.Unlock()
		<-done
		s.mu.Lock()
	}

	if err := s.src.Open(); err != nil {
		s.mu.Unlock()
		kind := KindCameraUnavailable
		if errors.Is(err, camera.ErrPermissionDenied) {
			kind = KindPermissionDenied
		}
		s.emitError(kind)
		return fmt.Errorf("open camera: %w", err)
	}

	if err := s.torch.Acquire(); err != nil {
		s.src.Close()
		s.mu.Unlock()
		s.emitError(KindIlluminationUnavailable)
		return fmt.Errorf("acquire torch: %w", err)
	}
	if err := s.torch.On(); err != nil {
		s.torch.Release()
		s.src.Close()
		s.mu.Unlock()
		s.emitError(KindIlluminationUnavailable)
		return fmt.Errorf("torch on: %w", err)
	}

	// The frame layout is only known after Open negotiated a format.
	sampler := s.cfg.Sampler
	if sampler == nil {
		sampler = ppg.NewFrameSampler()
		sampler.BytesPerPixel, sampler.ChannelOffset = s.src.PixelLayout()
	}
	s.sampler = sampler

	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(now(), now, tick, cleanup, s.stop, s.done)
	s.mu.Unlock()
	return nil
}

// Stop cancels a running measurement. It is safe to call at any time and
// returns only after the torch has been switched off and released — the
// light must never outlive the session.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()
	<-done
}

func (s *Session) run(start time.Time, now func() time.Time, tick <-chan time.Time, cleanup func(), stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer s.markIdle()
	defer s.releaseHardware()
	defer cleanup()

	buf := ppg.NewSignalBuffer(s.cfg.MaxSamples)
	minDistance := int(math.Round(s.cfg.SampleRateHz * s.cfg.MinPeakDistanceSeconds))
	var readings []ppg.BPMReading

	for {
		select {
		case <-stop:
			// Cancelled early: a partial average is still useful, but an
			// empty cancelled session is not a failure.
			if len(readings) > 0 {
				s.emitFinished(averageBPM(readings))
			}
			return

		case <-tick:
			t := now()
			elapsed := t.Sub(start)

			frame, err := s.src.ReadFrame()
			if err != nil {
				log.Printf("session: frame read failed, skipping tick: %v", err)
			} else if v, err := s.sampler.Sample(frame.Pix, frame.Width, frame.Height, frame.Stride); err != nil {
				log.Printf("session: frame unreadable, skipping tick: %v", err)
			} else {
				buf.Append(ppg.Sample{Value: v, Timestamp: elapsed.Seconds()})

				progress := elapsed.Seconds() / s.cfg.Duration.Seconds()
				if progress > 1 {
					progress = 1
				}
				s.emitProgress(progress)
				s.emitQuality(ppg.EvaluateQuality(buf.Values(ppg.QualityWindow)))

				if buf.Len() >= s.cfg.MinSamplesForCalculation {
					if bpm, ok := s.estimate(buf, minDistance); ok {
						readings = append(readings, ppg.BPMReading{BPM: bpm, Timestamp: elapsed.Seconds()})
						s.emitBPM(bpm)
					}
				}
			}

			if elapsed >= s.cfg.Duration {
				if len(readings) > 0 {
					s.emitFinished(averageBPM(readings))
				} else {
					s.emitError(KindMeasurementFailed)
				}
				return
			}
		}
	}
}

// estimate recomputes the whole pipeline over the current window:
// bandpass filter, peak detection, and interval-based rate estimation,
// optionally cross-checked against the spectral estimate.
func (s *Session) estimate(buf *ppg.SignalBuffer, minDistance int) (int, bool) {
	filtered := s.filter.Apply(buf.Values(buf.Len()), s.cfg.SampleRateHz)
	peaks := ppg.FindPeaks(filtered, minDistance)
	bpm, ok := ppg.EstimateBPM(peaks, s.cfg.SampleRateHz)
	if s.cfg.UseSpectral {
		spectralBPM, spectralOK := ppg.DominantBPM(filtered, s.cfg.SampleRateHz)
		bpm, ok = ppg.CombineBPM(bpm, ok, spectralBPM, spectralOK)
	}
	return bpm, ok
}

// releaseHardware switches the torch off and returns both hardware
// claims. It runs on every measurement exit path, before Stop returns.
func (s *Session) releaseHardware() {
	if err := s.torch.Off(); err != nil {
		log.Printf("session: torch off failed: %v", err)
	}
	if err := s.torch.Release(); err != nil {
		log.Printf("session: torch release failed: %v", err)
	}
	if err := s.src.Close(); err != nil {
		log.Printf("session: camera close failed: %v", err)
	}
}

func (s *Session) markIdle() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func averageBPM(readings []ppg.BPMReading) int {
	sum := 0
	for _, r := range readings {
		sum += r.BPM
	}
	return sum / len(readings)
}

func (s *Session) emitBPM(bpm int) {
	if s.cb.OnBPM != nil {
		s.cb.OnBPM(bpm)
	}
}

func (s *Session) emitQuality(q ppg.Quality) {
	if s.cb.OnQuality != nil {
		s.cb.OnQuality(q)
	}
}

func (s *Session) emitProgress(p float64) {
	if s.cb.OnProgress != nil {
		s.cb.OnProgress(p)
	}
}

func (s *Session) emitFinished(avg int) {
	if s.cb.OnFinished != nil {
		s.cb.OnFinished(avg)
	}
}

func (s *Session) emitError(kind ErrorKind) {
	if s.cb.OnError != nil {
		s.cb.OnError(kind)
	}
}
