// Command pulse-meter measures heart rate from a finger placed over an
// illuminated camera and publishes readings to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/pulse-meter/internal/camera"
	"github.com/sweeney/pulse-meter/internal/mqtt"
	"github.com/sweeney/pulse-meter/internal/session"
	"github.com/sweeney/pulse-meter/internal/status"
	"github.com/sweeney/pulse-meter/internal/web"
)

func main() {
	device := flag.String("device", camera.DefaultDevice, "V4L2 camera device")
	width := flag.Int("width", 640, "requested frame width")
	height := flag.Int("height", 480, "requested frame height")
	rate := flag.Float64("rate", 30, "target sample rate (Hz)")
	duration := flag.Duration("duration", 20*time.Second, "measurement duration")
	torchChip := flag.String("torch-chip", "gpiochip0", "GPIO chip driving the illumination LED")
	torchLine := flag.Int("torch-line", camera.DefaultTorchLine, "GPIO line driving the illumination LED")
	broker := flag.String("broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	httpAddr := flag.String("http", ":8080", "HTTP status address (empty to disable)")
	repeat := flag.Duration("repeat", 0, "interval between unattended measurements (0 = measure once)")

	flag.Parse()

	if err := run(*device, *width, *height, *rate, *duration, *torchChip, *torchLine, *broker, *httpAddr, *repeat); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(device string, width, height int, rate float64, duration time.Duration, torchChip string, torchLine int, broker, httpAddr string, repeat time.Duration) error {
	if rate <= 0 {
		return fmt.Errorf("invalid sample rate %v", rate)
	}

	source := camera.NewRealSource(device, width, height)
	torch := camera.NewRealTorch(torchChip, torchLine)

	publisher, err := mqtt.NewRealPublisher(broker)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	tracker := status.NewTracker(time.Now(), status.Config{
		SampleRateHz: rate,
		DurationMs:   duration.Milliseconds(),
		Device:       device,
		TorchChip:    torchChip,
		TorchLine:    torchLine,
		Broker:       broker,
		HTTPPort:     httpAddr,
	})

	// Publish startup event with full status snapshot.
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      mqtt.EventStartup,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, mqtt.EventStartup, ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server.
	if httpAddr != "" {
		srv := web.New(httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", httpAddr)
	}

	cfg := session.DefaultConfig()
	cfg.SampleRateHz = rate
	cfg.Duration = duration

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Printf("started: device=%s rate=%vHz duration=%v torch=%s:%d broker=%s repeat=%v",
		device, rate, duration, torchChip, torchLine, broker, repeat)

	for {
		interrupted, err := runMeasurement(source, torch, cfg, tracker, publisher, publisher, sigCh)
		if err != nil {
			// Hardware faults are fatal in once-mode; in repeat mode the
			// next attempt may succeed (e.g. camera back after reboot of a hub).
			if repeat == 0 {
				return err
			}
			log.Printf("measurement error: %v", err)
		}
		if interrupted {
			publishShutdown(publisher, tracker, "SIGNAL")
			return nil
		}
		if repeat == 0 {
			return nil
		}

		select {
		case s := <-sigCh:
			log.Printf("received %v, shutting down", s)
			publishShutdown(publisher, tracker, signalName(s))
			return nil
		case <-time.After(repeat):
		}
	}
}

// runMeasurement runs a single fixed-duration measurement, wiring session
// callbacks into the tracker and the MQTT publisher. Returns whether a
// shutdown signal arrived mid-measurement.
func runMeasurement(src camera.Source, torch camera.Torch, cfg session.Config, tracker *status.Tracker, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, sig <-chan os.Signal) (bool, error) {
	done := make(chan struct{}, 2)

	refreshMQTTStatus := func() {
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
	}

	cb := session.Callbacks{
		OnBPM: func(bpm int) {
			tracker.SetBPM(bpm)
			reading := mqtt.Reading{
				Timestamp: time.Now(),
				BPM:       bpm,
				Quality:   tracker.Snapshot().Quality,
			}
			if err := publisher.PublishReading(reading); err != nil {
				log.Printf("publish reading error: %v", err)
				// Don't crash on publish failure
			}
		},
		OnQuality: tracker.SetQuality,
		OnProgress: func(p float64) {
			tracker.SetProgress(p)
			refreshMQTTStatus()
		},
		OnFinished: func(avg int) {
			log.Printf("measurement finished: average %d bpm", avg)
			refreshMQTTStatus()
			tracker.MeasurementFinished(avg)
			publishMeasurementEvent(publisher, tracker, mqtt.EventMeasurementFinished, avg)
			done <- struct{}{}
		},
		OnError: func(kind session.ErrorKind) {
			log.Printf("measurement error: %s", kind)
			refreshMQTTStatus()
			if kind == session.KindMeasurementFailed {
				tracker.MeasurementFailed()
				publishMeasurementEvent(publisher, tracker, mqtt.EventMeasurementFailed, 0)
			}
			done <- struct{}{}
		},
	}

	sess := session.New(src, torch, cfg, cb)

	tracker.MeasurementStarted()
	refreshMQTTStatus()
	publishMeasurementEvent(publisher, tracker, mqtt.EventMeasurementStarted, 0)

	if err := sess.Start(); err != nil {
		tracker.SetIdle()
		return false, fmt.Errorf("start measurement: %w", err)
	}

	select {
	case <-done:
		sess.Stop() // idempotent; hardware already released on finish
		return false, nil
	case s := <-sig:
		log.Printf("received %v, stopping measurement", s)
		sess.Stop()
		return true, nil
	}
}

func publishMeasurementEvent(publisher mqtt.Publisher, tracker *status.Tracker, event string, averageBPM int) {
	e := mqtt.SystemEvent{
		Timestamp:  time.Now(),
		Event:      event,
		AverageBPM: averageBPM,
	}
	e.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), event, "")
	if err := publisher.PublishSystem(e); err != nil {
		log.Printf("publish %s error: %v", event, err)
	}
}

func publishShutdown(publisher mqtt.Publisher, tracker *status.Tracker, reason string) {
	event := mqtt.SystemEvent{
		Timestamp:  time.Now(),
		Event:      mqtt.EventShutdown,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(tracker.Snapshot(), mqtt.EventShutdown, reason),
	}
	if err := publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish shutdown event: %v", err)
	} else {
		log.Printf("published shutdown event")
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}
