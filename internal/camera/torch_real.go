//go:build linux

package camera

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// DefaultTorchLine is the BCM line number the illumination LED ring is
// wired to on the reference rig.
const DefaultTorchLine = 18

// RealTorch drives an illumination LED through a GPIO output line.
// The kernel grants a line to one requester at a time, which enforces the
// single-holder contract: a second Acquire fails while the first claim is
// open.
type RealTorch struct {
	chipName string
	offset   int
	chip     *gpiocdev.Chip
	line     *gpiocdev.Line
}

// NewRealTorch creates a torch on the given GPIO chip and line offset.
func NewRealTorch(chipName string, offset int) *RealTorch {
	return &RealTorch{chipName: chipName, offset: offset}
}

// Acquire requests the line as an output, initially off.
func (t *RealTorch) Acquire() error {
	chip, err := gpiocdev.NewChip(t.chipName)
	if err != nil {
		return fmt.Errorf("open gpio chip %s: %w", t.chipName, err)
	}

	line, err := chip.RequestLine(t.offset, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return fmt.Errorf("request torch line %d: %w", t.offset, err)
	}

	t.chip = chip
	t.line = line
	return nil
}

// On switches the illumination on.
func (t *RealTorch) On() error {
	if t.line == nil {
		return fmt.Errorf("torch line %d: not acquired", t.offset)
	}
	if err := t.line.SetValue(1); err != nil {
		return fmt.Errorf("torch on: %w", err)
	}
	return nil
}

// Off switches the illumination off.
func (t *RealTorch) Off() error {
	if t.line == nil {
		return fmt.Errorf("torch line %d: not acquired", t.offset)
	}
	if err := t.line.SetValue(0); err != nil {
		return fmt.Errorf("torch off: %w", err)
	}
	return nil
}

// Release drives the line low and returns the claim. Leaving the line low
// before closing keeps the LED off across daemon restarts.
func (t *RealTorch) Release() error {
	var errs []error

	if t.line != nil {
		if err := t.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("drive torch line low: %w", err))
		}
		if err := t.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close torch line: %w", err))
		}
		t.line = nil
	}
	if t.chip != nil {
		if err := t.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close gpio chip: %w", err))
		}
		t.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("release torch: %v", errs)
	}
	return nil
}
