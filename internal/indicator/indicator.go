// Package indicator drives an activity LED on a GPIO line, set high each
// time the gateway successfully parses a frame off the link.
package indicator

import "fmt"

// gpioLine is the minimal interface indicator needs from a GPIO backend.
type gpioLine interface {
	SetValue(v int) error
	Close() error
}

// Indicator sets a GPIO line high on each parsed frame. The zero value is
// disabled: Pulse and Close are no-ops until Open succeeds.
type Indicator struct {
	line gpioLine
}

// Open requests chip/line as a digital output and returns an Indicator
// that drives it. If line <= 0, indication is disabled and every method
// on the returned Indicator is a no-op.
func Open(chip string, line int) (*Indicator, error) {
	if line <= 0 {
		return &Indicator{}, nil
	}
	gl, err := openGPIO(chip, line)
	if err != nil {
		return nil, fmt.Errorf("indicator: %w", err)
	}
	return &Indicator{line: gl}, nil
}

// Pulse sets the line high. Callers are expected to call Pulse once per
// parsed frame; the line is left high until the next frame's Pulse or
// until Close, which is enough to see activity without needing a timed
// off-pulse for a debug LED.
func (i *Indicator) Pulse() {
	if i == nil || i.line == nil {
		return
	}
	_ = i.line.SetValue(1)
}

// Idle sets the line low, for callers that want an off-pulse between
// frames rather than a solid-on activity indicator.
func (i *Indicator) Idle() {
	if i == nil || i.line == nil {
		return
	}
	_ = i.line.SetValue(0)
}

func (i *Indicator) Close() error {
	if i == nil || i.line == nil {
		return nil
	}
	err := i.line.Close()
	i.line = nil
	return err
}
