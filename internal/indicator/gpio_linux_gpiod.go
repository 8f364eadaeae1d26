//go:build linux && (arm || arm64)

package indicator

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// openGPIO requests line as a digital output on chip using the Linux GPIO
// character device (libgpiod).
func openGPIO(chip string, line int) (gpioLine, error) {
	if chip == "" {
		return nil, fmt.Errorf("chip path is required")
	}
	c, err := gpiocdev.NewChip(chip)
	if err != nil {
		return nil, err
	}
	l, err := c.RequestLine(line, gpiocdev.AsOutput(0), gpiocdev.WithConsumer("cff-gateway-indicator"))
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return &gpiodLine{chip: c, line: l}, nil
}

type gpiodLine struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

func (g *gpiodLine) SetValue(v int) error {
	if g == nil || g.line == nil {
		return fmt.Errorf("indicator: gpio line not initialized")
	}
	return g.line.SetValue(v)
}

func (g *gpiodLine) Close() error {
	if g == nil || g.line == nil {
		return nil
	}
	_ = g.line.SetValue(0)
	err := g.line.Close()
	g.line = nil
	if g.chip != nil {
		_ = g.chip.Close()
		g.chip = nil
	}
	return err
}
