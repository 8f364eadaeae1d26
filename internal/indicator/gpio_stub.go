//go:build !linux || (!arm && !arm64)

package indicator

import "fmt"

// Stub implementation for non-Linux and/or non-ARM platforms.
func openGPIO(chip string, line int) (gpioLine, error) {
	return nil, fmt.Errorf("indicator: gpio unsupported on this platform")
}
