// Package trace provides a global toggle for wire-level serial tracing.
// It is intentionally tiny: the transport calls TX/RX on every line and
// the flag decides whether anything is printed.
package trace

import "log"

var enabled bool

// SetEnabled sets the global wire trace flag
func SetEnabled(enable bool) {
	enabled = enable
}

// Enabled returns whether wire tracing is enabled
func Enabled() bool {
	return enabled
}

// TX logs an outbound line if wire tracing is enabled
func TX(line string) {
	if enabled {
		log.Printf("[WIRE] >> %q", line)
	}
}

// RX logs an inbound line if wire tracing is enabled
func RX(line string) {
	if enabled {
		log.Printf("[WIRE] << %q", line)
	}
}

// Printf logs a formatted wire-level message if wire tracing is enabled
func Printf(format string, args ...interface{}) {
	if enabled {
		log.Printf("[WIRE] "+format, args...)
	}
}
