package transport

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// ListPorts enumerates candidate serial devices for the current platform.
// The caller (UI or shell) picks one; no probing is done here.
func ListPorts() []string {
	devices := []string{}

	switch runtime.GOOS {
	case "linux":
		patterns := []string{
			"/dev/ttyUSB*",
			"/dev/ttyACM*",
			"/dev/ttyAMA*",
			"/dev/serial/by-id/*",
		}
		for _, pattern := range patterns {
			matches, err := filepath.Glob(pattern)
			if err == nil {
				devices = append(devices, matches...)
			}
		}

	case "darwin":
		patterns := []string{
			"/dev/tty.usb*",
			"/dev/tty.SLAB_*",        // Silicon Labs CP210x
			"/dev/tty.wchusbserial*", // WCH CH340
			"/dev/tty.usbmodem*",     // USB CDC ACM devices
		}
		for _, pattern := range patterns {
			matches, err := filepath.Glob(pattern)
			if err == nil {
				devices = append(devices, matches...)
			}
		}

	case "windows":
		for i := 1; i <= 20; i++ {
			devices = append(devices, fmt.Sprintf("COM%d", i))
		}
	}

	// Filter out non-existent devices on Unix systems
	if runtime.GOOS != "windows" {
		filtered := []string{}
		for _, device := range devices {
			if _, err := os.Stat(device); err == nil {
				filtered = append(filtered, device)
			}
		}
		devices = filtered
	}

	return devices
}
