// Package transport owns the serial port and frames the byte stream into
// newline-terminated lines with per-read timeouts.
package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"

	"github.com/tefradio/tefmem/pkg/trace"
)

// Config holds serial port parameters
type Config struct {
	Device string
	Baud   int
}

// LineTransport is the line-based send/receive contract the session
// drives. The serial implementation talks to real hardware; tests use
// the mock.
type LineTransport interface {
	// SendLine writes one command line, appending a newline if absent.
	SendLine(text string) error
	// ReadLine blocks up to timeout for a newline-terminated line.
	// ok is false on timeout or I/O error; errors never propagate past
	// this boundary.
	ReadLine(timeout time.Duration) (line string, ok bool)
	// Connected reports whether the underlying port is open.
	Connected() bool
	Close() error
}

const (
	// bootDelay gives the device time to finish booting after the port
	// opens. Skipping it leaves boot-banner bytes in front of the first
	// real response.
	bootDelay = 2 * time.Second
	// settleDelay after each sent line; the firmware needs it to consume
	// the command before the next byte arrives.
	settleDelay = 100 * time.Millisecond
	// pollTimeout is the low-level read granularity used to honor
	// per-call ReadLine deadlines.
	pollTimeout = 50 * time.Millisecond

	drainWindow = 500 * time.Millisecond
)

// SerialTransport implements LineTransport over a tarm serial port
type SerialTransport struct {
	mu   sync.Mutex
	port *serial.Port
	buf  []byte
	open bool
}

// Open opens the serial device, waits out the device boot and clears any
// stale bytes the boot banner left behind.
func Open(cfg Config) (*SerialTransport, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: pollTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}

	t := &SerialTransport{port: port, open: true}

	time.Sleep(bootDelay)
	t.drain()

	return t, nil
}

// SendLine writes one line to the device
func (t *SerialTransport) SendLine(text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open {
		return fmt.Errorf("serial port not open")
	}

	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	trace.TX(strings.TrimRight(text, "\n"))

	if _, err := t.port.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write command: %w", err)
	}

	time.Sleep(settleDelay)
	return nil
}

// ReadLine assembles one line from the port, waiting up to timeout
func (t *SerialTransport) ReadLine(timeout time.Duration) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open {
		return "", false
	}

	deadline := time.Now().Add(timeout)
	chunk := make([]byte, 256)

	for {
		if line, rest, found := takeLine(t.buf); found {
			t.buf = rest
			trace.RX(line)
			return line, true
		}

		if !time.Now().Before(deadline) {
			return "", false
		}

		n, err := t.port.Read(chunk)
		if n > 0 {
			t.buf = append(t.buf, chunk[:n]...)
			continue
		}
		if err != nil && !isTimeout(err) {
			trace.Printf("read error: %v", err)
			return "", false
		}
		// Short poll expired with no data; loop until the deadline.
	}
}

// Connected reports whether the port is open
func (t *SerialTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

// Close closes the serial port
func (t *SerialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open {
		return nil
	}
	t.open = false
	t.buf = nil
	return t.port.Close()
}

// drain discards whatever the device has already sent. tarm/serial has no
// buffer reset, so this reads until the line goes quiet.
func (t *SerialTransport) drain() {
	deadline := time.Now().Add(drainWindow)
	chunk := make([]byte, 256)
	discarded := 0

	for time.Now().Before(deadline) {
		n, err := t.port.Read(chunk)
		if n > 0 {
			discarded += n
			continue
		}
		if err != nil && !isTimeout(err) {
			break
		}
		// One quiet poll is enough; the device streams continuously
		// when it has something to say.
		break
	}

	t.buf = nil
	if discarded > 0 {
		trace.Printf("drained %d stale bytes", discarded)
	}
}

// isTimeout reports whether err is the poll-expired result tarm/serial
// returns when ReadTimeout elapses with no data.
func isTimeout(err error) bool {
	// tarm/serial surfaces timeouts as io.EOF on POSIX platforms.
	return errors.Is(err, io.EOF)
}

// takeLine splits the first newline-terminated line off buf. The line is
// decoded permissively: invalid bytes are replaced, never fatal. CR and
// surrounding whitespace are trimmed.
func takeLine(buf []byte) (line string, rest []byte, found bool) {
	idx := bytes.IndexByte(buf, '\n')
	if idx < 0 {
		return "", buf, false
	}
	raw := bytes.ToValidUTF8(buf[:idx], []byte("�"))
	return strings.TrimSpace(string(raw)), buf[idx+1:], true
}
