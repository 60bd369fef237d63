// Package radio drives a TEF ESP32 radio over a serial line transport:
// connection lifecycle, the full configuration read, single channel
// writes and the skip convention. One Session owns one serial port;
// callers needing a responsive UI invoke the blocking calls off their
// main thread and marshal the synchronous callbacks onward.
package radio

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tefradio/tefmem/pkg/logging"
	"github.com/tefradio/tefmem/pkg/protocol"
	"github.com/tefradio/tefmem/pkg/transport"
)

// StatusFunc receives human-readable status text during long operations
type StatusFunc func(message string)

// ProgressFunc receives progress updates as done-out-of-total counts
type ProgressFunc func(done, total int)

const (
	// lineTimeout bounds every dump line after the first; once the
	// device starts streaming it is quick.
	lineTimeout = 500 * time.Millisecond
	// drainTimeout for the final read that flushes a trailing newline
	drainTimeout = 200 * time.Millisecond
	// bannerLines is how many initial lines may be boot noise before
	// unexpected shapes are worth a warning.
	bannerLines = 7

	maxPILen = 4
	maxPSLen = 8
)

var (
	// ErrNotConnected is returned when an operation needs an open port
	ErrNotConnected = errors.New("not connected")
	// ErrNoResponse is returned when the radio never answered at all
	ErrNoResponse = errors.New("no response from radio")
)

// Options configures a Session
type Options struct {
	Device         string
	Baud           int
	ConnectTimeout time.Duration

	Status   StatusFunc
	Progress ProgressFunc

	// Dial overrides how the transport is opened. Tests inject a mock.
	Dial func(transport.Config) (transport.LineTransport, error)
}

// Session is the single mutable client for one radio. All exported
// methods are safe for concurrent use, but the device processes one
// command at a time; callers should not overlap long operations.
type Session struct {
	opts Options

	mu     sync.RWMutex
	tr     transport.LineTransport
	device string
	baud   int
	config *protocol.Configuration
	failed bool
}

// NewSession creates a session; no I/O happens until Connect
func NewSession(opts Options) *Session {
	if opts.Baud == 0 {
		opts.Baud = 115200
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 2 * time.Second
	}
	if opts.Dial == nil {
		opts.Dial = func(cfg transport.Config) (transport.LineTransport, error) {
			return transport.Open(cfg)
		}
	}
	return &Session{opts: opts}
}

func (s *Session) status(message string) {
	if s.opts.Status != nil {
		s.opts.Status(message)
	}
}

func (s *Session) progress(done, total int) {
	if s.opts.Progress != nil {
		s.opts.Progress(done, total)
	}
}

// fail drops the cached configuration and marks the session failed;
// stale configuration must never be presented as current.
func (s *Session) fail() {
	s.mu.Lock()
	s.config = nil
	s.failed = true
	s.mu.Unlock()
}

// Connect opens the configured serial device
func (s *Session) Connect() error {
	return s.ConnectTo(s.opts.Device, s.opts.Baud)
}

// ConnectTo opens an explicit device, replacing any previous connection
func (s *Session) ConnectTo(device string, baud int) error {
	if baud <= 0 {
		baud = s.opts.Baud
	}

	s.mu.Lock()
	if s.tr != nil && s.tr.Connected() && !s.failed && device == s.device {
		s.mu.Unlock()
		s.status("Already connected.")
		return nil
	}
	old := s.tr
	s.tr = nil
	s.config = nil
	s.failed = false
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}

	if device == "" {
		return fmt.Errorf("no serial device configured")
	}

	s.status(fmt.Sprintf("Attempting to connect to %s...", device))
	tr, err := s.opts.Dial(transport.Config{Device: device, Baud: baud})
	if err != nil {
		s.status(fmt.Sprintf("ERROR connecting to %s: %v", device, err))
		return fmt.Errorf("connect %s: %w", device, err)
	}

	s.mu.Lock()
	s.tr = tr
	s.device = device
	s.baud = baud
	s.mu.Unlock()

	s.status(fmt.Sprintf("Connected to %s at %d baud.", device, baud))
	logging.Infof("radio", "connected to %s at %d baud", device, baud)
	return nil
}

// Disconnect closes the serial port and forgets all device state
func (s *Session) Disconnect() error {
	s.mu.Lock()
	tr := s.tr
	s.tr = nil
	s.config = nil
	s.failed = false
	s.mu.Unlock()

	if tr == nil {
		s.status("Already disconnected or not connected.")
		return nil
	}
	err := tr.Close()
	s.status("Disconnected.")
	logging.Info("radio", "disconnected")
	return err
}

// IsConnected reports whether the session has a usable connection. A
// session that hit a hard read failure requires a fresh Connect.
func (s *Session) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tr != nil && s.tr.Connected() && !s.failed
}

// Device returns the connected device path, or empty
func (s *Session) Device() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tr == nil {
		return ""
	}
	return s.device
}

// Configuration returns the cached configuration from the last
// successful read, or nil
func (s *Session) Configuration() *protocol.Configuration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// ReadConfiguration sends 's' and accumulates the dump until the
// declared channel count arrives or the stream goes quiet. A timeout
// with some channels received returns the partial configuration plus a
// warning; a stream that never produced a single line is a hard failure
// that drops the session into the failed state.
func (s *Session) ReadConfiguration() (*protocol.Configuration, []string, error) {
	s.mu.Lock()
	tr := s.tr
	failed := s.failed
	s.config = nil
	s.mu.Unlock()

	if tr == nil || !tr.Connected() || failed {
		return nil, nil, ErrNotConnected
	}

	if err := tr.SendLine(protocol.CmdReadConfig); err != nil {
		s.fail()
		s.status("Failed to send configuration read command ('s').")
		return nil, nil, fmt.Errorf("send config read: %w", err)
	}

	s.status("Reading configuration from radio...")

	cfg := &protocol.Configuration{}
	var warnings []string
	linesRead := 0
	expected := 0

	warn := func(w string) {
		warnings = append(warnings, w)
		s.status("Warning: " + w)
	}

	for {
		// The first line may wait out a warming-up device; once lines
		// flow they come fast.
		timeout := lineTimeout
		if linesRead == 0 {
			timeout = s.opts.ConnectTimeout
		}

		line, ok := tr.ReadLine(timeout)
		if !ok {
			if linesRead == 0 {
				s.fail()
				s.status("ERROR: No response received from radio for 's' command.")
				return nil, nil, ErrNoResponse
			}
			if expected > 0 && len(cfg.Channels) < expected {
				warn(fmt.Sprintf("read timeout before receiving all expected channels (%d/%d)",
					len(cfg.Channels), expected))
			}
			break
		}
		linesRead++

		kind, parseWarn := protocol.ApplyDumpLine(cfg, line)
		switch {
		case parseWarn != "":
			warn(parseWarn)
		case kind == protocol.LineMemory:
			expected = cfg.MemoryPositions
		case kind == protocol.LineChannel:
			if expected > 0 {
				s.progress(len(cfg.Channels), expected)
			}
		case kind == protocol.LineUnknown:
			if linesRead > bannerLines {
				warn(fmt.Sprintf("ignoring unexpected line: %q", line))
			}
		}

		if expected > 0 && len(cfg.Channels) >= expected {
			// Flush any trailing newline, then stop without blocking.
			tr.ReadLine(drainTimeout)
			break
		}
	}

	s.mu.Lock()
	s.config = cfg
	s.mu.Unlock()

	s.status(fmt.Sprintf("Configuration read complete. Found %d channels.", len(cfg.Channels)))
	logging.Infof("radio", "configuration read: %d/%d channels, %d warnings",
		len(cfg.Channels), expected, len(warnings))
	return cfg, warnings, nil
}

// WriteChannel validates, encodes and sends a single channel write, then
// interprets the device's status reply. Validation failures are rejected
// before any bytes hit the wire. The returned messages are always
// populated: rejection reasons on failure, the device's own words on
// success.
func (s *Session) WriteChannel(ch protocol.Channel) (bool, []string) {
	s.mu.RLock()
	tr := s.tr
	cfg := s.config
	failed := s.failed
	s.mu.RUnlock()

	if tr == nil || !tr.Connected() || failed {
		return false, []string{"ERROR: Not connected."}
	}

	maxCh := 0
	if cfg != nil {
		maxCh = cfg.MemoryPositions
	}
	if ch.Number < 1 || (maxCh > 0 && ch.Number > maxCh) {
		return false, []string{fmt.Sprintf("Invalid channel number (1-%s).", maxChannelLabel(maxCh))}
	}
	if ch.FreqKHz < 0 {
		return false, []string{"Invalid frequency (must be >= 0 kHz)."}
	}
	if ch.Number == 1 && cfg.IsSkipFrequency(ch.FreqKHz) {
		return false, []string{"ERROR: Channel 1 cannot be set to skip."}
	}
	if ch.FreqKHz == 0 && cfg.SkipValue() != 0 {
		s.status(fmt.Sprintf("Info: Sending frequency 0 for skip, but radio uses %d kHz.", cfg.SkipValue()))
	}
	if ch.BandwidthCode < 0 {
		return false, []string{"Invalid bandwidth code."}
	}
	if ch.MonoStereoCode != 0 && ch.MonoStereoCode != 1 {
		return false, []string{"Invalid mono/stereo code (must be 0 or 1)."}
	}

	var messages []string
	ch.PI = strings.ToUpper(ch.PI)
	if clipped, ok := clipRunes(ch.PI, maxPILen); ok {
		ch.PI = clipped
		messages = append(messages, "Warning: PI code truncated.")
		s.status("Warning: PI code truncated.")
	}
	if clipped, ok := clipRunes(ch.PS, maxPSLen); ok {
		ch.PS = clipped
		messages = append(messages, "Warning: PS text truncated.")
		s.status("Warning: PS text truncated.")
	}

	command := protocol.EncodeWrite(ch)
	s.status("Sending: " + command)
	if err := tr.SendLine(command); err != nil {
		return false, append(messages, fmt.Sprintf("Failed to send 'S' command: %v", err))
	}

	line, ok := tr.ReadLine(s.opts.ConnectTimeout)
	if !ok {
		s.fail()
		s.status("ERROR: No response received after 'S' command.")
		return false, append(messages, "No response received after 'S' command.")
	}

	code, err := protocol.ParseStatusLine(line)
	if err != nil {
		s.status("ERROR: " + err.Error())
		return false, append(messages, err.Error())
	}

	success, decoded := protocol.InterpretStatus(code)
	messages = append(messages, decoded...)
	s.status(fmt.Sprintf("Write Ch %d response: %s", ch.Number, strings.Join(decoded, ", ")))
	return success, messages
}

// SkipChannel marks a slot unused by writing the skip frequency with the
// documented parameter set (bandwidth 0, stereo 1, no PI/PS). Channel 1
// can never be skipped.
func (s *Session) SkipChannel(number int) (bool, []string) {
	if number == 1 {
		return false, []string{"Error: Channel 1 cannot be skipped."}
	}

	freq := s.Configuration().SkipValue()
	s.status(fmt.Sprintf("Attempting skip for Ch %d using freq %d...", number, freq))
	return s.WriteChannel(protocol.Channel{
		Number:         number,
		FreqKHz:        freq,
		BandwidthCode:  0,
		MonoStereoCode: 1,
	})
}

// IsChannelSkipped reports the skip state of a channel from the cached
// configuration
func (s *Session) IsChannelSkipped(number int) bool {
	return s.Configuration().ChannelSkipped(number)
}

func maxChannelLabel(max int) string {
	if max <= 0 {
		return "?"
	}
	return fmt.Sprintf("%d", max)
}

// clipRunes truncates s to max characters. The PI/PS limits count
// characters, not bytes, so multibyte text is never cut mid-rune.
func clipRunes(s string, max int) (string, bool) {
	runes := []rune(s)
	if len(runes) <= max {
		return s, false
	}
	return string(runes[:max]), true
}
