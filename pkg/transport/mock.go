package transport

import (
	"fmt"
	"sync"
	"time"
)

// MockTransport implements LineTransport for testing. Responses are
// scripted per command line and queued for subsequent reads; the device
// never actually exists.
type MockTransport struct {
	mu sync.Mutex

	open      bool
	responses map[string][]string
	pending   []string

	// Sent records every command line, newline stripped
	Sent []string

	// FailSend makes every SendLine return an error
	FailSend bool
}

// NewMockTransport creates an open mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{
		open:      true,
		responses: make(map[string][]string),
	}
}

// Respond scripts the lines the device streams back after cmd is sent
func (m *MockTransport) Respond(cmd string, lines ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[cmd] = append(m.responses[cmd], lines...)
}

// QueueLines enqueues unsolicited lines, as if the device had already
// written them
func (m *MockTransport) QueueLines(lines ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, lines...)
}

// SendLine records the command and queues its scripted response
func (m *MockTransport) SendLine(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open {
		return fmt.Errorf("serial port not open")
	}
	if m.FailSend {
		return fmt.Errorf("mock send failure")
	}

	cmd := text
	if n := len(cmd); n > 0 && cmd[n-1] == '\n' {
		cmd = cmd[:n-1]
	}
	m.Sent = append(m.Sent, cmd)
	m.pending = append(m.pending, m.responses[cmd]...)
	return nil
}

// ReadLine pops the next queued line; an empty queue reads as a timeout
func (m *MockTransport) ReadLine(timeout time.Duration) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open || len(m.pending) == 0 {
		return "", false
	}
	line := m.pending[0]
	m.pending = m.pending[1:]
	return line, true
}

// Connected reports whether the mock is open
func (m *MockTransport) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// Close closes the mock
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	return nil
}
