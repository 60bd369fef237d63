package radio

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tefradio/tefmem/pkg/logging"
	"github.com/tefradio/tefmem/pkg/protocol"
)

const (
	// writePacing between consecutive channel writes; the firmware
	// commits to flash and falls behind without it.
	writePacing = 150 * time.Millisecond
	// checkPacing after a status-only check that sent nothing
	checkPacing = 10 * time.Millisecond
)

// BatchResult summarizes a multi-channel operation
type BatchResult struct {
	Succeeded      int `json:"succeeded"`
	Failed         int `json:"failed"`
	AlreadySkipped int `json:"already_skipped"`

	// Attempted is true once at least one write hit the wire
	Attempted bool `json:"attempted"`
}

// SkipAll walks channels 2 through the top of memory and skips every one
// not already skipped. Channel 1 is never touched. The connection is
// re-checked between channels so a dead port aborts the sweep instead of
// grinding through timeouts.
func (s *Session) SkipAll() (BatchResult, error) {
	var result BatchResult

	cfg := s.Configuration()
	if cfg == nil || cfg.MemoryPositions == 0 {
		return result, fmt.Errorf("no configuration loaded; read the radio first")
	}
	if !s.IsConnected() {
		return result, ErrNotConnected
	}

	total := cfg.MemoryPositions - 1
	s.status(fmt.Sprintf("Erasing (skipping) channels 2-%d...", cfg.MemoryPositions))

	for i := 0; i < total; i++ {
		number := i + 2

		if !s.IsConnected() {
			result.Failed += total - i
			s.status("ERROR: Connection lost during erase; aborting.")
			return result, ErrNotConnected
		}
		s.progress(i+1, total)

		if cfg.ChannelSkipped(number) {
			result.AlreadySkipped++
			time.Sleep(checkPacing)
			continue
		}

		result.Attempted = true
		ok, messages := s.SkipChannel(number)
		if ok {
			result.Succeeded++
		} else {
			result.Failed++
			logging.Warnf("radio", "erase: failed to skip ch %d: %s",
				number, strings.Join(messages, ", "))
		}
		time.Sleep(writePacing)
	}

	s.status(fmt.Sprintf("Erase complete: %d skipped, %d already skipped, %d failed.",
		result.Succeeded, result.AlreadySkipped, result.Failed))
	return result, nil
}

// ExecuteWriteList writes a prepared list of channels in ascending
// channel order with pacing between writes. On connection loss the
// remaining entries are counted as failures and the sweep stops.
func (s *Session) ExecuteWriteList(plan []protocol.Channel) (BatchResult, error) {
	var result BatchResult

	if !s.IsConnected() {
		return result, ErrNotConnected
	}
	if len(plan) == 0 {
		s.status("Nothing to write; radio already matches.")
		return result, nil
	}

	ordered := make([]protocol.Channel, len(plan))
	copy(ordered, plan)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Number < ordered[j].Number })

	total := len(ordered)
	for i, ch := range ordered {
		if !s.IsConnected() {
			result.Failed += total - i
			s.status("ERROR: Connection lost during import; aborting.")
			return result, ErrNotConnected
		}

		s.status(fmt.Sprintf("Writing Ch %d (%d/%d)...", ch.Number, i+1, total))
		result.Attempted = true

		ok, messages := s.WriteChannel(ch)
		if ok {
			result.Succeeded++
		} else {
			result.Failed++
			logging.Warnf("radio", "import: write ch %d failed: %s",
				ch.Number, strings.Join(messages, ", "))
		}
		s.progress(i+1, total)
		time.Sleep(writePacing)
	}

	s.status(fmt.Sprintf("Import write complete: %d succeeded, %d failed.",
		result.Succeeded, result.Failed))
	return result, nil
}
