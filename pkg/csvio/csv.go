// Package csvio moves channel lists in and out of CSV files. Export is a
// straight dump of the cached configuration; Import parses a file, applies
// per-row validation and builds a differential write list against the live
// configuration so only channels that actually change get written.
package csvio

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/tefradio/tefmem/pkg/protocol"
)

// Header is the exact column set both Export and Import agree on
var Header = []string{
	"Channel", "Frequency kHz", "Bandwidth Code",
	"Mono/Stereo Code", "PI Code", "PS Text",
}

const (
	maxPILen = 4
	maxPSLen = 8
)

// Export writes the configuration's channels to w in channel order and
// returns the number of rows written.
func Export(w io.Writer, cfg *protocol.Configuration) (int, error) {
	if cfg == nil || len(cfg.Channels) == 0 {
		return 0, fmt.Errorf("no channel data to export")
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return 0, fmt.Errorf("write CSV header: %w", err)
	}

	count := 0
	for _, ch := range cfg.SortedChannels() {
		record := []string{
			strconv.Itoa(ch.Number),
			strconv.Itoa(ch.FreqKHz),
			strconv.Itoa(ch.BandwidthCode),
			strconv.Itoa(ch.MonoStereoCode),
			ch.PI,
			ch.PS,
		}
		if err := cw.Write(record); err != nil {
			return count, fmt.Errorf("write CSV row: %w", err)
		}
		count++
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return count, fmt.Errorf("flush CSV: %w", err)
	}
	return count, nil
}

// ImportResult is the outcome of parsing and diffing a CSV file
type ImportResult struct {
	// Plan lists the channels that need writing, in channel order
	Plan []protocol.Channel
	// Warnings collects per-row problems; none of them are fatal
	Warnings []string
}

// Import parses CSV data and diffs it against the live configuration.
// A wrong header is a hard error; everything at row level is a warning
// that drops the row. Duplicate channel numbers keep the last row.
//
// A row whose frequency denotes skip is excluded from the plan when the
// channel is either absent from the radio or already skipped with all
// other fields equal; 0 and the radio's configured skip value count as
// the same state, so representation differences alone never trigger a
// flash write.
func Import(r io.Reader, cfg *protocol.Configuration) (*ImportResult, error) {
	br := bufio.NewReader(r)
	if bom, err := br.Peek(3); err == nil && bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		br.Discard(3)
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("CSV file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}
	if !headerMatches(header) {
		return nil, fmt.Errorf("invalid CSV header: expected %v, found %v", Header, header)
	}

	result := &ImportResult{}
	warn := func(line int, format string, args ...interface{}) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Row %d: %s", line, fmt.Sprintf(format, args...)))
	}

	maxCh := 0
	if cfg != nil {
		maxCh = cfg.MemoryPositions
	}

	imported := make(map[int]protocol.Channel)
	lineNum := 1

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV row: %w", err)
		}
		lineNum++

		if blankRow(row) {
			continue
		}
		if len(row) != len(Header) {
			warn(lineNum, "Skipped (Expected %d columns, found %d).", len(Header), len(row))
			continue
		}

		ch, parseErr := parseRow(row)
		if parseErr != nil {
			warn(lineNum, "Skipped (Invalid number format in one or more fields: %v).", row[:4])
			continue
		}

		if ch.Number < 1 || (maxCh > 0 && ch.Number > maxCh) {
			warn(lineNum, "Skipped (Channel %d out of valid range 1-%d).", ch.Number, maxCh)
			continue
		}
		if ch.FreqKHz < 0 {
			warn(lineNum, "Skipped (Frequency %d cannot be negative).", ch.FreqKHz)
			continue
		}
		if ch.BandwidthCode < 0 {
			warn(lineNum, "Skipped (Bandwidth code %d cannot be negative).", ch.BandwidthCode)
			continue
		}
		if ch.MonoStereoCode != 0 && ch.MonoStereoCode != 1 {
			warn(lineNum, "Skipped (Invalid Mono/Stereo code %d, must be 0 or 1).", ch.MonoStereoCode)
			continue
		}

		if clipped, ok := clipRunes(ch.PI, maxPILen); ok {
			warn(lineNum, "PI %q truncated to %q (max %d chars).", ch.PI, clipped, maxPILen)
			ch.PI = clipped
		}
		if clipped, ok := clipRunes(ch.PS, maxPSLen); ok {
			warn(lineNum, "PS %q truncated to %q (max %d chars).", ch.PS, clipped, maxPSLen)
			ch.PS = clipped
		}

		if ch.Number == 1 && cfg.IsSkipFrequency(ch.FreqKHz) {
			warn(lineNum, "Skipped (Channel 1 cannot be set to skip frequency %d via import).", ch.FreqKHz)
			continue
		}

		// Last row wins for duplicate channel numbers.
		imported[ch.Number] = ch
	}

	result.Plan = diff(imported, cfg)
	return result, nil
}

// diff decides which imported channels actually need a device write
func diff(imported map[int]protocol.Channel, cfg *protocol.Configuration) []protocol.Channel {
	var plan []protocol.Channel

	for _, imp := range imported {
		cur := cfg.Channel(imp.Number)
		skipInCSV := cfg.IsSkipFrequency(imp.FreqKHz)

		if cur == nil {
			// Adding a skip entry for a channel the radio does not have
			// is a no-op.
			if !skipInCSV {
				plan = append(plan, imp)
			}
			continue
		}

		restEqual := imp.BandwidthCode == cur.BandwidthCode &&
			imp.MonoStereoCode == cur.MonoStereoCode &&
			imp.PI == strings.ToUpper(cur.PI) &&
			imp.PS == cur.PS

		if imp.FreqKHz == cur.FreqKHz && restEqual {
			continue
		}
		// A frequency difference that is only the skip representation
		// (0 vs the radio's own skip value) on an already-skipped
		// channel does not change logical state.
		if skipInCSV && cfg.IsSkipped(cur) && restEqual {
			continue
		}
		plan = append(plan, imp)
	}

	sort.Slice(plan, func(i, j int) bool { return plan[i].Number < plan[j].Number })
	return plan
}

func headerMatches(header []string) bool {
	if len(header) != len(Header) {
		return false
	}
	for i, field := range header {
		if strings.TrimSpace(field) != Header[i] {
			return false
		}
	}
	return true
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

func blankRow(row []string) bool {
	for _, field := range row {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

func parseRow(row []string) (protocol.Channel, error) {
	var ch protocol.Channel

	number, err := strconv.Atoi(strings.TrimSpace(row[0]))
	if err != nil {
		return ch, err
	}
	freq, err := strconv.Atoi(strings.TrimSpace(row[1]))
	if err != nil {
		return ch, err
	}
	bw, err := strconv.Atoi(strings.TrimSpace(row[2]))
	if err != nil {
		return ch, err
	}
	ms, err := strconv.Atoi(strings.TrimSpace(row[3]))
	if err != nil {
		return ch, err
	}

	ch = protocol.Channel{
		Number:         number,
		FreqKHz:        freq,
		BandwidthCode:  bw,
		MonoStereoCode: ms,
		PI:             strings.ToUpper(strings.TrimSpace(row[4])),
		PS:             strings.TrimSpace(row[5]),
	}
	return ch, nil
}
