package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// CmdReadConfig requests the full configuration dump
const CmdReadConfig = "s"

// LineKind identifies what a line of the configuration dump carried
type LineKind int

const (
	LineModel LineKind = iota
	LineVersion
	LineMemory
	LineSkip
	LineOffset
	LineAMRange
	LineFMRange
	LineChannel
	LineUnknown
)

// ApplyDumpLine parses one line of the 's' dump into cfg. It returns the
// detected line kind and, when the line was recognized but failed to
// parse, a non-empty warning. Lines of no recognizable shape come back as
// LineUnknown with no warning; the caller decides whether they are banner
// noise or worth reporting.
func ApplyDumpLine(cfg *Configuration, line string) (LineKind, string) {
	switch {
	case strings.HasPrefix(line, "r:"):
		cfg.ModelID = strings.TrimSpace(line[2:])
		return LineModel, ""

	case strings.HasPrefix(line, "v:"):
		cfg.Version = strings.TrimSpace(line[2:])
		return LineVersion, ""

	case strings.HasPrefix(line, "m:"):
		val, err := strconv.Atoi(strings.TrimSpace(line[2:]))
		if err != nil {
			return LineMemory, fmt.Sprintf("could not parse memory positions: %q", line)
		}
		cfg.MemoryPositions = val
		return LineMemory, ""

	case strings.HasPrefix(line, "s:"):
		val, err := strconv.Atoi(strings.TrimSpace(line[2:]))
		if err != nil {
			return LineSkip, fmt.Sprintf("could not parse skip frequency: %q", line)
		}
		cfg.SkipFrequency = val
		cfg.SkipKnown = true
		return LineSkip, ""

	case strings.HasPrefix(line, "o:"):
		// Some firmware revisions delimit the offset with ':' rather
		// than ','; only the first field matters.
		rest := strings.TrimSpace(line[2:])
		field := strings.FieldsFunc(rest, func(r rune) bool { return r == ',' || r == ':' })
		if len(field) == 0 {
			return LineOffset, fmt.Sprintf("could not parse FM offset: %q", line)
		}
		val, err := strconv.Atoi(strings.TrimSpace(field[0]))
		if err != nil {
			return LineOffset, fmt.Sprintf("could not parse FM offset: %q", line)
		}
		cfg.FMOffsetKHz = val
		cfg.FMOffsetKnown = true
		return LineOffset, ""

	case strings.HasPrefix(line, "a:"):
		r, err := parseRange(line[2:])
		if err != nil {
			return LineAMRange, fmt.Sprintf("could not parse AM range: %q", line)
		}
		cfg.AMRange = r
		return LineAMRange, ""

	case strings.HasPrefix(line, "f:"):
		r, err := parseRange(line[2:])
		if err != nil {
			return LineFMRange, fmt.Sprintf("could not parse FM range: %q", line)
		}
		cfg.FMRange = r
		return LineFMRange, ""
	}

	parts := strings.Split(line, ",")
	if len(parts) != 6 {
		return LineUnknown, ""
	}

	ch, err := parseChannelRow(parts)
	if err != nil {
		return LineChannel, fmt.Sprintf("could not parse channel data: %q", line)
	}
	cfg.Channels = append(cfg.Channels, ch)
	return LineChannel, ""
}

func parseRange(s string) (*Range, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("expected two fields, got %d", len(parts))
	}
	low, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, err
	}
	high, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, err
	}
	return &Range{Low: low, High: high}, nil
}

func parseChannelRow(parts []string) (Channel, error) {
	var ch Channel
	number, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return ch, err
	}
	freq, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return ch, err
	}
	bw, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return ch, err
	}
	ms, err := strconv.Atoi(strings.TrimSpace(parts[3]))
	if err != nil {
		return ch, err
	}

	ch = Channel{
		Number:         number,
		FreqKHz:        freq,
		BandwidthCode:  bw,
		MonoStereoCode: ms,
		PI:             parts[4],
		PS:             parts[5],
	}
	return ch, nil
}

// EncodeWrite renders the 'S' command that stores a single channel
func EncodeWrite(ch Channel) string {
	return fmt.Sprintf("S%d,%d,%d,%d,%s,%s",
		ch.Number, ch.FreqKHz, ch.BandwidthCode, ch.MonoStereoCode, ch.PI, ch.PS)
}
