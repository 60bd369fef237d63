// Package protocol implements the memory-channel protocol spoken by TEF
// ESP32 based radios: the multi-line configuration dump, the single-channel
// write command and its bitmask status reply, and the data model both sides
// share.
package protocol

import "sort"

// Channel represents one memory slot on the radio
type Channel struct {
	Number         int    `json:"channel"`
	FreqKHz        int    `json:"freq_khz"`
	BandwidthCode  int    `json:"bandwidth_code"`
	MonoStereoCode int    `json:"mono_stereo_code"`
	PI             string `json:"pi,omitempty"` // up to 4 chars, uppercase
	PS             string `json:"ps,omitempty"` // up to 8 chars, case-sensitive
}

// Range represents an inclusive frequency range in kHz
type Range struct {
	Low  int `json:"low"`
	High int `json:"high"`
}

// Contains reports whether freq lies inside the range
func (r *Range) Contains(freq int) bool {
	return r != nil && freq >= r.Low && freq <= r.High
}

// Configuration is a snapshot of the radio state produced by the 's'
// command. It is built fresh on every successful read and discarded on
// read failure or disconnect; it is never partially valid.
type Configuration struct {
	ModelID         string    `json:"model_id,omitempty"`
	Version         string    `json:"version,omitempty"`
	MemoryPositions int       `json:"memory_positions"` // 0 = never reported
	SkipFrequency   int       `json:"skip_frequency"`
	SkipKnown       bool      `json:"skip_known"`
	FMOffsetKHz     int       `json:"fm_offset_khz"`
	FMOffsetKnown   bool      `json:"fm_offset_known"`
	AMRange         *Range    `json:"am_range,omitempty"`
	FMRange         *Range    `json:"fm_range,omitempty"`
	Channels        []Channel `json:"channels"` // arrival order
}

// SkipValue returns the frequency value that marks a slot as skipped.
// Radios that never report one use 0.
func (c *Configuration) SkipValue() int {
	if c != nil && c.SkipKnown {
		return c.SkipFrequency
	}
	return 0
}

// IsSkipFrequency reports whether freq denotes an unused slot: either the
// literal 0 or the radio's configured skip value.
func (c *Configuration) IsSkipFrequency(freq int) bool {
	return freq == 0 || freq == c.SkipValue()
}

// Channel returns the record for the given channel number, or nil
func (c *Configuration) Channel(number int) *Channel {
	if c == nil {
		return nil
	}
	for i := range c.Channels {
		if c.Channels[i].Number == number {
			return &c.Channels[i]
		}
	}
	return nil
}

// IsSkipped reports whether a channel record is in the skipped state.
// This is the single place skip state is derived; display, CSV export,
// write validation and import diffing all defer to it.
func (c *Configuration) IsSkipped(ch *Channel) bool {
	if c == nil || ch == nil {
		return false
	}
	return ch.FreqKHz == c.SkipValue()
}

// ChannelSkipped reports whether the channel with the given number is
// skipped. Unknown channels are not skipped.
func (c *Configuration) ChannelSkipped(number int) bool {
	return c.IsSkipped(c.Channel(number))
}

// SortedChannels returns a copy of the channel list ordered by channel
// number. The wire order is arrival order; display and export order is
// numeric.
func (c *Configuration) SortedChannels() []Channel {
	if c == nil {
		return nil
	}
	sorted := make([]Channel, len(c.Channels))
	copy(sorted, c.Channels)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Number < sorted[j].Number
	})
	return sorted
}

// Band names returned by BandOf
const (
	BandAM      = "AM"
	BandFM      = "FM"
	BandUnknown = "Unknown"
)

// BandOf classifies a frequency against the configured AM/FM ranges.
// The skip frequency and non-positive values belong to no band.
func (c *Configuration) BandOf(freqKHz int) string {
	if c == nil || freqKHz <= 0 {
		return BandUnknown
	}
	if c.SkipKnown && freqKHz == c.SkipFrequency {
		return BandUnknown
	}
	if c.AMRange.Contains(freqKHz) {
		return BandAM
	}
	if c.FMRange.Contains(freqKHz) {
		return BandFM
	}
	return BandUnknown
}
