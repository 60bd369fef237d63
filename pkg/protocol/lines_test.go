package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyDumpLine(t *testing.T) {
	t.Run("Header Lines", func(t *testing.T) {
		cfg := &Configuration{}

		kind, warn := ApplyDumpLine(cfg, "r:TEF6686_ESP32")
		require.Equal(t, LineModel, kind)
		require.Empty(t, warn)
		require.Equal(t, "TEF6686_ESP32", cfg.ModelID)

		kind, warn = ApplyDumpLine(cfg, "v:1.23")
		require.Equal(t, LineVersion, kind)
		require.Empty(t, warn)
		require.Equal(t, "1.23", cfg.Version)

		kind, warn = ApplyDumpLine(cfg, "m:30")
		require.Equal(t, LineMemory, kind)
		require.Empty(t, warn)
		require.Equal(t, 30, cfg.MemoryPositions)

		kind, warn = ApplyDumpLine(cfg, "s:500")
		require.Equal(t, LineSkip, kind)
		require.Empty(t, warn)
		require.True(t, cfg.SkipKnown)
		require.Equal(t, 500, cfg.SkipFrequency)

		kind, warn = ApplyDumpLine(cfg, "a:144,27000")
		require.Equal(t, LineAMRange, kind)
		require.Empty(t, warn)
		require.Equal(t, &Range{Low: 144, High: 27000}, cfg.AMRange)

		kind, warn = ApplyDumpLine(cfg, "f:64000,108000")
		require.Equal(t, LineFMRange, kind)
		require.Empty(t, warn)
		require.Equal(t, &Range{Low: 64000, High: 108000}, cfg.FMRange)
	})

	t.Run("Offset Comma Delimited", func(t *testing.T) {
		cfg := &Configuration{}
		kind, warn := ApplyDumpLine(cfg, "o:100,extra")
		require.Equal(t, LineOffset, kind)
		require.Empty(t, warn)
		require.True(t, cfg.FMOffsetKnown)
		require.Equal(t, 100, cfg.FMOffsetKHz)
	})

	t.Run("Offset Colon Delimited", func(t *testing.T) {
		cfg := &Configuration{}
		kind, warn := ApplyDumpLine(cfg, "o:100:extra")
		require.Equal(t, LineOffset, kind)
		require.Empty(t, warn)
		require.Equal(t, 100, cfg.FMOffsetKHz)
	})

	t.Run("Channel Row", func(t *testing.T) {
		cfg := &Configuration{}
		kind, warn := ApplyDumpLine(cfg, "1,87600,11,1,ABCD,Station1")
		require.Equal(t, LineChannel, kind)
		require.Empty(t, warn)
		require.Len(t, cfg.Channels, 1)
		require.Equal(t, Channel{
			Number:         1,
			FreqKHz:        87600,
			BandwidthCode:  11,
			MonoStereoCode: 1,
			PI:             "ABCD",
			PS:             "Station1",
		}, cfg.Channels[0])
	})

	t.Run("Channel Row Empty PI PS", func(t *testing.T) {
		cfg := &Configuration{}
		kind, warn := ApplyDumpLine(cfg, "2,500,0,1,,")
		require.Equal(t, LineChannel, kind)
		require.Empty(t, warn)
		require.Empty(t, cfg.Channels[0].PI)
		require.Empty(t, cfg.Channels[0].PS)
	})

	t.Run("Malformed Header Warns", func(t *testing.T) {
		cfg := &Configuration{}
		kind, warn := ApplyDumpLine(cfg, "m:lots")
		require.Equal(t, LineMemory, kind)
		require.Contains(t, warn, "memory positions")
		require.Zero(t, cfg.MemoryPositions)
	})

	t.Run("Malformed Channel Row Warns", func(t *testing.T) {
		cfg := &Configuration{}
		kind, warn := ApplyDumpLine(cfg, "1,not-a-freq,0,1,,")
		require.Equal(t, LineChannel, kind)
		require.Contains(t, warn, "channel data")
		require.Empty(t, cfg.Channels)
	})

	t.Run("Unknown Line Shape", func(t *testing.T) {
		cfg := &Configuration{}
		kind, warn := ApplyDumpLine(cfg, "booting TEF radio...")
		require.Equal(t, LineUnknown, kind)
		require.Empty(t, warn)
	})
}

func TestEncodeWrite(t *testing.T) {
	cmd := EncodeWrite(Channel{
		Number:         12,
		FreqKHz:        87600,
		BandwidthCode:  11,
		MonoStereoCode: 1,
		PI:             "ABCD",
		PS:             "Station1",
	})
	require.Equal(t, "S12,87600,11,1,ABCD,Station1", cmd)

	cmd = EncodeWrite(Channel{Number: 2, FreqKHz: 500, MonoStereoCode: 1})
	require.Equal(t, "S2,500,0,1,,", cmd)
}
