package radio

import (
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/tefradio/tefmem/pkg/protocol"
	"github.com/tefradio/tefmem/pkg/transport"
)

func newTestSession(t *testing.T, mock *transport.MockTransport) *Session {
	t.Helper()
	s := NewSession(Options{
		Device:         "/dev/mock0",
		ConnectTimeout: 50 * time.Millisecond,
		Dial: func(cfg transport.Config) (transport.LineTransport, error) {
			return mock, nil
		},
	})
	require.NoError(t, s.Connect())
	return s
}

func respondFullDump(mock *transport.MockTransport) {
	mock.Respond("s",
		"r:TEF6686",
		"v:v2.10",
		"m:3",
		"s:500",
		"o:0,1",
		"a:144,27000",
		"f:65000,108000",
		"1,87600,0,1,202F,Radio 2",
		"2,500,0,1,,",
		"3,98500,0,1,,",
	)
}

func TestReadConfiguration(t *testing.T) {
	t.Run("Full Dump", func(t *testing.T) {
		mock := transport.NewMockTransport()
		respondFullDump(mock)
		s := newTestSession(t, mock)

		cfg, warnings, err := s.ReadConfiguration()
		require.NoError(t, err)
		require.Empty(t, warnings)

		require.Equal(t, "TEF6686", cfg.ModelID)
		require.Equal(t, "v2.10", cfg.Version)
		require.Equal(t, 3, cfg.MemoryPositions)
		require.Equal(t, 500, cfg.SkipValue())
		require.Len(t, cfg.Channels, 3)
		require.Equal(t, "202F", cfg.Channels[0].PI)
		require.Equal(t, "Radio 2", cfg.Channels[0].PS)

		require.True(t, cfg.ChannelSkipped(2))
		require.False(t, cfg.ChannelSkipped(1))
		require.Same(t, cfg, s.Configuration())
	})

	t.Run("Partial Dump Is Usable With Warning", func(t *testing.T) {
		mock := transport.NewMockTransport()
		mock.Respond("s",
			"m:3",
			"s:500",
			"1,87600,0,1,,",
			"2,98500,0,1,,",
		)
		s := newTestSession(t, mock)

		cfg, warnings, err := s.ReadConfiguration()
		require.NoError(t, err)
		require.Len(t, cfg.Channels, 2)
		require.Len(t, warnings, 1)
		require.Contains(t, warnings[0], "2/3")
		require.True(t, s.IsConnected())
	})

	t.Run("No Response Is Hard Failure", func(t *testing.T) {
		mock := transport.NewMockTransport()
		s := newTestSession(t, mock)

		cfg, _, err := s.ReadConfiguration()
		require.ErrorIs(t, err, ErrNoResponse)
		require.Nil(t, cfg)
		require.Nil(t, s.Configuration())
		require.False(t, s.IsConnected())
	})

	t.Run("Malformed Channel Row Warns", func(t *testing.T) {
		mock := transport.NewMockTransport()
		mock.Respond("s",
			"m:2",
			"1,abc,0,1,,",
			"2,98500,0,1,,",
		)
		s := newTestSession(t, mock)

		cfg, warnings, err := s.ReadConfiguration()
		require.NoError(t, err)
		require.Len(t, cfg.Channels, 1)
		require.Len(t, warnings, 2) // bad row plus short channel count
		require.Contains(t, warnings[0], "channel data")
	})

	t.Run("Banner Noise Silent Early Warned Late", func(t *testing.T) {
		mock := transport.NewMockTransport()
		mock.Respond("s",
			"TEF radio booting...",
			"r:TEF6686",
			"v:v2.10",
			"m:3",
			"s:500",
			"a:144,27000",
			"f:65000,108000",
			"1,87600,0,1,,",
			"###garbage###",
			"2,500,0,1,,",
			"3,98500,0,1,,",
		)
		s := newTestSession(t, mock)

		cfg, warnings, err := s.ReadConfiguration()
		require.NoError(t, err)
		require.Len(t, cfg.Channels, 3)

		// The boot line inside the tolerance window is silent; the junk
		// line after it warns.
		require.Len(t, warnings, 1)
		require.Contains(t, warnings[0], "unexpected line")
		require.Contains(t, warnings[0], "garbage")
	})

	t.Run("Failed Session Rejects Re-Read", func(t *testing.T) {
		mock := transport.NewMockTransport()
		s := newTestSession(t, mock)

		_, _, err := s.ReadConfiguration()
		require.ErrorIs(t, err, ErrNoResponse)

		// The device coming back to life does not revive the session; a
		// fresh Connect is required first.
		mock.Respond("s", "m:1", "1,87600,0,1,,")
		_, _, err = s.ReadConfiguration()
		require.ErrorIs(t, err, ErrNotConnected)
		require.Nil(t, s.Configuration())
	})

	t.Run("Not Connected", func(t *testing.T) {
		s := NewSession(Options{})
		_, _, err := s.ReadConfiguration()
		require.ErrorIs(t, err, ErrNotConnected)
	})
}

func TestWriteChannel(t *testing.T) {
	readConfig := func(t *testing.T, mock *transport.MockTransport) *Session {
		t.Helper()
		respondFullDump(mock)
		s := newTestSession(t, mock)
		_, _, err := s.ReadConfiguration()
		require.NoError(t, err)
		return s
	}

	t.Run("Successful Write", func(t *testing.T) {
		mock := transport.NewMockTransport()
		s := readConfig(t, mock)
		mock.Respond("S2,106700,0,1,ABCD,Station", "S:128")

		ok, messages := s.WriteChannel(protocol.Channel{
			Number: 2, FreqKHz: 106700, MonoStereoCode: 1, PI: "abcd", PS: "Station",
		})
		require.True(t, ok)
		require.Equal(t, []string{protocol.StatusOKMessage}, messages)
		require.Equal(t, "S2,106700,0,1,ABCD,Station", mock.Sent[len(mock.Sent)-1])
	})

	t.Run("Device Rejection Reports All Bits", func(t *testing.T) {
		mock := transport.NewMockTransport()
		s := readConfig(t, mock)
		mock.Respond("S2,999999,0,1,,", "S:3")

		ok, messages := s.WriteChannel(protocol.Channel{Number: 2, FreqKHz: 999999, MonoStereoCode: 1})
		require.False(t, ok)
		require.Equal(t, []string{
			"Frequency out of range",
			"Memory channel out of range",
		}, messages)
		require.True(t, s.IsConnected())
	})

	t.Run("Validation Happens Before IO", func(t *testing.T) {
		mock := transport.NewMockTransport()
		s := readConfig(t, mock)
		sentBefore := len(mock.Sent)

		cases := []struct {
			name string
			ch   protocol.Channel
			want string
		}{
			{"Channel Zero", protocol.Channel{Number: 0, FreqKHz: 500}, "Invalid channel number"},
			{"Channel Past Memory", protocol.Channel{Number: 4, FreqKHz: 500}, "Invalid channel number"},
			{"Negative Frequency", protocol.Channel{Number: 2, FreqKHz: -1}, "Invalid frequency"},
			{"Channel One Skip Value", protocol.Channel{Number: 1, FreqKHz: 500}, "Channel 1 cannot be set to skip"},
			{"Channel One Zero", protocol.Channel{Number: 1, FreqKHz: 0}, "Channel 1 cannot be set to skip"},
			{"Negative Bandwidth", protocol.Channel{Number: 2, FreqKHz: 500, BandwidthCode: -1}, "Invalid bandwidth"},
			{"Bad Stereo Code", protocol.Channel{Number: 2, FreqKHz: 500, MonoStereoCode: 2}, "Invalid mono/stereo"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				ok, messages := s.WriteChannel(tc.ch)
				require.False(t, ok)
				require.Len(t, messages, 1)
				require.Contains(t, messages[0], tc.want)
			})
		}
		require.Len(t, mock.Sent, sentBefore, "rejected writes must not reach the wire")
	})

	t.Run("PI And PS Truncated With Warning", func(t *testing.T) {
		mock := transport.NewMockTransport()
		s := readConfig(t, mock)
		mock.Respond("S2,106700,0,1,ABCD,Eight Ch", "S:128")

		ok, messages := s.WriteChannel(protocol.Channel{
			Number: 2, FreqKHz: 106700, MonoStereoCode: 1,
			PI: "abcdef", PS: "Eight Chars Plus",
		})
		require.True(t, ok)
		require.Equal(t, []string{
			"Warning: PI code truncated.",
			"Warning: PS text truncated.",
			protocol.StatusOKMessage,
		}, messages)
	})

	t.Run("PI And PS Truncated By Character Not Byte", func(t *testing.T) {
		mock := transport.NewMockTransport()
		s := readConfig(t, mock)

		// Six characters of multibyte PS fit without truncation.
		mock.Respond("S2,106700,0,1,,Юность", "S:128")
		ok, messages := s.WriteChannel(protocol.Channel{
			Number: 2, FreqKHz: 106700, MonoStereoCode: 1, PS: "Юность",
		})
		require.True(t, ok)
		require.Equal(t, []string{protocol.StatusOKMessage}, messages)
		require.Equal(t, "S2,106700,0,1,,Юность", mock.Sent[len(mock.Sent)-1])

		// Nine characters are clipped to eight, never mid-rune.
		mock.Respond("S2,106700,0,1,,ЮностьFM", "S:128")
		ok, messages = s.WriteChannel(protocol.Channel{
			Number: 2, FreqKHz: 106700, MonoStereoCode: 1, PS: "ЮностьFM9",
		})
		require.True(t, ok)
		require.Equal(t, []string{
			"Warning: PS text truncated.",
			protocol.StatusOKMessage,
		}, messages)
		sent := mock.Sent[len(mock.Sent)-1]
		require.Equal(t, "S2,106700,0,1,,ЮностьFM", sent)
		require.True(t, utf8.ValidString(sent))
	})

	t.Run("Malformed Response", func(t *testing.T) {
		mock := transport.NewMockTransport()
		s := readConfig(t, mock)
		mock.Respond("S2,106700,0,1,,", "garbage")

		ok, messages := s.WriteChannel(protocol.Channel{Number: 2, FreqKHz: 106700, MonoStereoCode: 1})
		require.False(t, ok)
		require.Contains(t, messages[0], "unexpected response format")
		require.True(t, s.IsConnected())
	})

	t.Run("No Response Fails The Session", func(t *testing.T) {
		mock := transport.NewMockTransport()
		s := readConfig(t, mock)

		ok, messages := s.WriteChannel(protocol.Channel{Number: 2, FreqKHz: 106700, MonoStereoCode: 1})
		require.False(t, ok)
		require.Contains(t, messages[0], "No response")
		require.False(t, s.IsConnected())
		require.Nil(t, s.Configuration())
	})

	t.Run("Not Connected", func(t *testing.T) {
		s := NewSession(Options{})
		ok, messages := s.WriteChannel(protocol.Channel{Number: 2, FreqKHz: 500})
		require.False(t, ok)
		require.Equal(t, []string{"ERROR: Not connected."}, messages)
	})
}

func TestSkipChannel(t *testing.T) {
	t.Run("Channel One Rejected", func(t *testing.T) {
		s := NewSession(Options{})
		ok, messages := s.SkipChannel(1)
		require.False(t, ok)
		require.Contains(t, messages[0], "Channel 1 cannot be skipped")
	})

	t.Run("Uses Radio Skip Value", func(t *testing.T) {
		mock := transport.NewMockTransport()
		respondFullDump(mock)
		s := newTestSession(t, mock)
		_, _, err := s.ReadConfiguration()
		require.NoError(t, err)

		mock.Respond("S3,500,0,1,,", "S:128")
		ok, _ := s.SkipChannel(3)
		require.True(t, ok)
		require.Equal(t, "S3,500,0,1,,", mock.Sent[len(mock.Sent)-1])
	})

	t.Run("Falls Back To Zero Without Config", func(t *testing.T) {
		mock := transport.NewMockTransport()
		s := newTestSession(t, mock)

		mock.Respond("S3,0,0,1,,", "S:128")
		ok, _ := s.SkipChannel(3)
		require.True(t, ok)
		require.Equal(t, "S3,0,0,1,,", mock.Sent[len(mock.Sent)-1])
	})
}

func TestSkipAll(t *testing.T) {
	t.Run("Skips Unskipped Channels Only", func(t *testing.T) {
		mock := transport.NewMockTransport()
		respondFullDump(mock)
		s := newTestSession(t, mock)
		_, _, err := s.ReadConfiguration()
		require.NoError(t, err)

		// Channel 2 is already at the skip value; only channel 3 needs a write.
		mock.Respond("S3,500,0,1,,", "S:128")

		result, err := s.SkipAll()
		require.NoError(t, err)
		require.Equal(t, 1, result.Succeeded)
		require.Equal(t, 1, result.AlreadySkipped)
		require.Equal(t, 0, result.Failed)
		require.True(t, result.Attempted)
	})

	t.Run("Requires Configuration", func(t *testing.T) {
		mock := transport.NewMockTransport()
		s := newTestSession(t, mock)
		_, err := s.SkipAll()
		require.Error(t, err)
	})
}

func TestExecuteWriteList(t *testing.T) {
	t.Run("Writes In Channel Order", func(t *testing.T) {
		mock := transport.NewMockTransport()
		respondFullDump(mock)
		s := newTestSession(t, mock)
		_, _, err := s.ReadConfiguration()
		require.NoError(t, err)

		mock.Respond("S2,106700,0,1,,", "S:128")
		mock.Respond("S3,98500,0,1,,", "S:128")

		result, err := s.ExecuteWriteList([]protocol.Channel{
			{Number: 3, FreqKHz: 98500, MonoStereoCode: 1},
			{Number: 2, FreqKHz: 106700, MonoStereoCode: 1},
		})
		require.NoError(t, err)
		require.Equal(t, 2, result.Succeeded)
		require.Equal(t, 0, result.Failed)

		n := len(mock.Sent)
		require.Equal(t, "S2,106700,0,1,,", mock.Sent[n-2])
		require.Equal(t, "S3,98500,0,1,,", mock.Sent[n-1])
	})

	t.Run("Empty Plan", func(t *testing.T) {
		mock := transport.NewMockTransport()
		s := newTestSession(t, mock)
		result, err := s.ExecuteWriteList(nil)
		require.NoError(t, err)
		require.False(t, result.Attempted)
	})

	t.Run("Failures Counted", func(t *testing.T) {
		mock := transport.NewMockTransport()
		respondFullDump(mock)
		s := newTestSession(t, mock)
		_, _, err := s.ReadConfiguration()
		require.NoError(t, err)

		mock.Respond("S2,106700,0,1,,", "S:1")
		mock.Respond("S3,98500,0,1,,", "S:128")

		result, err := s.ExecuteWriteList([]protocol.Channel{
			{Number: 2, FreqKHz: 106700, MonoStereoCode: 1},
			{Number: 3, FreqKHz: 98500, MonoStereoCode: 1},
		})
		require.NoError(t, err)
		require.Equal(t, 1, result.Succeeded)
		require.Equal(t, 1, result.Failed)
	})
}

func TestConnectLifecycle(t *testing.T) {
	t.Run("Connect And Disconnect", func(t *testing.T) {
		mock := transport.NewMockTransport()
		s := newTestSession(t, mock)
		require.True(t, s.IsConnected())
		require.Equal(t, "/dev/mock0", s.Device())

		require.NoError(t, s.Disconnect())
		require.False(t, s.IsConnected())
		require.Equal(t, "", s.Device())
		require.False(t, mock.Connected())
	})

	t.Run("Empty Device Rejected", func(t *testing.T) {
		s := NewSession(Options{})
		require.Error(t, s.Connect())
	})

	t.Run("Reconnect After Failure", func(t *testing.T) {
		mock := transport.NewMockTransport()
		s := newTestSession(t, mock)
		_, _, err := s.ReadConfiguration()
		require.ErrorIs(t, err, ErrNoResponse)
		require.False(t, s.IsConnected())

		// A fresh connect clears the failed state.
		mock2 := transport.NewMockTransport()
		s.opts.Dial = func(cfg transport.Config) (transport.LineTransport, error) {
			return mock2, nil
		}
		require.NoError(t, s.Connect())
		require.True(t, s.IsConnected())
	})
}
