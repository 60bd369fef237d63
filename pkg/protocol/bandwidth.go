package protocol

import "fmt"

// FMBandwidths maps FM bandwidth codes to IF filter widths. Code 0 means
// automatic selection and is shared with AM.
var FMBandwidths = map[int]string{
	0: "auto", 1: "56kHz", 2: "64kHz", 3: "72kHz", 4: "84kHz", 5: "97kHz",
	6: "114kHz", 7: "133kHz", 8: "151kHz", 9: "168kHz", 10: "184kHz",
	11: "200kHz", 12: "217kHz", 13: "236kHz", 14: "254kHz", 15: "287kHz",
	16: "311kHz",
}

// AMBandwidths maps AM bandwidth codes to IF filter widths
var AMBandwidths = map[int]string{
	1: "3kHz", 2: "4kHz", 3: "6kHz", 4: "8kHz",
}

// BandwidthLabel returns a display label for a bandwidth code in the
// given band. Code 0 is "auto" for either band.
func BandwidthLabel(band string, code int) string {
	if code == 0 {
		return "auto"
	}
	var label string
	var ok bool
	switch band {
	case BandAM:
		label, ok = AMBandwidths[code]
	case BandFM:
		label, ok = FMBandwidths[code]
	default:
		// No band context: try FM first since its table is larger
		if label, ok = FMBandwidths[code]; !ok {
			label, ok = AMBandwidths[code]
		}
	}
	if !ok {
		return fmt.Sprintf("code %d", code)
	}
	return label
}
