package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// StatusOK is the success bit in an 'S' command reply
const StatusOK = 1 << 7

// statusConditions maps bits 0-6 of the reply code to their documented
// failure conditions.
var statusConditions = [7]string{
	"Frequency out of range",
	"Memory channel out of range",
	"Bandwidth out of range",
	"Mono/auto stereo out of range",
	"Memory channel 1 can't be set to skip",
	"Incorrect PI code",
	"Reserved (X)",
}

// StatusOKMessage is reported when the success bit is set
const StatusOKMessage = "All ok, channel stored"

// InterpretStatus decodes the bitmask reply of an 'S' command. Every set
// failure bit is reported, not just the first, so callers see all
// violations at once.
func InterpretStatus(code int) (success bool, messages []string) {
	success = code&StatusOK != 0
	if success {
		messages = append(messages, StatusOKMessage)
	}

	for bit := 0; bit < len(statusConditions); bit++ {
		if code&(1<<bit) != 0 {
			messages = append(messages, statusConditions[bit])
		}
	}

	if len(messages) == 0 {
		if code == 0 {
			messages = append(messages, "No status bits set (code 0)")
		} else {
			messages = append(messages, fmt.Sprintf("Unknown response code: %d (binary %08b)", code, code))
		}
	}

	return success, messages
}

// ParseStatusLine extracts the numeric code from an "S:<code>" reply line
func ParseStatusLine(line string) (int, error) {
	if !strings.HasPrefix(line, "S:") {
		return 0, fmt.Errorf("unexpected response format: %q", line)
	}
	code, err := strconv.Atoi(strings.TrimSpace(line[2:]))
	if err != nil {
		return 0, fmt.Errorf("could not parse return code: %q", line)
	}
	return code, nil
}
