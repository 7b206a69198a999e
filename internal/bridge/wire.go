package bridge

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/livecode/internal/console"
)

// Channel is the type discriminator of console wire messages.
const Channel = "console"

// LogEvent is the wire form of a forwarded console call.
type LogEvent struct {
	Type  string            `json:"type"`
	Level string            `json:"level"`
	Args  []json.RawMessage `json:"args"`
}

// Decode parses and validates a wire message. Anything that is not a
// console event with a known level and an argument list is rejected.
func Decode(data []byte) (LogEvent, bool) {
	var ev LogEvent
	if err := sonic.Unmarshal(data, &ev); err != nil {
		return LogEvent{}, false
	}
	if ev.Type != Channel || ev.Args == nil {
		return LogEvent{}, false
	}
	if _, ok := console.ParseLevel(ev.Level); !ok {
		return LogEvent{}, false
	}
	return ev, true
}

// Flatten renders arguments as one display line: structured values are
// pretty printed with two-space indentation, strings appear unquoted and
// other primitives verbatim, all joined by single spaces.
func Flatten(args []json.RawMessage) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = Stringify(arg)
	}
	return strings.Join(parts, " ")
}

// Stringify renders one argument. Values that are not valid JSON fall back
// to their raw text.
func Stringify(arg json.RawMessage) string {
	raw := bytes.TrimSpace(arg)
	if len(raw) == 0 {
		return ""
	}

	switch raw[0] {
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			return string(raw)
		}
		return buf.String()
	case '"':
		var s string
		if err := sonic.Unmarshal(raw, &s); err != nil {
			return string(raw)
		}
		return s
	default:
		return string(raw)
	}
}
