package bridge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		data string
		ok   bool
	}{
		{"log", `{"type":"console","level":"log","args":["a"]}`, true},
		{"empty args", `{"type":"console","level":"info","args":[]}`, true},
		{"warn", `{"type":"console","level":"warn","args":[1,{"a":1}]}`, true},
		{"other type", `{"type":"react-devtools","level":"log","args":[]}`, false},
		{"bad level", `{"type":"console","level":"debug","args":[]}`, false},
		{"upper level", `{"type":"console","level":"LOG","args":[]}`, false},
		{"missing args", `{"type":"console","level":"log"}`, false},
		{"args not list", `{"type":"console","level":"log","args":"a"}`, false},
		{"type not string", `{"type":1,"level":"log","args":[]}`, false},
		{"not json", `hello`, false},
		{"array", `[1,2]`, false},
		{"empty", ``, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Decode([]byte(tt.data))
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func raw(values ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(values))
	for i, v := range values {
		out[i] = json.RawMessage(v)
	}
	return out
}

func TestFlatten(t *testing.T) {
	tests := []struct {
		name string
		args []json.RawMessage
		want string
	}{
		{"strings unquoted", raw(`"hello"`, `"world"`), "hello world"},
		{"primitives", raw(`1`, `true`, `null`, `2.5`), "1 true null 2.5"},
		{"escapes", raw(`"line\nbreak \"q\""`), "line\nbreak \"q\""},
		{"object pretty", raw(`{"b":1,"a":[1,2]}`), "{\n  \"b\": 1,\n  \"a\": [\n    1,\n    2\n  ]\n}"},
		{"empty object", raw(`{}`), "{}"},
		{"label and object", raw(`"user:"`, `{"name":"ada"}`), "user: {\n  \"name\": \"ada\"\n}"},
		{"invalid falls back", raw(`{oops`), "{oops"},
		{"no args", nil, ""},
		{"circular marker", raw(`{"self":"[Circular]"}`), "{\n  \"self\": \"[Circular]\"\n}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Flatten(tt.args))
		})
	}
}

func TestDecodeThenFlatten(t *testing.T) {
	ev, ok := Decode([]byte(`{"type":"console","level":"error","args":["Unhandled Promise Rejection: nope"]}`))
	require.True(t, ok)
	assert.Equal(t, "error", ev.Level)
	assert.Equal(t, "Unhandled Promise Rejection: nope", Flatten(ev.Args))
}
