package sandbox

import (
	"testing"

	"github.com/dop251/goja/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractScripts(t *testing.T) {
	doc := "<html>\n" +
		"<head><script>a()</script></head>\n" +
		"<body>\n" +
		"  <script type=\"text/template\">x</script>\n" +
		"  <script src=\"y.js\"></script>\n" +
		"<script>\nb()\n</script>\n" +
		"<script type=\"module\">é; c()</script></body></html>"

	scripts := extractScripts(doc)
	require.Len(t, scripts, 4)

	assert.Equal(t, script{Body: "a()", Line: 2, Column: 15}, scripts[0])
	assert.Equal(t, "y.js", scripts[1].Src)
	assert.Empty(t, scripts[1].Body)
	assert.Equal(t, script{Body: "\nb()\n", Line: 6, Column: 9}, scripts[2])
	assert.Equal(t, 9, scripts[3].Line)
	assert.Equal(t, 23, scripts[3].Column)
}

func TestScriptPadding(t *testing.T) {
	s := script{Body: "x", Line: 3, Column: 4}
	assert.Equal(t, "\n\n   x", s.padded())

	s = script{Body: "x", Line: 1, Column: 1}
	assert.Equal(t, "x", s.padded())
}

func TestPosition(t *testing.T) {
	doc := "ab\nçd\nef"

	line, col := position(doc, 0)
	assert.Equal(t, []int{1, 1}, []int{line, col})

	line, col = position(doc, len("ab\nç"))
	assert.Equal(t, []int{2, 2}, []int{line, col})

	line, col = position(doc, len(doc)+10)
	assert.Equal(t, []int{3, 3}, []int{line, col})
}

func TestHoistTryFunctions(t *testing.T) {
	hoist := func(src string) (string, bool) {
		t.Helper()
		prg, err := parser.ParseFile(nil, "", src, 0)
		require.NoError(t, err)
		return hoistTryFunctions(src, prg)
	}

	got, ok := hoist("\n  try {\nfunction a() {}\nfunction* g() {}\nif (x) { function nested() {} }\n} catch (e) {}")
	require.True(t, ok)
	assert.Equal(t, "\n  try { globalThis.a = a;\nfunction a() {}\nfunction* g() {}\nif (x) { function nested() {} }\n} catch (e) {}", got)

	_, ok = hoist("try { let x = 1; } catch (e) {}")
	assert.False(t, ok)

	_, ok = hoist("function a() {}\ntry { function b() {} } catch (e) {}")
	assert.False(t, ok)
}
