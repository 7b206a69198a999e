package preview

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesizeStructure(t *testing.T) {
	doc := Synthesize(Sources{
		Markup: "<button id=\"btn\">Go</button>",
		Style:  "body{color:red}",
		Script: "console.log('hi')",
	}, SynthOptions{})

	html := doc.HTML
	require.True(t, strings.HasPrefix(html, "<!DOCTYPE html>\n<html lang=\"en\">"))

	order := []string{
		`<meta charset="UTF-8">`,
		`<meta name="viewport" content="width=device-width, initial-scale=1.0">`,
		"<style>\nbody{color:red}\n</style>",
		Instrumentation,
		"</head>",
		"<body>\n<button id=\"btn\">Go</button>",
		"<script>\nconsole.log('hi')\n</script>",
		"</body>",
	}
	last := -1
	for _, part := range order {
		i := strings.Index(html, part)
		require.GreaterOrEqual(t, i, 0, "missing %q", part)
		assert.Greater(t, i, last, "out of order: %q", part)
		last = i
	}
	assert.NotContains(t, html, "catch (error)")
}

func TestSynthesizeGuard(t *testing.T) {
	doc := Synthesize(Sources{Script: "boom()"}, SynthOptions{Guard: true})

	assert.Contains(t, doc.HTML, "try {\nboom()\n} catch (error) {\n  console.error(error && error.message ? error.message : String(error));\n}")
}

func TestSynthesizeDeterministic(t *testing.T) {
	src := Sources{Markup: "<p>x</p>", Style: "p{}", Script: "1"}

	a := Synthesize(src, SynthOptions{Guard: true})
	b := Synthesize(src, SynthOptions{Guard: true})
	assert.Equal(t, a, b)

	for _, changed := range []Sources{
		{Markup: "<p>y</p>", Style: "p{}", Script: "1"},
		{Markup: "<p>x</p>", Style: "q{}", Script: "1"},
		{Markup: "<p>x</p>", Style: "p{}", Script: "2"},
	} {
		c := Synthesize(changed, SynthOptions{Guard: true})
		assert.NotEqual(t, a.HTML, c.HTML)
		assert.NotEqual(t, a.Fingerprint, c.Fingerprint)
	}
}

func TestFingerprintSeparatesFields(t *testing.T) {
	a := Fingerprint(Sources{Markup: "ab", Style: ""}, SynthOptions{})
	b := Fingerprint(Sources{Markup: "a", Style: "b"}, SynthOptions{})
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, Fingerprint(Sources{Markup: "ab"}, SynthOptions{Guard: true}))
}

func TestSynthesizerMemoizes(t *testing.T) {
	s := NewSynthesizer(SynthOptions{Guard: true})
	_, ok := s.Last()
	assert.False(t, ok)

	src := Sources{Script: "console.log(1)"}
	first, changed := s.Build(src)
	assert.True(t, changed)

	again, changed := s.Build(src)
	assert.False(t, changed)
	assert.Equal(t, first, again)

	next, changed := s.Build(Sources{Script: "console.log(2)"})
	assert.True(t, changed)
	assert.NotEqual(t, first.Fingerprint, next.Fingerprint)

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, next, last)
}

func TestExport(t *testing.T) {
	out := string(Export(Sources{Markup: "<h1>Hi</h1>", Style: "h1{}", Script: "go()"}))

	assert.Contains(t, out, "<title>My Project</title>")
	assert.Contains(t, out, "  <style>\nh1{}\n  </style>")
	assert.Contains(t, out, "<body>\n<h1>Hi</h1>\n  <script>\ngo()\n  </script>\n</body>")
	assert.NotContains(t, out, "postMessage")
	assert.NotContains(t, out, "try {")
	assert.Equal(t, "project.html", ExportFilename)
}
