package workspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportClassifiesByExtension(t *testing.T) {
	tests := []struct {
		name    string
		content string
		kind    Kind
	}{
		{"style.css", "body{color:red}", Style},
		{"app.js", "console.log('hi')", Script},
		{"page.html", "<p>hi</p>", Markup},
		{"script.py", "print('hi')", Python},
		{"README", "plain words", Markup},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewDefault()
			f, err := w.Import(tt.name, []byte(tt.content))
			require.NoError(t, err)

			assert.Equal(t, tt.kind, f.Kind)
			assert.Equal(t, tt.name, f.Name)
			assert.Equal(t, tt.content, f.Content)
			assert.Equal(t, f.ID, w.ActiveID())
			assert.Len(t, w.Files(), 4)
		})
	}
}

func TestImportStripsDirectories(t *testing.T) {
	w := NewDefault()
	f, err := w.Import("assets/css/site.css", []byte("a{}"))
	require.NoError(t, err)
	assert.Equal(t, "site.css", f.Name)
}

func TestImportRejectsBinary(t *testing.T) {
	w := NewDefault()
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01")

	_, err := w.Import("logo.js", png)
	assert.ErrorIs(t, err, ErrBinaryContent)
	assert.Len(t, w.Files(), 3)
}

func TestDecodeTextUTF16(t *testing.T) {
	// "hi" in UTF-16LE with byte order mark
	data := []byte{0xFF, 0xFE, 'h', 0x00, 'i', 0x00}

	got, err := DecodeText(data)
	require.NoError(t, err)
	assert.Contains(t, got, "hi")
}

func TestDecodeTextPassesUTF8(t *testing.T) {
	got, err := DecodeText([]byte("console.log('✅')"))
	require.NoError(t, err)
	assert.Equal(t, "console.log('✅')", got)

	got, err = DecodeText(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
