package workspace

import (
	"fmt"
	"path/filepath"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// Import adds an uploaded file, classified by its extension, and selects it.
// Content must be text; non-UTF-8 encodings are detected and decoded.
func (w *Workspace) Import(name string, data []byte) (File, error) {
	text, err := DecodeText(data)
	if err != nil {
		return File{}, fmt.Errorf("import %s: %w", name, err)
	}
	return w.Insert(filepath.Base(name), KindForName(name), text)
}

// DecodeText validates that data is text and returns it as UTF-8.
func DecodeText(data []byte) (string, error) {
	if !isText(mimetype.Detect(data)) {
		return "", ErrBinaryContent
	}
	if utf8.Valid(data) {
		return string(data), nil
	}

	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil {
		return "", fmt.Errorf("detect charset: %w", err)
	}
	enc, _ := charset.Lookup(result.Charset)
	if enc == nil {
		return "", fmt.Errorf("%w: unsupported charset %s", ErrBinaryContent, result.Charset)
	}
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", result.Charset, err)
	}
	return string(decoded), nil
}

func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
