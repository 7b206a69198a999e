package workspace

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Kind classifies a file by how the preview treats it.
type Kind string

const (
	Markup Kind = "markup"
	Style  Kind = "style"
	Script Kind = "script"
	// Python files are stored and editable but never aggregated or run.
	Python Kind = "python"
)

// ExecutableKinds lists the kinds that feed the preview, in document order.
var ExecutableKinds = []Kind{Markup, Style, Script}

var kindInfo = map[Kind]struct {
	base string
	ext  string
}{
	Markup: {"index", ".html"},
	Style:  {"style", ".css"},
	Script: {"script", ".js"},
	Python: {"main", ".py"},
}

var extensions = map[string]Kind{
	".html": Markup,
	".htm":  Markup,
	".css":  Style,
	".js":   Script,
	".mjs":  Script,
	".py":   Python,
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

func (k Kind) Valid() bool {
	_, ok := kindInfo[k]
	return ok
}

// Executable reports whether files of this kind reach the preview.
func (k Kind) Executable() bool {
	return k == Markup || k == Style || k == Script
}

// Ext returns the canonical file extension, including the dot.
func (k Kind) Ext() string {
	return kindInfo[k].ext
}

// KindForName classifies a file name by extension. Unknown extensions are markup.
func KindForName(name string) Kind {
	if k, ok := extensions[strings.ToLower(filepath.Ext(name))]; ok {
		return k
	}
	return Markup
}

// defaultName returns "<base><n><ext>", omitting n for the first file of a kind.
func defaultName(k Kind, n int) string {
	info := kindInfo[k]
	if n <= 1 {
		return info.base + info.ext
	}
	return fmt.Sprintf("%s%d%s", info.base, n, info.ext)
}
