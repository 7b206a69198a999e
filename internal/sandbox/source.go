package sandbox

import (
	"strings"
	"unicode/utf8"

	"github.com/dop251/goja/ast"
	"golang.org/x/net/html"
)

// script is one classic script block found in a document.
type script struct {
	Body   string
	Src    string // external source, never fetched
	Line   int
	Column int
}

// padded returns the body shifted so positions reported by the compiler
// match positions in the containing document.
func (s script) padded() string {
	if s.Line <= 1 && s.Column <= 1 {
		return s.Body
	}
	var b strings.Builder
	b.Grow(s.Line + s.Column + len(s.Body))
	b.WriteString(strings.Repeat("\n", max(s.Line-1, 0)))
	b.WriteString(strings.Repeat(" ", max(s.Column-1, 0)))
	b.WriteString(s.Body)
	return b.String()
}

// hoistTryFunctions publishes plain function declarations made directly
// inside a script wide try block on the global object, the way browsers
// treat sloppy block functions. The assignments share the line of the
// opening brace so reported positions do not move.
func hoistTryFunctions(src string, prg *ast.Program) (string, bool) {
	if len(prg.Body) != 1 {
		return "", false
	}
	try, ok := prg.Body[0].(*ast.TryStatement)
	if !ok {
		return "", false
	}
	var b strings.Builder
	for _, st := range try.Body.List {
		decl, ok := st.(*ast.FunctionDeclaration)
		if !ok || decl.Function.Name == nil || decl.Function.Async || decl.Function.Generator {
			continue
		}
		name := string(decl.Function.Name.Name)
		b.WriteString(" globalThis." + name + " = " + name + ";")
	}
	if b.Len() == 0 {
		return "", false
	}
	// Idx is one past the byte offset, so this is just after the brace.
	at := int(try.Body.LeftBrace)
	return src[:at] + b.String() + src[at:], true
}

var runnableTypes = map[string]bool{
	"":                       true,
	"text/javascript":        true,
	"application/javascript": true,
	"text/ecmascript":        true,
	"application/ecmascript": true,
	"module":                 true,
}

// extractScripts tokenizes doc and returns its scripts in document order.
func extractScripts(doc string) []script {
	z := html.NewTokenizer(strings.NewReader(doc))

	var (
		scripts []script
		offset  int
		open    *script
	)
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw := len(z.Raw())

		switch tt {
		case html.StartTagToken:
			open = nil
			name, hasAttr := z.TagName()
			if string(name) != "script" {
				break
			}
			s := script{}
			runnable := true
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				switch string(key) {
				case "type":
					runnable = runnableTypes[strings.ToLower(strings.TrimSpace(string(val)))]
				case "src":
					s.Src = string(val)
				}
			}
			if runnable {
				s.Line, s.Column = position(doc, offset+raw)
				open = &s
			}
		case html.TextToken:
			if open != nil {
				open.Body = string(z.Raw())
				open.Line, open.Column = position(doc, offset)
			}
		case html.EndTagToken:
			if open != nil {
				if name, _ := z.TagName(); string(name) == "script" {
					scripts = append(scripts, *open)
					open = nil
				}
			}
		}
		offset += raw
	}
	return scripts
}

// position converts a byte offset into a 1-based line and column.
func position(doc string, offset int) (line, column int) {
	offset = min(offset, len(doc))
	head := doc[:offset]
	line = strings.Count(head, "\n") + 1
	lineStart := strings.LastIndexByte(head, '\n') + 1
	column = utf8.RuneCountInString(head[lineStart:]) + 1
	return line, column
}
