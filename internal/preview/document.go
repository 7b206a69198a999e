package preview

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
)

// SynthOptions controls the document shell.
type SynthOptions struct {
	// Guard wraps the user script so top-level synchronous errors are
	// reported through console.error instead of the global error handler.
	Guard bool
}

// Document is a synthesized preview document.
type Document struct {
	HTML        string `json:"html"`
	Fingerprint string `json:"fingerprint"`
}

const (
	guardOpen  = "try {\n"
	guardClose = "\n} catch (error) {\n  console.error(error && error.message ? error.message : String(error));\n}"
)

// Synthesize builds the executable document. The same sources and options
// always produce the same bytes.
func Synthesize(src Sources, opts SynthOptions) Document {
	script := src.Script
	if opts.Guard {
		script = guardOpen + script + guardClose
	}

	var b strings.Builder
	b.Grow(len(src.Markup) + len(src.Style) + len(script) + len(Instrumentation) + 512)

	b.WriteString("<!DOCTYPE html>\n")
	b.WriteString("<html lang=\"en\">\n")
	b.WriteString("<head>\n")
	b.WriteString("<meta charset=\"UTF-8\">\n")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	b.WriteString("<style>\n")
	b.WriteString(src.Style)
	b.WriteString("\n</style>\n")
	b.WriteString("<script>\n")
	b.WriteString(Instrumentation)
	b.WriteString("\n</script>\n")
	b.WriteString("</head>\n")
	b.WriteString("<body>\n")
	b.WriteString(src.Markup)
	b.WriteString("\n<script>\n")
	b.WriteString(script)
	b.WriteString("\n</script>\n")
	b.WriteString("</body>\n")
	b.WriteString("</html>\n")

	return Document{HTML: b.String(), Fingerprint: Fingerprint(src, opts)}
}

// Fingerprint identifies the inputs of a synthesis. Each field is length
// prefixed so moving text between kinds changes the result.
func Fingerprint(src Sources, opts SynthOptions) string {
	h := sha256.New()
	for _, part := range []string{src.Markup, src.Style, src.Script} {
		h.Write([]byte(strconv.Itoa(len(part))))
		h.Write([]byte{':'})
		h.Write([]byte(part))
	}
	if opts.Guard {
		h.Write([]byte{'g'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Synthesizer memoizes the most recent document.
type Synthesizer struct {
	opts SynthOptions

	mu   sync.Mutex
	last *Document
}

func NewSynthesizer(opts SynthOptions) *Synthesizer {
	return &Synthesizer{opts: opts}
}

// Build returns the document for src. changed is false when src matches the
// previous call, in which case the cached document is returned.
func (s *Synthesizer) Build(src Sources) (Document, bool) {
	fp := Fingerprint(src, s.opts)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last != nil && s.last.Fingerprint == fp {
		return *s.last, false
	}
	doc := Synthesize(src, s.opts)
	s.last = &doc
	return doc, true
}

// Last returns the most recently built document, if any.
func (s *Synthesizer) Last() (Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last == nil {
		return Document{}, false
	}
	return *s.last, true
}
