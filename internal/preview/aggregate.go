package preview

import (
	"strings"

	"github.com/GriffinCanCode/livecode/internal/domain/workspace"
)

// Sources holds the concatenated content of each executable kind.
type Sources struct {
	Markup string `json:"markup"`
	Style  string `json:"style"`
	Script string `json:"script"`
}

// Options tunes aggregation.
type Options struct {
	// Provenance prefixes each file with a "file: name" comment when a kind
	// has more than one file.
	Provenance bool
}

// Aggregate concatenates file contents per kind in collection order, joined
// by newlines. Non-executable kinds are skipped.
func Aggregate(files []workspace.File, opts Options) Sources {
	byKind := make(map[workspace.Kind][]workspace.File, len(workspace.ExecutableKinds))
	for _, f := range files {
		if f.Kind.Executable() {
			byKind[f.Kind] = append(byKind[f.Kind], f)
		}
	}

	return Sources{
		Markup: join(byKind[workspace.Markup], opts),
		Style:  join(byKind[workspace.Style], opts),
		Script: join(byKind[workspace.Script], opts),
	}
}

func join(files []workspace.File, opts Options) string {
	annotate := opts.Provenance && len(files) > 1
	parts := make([]string, 0, len(files))
	for _, f := range files {
		if annotate {
			parts = append(parts, provenance(f)+"\n"+f.Content)
			continue
		}
		parts = append(parts, f.Content)
	}
	return strings.Join(parts, "\n")
}

func provenance(f workspace.File) string {
	switch f.Kind {
	case workspace.Style:
		return "/* file: " + strings.ReplaceAll(f.Name, "*/", "* /") + " */"
	case workspace.Script:
		return "// file: " + strings.NewReplacer("\n", " ", "\r", " ").Replace(f.Name)
	default:
		return "<!-- file: " + strings.ReplaceAll(f.Name, "--", "- -") + " -->"
	}
}
