// Package workspace holds the editable file collection of a playground.
//
// A Workspace is an ordered list of files plus the id of the file being
// edited. Order matters: the preview concatenates files of the same kind in
// collection order. At least one markup, style and script file always
// exists; operations that would break this are rejected without mutating
// anything. A Workspace is not safe for concurrent use.
package workspace

import (
	"fmt"
	"html"
	"slices"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/GriffinCanCode/livecode/internal/shared/id"
)

// File is one source file of the workspace.
type File struct {
	ID      id.FileID `json:"id"`
	Name    string    `json:"name"`
	Kind    Kind      `json:"kind"`
	Content string    `json:"content"`
}

// Workspace is an ordered file collection with an active selection.
type Workspace struct {
	files  []File
	active id.FileID
}

var namePolicy = bluemonday.StrictPolicy()

// New builds a workspace from previously saved files. Missing executable
// kinds are filled with empty files and an unknown active id selects the
// first file.
func New(files []File, active id.FileID) (*Workspace, error) {
	w := &Workspace{}
	if err := w.Replace(files, active); err != nil {
		return nil, err
	}
	return w, nil
}

// NewDefault returns a workspace holding the starter project.
func NewDefault() *Workspace {
	w := &Workspace{}
	w.Reset()
	return w
}

// Files returns a copy of the collection in order.
func (w *Workspace) Files() []File {
	return slices.Clone(w.files)
}

// Get looks up a file by id.
func (w *Workspace) Get(fileID id.FileID) (File, bool) {
	i := w.index(fileID)
	if i < 0 {
		return File{}, false
	}
	return w.files[i], true
}

// Active returns the file being edited.
func (w *Workspace) Active() File {
	f, _ := w.Get(w.active)
	return f
}

func (w *Workspace) ActiveID() id.FileID {
	return w.active
}

// Count returns how many files of kind k exist.
func (w *Workspace) Count(k Kind) int {
	n := 0
	for _, f := range w.files {
		if f.Kind == k {
			n++
		}
	}
	return n
}

// Select makes fileID the active file.
func (w *Workspace) Select(fileID id.FileID) error {
	if w.index(fileID) < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, fileID)
	}
	w.active = fileID
	return nil
}

// Add appends an empty file of kind k with a generated name and selects it.
func (w *Workspace) Add(k Kind) (File, error) {
	if !k.Valid() {
		return File{}, fmt.Errorf("%w: %q", ErrUnknownKind, k)
	}
	n := w.Count(k) + 1
	name := defaultName(k, n)
	for w.hasName(name) {
		n++
		name = defaultName(k, n)
	}
	return w.Insert(name, k, "")
}

// Insert appends a file with the given name, kind and content and selects it.
func (w *Workspace) Insert(name string, k Kind, content string) (File, error) {
	if !k.Valid() {
		return File{}, fmt.Errorf("%w: %q", ErrUnknownKind, k)
	}
	clean, err := CleanName(name)
	if err != nil {
		return File{}, err
	}
	f := File{ID: id.NewFileID(), Name: clean, Kind: k, Content: content}
	w.files = append(w.files, f)
	w.active = f.ID
	return f, nil
}

// Update replaces the content of a file.
func (w *Workspace) Update(fileID id.FileID, content string) error {
	i := w.index(fileID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, fileID)
	}
	w.files[i].Content = content
	return nil
}

// Rename sets a file's display name. Names are trimmed and may repeat.
func (w *Workspace) Rename(fileID id.FileID, name string) error {
	i := w.index(fileID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, fileID)
	}
	clean, err := CleanName(name)
	if err != nil {
		return err
	}
	w.files[i].Name = clean
	return nil
}

// Delete removes a file unless it is the last one of an executable kind.
// Deleting the active file selects the first remaining file.
func (w *Workspace) Delete(fileID id.FileID) error {
	i := w.index(fileID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, fileID)
	}
	k := w.files[i].Kind
	if k.Executable() && w.Count(k) <= 1 {
		return fmt.Errorf("%w: %s", ErrLastOfKind, k)
	}

	w.files = slices.Delete(w.files, i, i+1)
	if w.active == fileID {
		w.active = w.files[0].ID
	}
	return nil
}

// Replace swaps the whole collection, as when a saved project is loaded.
// Files without an id get one; unknown kinds are rejected before any change.
func (w *Workspace) Replace(files []File, active id.FileID) error {
	next := make([]File, 0, len(files)+len(ExecutableKinds))
	for _, f := range files {
		if !f.Kind.Valid() {
			return fmt.Errorf("%w: %q in %s", ErrUnknownKind, f.Kind, f.Name)
		}
		if f.ID == "" {
			f.ID = id.NewFileID()
		}
		if strings.TrimSpace(f.Name) == "" {
			f.Name = defaultName(f.Kind, 1)
		}
		next = append(next, f)
	}

	for _, k := range ExecutableKinds {
		if !slices.ContainsFunc(next, func(f File) bool { return f.Kind == k }) {
			next = append(next, File{ID: id.NewFileID(), Name: defaultName(k, 1), Kind: k})
		}
	}

	w.files = next
	w.active = active
	if w.index(active) < 0 {
		w.active = next[0].ID
	}
	return nil
}

// Reset restores the starter project.
func (w *Workspace) Reset() {
	files := Defaults()
	w.files = files
	w.active = files[0].ID
}

// CleanName trims a name and strips any markup from it.
func CleanName(name string) (string, error) {
	clean := strings.TrimSpace(html.UnescapeString(namePolicy.Sanitize(name)))
	if clean == "" {
		return "", ErrEmptyName
	}
	return clean, nil
}

func (w *Workspace) index(fileID id.FileID) int {
	return slices.IndexFunc(w.files, func(f File) bool { return f.ID == fileID })
}

func (w *Workspace) hasName(name string) bool {
	return slices.ContainsFunc(w.files, func(f File) bool { return f.Name == name })
}
