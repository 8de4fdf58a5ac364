package workflow

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
)

//go:embed templates/*.json templates/*.yaml
var templatesFS embed.FS

// EmbeddedFS returns the templates and patch table compiled into the binary.
func EmbeddedFS() fs.FS {
	sub, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}

// Store loads graph templates from a file system. Every Load returns a
// freshly decoded graph, so callers may mutate the result freely.
type Store struct {
	fsys fs.FS
}

func NewStore(fsys fs.FS) *Store {
	return &Store{fsys: fsys}
}

// NewDefaultStore returns a Store backed by the embedded templates.
func NewDefaultStore() *Store {
	return NewStore(EmbeddedFS())
}

// NewDirStore returns a Store reading templates from dir.
func NewDirStore(dir string) *Store {
	return NewStore(os.DirFS(dir))
}

// FS exposes the underlying file system, used to load the patch table
// shipped alongside the templates.
func (s *Store) FS() fs.FS {
	return s.fsys
}

func (s *Store) Load(v Variant) (Graph, error) {
	if !v.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVariant, v)
	}
	name := v.TemplateName()

	data, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTemplateLoad, name, err)
	}

	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTemplateLoad, name, err)
	}
	if g == nil {
		return nil, fmt.Errorf("%w: %s: document is null", ErrTemplateLoad, name)
	}
	for id, node := range g {
		if node == nil {
			return nil, fmt.Errorf("%w: %s: node %q is null", ErrTemplateLoad, name, id)
		}
		if node.Inputs == nil {
			node.Inputs = map[string]any{}
		}
	}
	return g, nil
}
