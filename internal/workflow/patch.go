package workflow

import (
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"
)

// PatchTableName is the patch table file shipped next to the templates.
const PatchTableName = "patches.yaml"

// PatchEntry assigns one parameter to one node input.
type PatchEntry struct {
	Node  string `yaml:"node"`
	Input string `yaml:"input"`
	Param string `yaml:"param"`
	// Optional entries are skipped when the node (or, with RequireInput,
	// the input slot) is absent, or when ClassType does not match.
	Optional     bool   `yaml:"optional"`
	ClassType    string `yaml:"class_type"`
	RequireInput bool   `yaml:"require_input"`
}

func (e PatchEntry) String() string {
	return fmt.Sprintf("%s.%s<-%s", e.Node, e.Input, e.Param)
}

// PatchTable lists the node assignments for every variant.
type PatchTable struct {
	Common   []PatchEntry             `yaml:"common"`
	Variants map[Variant][]PatchEntry `yaml:"variants"`
}

// LoadPatchTable reads and checks the patch table in fsys.
func LoadPatchTable(fsys fs.FS) (*PatchTable, error) {
	data, err := fs.ReadFile(fsys, PatchTableName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTemplateLoad, PatchTableName, err)
	}
	return ParsePatchTable(data)
}

func ParsePatchTable(data []byte) (*PatchTable, error) {
	var t PatchTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTemplateLoad, PatchTableName, err)
	}
	for v, entries := range t.Variants {
		if !v.IsValid() {
			return nil, fmt.Errorf("%w: %q in %s", ErrInvalidVariant, v, PatchTableName)
		}
		for _, e := range append(t.Common[:len(t.Common):len(t.Common)], entries...) {
			if e.Node == "" || e.Input == "" {
				return nil, fmt.Errorf("%w: %s: entry %s has no node or input", ErrTemplateLoad, PatchTableName, e)
			}
			if !paramNames[e.Param] {
				return nil, fmt.Errorf("%w: %s: entry %s names unknown parameter", ErrTemplateLoad, PatchTableName, e)
			}
		}
	}
	return &t, nil
}

func (t *PatchTable) entries(v Variant) ([]PatchEntry, error) {
	specific, ok := t.Variants[v]
	if !ok {
		return nil, fmt.Errorf("%w: %q has no patch entries", ErrInvalidVariant, v)
	}
	out := make([]PatchEntry, 0, len(t.Common)+len(specific))
	out = append(out, t.Common...)
	return append(out, specific...), nil
}

// target returns the node e writes to. A nil node with a nil error means an
// optional entry does not apply to g.
func (e PatchEntry) target(g Graph) (*Node, error) {
	node, ok := g[e.Node]
	if !ok {
		if e.Optional {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %q required by %s", ErrMissingNode, e.Node, e)
	}
	if e.ClassType != "" && node.ClassType != e.ClassType {
		if e.Optional {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %q is %s, want %s for %s", ErrMissingNode, e.Node, node.ClassType, e.ClassType, e)
	}
	if e.RequireInput {
		if _, ok := node.Inputs[e.Input]; !ok {
			if e.Optional {
				return nil, nil
			}
			return nil, fmt.Errorf("%w: %q has no input %q", ErrMissingNode, e.Node, e.Input)
		}
	}
	return node, nil
}

// Apply writes p into g according to the entries for v. The graph is
// modified in place; applying the same params twice yields the same graph.
func (t *PatchTable) Apply(g Graph, v Variant, p Params) error {
	entries, err := t.entries(v)
	if err != nil {
		return err
	}
	for _, e := range entries {
		node, err := e.target(g)
		if err != nil {
			return err
		}
		if node == nil {
			continue
		}
		value, err := p.value(e.Param)
		if err != nil {
			return fmt.Errorf("%s: %w", e, err)
		}
		if node.Inputs == nil {
			node.Inputs = map[string]any{}
		}
		node.Inputs[e.Input] = value
	}
	return nil
}

// Validate loads every variant's template from store and checks that all
// required entries resolve. It is run once at startup so a template/table
// mismatch fails before any job is accepted.
func (t *PatchTable) Validate(store *Store) error {
	for _, v := range []Variant{VariantT2V, VariantI2V} {
		entries, err := t.entries(v)
		if err != nil {
			return err
		}
		g, err := store.Load(v)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if _, err := e.target(g); err != nil {
				return fmt.Errorf("%s template: %w", v, err)
			}
		}
	}
	return nil
}

// DefaultPatchTable returns the patch table compiled into the binary.
func DefaultPatchTable() (*PatchTable, error) {
	return LoadPatchTable(EmbeddedFS())
}
