package workflow

import "errors"

var (
	ErrTemplateLoad     = errors.New("failed to load workflow template")
	ErrMissingNode      = errors.New("workflow node not found")
	ErrInvalidParameter = errors.New("invalid workflow parameter")
	ErrInvalidVariant   = errors.New("invalid workflow variant")
)

// Variant selects one of the prebuilt workflow graphs.
type Variant string

const VariantT2V Variant = "t2v"
const VariantI2V Variant = "i2v"

func (v Variant) IsValid() bool {
	switch v {
	case VariantT2V, VariantI2V:
		return true
	default:
		return false
	}
}

// TemplateName returns the file name of the variant's graph template.
func (v Variant) TemplateName() string {
	return "video_ltx2_" + string(v) + ".json"
}

// Graph is a ComfyUI API-format prompt: node id to node definition.
type Graph map[string]*Node

// Node is a single graph node. Inputs hold scalars, literals, or links of
// the form [source_node_id, output_index].
type Node struct {
	ClassType string         `json:"class_type"`
	Inputs    map[string]any `json:"inputs"`
	Meta      map[string]any `json:"_meta,omitempty"`
}
