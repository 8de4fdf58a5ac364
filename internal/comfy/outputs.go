package comfy

import (
	"maps"
	"slices"
)

// Artifact is one file produced by an output node.
type Artifact struct {
	Filename string
	Data     []byte
}

// Outputs maps output node ids to the artifacts they produced, in the order
// the engine listed them.
type Outputs map[string][]Artifact

// Primary picks the result artifact: the first artifact of the preferred
// node if it has any, otherwise the first artifact of the first populated
// node in sorted id order. ok is false when no node produced anything.
func (o Outputs) Primary(preferred string) (artifact Artifact, nodeID string, ok bool) {
	if preferred != "" && len(o[preferred]) > 0 {
		return o[preferred][0], preferred, true
	}
	for _, id := range slices.Sorted(maps.Keys(o)) {
		if len(o[id]) > 0 {
			return o[id][0], id, true
		}
	}
	return Artifact{}, "", false
}
