package workflow_test

import (
	"encoding/json"
	"testing"

	"github.com/krelinga/video-generator/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadGraph(t *testing.T, v workflow.Variant) workflow.Graph {
	t.Helper()
	g, err := workflow.NewDefaultStore().Load(v)
	require.NoError(t, err)
	return g
}

func defaultTable(t *testing.T) *workflow.PatchTable {
	t.Helper()
	table, err := workflow.DefaultPatchTable()
	require.NoError(t, err)
	return table
}

func testParams(v workflow.Variant) workflow.Params {
	p := workflow.Params{
		Prompt:         "a cat",
		NegativePrompt: workflow.DefaultNegativePrompt,
		Length:         workflow.DefaultLength,
		Steps:          workflow.DefaultSteps,
		Seed:           workflow.DefaultSeed,
		CFG:            workflow.DefaultCFG,
		Width:          96,
		Height:         96,
		FrameRate:      workflow.DefaultFrameRate(v),
	}
	if v == workflow.VariantI2V {
		p.Image = "/tmp/x.jpg"
	}
	return p
}

func TestApplyCommon(t *testing.T) {
	table := defaultTable(t)
	for _, v := range []workflow.Variant{workflow.VariantT2V, workflow.VariantI2V} {
		t.Run(string(v), func(t *testing.T) {
			g := loadGraph(t, v)
			p := testParams(v)
			p.Steps = 8
			p.Seed = 1234
			p.CFG = 2.5
			p.Length = 49
			p.NegativePrompt = "ugly"

			require.NoError(t, table.Apply(g, v, p))

			assert.Equal(t, "a cat", g["92:3"].Inputs["text"])
			assert.Equal(t, "ugly", g["92:4"].Inputs["text"])
			assert.Equal(t, 49, g["92:62"].Inputs["value"])
			assert.Equal(t, uint64(1234), g["92:11"].Inputs["noise_seed"])
			assert.Equal(t, 8, g["92:9"].Inputs["steps"])
			assert.Equal(t, 2.5, g["92:47"].Inputs["cfg"])
		})
	}
}

func TestApplyT2V(t *testing.T) {
	g := loadGraph(t, workflow.VariantT2V)
	require.NoError(t, defaultTable(t).Apply(g, workflow.VariantT2V, testParams(workflow.VariantT2V)))

	assert.Equal(t, 96, g["92:89"].Inputs["width"])
	assert.Equal(t, 96, g["92:89"].Inputs["height"])
	assert.Equal(t, 24.0, g["92:102"].Inputs["value"])
	assert.Equal(t, 24, g["92:99"].Inputs["value"])
	// Linked inputs are left wired to the frame rate primitives.
	assert.Equal(t, []any{"92:102", float64(0)}, g["92:22"].Inputs["frame_rate"])
}

func TestApplyI2V(t *testing.T) {
	g := loadGraph(t, workflow.VariantI2V)
	p := testParams(workflow.VariantI2V)
	p.FrameRate = 30.9
	require.NoError(t, defaultTable(t).Apply(g, workflow.VariantI2V, p))

	assert.Equal(t, "/tmp/x.jpg", g["98"].Inputs["image"])
	assert.Equal(t, 96, g["102"].Inputs["resize_type.width"])
	assert.Equal(t, 96, g["102"].Inputs["resize_type.height"])
	assert.Equal(t, 30, g["92:51"].Inputs["frame_rate"])
	assert.Equal(t, 30, g["92:22"].Inputs["frame_rate"])
	assert.Equal(t, 30, g["92:97"].Inputs["fps"])
	// 92:99 is a preprocess node in this template and is not touched.
	assert.NotContains(t, g["92:99"].Inputs, "value")
}

func TestApplyIsIdempotent(t *testing.T) {
	table := defaultTable(t)
	for _, v := range []workflow.Variant{workflow.VariantT2V, workflow.VariantI2V} {
		t.Run(string(v), func(t *testing.T) {
			g := loadGraph(t, v)
			p := testParams(v)

			require.NoError(t, table.Apply(g, v, p))
			once, err := json.Marshal(g)
			require.NoError(t, err)

			require.NoError(t, table.Apply(g, v, p))
			twice, err := json.Marshal(g)
			require.NoError(t, err)

			assert.JSONEq(t, string(once), string(twice))
		})
	}
}

func TestApplyMissingRequiredNode(t *testing.T) {
	g := loadGraph(t, workflow.VariantT2V)
	delete(g, "92:3")
	err := defaultTable(t).Apply(g, workflow.VariantT2V, testParams(workflow.VariantT2V))
	assert.ErrorIs(t, err, workflow.ErrMissingNode)

	g = loadGraph(t, workflow.VariantI2V)
	delete(g, "98")
	err = defaultTable(t).Apply(g, workflow.VariantI2V, testParams(workflow.VariantI2V))
	assert.ErrorIs(t, err, workflow.ErrMissingNode)
}

func TestApplySkipsAbsentOptionalNodes(t *testing.T) {
	table := defaultTable(t)

	g := loadGraph(t, workflow.VariantT2V)
	delete(g, "92:102")
	g["92:99"].ClassType = "PrimitiveFloat"
	require.NoError(t, table.Apply(g, workflow.VariantT2V, testParams(workflow.VariantT2V)))
	assert.Equal(t, float64(24), g["92:99"].Inputs["value"], "class mismatch leaves the template value")

	g = loadGraph(t, workflow.VariantI2V)
	delete(g, "92:51")
	delete(g, "92:22")
	delete(g["92:97"].Inputs, "fps")
	require.NoError(t, table.Apply(g, workflow.VariantI2V, testParams(workflow.VariantI2V)))
	assert.NotContains(t, g["92:97"].Inputs, "fps")
}

func TestApplyI2VRequiresImage(t *testing.T) {
	g := loadGraph(t, workflow.VariantI2V)
	p := testParams(workflow.VariantI2V)
	p.Image = ""
	err := defaultTable(t).Apply(g, workflow.VariantI2V, p)
	assert.ErrorIs(t, err, workflow.ErrInvalidParameter)
}

func TestValidate(t *testing.T) {
	store := workflow.NewDefaultStore()
	require.NoError(t, defaultTable(t).Validate(store))

	table, err := workflow.ParsePatchTable([]byte(`
variants:
  t2v:
    - {node: "999", input: text, param: prompt}
  i2v:
    - {node: "998", input: text, param: prompt, optional: true}
`))
	require.NoError(t, err)
	assert.ErrorIs(t, table.Validate(store), workflow.ErrMissingNode)
}

func TestParsePatchTableErrors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr error
	}{
		{
			name:    "malformed yaml",
			doc:     "variants: [",
			wantErr: workflow.ErrTemplateLoad,
		},
		{
			name:    "unknown variant",
			doc:     "variants:\n  v2v:\n    - {node: '1', input: text, param: prompt}\n",
			wantErr: workflow.ErrInvalidVariant,
		},
		{
			name:    "unknown parameter",
			doc:     "variants:\n  t2v:\n    - {node: '1', input: text, param: sampler}\n",
			wantErr: workflow.ErrTemplateLoad,
		},
		{
			name:    "entry without node",
			doc:     "common:\n  - {input: text, param: prompt}\nvariants:\n  t2v: []\n",
			wantErr: workflow.ErrTemplateLoad,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := workflow.ParsePatchTable([]byte(tt.doc))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestApplyUnknownVariant(t *testing.T) {
	err := defaultTable(t).Apply(workflow.Graph{}, workflow.Variant("v2v"), workflow.Params{})
	assert.ErrorIs(t, err, workflow.ErrInvalidVariant)
}
