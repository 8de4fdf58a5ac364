package workflow

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	DefaultNegativePrompt = "blurry, low quality, still frame, frames, watermark, overlay, titles, has blurbox, has subtitles"
	DefaultLength         = 121
	DefaultSteps          = 20
	DefaultSeed           = 10
	DefaultCFG            = 4.0
	DefaultWidth          = 1280
	DefaultHeight         = 720

	// MinDimension is the smallest width or height the engine accepts.
	MinDimension = 16
)

// DefaultFrameRate matches the frame rate wired into each template.
func DefaultFrameRate(v Variant) float64 {
	if v == VariantI2V {
		return 25.0
	}
	return 24.0
}

// Params are the per-job values patched into a graph.
type Params struct {
	Prompt         string
	NegativePrompt string
	Length         int
	Steps          int
	Seed           uint64
	CFG            float64
	// Width and Height must already be multiples of 16.
	Width     int
	Height    int
	FrameRate float64
	// Image is the resolved local path of the conditioning image (i2v only).
	Image string
}

var paramNames = map[string]bool{
	"prompt":          true,
	"negative_prompt": true,
	"length":          true,
	"seed":            true,
	"steps":           true,
	"cfg":             true,
	"width":           true,
	"height":          true,
	"frame_rate":      true,
	"frame_rate_int":  true,
	"image":           true,
}

func (p Params) value(name string) (any, error) {
	switch name {
	case "prompt":
		return p.Prompt, nil
	case "negative_prompt":
		return p.NegativePrompt, nil
	case "length":
		return p.Length, nil
	case "seed":
		return p.Seed, nil
	case "steps":
		return p.Steps, nil
	case "cfg":
		return p.CFG, nil
	case "width":
		return p.Width, nil
	case "height":
		return p.Height, nil
	case "frame_rate":
		return p.FrameRate, nil
	case "frame_rate_int":
		return int(p.FrameRate), nil
	case "image":
		if p.Image == "" {
			return nil, fmt.Errorf("%w: image path is empty", ErrInvalidParameter)
		}
		return p.Image, nil
	default:
		return nil, fmt.Errorf("%w: unknown parameter %q", ErrInvalidParameter, name)
	}
}

// NearestMultipleOf16 rounds v to the nearest multiple of 16, ties to even,
// with a floor of 16. v may be any Go number, a json.Number, or a numeric
// string.
func NearestMultipleOf16(v any) (int, error) {
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: width/height out of range: %v", ErrInvalidParameter, v)
	}
	adjusted := int(math.RoundToEven(f/16) * 16)
	if adjusted < MinDimension {
		adjusted = MinDimension
	}
	return adjusted, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: width/height is not a number: %q", ErrInvalidParameter, n)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: width/height is not a number: %q", ErrInvalidParameter, n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: width/height is not a number: %v", ErrInvalidParameter, v)
	}
}
