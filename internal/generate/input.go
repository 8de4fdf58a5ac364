package generate

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/krelinga/video-generator/internal/media"
	"github.com/krelinga/video-generator/internal/workflow"
)

var ErrInvalidInput = errors.New("invalid input")

// Input is the job document accepted by the handler. Pointer fields are
// optional and fall back to the workflow defaults.
type Input struct {
	Prompt         string   `json:"prompt" validate:"required"`
	NegativePrompt *string  `json:"negative_prompt,omitempty"`
	Length         *int     `json:"length,omitempty" validate:"omitempty,gt=0"`
	Steps          *int     `json:"steps,omitempty" validate:"omitempty,gt=0"`
	Seed           *uint64  `json:"seed,omitempty"`
	CFG            *float64 `json:"cfg,omitempty"`
	// Width and Height accept numbers or numeric strings.
	Width     any      `json:"width,omitempty"`
	Height    any      `json:"height,omitempty"`
	FrameRate *float64 `json:"frame_rate,omitempty" validate:"omitempty,gt=0"`

	// A present image key selects i2v even when its value is empty; an
	// empty value is then rejected by Validate.
	ImagePath   *string `json:"image_path,omitempty"`
	ImageURL    *string `json:"image_url,omitempty" validate:"omitempty,url"`
	ImageBase64 *string `json:"image_base64,omitempty"`
}

// UnmarshalJSON accepts integral floats such as 121.0 for length and steps.
func (in *Input) UnmarshalJSON(data []byte) error {
	type plain Input
	aux := struct {
		*plain
		Length *json.Number `json:"length,omitempty"`
		Steps  *json.Number `json:"steps,omitempty"`
	}{plain: (*plain)(in)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	var err error
	if in.Length, err = wholeNumber("length", aux.Length); err != nil {
		return err
	}
	if in.Steps, err = wholeNumber("steps", aux.Steps); err != nil {
		return err
	}
	return nil
}

func wholeNumber(name string, n *json.Number) (*int, error) {
	if n == nil {
		return nil, nil
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return nil, fmt.Errorf("%w: %s must be a whole number, got %s", ErrInvalidInput, name, n.String())
	}
	v := int(f)
	return &v, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the input without touching the filesystem or network.
func (in Input) Validate() error {
	if strings.TrimSpace(in.Prompt) == "" {
		return fmt.Errorf("%w: prompt is required", ErrInvalidInput)
	}
	for _, f := range []struct {
		name  string
		value *string
	}{
		{"image_path", in.ImagePath},
		{"image_url", in.ImageURL},
		{"image_base64", in.ImageBase64},
	} {
		if f.value != nil && *f.value == "" {
			return fmt.Errorf("%w: %s is empty", ErrInvalidInput, f.name)
		}
	}
	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, ", "))
		}
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

// image returns the image descriptor and how to resolve it. Path wins over
// URL, URL over inline data.
func (in Input) image() (string, media.Kind, bool) {
	switch {
	case in.ImagePath != nil:
		return *in.ImagePath, media.KindPath, true
	case in.ImageURL != nil:
		return *in.ImageURL, media.KindURL, true
	case in.ImageBase64 != nil:
		return *in.ImageBase64, media.KindInline, true
	default:
		return "", "", false
	}
}

// Variant is i2v when any image key is present.
func (in Input) Variant() workflow.Variant {
	if _, _, ok := in.image(); ok {
		return workflow.VariantI2V
	}
	return workflow.VariantT2V
}

// Params applies defaults and coerces the resolution. Image is left empty.
func (in Input) Params() (workflow.Params, error) {
	v := in.Variant()
	p := workflow.Params{
		Prompt:         in.Prompt,
		NegativePrompt: workflow.DefaultNegativePrompt,
		Length:         workflow.DefaultLength,
		Steps:          workflow.DefaultSteps,
		Seed:           workflow.DefaultSeed,
		CFG:            workflow.DefaultCFG,
		Width:          workflow.DefaultWidth,
		Height:         workflow.DefaultHeight,
		FrameRate:      workflow.DefaultFrameRate(v),
	}
	if in.NegativePrompt != nil {
		p.NegativePrompt = *in.NegativePrompt
	}
	if in.Length != nil {
		p.Length = *in.Length
	}
	if in.Steps != nil {
		p.Steps = *in.Steps
	}
	if in.Seed != nil {
		p.Seed = *in.Seed
	}
	if in.CFG != nil {
		p.CFG = *in.CFG
	}
	if in.FrameRate != nil {
		p.FrameRate = *in.FrameRate
	}

	var err error
	if in.Width != nil {
		if p.Width, err = workflow.NearestMultipleOf16(in.Width); err != nil {
			return workflow.Params{}, fmt.Errorf("%w: width: %w", ErrInvalidInput, err)
		}
	}
	if in.Height != nil {
		if p.Height, err = workflow.NearestMultipleOf16(in.Height); err != nil {
			return workflow.Params{}, fmt.Errorf("%w: height: %w", ErrInvalidInput, err)
		}
	}
	return p, nil
}
