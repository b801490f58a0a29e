package meme

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
)

// ContentKind identifies the payload type carried by a meme.
type ContentKind string

const (
	KindExecutable ContentKind = "executable"
	KindData       ContentKind = "data"
	KindText       ContentKind = "text"
	KindImage      ContentKind = "image"
	KindModel      ContentKind = "model"
)

// ErrContentMismatch is returned when a payload does not match its declared kind.
var ErrContentMismatch = errors.New("content does not match declared kind")

// ExecutableFunc is the payload shape for executable memes: a function invoked
// with one opaque environment argument.
type ExecutableFunc func(env interface{}) interface{}

// Image is a 2-D pixel buffer with 1 (grayscale) or 3 (RGB) channels.
type Image struct {
	Width    int
	Height   int
	Channels int
	Pix      []uint8 // row-major, length Width*Height*Channels
}

// NewImage allocates a zeroed pixel buffer.
func NewImage(width, height, channels int) *Image {
	return &Image{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]uint8, width*height*channels),
	}
}

// Clone returns an independent copy of the image.
func (im *Image) Clone() *Image {
	cp := &Image{Width: im.Width, Height: im.Height, Channels: im.Channels}
	cp.Pix = make([]uint8, len(im.Pix))
	copy(cp.Pix, im.Pix)
	return cp
}

// Model is a minimal parametric function: a flat parameter vector applied as a
// single linear layer over the input.
type Model struct {
	Params []float64
}

// Forward applies the model to an input vector. The output is the dot product
// of the input with each parameter chunk of the same length.
func (m *Model) Forward(input []float64) []float64 {
	if len(input) == 0 || len(m.Params) == 0 {
		return nil
	}
	rows := len(m.Params) / len(input)
	if rows == 0 {
		rows = 1
	}
	out := make([]float64, rows)
	for r := 0; r < rows; r++ {
		var sum float64
		for c := 0; c < len(input); c++ {
			idx := r*len(input) + c
			if idx >= len(m.Params) {
				break
			}
			sum += m.Params[idx] * input[c]
		}
		out[r] = sum
	}
	return out
}

// Clone returns an independent copy of the model.
func (m *Model) Clone() *Model {
	cp := &Model{Params: make([]float64, len(m.Params))}
	copy(cp.Params, m.Params)
	return cp
}

// modelCapability gates the model kind, treated as an optional feature:
// when disabled, model validation is skipped and model execution returns
// nil. Resolved once at process start.
var modelCapability = os.Getenv("MEMOS_DISABLE_MODEL_KIND") == ""

// SetModelCapability overrides the model capability flag. Test hook.
func SetModelCapability(enabled bool) { modelCapability = enabled }

// ModelCapability reports whether the model kind is available.
func ModelCapability() bool { return modelCapability }

// validateContent checks that a payload matches its declared kind.
func validateContent(kind ContentKind, content interface{}) error {
	switch kind {
	case KindExecutable:
		if _, ok := content.(ExecutableFunc); ok {
			return nil
		}
		if _, ok := content.(func(interface{}) interface{}); ok {
			return nil
		}
		return fmt.Errorf("%w: kind %q requires a func(env) payload", ErrContentMismatch, kind)
	case KindData:
		if _, ok := content.(map[string]interface{}); !ok {
			return fmt.Errorf("%w: kind %q requires a map payload", ErrContentMismatch, kind)
		}
	case KindText:
		if _, ok := content.(string); !ok {
			return fmt.Errorf("%w: kind %q requires a string payload", ErrContentMismatch, kind)
		}
	case KindImage:
		if _, ok := content.(*Image); !ok {
			return fmt.Errorf("%w: kind %q requires an *Image payload", ErrContentMismatch, kind)
		}
	case KindModel:
		// Skipped entirely when the capability is unavailable, preserving
		// partial functionality instead of rejecting model memes outright.
		if !modelCapability {
			return nil
		}
		if _, ok := content.(*Model); !ok {
			return fmt.Errorf("%w: kind %q requires a *Model payload", ErrContentMismatch, kind)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrContentMismatch, kind)
	}
	return nil
}

// executeContent runs a payload against an opaque environment.
func executeContent(kind ContentKind, content, env interface{}) interface{} {
	switch kind {
	case KindExecutable:
		switch fn := content.(type) {
		case ExecutableFunc:
			return fn(env)
		case func(interface{}) interface{}:
			return fn(env)
		}
		return nil
	case KindData, KindText:
		return content
	case KindImage:
		if im, ok := content.(*Image); ok {
			return im.Pix
		}
		return nil
	case KindModel:
		if !modelCapability || env == nil {
			return nil
		}
		m, ok := content.(*Model)
		if !ok {
			return nil
		}
		input := toFloatVector(env)
		if input == nil {
			return nil
		}
		return m.Forward(input)
	}
	return nil
}

const textAlphabet = "abcdefghijklmnopqrstuvwxyz "

// mutateContent applies the per-kind structural perturbation and returns the
// (possibly replaced) payload. Executable and unknown kinds are left untouched:
// behavior is presumed immutable.
func mutateContent(kind ContentKind, content interface{}) interface{} {
	switch kind {
	case KindData:
		data, ok := content.(map[string]interface{})
		if !ok {
			return content
		}
		for k, v := range data {
			switch n := v.(type) {
			case int:
				data[k] = float64(n) + (rand.Float64()*2 - 1)
			case float64:
				data[k] = n + (rand.Float64()*2 - 1)
			}
		}
		return data
	case KindText:
		text, ok := content.(string)
		if !ok || text == "" {
			return content
		}
		runes := []rune(text)
		idx := rand.Intn(len(runes))
		runes[idx] = rune(textAlphabet[rand.Intn(len(textAlphabet))])
		return string(runes)
	case KindImage:
		im, ok := content.(*Image)
		if !ok {
			return content
		}
		for i := range im.Pix {
			noise := rand.Intn(20) - 10 // [-10, 10)
			v := int(im.Pix[i]) + noise
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			im.Pix[i] = uint8(v)
		}
		return im
	case KindModel:
		if !modelCapability {
			return content
		}
		m, ok := content.(*Model)
		if !ok {
			return content
		}
		for i := range m.Params {
			m.Params[i] += rand.NormFloat64() * 0.1
		}
		return m
	}
	return content
}

// cloneContent produces a structurally independent deep copy of a payload.
// Executable payloads are shared by reference: function values carry no
// mutable state of their own.
func cloneContent(kind ContentKind, content interface{}) interface{} {
	switch kind {
	case KindData:
		if data, ok := content.(map[string]interface{}); ok {
			return deepCopyMap(data)
		}
	case KindImage:
		if im, ok := content.(*Image); ok {
			return im.Clone()
		}
	case KindModel:
		if m, ok := content.(*Model); ok {
			return m.Clone()
		}
	}
	return content
}

func deepCopyMap(src map[string]interface{}) map[string]interface{} {
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = deepCopyValue(v)
	}
	return dst
}

func deepCopyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(t)
	case []interface{}:
		cp := make([]interface{}, len(t))
		for i, e := range t {
			cp[i] = deepCopyValue(e)
		}
		return cp
	}
	return v
}

// toFloatVector converts an opaque environment into a numeric vector for
// model execution. Unsupported shapes yield nil.
func toFloatVector(env interface{}) []float64 {
	switch t := env.(type) {
	case []float64:
		return t
	case []float32:
		out := make([]float64, len(t))
		for i, v := range t {
			out[i] = float64(v)
		}
		return out
	case []int:
		out := make([]float64, len(t))
		for i, v := range t {
			out[i] = float64(v)
		}
		return out
	case []interface{}:
		out := make([]float64, 0, len(t))
		for _, v := range t {
			switch n := v.(type) {
			case float64:
				out = append(out, n)
			case int:
				out = append(out, float64(n))
			default:
				return nil
			}
		}
		return out
	case float64:
		return []float64{t}
	case int:
		return []float64{float64(t)}
	}
	return nil
}
