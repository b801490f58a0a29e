package meme

import (
	"errors"
	"testing"
)

func TestValidationRejectsMismatchedPayloads(t *testing.T) {
	cases := []struct {
		kind    ContentKind
		content interface{}
	}{
		{KindExecutable, "not a function"},
		{KindData, "not a map"},
		{KindText, 42},
		{KindImage, map[string]interface{}{}},
		{KindModel, "not a model"},
		{ContentKind("bogus"), "anything"},
	}
	for _, c := range cases {
		if _, err := New(c.kind, c.content, nil); !errors.Is(err, ErrContentMismatch) {
			t.Errorf("kind %q: expected ErrContentMismatch, got %v", c.kind, err)
		}
	}
}

func TestValidationAcceptsMatchingPayloads(t *testing.T) {
	fn := ExecutableFunc(func(env interface{}) interface{} { return env })
	if _, err := New(KindExecutable, fn, nil); err != nil {
		t.Errorf("executable: %v", err)
	}
	if _, err := New(KindData, map[string]interface{}{"x": 1}, nil); err != nil {
		t.Errorf("data: %v", err)
	}
	if _, err := New(KindText, "hello world", nil); err != nil {
		t.Errorf("text: %v", err)
	}
	if _, err := New(KindImage, NewImage(4, 4, 3), nil); err != nil {
		t.Errorf("image: %v", err)
	}
	if _, err := New(KindModel, &Model{Params: []float64{0.5}}, nil); err != nil {
		t.Errorf("model: %v", err)
	}
}

func TestModelValidationSkippedWithoutCapability(t *testing.T) {
	SetModelCapability(false)
	defer SetModelCapability(true)

	// Any payload passes for the model kind when the capability is off.
	if _, err := New(KindModel, "whatever", nil); err != nil {
		t.Errorf("expected model validation skip, got %v", err)
	}
}

func TestExecutePerKind(t *testing.T) {
	fn := ExecutableFunc(func(env interface{}) interface{} { return env })
	exec, _ := New(KindExecutable, fn, nil)
	if got := exec.Execute("env-value"); got != "env-value" {
		t.Errorf("executable: expected env passthrough, got %v", got)
	}

	text, _ := New(KindText, "immutable", nil)
	if got := text.Execute(nil); got != "immutable" {
		t.Errorf("text: expected content, got %v", got)
	}

	data := map[string]interface{}{"k": 1}
	dm, _ := New(KindData, data, nil)
	if got := dm.Execute(nil); got == nil {
		t.Error("data: expected content back")
	}

	img := NewImage(2, 2, 1)
	img.Pix[0] = 7
	im, _ := New(KindImage, img, nil)
	pix, ok := im.Execute(nil).([]uint8)
	if !ok || pix[0] != 7 {
		t.Errorf("image: expected pixel buffer, got %v", pix)
	}
}

func TestModelExecute(t *testing.T) {
	m, err := New(KindModel, &Model{Params: []float64{2, 3}}, nil)
	if err != nil {
		t.Fatalf("new model meme: %v", err)
	}

	if got := m.Execute(nil); got != nil {
		t.Errorf("expected nil with no env, got %v", got)
	}

	out, ok := m.Execute([]float64{1, 1}).([]float64)
	if !ok || len(out) != 1 {
		t.Fatalf("expected 1-element output, got %v", out)
	}
	if out[0] != 5 {
		t.Errorf("expected 2*1+3*1=5, got %f", out[0])
	}

	SetModelCapability(false)
	defer SetModelCapability(true)
	if got := m.Execute([]float64{1, 1}); got != nil {
		t.Errorf("expected nil without model capability, got %v", got)
	}
}

func TestTextMutationPreservesLength(t *testing.T) {
	for _, text := range []string{"a", "hello", "длинная мысль о мемах"} {
		m, _ := New(KindText, text, nil)
		for i := 0; i < 50; i++ {
			m.Mutate()
			got := m.Content.(string)
			if len([]rune(got)) != len([]rune(text)) {
				t.Fatalf("text %q: mutation changed rune length to %q", text, got)
			}
		}
	}
}

func TestEmptyTextMutationIsNoop(t *testing.T) {
	m, _ := New(KindText, "", nil)
	m.Mutate()
	if m.Content.(string) != "" {
		t.Errorf("empty text mutated to %q", m.Content)
	}
}

func TestImageMutationStaysInRange(t *testing.T) {
	img := NewImage(8, 8, 3)
	for i := range img.Pix {
		// Edge values exercise the clipping both ways.
		if i%2 == 0 {
			img.Pix[i] = 255
		}
	}
	m, _ := New(KindImage, img, nil)
	for i := 0; i < 20; i++ {
		m.Mutate()
	}
	// uint8 cannot leave [0,255]; verify the buffer shape is intact instead.
	got := m.Content.(*Image)
	if len(got.Pix) != 8*8*3 {
		t.Errorf("pixel buffer resized to %d", len(got.Pix))
	}
}

func TestDataMutationShiftsNumericFields(t *testing.T) {
	data := map[string]interface{}{"num": 10.0, "count": 3, "label": "fixed"}
	m, _ := New(KindData, data, nil)
	m.Mutate()

	got := m.Content.(map[string]interface{})
	num := got["num"].(float64)
	if num < 9.0 || num > 11.0 {
		t.Errorf("numeric field shifted outside [-1,1]: %f", num)
	}
	count := got["count"].(float64)
	if count < 2.0 || count > 4.0 {
		t.Errorf("int field shifted outside [-1,1]: %f", count)
	}
	if got["label"] != "fixed" {
		t.Errorf("non-numeric field mutated: %v", got["label"])
	}
}

func TestExecutableMutationIsNoop(t *testing.T) {
	calls := 0
	fn := ExecutableFunc(func(env interface{}) interface{} { calls++; return env })
	m, _ := New(KindExecutable, fn, nil)
	m.Mutate()
	m.Execute(nil)
	if calls != 1 {
		t.Errorf("executable behavior changed after mutation")
	}
}
