package meme

import (
	"reflect"
	"testing"

	"github.com/google/uuid"
)

func TestReplicateProjectionMatchesSource(t *testing.T) {
	src, err := New(KindText, "hello world", nil)
	if err != nil {
		t.Fatalf("new meme: %v", err)
	}
	src.Fitness = 0.9
	other := uuid.New()
	src.Connect(other, 0.5)

	clone := src.Replicate()

	if clone.ID == src.ID {
		t.Error("replicate must mint a new identity")
	}
	if clone.Fitness != 0 {
		t.Errorf("fitness must reset to 0, got %f", clone.Fitness)
	}

	a := src.Snapshot()
	b := clone.Snapshot()
	delete(a, "id")
	delete(b, "id")
	delete(a, "fitness")
	delete(b, "fitness")
	if !reflect.DeepEqual(a, b) {
		t.Errorf("projections differ:\nsrc:   %v\nclone: %v", a, b)
	}
}

func TestReplicateDeepCopiesContent(t *testing.T) {
	data := map[string]interface{}{
		"score":  1.0,
		"nested": map[string]interface{}{"inner": 2.0},
	}
	src, _ := New(KindData, data, nil)
	clone := src.Replicate()

	cloneData := clone.Content.(map[string]interface{})
	cloneData["score"] = 99.0
	cloneData["nested"].(map[string]interface{})["inner"] = 99.0

	if data["score"] != 1.0 {
		t.Error("clone mutation leaked into source top-level field")
	}
	if data["nested"].(map[string]interface{})["inner"] != 2.0 {
		t.Error("clone mutation leaked into source nested field")
	}
}

func TestReplicateCopiesConnectionsByValue(t *testing.T) {
	src, _ := New(KindText, "linked", nil)
	target := uuid.New()
	src.Connect(target, 0.7)

	clone := src.Replicate()
	clone.Connect(uuid.New(), 0.1)

	if len(src.Connections) != 1 {
		t.Errorf("clone connection leaked into source: %d links", len(src.Connections))
	}
	if clone.Connections[target] != 0.7 {
		t.Errorf("expected copied weight 0.7, got %f", clone.Connections[target])
	}
}

func TestDefaultMetadataHasCreated(t *testing.T) {
	m, _ := New(KindText, "x", nil)
	if _, ok := m.Metadata["created"]; !ok {
		t.Error("expected default created timestamp in metadata")
	}
}

func TestRenderText(t *testing.T) {
	txt, _ := New(KindText, "some thought", nil)
	if txt.RenderText() != "some thought" {
		t.Errorf("text render: got %q", txt.RenderText())
	}
	img, _ := New(KindImage, NewImage(1, 1, 1), nil)
	if img.RenderText() != "" {
		t.Errorf("image render should be empty, got %q", img.RenderText())
	}
}
