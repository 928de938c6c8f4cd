package engine

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// TestSceneSchema_ValidatesSamples keeps schemas/scene.schema.json in sync
// with the payloads the adapter accepts and produces.
func TestSceneSchema_ValidatesSamples(t *testing.T) {
	schema, err := jsonschema.Compile(filepath.Join("..", "..", "schemas", "scene.schema.json"))
	if err != nil {
		t.Fatalf("compile scene schema: %v", err)
	}

	validate := func(payload []byte) error {
		t.Helper()
		var v any
		if err := json.Unmarshal(payload, &v); err != nil {
			t.Fatalf("unmarshal sample: %v", err)
		}
		return schema.Validate(v)
	}

	if err := validate([]byte(sampleSceneJSON)); err != nil {
		t.Errorf("sample scene rejected: %v", err)
	}

	// The fallback scene must itself satisfy the contract.
	fallback, err := json.Marshal(fallbackScene("Ava"))
	if err != nil {
		t.Fatalf("marshal fallback scene: %v", err)
	}
	if err := validate(fallback); err != nil {
		t.Errorf("fallback scene rejected: %v", err)
	}

	// A choice with an unknown category must not slip through.
	bad := []byte(`{
	  "title": "x",
	  "narrative": "y",
	  "visualCue": "z",
	  "choices": [{"id": "a", "text": "b", "type": "dance"}]
	}`)
	if err := validate(bad); err == nil {
		t.Error("invalid choice type accepted by schema")
	}
}
