package openapi

import (
	"encoding/json"
	"testing"
)

func TestJSONListsRelayPaths(t *testing.T) {
	t.Parallel()

	raw, err := JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var doc struct {
		Paths map[string]interface{} `json:"paths"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, path := range []string{"/healthz", "/events", "/stream", "/openapi"} {
		if _, ok := doc.Paths[path]; !ok {
			t.Fatalf("missing path %s", path)
		}
	}
}
