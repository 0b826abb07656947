package util

import (
	"testing"
)

func TestCreateSchema(t *testing.T) {
	type args struct {
		Query string  `json:"query" description:"Search terms"`
		Limit int     `json:"limit,omitempty"`
		Score *string `json:"score"`
		skip  bool
	}

	schema := CreateSchema(args{})

	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("expected properties map, got %T", schema["properties"])
	}
	if _, ok := props["query"]; !ok {
		t.Error("expected query property")
	}
	if _, ok := props["skip"]; ok {
		t.Error("unexported field must not appear")
	}

	query := props["query"].(map[string]any)
	if query["description"] != "Search terms" {
		t.Errorf("unexpected description %v", query["description"])
	}

	required, ok := schema["required"].([]string)
	if !ok || len(required) != 1 || required[0] != "query" {
		t.Errorf("expected only query required, got %v", schema["required"])
	}
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "string"},
		},
		"required": []string{"a"},
	}

	tests := []struct {
		name    string
		params  map[string]any
		wantErr bool
	}{
		{"valid", map[string]any{"a": 1.5, "b": "x"}, false},
		{"missing required", map[string]any{"b": "x"}, true},
		{"wrong type", map[string]any{"a": "not a number"}, true},
		{"extra field allowed", map[string]any{"a": 2.0, "extra": true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateParameters(tt.params, schema)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateParameters() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("Hello {{.name}}, tools: {{join \", \" .tools}}", map[string]any{
		"name":  "Ada",
		"tools": []string{"search", "calc"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Hello Ada, tools: search, calc" {
		t.Errorf("unexpected output %q", out)
	}

	plain, err := RenderTemplate("no markers here", nil)
	if err != nil || plain != "no markers here" {
		t.Errorf("plain text must pass through, got %q err %v", plain, err)
	}
}
