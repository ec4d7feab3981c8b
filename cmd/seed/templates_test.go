package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadTemplates(t *testing.T) {
	input := `
templates:
  - name: Day 1 Value
    trigger_state: nurturing
    subject: Lesson 1
    content: |
      Hi {first_name}
  - name: Manual Follow Up
    content: Checking in
    inactive: true
`
	seeds, err := loadTemplates(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seeds) != 2 {
		t.Fatalf("expected 2 templates, got %d", len(seeds))
	}
	if seeds[0].TriggerState == nil || *seeds[0].TriggerState != "NURTURING" {
		t.Fatalf("expected normalized trigger state, got %v", seeds[0].TriggerState)
	}
	if seeds[0].Content != "Hi {first_name}" || !seeds[0].IsActive {
		t.Fatalf("unexpected first template %+v", seeds[0])
	}
	if seeds[1].TriggerState != nil || seeds[1].IsActive {
		t.Fatalf("unexpected second template %+v", seeds[1])
	}
}

func TestLoadTemplatesRejectsInvalidFiles(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: "templates: []"},
		{name: "unknown state", input: "templates:\n  - name: A\n    trigger_state: PAID\n    content: x"},
		{name: "duplicate name", input: "templates:\n  - name: A\n    content: x\n  - name: A\n    content: y"},
		{name: "missing content", input: "templates:\n  - name: A"},
		{name: "missing name", input: "templates:\n  - content: x"},
		{name: "unknown field", input: "templates:\n  - name: A\n    content: x\n    variables: [first_name]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := loadTemplates(strings.NewReader(tt.input)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestBundledTemplatesAreValid(t *testing.T) {
	path := filepath.Join("..", "..", "seeds", "templates.yaml")
	if _, err := os.Stat(path); err != nil {
		t.Skipf("seed file not available: %v", err)
	}

	var out bytes.Buffer
	if err := runTemplates(context.Background(), &out, path, true); err != nil {
		t.Fatalf("bundled templates are invalid: %v", err)
	}
	if !strings.Contains(out.String(), "Acceptance Message (ACCEPTED)") {
		t.Fatalf("unexpected dry run output:\n%s", out.String())
	}
}
