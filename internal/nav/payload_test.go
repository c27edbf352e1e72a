package nav

import (
	"errors"
	"testing"
)

func TestParsePayload(t *testing.T) {
	p, err := ParsePayload("id: abc123, Предмет: Коробка")
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if p.Code != "abc123" {
		t.Errorf("Code = %q, want %q", p.Code, "abc123")
	}
	if p.Name != "Коробка" {
		t.Errorf("Name = %q, want %q", p.Name, "Коробка")
	}
}

func TestParsePayloadCaseAndSpacing(t *testing.T) {
	p, err := ParsePayload("ID: ABC123 ,  предмет:  Ящик с деталями")
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	// The code is normalised to lower case, the name keeps its casing.
	if p.Code != "abc123" {
		t.Errorf("Code = %q, want %q", p.Code, "abc123")
	}
	if p.Name != "Ящик с деталями" {
		t.Errorf("Name = %q, want %q", p.Name, "Ящик с деталями")
	}
}

func TestParsePayloadMissingFields(t *testing.T) {
	for _, tc := range []struct {
		text  string
		field string
	}{
		{"Предмет: Коробка", "id"},
		{"id: abc123", "name"},
		{"", "id"},
		{"nothing useful here", "id"},
	} {
		_, err := ParsePayload(tc.text)
		if err == nil {
			t.Errorf("ParsePayload(%q): expected error", tc.text)
			continue
		}
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Errorf("ParsePayload(%q): error type %T, want *ParseError", tc.text, err)
			continue
		}
		if parseErr.Field != tc.field {
			t.Errorf("ParsePayload(%q): missing field %q, want %q", tc.text, parseErr.Field, tc.field)
		}
		if parseErr.Raw != tc.text {
			t.Errorf("ParsePayload(%q): raw = %q", tc.text, parseErr.Raw)
		}
	}
}

func TestLocationLabels(t *testing.T) {
	l := Location{Shelf: "2", Position: "3"}
	if got := l.ShelfLabel(); got != "Стеллаж 2" {
		t.Errorf("ShelfLabel = %q", got)
	}
	if got := l.PositionLabel(); got != "Полка 3" {
		t.Errorf("PositionLabel = %q", got)
	}
}
