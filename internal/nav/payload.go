package nav

import (
	"fmt"
	"strings"
)

// Payload is the inventory record carried by an embedded code: a
// comma-separated list of "id: <code>" and "Предмет: <name>" fields.
type Payload struct {
	Code string
	Name string
}

// ParseError reports a decoded payload missing a required field. The raw
// text is kept for the scan history record.
type ParseError struct {
	Field string
	Raw   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("payload missing required field %q", e.Field)
}

// ParsePayload parses the decoded text into a fully populated Payload or a
// *ParseError; there is no partially valid result. Field keys are matched
// case-insensitively, the item name keeps its original casing.
func ParsePayload(text string) (Payload, error) {
	var p Payload

	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		lower := strings.ToLower(part)
		switch {
		case strings.Contains(lower, "id"):
			p.Code = strings.TrimSpace(strings.Replace(lower, "id:", "", 1))
		case strings.Contains(lower, "предмет"):
			if _, value, ok := strings.Cut(part, ":"); ok {
				p.Name = strings.TrimSpace(value)
			}
		}
	}

	if p.Code == "" {
		return Payload{}, &ParseError{Field: "id", Raw: text}
	}
	if p.Name == "" {
		return Payload{}, &ParseError{Field: "name", Raw: text}
	}
	return p, nil
}

// Location is a shelf/position slot a marker id maps to.
type Location struct {
	Shelf    string
	Position string
}

// ShelfLabel returns the canonical persisted form of the shelf.
func (l Location) ShelfLabel() string {
	return "Стеллаж " + l.Shelf
}

// PositionLabel returns the canonical persisted form of the position.
func (l Location) PositionLabel() string {
	return "Полка " + l.Position
}
