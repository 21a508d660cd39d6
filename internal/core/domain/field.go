package domain

import (
	"errors"
	"strings"
)

type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ExtractedField is one named value pulled out of a document. It is immutable;
// accessors return copies of the optional parts.
type ExtractedField struct {
	name        string
	value       *string
	confidence  Confidence
	boundingBox *BoundingBox
	pageNumber  *int
}

func NewExtractedField(name string, value *string, confidence Confidence, box *BoundingBox, page *int) (ExtractedField, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ExtractedField{}, WrapError(ErrInvalidInput, "new extracted field", errors.New("field name is required"))
	}
	if page != nil && *page < 1 {
		return ExtractedField{}, WrapError(ErrInvalidInput, "new extracted field", errors.New("page number must be positive"))
	}
	return ExtractedField{
		name:        name,
		value:       cloneString(value),
		confidence:  confidence,
		boundingBox: cloneBox(box),
		pageNumber:  cloneInt(page),
	}, nil
}

// NewValueField builds a field with a plain value and no location data.
func NewValueField(name, value string, confidence Confidence) (ExtractedField, error) {
	return NewExtractedField(name, &value, confidence, nil, nil)
}

func (f ExtractedField) Name() string { return f.name }

// Value returns the field value and whether one was extracted.
func (f ExtractedField) Value() (string, bool) {
	if f.value == nil {
		return "", false
	}
	return *f.value, true
}

func (f ExtractedField) Confidence() Confidence { return f.confidence }

func (f ExtractedField) BoundingBox() *BoundingBox { return cloneBox(f.boundingBox) }

func (f ExtractedField) PageNumber() *int { return cloneInt(f.pageNumber) }

func (f ExtractedField) IsZero() bool { return f.name == "" }

// FieldSnapshot is the persisted form of an ExtractedField.
type FieldSnapshot struct {
	Name        string       `json:"field_name"`
	Value       *string      `json:"value,omitempty"`
	Confidence  float64      `json:"confidence"`
	BoundingBox *BoundingBox `json:"bounding_box,omitempty"`
	PageNumber  *int         `json:"page_number,omitempty"`
}

func (f ExtractedField) Snapshot() FieldSnapshot {
	return FieldSnapshot{
		Name:        f.name,
		Value:       cloneString(f.value),
		Confidence:  f.confidence.score,
		BoundingBox: cloneBox(f.boundingBox),
		PageNumber:  cloneInt(f.pageNumber),
	}
}

// RehydrateExtractedField rebuilds a stored field without re-validating it.
func RehydrateExtractedField(s FieldSnapshot) ExtractedField {
	return ExtractedField{
		name:        s.Name,
		value:       cloneString(s.Value),
		confidence:  Confidence{score: s.Confidence},
		boundingBox: cloneBox(s.BoundingBox),
		pageNumber:  cloneInt(s.PageNumber),
	}
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneBox(v *BoundingBox) *BoundingBox {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
