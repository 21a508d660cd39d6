package domain

import "testing"

func TestNewConfidenceRejectsOutOfRange(t *testing.T) {
	for _, score := range []float64{-0.0001, 1.0001, -1, 2} {
		if _, err := NewConfidence(score); err == nil {
			t.Fatalf("expected error for score %v", score)
		} else if !IsKind(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for score %v, got %v", score, err)
		}
	}
}

func TestNewConfidenceRoundsToFourDecimals(t *testing.T) {
	cases := map[float64]float64{
		0:         0,
		1:         1,
		0.12344:   0.1234,
		0.999949:  0.9999,
		0.8:       0.8,
		0.7777777: 0.7778,
	}
	for in, want := range cases {
		c, err := NewConfidence(in)
		if err != nil {
			t.Fatalf("NewConfidence(%v) error = %v", in, err)
		}
		if c.Score() != want {
			t.Fatalf("NewConfidence(%v) = %v, want %v", in, c.Score(), want)
		}
	}
}

func TestConfidencePredicates(t *testing.T) {
	cases := []struct {
		score  float64
		high   bool
		medium bool
		low    bool
		review bool
		level  ConfidenceLevel
	}{
		{score: 0.95, high: true, level: ConfidenceLevelHigh},
		{score: 0.90, high: true, level: ConfidenceLevelHigh},
		{score: 0.85, medium: true, level: ConfidenceLevelMedium},
		{score: 0.80, medium: true, level: ConfidenceLevelMedium},
		{score: 0.79, medium: true, review: true, level: ConfidenceLevelMedium},
		{score: 0.70, medium: true, review: true, level: ConfidenceLevelMedium},
		{score: 0.69, low: true, review: true, level: ConfidenceLevelLow},
		{score: 0, low: true, review: true, level: ConfidenceLevelLow},
	}
	for _, tc := range cases {
		c := MustConfidence(tc.score)
		if c.IsHigh() != tc.high || c.IsMedium() != tc.medium || c.IsLow() != tc.low || c.RequiresReview() != tc.review {
			t.Fatalf("score %v: high=%v medium=%v low=%v review=%v", tc.score, c.IsHigh(), c.IsMedium(), c.IsLow(), c.RequiresReview())
		}
		if c.Level() != tc.level {
			t.Fatalf("score %v: expected level %s, got %s", tc.score, tc.level, c.Level())
		}
	}
}

func TestNewExtractedFieldRequiresName(t *testing.T) {
	if _, err := NewValueField("  ", "x", MustConfidence(0.9)); !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	page := 0
	if _, err := NewExtractedField("Name", nil, MustConfidence(0.9), nil, &page); !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for page 0, got %v", err)
	}
}

func TestExtractedFieldIsImmutable(t *testing.T) {
	value := "ABC Corp"
	page := 2
	box := &BoundingBox{X: 1, Y: 2, Width: 3, Height: 4}
	f, err := NewExtractedField("InsuredName", &value, MustConfidence(0.95), box, &page)
	if err != nil {
		t.Fatalf("NewExtractedField() error = %v", err)
	}

	value = "changed"
	page = 9
	box.X = 100
	f.BoundingBox().Y = 200
	*f.PageNumber() = 7

	got, ok := f.Value()
	if !ok || got != "ABC Corp" {
		t.Fatalf("expected original value, got %q (ok=%v)", got, ok)
	}
	if *f.PageNumber() != 2 {
		t.Fatalf("expected page 2, got %d", *f.PageNumber())
	}
	if b := f.BoundingBox(); b.X != 1 || b.Y != 2 {
		t.Fatalf("expected original bounding box, got %+v", b)
	}
}
