package domain

import (
	"fmt"
	"math"
)

const (
	highConfidenceThreshold   = 0.90
	mediumConfidenceThreshold = 0.70
	reviewThreshold           = 0.80
)

// ConfidenceLevel buckets a confidence score for reporting.
type ConfidenceLevel string

const (
	ConfidenceLevelHigh   ConfidenceLevel = "high"
	ConfidenceLevelMedium ConfidenceLevel = "medium"
	ConfidenceLevelLow    ConfidenceLevel = "low"
)

// Confidence is a reliability score in [0,1] rounded to four decimal places.
type Confidence struct {
	score float64
}

// ConfidenceUnknown is used when a collaborator reports a score that cannot be trusted.
var ConfidenceUnknown = Confidence{}

func NewConfidence(score float64) (Confidence, error) {
	if math.IsNaN(score) || score < 0 || score > 1 {
		return Confidence{}, WrapError(ErrInvalidInput, "new confidence", fmt.Errorf("score %v outside [0,1]", score))
	}
	return Confidence{score: math.Round(score*10000) / 10000}, nil
}

// MustConfidence is for package-level constants whose scores are known to be valid.
func MustConfidence(score float64) Confidence {
	c, err := NewConfidence(score)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Confidence) Score() float64 { return c.score }

func (c Confidence) IsHigh() bool { return c.score >= highConfidenceThreshold }

func (c Confidence) IsMedium() bool {
	return c.score >= mediumConfidenceThreshold && c.score < highConfidenceThreshold
}

func (c Confidence) IsLow() bool { return c.score < mediumConfidenceThreshold }

// RequiresReview reports whether a human should verify the value.
func (c Confidence) RequiresReview() bool { return c.score < reviewThreshold }

func (c Confidence) Level() ConfidenceLevel {
	switch {
	case c.IsHigh():
		return ConfidenceLevelHigh
	case c.IsMedium():
		return ConfidenceLevelMedium
	default:
		return ConfidenceLevelLow
	}
}

func (c Confidence) String() string {
	return fmt.Sprintf("%.4f", c.score)
}
