package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/submission-intake/internal/core/domain"
)

// maxLowConfidenceFields is the number of review-level fields a document may
// carry before it is flagged as a whole.
const maxLowConfidenceFields = 5

const (
	msgInsuredNameRequired   = "Insured name is required"
	msgEffectiveDateRequired = "Effective date is required"
	msgAddressIncomplete     = "Insured address information is incomplete"
	msgGLLimitRequired       = "General liability limit is required"
	msgWorkersCompState      = "State is required for workers compensation"
	msgPropertyValueRequired = "Property limit, building value, or total insured value is required"
	msgNoLossData            = "No loss data could be extracted from the loss run report"
	msgNoLocationData        = "No location data could be extracted from the exposure schedule"
)

// validateDocument returns the validation messages for an extracted document.
// It reads only the document's fields.
func validateDocument(doc *domain.ProcessedDocument) []string {
	var errs []string
	require := func(msg string, names ...string) {
		if !hasAnyField(doc, names...) {
			errs = append(errs, msg)
		}
	}

	switch doc.DocumentType() {
	case domain.DocumentTypeAcord125:
		require(msgInsuredNameRequired, "InsuredName")
		require(msgEffectiveDateRequired, "EffectiveDate")
		require(msgAddressIncomplete, "InsuredAddress", "InsuredCity")
	case domain.DocumentTypeAcord126:
		require(msgInsuredNameRequired, "InsuredName")
		require(msgGLLimitRequired, "GLLimit", "GeneralLiabilityLimit")
	case domain.DocumentTypeAcord130:
		require(msgInsuredNameRequired, "InsuredName")
		require(msgWorkersCompState, "State", "InsuredState")
	case domain.DocumentTypeAcord140:
		require(msgInsuredNameRequired, "InsuredName")
		require(msgPropertyValueRequired, "PropertyLimit", "BuildingValue", "TotalInsuredValue")
	case domain.DocumentTypeLossRunReport:
		if isZeroCount(doc, "LossCount") && len(doc.ExtractedFields()) == 0 {
			errs = append(errs, msgNoLossData)
		}
	case domain.DocumentTypeExposureSchedule:
		if isZeroCount(doc, "LocationCount") {
			errs = append(errs, msgNoLocationData)
		}
	}

	if n := countReviewFields(doc); n > maxLowConfidenceFields {
		errs = append(errs, fmt.Sprintf("%d fields have low confidence and require review", n))
	}
	return errs
}

func hasAnyField(doc *domain.ProcessedDocument, names ...string) bool {
	for _, name := range names {
		if _, ok := doc.FieldValue(name); ok {
			return true
		}
	}
	return false
}

// isZeroCount treats a missing count field like an explicit zero.
func isZeroCount(doc *domain.ProcessedDocument, name string) bool {
	v, ok := doc.FieldValue(name)
	return !ok || strings.TrimSpace(v) == "0"
}

func countReviewFields(doc *domain.ProcessedDocument) int {
	n := 0
	for _, f := range doc.ExtractedFields() {
		if f.Confidence().RequiresReview() {
			n++
		}
	}
	return n
}
