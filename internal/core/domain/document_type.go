package domain

import "strings"

type DocumentType string

const (
	DocumentTypeUnknown          DocumentType = "unknown"
	DocumentTypeAcord125         DocumentType = "acord_125"
	DocumentTypeAcord126         DocumentType = "acord_126"
	DocumentTypeAcord127         DocumentType = "acord_127"
	DocumentTypeAcord130         DocumentType = "acord_130"
	DocumentTypeAcord137         DocumentType = "acord_137"
	DocumentTypeAcord140         DocumentType = "acord_140"
	DocumentTypeLossRunReport    DocumentType = "loss_run_report"
	DocumentTypeExposureSchedule DocumentType = "exposure_schedule"
	DocumentTypeOther            DocumentType = "other"
)

// documentTypeAliases maps normalized labels (lowercase, separators removed)
// to document types. Classifiers answer with loose labels such as "ACORD 125"
// or "LossRun".
var documentTypeAliases = map[string]DocumentType{
	"unknown":           DocumentTypeUnknown,
	"acord125":          DocumentTypeAcord125,
	"acord126":          DocumentTypeAcord126,
	"acord127":          DocumentTypeAcord127,
	"acord130":          DocumentTypeAcord130,
	"acord137":          DocumentTypeAcord137,
	"acord140":          DocumentTypeAcord140,
	"lossrunreport":     DocumentTypeLossRunReport,
	"lossrun":           DocumentTypeLossRunReport,
	"exposureschedule":  DocumentTypeExposureSchedule,
	"statementofvalues": DocumentTypeExposureSchedule,
	"sov":               DocumentTypeExposureSchedule,
	"other":             DocumentTypeOther,
}

// ParseDocumentType resolves a classifier label. Unrecognized labels become
// DocumentTypeOther; empty labels become DocumentTypeUnknown.
func ParseDocumentType(label string) DocumentType {
	key := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '.':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(label)))
	if key == "" {
		return DocumentTypeUnknown
	}
	if t, ok := documentTypeAliases[key]; ok {
		return t
	}
	return DocumentTypeOther
}

func (t DocumentType) IsAcordForm() bool {
	switch t {
	case DocumentTypeAcord125, DocumentTypeAcord126, DocumentTypeAcord127,
		DocumentTypeAcord130, DocumentTypeAcord137, DocumentTypeAcord140:
		return true
	default:
		return false
	}
}

func (t DocumentType) String() string { return string(t) }
