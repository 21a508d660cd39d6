package ollama

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/submission-intake/internal/core/domain"
)

const (
	classificationSnippet = 4000
	extractionSnippet     = 12000
)

var classificationLabels = []domain.DocumentType{
	domain.DocumentTypeAcord125,
	domain.DocumentTypeAcord126,
	domain.DocumentTypeAcord127,
	domain.DocumentTypeAcord130,
	domain.DocumentTypeAcord137,
	domain.DocumentTypeAcord140,
	domain.DocumentTypeLossRunReport,
	domain.DocumentTypeExposureSchedule,
	domain.DocumentTypeOther,
}

// acordFieldHints lists the field names downstream validation looks for.
var acordFieldHints = map[domain.DocumentType][]string{
	domain.DocumentTypeAcord125: {"InsuredName", "InsuredAddress", "InsuredCity", "InsuredState", "InsuredPostalCode", "EffectiveDate", "ExpirationDate", "FEIN", "BusinessDescription", "ProducerName"},
	domain.DocumentTypeAcord126: {"InsuredName", "GLLimit", "EachOccurrenceLimit", "GeneralAggregateLimit", "ProductsAggregateLimit", "ClassCode", "Premium"},
	domain.DocumentTypeAcord127: {"InsuredName", "VehicleCount", "DriverCount", "CombinedSingleLimit"},
	domain.DocumentTypeAcord130: {"InsuredName", "State", "FEIN", "EmployeeCount", "Payroll", "ClassCode"},
	domain.DocumentTypeAcord137: {"InsuredName", "State", "VehicleCount", "CombinedSingleLimit"},
	domain.DocumentTypeAcord140: {"InsuredName", "PropertyLimit", "BuildingValue", "ContentsValue", "BusinessIncomeValue", "TotalInsuredValue", "ConstructionType", "YearBuilt"},
}

func buildClassificationPrompt(fileName, text string) string {
	labels := make([]string, 0, len(classificationLabels))
	for _, l := range classificationLabels {
		labels = append(labels, l.String())
	}

	return fmt.Sprintf(`You classify commercial insurance submission documents.
Return strict JSON object with keys:
document_type (one of: %s), confidence (number from 0 to 1).
Use "other" for documents that match none of the types.
No markdown, no extra keys.

File name: %s

Document:
%s`, strings.Join(labels, ", "), fileName, truncate(text, classificationSnippet))
}

func buildAcordPrompt(docType domain.DocumentType, text string) string {
	hints := acordFieldHints[docType]
	return fmt.Sprintf(`You extract fields from an %s form.
Return strict JSON object {"fields": {...}} where each key is a field name in PascalCase and each value is
{"value": string or null, "confidence": number from 0 to 1, "page_number": integer or null}.
Include these fields when present: %s.
Include any other labelled values you can read. Dates use YYYY-MM-DD.
No markdown.

Document:
%s`, strings.ToUpper(strings.ReplaceAll(docType.String(), "_", " ")), strings.Join(hints, ", "), truncate(text, extractionSnippet))
}

func buildLossRunPrompt(text string) string {
	return `You extract claims from an insurance loss run report.
Return strict JSON object with keys:
carrier_name (string), report_date (YYYY-MM-DD or null),
losses (array of objects with keys date_of_loss (YYYY-MM-DD), claim_number, description,
paid_amount, reserved_amount, incurred_amount (numbers), status, coverage_type).
Use null for values that are not reported. Return an empty losses array for "no losses" reports.
No markdown, no extra keys.

Document:
` + truncate(text, extractionSnippet)
}

func buildExposurePrompt(text string) string {
	return `You extract insured locations from a statement of values.
Return strict JSON object {"locations": [...]} where each location has keys:
location_number (integer), street1, street2, city, state, postal_code, building_description,
building_value, contents_value, business_income_value (numbers), construction_type,
year_built (integer), square_footage (integer).
Use null for values that are not reported. Skip totals rows.
No markdown, no extra keys.

Document:
` + truncate(text, extractionSnippet)
}

// truncate cuts text to at most n bytes without splitting a rune.
func truncate(text string, n int) string {
	if len(text) <= n {
		return text
	}
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return text[:n]
}
