package domain

import "time"

// ClassificationResult is the classifier verdict for one attachment.
type ClassificationResult struct {
	DocumentType DocumentType `json:"document_type"`
	Confidence   float64      `json:"confidence"`
}

// AcordFieldValue is one raw entry returned for an ACORD form.
type AcordFieldValue struct {
	Value       *string      `json:"value"`
	Confidence  float64      `json:"confidence"`
	BoundingBox *BoundingBox `json:"bounding_box,omitempty"`
	PageNumber  *int         `json:"page_number,omitempty"`
}

type AcordFormExtraction struct {
	Fields map[string]AcordFieldValue `json:"fields"`
}

// LossRecord is one claim line of a loss run. Zero values mean "not reported".
type LossRecord struct {
	DateOfLoss     *time.Time `json:"date_of_loss,omitempty"`
	ClaimNumber    string     `json:"claim_number,omitempty"`
	Description    string     `json:"description,omitempty"`
	PaidAmount     *float64   `json:"paid_amount,omitempty"`
	ReservedAmount *float64   `json:"reserved_amount,omitempty"`
	IncurredAmount *float64   `json:"incurred_amount,omitempty"`
	Status         string     `json:"status,omitempty"`
	CoverageType   string     `json:"coverage_type,omitempty"`
}

type LossRunExtraction struct {
	Losses      []LossRecord `json:"losses"`
	CarrierName string       `json:"carrier_name,omitempty"`
	ReportDate  *time.Time   `json:"report_date,omitempty"`
}

// ExposureLocation is one insured location of a statement of values.
type ExposureLocation struct {
	LocationNumber      *int     `json:"location_number,omitempty"`
	Street1             string   `json:"street1,omitempty"`
	Street2             string   `json:"street2,omitempty"`
	City                string   `json:"city,omitempty"`
	State               string   `json:"state,omitempty"`
	PostalCode          string   `json:"postal_code,omitempty"`
	BuildingDescription string   `json:"building_description,omitempty"`
	BuildingValue       *float64 `json:"building_value,omitempty"`
	ContentsValue       *float64 `json:"contents_value,omitempty"`
	BusinessIncomeValue *float64 `json:"business_income_value,omitempty"`
	ConstructionType    string   `json:"construction_type,omitempty"`
	YearBuilt           *int     `json:"year_built,omitempty"`
	SquareFootage       *int     `json:"square_footage,omitempty"`
}

// TotalInsuredValue sums the reported property values.
func (l ExposureLocation) TotalInsuredValue() float64 {
	var total float64
	for _, v := range []*float64{l.BuildingValue, l.ContentsValue, l.BusinessIncomeValue} {
		if v != nil {
			total += *v
		}
	}
	return total
}

type ExposureScheduleExtraction struct {
	Locations []ExposureLocation `json:"locations"`
}
