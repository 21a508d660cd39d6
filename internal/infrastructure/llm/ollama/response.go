package ollama

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/submission-intake/internal/core/domain"
)

// Models answer with numbers as strings ("$1,200") about as often as with
// JSON numbers, so loose values stay raw until converted.

var dateLayouts = []string{"2006-01-02", "01/02/2006", "1/2/2006", time.RFC3339}

type acordResponse struct {
	Fields map[string]acordFieldResponse `json:"fields"`
}

type acordFieldResponse struct {
	Value       json.RawMessage     `json:"value"`
	Confidence  float64             `json:"confidence"`
	BoundingBox *domain.BoundingBox `json:"bounding_box"`
	PageNumber  json.RawMessage     `json:"page_number"`
}

func (r acordResponse) toDomain() domain.AcordFormExtraction {
	out := domain.AcordFormExtraction{Fields: make(map[string]domain.AcordFieldValue, len(r.Fields))}
	for name, f := range r.Fields {
		out.Fields[name] = domain.AcordFieldValue{
			Value:       rawString(f.Value),
			Confidence:  f.Confidence,
			BoundingBox: f.BoundingBox,
			PageNumber:  rawInt(f.PageNumber),
		}
	}
	return out
}

type lossRunResponse struct {
	CarrierName string               `json:"carrier_name"`
	ReportDate  json.RawMessage      `json:"report_date"`
	Losses      []lossRecordResponse `json:"losses"`
}

type lossRecordResponse struct {
	DateOfLoss     json.RawMessage `json:"date_of_loss"`
	ClaimNumber    json.RawMessage `json:"claim_number"`
	Description    string          `json:"description"`
	PaidAmount     json.RawMessage `json:"paid_amount"`
	ReservedAmount json.RawMessage `json:"reserved_amount"`
	IncurredAmount json.RawMessage `json:"incurred_amount"`
	Status         string          `json:"status"`
	CoverageType   string          `json:"coverage_type"`
}

func (r lossRunResponse) toDomain() domain.LossRunExtraction {
	out := domain.LossRunExtraction{
		CarrierName: strings.TrimSpace(r.CarrierName),
		ReportDate:  rawDate(r.ReportDate),
		Losses:      make([]domain.LossRecord, 0, len(r.Losses)),
	}
	for _, l := range r.Losses {
		out.Losses = append(out.Losses, domain.LossRecord{
			DateOfLoss:     rawDate(l.DateOfLoss),
			ClaimNumber:    deref(rawString(l.ClaimNumber)),
			Description:    strings.TrimSpace(l.Description),
			PaidAmount:     rawFloat(l.PaidAmount),
			ReservedAmount: rawFloat(l.ReservedAmount),
			IncurredAmount: rawFloat(l.IncurredAmount),
			Status:         strings.TrimSpace(l.Status),
			CoverageType:   strings.TrimSpace(l.CoverageType),
		})
	}
	return out
}

type exposureResponse struct {
	Locations []exposureLocationResponse `json:"locations"`
}

type exposureLocationResponse struct {
	LocationNumber      json.RawMessage `json:"location_number"`
	Street1             string          `json:"street1"`
	Street2             string          `json:"street2"`
	City                string          `json:"city"`
	State               string          `json:"state"`
	PostalCode          json.RawMessage `json:"postal_code"`
	BuildingDescription string          `json:"building_description"`
	BuildingValue       json.RawMessage `json:"building_value"`
	ContentsValue       json.RawMessage `json:"contents_value"`
	BusinessIncomeValue json.RawMessage `json:"business_income_value"`
	ConstructionType    string          `json:"construction_type"`
	YearBuilt           json.RawMessage `json:"year_built"`
	SquareFootage       json.RawMessage `json:"square_footage"`
}

func (r exposureResponse) toDomain() domain.ExposureScheduleExtraction {
	out := domain.ExposureScheduleExtraction{Locations: make([]domain.ExposureLocation, 0, len(r.Locations))}
	for _, l := range r.Locations {
		out.Locations = append(out.Locations, domain.ExposureLocation{
			LocationNumber:      rawInt(l.LocationNumber),
			Street1:             strings.TrimSpace(l.Street1),
			Street2:             strings.TrimSpace(l.Street2),
			City:                strings.TrimSpace(l.City),
			State:               strings.TrimSpace(l.State),
			PostalCode:          deref(rawString(l.PostalCode)),
			BuildingDescription: strings.TrimSpace(l.BuildingDescription),
			BuildingValue:       rawFloat(l.BuildingValue),
			ContentsValue:       rawFloat(l.ContentsValue),
			BusinessIncomeValue: rawFloat(l.BusinessIncomeValue),
			ConstructionType:    strings.TrimSpace(l.ConstructionType),
			YearBuilt:           rawInt(l.YearBuilt),
			SquareFootage:       rawInt(l.SquareFootage),
		})
	}
	return out
}

// rawString returns strings as-is and other scalars as their JSON text.
// Null and blank values are nil.
func rawString(raw json.RawMessage) *string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func rawFloat(raw json.RawMessage) *float64 {
	s := rawString(raw)
	if s == nil {
		return nil
	}
	clean := strings.NewReplacer("$", "", ",", "", " ", "").Replace(*s)
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func rawInt(raw json.RawMessage) *int {
	v := rawFloat(raw)
	if v == nil {
		return nil
	}
	n := int(math.Round(*v))
	return &n
}

func rawDate(raw json.RawMessage) *time.Time {
	s := rawString(raw)
	if s == nil {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
