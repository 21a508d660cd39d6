package usecase

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/submission-intake/internal/core/domain"
)

const synthesizedDateLayout = "2006-01-02"

var (
	lossCarrierConfidence      = domain.MustConfidence(0.85)
	lossReportDateConfidence   = domain.MustConfidence(0.85)
	lossDateConfidence         = domain.MustConfidence(0.85)
	lossClaimNumberConfidence  = domain.MustConfidence(0.90)
	lossDescriptionConfidence  = domain.MustConfidence(0.80)
	lossPaidConfidence         = domain.MustConfidence(0.88)
	lossReservedConfidence     = domain.MustConfidence(0.87)
	lossIncurredConfidence     = domain.MustConfidence(0.88)
	lossStatusConfidence       = domain.MustConfidence(0.85)
	lossCoverageTypeConfidence = domain.MustConfidence(0.82)
	lossCountConfidence        = domain.MustConfidence(0.95)

	locationStreet1Confidence          = domain.MustConfidence(0.90)
	locationStreet2Confidence          = domain.MustConfidence(0.88)
	locationCityConfidence             = domain.MustConfidence(0.92)
	locationStateConfidence            = domain.MustConfidence(0.95)
	locationPostalCodeConfidence       = domain.MustConfidence(0.88)
	locationDescriptionConfidence      = domain.MustConfidence(0.80)
	locationBuildingValueConfidence    = domain.MustConfidence(0.85)
	locationContentsValueConfidence    = domain.MustConfidence(0.84)
	locationBusinessIncomeConfidence   = domain.MustConfidence(0.83)
	locationConstructionTypeConfidence = domain.MustConfidence(0.80)
	locationYearBuiltConfidence        = domain.MustConfidence(0.82)
	locationSquareFootageConfidence    = domain.MustConfidence(0.80)
	locationCountConfidence            = domain.MustConfidence(0.95)
)

// fieldSet accumulates synthesized fields in insertion order.
type fieldSet struct {
	fields []domain.ExtractedField
}

func (s *fieldSet) text(name, value string, c domain.Confidence) {
	if strings.TrimSpace(value) == "" {
		return
	}
	f, err := domain.NewValueField(name, value, c)
	if err != nil {
		return
	}
	s.fields = append(s.fields, f)
}

func (s *fieldSet) date(name string, value *time.Time, c domain.Confidence) {
	if value == nil {
		return
	}
	s.text(name, value.Format(synthesizedDateLayout), c)
}

func (s *fieldSet) amount(name string, value *float64, c domain.Confidence) {
	if value == nil {
		return
	}
	s.text(name, formatAmount(*value), c)
}

func (s *fieldSet) integer(name string, value *int, c domain.Confidence) {
	if value == nil {
		return
	}
	s.text(name, strconv.Itoa(*value), c)
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// synthesizeLossRunFields flattens a loss run into Loss_<n>_* fields followed
// by a LossCount field that is always present.
func synthesizeLossRunFields(ext domain.LossRunExtraction) []domain.ExtractedField {
	var s fieldSet
	s.text("CarrierName", ext.CarrierName, lossCarrierConfidence)
	s.date("ReportDate", ext.ReportDate, lossReportDateConfidence)

	for i, loss := range ext.Losses {
		prefix := fmt.Sprintf("Loss_%d_", i+1)
		s.date(prefix+"DateOfLoss", loss.DateOfLoss, lossDateConfidence)
		s.text(prefix+"ClaimNumber", loss.ClaimNumber, lossClaimNumberConfidence)
		s.text(prefix+"Description", loss.Description, lossDescriptionConfidence)
		s.amount(prefix+"PaidAmount", loss.PaidAmount, lossPaidConfidence)
		s.amount(prefix+"ReservedAmount", loss.ReservedAmount, lossReservedConfidence)
		s.amount(prefix+"IncurredAmount", loss.IncurredAmount, lossIncurredConfidence)
		s.text(prefix+"Status", loss.Status, lossStatusConfidence)
		s.text(prefix+"CoverageType", loss.CoverageType, lossCoverageTypeConfidence)
	}

	s.text("LossCount", strconv.Itoa(len(ext.Losses)), lossCountConfidence)
	return s.fields
}

// synthesizeExposureFields flattens an exposure schedule into Location_<n>_*
// fields. The location number reported by the schedule wins over the position.
func synthesizeExposureFields(ext domain.ExposureScheduleExtraction) []domain.ExtractedField {
	var s fieldSet
	for i, loc := range ext.Locations {
		number := i + 1
		if loc.LocationNumber != nil {
			number = *loc.LocationNumber
		}
		prefix := fmt.Sprintf("Location_%d_", number)
		s.text(prefix+"Street1", loc.Street1, locationStreet1Confidence)
		s.text(prefix+"Street2", loc.Street2, locationStreet2Confidence)
		s.text(prefix+"City", loc.City, locationCityConfidence)
		s.text(prefix+"State", loc.State, locationStateConfidence)
		s.text(prefix+"PostalCode", loc.PostalCode, locationPostalCodeConfidence)
		s.text(prefix+"Description", loc.BuildingDescription, locationDescriptionConfidence)
		s.amount(prefix+"BuildingValue", loc.BuildingValue, locationBuildingValueConfidence)
		s.amount(prefix+"ContentsValue", loc.ContentsValue, locationContentsValueConfidence)
		s.amount(prefix+"BusinessIncomeValue", loc.BusinessIncomeValue, locationBusinessIncomeConfidence)
		s.text(prefix+"ConstructionType", loc.ConstructionType, locationConstructionTypeConfidence)
		s.integer(prefix+"YearBuilt", loc.YearBuilt, locationYearBuiltConfidence)
		s.integer(prefix+"SquareFootage", loc.SquareFootage, locationSquareFootageConfidence)
	}

	s.text("LocationCount", strconv.Itoa(len(ext.Locations)), locationCountConfidence)
	return s.fields
}

// acordFields converts raw ACORD entries in name order. Entries that do not
// form a valid field are dropped.
func acordFields(ext domain.AcordFormExtraction) []domain.ExtractedField {
	names := make([]string, 0, len(ext.Fields))
	for name := range ext.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]domain.ExtractedField, 0, len(names))
	for _, name := range names {
		raw := ext.Fields[name]
		c, err := domain.NewConfidence(raw.Confidence)
		if err != nil {
			continue
		}
		f, err := domain.NewExtractedField(name, raw.Value, c, raw.BoundingBox, raw.PageNumber)
		if err != nil {
			continue
		}
		fields = append(fields, f)
	}
	return fields
}
