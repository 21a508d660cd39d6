package document

import (
	"bytes"
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/submission-intake/internal/core/domain"
)

type scheduleColumn int

const (
	colLocationNumber scheduleColumn = iota
	colStreet1
	colStreet2
	colCity
	colState
	colPostalCode
	colDescription
	colBuildingValue
	colContentsValue
	colBusinessIncome
	colConstruction
	colYearBuilt
	colSquareFootage
)

// scheduleHeaders maps normalized header text to a column.
var scheduleHeaders = map[string]scheduleColumn{
	"loc":                        colLocationNumber,
	"locno":                      colLocationNumber,
	"location":                   colLocationNumber,
	"locationno":                 colLocationNumber,
	"locationnumber":             colLocationNumber,
	"address":                    colStreet1,
	"address1":                   colStreet1,
	"street":                     colStreet1,
	"street1":                    colStreet1,
	"streetaddress":              colStreet1,
	"address2":                   colStreet2,
	"street2":                    colStreet2,
	"suite":                      colStreet2,
	"city":                       colCity,
	"st":                         colState,
	"state":                      colState,
	"zip":                        colPostalCode,
	"zipcode":                    colPostalCode,
	"postal":                     colPostalCode,
	"postalcode":                 colPostalCode,
	"description":                colDescription,
	"buildingdescription":        colDescription,
	"occupancy":                  colDescription,
	"bldg":                       colBuildingValue,
	"building":                   colBuildingValue,
	"buildingvalue":              colBuildingValue,
	"buildinglimit":              colBuildingValue,
	"contents":                   colContentsValue,
	"contentsvalue":              colContentsValue,
	"bpp":                        colContentsValue,
	"businesspersonalproperty":   colContentsValue,
	"bi":                         colBusinessIncome,
	"biee":                       colBusinessIncome,
	"businessincome":             colBusinessIncome,
	"businessincomevalue":        colBusinessIncome,
	"businessincomeextraexpense": colBusinessIncome,
	"const":                      colConstruction,
	"construction":               colConstruction,
	"constructiontype":           colConstruction,
	"year":                       colYearBuilt,
	"yearbuilt":                  colYearBuilt,
	"yrbuilt":                    colYearBuilt,
	"area":                       colSquareFootage,
	"sqft":                       colSquareFootage,
	"squarefeet":                 colSquareFootage,
	"squarefootage":              colSquareFootage,
}

var errNoScheduleHeader = errors.New("no exposure schedule header found")

// headerScanRows is how far down a sheet the header row is searched for.
const headerScanRows = 15

// ExposureSchedule parses a statement of values spreadsheet by its header
// row. The boolean is false when the document is not a spreadsheet or no
// sheet has a recognizable header, so the caller can fall back to the model.
func (d *Document) ExposureSchedule() (domain.ExposureScheduleExtraction, bool, error) {
	if d.Kind != KindSpreadsheet {
		return domain.ExposureScheduleExtraction{}, false, nil
	}
	f, err := excelize.OpenReader(bytes.NewReader(d.data))
	if err != nil {
		return domain.ExposureScheduleExtraction{}, false, domain.WrapError(domain.ErrInvalidInput, "open spreadsheet", err)
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return domain.ExposureScheduleExtraction{}, false, err
		}
		locations, err := parseScheduleRows(rows)
		if errors.Is(err, errNoScheduleHeader) {
			continue
		}
		return domain.ExposureScheduleExtraction{Locations: locations}, true, nil
	}
	return domain.ExposureScheduleExtraction{}, false, nil
}

func parseScheduleRows(rows [][]string) ([]domain.ExposureLocation, error) {
	headerIdx, columns := findHeader(rows)
	if headerIdx < 0 {
		return nil, errNoScheduleHeader
	}

	locations := make([]domain.ExposureLocation, 0, len(rows)-headerIdx-1)
	for _, row := range rows[headerIdx+1:] {
		loc, ok := parseLocation(row, columns)
		if !ok {
			continue
		}
		locations = append(locations, loc)
	}
	return locations, nil
}

// findHeader returns the first row that names an address column and at least
// two other known columns.
func findHeader(rows [][]string) (int, map[scheduleColumn]int) {
	for i, row := range rows {
		if i >= headerScanRows {
			break
		}
		columns := make(map[scheduleColumn]int)
		for j, cell := range row {
			col, ok := scheduleHeaders[normalizeHeader(cell)]
			if !ok {
				continue
			}
			if _, seen := columns[col]; !seen {
				columns[col] = j
			}
		}
		_, hasStreet := columns[colStreet1]
		_, hasCity := columns[colCity]
		if (hasStreet || hasCity) && len(columns) >= 3 {
			return i, columns
		}
	}
	return -1, nil
}

func parseLocation(row []string, columns map[scheduleColumn]int) (domain.ExposureLocation, bool) {
	cell := func(col scheduleColumn) string {
		j, ok := columns[col]
		if !ok || j >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[j])
	}

	loc := domain.ExposureLocation{
		LocationNumber:      parseInt(cell(colLocationNumber)),
		Street1:             cell(colStreet1),
		Street2:             cell(colStreet2),
		City:                cell(colCity),
		State:               cell(colState),
		PostalCode:          cell(colPostalCode),
		BuildingDescription: cell(colDescription),
		BuildingValue:       parseAmount(cell(colBuildingValue)),
		ContentsValue:       parseAmount(cell(colContentsValue)),
		BusinessIncomeValue: parseAmount(cell(colBusinessIncome)),
		ConstructionType:    cell(colConstruction),
		YearBuilt:           parseInt(cell(colYearBuilt)),
		SquareFootage:       parseInt(cell(colSquareFootage)),
	}
	if loc.Street1 == "" && loc.City == "" {
		return domain.ExposureLocation{}, false
	}
	// Totals rows repeat the value columns without an address.
	if strings.EqualFold(loc.Street1, "total") || strings.EqualFold(loc.Street1, "totals") {
		return domain.ExposureLocation{}, false
	}
	return loc, true
}

func normalizeHeader(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func parseAmount(s string) *float64 {
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func parseInt(s string) *int {
	v := parseAmount(s)
	if v == nil {
		return nil
	}
	n := int(math.Round(*v))
	return &n
}
