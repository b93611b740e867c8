package services

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// PropertyRow is one incoming property record from the bulk feed. Every
// column is read as text; typed conversion happens when the row is applied.
type PropertyRow struct {
	Code           string
	Registration   string
	TaxpayerNumber string
	Street         string
	Number         string
	Neighborhood   string
	Complement     string
	LotArea        string
	CorporateName  string
	LotCode        string
}

// Column order of the intake spreadsheet. The first row is a header and is
// skipped.
const (
	colCode = iota
	colRegistration
	colTaxpayerNumber
	colStreet
	colNumber
	colNeighborhood
	colComplement
	colLotArea
	colCorporateName
	colLotCode
	sheetColumnCount
)

// ParseSheet reads the first worksheet of an uploaded spreadsheet into
// property rows. Blank-like rows (no code and no registration) are dropped
// and all cells are normalized to trimmed text.
func ParseSheet(r io.Reader) ([]PropertyRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("spreadsheet has no worksheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read worksheet %q: %w", sheets[0], err)
	}

	cell := func(row []string, idx int) string {
		if idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var results []PropertyRow
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		record := PropertyRow{
			Code:           cell(row, colCode),
			Registration:   cell(row, colRegistration),
			TaxpayerNumber: cell(row, colTaxpayerNumber),
			Street:         cell(row, colStreet),
			Number:         cell(row, colNumber),
			Neighborhood:   cell(row, colNeighborhood),
			Complement:     cell(row, colComplement),
			LotArea:        cell(row, colLotArea),
			CorporateName:  cell(row, colCorporateName),
			LotCode:        cell(row, colLotCode),
		}
		if record.Code == "" && record.Registration == "" {
			continue
		}
		results = append(results, record)
	}
	return results, nil
}

// parseArea converts a textual lot area to a number. Feeds use both comma
// and dot decimal separators; blank or unparsable values become nil.
func parseArea(s string) *float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
