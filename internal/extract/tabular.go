package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/thebtf/promptvault/pkg/models"
)

// Tabular reads the first sheet of a spreadsheet. Rows are read top to bottom
// and cells left to right; every text cell becomes one fragment.
type Tabular struct{}

// Format implements Extractor.
func (Tabular) Format() models.SourceFormat { return models.FormatTabular }

// Extract implements Extractor.
func (t Tabular) Extract(ctx context.Context, fileName string, data []byte) ([]models.RawFragment, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx":
		rows, err = readXLSX(data)
	case ".xls":
		rows, err = readXLS(data)
	case ".csv":
		rows, err = readCSV(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(fileName))
	}
	if err != nil {
		return nil, err
	}

	var texts []string
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, cell := range row {
			if isTextCell(cell) {
				texts = append(texts, cell)
			}
		}
	}
	return fragments(texts, fileName, t.Format()), nil
}

// isTextCell reports whether a cell value is text rather than empty, numeric
// or boolean.
func isTextCell(v string) bool {
	s := strings.TrimSpace(v)
	if s == "" {
		return false
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return false
	}
	if strings.EqualFold(s, "true") || strings.EqualFold(s, "false") {
		return false
	}
	return true
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, decodeError("xlsx", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, decodeError("xlsx", err)
	}
	return rows, nil
}

func readXLS(data []byte) (rows [][]string, err error) {
	// The xls reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, decodeError("xls", fmt.Errorf("%v", r))
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, decodeError("xls", err)
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, nil
	}
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			continue
		}
		cells := make([]string, 0, row.LastCol()-row.FirstCol()+1)
		for c := row.FirstCol(); c <= row.LastCol(); c++ {
			cells = append(cells, row.Col(c))
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func readCSV(data []byte) ([][]string, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(strings.NewReader(text))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, decodeError("csv", err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}
