package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"github.com/pivolan/crime_stats/domain/models"
)

// Options controls how a wide-format table is read.
type Options struct {
	// Encoding is auto, utf-8 or cp949. Ignored for xlsx.
	Encoding string
	// Sheet selects the xlsx sheet; the first sheet when empty.
	Sheet string
	// Delimiter for CSV. If 0, auto-detects among ',', ';', '\t'.
	Delimiter rune
	// CategoryColumn and SubcategoryColumn name the id columns. When a name is not
	// found the first and second columns are used.
	CategoryColumn    string
	SubcategoryColumn string
}

func DefaultOptions() Options {
	return Options{
		Encoding:          EncodingAuto,
		CategoryColumn:    "범죄대분류",
		SubcategoryColumn: "범죄중분류",
	}
}

var ErrNoHeader = errors.New("table has no header row")

// Load reads a wide-format file (csv, tsv or xlsx, optionally zip/gz/lz4 compressed)
// and reshapes it into an immutable long-format Table.
func Load(path string, opt Options) (*Table, error) {
	started := time.Now()

	tmp, err := os.MkdirTemp("", "crime_stats")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	source := path
	unpacked, err := unpackArchive(path, tmp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", filepath.Base(path), err)
	}
	if unpacked != "" {
		source = unpacked
	}

	var rows [][]string
	if strings.EqualFold(filepath.Ext(source), ".xlsx") {
		rows, err = readXLSX(source, opt.Sheet)
	} else {
		rows, err = readDelimited(source, opt)
	}
	if err != nil {
		return nil, err
	}

	table, err := FromRows(rows, opt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	table.source = path

	log.Info().
		Str("path", path).
		Int("records", table.Len()).
		Int("categories", len(table.categories)).
		Int("regions", len(table.regions)).
		Dur("duration", time.Since(started)).
		Msg("table loaded")
	return table, nil
}

func readDelimited(path string, opt Options) ([][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	text, err := decodeText(raw, opt.Encoding)
	if err != nil {
		return nil, err
	}
	delim := opt.Delimiter
	if delim == 0 && strings.EqualFold(filepath.Ext(path), ".tsv") {
		delim = '\t'
	}
	return readCSV(text, delim)
}

func readXLSX(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("xlsx %s has no sheets", filepath.Base(path))
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

// FromRows reshapes wide rows (header first) into long-format records: every column
// other than the two id columns is a region and its cells are counts.
func FromRows(rows [][]string, opt Options) (*Table, error) {
	if len(rows) == 0 {
		return nil, ErrNoHeader
	}
	header := AnalyzeHeaders(rows[0])
	if header == nil || header.FirstRowIsData {
		return nil, ErrNoHeader
	}
	if len(header.Headers) < 3 {
		return nil, fmt.Errorf("expected category, subcategory and at least one region column, got %d columns", len(header.Headers))
	}

	catIdx := columnIndex(header.Headers, opt.CategoryColumn, 0)
	subIdx := columnIndex(header.Headers, opt.SubcategoryColumn, 1)
	if catIdx == subIdx {
		return nil, fmt.Errorf("category and subcategory resolve to the same column %q", header.Headers[catIdx])
	}

	var regionIdx []int
	for i := range header.Headers {
		if i != catIdx && i != subIdx {
			regionIdx = append(regionIdx, i)
		}
	}

	data := rows[1:]
	records := make([]models.Record, 0, len(data)*len(regionIdx))
	coerced := 0
	for _, row := range data {
		category := NormalizeLabel(cell(row, catIdx))
		subcategory := NormalizeLabel(cell(row, subIdx))
		if category == "" && subcategory == "" {
			continue
		}
		for _, ri := range regionIdx {
			raw := cell(row, ri)
			count := ParseCount(raw)
			if count == 0 && strings.TrimSpace(raw) != "0" {
				coerced++
			}
			records = append(records, models.Record{
				Category:    category,
				Subcategory: subcategory,
				Region:      header.Headers[ri],
				Count:       count,
			})
		}
	}

	for _, ri := range regionIdx {
		column := make([]string, 0, len(data))
		for _, row := range data {
			column = append(column, cell(row, ri))
		}
		if len(column) > 0 && !isNumericData(column) {
			log.Warn().Str("region", header.Headers[ri]).Msg("region column is mostly non-numeric, cells counted as 0")
		}
	}
	if coerced > 0 {
		log.Debug().Int("cells", coerced).Msg("missing or non-numeric counts coerced to 0")
	}

	return NewTable(records), nil
}

func columnIndex(headers []string, name string, fallback int) int {
	name = NormalizeLabel(name)
	for i, h := range headers {
		if name != "" && h == name {
			return i
		}
	}
	if name != "" {
		log.Warn().Str("column", name).Int("fallback", fallback+1).Msg("id column not found, using positional column")
	}
	return fallback
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
