package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

const (
	EncodingAuto  = "auto"
	EncodingUTF8  = "utf-8"
	EncodingCP949 = "cp949"
)

// decodeText converts raw file bytes to UTF-8. In auto mode valid UTF-8 is kept
// and anything else is read as CP949 (EUC-KR), the encoding Korean statistics exports ship in.
func decodeText(raw []byte, encoding string) ([]byte, error) {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	switch strings.ToLower(encoding) {
	case EncodingUTF8, "utf8":
		return raw, nil
	case EncodingCP949, "euc-kr", "euckr":
		return decodeCP949(raw)
	case "", EncodingAuto:
		if utf8.Valid(raw) {
			return raw, nil
		}
		return decodeCP949(raw)
	}
	return nil, fmt.Errorf("unsupported encoding %q", encoding)
}

func decodeCP949(raw []byte) ([]byte, error) {
	out, err := io.ReadAll(transform.NewReader(bytes.NewReader(raw), korean.EUCKR.NewDecoder()))
	if err != nil {
		return nil, fmt.Errorf("decode cp949: %w", err)
	}
	return out, nil
}

// sniffDelimiter picks the most frequent of ',', ';' and '\t' on the first line.
func sniffDelimiter(text []byte) rune {
	line := text
	if i := bytes.IndexByte(text, '\n'); i >= 0 {
		line = text[:i]
	}
	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if c := bytes.Count(line, []byte(string(d))); c > bestCount {
			best, bestCount = d, c
		}
	}
	return best
}

func readCSV(text []byte, delimiter rune) ([][]string, error) {
	if delimiter == 0 {
		delimiter = sniffDelimiter(text)
	}
	r := csv.NewReader(bytes.NewReader(text))
	r.Comma = delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

// parseNumber accepts plain and thousands-separated numbers.
func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ParseCount coerces a raw cell to a non-negative count. Missing, non-numeric,
// negative and out-of-range cells become 0; fractional values are truncated.
func ParseCount(s string) int64 {
	v, ok := parseNumber(s)
	if !ok || v <= 0 || v >= float64(math.MaxInt64) {
		return 0
	}
	return int64(v)
}
