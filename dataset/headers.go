package dataset

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// HeaderAnalysis describes the first row of a wide table.
type HeaderAnalysis struct {
	Headers        []string // cleaned, unique header names
	FirstRowIsData bool     // the first row looks like data rather than headers
}

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),
	regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`),
	regexp.MustCompile(`^\d{2}\.\d{2}\.\d{4}$`),
	regexp.MustCompile(`^\d{4}-\d{2}-\d{2}\s\d{2}:\d{2}:\d{2}$`),
}

// AnalyzeHeaders cleans the first row of a table and decides whether it is a header row.
// Region names repeat across sheets, so duplicates are suffixed with _1, _2, ...
func AnalyzeHeaders(firstRow []string) *HeaderAnalysis {
	if len(firstRow) == 0 {
		return nil
	}

	result := &HeaderAnalysis{Headers: make([]string, len(firstRow))}

	headerLike := 0
	for _, field := range firstRow {
		if isLikelyHeader(field) {
			headerLike++
		}
	}

	if float64(headerLike)/float64(len(firstRow)) >= 0.5 {
		for i, header := range firstRow {
			result.Headers[i] = cleanHeaderName(header, i)
		}
	} else {
		result.FirstRowIsData = true
		for i := range firstRow {
			result.Headers[i] = generateColumnName(i)
		}
	}

	result.Headers = ValidateHeaders(result.Headers)
	return result
}

// isLikelyHeader reports whether text reads like a column name: not a number or date, mostly letters.
func isLikelyHeader(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	if _, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", ""), 64); err == nil {
		return false
	}
	for _, p := range datePatterns {
		if p.MatchString(text) {
			return false
		}
	}

	letters, others := 0, 0
	for _, r := range text {
		switch {
		case unicode.IsLetter(r):
			letters++
		case unicode.IsSpace(r):
		default:
			others++
		}
	}
	total := letters + others
	if total == 0 {
		return false
	}
	return letters > 0 && float64(letters)/float64(total) >= 0.3
}

func generateColumnName(index int) string {
	return fmt.Sprintf("column_%d", index+1)
}

// ValidateHeaders suffixes duplicate names so every header is unique.
func ValidateHeaders(headers []string) []string {
	seen := make(map[string]int)
	result := make([]string, len(headers))

	for i, header := range headers {
		original := header
		counter := 1
		for {
			if _, exists := seen[header]; exists {
				header = fmt.Sprintf("%s_%d", original, counter)
				counter++
				continue
			}
			seen[header] = 1
			break
		}
		result[i] = header
	}
	return result
}

// cleanHeaderName keeps Hangul labels intact: it only trims, strips the BOM and normalizes to NFC.
func cleanHeaderName(header string, index int) string {
	header = NormalizeLabel(header)
	if header == "" {
		return generateColumnName(index)
	}
	return header
}

// NormalizeLabel trims a categorical value and normalizes it to NFC so that
// decomposed Hangul (common in files saved on macOS) matches gazetteer prefixes.
func NormalizeLabel(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	return norm.NFC.String(strings.TrimSpace(s))
}

// isNumericData reports whether at least 80% of values parse as numbers.
func isNumericData(values []string) bool {
	if len(values) == 0 {
		return false
	}
	numeric := 0
	for _, value := range values {
		if _, ok := parseNumber(value); ok {
			numeric++
		}
	}
	return float64(numeric)/float64(len(values)) >= 0.8
}
