// Package numeric interprets the locale-formatted number tokens stored for historical data.
//
// Tokens are kept verbatim in storage; this package is the only place they are turned into numbers,
// and it never goes through float64.
package numeric

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/mse-market-data/internal/models"
)

// ErrEmpty is returned for tokens that contain no digits at all
var ErrEmpty = errors.New("empty numeric token")

// Parse converts a feed token such as "1,200.00", "1.200,00", "1200,00" or "-0,25 %" to a decimal.
//
// When both separators appear, the rightmost one is the decimal separator. A separator that occurs more
// than once is a thousands separator. A single comma between one to three leading digits and exactly
// three trailing digits ("1,200") is read as grouping, as the English-locale feed writes it; any other
// single separator is the decimal point.
func Parse(token string) (decimal.Decimal, error) {
	s := normalize(token)
	if s == "" {
		return decimal.Zero, ErrEmpty
	}

	sign := ""
	switch s[0] {
	case '-', '+':
		if s[0] == '-' {
			sign = "-"
		}
		s = s[1:]
	}
	if s == "" {
		return decimal.Zero, fmt.Errorf("invalid numeric token %q", token)
	}

	lastComma := strings.LastIndexByte(s, ',')
	lastDot := strings.LastIndexByte(s, '.')

	var intPart, fracPart string
	switch {
	case lastComma >= 0 && lastDot >= 0:
		decimalSep := byte('.')
		groupSep := ","
		if lastComma > lastDot {
			decimalSep = ','
			groupSep = "."
		}
		idx := strings.LastIndexByte(s, decimalSep)
		intPart = strings.ReplaceAll(s[:idx], groupSep, "")
		fracPart = s[idx+1:]
	case lastComma >= 0:
		intPart, fracPart = splitSingle(s, ",", true)
	case lastDot >= 0:
		intPart, fracPart = splitSingle(s, ".", false)
	default:
		intPart = s
	}

	if !allDigits(intPart) || !allDigits(fracPart) || (intPart == "" && fracPart == "") {
		return decimal.Zero, fmt.Errorf("invalid numeric token %q", token)
	}
	if intPart == "" {
		intPart = "0"
	}

	canonical := sign + intPart
	if fracPart != "" {
		canonical += "." + fracPart
	}
	d, err := decimal.NewFromString(canonical)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid numeric token %q: %w", token, err)
	}
	return d, nil
}

// splitSingle handles tokens containing only one kind of separator
func splitSingle(s, sep string, groupingOnThree bool) (string, string) {
	if strings.Count(s, sep) > 1 {
		return strings.ReplaceAll(s, sep, ""), ""
	}
	idx := strings.Index(s, sep)
	frac := s[idx+1:]
	whole := s[:idx]
	if groupingOnThree && len(frac) == 3 && whole != "" && len(whole) <= 3 && whole[0] != '0' {
		return whole + frac, ""
	}
	return whole, frac
}

func normalize(token string) string {
	s := strings.TrimSpace(token)
	s = strings.TrimSuffix(s, "%")
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\u00a0', '\u202f':
			return -1
		}
		return r
	}, s)
	return s
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Values is the parsed view of a HistoricalDataPoint. Empty tokens yield an invalid NullDecimal.
type Values struct {
	ID            int64               `json:"id"`
	IssuerCode    string              `json:"issuerCode"`
	Date          models.Date         `json:"date"`
	LastPrice     decimal.NullDecimal `json:"lastPrice"`
	MaxPrice      decimal.NullDecimal `json:"maxPrice"`
	MinPrice      decimal.NullDecimal `json:"minPrice"`
	AvgPrice      decimal.NullDecimal `json:"avgPrice"`
	PercentChange decimal.NullDecimal `json:"percentChange"`
	Quantity      decimal.NullDecimal `json:"quantity"`
	TurnoverBest  decimal.NullDecimal `json:"turnoverBest"`
	TotalTurnover decimal.NullDecimal `json:"totalTurnover"`
}

// ParseValues parses every numeric field of p. The error names the first field that failed.
func ParseValues(p *models.HistoricalDataPoint) (*Values, error) {
	v := &Values{ID: p.ID, IssuerCode: p.IssuerCode, Date: p.Date}

	fields := []struct {
		name  string
		token string
		dst   *decimal.NullDecimal
	}{
		{"lastPrice", p.LastPrice, &v.LastPrice},
		{"maxPrice", p.MaxPrice, &v.MaxPrice},
		{"minPrice", p.MinPrice, &v.MinPrice},
		{"avgPrice", p.AvgPrice, &v.AvgPrice},
		{"percentChange", p.PercentChange, &v.PercentChange},
		{"quantity", p.Quantity, &v.Quantity},
		{"turnoverBest", p.TurnoverBest, &v.TurnoverBest},
		{"totalTurnover", p.TotalTurnover, &v.TotalTurnover},
	}
	for _, f := range fields {
		d, err := Parse(f.token)
		if errors.Is(err, ErrEmpty) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = decimal.NewNullDecimal(d)
	}
	return v, nil
}
