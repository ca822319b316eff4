package scraper

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	nonPriceChars  = regexp.MustCompile(`[^0-9,.]`)
	leadingDecimal = regexp.MustCompile(`^[0-9]*\.?[0-9]*`)
	nonDigits      = regexp.MustCompile(`[^0-9]`)
)

// commaDecimalLocales write prices as 1.234,56
var commaDecimalLocales = map[string]bool{
	".com.tr": true,
	".es":     true,
	".fr":     true,
	".it":     true,
	".de":     true,
}

// NormalizePrice parses a displayed price for the storefront locale,
// rounded to two decimals. It returns nil when no number is present.
func NormalizePrice(text string, locale string) *float64 {
	cleaned := nonPriceChars.ReplaceAllString(text, "")
	if cleaned == "" {
		return nil
	}

	if commaDecimalLocales[locale] {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	} else {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	// Concatenated price nodes leave trailing garbage; the leading number wins
	number := leadingDecimal.FindString(cleaned)
	if number == "" || number == "." {
		return nil
	}

	value, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return nil
	}

	rounded := math.Round(value*100) / 100
	return &rounded
}

// StockCount returns the digits of an availability text as a number, nil when there are none
func StockCount(text string) *int {
	digits := nonDigits.ReplaceAllString(text, "")
	if digits == "" {
		return nil
	}

	count, err := strconv.Atoi(digits)
	if err != nil {
		return nil
	}
	return &count
}
