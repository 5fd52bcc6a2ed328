package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	nonName     = regexp.MustCompile(`[^A-Z\- ]`)
	nonPostcode = regexp.MustCompile(`[^A-Z0-9]`)
	nonDigit    = regexp.MustCompile(`[^0-9]`)

	ukPostcode = regexp.MustCompile(`^([A-Z][A-HJ-Y]?\d[A-Z\d]? ?\d[A-Z]{2}|GIR ?0A{2})$`)
	money      = regexp.MustCompile(`^£?(\d{1,3}(,\d{3})*|(\d+))(\.\d{2})?$`)
)

// SanitiseName upper-cases s and keeps only letters, dashes and spaces.
func SanitiseName(s string) string {
	return strings.TrimSpace(nonName.ReplaceAllString(strings.ToUpper(s), ""))
}

// SanitisePostcode upper-cases p and keeps only letters and digits, so
// "s10 3ag" becomes "S103AG".
func SanitisePostcode(p string) string {
	return nonPostcode.ReplaceAllString(strings.ToUpper(p), "")
}

// SanitisePrice keeps only the digits of m.
func SanitisePrice(m string) string {
	return nonDigit.ReplaceAllString(m, "")
}

// TitleCase capitalises the first letter of every word and lowers the rest.
func TitleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		words[i] = strings.ToUpper(string(r[:1])) + strings.ToLower(string(r[1:]))
	}
	return strings.Join(words, " ")
}

// FormatPostcode inserts the space before the inward code: "S103AG" -> "S10 3AG".
func FormatPostcode(postcode string) string {
	if len(postcode) <= 3 {
		return postcode
	}
	n := len(postcode)
	return postcode[:n-3] + " " + postcode[n-3:]
}

// FormatMoney renders pence as pounds, e.g. 12345 -> "£123.45".
func FormatMoney(pence int64) string {
	sign := ""
	if pence < 0 {
		sign = "-"
		pence = -pence
	}
	return fmt.Sprintf("%s£%d.%02d", sign, pence/100, pence%100)
}

// IsValidPostcode reports whether p is a UK postcode once sanitised.
func IsValidPostcode(p string) bool {
	return ukPostcode.MatchString(SanitisePostcode(p))
}

// IsValidMoney accepts amounts like "£1,234.50", "12" or "12.00".
func IsValidMoney(m string) bool {
	return money.MatchString(m)
}

// ParseMoney converts an amount accepted by IsValidMoney to pence. Whole
// pounds may omit the pence: "12" is 1200.
func ParseMoney(m string) (int64, error) {
	m = strings.TrimSpace(m)
	if !IsValidMoney(m) {
		return 0, fmt.Errorf("invalid amount %q", m)
	}
	pence, err := strconv.ParseInt(SanitisePrice(m), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", m, err)
	}
	if !strings.Contains(m, ".") {
		pence *= 100
	}
	return pence, nil
}
