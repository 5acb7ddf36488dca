package view

import (
	"strconv"
	"strings"
)

const (
	thousandsSep = "."
	decimalSep   = ","
)

// FormatPrice renders v with a fixed number of decimals, grouping the integer
// digits in threes from the right.
func FormatPrice(v float64, decimals int) string {
	decimals = max(decimals, 0)
	fixed := strconv.FormatFloat(v, 'f', decimals, 64)

	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}

	intPart, fracPart, _ := strings.Cut(fixed, ".")
	out := sign + group(intPart)
	if fracPart != "" {
		out += decimalSep + fracPart
	}
	return out
}

func group(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(thousandsSep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

func itoa(n int) string { return strconv.Itoa(n) }
