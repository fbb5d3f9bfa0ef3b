package payment

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// formatAmount renders cents as the "49.00" decimal string providers expect.
func formatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

var amountPattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

// parseAmount converts a decimal string such as "49.00" or "49.5" into cents.
// Signs, exponents and bare dots are rejected. Parsing is done on the digits
// so no float rounding creeps in.
func parseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if !amountPattern.MatchString(s) {
		return 0, fmt.Errorf("amount %q: invalid", s)
	}
	whole, frac, _ := strings.Cut(s, ".")
	for len(frac) < 2 {
		frac += "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w > math.MaxInt64/100-1 {
		return 0, fmt.Errorf("amount %q: out of range", s)
	}
	f, _ := strconv.ParseInt(frac, 10, 64)
	return w*100 + f, nil
}
