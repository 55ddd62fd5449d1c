package normalize

import "strings"

const (
	phoneMinDigits = 8
	phoneMaxDigits = 15
)

// Phone normalizes a raw phone value to a digits-only string suitable for
// the messaging channel. It strips "+", "-", and spaces; anything else
// non-numeric, or a result outside 8-15 digits, is rejected. Rejected values
// are excluded from the recipient set entirely, never retried raw.
func Phone(raw string) (string, bool) {
	s := strings.NewReplacer("+", "", "-", "", " ", "").Replace(strings.TrimSpace(raw))
	if s == "" {
		return "", false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	if len(s) < phoneMinDigits || len(s) > phoneMaxDigits {
		return "", false
	}
	return s, true
}
