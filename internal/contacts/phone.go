package contacts

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// NormalizePhone converts a raw sender address into E.164 form.
// Separators are stripped, a leading 00 is read as an international prefix and national
// numbers get the country code of defaultRegion.
func NormalizePhone(raw, defaultRegion string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrInvalidAddress
	}
	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')' || r == '/':
		default:
			return "", fmt.Errorf("%w: unexpected character %q", ErrInvalidAddress, r)
		}
	}
	digits := b.String()
	if strings.HasPrefix(digits, "00") {
		digits = "+" + digits[2:]
	}

	num, err := phonenumbers.Parse(digits, defaultRegion)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	out := phonenumbers.Format(num, phonenumbers.E164)

	// E.164 allows at most 15 digits; anything under 8 is a short code or garbage.
	if n := len(out) - 1; n < 8 || n > 15 {
		return "", fmt.Errorf("%w: %d digits", ErrInvalidAddress, n)
	}
	return out, nil
}
