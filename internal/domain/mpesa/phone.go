package mpesa

import (
	"errors"
	"strings"
)

var ErrInvalidPhone = errors.New("phone number must be a Kenyan mobile number (07XXXXXXXX, 01XXXXXXXX or 2547XXXXXXXX)")

// NormalizePhone returns the 2547XXXXXXXX / 2541XXXXXXXX form the provider
// expects. Spaces, dashes and a leading + are tolerated.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	var subscriber string
	switch {
	case len(digits) == 12 && strings.HasPrefix(digits, "254"):
		subscriber = digits[3:]
	case len(digits) == 10 && digits[0] == '0':
		subscriber = digits[1:]
	case len(digits) == 9:
		subscriber = digits
	default:
		return "", ErrInvalidPhone
	}
	if subscriber[0] != '7' && subscriber[0] != '1' {
		return "", ErrInvalidPhone
	}
	return "254" + subscriber, nil
}
