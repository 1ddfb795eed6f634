package crm

import (
	"errors"
	"strings"
)

var ErrBadPhone = errors.New("телефон не распознан")

// NormalizePhone canonicalizes a Russian phone number to +7XXXXXXXXXX.
// Accepts 8-prefixed, 7-prefixed, bare 10-digit and formatted inputs.
func NormalizePhone(raw string) (string, error) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()

	switch {
	case len(d) == 11 && (d[0] == '7' || d[0] == '8'):
		return "+7" + d[1:], nil
	case len(d) == 10:
		return "+7" + d, nil
	default:
		return "", ErrBadPhone
	}
}
