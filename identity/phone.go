package identity

import (
	"fmt"
	"strings"
)

const phoneEmailDomain = "phone.local"

// PhoneEmail builds the identifier used when an account is created with a phone
// number instead of an email address, e.g. "+15551234567@phone.local".
func PhoneEmail(countryCode, number string) (string, error) {
	cc := strings.TrimSpace(countryCode)
	if !strings.HasPrefix(cc, "+") {
		cc = "+" + cc
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)

	if len(cc) < 2 || strings.TrimLeft(cc[1:], "0123456789") != "" {
		return "", fmt.Errorf("invalid country code %q", countryCode)
	}
	if digits == "" {
		return "", fmt.Errorf("phone number %q has no digits", number)
	}
	return fmt.Sprintf("%s%s@%s", cc, digits, phoneEmailDomain), nil
}
