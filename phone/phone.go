// Package phone canonicalizes user-entered phone numbers to E.164.
package phone

import "strings"

// Normalize maps an arbitrary phone string to E.164 using US-centric rules:
//
//	10 digits              -> +1XXXXXXXXXX
//	11 digits starting "1" -> +1XXXXXXXXXX
//	anything else          -> "+" followed by the digits
//
// It never fails. Whether the number is real is decided by delivery, not here.
func Normalize(raw string) string {
	digits := Digits(raw)
	switch {
	case len(digits) == 10:
		return "+1" + digits
	case len(digits) == 11 && digits[0] == '1':
		return "+" + digits
	case digits != "":
		return "+" + digits
	}
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "+") {
		return s
	}
	return "+" + s
}

// Digits returns only the ASCII digits of s.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Hint returns the last four digits of a phone number, or "" when it has fewer than four.
func Hint(p string) string {
	d := Digits(p)
	if len(d) < 4 {
		return ""
	}
	return d[len(d)-4:]
}
