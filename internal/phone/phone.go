// Package phone turns the many ways a phone number gets written into keys
// that can be compared, stored and displayed.
package phone

import (
	"strconv"
	"strings"
)

// Unknown is what Display returns for an empty number.
const Unknown = "Unknown"

// Digits strips every non-digit character.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Normalize returns the canonical comparison key of a number. An 11 digit
// number with the leading country code 1 is reduced to its 10 digit form.
// Empty when s carries no digits.
func Normalize(s string) string {
	d := Digits(s)
	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	}
	return d
}

// Last10 returns the last ten digits of s, or all of them when there are
// fewer. Device-reported numbers come with unpredictable prefixes, so this is
// the key used to match them against stored participants.
func Last10(s string) string {
	d := Digits(s)
	if len(d) > 10 {
		return d[len(d)-10:]
	}
	return d
}

// Display formats a number as +1XXXXXXXXXX. Anything that does not reduce to
// exactly ten digits is returned as given, international numbers included.
func Display(s string) string {
	if strings.TrimSpace(s) == "" {
		return Unknown
	}
	n := Normalize(s)
	if len(n) != 10 {
		return s
	}
	return "+1" + n
}

// ToE164 formats a destination for the gateway. Numbers already starting
// with + are passed through trimmed.
func ToE164(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "+") {
		return s
	}
	return "+1" + Digits(s)
}

// ForStorage formats a participant number before it is persisted.
func ForStorage(s string) string {
	raw := strings.TrimSpace(s)
	d := Digits(raw)
	switch {
	case len(d) == 10:
		return "+1" + d
	case len(d) == 11 && d[0] == '1':
		return "+" + d
	case len(d) > 11:
		return "+" + d
	default:
		return raw
	}
}

// LooksLikePhone reports whether a conversation contact key is a phone number
// rather than a participant id.
func LooksLikePhone(key string) bool {
	if strings.ContainsAny(key, "+-()x ") {
		return true
	}
	n, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return true
	}
	return n > 1000000
}
