package contacts

import (
	"strings"
	"unicode"
)

// DefaultGreeting is used when a contact has no usable name.
const DefaultGreeting = "there"

// NormalizePhone converts a raw table value into an international number.
// All whitespace is removed. A value that already starts with '+' is kept;
// otherwise a single leading '0' is dropped and countryCode is prepended.
func NormalizePhone(raw, countryCode string) string {
	n := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
	if n == "" || strings.HasPrefix(n, "+") {
		return n
	}
	n = strings.TrimPrefix(n, "0")
	return countryCode + n
}

// GreetingName picks the name used in the salutation. The first token is
// used unless it is two characters or fewer and a second token exists, which
// skips honorifics such as "Dr" or "Mr".
func GreetingName(name string) string {
	tokens := strings.Fields(name)
	switch {
	case len(tokens) == 0:
		return DefaultGreeting
	case len([]rune(tokens[0])) <= 2 && len(tokens) > 1:
		return tokens[1]
	default:
		return tokens[0]
	}
}
