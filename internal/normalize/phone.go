package normalize

import "regexp"

var nonDigit = regexp.MustCompile(`\D`)

// Phone strips every non-digit character from the text form of v.
func Phone(v any) string {
	return nonDigit.ReplaceAllString(Text(v), "")
}
