package normalize

import (
	"regexp"
	"strings"
)

// Roles is the closed vocabulary of contact titles.
var Roles = []string{"Director", "Owner", "Primary Caregiver", "Other"}

var titlePattern = rolePattern(Roles)

func rolePattern(roles []string) *regexp.Regexp {
	quoted := make([]string, len(roles))
	for i, r := range roles {
		quoted[i] = regexp.QuoteMeta(r)
	}
	return regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)\b`)
}

// Title returns the first role word found in the text form of v, matched
// case-sensitively on word boundaries, or nil.
func Title(v any) *string {
	if v == nil {
		return nil
	}
	m := titlePattern.FindStringSubmatch(Text(v))
	if m == nil {
		return nil
	}
	return &m[1]
}
