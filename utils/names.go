package utils

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.Und)

// NormalizeDisplayName tidies a free-form attendee name as entered at
// booking time: collapses whitespace and title-cases it for bibs and the
// check-in screen.
func NormalizeDisplayName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return titleCaser.String(strings.Join(fields, " "))
}
