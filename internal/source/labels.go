package source

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var labelReplacer = strings.NewReplacer(" ", "_", "-", "_", "/", "_")

// Canonical lower-cases a corpus label and joins its words with underscores.
func Canonical(label string) string {
	label = cases.Lower(language.Und).String(strings.TrimSpace(label))
	label = labelReplacer.Replace(label)
	for strings.Contains(label, "__") {
		label = strings.ReplaceAll(label, "__", "_")
	}
	return strings.Trim(label, "_")
}

// DisplayName renders a canonical category for tables, e.g. "pen_clicking" as "Pen Clicking".
func DisplayName(category string) string {
	return cases.Title(language.Und).String(strings.ReplaceAll(category, "_", " "))
}
