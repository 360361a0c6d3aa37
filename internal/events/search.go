package events

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldTransformer strips diacritics after NFD decomposition. Badge desks
// type "Jose" and expect to find "José".
var foldTransformer = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// NormalizeSearch lowercases and diacritic-folds a string for participant
// search. The folded form is stored alongside each registration and matched
// against the folded query.
func NormalizeSearch(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// searchText builds the stored search document for a participant.
func searchText(p *Participant) string {
	return NormalizeSearch(strings.Join([]string{p.FirstName, p.LastName, p.Email, p.Company}, " "))
}
