// Package query derives the effective search string from the user's input,
// their stored profile, and a fixed fallback.
package query

import "strings"

// DefaultFallback is searched when neither the user nor the profile supplies
// a query.
const DefaultFallback = "developer jobs"

// Source identifies which input won precedence.
type Source string

const (
	SourceExplicit Source = "explicit"
	SourceProfile  Source = "profile"
	SourceFallback Source = "fallback"
	SourceNone     Source = "none"
)

// Normalize returns the query to search for. An explicit query wins when it
// has non-blank content and is returned untrimmed. Otherwise a non-blank
// profile job title is used, otherwise fallback. An empty profileJobTitle
// means there is no profile preference.
func Normalize(explicitQuery, profileJobTitle, fallback string) string {
	q, _ := Resolve(explicitQuery, profileJobTitle, fallback)
	return q
}

// Resolve is Normalize that also reports which input was chosen.
func Resolve(explicitQuery, profileJobTitle, fallback string) (string, Source) {
	switch {
	case strings.TrimSpace(explicitQuery) != "":
		return explicitQuery, SourceExplicit
	case strings.TrimSpace(profileJobTitle) != "":
		return profileJobTitle, SourceProfile
	case strings.TrimSpace(fallback) != "":
		return fallback, SourceFallback
	default:
		return fallback, SourceNone
	}
}

// ShouldFetch reports whether q is worth sending to the API.
func ShouldFetch(q string) bool {
	return strings.TrimSpace(q) != ""
}
