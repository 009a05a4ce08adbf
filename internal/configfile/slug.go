package configfile

import (
	"regexp"
	"strings"
)

var (
	slugInvalid = regexp.MustCompile(`[^a-z0-9_\-\s]+`)
	slugRuns    = regexp.MustCompile(`[_\-\s]+`)
)

// Slug lowercases s and joins its words with sep. "User Profiles" and
// "user-profiles" both become "user_profiles" for sep "_".
func Slug(s, sep string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "@", " at ")
	s = slugInvalid.ReplaceAllString(s, "")
	s = slugRuns.ReplaceAllString(s, sep)
	return strings.Trim(s, sep)
}

// KeySlug is the slug used for endpoint keys.
func KeySlug(s string) string { return Slug(s, "_") }

// RouteSlug is the slug used for endpoint routes.
func RouteSlug(s string) string { return Slug(s, "-") }
