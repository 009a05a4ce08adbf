package engine

import (
	"regexp"
	"strings"
)

var (
	nonIdentifierChars = regexp.MustCompile(`[^A-Za-z0-9_]`)
	plainIdentifier    = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	joinColumnPattern  = regexp.MustCompile(`^[A-Za-z0-9_.\s]+$`)
	aliasSeparator     = regexp.MustCompile(`(?i)\s+as\s+`)
)

// SanitizeIdentifier strips every character outside [A-Za-z0-9_].
// "users;--" becomes "users" and ";;;" becomes "".
func SanitizeIdentifier(name string) string {
	return nonIdentifierChars.ReplaceAllString(name, "")
}

// IsPlainIdentifier reports whether name is a non-empty [A-Za-z0-9_] word.
func IsPlainIdentifier(name string) bool {
	return plainIdentifier.MatchString(name)
}

// IsSafeJoinColumn reports whether a join column expression may be placed
// into the select list verbatim. Only identifiers, dots and whitespace are
// allowed, so "name as n" passes and "id, (SELECT 1)" does not.
func IsSafeJoinColumn(expr string) bool {
	return joinColumnPattern.MatchString(expr)
}

// ResultKey returns the name a join column expression has in a result row:
// the alias for "col as alias", the column for "tbl.col", else the
// expression itself.
func ResultKey(expr string) string {
	parts := aliasSeparator.Split(strings.TrimSpace(expr), 2)
	if len(parts) == 2 {
		return strings.TrimSpace(parts[1])
	}
	key := strings.TrimSpace(parts[0])
	if i := strings.LastIndex(key, "."); i >= 0 {
		return key[i+1:]
	}
	return key
}
