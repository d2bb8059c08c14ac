package duck

import (
	"regexp"
	"strings"
)

// destructiveKeywords matches write/DDL keywords as standalone tokens in
// the uppercased statement. Word boundaries keep identifiers like
// created_at or updated_at from triggering a rejection.
var destructiveKeywords = regexp.MustCompile(
	`\b(DROP|DELETE|UPDATE|INSERT|ALTER|TRUNCATE|CREATE|REPLACE)\b`)

// ValidateQuery is the safety gate at the data-manager boundary. It is a
// second, independent check after the translator's own validation: a
// statement is allowed only if it starts with SELECT or WITH and carries
// no destructive keyword, regardless of case.
func ValidateQuery(query string) bool {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return false
	}
	upper := strings.ToUpper(trimmed)
	if destructiveKeywords.MatchString(upper) {
		return false
	}
	return strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "WITH")
}
