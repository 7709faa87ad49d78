package pull

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// jqlTimeLayout is the minute-resolution timestamp format JQL accepts in
// comparison predicates.
const jqlTimeLayout = "2006-01-02 15:04"

var orderByRe = regexp.MustCompile(`(?i)\border\s+by\b`)

// BuildQuery appends an "updated since" predicate to a base filter
// expression. A zero since returns the base untouched (full refresh).
//
// Any ORDER BY clause in the base is split off and re-appended after the
// injected predicate: ordering clauses are order-sensitive and must remain
// syntactically last.
func BuildQuery(base string, since time.Time) string {
	base = strings.TrimSpace(base)
	if since.IsZero() {
		return base
	}

	filter := base
	ordering := ""
	if loc := orderByRe.FindStringIndex(base); loc != nil {
		filter = strings.TrimSpace(base[:loc[0]])
		ordering = strings.TrimSpace(base[loc[0]:])
	}

	predicate := fmt.Sprintf(`updated > "%s"`, since.UTC().Format(jqlTimeLayout))

	var out string
	switch {
	case filter == "":
		out = predicate
	default:
		out = "(" + filter + ") AND " + predicate
	}
	if ordering != "" {
		out += " " + ordering
	}
	return out
}
