// Package plan derives human-reviewable change information from the store:
// the remote-change summary recomputed on every pull, and the plan of
// queued-but-unapplied local mutations. Neither computation touches the
// network.
package plan

import (
	"sort"
	"strings"

	"github.com/steveyegge/tether/internal/record"
)

// NamedFields are the changelog fields tracked individually in the
// remote-change summary. Everything else (apart from title, description,
// labels, and components, which get their own treatment) is counted
// generically.
var NamedFields = map[string]bool{
	"assignee":             true,
	"status":               true,
	"priority":             true,
	"reporter":             true,
	"resolution":           true,
	"duedate":              true,
	"timeestimate":         true,
	"timeoriginalestimate": true,
	"story points":         true,
	"sprint":               true,
	"fix version":          true,
}

// Summarize classifies remote revision-history entries newer than the
// record's last read. It satisfies record.Summarizer and runs during Save.
//
// New comments are detected by comparing stored comment counts rather than
// the history stream, which does not reliably carry comment-add events.
// Returns nil when the record has never been read or nothing changed after
// the read: an unread record is wholly "new", not "diffed".
func Summarize(rec *record.Record, prev *record.LocalState, extras record.Extras) *record.ChangeSummary {
	if prev == nil || prev.LastRead == nil {
		return nil
	}
	lastRead := *prev.LastRead

	var s record.ChangeSummary
	named := make(map[string]bool)
	labelsAdded := make(map[string]bool)
	labelsRemoved := make(map[string]bool)
	compsAdded := make(map[string]bool)
	compsRemoved := make(map[string]bool)

	for _, entry := range extras.History {
		if !entry.Created.After(lastRead) {
			continue
		}
		for _, item := range entry.Items {
			field := strings.ToLower(item.Field)
			switch {
			case field == "summary":
				s.Title = true
			case field == "description":
				s.Description = true
			case field == "labels":
				diffSets(item.FromString, item.ToString, labelsAdded, labelsRemoved)
			case field == "component" || field == "components":
				if item.ToString != "" {
					compsAdded[item.ToString] = true
				}
				if item.FromString != "" {
					compsRemoved[item.FromString] = true
				}
			case NamedFields[field]:
				named[field] = true
			default:
				s.OtherFields++
			}
		}
	}

	s.NamedFields = sortedKeys(named)
	s.LabelsAdded = sortedKeys(labelsAdded)
	s.LabelsRemoved = sortedKeys(labelsRemoved)
	s.ComponentsAdded = sortedKeys(compsAdded)
	s.ComponentsRemoved = sortedKeys(compsRemoved)

	if prev.Previous != nil {
		if delta := len(rec.Comments) - prev.Previous.CommentCount; delta > 0 {
			s.NewComments = delta
		}
	}

	if s.Empty() {
		return nil
	}
	return &s
}

// diffSets treats the from/to strings as whitespace-separated sets and
// records membership changes. Label changelog entries carry the whole set
// on both sides of the change.
func diffSets(from, to string, added, removed map[string]bool) {
	before := make(map[string]bool)
	for _, v := range strings.Fields(from) {
		before[v] = true
	}
	after := make(map[string]bool)
	for _, v := range strings.Fields(to) {
		after[v] = true
	}
	for v := range after {
		if !before[v] {
			added[v] = true
		}
	}
	for v := range before {
		if !after[v] {
			removed[v] = true
		}
	}
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
