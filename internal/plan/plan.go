package plan

import (
	"sort"
	"strings"

	"github.com/steveyegge/tether/internal/record"
)

// FieldChange is one before/after pair in a record's plan. Before is the
// current stored snapshot value, After the queued pending value.
type FieldChange struct {
	Name   string `json:"name"`
	Before string `json:"before,omitempty"`
	After  string `json:"after"`
}

// LinkChange is one queued link operation.
type LinkChange struct {
	Op      string `json:"op"`
	Type    string `json:"type"`
	FromKey string `json:"from_key"`
	ToKey   string `json:"to_key"`
}

// RecordPlan is the reviewable view of one record's queued work.
type RecordPlan struct {
	ID       string        `json:"id"`
	ShortID  string        `json:"short_id"`
	Host     string        `json:"host"`
	Key      string        `json:"key"`
	Title    string        `json:"title"`
	Fields   []FieldChange `json:"fields,omitempty"`
	Comments []string      `json:"comments,omitempty"`
	Links    []LinkChange  `json:"links,omitempty"`
	Delete   bool          `json:"delete,omitempty"`
}

// Totals aggregates a plan for one-line summaries.
type Totals struct {
	Records      int `json:"records"`
	FieldUpdates int `json:"field_updates"`
	Comments     int `json:"comments"`
	LinkChanges  int `json:"link_changes"`
	Deletions    int `json:"deletions"`
}

// Plan is the full queued-work summary across the store.
type Plan struct {
	Records []RecordPlan `json:"records"`
	Totals  Totals       `json:"totals"`
}

// Empty reports whether no record has queued work.
func (p *Plan) Empty() bool {
	return len(p.Records) == 0
}

// commentPreviewLen bounds queued-comment previews in plan output.
const commentPreviewLen = 60

// Compute derives the plan from the given records. Deterministic for a
// fixed store state: records arrive sorted from the store and fields are
// sorted by name here.
func Compute(records []*record.Record) *Plan {
	p := &Plan{}
	for _, rec := range records {
		if !rec.Local.Dirty() {
			continue
		}
		rp := planRecord(rec)
		p.Records = append(p.Records, rp)

		p.Totals.Records++
		p.Totals.FieldUpdates += len(rp.Fields)
		p.Totals.Comments += len(rp.Comments)
		p.Totals.LinkChanges += len(rp.Links)
		if rp.Delete {
			p.Totals.Deletions++
		}
	}
	return p
}

func planRecord(rec *record.Record) RecordPlan {
	rp := RecordPlan{
		ID:      rec.ID,
		ShortID: rec.ShortID(),
		Host:    rec.Host,
		Key:     rec.Key,
		Title:   rec.Title,
		Delete:  rec.Local.Deleted != nil,
	}

	pending := rec.Local.Pending

	names := make([]string, 0, len(pending.Fields))
	for name := range pending.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rp.Fields = append(rp.Fields, FieldChange{
			Name:   name,
			Before: snapshotValue(rec, name),
			After:  pending.Fields[name],
		})
	}

	if pending.Labels != nil {
		rp.Fields = append(rp.Fields, FieldChange{
			Name:   "labels",
			Before: strings.Join(rec.Labels, ", "),
			After:  strings.Join(*pending.Labels, ", "),
		})
	}

	if pending.Transition != "" {
		rp.Fields = append(rp.Fields, FieldChange{
			Name:   "status",
			Before: rec.Status,
			After:  pending.Transition,
		})
	}

	for _, c := range pending.Comments {
		rp.Comments = append(rp.Comments, preview(c.Body))
	}
	for _, l := range pending.Links {
		rp.Links = append(rp.Links, LinkChange{
			Op:      l.Op,
			Type:    l.Type,
			FromKey: l.FromKey,
			ToKey:   l.ToKey,
		})
	}
	return rp
}

// snapshotValue maps a pending field name onto the stored snapshot so the
// plan can show what the edit replaces. Unknown fields have no before
// value; the remote service is the only party that knows them.
func snapshotValue(rec *record.Record, field string) string {
	switch field {
	case "title", "summary":
		return rec.Title
	case "priority":
		return rec.Priority
	case "assignee":
		return rec.Assignee
	case "reporter":
		return rec.Reporter
	case "type", "issuetype":
		return rec.Type
	case "description":
		return rec.Description
	default:
		return ""
	}
}

func preview(body string) string {
	line := body
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if len(line) > commentPreviewLen {
		line = line[:commentPreviewLen] + "..."
	}
	return line
}
