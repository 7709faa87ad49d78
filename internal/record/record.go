// Package record is the durable representation of one cached remote issue.
//
// Each record is a markdown file with YAML frontmatter: the frontmatter holds
// the remote snapshot fields plus an inviolable `local:` section, and the
// body holds the free-text description. Remote snapshot fields are
// overwritten wholesale on every successful pull; the local section is
// preserved across pulls and only the reconciler may clear its pending set.
package record

import (
	"time"

	"github.com/steveyegge/tether/internal/ident"
	"github.com/steveyegge/tether/internal/remote"
)

// Comment is one mirrored remote comment.
type Comment struct {
	ID      string    `yaml:"id,omitempty"`
	Author  string    `yaml:"author,omitempty"`
	Body    string    `yaml:"body"`
	Created time.Time `yaml:"created,omitempty"`
}

// Attachment is mirrored attachment metadata. Content is never cached.
type Attachment struct {
	ID       string    `yaml:"id,omitempty"`
	Filename string    `yaml:"filename"`
	Size     int64     `yaml:"size,omitempty"`
	Author   string    `yaml:"author,omitempty"`
	Created  time.Time `yaml:"created,omitempty"`
}

// Link is one mirrored issue link, seen from this record's side.
type Link struct {
	ID       string `yaml:"id,omitempty"`
	Type     string `yaml:"type"`
	Outward  bool   `yaml:"outward,omitempty"`
	OtherKey string `yaml:"other_key"`
}

// Baseline is the snapshot of tracked remote fields captured at the moment
// of last read. It is the diff baseline for the remote-change summary.
type Baseline struct {
	Title        string   `yaml:"title,omitempty"`
	Status       string   `yaml:"status,omitempty"`
	Priority     string   `yaml:"priority,omitempty"`
	Assignee     string   `yaml:"assignee,omitempty"`
	Labels       []string `yaml:"labels,omitempty"`
	Description  string   `yaml:"description,omitempty"`
	CommentCount int      `yaml:"comment_count"`
}

// ChangeSummary describes remote-side changes that occurred after the
// record was last read and have not been acknowledged by the user.
type ChangeSummary struct {
	Title             bool     `yaml:"title,omitempty"`
	Description       bool     `yaml:"description,omitempty"`
	NamedFields       []string `yaml:"named_fields,omitempty"`
	LabelsAdded       []string `yaml:"labels_added,omitempty"`
	LabelsRemoved     []string `yaml:"labels_removed,omitempty"`
	ComponentsAdded   []string `yaml:"components_added,omitempty"`
	ComponentsRemoved []string `yaml:"components_removed,omitempty"`
	OtherFields       int      `yaml:"other_fields,omitempty"`
	NewComments       int      `yaml:"new_comments,omitempty"`
}

// Empty reports whether the summary carries no changes at all.
func (s *ChangeSummary) Empty() bool {
	return s == nil || (!s.Title && !s.Description &&
		len(s.NamedFields) == 0 &&
		len(s.LabelsAdded) == 0 && len(s.LabelsRemoved) == 0 &&
		len(s.ComponentsAdded) == 0 && len(s.ComponentsRemoved) == 0 &&
		s.OtherFields == 0 && s.NewComments == 0)
}

// QueuedComment is a comment waiting to be pushed to the remote service.
type QueuedComment struct {
	Body     string    `yaml:"body"`
	QueuedAt time.Time `yaml:"queued_at"`
}

// QueuedLink is a link add/remove waiting to be pushed.
type QueuedLink struct {
	Op       string    `yaml:"op"` // add or remove
	Type     string    `yaml:"type"`
	FromKey  string    `yaml:"from_key"`
	ToKey    string    `yaml:"to_key"`
	QueuedAt time.Time `yaml:"queued_at"`
}

// Pending is the set of queued, not-yet-applied local mutations.
//
// Labels is a pointer because an empty final label set is a real edit
// (remove everything), distinct from no label edit at all.
type Pending struct {
	Fields     map[string]string `yaml:"fields,omitempty"`
	Labels     *[]string         `yaml:"labels,omitempty"`
	Comments   []QueuedComment   `yaml:"comments,omitempty"`
	Links      []QueuedLink      `yaml:"links,omitempty"`
	Transition string            `yaml:"transition,omitempty"`
}

// Empty reports whether nothing is queued.
func (p Pending) Empty() bool {
	return len(p.Fields) == 0 && p.Labels == nil &&
		len(p.Comments) == 0 && len(p.Links) == 0 && p.Transition == ""
}

// LocalState is the portion of a record never overwritten by a pull.
type LocalState struct {
	LastRead         *time.Time     `yaml:"last_read,omitempty"`
	LastSync         *time.Time     `yaml:"last_sync,omitempty"`
	Previous         *Baseline      `yaml:"previous,omitempty"`
	Pending          Pending        `yaml:"pending,omitempty"`
	Deleted          *time.Time     `yaml:"deleted,omitempty"`
	ChangesSinceRead *ChangeSummary `yaml:"changes_since_read,omitempty"`
	Tags             []string       `yaml:"tags,omitempty"`
}

// Dirty reports whether the record has queued work for the reconciler.
func (l *LocalState) Dirty() bool {
	return !l.Pending.Empty() || l.Deleted != nil
}

// Record is the locally cached representation of one remote tracked item.
// Description lives in the markdown body rather than the frontmatter.
type Record struct {
	ID          string       `yaml:"id"`
	Host        string       `yaml:"host"`
	Key         string       `yaml:"key"`
	Title       string       `yaml:"title"`
	Type        string       `yaml:"type,omitempty"`
	Status      string       `yaml:"status,omitempty"`
	Priority    string       `yaml:"priority,omitempty"`
	Assignee    string       `yaml:"assignee,omitempty"`
	Reporter    string       `yaml:"reporter,omitempty"`
	Labels      []string     `yaml:"labels,omitempty"`
	Components  []string     `yaml:"components,omitempty"`
	Created     time.Time    `yaml:"created,omitempty"`
	Updated     time.Time    `yaml:"updated,omitempty"`
	Comments    []Comment    `yaml:"comments,omitempty"`
	Attachments []Attachment `yaml:"attachments,omitempty"`
	Links       []Link       `yaml:"links,omitempty"`
	Local       LocalState   `yaml:"local"`
	Description string       `yaml:"-"`
}

// Filename returns the canonical filename for this record: {id}.md
func (r *Record) Filename() string {
	return r.ID + ".md"
}

// ShortID returns the display form of the record's id.
func (r *Record) ShortID() string {
	return ident.Short(r.ID)
}

// Baseline captures the current tracked fields as a diff baseline.
func (r *Record) Baseline() *Baseline {
	labels := append([]string(nil), r.Labels...)
	return &Baseline{
		Title:        r.Title,
		Status:       r.Status,
		Priority:     r.Priority,
		Assignee:     r.Assignee,
		Labels:       labels,
		Description:  r.Description,
		CommentCount: len(r.Comments),
	}
}

// Extras carries the best-effort per-item enrichment fetched alongside a
// remote snapshot. Nil slices with the flag unset mean the fetch failed or
// was skipped, not that the issue has none.
type Extras struct {
	Comments    []remote.Comment
	HasComments bool
	History     []remote.ChangelogEntry
	HasHistory  bool
}

// Materialize maps a remote payload into a record's snapshot fields. It
// does not touch LocalState and does not assign an id; Save does both.
func Materialize(issue *remote.Issue, host string) *Record {
	rec := &Record{
		Host:        host,
		Key:         issue.Key,
		Title:       issue.Fields.Summary,
		Description: issue.Fields.Description,
		Created:     issue.Fields.Created.Time,
		Updated:     issue.Fields.Updated.Time,
	}
	if issue.Fields.IssueType != nil {
		rec.Type = issue.Fields.IssueType.Name
	}
	if issue.Fields.Status != nil {
		rec.Status = issue.Fields.Status.Name
	}
	if issue.Fields.Priority != nil {
		rec.Priority = issue.Fields.Priority.Name
	}
	if issue.Fields.Assignee != nil {
		rec.Assignee = userName(issue.Fields.Assignee)
	}
	if issue.Fields.Reporter != nil {
		rec.Reporter = userName(issue.Fields.Reporter)
	}
	rec.Labels = append([]string(nil), issue.Fields.Labels...)
	for _, c := range issue.Fields.Components {
		rec.Components = append(rec.Components, c.Name)
	}
	if issue.Fields.Comment != nil {
		rec.Comments = convertComments(issue.Fields.Comment.Comments)
	}
	for _, a := range issue.Fields.Attachments {
		rec.Attachments = append(rec.Attachments, Attachment{
			ID:       a.ID,
			Filename: a.Filename,
			Size:     a.Size,
			Author:   userName(a.Author),
			Created:  a.Created.Time,
		})
	}
	for _, l := range issue.Fields.Links {
		link := Link{ID: l.ID, Type: l.Type.Name}
		switch {
		case l.Outward != nil:
			link.Outward = true
			link.OtherKey = l.Outward.Key
		case l.Inward != nil:
			link.OtherKey = l.Inward.Key
		default:
			continue
		}
		rec.Links = append(rec.Links, link)
	}
	return rec
}

func convertComments(comments []remote.Comment) []Comment {
	out := make([]Comment, 0, len(comments))
	for _, c := range comments {
		out = append(out, Comment{
			ID:      c.ID,
			Author:  userName(c.Author),
			Body:    c.Body,
			Created: c.Created.Time,
		})
	}
	return out
}

func userName(u *remote.User) string {
	if u == nil {
		return ""
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
