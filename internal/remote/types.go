package remote

import (
	"fmt"
	"strings"
	"time"
)

// timeLayout is the timestamp format the tracker's REST API uses.
const timeLayout = "2006-01-02T15:04:05.000-0700"

// Time wraps time.Time with the tracker's JSON timestamp encoding.
type Time struct {
	time.Time
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`null`), nil
	}
	return []byte(`"` + t.Format(timeLayout) + `"`), nil
}

func (t *Time) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(timeLayout, s)
	if err != nil {
		// Some deployments return plain RFC3339.
		parsed, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
	}
	t.Time = parsed
	return nil
}

// Named is a name/id pair (status, priority, issue type, component).
type Named struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// User identifies a person reference on an issue.
type User struct {
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"emailAddress,omitempty"`
}

// Attachment is file metadata attached to an issue. The core never
// downloads attachment content, only mirrors the metadata.
type Attachment struct {
	ID       string `json:"id,omitempty"`
	Filename string `json:"filename"`
	Size     int64  `json:"size,omitempty"`
	Author   *User  `json:"author,omitempty"`
	Created  Time   `json:"created,omitempty"`
}

// Comment is one issue comment.
type Comment struct {
	ID      string `json:"id,omitempty"`
	Author  *User  `json:"author,omitempty"`
	Body    string `json:"body"`
	Created Time   `json:"created,omitempty"`
	Updated Time   `json:"updated,omitempty"`
}

// CommentPage is the paged comment container embedded in issue fields.
type CommentPage struct {
	Total    int       `json:"total"`
	Comments []Comment `json:"comments"`
}

// ChangeItem is one field change within a changelog entry.
type ChangeItem struct {
	Field      string `json:"field"`
	FieldType  string `json:"fieldtype,omitempty"`
	From       string `json:"from,omitempty"`
	FromString string `json:"fromString,omitempty"`
	To         string `json:"to,omitempty"`
	ToString   string `json:"toString,omitempty"`
}

// ChangelogEntry is one revision-history entry on an issue.
type ChangelogEntry struct {
	ID      string       `json:"id,omitempty"`
	Author  *User        `json:"author,omitempty"`
	Created Time         `json:"created"`
	Items   []ChangeItem `json:"items"`
}

// Changelog is the revision history container returned with expand=changelog.
type Changelog struct {
	Total     int              `json:"total"`
	Histories []ChangelogEntry `json:"histories"`
}

// LinkType describes a link relationship ("Blocks", "Relates", ...).
type LinkType struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Inward  string `json:"inward,omitempty"`
	Outward string `json:"outward,omitempty"`
}

// LinkedIssue is the stub of an issue referenced by a link.
type LinkedIssue struct {
	Key string `json:"key"`
}

// IssueLink is one directed link between two issues. Exactly one of
// Inward/Outward is set depending on which side the queried issue is on.
type IssueLink struct {
	ID      string       `json:"id,omitempty"`
	Type    LinkType     `json:"type"`
	Inward  *LinkedIssue `json:"inwardIssue,omitempty"`
	Outward *LinkedIssue `json:"outwardIssue,omitempty"`
}

// Transition is one workflow transition available from an issue's
// current status.
type Transition struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	To   Named  `json:"to"`
}

// Field describes one field definition on the remote host, used to map
// user-facing aliases to remote field ids.
type Field struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Custom bool   `json:"custom"`
}

// IssueFields is the remote-authoritative field set of an issue.
type IssueFields struct {
	Summary     string       `json:"summary"`
	Description string       `json:"description,omitempty"`
	Status      *Named       `json:"status,omitempty"`
	Priority    *Named       `json:"priority,omitempty"`
	IssueType   *Named       `json:"issuetype,omitempty"`
	Assignee    *User        `json:"assignee,omitempty"`
	Reporter    *User        `json:"reporter,omitempty"`
	Labels      []string     `json:"labels,omitempty"`
	Components  []Named      `json:"components,omitempty"`
	Created     Time         `json:"created,omitempty"`
	Updated     Time         `json:"updated,omitempty"`
	Comment     *CommentPage `json:"comment,omitempty"`
	Attachments []Attachment `json:"attachment,omitempty"`
	Links       []IssueLink  `json:"issuelinks,omitempty"`
}

// Issue is one remote tracked item as returned by the REST API.
type Issue struct {
	ID        string      `json:"id,omitempty"`
	Key       string      `json:"key"`
	Fields    IssueFields `json:"fields"`
	Changelog *Changelog  `json:"changelog,omitempty"`
}

// SearchPage is one page of search results.
type SearchPage struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}
