package queue

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/steveyegge/tether/internal/record"
	"github.com/steveyegge/tether/internal/remote"
)

func setup(t *testing.T) (*Queue, *record.Store) {
	t.Helper()
	store, err := record.Open(filepath.Join(t.TempDir(), "records"), nil, log.New(os.Stderr, "[test] ", 0))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	return New(store), store
}

func saveIssue(t *testing.T, store *record.Store, host, key string, labels []string) string {
	t.Helper()
	issue := &remote.Issue{
		Key: key,
		Fields: remote.IssueFields{
			Summary: "title of " + key,
			Status:  &remote.Named{Name: "Open"},
			Labels:  labels,
			Updated: remote.Time{Time: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)},
		},
	}
	id, err := store.Save(issue, host, record.Extras{})
	if err != nil {
		t.Fatalf("failed to save %s: %v", key, err)
	}
	return id
}

func TestEditField(t *testing.T) {
	q, store := setup(t)
	id := saveIssue(t, store, "h", "PROJ-1", nil)

	if _, err := q.EditField(id, "Priority", "Highest"); err != nil {
		t.Fatalf("EditField failed: %v", err)
	}
	rec, _ := store.Read(id)
	if rec.Local.Pending.Fields["priority"] != "Highest" {
		t.Errorf("field edit not queued: %+v", rec.Local.Pending)
	}

	// Status edits become transition requests, not field writes.
	if _, err := q.EditField(id, "status", "In Progress"); err != nil {
		t.Fatalf("EditField status failed: %v", err)
	}
	rec, _ = store.Read(id)
	if rec.Local.Pending.Transition != "In Progress" {
		t.Errorf("status edit not queued as transition: %+v", rec.Local.Pending)
	}
	if _, ok := rec.Local.Pending.Fields["status"]; ok {
		t.Errorf("status leaked into pending fields")
	}
}

func TestEditLabelsAddRemoveNetsOut(t *testing.T) {
	q, store := setup(t)
	id := saveIssue(t, store, "h", "PROJ-1", []string{"alpha", "beta"})

	if _, err := q.EditLabels(id, "+urgent"); err != nil {
		t.Fatalf("add label failed: %v", err)
	}
	rec, _ := store.Read(id)
	if diff := cmp.Diff([]string{"alpha", "beta", "urgent"}, *rec.Local.Pending.Labels); diff != "" {
		t.Errorf("after +urgent (-want +got):\n%s", diff)
	}

	if _, err := q.EditLabels(id, "-urgent"); err != nil {
		t.Fatalf("remove label failed: %v", err)
	}
	rec, _ = store.Read(id)
	if diff := cmp.Diff([]string{"alpha", "beta"}, *rec.Local.Pending.Labels); diff != "" {
		t.Errorf("+urgent then -urgent should net out (-want +got):\n%s", diff)
	}
}

func TestEditLabelsReplace(t *testing.T) {
	q, store := setup(t)
	id := saveIssue(t, store, "h", "PROJ-1", []string{"old"})

	if _, err := q.EditLabels(id, "x, y ,x"); err != nil {
		t.Fatalf("replace labels failed: %v", err)
	}
	rec, _ := store.Read(id)
	if diff := cmp.Diff([]string{"x", "y"}, *rec.Local.Pending.Labels); diff != "" {
		t.Errorf("replacement set wrong (-want +got):\n%s", diff)
	}

	if _, err := q.EditLabels(id, "+a,b"); err == nil {
		t.Errorf("mixing +/- with replacement values should fail")
	}
}

func TestAddCommentPreservesOrder(t *testing.T) {
	q, store := setup(t)
	id := saveIssue(t, store, "h", "PROJ-1", nil)

	for _, body := range []string{"first", "second", "third"} {
		if _, err := q.AddComment(id, body); err != nil {
			t.Fatalf("AddComment(%q) failed: %v", body, err)
		}
	}
	rec, _ := store.Read(id)
	if len(rec.Local.Pending.Comments) != 3 {
		t.Fatalf("expected 3 queued comments, got %d", len(rec.Local.Pending.Comments))
	}
	for i, want := range []string{"first", "second", "third"} {
		if rec.Local.Pending.Comments[i].Body != want {
			t.Errorf("comment %d = %q, want %q", i, rec.Local.Pending.Comments[i].Body, want)
		}
		if rec.Local.Pending.Comments[i].QueuedAt.IsZero() {
			t.Errorf("comment %d missing enqueue timestamp", i)
		}
	}

	if _, err := q.AddComment(id, "  "); err == nil {
		t.Errorf("blank comment should be rejected")
	}
}

func TestAddLink(t *testing.T) {
	q, store := setup(t)
	saveIssue(t, store, "h", "PROJ-1", nil)
	saveIssue(t, store, "h", "PROJ-2", nil)

	rec, err := q.AddLink("PROJ-1", "PROJ-2", "Blocks", LinkAdd)
	if err != nil {
		t.Fatalf("AddLink failed: %v", err)
	}
	want := record.QueuedLink{Op: LinkAdd, Type: "Blocks", FromKey: "PROJ-1", ToKey: "PROJ-2"}
	got := rec.Local.Pending.Links[0]
	got.QueuedAt = time.Time{}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("queued link wrong (-want +got):\n%s", diff)
	}
}

func TestAddLinkCrossHost(t *testing.T) {
	q, store := setup(t)
	saveIssue(t, store, "https://one.example.com", "PROJ-1", nil)
	saveIssue(t, store, "https://two.example.com", "OTHER-1", nil)

	_, err := q.AddLink("PROJ-1", "OTHER-1", "Blocks", LinkAdd)
	if !errors.Is(err, ErrCrossHostLink) {
		t.Errorf("expected ErrCrossHostLink, got %v", err)
	}
}

func TestMarkDeletedIdempotent(t *testing.T) {
	q, store := setup(t)
	id := saveIssue(t, store, "h", "PROJ-1", nil)

	rec, already, err := q.MarkDeleted(id)
	if err != nil {
		t.Fatalf("MarkDeleted failed: %v", err)
	}
	if already {
		t.Errorf("fresh mark reported as already marked")
	}
	if rec.Local.Deleted == nil {
		t.Errorf("deletion marker not set")
	}
	first := *rec.Local.Deleted

	rec, already, err = q.MarkDeleted(id)
	if err != nil {
		t.Fatalf("second MarkDeleted failed: %v", err)
	}
	if !already {
		t.Errorf("re-mark not reported as already marked")
	}
	if !rec.Local.Deleted.Equal(first) {
		t.Errorf("re-mark moved the deletion timestamp")
	}

	rec, err = q.ClearDeleted(id)
	if err != nil {
		t.Fatalf("ClearDeleted failed: %v", err)
	}
	if rec.Local.Deleted != nil {
		t.Errorf("deletion marker not cleared")
	}
}
