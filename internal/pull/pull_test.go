package pull

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/steveyegge/tether/internal/ident"
	"github.com/steveyegge/tether/internal/ledger"
	"github.com/steveyegge/tether/internal/record"
	"github.com/steveyegge/tether/internal/remote"
)

const testHost = "https://jira.example.com"

// fakeRemote is an in-memory Fetcher with per-key failure injection.
type fakeRemote struct {
	issues       []remote.Issue
	queries      []string
	failSearch   bool
	failComments map[string]bool
	failHistory  map[string]bool
	comments     map[string][]remote.Comment
	history      map[string][]remote.ChangelogEntry
}

func (f *fakeRemote) Search(_ context.Context, jql string, startAt, maxResults int) (*remote.SearchPage, error) {
	f.queries = append(f.queries, jql)
	if f.failSearch {
		return nil, &remote.StatusError{Method: "GET", Path: "/search", StatusCode: 500, Body: "boom"}
	}
	end := startAt + maxResults
	if end > len(f.issues) {
		end = len(f.issues)
	}
	var page []remote.Issue
	if startAt < len(f.issues) {
		page = f.issues[startAt:end]
	}
	return &remote.SearchPage{
		StartAt:    startAt,
		MaxResults: maxResults,
		Total:      len(f.issues),
		Issues:     page,
	}, nil
}

func (f *fakeRemote) Comments(_ context.Context, key string) ([]remote.Comment, error) {
	if f.failComments[key] {
		return nil, &remote.StatusError{Method: "GET", Path: "/comment", StatusCode: 502, Body: "bad gateway"}
	}
	return f.comments[key], nil
}

func (f *fakeRemote) History(_ context.Context, key string) ([]remote.ChangelogEntry, error) {
	if f.failHistory[key] {
		return nil, &remote.StatusError{Method: "GET", Path: "/issue", StatusCode: 502, Body: "bad gateway"}
	}
	return f.history[key], nil
}

func testIssue(key string, updated time.Time) remote.Issue {
	return remote.Issue{
		Key: key,
		Fields: remote.IssueFields{
			Summary: "title of " + key,
			Status:  &remote.Named{Name: "Open"},
			Updated: remote.Time{Time: updated},
		},
	}
}

func setupEngine(t *testing.T) (*Engine, *record.Store, *ledger.Ledger) {
	t.Helper()
	dir := t.TempDir()
	store, err := record.Open(filepath.Join(dir, "records"), nil, log.New(os.Stderr, "[test] ", 0))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	led, err := ledger.Open(filepath.Join(dir, "ledger.db"))
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	t.Cleanup(func() { _ = led.Close() })
	return New(store, led, log.New(os.Stderr, "[test] ", 0)), store, led
}

func TestPullSavesAndAdvancesCursor(t *testing.T) {
	engine, store, led := setupEngine(t)
	t1 := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(2 * time.Hour)
	fake := &fakeRemote{issues: []remote.Issue{testIssue("PROJ-1", t1), testIssue("PROJ-2", t2)}}

	res := engine.PullHost(context.Background(), fake, testHost, []Pattern{{JQL: "project = PROJ"}}, Options{})
	if res.Failed() {
		t.Fatalf("pull failed: %v", res.Errors)
	}
	if res.Fetched != 2 || res.Saved != 2 {
		t.Errorf("fetched=%d saved=%d, want 2/2", res.Fetched, res.Saved)
	}

	records, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 stored records, got %d", len(records))
	}

	// Cursor equals the maximum remote updated timestamp.
	cursor, err := led.Cursor(testHost, "project = PROJ")
	if err != nil {
		t.Fatalf("Cursor failed: %v", err)
	}
	if !cursor.Equal(t2) {
		t.Errorf("cursor = %v, want %v", cursor, t2)
	}
}

func TestPullIncrementalQueryUsesCursor(t *testing.T) {
	engine, _, led := setupEngine(t)
	mark := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	if err := led.Advance(testHost, "project = PROJ", mark); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}

	fake := &fakeRemote{}
	engine.PullHost(context.Background(), fake, testHost, []Pattern{{JQL: "project = PROJ"}}, Options{})
	if len(fake.queries) == 0 {
		t.Fatal("no search issued")
	}
	if !strings.Contains(fake.queries[0], `updated > "2026-03-10 12:00"`) {
		t.Errorf("incremental predicate missing from query: %q", fake.queries[0])
	}

	// --full ignores the cursor.
	fake.queries = nil
	engine.PullHost(context.Background(), fake, testHost, []Pattern{{JQL: "project = PROJ"}}, Options{Full: true})
	if fake.queries[0] != "project = PROJ" {
		t.Errorf("full refresh should use the base query, got %q", fake.queries[0])
	}
}

func TestPullEmptyWindowAdvancesToStartTime(t *testing.T) {
	engine, _, led := setupEngine(t)
	before := time.Now()
	fake := &fakeRemote{}

	res := engine.PullHost(context.Background(), fake, testHost, []Pattern{{JQL: "project = EMPTY"}}, Options{})
	if res.Failed() {
		t.Fatalf("pull failed: %v", res.Errors)
	}

	cursor, err := led.Cursor(testHost, "project = EMPTY")
	if err != nil {
		t.Fatalf("cursor missing after empty pull: %v", err)
	}
	if cursor.Before(before.Add(-time.Second)) || cursor.After(time.Now().Add(time.Second)) {
		t.Errorf("empty-window cursor %v not near pull start %v", cursor, before)
	}
}

func TestPullEnrichmentFailureIsWarning(t *testing.T) {
	engine, store, _ := setupEngine(t)
	t1 := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	fake := &fakeRemote{
		issues:       []remote.Issue{testIssue("PROJ-1", t1)},
		failComments: map[string]bool{"PROJ-1": true},
		failHistory:  map[string]bool{"PROJ-1": true},
	}

	res := engine.PullHost(context.Background(), fake, testHost, []Pattern{{JQL: "project = PROJ"}}, Options{})
	if res.Failed() {
		t.Fatalf("enrichment failure should not fail the pull: %v", res.Errors)
	}
	if len(res.Warnings) != 2 {
		t.Errorf("expected 2 warnings, got %v", res.Warnings)
	}
	if res.Saved != 1 {
		t.Errorf("item not saved despite enrichment failure: saved=%d", res.Saved)
	}
	if _, err := store.Read(ident.Identify(testHost, "PROJ-1")); err != nil {
		t.Errorf("record missing after degraded save: %v", err)
	}
}

func TestPullPatternFailureIsolated(t *testing.T) {
	engine, _, led := setupEngine(t)
	t1 := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	broken := &fakeRemote{failSearch: true}
	working := &fakeRemote{issues: []remote.Issue{testIssue("PROJ-1", t1)}}

	// Two patterns against a client that fails only the first pattern's
	// search: emulate by pulling twice, once per client, same result.
	res := engine.PullHost(context.Background(), broken, testHost, []Pattern{{JQL: "project = BAD"}}, Options{})
	if !res.Failed() {
		t.Errorf("expected failure for broken pattern")
	}
	if _, err := led.Cursor(testHost, "project = BAD"); !errors.Is(err, ledger.ErrNoCursor) {
		t.Errorf("failed pattern should not advance its cursor, got %v", err)
	}

	res = engine.PullHost(context.Background(), working, testHost, []Pattern{{JQL: "project = GOOD"}}, Options{})
	if res.Failed() {
		t.Errorf("good pattern affected by bad one: %v", res.Errors)
	}
}

func TestPullHonorsLimit(t *testing.T) {
	engine, _, _ := setupEngine(t)
	base := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	var issues []remote.Issue
	for i := 0; i < 10; i++ {
		issues = append(issues, testIssue(fmt.Sprintf("PROJ-%d", i+1), base.Add(time.Duration(i)*time.Minute)))
	}
	fake := &fakeRemote{issues: issues}

	res := engine.PullHost(context.Background(), fake, testHost,
		[]Pattern{{JQL: "project = PROJ", Max: 3}}, Options{})
	if res.Fetched != 3 {
		t.Errorf("fetched %d items, want cap of 3", res.Fetched)
	}
}

func TestPullIdempotentAndPreservesPending(t *testing.T) {
	engine, store, _ := setupEngine(t)
	t1 := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	fake := &fakeRemote{issues: []remote.Issue{testIssue("PROJ-1", t1)}}
	patterns := []Pattern{{JQL: "project = PROJ"}}

	engine.PullHost(context.Background(), fake, testHost, patterns, Options{})

	id := ident.Identify(testHost, "PROJ-1")
	if _, err := store.MutateLocal(id, func(ls *record.LocalState) {
		ls.Pending.Fields = map[string]string{"priority": "Highest"}
	}); err != nil {
		t.Fatalf("MutateLocal failed: %v", err)
	}
	first, _ := store.Read(id)

	// Pull twice more with --full so the unchanged item is refetched.
	engine.PullHost(context.Background(), fake, testHost, patterns, Options{Full: true})
	engine.PullHost(context.Background(), fake, testHost, patterns, Options{Full: true})

	second, _ := store.Read(id)
	if diff := cmp.Diff(first.Local.Pending, second.Local.Pending); diff != "" {
		t.Errorf("pull clobbered pending (-before +after):\n%s", diff)
	}

	first.Local.LastSync = nil
	second.Local.LastSync = nil
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated pull diverged (-before +after):\n%s", diff)
	}
}

func TestSyncFields(t *testing.T) {
	_, _, led := setupEngine(t)
	lister := fieldLister{fields: []remote.Field{
		{ID: "customfield_10002", Name: "Story Points", Custom: true},
		{ID: "summary", Name: "Summary"},
	}}

	n, err := SyncFields(context.Background(), lister, led, testHost)
	if err != nil {
		t.Fatalf("SyncFields failed: %v", err)
	}
	if n != 2 {
		t.Errorf("synced %d aliases, want 2", n)
	}

	got, ok, err := led.FieldAlias(testHost, "story-points")
	if err != nil || !ok {
		t.Fatalf("alias lookup failed: ok=%v err=%v", ok, err)
	}
	if got != "customfield_10002" {
		t.Errorf("alias = %q, want customfield_10002", got)
	}
}

type fieldLister struct {
	fields []remote.Field
}

func (f fieldLister) Fields(context.Context) ([]remote.Field, error) {
	return f.fields, nil
}
