// Package apply is the reconciler: it pushes queued local mutations back
// to the remote service and re-synchronizes each record afterwards.
//
// Records are applied in isolation; a failure on one never blocks the
// others, and a record's pending set is cleared only after the updated
// remote state has been re-fetched and durably stored locally. Re-running
// apply after a partial failure is safe: finished records have nothing
// pending, unfinished ones retry from their queue.
package apply

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/steveyegge/tether/internal/ledger"
	"github.com/steveyegge/tether/internal/queue"
	"github.com/steveyegge/tether/internal/record"
	"github.com/steveyegge/tether/internal/remote"
)

// ErrLinkNotFound is returned when a queued link removal cannot find a
// matching link on the remote record.
var ErrLinkNotFound = errors.New("link not found on remote record")

// NoSuchTransitionError is returned when a queued status edit has no
// reachable workflow transition. Available lists the target states the
// remote service offered, so the caller can narrow the input.
type NoSuchTransitionError struct {
	Target    string
	Available []string
}

func (e *NoSuchTransitionError) Error() string {
	return fmt.Sprintf("no transition to status %q, available: %s",
		e.Target, strings.Join(e.Available, ", "))
}

// Pusher is the slice of the remote client the reconciler needs.
// *remote.Client satisfies it.
type Pusher interface {
	GetIssue(ctx context.Context, key string, withHistory bool) (*remote.Issue, error)
	Comments(ctx context.Context, key string) ([]remote.Comment, error)
	History(ctx context.Context, key string) ([]remote.ChangelogEntry, error)
	Transitions(ctx context.Context, key string) ([]remote.Transition, error)
	DoTransition(ctx context.Context, key, transitionID string) error
	EditIssue(ctx context.Context, key string, fields map[string]any) error
	AddComment(ctx context.Context, key, text string) (*remote.Comment, error)
	Links(ctx context.Context, key string) ([]remote.IssueLink, error)
	CreateLink(ctx context.Context, linkType, inwardKey, outwardKey string) error
	DeleteLink(ctx context.Context, linkID string) error
	DeleteIssue(ctx context.Context, key string) error
}

// Outcome is the per-record result of one apply pass.
type Outcome struct {
	ID       string
	Key      string
	Deleted  bool
	Warnings []string
	Err      error
}

// Result aggregates one apply pass.
type Result struct {
	Outcomes []Outcome
	Applied  int
	Removed  int
}

// Failed reports whether at least one record failed outright.
// Divergence and enrichment warnings do not count.
func (r *Result) Failed() bool {
	for _, o := range r.Outcomes {
		if o.Err != nil {
			return true
		}
	}
	return false
}

// Errors returns the per-record failures.
func (r *Result) Errors() []error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.Key, o.Err))
		}
	}
	return errs
}

// Reconciler pushes pending mutations for one host.
type Reconciler struct {
	store  *record.Store
	ledger *ledger.Ledger
	logger *log.Logger
}

// New creates a reconciler. If logger is nil, a default logger writing to
// stderr is used.
func New(store *record.Store, led *ledger.Ledger, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.New(os.Stderr, "[apply] ", log.LstdFlags)
	}
	return &Reconciler{store: store, ledger: led, logger: logger}
}

// Apply pushes queued mutations for every dirty record on the given host.
// When only is non-empty, just those record ids are considered.
func (r *Reconciler) Apply(ctx context.Context, client Pusher, host string, only []string) (*Result, error) {
	records, err := r.store.List()
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(only))
	for _, id := range only {
		wanted[id] = true
	}

	res := &Result{}
	for _, rec := range records {
		if rec.Host != host || !rec.Local.Dirty() {
			continue
		}
		if len(wanted) > 0 && !wanted[rec.ID] {
			continue
		}

		outcome := r.applyRecord(ctx, client, rec)
		res.Outcomes = append(res.Outcomes, outcome)
		switch {
		case outcome.Err != nil:
			r.logger.Printf("WARNING: apply failed for %s: %v", rec.Key, outcome.Err)
		case outcome.Deleted:
			res.Removed++
		default:
			res.Applied++
		}
	}
	return res, nil
}

func (r *Reconciler) applyRecord(ctx context.Context, client Pusher, rec *record.Record) Outcome {
	out := Outcome{ID: rec.ID, Key: rec.Key}

	// Deletion wins over everything else queued.
	if rec.Local.Deleted != nil {
		if err := client.DeleteIssue(ctx, rec.Key); err != nil {
			out.Err = err
			return out
		}
		if err := r.store.Remove(rec.ID); err != nil {
			out.Err = err
			return out
		}
		out.Deleted = true
		return out
	}

	issue, err := client.GetIssue(ctx, rec.Key, false)
	if err != nil {
		out.Err = err
		return out
	}

	// Optimistic concurrency: apply proceeds on divergence, but the user
	// is told the remote moved underneath them.
	if rec.Local.LastSync != nil && issue.Fields.Updated.After(*rec.Local.LastSync) {
		warn := fmt.Sprintf("%s changed remotely at %s, after last sync %s",
			rec.Key,
			issue.Fields.Updated.Format(time.RFC3339),
			rec.Local.LastSync.Format(time.RFC3339))
		r.logger.Printf("WARNING: %s", warn)
		out.Warnings = append(out.Warnings, warn)
	}

	pending := rec.Local.Pending

	if pending.Transition != "" {
		if err := r.applyTransition(ctx, client, rec.Key, pending.Transition); err != nil {
			out.Err = err
			return out
		}
	}

	if fields := r.buildFieldUpdate(rec.Host, pending); len(fields) > 0 {
		if err := client.EditIssue(ctx, rec.Key, fields); err != nil {
			out.Err = err
			return out
		}
	}

	for _, c := range pending.Comments {
		if _, err := client.AddComment(ctx, rec.Key, c.Body); err != nil {
			out.Err = fmt.Errorf("failed to add comment: %w", err)
			return out
		}
	}

	for _, l := range pending.Links {
		if err := r.applyLink(ctx, client, rec.Key, l); err != nil {
			out.Err = err
			return out
		}
	}

	if err := r.finalize(ctx, client, rec, &out); err != nil {
		out.Err = err
		return out
	}
	return out
}

// applyTransition resolves a status edit to a workflow transition, matched
// by target-state name case-insensitively.
func (r *Reconciler) applyTransition(ctx context.Context, client Pusher, key, target string) error {
	transitions, err := client.Transitions(ctx, key)
	if err != nil {
		return err
	}
	for _, t := range transitions {
		if strings.EqualFold(t.To.Name, target) || strings.EqualFold(t.Name, target) {
			return client.DoTransition(ctx, key, t.ID)
		}
	}

	available := make([]string, 0, len(transitions))
	for _, t := range transitions {
		name := t.To.Name
		if name == "" {
			name = t.Name
		}
		available = append(available, name)
	}
	sort.Strings(available)
	return &NoSuchTransitionError{Target: target, Available: available}
}

// buildFieldUpdate maps queued field edits to remote field ids via the
// host's alias cache, passing unmapped aliases through untouched.
func (r *Reconciler) buildFieldUpdate(host string, pending record.Pending) map[string]any {
	fields := make(map[string]any)
	for alias, value := range pending.Fields {
		name := alias
		if id, ok, err := r.ledger.FieldAlias(host, alias); err == nil && ok {
			name = id
		}
		fields[name] = fieldValue(name, value)
	}
	if pending.Labels != nil {
		fields["labels"] = *pending.Labels
	}
	return fields
}

// fieldValue shapes an edit value the way the remote API expects it:
// people and named fields are objects, everything else is a plain string.
func fieldValue(field, value string) any {
	switch field {
	case "assignee", "reporter":
		return map[string]string{"name": value}
	case "priority", "issuetype":
		return map[string]string{"name": value}
	case "title", "summary":
		return value
	default:
		return value
	}
}

// applyLink pushes one queued link operation. Removal scans the record's
// current links for a match on type and counterpart key in either
// direction.
func (r *Reconciler) applyLink(ctx context.Context, client Pusher, key string, l record.QueuedLink) error {
	if l.Op == queue.LinkAdd {
		return client.CreateLink(ctx, l.Type, l.FromKey, l.ToKey)
	}

	links, err := client.Links(ctx, key)
	if err != nil {
		return err
	}
	for _, link := range links {
		if !strings.EqualFold(link.Type.Name, l.Type) {
			continue
		}
		var other string
		switch {
		case link.Outward != nil:
			other = link.Outward.Key
		case link.Inward != nil:
			other = link.Inward.Key
		}
		if strings.EqualFold(other, l.ToKey) || strings.EqualFold(other, l.FromKey) {
			return client.DeleteLink(ctx, link.ID)
		}
	}
	return fmt.Errorf("%w: %s %s %s", ErrLinkNotFound, l.FromKey, l.Type, l.ToKey)
}

// finalize re-fetches the updated remote item, overwrites the local
// snapshot, and only then clears the pending set. This ordering guarantees
// queued work survives any failure before the remote state has been
// durably observed locally.
func (r *Reconciler) finalize(ctx context.Context, client Pusher, rec *record.Record, out *Outcome) error {
	issue, err := client.GetIssue(ctx, rec.Key, true)
	if err != nil {
		return fmt.Errorf("failed to re-fetch after apply: %w", err)
	}

	var extras record.Extras
	if comments, err := client.Comments(ctx, rec.Key); err != nil {
		warn := fmt.Sprintf("%s: comments fetch failed: %v", rec.Key, err)
		r.logger.Printf("WARNING: %s", warn)
		out.Warnings = append(out.Warnings, warn)
	} else {
		extras.Comments = comments
		extras.HasComments = true
	}
	if issue.Changelog != nil {
		extras.History = issue.Changelog.Histories
		extras.HasHistory = true
	}

	if _, err := r.store.Save(issue, rec.Host, extras); err != nil {
		return fmt.Errorf("failed to store re-synced record: %w", err)
	}

	_, err = r.store.MutateLocal(rec.ID, func(ls *record.LocalState) {
		ls.Pending = record.Pending{}
	})
	return err
}
