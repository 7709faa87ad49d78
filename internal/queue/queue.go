// Package queue appends field edits, comments, link operations, and
// deletion markers to a record's local state. Nothing here contacts the
// remote service; queued work sits in the record file until the
// reconciler pushes it.
package queue

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/steveyegge/tether/internal/record"
)

// ErrCrossHostLink is returned when a link is attempted between records
// that live on different remote hosts.
var ErrCrossHostLink = errors.New("linked records must belong to the same host")

// Link operation tags.
const (
	LinkAdd    = "add"
	LinkRemove = "remove"
)

// Queue stages local mutations against a record store.
type Queue struct {
	store *record.Store
	now   func() time.Time
}

// New creates a queue over the given store.
func New(store *record.Store) *Queue {
	return &Queue{store: store, now: time.Now}
}

// EditField queues a field-value override. The special "status" field is
// queued as a transition request instead, since status changes are applied
// as workflow transitions rather than direct field writes. The "labels"
// field gets list semantics via EditLabels.
func (q *Queue) EditField(id, field, value string) (*record.Record, error) {
	field = strings.ToLower(strings.TrimSpace(field))
	if field == "" {
		return nil, fmt.Errorf("field name is required")
	}
	if field == "labels" {
		return q.EditLabels(id, value)
	}
	return q.store.MutateLocal(id, func(ls *record.LocalState) {
		if field == "status" {
			ls.Pending.Transition = value
			return
		}
		if ls.Pending.Fields == nil {
			ls.Pending.Fields = make(map[string]string)
		}
		ls.Pending.Fields[field] = value
	})
}

// EditLabels queues a label edit. The spec accepts three forms, mixable in
// one comma-separated argument:
//
//	+item   add item
//	-item   remove item
//	item    wholesale replacement (only when no +/- entries are present)
//
// Additive and subtractive entries operate against the union of
// already-pending label edits and the current remote value, so queueing
// "+urgent" then "-urgent" nets out to the original set.
func (q *Queue) EditLabels(id, spec string) (*record.Record, error) {
	adds, removes, replace, err := parseLabelSpec(spec)
	if err != nil {
		return nil, err
	}
	if replace != nil {
		out := normalizeLabels(replace)
		return q.store.MutateLocal(id, func(ls *record.LocalState) {
			ls.Pending.Labels = &out
		})
	}

	rec, err := q.store.Read(id)
	if err != nil {
		return nil, err
	}
	base := rec.Labels
	if rec.Local.Pending.Labels != nil {
		base = *rec.Local.Pending.Labels
	}

	set := make(map[string]bool, len(base))
	for _, l := range base {
		set[l] = true
	}
	for _, l := range adds {
		set[l] = true
	}
	for _, l := range removes {
		delete(set, l)
	}

	out := make([]string, 0, len(set))
	for l := range set {
		out = append(out, l)
	}
	sort.Strings(out)
	return q.store.MutateLocal(id, func(ls *record.LocalState) {
		ls.Pending.Labels = &out
	})
}

func parseLabelSpec(spec string) (adds, removes, replace []string, err error) {
	parts := strings.Split(spec, ",")
	var plain []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		switch {
		case strings.HasPrefix(p, "+"):
			adds = append(adds, strings.TrimPrefix(p, "+"))
		case strings.HasPrefix(p, "-"):
			removes = append(removes, strings.TrimPrefix(p, "-"))
		default:
			plain = append(plain, p)
		}
	}
	if len(plain) > 0 && (len(adds) > 0 || len(removes) > 0) {
		return nil, nil, nil, fmt.Errorf("label edit mixes replacement values with +/- entries: %q", spec)
	}
	if len(plain) > 0 {
		return nil, nil, plain, nil
	}
	if len(adds) == 0 && len(removes) == 0 {
		// An empty spec means "replace with nothing".
		return nil, nil, []string{}, nil
	}
	return adds, removes, nil, nil
}

func normalizeLabels(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// AddComment queues a comment. Multiple queued comments keep their enqueue
// order and are all applied on reconciliation.
func (q *Queue) AddComment(id, body string) (*record.Record, error) {
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("comment body is required")
	}
	return q.store.MutateLocal(id, func(ls *record.LocalState) {
		ls.Pending.Comments = append(ls.Pending.Comments, record.QueuedComment{
			Body:     body,
			QueuedAt: q.now(),
		})
	})
}

// AddLink queues a link operation (op is LinkAdd or LinkRemove) between two
// records identified by user input. Both records must live on the same
// remote host.
func (q *Queue) AddLink(fromInput, toInput, linkType, op string) (*record.Record, error) {
	if op != LinkAdd && op != LinkRemove {
		return nil, fmt.Errorf("unknown link operation %q", op)
	}
	from, err := q.store.Resolve(fromInput)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", fromInput, err)
	}
	to, err := q.store.Resolve(toInput)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", toInput, err)
	}
	if from.Host != to.Host {
		return nil, fmt.Errorf("%w: %s is on %s, %s is on %s",
			ErrCrossHostLink, from.Key, from.Host, to.Key, to.Host)
	}

	return q.store.MutateLocal(from.ID, func(ls *record.LocalState) {
		ls.Pending.Links = append(ls.Pending.Links, record.QueuedLink{
			Op:       op,
			Type:     linkType,
			FromKey:  from.Key,
			ToKey:    to.Key,
			QueuedAt: q.now(),
		})
	})
}

// MarkDeleted sets the soft-delete marker. Idempotent: re-marking an
// already-marked record is a no-op, signaled by alreadyMarked so the
// caller can report it distinctly.
func (q *Queue) MarkDeleted(id string) (rec *record.Record, alreadyMarked bool, err error) {
	rec, err = q.store.MutateLocal(id, func(ls *record.LocalState) {
		if ls.Deleted != nil {
			alreadyMarked = true
			return
		}
		now := q.now()
		ls.Deleted = &now
	})
	return rec, alreadyMarked, err
}

// ClearDeleted removes the soft-delete marker.
func (q *Queue) ClearDeleted(id string) (*record.Record, error) {
	return q.store.MutateLocal(id, func(ls *record.LocalState) {
		ls.Deleted = nil
	})
}
