// Package pull is the sync engine: it fetches changed remote issues per
// query pattern, merges them into the record store without clobbering
// local state, and advances the per-pattern cursor.
//
// Each pattern moves through fetch -> merge -> advance independently; an
// error on one pattern or one item never aborts the rest of the pull.
// Invoking the engine repeatedly with no intervening local edits converges
// to the same stored state, so interrupted pulls are simply re-run.
package pull

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/steveyegge/tether/internal/ledger"
	"github.com/steveyegge/tether/internal/record"
	"github.com/steveyegge/tether/internal/remote"
)

// defaultPageSize bounds one search request.
const defaultPageSize = 50

// Fetcher is the slice of the remote client the engine needs.
// *remote.Client satisfies it.
type Fetcher interface {
	Search(ctx context.Context, jql string, startAt, maxResults int) (*remote.SearchPage, error)
	Comments(ctx context.Context, key string) ([]remote.Comment, error)
	History(ctx context.Context, key string) ([]remote.ChangelogEntry, error)
}

// FieldLister is the slice of the remote client field-alias sync needs.
type FieldLister interface {
	Fields(ctx context.Context) ([]remote.Field, error)
}

// Pattern is one configured query: a base filter plus an optional result cap.
type Pattern struct {
	JQL string
	Max int
}

// Options tune one pull invocation.
type Options struct {
	// Full ignores stored cursors and refetches everything.
	Full bool
	// Since overrides the stored cursor with an explicit lower bound.
	Since time.Time
	// Limit caps results per pattern, overriding each pattern's own cap.
	Limit int
}

// Result summarizes one pull of one host.
type Result struct {
	Patterns int
	Fetched  int
	Saved    int
	Warnings []string
	Errors   []error
}

// Failed reports whether at least one pattern or item failed outright.
// Enrichment warnings do not count.
func (r *Result) Failed() bool {
	return len(r.Errors) > 0
}

// Engine orchestrates remote fetch, store merge, and cursor advancement.
type Engine struct {
	store    *record.Store
	ledger   *ledger.Ledger
	logger   *log.Logger
	pageSize int
	now      func() time.Time
}

// New creates an engine. If logger is nil, a default logger writing to
// stderr is used.
func New(store *record.Store, led *ledger.Ledger, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(os.Stderr, "[pull] ", log.LstdFlags)
	}
	return &Engine{
		store:    store,
		ledger:   led,
		logger:   logger,
		pageSize: defaultPageSize,
		now:      time.Now,
	}
}

// PullHost runs every pattern for one host. Pattern failures are isolated:
// the returned result aggregates per-pattern errors and enrichment
// warnings alongside fetch/save counts.
func (e *Engine) PullHost(ctx context.Context, client Fetcher, host string, patterns []Pattern, opts Options) *Result {
	res := &Result{}
	for _, p := range patterns {
		res.Patterns++
		if err := e.pullPattern(ctx, client, host, p, opts, res); err != nil {
			e.logger.Printf("WARNING: pattern %q failed: %v", p.JQL, err)
			res.Errors = append(res.Errors, fmt.Errorf("pattern %q: %w", p.JQL, err))
		}
	}
	return res
}

// pullPattern walks one pattern through fetch -> merge -> advance.
func (e *Engine) pullPattern(ctx context.Context, client Fetcher, host string, p Pattern, opts Options, res *Result) error {
	start := e.now()

	since := time.Time{}
	switch {
	case !opts.Since.IsZero():
		since = opts.Since
	case opts.Full:
		// Explicit full refresh: no lower bound.
	default:
		cursor, err := e.ledger.Cursor(host, p.JQL)
		if err != nil && !errors.Is(err, ledger.ErrNoCursor) {
			return err
		}
		since = cursor
	}

	jql := BuildQuery(p.JQL, since)
	e.logger.Printf("fetching %q", jql)

	limit := p.Max
	if opts.Limit > 0 {
		limit = opts.Limit
	}

	var maxUpdated time.Time
	fetched := 0
	startAt := 0
	for {
		pageSize := e.pageSize
		if limit > 0 && fetched+pageSize > limit {
			pageSize = limit - fetched
		}
		if pageSize <= 0 {
			break
		}

		page, err := client.Search(ctx, jql, startAt, pageSize)
		if err != nil {
			// A failed first page fetched nothing: leave the cursor
			// alone so the window is retried next pull. A later page
			// failure still advances over the items already merged.
			if fetched > 0 {
				e.advance(host, p.JQL, maxUpdated, start, fetched)
			}
			return err
		}
		if len(page.Issues) == 0 {
			break
		}

		for i := range page.Issues {
			issue := &page.Issues[i]
			fetched++
			res.Fetched++

			if err := e.mergeItem(ctx, client, host, issue, res); err != nil {
				e.logger.Printf("WARNING: failed to save %s: %v", issue.Key, err)
				res.Errors = append(res.Errors, fmt.Errorf("%s: %w", issue.Key, err))
				continue
			}
			res.Saved++
			if issue.Fields.Updated.After(maxUpdated) {
				maxUpdated = issue.Fields.Updated.Time
			}
		}

		startAt += len(page.Issues)
		if startAt >= page.Total {
			break
		}
		if limit > 0 && fetched >= limit {
			break
		}
	}

	e.advance(host, p.JQL, maxUpdated, start, fetched)
	return nil
}

// mergeItem enriches one fetched issue and saves it. Enrichment failures
// are downgraded to warnings; the item is saved with whatever succeeded.
func (e *Engine) mergeItem(ctx context.Context, client Fetcher, host string, issue *remote.Issue, res *Result) error {
	var extras record.Extras

	comments, err := client.Comments(ctx, issue.Key)
	if err != nil {
		warn := fmt.Sprintf("%s: comments fetch failed: %v", issue.Key, err)
		e.logger.Printf("WARNING: %s", warn)
		res.Warnings = append(res.Warnings, warn)
	} else {
		extras.Comments = comments
		extras.HasComments = true
	}

	entries, err := client.History(ctx, issue.Key)
	if err != nil {
		warn := fmt.Sprintf("%s: history fetch failed: %v", issue.Key, err)
		e.logger.Printf("WARNING: %s", warn)
		res.Warnings = append(res.Warnings, warn)
	} else {
		extras.History = entries
		extras.HasHistory = true
	}

	_, err = e.store.Save(issue, host, extras)
	return err
}

// advance moves the pattern cursor to the maximum remote "updated" seen.
// When the pattern matched nothing the pull's start time is used instead,
// so future incremental pulls do not silently re-scan the empty window.
func (e *Engine) advance(host, jql string, maxUpdated, start time.Time, fetched int) {
	mark := maxUpdated
	if fetched == 0 || mark.IsZero() {
		mark = start
	}
	if err := e.ledger.Advance(host, jql, mark); err != nil {
		e.logger.Printf("WARNING: failed to advance cursor for %q: %v", jql, err)
	}
}

// SyncFields refreshes the host's field-alias cache from the remote field
// list. Aliases are lowercased field names; the reconciler falls back to
// pass-through for anything not cached.
func SyncFields(ctx context.Context, client FieldLister, led *ledger.Ledger, host string) (int, error) {
	fields, err := client.Fields(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list remote fields: %w", err)
	}
	aliases := make(map[string]string, len(fields))
	for _, f := range fields {
		aliases[normalizeAlias(f.Name)] = f.ID
	}
	if err := led.ReplaceFieldAliases(host, aliases); err != nil {
		return 0, err
	}
	return len(aliases), nil
}

func normalizeAlias(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r == ' ':
			out = append(out, '-')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
