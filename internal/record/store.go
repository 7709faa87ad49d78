package record

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"github.com/steveyegge/tether/internal/ident"
	"github.com/steveyegge/tether/internal/remote"
)

// ErrNotFound is returned when no record exists with the given id.
var ErrNotFound = errors.New("record not found")

// Summarizer recomputes the remote-change summary for a record during Save.
// prev is the LocalState preserved from the existing record (zero value for
// a brand-new record). A nil return means there is nothing to show.
type Summarizer func(rec *Record, prev *LocalState, extras Extras) *ChangeSummary

// Store persists records, one markdown file per record, under a single
// directory. Writes are atomic (write-to-temp-then-rename) so a crash can
// never leave a half-written record.
type Store struct {
	dir       string
	summarize Summarizer
	logger    *log.Logger
	now       func() time.Time
}

// Open creates a store rooted at dir, creating the directory if needed.
//
// summarize may be nil, in which case saves preserve the existing
// changes-since-read summary instead of recomputing it. If logger is nil,
// a default logger writing to stderr is used.
func Open(dir string, summarize Summarizer, logger *log.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create records directory: %w", err)
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}
	return &Store{
		dir:       dir,
		summarize: summarize,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Dir returns the directory this store persists into.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".md")
}

// Save writes a fresh snapshot of a remote issue, preserving the existing
// record's LocalState. Re-entrant: saving the same payload repeatedly
// converges to the same stored state aside from last_sync bookkeeping.
// Returns the record's id.
func (s *Store) Save(issue *remote.Issue, host string, extras Extras) (string, error) {
	id := ident.Identify(host, issue.Key)

	var preserved LocalState
	existing, err := s.Read(id)
	switch {
	case err == nil:
		preserved = existing.Local
	case errors.Is(err, ErrNotFound):
		// First sight of this record.
	default:
		return "", fmt.Errorf("failed to read existing record %s: %w", ident.Short(id), err)
	}

	rec := Materialize(issue, host)
	rec.ID = id

	// Comments may arrive either embedded in the search payload or from
	// the enrichment fetch; the enrichment result wins when present.
	if extras.HasComments {
		rec.Comments = convertComments(extras.Comments)
	} else if rec.Comments == nil && existing != nil {
		rec.Comments = existing.Comments
	}

	rec.Local = preserved
	now := s.now()
	rec.Local.LastSync = &now

	// An unread record is wholly new: no baseline, no diff to show.
	if rec.Local.LastRead == nil {
		rec.Local.Previous = nil
		rec.Local.ChangesSinceRead = nil
	} else if s.summarize != nil {
		rec.Local.ChangesSinceRead = s.summarize(rec, &preserved, extras)
	}

	if err := s.write(rec); err != nil {
		return "", err
	}
	return id, nil
}

// Read loads one record by full id. Returns ErrNotFound if absent.
func (s *Store) Read(id string) (*Record, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ident.Short(id))
		}
		return nil, fmt.Errorf("failed to read record %s: %w", ident.Short(id), err)
	}
	rec, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("invalid record file %s: %w", ident.Short(id), err)
	}
	return rec, nil
}

// List loads every record in the store, sorted by key. Invalid files are
// skipped with a warning so one corrupt entry cannot hide the rest.
func (s *Store) List() ([]*Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read records directory: %w", err)
	}

	var records []*Record
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			s.logger.Printf("WARNING: skipping unreadable record %s: %v", entry.Name(), err)
			continue
		}
		rec, err := Decode(data)
		if err != nil {
			s.logger.Printf("WARNING: skipping invalid record %s: %v", entry.Name(), err)
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Host != records[j].Host {
			return records[i].Host < records[j].Host
		}
		return records[i].Key < records[j].Key
	})
	return records, nil
}

// Refs returns the (id, host, key) view of every stored record, for
// identifier resolution.
func (s *Store) Refs() ([]ident.Ref, error) {
	records, err := s.List()
	if err != nil {
		return nil, err
	}
	refs := make([]ident.Ref, 0, len(records))
	for _, rec := range records {
		refs = append(refs, ident.Ref{ID: rec.ID, Host: rec.Host, Key: rec.Key})
	}
	return refs, nil
}

// Resolve maps user input (key, id, or id prefix) to a stored record.
func (s *Store) Resolve(input string) (*Record, error) {
	refs, err := s.Refs()
	if err != nil {
		return nil, err
	}
	ref, err := ident.Resolve(refs, input)
	if err != nil {
		return nil, err
	}
	return s.Read(ref.ID)
}

// MutateLocal applies fn to the record's LocalState and persists the
// result. This is the sole write path for queue operations and for the
// reconciler clearing pending work. Fails with ErrNotFound if the record
// does not exist.
func (s *Store) MutateLocal(id string, fn func(*LocalState)) (*Record, error) {
	rec, err := s.Read(id)
	if err != nil {
		return nil, err
	}
	fn(&rec.Local)
	if err := s.write(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// MarkRead snapshots the current tracked fields as the new diff baseline
// and stamps last_read, acknowledging any remote-change summary.
func (s *Store) MarkRead(id string) (*Record, error) {
	rec, err := s.Read(id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	rec.Local.LastRead = &now
	rec.Local.Previous = rec.Baseline()
	rec.Local.ChangesSinceRead = nil
	if err := s.write(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ClearRead reverts a record to "never read": last_read and the diff
// baseline are dropped.
func (s *Store) ClearRead(id string) (*Record, error) {
	return s.MutateLocal(id, func(ls *LocalState) {
		ls.LastRead = nil
		ls.Previous = nil
		ls.ChangesSinceRead = nil
	})
}

// Remove deletes the record file entirely. Used by the reconciler after a
// remote deletion succeeds.
func (s *Store) Remove(id string) error {
	if err := os.Remove(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, ident.Short(id))
		}
		return fmt.Errorf("failed to remove record %s: %w", ident.Short(id), err)
	}
	return nil
}

func (s *Store) write(rec *Record) error {
	data, err := Encode(rec)
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(s.path(rec.ID), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write record %s: %w", rec.ShortID(), err)
	}
	return nil
}
