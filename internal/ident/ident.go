// Package ident derives stable content identifiers for cached records and
// resolves user-supplied partial identifiers back to a record.
//
// Every cached record is addressed by the SHA1 of "host:key", hex-encoded.
// The id is deterministic: the same (host, key) pair always yields the same
// id, so re-pulling a record never creates a duplicate entry.
package ident

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ShortLen is the number of leading id characters shown in listings.
// Display-only; resolution always operates on full ids.
const ShortLen = 6

// ErrNotFound is returned when an identifier resolves to no stored record.
var ErrNotFound = errors.New("no record matches identifier")

// keyPattern matches remote issue keys like "PROJ-123".
var keyPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*-[0-9]+$`)

// Ref is the minimal view of a stored record that resolution needs.
type Ref struct {
	ID   string
	Host string
	Key  string
}

// AmbiguousError is returned when an id prefix matches more than one stored
// record. Candidates carries the disambiguating short ids so the caller can
// narrow the input.
type AmbiguousError struct {
	Input      string
	Candidates []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("identifier %q is ambiguous, matches: %s",
		e.Input, strings.Join(e.Candidates, ", "))
}

// Identify derives the content identifier for a record on the given host.
func Identify(host, key string) string {
	sum := sha1.Sum([]byte(host + ":" + key))
	return hex.EncodeToString(sum[:])
}

// Short returns the display form of an id (first 6 characters).
func Short(id string) string {
	if len(id) <= ShortLen {
		return id
	}
	return id[:ShortLen]
}

// IsKey reports whether input looks like a remote issue key (PROJECT-NUMBER)
// rather than a content id or id prefix.
func IsKey(input string) bool {
	return keyPattern.MatchString(input)
}

// Resolve maps user input to exactly one stored record.
//
// Input is either a remote key (matched exactly, case-insensitive), a full
// 40-char id, or an id prefix. Prefix matching is case-insensitive. A prefix
// matching multiple records fails with *AmbiguousError listing candidate
// short ids; no match fails with ErrNotFound.
func Resolve(refs []Ref, input string) (Ref, error) {
	if input == "" {
		return Ref{}, fmt.Errorf("%w: empty identifier", ErrNotFound)
	}

	if IsKey(input) {
		for _, r := range refs {
			if strings.EqualFold(r.Key, input) {
				return r, nil
			}
		}
		return Ref{}, fmt.Errorf("%w: key %s", ErrNotFound, input)
	}

	prefix := strings.ToLower(input)
	var matches []Ref
	for _, r := range refs {
		if strings.HasPrefix(strings.ToLower(r.ID), prefix) {
			matches = append(matches, r)
		}
	}

	switch len(matches) {
	case 0:
		return Ref{}, fmt.Errorf("%w: %s", ErrNotFound, input)
	case 1:
		return matches[0], nil
	}

	candidates := make([]string, len(matches))
	for i, m := range matches {
		candidates[i] = disambiguate(m.ID, len(prefix))
	}
	sort.Strings(candidates)
	return Ref{}, &AmbiguousError{Input: input, Candidates: candidates}
}

// disambiguate returns at least the short id, extended past the matched
// prefix length so each candidate visibly differs from the input.
func disambiguate(id string, prefixLen int) string {
	n := ShortLen
	if prefixLen+2 > n {
		n = prefixLen + 2
	}
	if n > len(id) {
		n = len(id)
	}
	return id[:n]
}
