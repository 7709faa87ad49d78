package ident

import (
	"errors"
	"strings"
	"testing"
)

func TestIdentifyDeterministic(t *testing.T) {
	a := Identify("https://jira.example.com", "PROJ-1")
	b := Identify("https://jira.example.com", "PROJ-1")
	if a != b {
		t.Errorf("same inputs produced different ids: %s vs %s", a, b)
	}
	if len(a) != 40 {
		t.Errorf("expected 40-char hex id, got %d chars: %s", len(a), a)
	}
	for _, c := range a {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Errorf("id contains non-hex character %q", c)
		}
	}
}

func TestIdentifyDistinctHosts(t *testing.T) {
	a := Identify("https://jira.example.com", "PROJ-1")
	b := Identify("https://jira.other.com", "PROJ-1")
	if a == b {
		t.Errorf("different hosts produced the same id")
	}
}

func TestIsKey(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"PROJ-1", true},
		{"ABC2-123", true},
		{"proj-42", true},
		{"abc123", false},
		{"PROJ-", false},
		{"-123", false},
		{"PROJ-1-2", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsKey(tt.input); got != tt.want {
			t.Errorf("IsKey(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestResolveByKey(t *testing.T) {
	refs := []Ref{
		{ID: "abc123def0000000000000000000000000000000", Host: "h", Key: "PROJ-1"},
		{ID: "abcdef1230000000000000000000000000000000", Host: "h", Key: "PROJ-2"},
	}

	got, err := Resolve(refs, "proj-2")
	if err != nil {
		t.Fatalf("Resolve by key failed: %v", err)
	}
	if got.Key != "PROJ-2" {
		t.Errorf("resolved wrong record: %s", got.Key)
	}

	if _, err := Resolve(refs, "PROJ-9"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown key, got %v", err)
	}
}

func TestResolveByPrefix(t *testing.T) {
	refs := []Ref{
		{ID: "abc123def0000000000000000000000000000000", Key: "PROJ-1"},
		{ID: "abcdef1230000000000000000000000000000000", Key: "PROJ-2"},
	}

	// Shared prefix is ambiguous.
	_, err := Resolve(refs, "abc")
	var amb *AmbiguousError
	if !errors.As(err, &amb) {
		t.Fatalf("expected AmbiguousError, got %v", err)
	}
	if len(amb.Candidates) != 2 {
		t.Errorf("expected 2 candidates, got %v", amb.Candidates)
	}
	for _, c := range amb.Candidates {
		if len(c) <= len("abc") {
			t.Errorf("candidate %q does not extend past the input prefix", c)
		}
	}

	// Longer unique prefix succeeds.
	got, err := Resolve(refs, "abc123")
	if err != nil {
		t.Fatalf("Resolve unique prefix failed: %v", err)
	}
	if got.Key != "PROJ-1" {
		t.Errorf("resolved wrong record: %s", got.Key)
	}

	// Prefix matching is case-insensitive.
	if _, err := Resolve(refs, "ABC123"); err != nil {
		t.Errorf("uppercase prefix should resolve: %v", err)
	}

	if _, err := Resolve(refs, "ffff"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveFullID(t *testing.T) {
	id := Identify("h", "PROJ-1")
	refs := []Ref{{ID: id, Host: "h", Key: "PROJ-1"}}
	got, err := Resolve(refs, id)
	if err != nil {
		t.Fatalf("Resolve full id failed: %v", err)
	}
	if got.ID != id {
		t.Errorf("resolved wrong id: %s", got.ID)
	}
}

func TestShort(t *testing.T) {
	if got := Short("abcdef0123456789"); got != "abcdef" {
		t.Errorf("Short = %q, want abcdef", got)
	}
	if got := Short("ab"); got != "ab" {
		t.Errorf("Short of short input = %q, want ab", got)
	}
}
