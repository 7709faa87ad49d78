package pull

import (
	"testing"
	"time"
)

func TestBuildQuery(t *testing.T) {
	since := time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		base  string
		since time.Time
		want  string
	}{
		{
			name: "no cursor passes base through",
			base: "project = PROJ",
			want: "project = PROJ",
		},
		{
			name:  "predicate injected",
			base:  "project = PROJ",
			since: since,
			want:  `(project = PROJ) AND updated > "2026-03-10 12:30"`,
		},
		{
			name:  "empty base becomes bare predicate",
			base:  "",
			since: since,
			want:  `updated > "2026-03-10 12:30"`,
		},
		{
			name:  "ordering stays last",
			base:  "project = PROJ ORDER BY priority DESC",
			since: since,
			want:  `(project = PROJ) AND updated > "2026-03-10 12:30" ORDER BY priority DESC`,
		},
		{
			name:  "lowercase ordering stays last",
			base:  "assignee = dana order by updated",
			since: since,
			want:  `(assignee = dana) AND updated > "2026-03-10 12:30" order by updated`,
		},
		{
			name:  "ordering only",
			base:  "ORDER BY updated",
			since: since,
			want:  `updated > "2026-03-10 12:30" ORDER BY updated`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildQuery(tt.base, tt.since); got != tt.want {
				t.Errorf("BuildQuery(%q) =\n  %q\nwant\n  %q", tt.base, got, tt.want)
			}
		})
	}
}
