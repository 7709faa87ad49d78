package main

import (
	"fmt"
	"os"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/steveyegge/tether/internal/config"
	"github.com/steveyegge/tether/internal/debug"
	"github.com/steveyegge/tether/internal/pull"
	"github.com/steveyegge/tether/internal/ui"
)

var pullCmd = &cobra.Command{
	Use:     "pull",
	GroupID: "sync",
	Short:   "Fetch changed remote issues into the local mirror",
	Long: `Fetch issues matching the host's configured query patterns and merge
them into the local record store.

Pulls are incremental: each pattern remembers the newest "updated" timestamp
it has seen and only asks the tracker for issues changed since then. Local
queued edits, read markers, and tags are never touched by a pull.

Examples:
  tether pull                       # incremental, all configured patterns
  tether pull --full                # refetch everything
  tether pull --since "2 days ago"  # explicit lower bound
  tether pull --jql "project = OPS" # ad-hoc query instead of config`,
	Run: func(cmd *cobra.Command, args []string) {
		hostFlag, _ := cmd.Flags().GetString("host")
		full, _ := cmd.Flags().GetBool("full")
		sinceRaw, _ := cmd.Flags().GetString("since")
		limit, _ := cmd.Flags().GetInt("limit")
		jql, _ := cmd.Flags().GetString("jql")

		ws := findWorkspace()
		cfg := loadConfig(ws)
		host, name := selectHost(cfg, hostFlag)

		patterns := patternsFor(host, jql)
		if len(patterns) == 0 {
			fatalf("host %q has no pull patterns configured and no --jql given", name)
		}

		opts := pull.Options{Full: full, Limit: limit}
		if sinceRaw != "" {
			since, err := parseSince(sinceRaw)
			if err != nil {
				fatalf("%v", err)
			}
			opts.Since = since
		}

		store := openStore(ws)
		led := openLedger(ws)
		defer led.Close()

		engine := pull.New(store, led, nil)
		debug.Logf("pull host=%s patterns=%d full=%v", host.URL, len(patterns), full)
		res := engine.PullHost(cmd.Context(), newClient(host), host.URL, patterns, opts)

		for _, warn := range res.Warnings {
			fmt.Printf("%s %s\n", ui.RenderWarn("!"), warn)
		}
		fmt.Printf("%s Pulled %d issue(s) from %s (%d pattern(s), %d saved)\n",
			ui.RenderPass("✓"), res.Fetched, name, res.Patterns, res.Saved)

		if res.Failed() {
			for _, err := range res.Errors {
				fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("✗"), err)
			}
			os.Exit(1)
		}
	},
}

func patternsFor(host config.Host, jql string) []pull.Pattern {
	if jql != "" {
		return []pull.Pattern{{JQL: jql}}
	}
	patterns := make([]pull.Pattern, 0, len(host.Patterns))
	for _, p := range host.Patterns {
		patterns = append(patterns, pull.Pattern{JQL: p.JQL, Max: p.Max})
	}
	return patterns
}

// parseSince accepts dates, timestamps, and natural phrases like
// "2 days ago" or "last monday".
func parseSince(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	r, err := w.Parse(s, time.Now())
	if err != nil || r == nil {
		return time.Time{}, fmt.Errorf("could not parse --since value %q", s)
	}
	return r.Time, nil
}

func init() {
	pullCmd.Flags().String("host", "", "Configured host to pull from")
	pullCmd.Flags().Bool("full", false, "Ignore cursors and refetch everything")
	pullCmd.Flags().String("since", "", "Explicit lower bound (date or phrase like '2 days ago')")
	pullCmd.Flags().Int("limit", 0, "Cap fetched issues per pattern")
	pullCmd.Flags().String("jql", "", "Ad-hoc query to pull instead of configured patterns")
	rootCmd.AddCommand(pullCmd)
}
