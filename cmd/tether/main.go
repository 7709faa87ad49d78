package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/steveyegge/tether/internal/config"
	"github.com/steveyegge/tether/internal/debug"
	"github.com/steveyegge/tether/internal/ledger"
	"github.com/steveyegge/tether/internal/plan"
	"github.com/steveyegge/tether/internal/record"
	"github.com/steveyegge/tether/internal/remote"
)

var rootCmd = &cobra.Command{
	Use:   "tether",
	Short: "Offline mirror and sync for remote issue trackers",
	Long: `tether keeps a local, file-based mirror of remote tracker issues and a
queue of offline edits that sync back on demand.

Records live as markdown files under .tether/records/, one per issue, with
the remote snapshot in YAML frontmatter and your local state (queued edits,
read markers, tags) in a protected section that pulls never overwrite.

Typical loop:
  tether pull           # fetch remote changes incrementally
  tether edit PROJ-12 priority Highest
  tether comment PROJ-12 "fixed by the cache change"
  tether plan           # review queued work
  tether apply          # push it back to the tracker`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync commands:"},
		&cobra.Group{ID: "queue", Title: "Offline edit commands:"},
		&cobra.Group{ID: "records", Title: "Record commands:"},
	)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// findWorkspace locates the .tether directory or exits.
func findWorkspace() string {
	ws, err := config.FindWorkspace(".")
	if err != nil {
		fatalf(".tether directory not found, run 'tether init' first")
	}
	debug.Init(ws)
	return ws
}

func loadConfig(ws string) *config.Config {
	cfg, err := config.Load(ws)
	if err != nil {
		fatalf("%v", err)
	}
	return cfg
}

// openStore opens the record store with the change-summary hook wired in,
// so every save refreshes the changes-since-read section.
func openStore(ws string) *record.Store {
	store, err := record.Open(filepath.Join(ws, "records"), plan.Summarize, nil)
	if err != nil {
		fatalf("%v", err)
	}
	return store
}

func openLedger(ws string) *ledger.Ledger {
	led, err := ledger.Open(filepath.Join(ws, "ledger.db"))
	if err != nil {
		fatalf("%v", err)
	}
	return led
}

// selectHost resolves the target host from --host, environment, or config.
func selectHost(cfg *config.Config, flag string) (config.Host, string) {
	host, name, err := cfg.SelectHost(flag)
	if err != nil {
		fatalf("%v", err)
	}
	return host, name
}

func newClient(host config.Host) *remote.Client {
	return remote.NewClient(host.URL, host.User, host.Token, nil)
}

// resolveRecord maps user input (key, id, or id prefix) to a record or exits.
func resolveRecord(store *record.Store, input string) *record.Record {
	rec, err := store.Resolve(input)
	if err != nil {
		fatalf("%v", err)
	}
	return rec
}
