package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/steveyegge/tether/internal/apply"
	"github.com/steveyegge/tether/internal/debug"
	"github.com/steveyegge/tether/internal/plan"
	"github.com/steveyegge/tether/internal/ui"
)

var applyCmd = &cobra.Command{
	Use:     "apply",
	GroupID: "queue",
	Short:   "Push queued local edits back to the tracker",
	Long: `Push every queued edit, comment, link change, and deletion to the remote
tracker, then re-sync the affected records.

Records are applied independently: a failure on one leaves its queue intact
for a retry and does not block the others. The command exits non-zero when
at least one record failed outright.`,
	Run: func(cmd *cobra.Command, args []string) {
		hostFlag, _ := cmd.Flags().GetString("host")
		yes, _ := cmd.Flags().GetBool("yes")
		recordFlags, _ := cmd.Flags().GetStringArray("record")

		ws := findWorkspace()
		cfg := loadConfig(ws)
		host, name := selectHost(cfg, hostFlag)

		store := openStore(ws)
		led := openLedger(ws)
		defer led.Close()

		records, err := store.List()
		if err != nil {
			fatalf("%v", err)
		}

		var only []string
		for _, input := range recordFlags {
			only = append(only, resolveRecord(store, input).ID)
		}

		p := plan.Compute(records)
		if p.Empty() {
			fmt.Printf("%s Nothing to apply\n", ui.RenderPass("✓"))
			return
		}
		fmt.Print(renderPlan(p))

		if !yes && !confirmApply(name, p) {
			fmt.Println("Aborted")
			return
		}

		reconciler := apply.New(store, led, nil)
		debug.Logf("apply host=%s records=%d", host.URL, p.Totals.Records)
		res, err := reconciler.Apply(cmd.Context(), newClient(host), host.URL, only)
		if err != nil {
			fatalf("%v", err)
		}

		for _, o := range res.Outcomes {
			for _, warn := range o.Warnings {
				fmt.Printf("%s %s\n", ui.RenderWarn("!"), warn)
			}
		}
		fmt.Printf("%s Applied %d record(s), deleted %d\n",
			ui.RenderPass("✓"), res.Applied, res.Removed)

		if res.Failed() {
			for _, err := range res.Errors() {
				fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("✗"), err)
			}
			os.Exit(1)
		}
	},
}

func confirmApply(hostName string, p *plan.Plan) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fatalf("refusing to apply without a terminal, pass --yes to confirm")
	}
	confirmed := false
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(fmt.Sprintf("Apply %d record(s) to %s?", p.Totals.Records, hostName)).
			Description(renderTotals(p)).
			Value(&confirmed),
	))
	if err := form.Run(); err != nil {
		fatalf("%v", err)
	}
	return confirmed
}

func init() {
	applyCmd.Flags().String("host", "", "Configured host to apply against")
	applyCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	applyCmd.Flags().StringArray("record", nil, "Apply only this record (repeatable)")
	rootCmd.AddCommand(applyCmd)
}
