package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/tether/internal/plan"
	"github.com/steveyegge/tether/internal/ui"
)

var planCmd = &cobra.Command{
	Use:     "plan",
	GroupID: "queue",
	Short:   "Show queued local edits that apply would push",
	Run: func(cmd *cobra.Command, args []string) {
		asJSON, _ := cmd.Flags().GetBool("json")

		ws := findWorkspace()
		store := openStore(ws)
		records, err := store.List()
		if err != nil {
			fatalf("%v", err)
		}

		p := plan.Compute(records)
		if asJSON {
			data, err := json.MarshalIndent(p, "", "  ")
			if err != nil {
				fatalf("%v", err)
			}
			fmt.Println(string(data))
			return
		}
		fmt.Print(renderPlan(p))
	},
}

func renderPlan(p *plan.Plan) string {
	if p.Empty() {
		return fmt.Sprintf("%s Nothing queued, local mirror matches your edits\n", ui.RenderPass("✓"))
	}

	var b strings.Builder
	for _, rp := range p.Records {
		header := fmt.Sprintf("%s %s", ui.RenderAccent(rp.Key), rp.Title)
		if rp.Delete {
			header += " " + ui.RenderFail("[delete]")
		}
		fmt.Fprintf(&b, "%s %s\n", header, ui.RenderFaint("("+rp.ShortID+")"))

		for _, f := range rp.Fields {
			if f.Before != "" {
				fmt.Fprintf(&b, "  %s: %s -> %s\n", f.Name, ui.RenderFaint(f.Before), f.After)
			} else {
				fmt.Fprintf(&b, "  %s: %s\n", f.Name, f.After)
			}
		}
		for _, c := range rp.Comments {
			fmt.Fprintf(&b, "  comment: %q\n", c)
		}
		for _, l := range rp.Links {
			fmt.Fprintf(&b, "  link %s: %s %s %s\n", l.Op, l.FromKey, l.Type, l.ToKey)
		}
	}

	fmt.Fprintf(&b, "\n%s\n", renderTotals(p))
	return b.String()
}

func renderTotals(p *plan.Plan) string {
	t := p.Totals
	return fmt.Sprintf("%d record(s): %d field update(s), %d comment(s), %d link change(s), %d deletion(s)",
		t.Records, t.FieldUpdates, t.Comments, t.LinkChanges, t.Deletions)
}

func init() {
	planCmd.Flags().Bool("json", false, "Output the plan as JSON")
	rootCmd.AddCommand(planCmd)
}
