package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/tether/internal/ui"
)

var cursorCmd = &cobra.Command{
	Use:     "cursor",
	GroupID: "sync",
	Short:   "Inspect and reset incremental pull cursors",
}

var cursorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored pull cursors",
	Run: func(cmd *cobra.Command, args []string) {
		ws := findWorkspace()
		led := openLedger(ws)
		defer led.Close()

		entries, err := led.List()
		if err != nil {
			fatalf("%v", err)
		}
		if len(entries) == 0 {
			fmt.Println("No cursors stored, next pull will be a full fetch")
			return
		}
		for _, e := range entries {
			fmt.Printf("%s %s\n  %s %s\n",
				ui.RenderAccent(e.Host), e.Pattern,
				e.HighWater.Format(time.RFC3339),
				ui.RenderFaint("(advanced "+e.UpdatedAt.Format(time.RFC3339)+")"))
		}
	},
}

var cursorResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop cursors so the next pull refetches from scratch",
	Run: func(cmd *cobra.Command, args []string) {
		hostFlag, _ := cmd.Flags().GetString("host")
		jql, _ := cmd.Flags().GetString("jql")

		ws := findWorkspace()
		cfg := loadConfig(ws)
		host, name := selectHost(cfg, hostFlag)

		led := openLedger(ws)
		defer led.Close()

		if jql != "" {
			if err := led.Reset(host.URL, jql); err != nil {
				fatalf("%v", err)
			}
			fmt.Printf("%s Reset cursor for %q on %s\n", ui.RenderPass("✓"), jql, name)
			return
		}
		if err := led.ResetHost(host.URL); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Reset all cursors for %s\n", ui.RenderPass("✓"), name)
	},
}

func init() {
	cursorResetCmd.Flags().String("host", "", "Configured host")
	cursorResetCmd.Flags().String("jql", "", "Reset only this pattern")
	cursorCmd.AddCommand(cursorListCmd, cursorResetCmd)
	rootCmd.AddCommand(cursorCmd)
}
