package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/tether/internal/pull"
	"github.com/steveyegge/tether/internal/ui"
)

var fieldsCmd = &cobra.Command{
	Use:     "fields",
	GroupID: "sync",
	Short:   "Manage the field-alias cache",
}

var fieldsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh field aliases from the tracker's field list",
	Long: `Fetch the tracker's field definitions and rebuild the local alias
cache. Aliases are lowercased field names with spaces as dashes, so
"Story Points" becomes the editable field "story-points".`,
	Run: func(cmd *cobra.Command, args []string) {
		hostFlag, _ := cmd.Flags().GetString("host")

		ws := findWorkspace()
		cfg := loadConfig(ws)
		host, name := selectHost(cfg, hostFlag)

		led := openLedger(ws)
		defer led.Close()

		n, err := pull.SyncFields(cmd.Context(), newClient(host), led, host.URL)
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Cached %d field alias(es) for %s\n", ui.RenderPass("✓"), n, name)
	},
}

func init() {
	fieldsSyncCmd.Flags().String("host", "", "Configured host")
	fieldsCmd.AddCommand(fieldsSyncCmd)
	rootCmd.AddCommand(fieldsCmd)
}
