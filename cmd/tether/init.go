package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/steveyegge/tether/internal/config"
	"github.com/steveyegge/tether/internal/ui"
)

const configTemplate = `# tether host configuration.
#
# default = "work"
#
# [hosts.work]
# url = "https://jira.example.com"
# user = "you"
# token = "api-token"        # or set TETHER_TOKEN
#
# [[hosts.work.patterns]]
# jql = "project = PROJ AND assignee = currentUser()"
# max = 500
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a .tether workspace in the current directory",
	Run: func(cmd *cobra.Command, args []string) {
		ws := filepath.Join(".", config.WorkspaceDirName)
		if _, err := os.Stat(ws); err == nil {
			fatalf("%s already exists", ws)
		}
		if err := os.MkdirAll(filepath.Join(ws, "records"), 0755); err != nil {
			fatalf("%v", err)
		}
		cfgPath := filepath.Join(ws, config.ConfigFileName)
		if err := os.WriteFile(cfgPath, []byte(configTemplate), 0600); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Initialized workspace at %s\n", ui.RenderPass("✓"), ws)
		fmt.Printf("  Edit %s to configure your tracker, then run 'tether pull'\n", cfgPath)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
