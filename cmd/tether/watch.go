package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/steveyegge/tether/internal/plan"
	"github.com/steveyegge/tether/internal/record"
	"github.com/steveyegge/tether/internal/ui"
	"github.com/steveyegge/tether/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "records",
	Short:   "Watch the mirror and reprint the plan as records change",
	Long: `Watch the records directory and reprint the queued-work summary
whenever record files change, whether from another tether command or an
editor. Stop with Ctrl-C.`,
	Run: func(cmd *cobra.Command, args []string) {
		ws := findWorkspace()
		store := openStore(ws)

		w, err := watch.New()
		if err != nil {
			fatalf("%v", err)
		}
		if err := w.Start(store.Dir()); err != nil {
			fatalf("%v", err)
		}
		defer w.Stop()

		printPlan(store)
		fmt.Printf("%s Watching %s\n", ui.RenderAccent("👁"), store.Dir())

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		for {
			select {
			case <-w.Events():
				printPlan(store)
			case err := <-w.Errors():
				fmt.Fprintf(os.Stderr, "%s watch error: %v\n", ui.RenderWarn("!"), err)
			case <-sigCh:
				fmt.Println("\nStopping")
				return
			}
		}
	},
}

func printPlan(store *record.Store) {
	records, err := store.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderWarn("!"), err)
		return
	}
	fmt.Print(renderPlan(plan.Compute(records)))
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
