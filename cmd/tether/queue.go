package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/tether/internal/queue"
	"github.com/steveyegge/tether/internal/ui"
)

var editCmd = &cobra.Command{
	Use:     "edit <record> <field> <value>",
	GroupID: "queue",
	Short:   "Queue a field edit for the next apply",
	Long: `Queue a field-value edit. The edit stays local until 'tether apply'.

Fields are matched by alias (run 'tether fields sync' to refresh the alias
cache). Two fields get special handling:

  status    queued as a workflow transition, matched by target state name
  labels    list semantics: "+urgent,-stale" adds and removes, a plain
            comma-separated value replaces the whole set

Examples:
  tether edit PROJ-12 priority Highest
  tether edit PROJ-12 status "In Progress"
  tether edit PROJ-12 labels +urgent,-stale`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		ws := findWorkspace()
		store := openStore(ws)
		rec := resolveRecord(store, args[0])

		updated, err := queue.New(store).EditField(rec.ID, args[1], args[2])
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Queued %s edit for %s\n",
			ui.RenderPass("✓"), args[1], ui.RenderAccent(updated.Key))
	},
}

var commentCmd = &cobra.Command{
	Use:     "comment <record> <text>...",
	GroupID: "queue",
	Short:   "Queue a comment for the next apply",
	Args:    cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ws := findWorkspace()
		store := openStore(ws)
		rec := resolveRecord(store, args[0])

		body := strings.Join(args[1:], " ")
		updated, err := queue.New(store).AddComment(rec.ID, body)
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Queued comment on %s (%d pending)\n",
			ui.RenderPass("✓"), ui.RenderAccent(updated.Key), len(updated.Local.Pending.Comments))
	},
}

var linkCmd = &cobra.Command{
	Use:     "link <from> <to>",
	GroupID: "queue",
	Short:   "Queue a link between two records",
	Long: `Queue a link between two mirrored records. Both must live on the same
host; the link is created remotely on the next apply.

Example:
  tether link PROJ-12 PROJ-40 --type Blocks`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		linkType, _ := cmd.Flags().GetString("type")
		ws := findWorkspace()
		store := openStore(ws)

		updated, err := queue.New(store).AddLink(args[0], args[1], linkType, queue.LinkAdd)
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Queued link %s -[%s]-> %s\n",
			ui.RenderPass("✓"), ui.RenderAccent(updated.Key), linkType, args[1])
	},
}

var unlinkCmd = &cobra.Command{
	Use:     "unlink <from> <to>",
	GroupID: "queue",
	Short:   "Queue removal of a link between two records",
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		linkType, _ := cmd.Flags().GetString("type")
		ws := findWorkspace()
		store := openStore(ws)

		updated, err := queue.New(store).AddLink(args[0], args[1], linkType, queue.LinkRemove)
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Queued unlink %s -[%s]-> %s\n",
			ui.RenderPass("✓"), ui.RenderAccent(updated.Key), linkType, args[1])
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <record>",
	GroupID: "queue",
	Short:   "Mark a record for remote deletion on the next apply",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		clearMark, _ := cmd.Flags().GetBool("clear")
		ws := findWorkspace()
		store := openStore(ws)
		rec := resolveRecord(store, args[0])
		q := queue.New(store)

		if clearMark {
			updated, err := q.ClearDeleted(rec.ID)
			if err != nil {
				fatalf("%v", err)
			}
			fmt.Printf("%s Unmarked %s for deletion\n", ui.RenderPass("✓"), ui.RenderAccent(updated.Key))
			return
		}

		updated, alreadyMarked, err := q.MarkDeleted(rec.ID)
		if err != nil {
			fatalf("%v", err)
		}
		if alreadyMarked {
			fmt.Printf("%s %s is already marked for deletion\n", ui.RenderWarn("!"), updated.Key)
			return
		}
		fmt.Printf("%s Marked %s for deletion, run 'tether apply' to push\n",
			ui.RenderPass("✓"), ui.RenderAccent(updated.Key))
	},
}

func init() {
	linkCmd.Flags().String("type", "Relates", "Link type name")
	unlinkCmd.Flags().String("type", "Relates", "Link type name")
	deleteCmd.Flags().Bool("clear", false, "Unmark instead of marking")
	rootCmd.AddCommand(editCmd, commentCmd, linkCmd, unlinkCmd, deleteCmd)
}
