package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/tether/internal/record"
	"github.com/steveyegge/tether/internal/ui"
)

var listCmd = &cobra.Command{
	Use:     "list",
	GroupID: "records",
	Short:   "List mirrored records",
	Long: `List every mirrored record. Markers:

  *  queued local edits (shown by 'tether plan')
  !  remote changes since you last read the record`,
	Run: func(cmd *cobra.Command, args []string) {
		dirtyOnly, _ := cmd.Flags().GetBool("dirty")
		changedOnly, _ := cmd.Flags().GetBool("changed")
		tagFilter, _ := cmd.Flags().GetString("tag")

		ws := findWorkspace()
		store := openStore(ws)
		records, err := store.List()
		if err != nil {
			fatalf("%v", err)
		}

		shown := 0
		for _, rec := range records {
			if dirtyOnly && !rec.Local.Dirty() {
				continue
			}
			if changedOnly && rec.Local.ChangesSinceRead.Empty() {
				continue
			}
			if tagFilter != "" && !hasTag(rec, tagFilter) {
				continue
			}
			shown++

			marker := " "
			if rec.Local.Dirty() {
				marker = ui.RenderWarn("*")
			} else if !rec.Local.ChangesSinceRead.Empty() {
				marker = ui.RenderAccent("!")
			}
			line := fmt.Sprintf("%s %-12s %-14s %s", marker, ui.RenderAccent(rec.Key), rec.Status, rec.Title)
			if len(rec.Local.Tags) > 0 {
				line += " " + ui.RenderFaint("["+strings.Join(rec.Local.Tags, ",")+"]")
			}
			fmt.Println(line)
		}
		if shown == 0 {
			fmt.Println("No records matched, run 'tether pull' to sync")
		}
	},
}

var showCmd = &cobra.Command{
	Use:     "show <record>",
	GroupID: "records",
	Short:   "Show one record in full",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := findWorkspace()
		store := openStore(ws)
		rec := resolveRecord(store, args[0])

		fmt.Printf("%s %s %s\n", ui.RenderAccent(rec.Key), rec.Title, ui.RenderFaint("("+rec.ShortID()+")"))
		fmt.Printf("  host:     %s\n", rec.Host)
		fmt.Printf("  type:     %s\n", rec.Type)
		fmt.Printf("  status:   %s\n", rec.Status)
		fmt.Printf("  priority: %s\n", rec.Priority)
		fmt.Printf("  assignee: %s\n", rec.Assignee)
		if len(rec.Labels) > 0 {
			fmt.Printf("  labels:   %s\n", strings.Join(rec.Labels, ", "))
		}
		if len(rec.Local.Tags) > 0 {
			fmt.Printf("  tags:     %s\n", strings.Join(rec.Local.Tags, ", "))
		}
		fmt.Printf("  updated:  %s\n", rec.Updated.Format(time.RFC3339))

		if s := rec.Local.ChangesSinceRead; !s.Empty() {
			fmt.Printf("\n%s Changed since you last read this:\n", ui.RenderWarn("!"))
			fmt.Print(renderSummary(s))
		}

		if rec.Description != "" {
			fmt.Printf("\n%s\n", rec.Description)
		}

		if len(rec.Comments) > 0 {
			fmt.Printf("\nComments (%d):\n", len(rec.Comments))
			for _, c := range rec.Comments {
				fmt.Printf("  %s %s\n    %s\n",
					ui.RenderAccent(c.Author),
					ui.RenderFaint(c.Created.Format("2006-01-02 15:04")),
					strings.ReplaceAll(c.Body, "\n", "\n    "))
			}
		}

		if len(rec.Links) > 0 {
			fmt.Println("\nLinks:")
			for _, l := range rec.Links {
				dir := "<-"
				if l.Outward {
					dir = "->"
				}
				fmt.Printf("  %s %s %s\n", l.Type, dir, l.OtherKey)
			}
		}

		if rec.Local.Dirty() {
			fmt.Printf("\n%s Queued local edits, see 'tether plan'\n", ui.RenderWarn("*"))
		}
	},
}

func renderSummary(s *record.ChangeSummary) string {
	var b strings.Builder
	if s.Title {
		b.WriteString("  title changed\n")
	}
	if s.Description {
		b.WriteString("  description changed\n")
	}
	for _, f := range s.NamedFields {
		fmt.Fprintf(&b, "  %s changed\n", f)
	}
	if len(s.LabelsAdded) > 0 {
		fmt.Fprintf(&b, "  labels added: %s\n", strings.Join(s.LabelsAdded, ", "))
	}
	if len(s.LabelsRemoved) > 0 {
		fmt.Fprintf(&b, "  labels removed: %s\n", strings.Join(s.LabelsRemoved, ", "))
	}
	if len(s.ComponentsAdded) > 0 {
		fmt.Fprintf(&b, "  components added: %s\n", strings.Join(s.ComponentsAdded, ", "))
	}
	if len(s.ComponentsRemoved) > 0 {
		fmt.Fprintf(&b, "  components removed: %s\n", strings.Join(s.ComponentsRemoved, ", "))
	}
	if s.OtherFields > 0 {
		fmt.Fprintf(&b, "  %d other field change(s)\n", s.OtherFields)
	}
	if s.NewComments > 0 {
		fmt.Fprintf(&b, "  %d new comment(s)\n", s.NewComments)
	}
	return b.String()
}

var readCmd = &cobra.Command{
	Use:     "read <record>...",
	GroupID: "records",
	Short:   "Mark records as read, acknowledging remote changes",
	Args:    cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := findWorkspace()
		store := openStore(ws)
		for _, input := range args {
			rec := resolveRecord(store, input)
			if _, err := store.MarkRead(rec.ID); err != nil {
				fatalf("%v", err)
			}
			fmt.Printf("%s Marked %s read\n", ui.RenderPass("✓"), ui.RenderAccent(rec.Key))
		}
	},
}

var unreadCmd = &cobra.Command{
	Use:     "unread <record>...",
	GroupID: "records",
	Short:   "Revert records to never-read",
	Args:    cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := findWorkspace()
		store := openStore(ws)
		for _, input := range args {
			rec := resolveRecord(store, input)
			if _, err := store.ClearRead(rec.ID); err != nil {
				fatalf("%v", err)
			}
			fmt.Printf("%s Marked %s unread\n", ui.RenderPass("✓"), ui.RenderAccent(rec.Key))
		}
	},
}

var tagCmd = &cobra.Command{
	Use:     "tag <record> <tag>...",
	GroupID: "records",
	Short:   "Add or remove local-only tags on a record",
	Long: `Tags live purely in the local mirror and are never pushed to the
tracker. A leading "-" removes a tag, anything else adds one.

Example:
  tether tag PROJ-12 triage -stale`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ws := findWorkspace()
		store := openStore(ws)
		rec := resolveRecord(store, args[0])

		updated, err := store.MutateLocal(rec.ID, func(ls *record.LocalState) {
			for _, t := range args[1:] {
				if strings.HasPrefix(t, "-") {
					ls.Tags = removeTag(ls.Tags, strings.TrimPrefix(t, "-"))
				} else {
					ls.Tags = addTag(ls.Tags, t)
				}
			}
		})
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Tags on %s: %s\n",
			ui.RenderPass("✓"), ui.RenderAccent(updated.Key), strings.Join(updated.Local.Tags, ", "))
	},
}

func hasTag(rec *record.Record, tag string) bool {
	for _, t := range rec.Local.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func addTag(tags []string, tag string) []string {
	for _, t := range tags {
		if t == tag {
			return tags
		}
	}
	return append(tags, tag)
}

func removeTag(tags []string, tag string) []string {
	out := tags[:0]
	for _, t := range tags {
		if t != tag {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func init() {
	listCmd.Flags().Bool("dirty", false, "Only records with queued local edits")
	listCmd.Flags().Bool("changed", false, "Only records with unacknowledged remote changes")
	listCmd.Flags().String("tag", "", "Only records carrying this tag")
	rootCmd.AddCommand(listCmd, showCmd, readCmd, unreadCmd, tagCmd)
}
