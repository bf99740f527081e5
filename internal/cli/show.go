package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jtarleton/lorebook/internal/engine"
)

func init() {
	cmd := &cobra.Command{
		Use:   "show [book]",
		Short: "Show a book's entries in priority order",
		Args:  cobra.ExactArgs(1),
		Run:   runShow,
	}
	cmd.Flags().Bool("summary", false, "One line per entry instead of JSON")

	RootCmd.AddCommand(cmd)
}

func runShow(cmd *cobra.Command, args []string) {
	summary, _ := cmd.Flags().GetBool("summary")

	e, r, err := openEngine()
	if err != nil {
		exitErr("open", err)
	}
	defer r.Close()
	ctx := cmd.Context()

	if err := e.LoadBook(ctx, args[0]); err != nil {
		exitErr("show", err)
	}
	entries := e.Entries()

	if summary {
		depth := e.NoteDepth(ctx)
		for _, entry := range entries {
			state := " "
			if entry.Disable {
				state = "x"
			}
			fmt.Printf("[%s] %3d  %-20s score=%.1f order=%d %s\n",
				state, entry.UID, entry.Position, engine.Score(entry, depth), entry.Order, entry.Comment)
		}
		return
	}

	b, _ := json.MarshalIndent(entries, "", "  ")
	fmt.Println(string(b))
}
