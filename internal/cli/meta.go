package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jtarleton/lorebook/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "meta [book]",
		Short: "Show or edit a book's metadata",
		Long:  "Show a book's metadata (group, note, tags, pinned), or edit it when field flags are given.",
		Args:  cobra.ExactArgs(1),
		Run:   runMeta,
	}
	cmd.Flags().String("group", "", "Group name")
	cmd.Flags().String("note", "", "Free-form note")
	cmd.Flags().String("tags", "", "Comma-separated tags (replaces existing)")
	cmd.Flags().Bool("pin", false, "Pin the book")
	cmd.Flags().Bool("unpin", false, "Unpin the book")

	RootCmd.AddCommand(cmd)
}

func runMeta(cmd *cobra.Command, args []string) {
	book := args[0]

	e, r, err := openEngine()
	if err != nil {
		exitErr("open", err)
	}
	defer r.Close()
	ctx := cmd.Context()

	edited := false
	for _, flag := range []string{"group", "note", "tags", "pin", "unpin"} {
		if cmd.Flags().Changed(flag) {
			edited = true
		}
	}

	if edited {
		err = e.Meta().UpdateMeta(ctx, book, func(meta *model.BookMeta) {
			if cmd.Flags().Changed("group") {
				meta.Group, _ = cmd.Flags().GetString("group")
			}
			if cmd.Flags().Changed("note") {
				meta.Note, _ = cmd.Flags().GetString("note")
			}
			if cmd.Flags().Changed("tags") {
				raw, _ := cmd.Flags().GetString("tags")
				tags := []string{}
				for _, t := range strings.Split(raw, ",") {
					if t = strings.TrimSpace(t); t != "" {
						tags = append(tags, t)
					}
				}
				meta.Tags = tags
			}
			if pin, _ := cmd.Flags().GetBool("pin"); pin {
				meta.Pinned = true
			}
			if unpin, _ := cmd.Flags().GetBool("unpin"); unpin {
				meta.Pinned = false
			}
		})
		if err != nil {
			exitErr("meta", err)
		}
		if err := e.Meta().Flush(context.WithoutCancel(ctx)); err != nil {
			exitErr("meta", err)
		}
	}

	meta, _, err := e.Meta().Get(ctx, book)
	if err != nil {
		exitErr("meta", err)
	}
	b, _ := json.MarshalIndent(meta, "", "  ")
	fmt.Println(string(b))
}
