package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jtarleton/lorebook/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export [book]",
		Short: "Export a book as JSON or TXT",
		Long:  "Export a book. Default is the persisted JSON shape ({\"entries\":{uid:...}}); --txt emits entry bodies in priority order.",
		Args:  cobra.ExactArgs(1),
		Run:   runExportBook,
	}
	cmd.Flags().Bool("txt", false, "Plain-text export instead of JSON")
	cmd.Flags().Bool("enabled-only", false, "TXT: skip disabled entries")
	cmd.Flags().Bool("no-titles", false, "TXT: omit entry titles")
	cmd.Flags().StringP("out", "o", "", "Write to file instead of stdout")

	RootCmd.AddCommand(cmd)
}

// exportDoc is the on-disk book shape: entries keyed by stringified uid.
type exportDoc struct {
	Entries map[string]model.Entry `json:"entries"`
}

func runExportBook(cmd *cobra.Command, args []string) {
	txt, _ := cmd.Flags().GetBool("txt")
	enabledOnly, _ := cmd.Flags().GetBool("enabled-only")
	noTitles, _ := cmd.Flags().GetBool("no-titles")
	outPath, _ := cmd.Flags().GetString("out")

	e, r, err := openEngine()
	if err != nil {
		exitErr("open", err)
	}
	defer r.Close()
	ctx := cmd.Context()

	if err := e.LoadBook(ctx, args[0]); err != nil {
		exitErr("export", err)
	}
	entries := e.Entries() // already in priority order

	var out []byte
	if txt {
		var sb strings.Builder
		for _, entry := range entries {
			if enabledOnly && entry.Disable {
				continue
			}
			if !noTitles {
				title := entry.Comment
				if title == "" {
					title = "Untitled entry"
				}
				sb.WriteString("#### " + title + "\n")
			}
			sb.WriteString(entry.Content + "\n\n")
		}
		out = []byte(sb.String())
	} else {
		doc := exportDoc{Entries: make(map[string]model.Entry, len(entries))}
		for _, entry := range entries {
			doc.Entries[strconv.Itoa(entry.UID)] = entry
		}
		out, _ = json.MarshalIndent(doc, "", "  ")
		out = append(out, '\n')
	}

	if outPath == "" {
		os.Stdout.Write(out)
		return
	}
	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		exitErr("export", err)
	}
	fmt.Printf(`{"ok":true,"book":%q,"file":%q}`+"\n", args[0], outPath)
}
