package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/jtarleton/lorebook/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import [name] [file]",
		Short: "Import a book from JSON",
		Long:  "Import a book from JSON (file or stdin). Accepts the export shape ({\"entries\":{uid:...}}) or a bare entry array. An existing book of the same name is overwritten only with --force.",
		Args:  cobra.RangeArgs(1, 2),
		Run:   runImportBook,
	}
	cmd.Flags().Bool("force", false, "Overwrite an existing book")

	RootCmd.AddCommand(cmd)
}

func runImportBook(cmd *cobra.Command, args []string) {
	force, _ := cmd.Flags().GetBool("force")
	name := args[0]

	var data []byte
	var err error
	if len(args) == 2 {
		data, err = os.ReadFile(args[1])
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		exitErr("read input", err)
	}

	entries, err := decodeImport(data)
	if err != nil {
		exitErr("parse json", err)
	}

	e, r, err := openEngine()
	if err != nil {
		exitErr("open", err)
	}
	defer r.Close()
	ctx := cmd.Context()

	names, err := e.ListBookNames(ctx)
	if err != nil {
		exitErr("import", err)
	}
	if slices.Contains(names, name) && !force {
		exitErr("import", fmt.Errorf("book %q already exists (use --force to overwrite)", name))
	}

	byUID := make(map[int]model.Entry, len(entries))
	for _, entry := range entries {
		byUID[entry.UID] = entry
	}
	if err := r.SaveBook(ctx, name, byUID, true); err != nil {
		exitErr("import", err)
	}
	fmt.Printf(`{"ok":true,"book":%q,"entries":%d}`+"\n", name, len(byUID))
}

// decodeImport accepts either the export shape or a bare entry array.
func decodeImport(data []byte) ([]model.Entry, error) {
	var doc exportDoc
	if err := json.Unmarshal(data, &doc); err == nil && doc.Entries != nil {
		entries := make([]model.Entry, 0, len(doc.Entries))
		for _, entry := range doc.Entries {
			entries = append(entries, entry)
		}
		return entries, nil
	}

	var entries []model.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("neither an export document nor an entry array: %w", err)
	}
	return entries, nil
}
