package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jtarleton/lorebook/internal/model"
)

func init() {
	books := &cobra.Command{
		Use:   "books",
		Short: "List all books",
		Run:   runBooks,
	}
	books.Flags().Bool("names-only", false, "Only output book names")

	create := &cobra.Command{
		Use:   "create [name]",
		Short: "Create an empty book",
		Args:  cobra.ExactArgs(1),
		Run:   runCreateBook,
	}

	rm := &cobra.Command{
		Use:   "rm [name]",
		Short: "Delete a book permanently",
		Run:   runRmBook,
		Args:  cobra.ExactArgs(1),
	}

	rename := &cobra.Command{
		Use:   "rename [old] [new]",
		Short: "Rename a book, migrating its bindings",
		Long:  "Rename a book. Every binding scope referencing the old name is migrated best-effort; migration failures are warnings, not errors, and the old book is deleted regardless.",
		Args:  cobra.ExactArgs(2),
		Run:   runRenameBook,
	}

	RootCmd.AddCommand(books, create, rm, rename)
}

type bookListing struct {
	Name    string         `json:"name"`
	Meta    model.BookMeta `json:"meta"`
	BoundTo []string       `json:"bound_to,omitempty"`
}

func runBooks(cmd *cobra.Command, args []string) {
	namesOnly, _ := cmd.Flags().GetBool("names-only")

	e, r, err := openEngine()
	if err != nil {
		exitErr("open", err)
	}
	defer r.Close()
	ctx := cmd.Context()
	defer e.Close(context.WithoutCancel(ctx))

	names, err := e.ListBookNames(ctx)
	if err != nil {
		exitErr("books", err)
	}

	if namesOnly {
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}

	meta, err := e.Meta().All(ctx)
	if err != nil {
		exitErr("books", err)
	}
	bound, err := e.BoundBooks(ctx)
	if err != nil {
		exitErr("books", err)
	}

	listings := make([]bookListing, 0, len(names))
	for _, name := range names {
		listings = append(listings, bookListing{
			Name:    name,
			Meta:    meta[name],
			BoundTo: bound[name],
		})
	}
	b, _ := json.MarshalIndent(listings, "", "  ")
	fmt.Println(string(b))
}

func runCreateBook(cmd *cobra.Command, args []string) {
	e, r, err := openEngine()
	if err != nil {
		exitErr("open", err)
	}
	defer r.Close()

	if err := e.CreateBook(cmd.Context(), args[0]); err != nil {
		exitErr("create", err)
	}
	fmt.Printf(`{"ok":true,"book":%q}`+"\n", args[0])
}

func runRmBook(cmd *cobra.Command, args []string) {
	e, r, err := openEngine()
	if err != nil {
		exitErr("open", err)
	}
	defer r.Close()

	if err := e.DeleteBook(cmd.Context(), args[0]); err != nil {
		exitErr("rm", err)
	}
	fmt.Printf(`{"ok":true,"deleted":%q}`+"\n", args[0])
}

func runRenameBook(cmd *cobra.Command, args []string) {
	e, r, err := openEngine()
	if err != nil {
		exitErr("open", err)
	}
	defer r.Close()

	warnings, err := e.RenameBook(cmd.Context(), args[0], args[1])
	if err != nil {
		exitErr("rename", err)
	}
	for _, w := range warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: binding migration: %v\n", w)
	}
	fmt.Printf(`{"ok":true,"old":%q,"new":%q,"migration_warnings":%d}`+"\n",
		args[0], args[1], len(warnings))
}
