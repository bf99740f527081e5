package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jtarleton/lorebook/internal/engine"
)

func init() {
	bind := &cobra.Command{
		Use:   "bind [scope] [book]",
		Short: "Bind or unbind a book in a scope",
		Long:  "Bind a book in one of the four scopes: primary, auxiliary, chat, global. Use --off to unbind.",
		Args:  cobra.ExactArgs(2),
		Run:   runBind,
	}
	bind.Flags().Bool("off", false, "Unbind instead of bind")

	bindings := &cobra.Command{
		Use:   "bindings",
		Short: "Show all bindings for the active context",
		Run:   runBindings,
	}

	RootCmd.AddCommand(bind, bindings)
}

func runBind(cmd *cobra.Command, args []string) {
	off, _ := cmd.Flags().GetBool("off")

	scope, err := engine.ParseScope(args[0])
	if err != nil {
		exitErr("bind", err)
	}

	e, r, err := openEngine()
	if err != nil {
		exitErr("open", err)
	}
	defer r.Close()

	if err := e.SetBinding(cmd.Context(), scope, args[1], !off); err != nil {
		exitErr("bind", err)
	}
	fmt.Printf(`{"ok":true,"scope":%q,"book":%q,"enabled":%t}`+"\n", scope, args[1], !off)
}

func runBindings(cmd *cobra.Command, args []string) {
	e, r, err := openEngine()
	if err != nil {
		exitErr("open", err)
	}
	defer r.Close()

	state, err := e.Bindings(cmd.Context())
	if err != nil {
		exitErr("bindings", err)
	}
	b, _ := json.MarshalIndent(state, "", "  ")
	fmt.Println(string(b))
}
