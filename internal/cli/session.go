package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	use := &cobra.Command{
		Use:   "use",
		Short: "Switch the active character or chat",
		Run:   runUse,
	}
	use.Flags().String("character", "", "Character key to make active")
	use.Flags().String("chat", "", "Chat id to make active")

	chat := &cobra.Command{
		Use:   "chat",
		Short: "Manage chat sessions",
	}

	chatNew := &cobra.Command{
		Use:   "new",
		Short: "Create a chat session and make it current",
		Run:   runChatNew,
	}
	chatNew.Flags().String("name", "", "Chat display name")

	chatDepth := &cobra.Command{
		Use:   "note-depth [depth]",
		Short: "Set the author-note depth for the active chat",
		Args:  cobra.ExactArgs(1),
		Run:   runChatNoteDepth,
	}

	chat.AddCommand(chatNew, chatDepth)

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the active session context",
		Run:   runStatus,
	}

	RootCmd.AddCommand(use, chat, status)
}

func runUse(cmd *cobra.Command, args []string) {
	_, r, err := openEngine()
	if err != nil {
		exitErr("open", err)
	}
	defer r.Close()
	ctx := cmd.Context()

	if cmd.Flags().Changed("character") {
		key, _ := cmd.Flags().GetString("character")
		if err := r.SetCurrentCharacter(ctx, key); err != nil {
			exitErr("use", err)
		}
	}
	if cmd.Flags().Changed("chat") {
		id, _ := cmd.Flags().GetString("chat")
		if err := r.SetCurrentChat(ctx, id); err != nil {
			exitErr("use", err)
		}
	}

	char, _ := r.CurrentCharacter(ctx)
	chat, _ := r.CurrentChat(ctx)
	fmt.Printf(`{"ok":true,"character":%q,"chat":%q}`+"\n", char, chat)
}

func runChatNew(cmd *cobra.Command, args []string) {
	name, _ := cmd.Flags().GetString("name")

	_, r, err := openEngine()
	if err != nil {
		exitErr("open", err)
	}
	defer r.Close()

	id, err := r.NewChat(cmd.Context(), name)
	if err != nil {
		exitErr("chat new", err)
	}
	fmt.Printf(`{"ok":true,"chat":%q}`+"\n", id)
}

func runChatNoteDepth(cmd *cobra.Command, args []string) {
	depth, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		exitErr("note-depth", fmt.Errorf("invalid depth %q", args[0]))
	}

	_, r, err := openEngine()
	if err != nil {
		exitErr("open", err)
	}
	defer r.Close()

	if err := r.SetChatNoteDepth(cmd.Context(), depth); err != nil {
		exitErr("note-depth", err)
	}
	fmt.Printf(`{"ok":true,"note_depth":%s}`+"\n", args[0])
}

func runStatus(cmd *cobra.Command, args []string) {
	e, r, err := openEngine()
	if err != nil {
		exitErr("open", err)
	}
	defer r.Close()
	ctx := cmd.Context()

	char, _ := r.CurrentCharacter(ctx)
	chat, _ := r.CurrentChat(ctx)
	bindings, err := e.Bindings(ctx)
	if err != nil {
		exitErr("status", err)
	}

	out := map[string]any{
		"character":  char,
		"chat":       chat,
		"note_depth": e.NoteDepth(ctx),
		"bindings":   bindings,
	}
	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}
