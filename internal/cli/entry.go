package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jtarleton/lorebook/internal/model"
)

func init() {
	add := &cobra.Command{
		Use:   "add [book]",
		Short: "Add a new entry with default fields",
		Args:  cobra.ExactArgs(1),
		Run:   runAddEntry,
	}

	edit := &cobra.Command{
		Use:   "edit [book] [uid]",
		Short: "Edit fields of an entry",
		Args:  cobra.ExactArgs(2),
		Run:   runEditEntry,
	}
	edit.Flags().String("comment", "", "Display title")
	edit.Flags().String("content", "", "Entry body")
	edit.Flags().String("keys", "", "Comma-separated trigger keys (plain or /pattern/flags)")
	edit.Flags().String("position", "", "Placement slot (name or 0-6)")
	edit.Flags().Int("depth", -1, "Depth (for at_depth position)")
	edit.Flags().Int("order", -1, "Secondary sort key")
	edit.Flags().String("disable", "", "true/false")
	edit.Flags().String("constant", "", "true/false (always considered vs keyword-triggered)")
	edit.Flags().Float64("probability", -1, "Activation probability")

	rmEntry := &cobra.Command{
		Use:   "rm-entry [book] [uid...]",
		Short: "Delete entries by uid",
		Args:  cobra.MinimumNArgs(2),
		Run:   runRmEntry,
	}

	reorder := &cobra.Command{
		Use:   "reorder [book] [from] [to]",
		Short: "Move an entry to a new list position",
		Args:  cobra.ExactArgs(3),
		Run:   runReorder,
	}

	sortCmd := &cobra.Command{
		Use:   "sort [book]",
		Short: "Re-derive entry order from placement scores",
		Args:  cobra.ExactArgs(1),
		Run:   runSortBook,
	}

	RootCmd.AddCommand(add, edit, rmEntry, reorder, sortCmd)
}

func runAddEntry(cmd *cobra.Command, args []string) {
	e, r, err := openEngine()
	if err != nil {
		exitErr("open", err)
	}
	defer r.Close()
	ctx := cmd.Context()

	if err := e.LoadBook(ctx, args[0]); err != nil {
		exitErr("add", err)
	}
	entry, err := e.AddEntry(ctx)
	if err != nil {
		exitErr("add", err)
	}
	b, _ := json.Marshal(entry)
	fmt.Println(string(b))
}

func runEditEntry(cmd *cobra.Command, args []string) {
	uid, err := strconv.Atoi(args[1])
	if err != nil {
		exitErr("edit", fmt.Errorf("invalid uid %q", args[1]))
	}

	e, r, err := openEngine()
	if err != nil {
		exitErr("open", err)
	}
	defer r.Close()
	ctx := cmd.Context()

	if err := e.LoadBook(ctx, args[0]); err != nil {
		exitErr("edit", err)
	}

	mutate, err := mutatorFromFlags(cmd)
	if err != nil {
		exitErr("edit", err)
	}

	found := false
	e.UpdateEntry(uid, func(entry *model.Entry) {
		found = true
		mutate(entry)
	})
	if !found {
		exitErr("edit", fmt.Errorf("no entry with uid %d in %q", uid, args[0]))
	}

	// Close flushes the debounced write before the process exits.
	if err := e.Close(context.WithoutCancel(ctx)); err != nil {
		exitErr("edit", err)
	}
	fmt.Printf(`{"ok":true,"book":%q,"uid":%d}`+"\n", args[0], uid)
}

// mutatorFromFlags builds one mutator applying every field flag that was
// set.
func mutatorFromFlags(cmd *cobra.Command) (func(*model.Entry), error) {
	type fieldEdit func(*model.Entry)
	var edits []fieldEdit

	if cmd.Flags().Changed("comment") {
		v, _ := cmd.Flags().GetString("comment")
		edits = append(edits, func(e *model.Entry) { e.Comment = v })
	}
	if cmd.Flags().Changed("content") {
		v, _ := cmd.Flags().GetString("content")
		edits = append(edits, func(e *model.Entry) { e.Content = v })
	}
	if cmd.Flags().Changed("keys") {
		v, _ := cmd.Flags().GetString("keys")
		var keys []string
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
		edits = append(edits, func(e *model.Entry) { e.Key = keys })
	}
	if cmd.Flags().Changed("position") {
		v, _ := cmd.Flags().GetString("position")
		pos, err := model.ParsePosition(v)
		if err != nil {
			return nil, err
		}
		edits = append(edits, func(e *model.Entry) { e.Position = pos })
	}
	if cmd.Flags().Changed("depth") {
		v, _ := cmd.Flags().GetInt("depth")
		edits = append(edits, func(e *model.Entry) { e.Depth = v })
	}
	if cmd.Flags().Changed("order") {
		v, _ := cmd.Flags().GetInt("order")
		edits = append(edits, func(e *model.Entry) { e.Order = v })
	}
	if cmd.Flags().Changed("probability") {
		v, _ := cmd.Flags().GetFloat64("probability")
		edits = append(edits, func(e *model.Entry) { e.Probability = v })
	}
	for flag, set := range map[string]func(*model.Entry, bool){
		"disable":  func(e *model.Entry, b bool) { e.Disable = b },
		"constant": func(e *model.Entry, b bool) { e.Constant = b },
	} {
		if cmd.Flags().Changed(flag) {
			v, _ := cmd.Flags().GetString(flag)
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("--%s: %w", flag, err)
			}
			set := set
			edits = append(edits, func(e *model.Entry) { set(e, b) })
		}
	}

	if len(edits) == 0 {
		return nil, fmt.Errorf("no field flags given")
	}
	return func(e *model.Entry) {
		for _, edit := range edits {
			edit(e)
		}
	}, nil
}

func runRmEntry(cmd *cobra.Command, args []string) {
	uids := make([]int, 0, len(args)-1)
	for _, arg := range args[1:] {
		uid, err := strconv.Atoi(arg)
		if err != nil {
			exitErr("rm-entry", fmt.Errorf("invalid uid %q", arg))
		}
		uids = append(uids, uid)
	}

	e, r, err := openEngine()
	if err != nil {
		exitErr("open", err)
	}
	defer r.Close()
	ctx := cmd.Context()

	if err := e.LoadBook(ctx, args[0]); err != nil {
		exitErr("rm-entry", err)
	}
	if err := e.DeleteEntries(ctx, uids...); err != nil {
		exitErr("rm-entry", err)
	}
	fmt.Printf(`{"ok":true,"book":%q,"deleted":%d}`+"\n", args[0], len(uids))
}

func runReorder(cmd *cobra.Command, args []string) {
	from, err1 := strconv.Atoi(args[1])
	to, err2 := strconv.Atoi(args[2])
	if err1 != nil || err2 != nil {
		exitErr("reorder", fmt.Errorf("invalid index"))
	}

	e, r, err := openEngine()
	if err != nil {
		exitErr("open", err)
	}
	defer r.Close()
	ctx := cmd.Context()

	if err := e.LoadBook(ctx, args[0]); err != nil {
		exitErr("reorder", err)
	}
	if err := e.Reorder(ctx, from, to); err != nil {
		exitErr("reorder", err)
	}
	fmt.Printf(`{"ok":true,"book":%q,"from":%d,"to":%d}`+"\n", args[0], from, to)
}

func runSortBook(cmd *cobra.Command, args []string) {
	e, r, err := openEngine()
	if err != nil {
		exitErr("open", err)
	}
	defer r.Close()
	ctx := cmd.Context()

	if err := e.LoadBook(ctx, args[0]); err != nil {
		exitErr("sort", err)
	}
	if err := e.SortByPriority(ctx); err != nil {
		exitErr("sort", err)
	}
	fmt.Printf(`{"ok":true,"book":%q}`+"\n", args[0])
}
