package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/syncbridge/internal/entity"
	"github.com/rcliao/syncbridge/internal/store"
	"github.com/rcliao/syncbridge/internal/syncable"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm",
		Short: "Delete records",
		Long: "Delete records by sync identifier (--id) or local ID (--local). Synced records " +
			"are announced to the sync log before they are deleted.",
		Run: runRm,
	}

	cmd.Flags().StringArray("id", nil, "Encoded sync identifier (repeatable)")
	cmd.Flags().StringArray("local", nil, "Local record ID (repeatable)")
	cmd.Flags().String("kind", entity.BookmarkKind.Name, "Kind: bookmark or history")

	RootCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	rawIDs, _ := cmd.Flags().GetStringArray("id")
	locals, _ := cmd.Flags().GetStringArray("local")
	kindName, _ := cmd.Flags().GetString("kind")

	if len(rawIDs) == 0 && len(locals) == 0 {
		exitErr("rm", fmt.Errorf("--id or --local is required"))
	}
	ops, err := lookupKind(kindName)
	if err != nil {
		exitErr("rm", err)
	}
	ids, err := parseIDs(rawIDs)
	if err != nil {
		exitErr("rm", err)
	}

	e := mustOpenEnv()
	defer e.Close()
	ctx := cmd.Context()

	var targets []syncable.Entity
	if len(ids) > 0 {
		found, err := ops.find(ctx, e, ids)
		if err != nil {
			exitErr("rm", err)
		}
		targets = append(targets, found...)
	}
	if len(locals) > 0 {
		found, err := ops.query(ctx, e, store.In(store.FieldID, locals))
		if err != nil {
			exitErr("rm", err)
		}
		targets = append(targets, found...)
	}
	if len(targets) == 0 {
		exitErr("rm", fmt.Errorf("no matching %s", ops.name))
	}

	removed := 0
	seen := make(map[string]bool, len(targets))
	for _, rec := range targets {
		if seen[rec.Record().ID] {
			continue
		}
		seen[rec.Record().ID] = true
		if err := ops.remove(ctx, e, rec); err != nil {
			exitErr("rm", err)
		}
		removed++
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"kind":%q,"removed":%d}`+"\n", ops.name, removed)
}
