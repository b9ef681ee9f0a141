package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/syncbridge/internal/entity"
	"github.com/rcliao/syncbridge/internal/store"
	"github.com/rcliao/syncbridge/internal/syncid"
)

func init() {
	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Give a local record its sync identifier",
		Long:  "Assign a sync identifier to a local-only record and announce it to the sync log.",
		Run:   runAssign,
	}

	cmd.Flags().String("local", "", "Local record ID (required)")
	cmd.Flags().String("sync-id", "", "Encoded identifier to assign (required)")
	cmd.Flags().String("kind", entity.BookmarkKind.Name, "Kind: bookmark or history")

	cmd.MarkFlagRequired("local")
	cmd.MarkFlagRequired("sync-id")

	RootCmd.AddCommand(cmd)
}

func runAssign(cmd *cobra.Command, args []string) {
	local, _ := cmd.Flags().GetString("local")
	syncIDStr, _ := cmd.Flags().GetString("sync-id")
	kindName, _ := cmd.Flags().GetString("kind")

	ops, err := lookupKind(kindName)
	if err != nil {
		exitErr("assign", err)
	}
	id, err := syncid.DecodeStrict(syncIDStr, 0)
	if err != nil {
		exitErr("parse --sync-id", err)
	}

	e := mustOpenEnv()
	defer e.Close()

	found, err := ops.query(cmd.Context(), e, store.Eq(store.FieldID, local))
	if err != nil {
		exitErr("assign", err)
	}
	if len(found) == 0 {
		exitErr("assign", fmt.Errorf("no %s with local ID %s", ops.name, local))
	}
	if err := ops.assign(cmd.Context(), e, found[0], id); err != nil {
		exitErr("assign", err)
	}

	b, _ := json.Marshal(found[0])
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}
