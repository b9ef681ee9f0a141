package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/syncbridge/internal/store"
	"github.com/rcliao/syncbridge/internal/syncable"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records",
		Run:   runList,
	}

	cmd.Flags().String("kind", "", "Filter by kind (default: all kinds)")
	cmd.Flags().Bool("unsynced", false, "Only records without a sync identifier")
	cmd.Flags().Bool("synced", false, "Only records with a sync identifier")
	cmd.Flags().IntP("limit", "l", 50, "Max results per kind (0 for all)")
	cmd.Flags().Bool("ids-only", false, "Only output kind and identifier")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	kindName, _ := cmd.Flags().GetString("kind")
	unsynced, _ := cmd.Flags().GetBool("unsynced")
	synced, _ := cmd.Flags().GetBool("synced")
	limit, _ := cmd.Flags().GetInt("limit")
	idsOnly, _ := cmd.Flags().GetBool("ids-only")

	selected, err := selectedKinds(kindName)
	if err != nil {
		exitErr("list", err)
	}

	var p store.Predicate
	switch {
	case unsynced && synced:
		exitErr("list", fmt.Errorf("--synced and --unsynced are exclusive"))
	case unsynced:
		p = store.IsNull(store.FieldEncodedID)
	case synced:
		p = store.NotNull(store.FieldEncodedID)
	}

	e := mustOpenEnv()
	defer e.Close()

	var all []syncable.Entity
	for _, ops := range selected {
		recs, err := ops.query(cmd.Context(), e, p)
		if err != nil {
			exitErr("list", err)
		}
		if limit > 0 && len(recs) > limit {
			recs = recs[:limit]
		}
		all = append(all, recs...)
	}

	if idsOnly {
		for _, r := range all {
			id := r.SyncID().String()
			if id == "" {
				id = "-"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", r.Record().Kind, r.Record().ID, id)
		}
		return
	}

	if len(all) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "[]")
		return
	}
	b, _ := json.MarshalIndent(all, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}
