package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/syncbridge/internal/model"
	"github.com/rcliao/syncbridge/internal/store"
	"github.com/rcliao/syncbridge/internal/synclog"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export synced records as change records",
		Long: "Export every synced record as a newline-delimited add change record, the format " +
			"accepted by apply. Records without a sync identifier are skipped.",
		Run: runExport,
	}

	cmd.Flags().String("kind", "", "Filter by kind (default: all kinds)")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	kindName, _ := cmd.Flags().GetString("kind")

	selected, err := selectedKinds(kindName)
	if err != nil {
		exitErr("export", err)
	}

	e := mustOpenEnv()
	defer e.Close()
	ctx := cmd.Context()
	out := synclog.NewWriterLog(cmd.OutOrStdout())

	for _, ops := range selected {
		recs, err := ops.query(ctx, e, store.NotNull(store.FieldEncodedID))
		if err != nil {
			exitErr("export", err)
		}
		changes := make([]model.ChangeRecord, 0, len(recs))
		for _, r := range recs {
			c, err := r.ToChangeRecord(e.propagator.DeviceID(), model.ActionAdd)
			if err != nil {
				exitErr("export", err)
			}
			changes = append(changes, c)
		}
		if err := out.Send(ctx, ops.recordType, model.ActionAdd, changes); err != nil {
			exitErr("export", err)
		}
	}
}
