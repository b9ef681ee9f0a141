package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Show or acknowledge queued outbound change records",
		Run:   runOutbox,
	}

	cmd.Flags().IntP("limit", "l", 0, "Max entries to show (0 for all)")
	cmd.Flags().Int64("ack", 0, "Remove entries up to and including this sequence number")
	cmd.Flags().StringArray("ack-batch", nil, "Remove every entry of this batch (repeatable)")

	RootCmd.AddCommand(cmd)
}

func runOutbox(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	ackSeq, _ := cmd.Flags().GetInt64("ack")
	ackBatches, _ := cmd.Flags().GetStringArray("ack-batch")

	if dryRun {
		exitErr("outbox", fmt.Errorf("--dry-run has no outbox"))
	}
	e := mustOpenEnv()
	defer e.Close()
	ctx := cmd.Context()

	if ackSeq > 0 || len(ackBatches) > 0 {
		removed := 0
		if ackSeq > 0 {
			n, err := e.outbox.Ack(ctx, ackSeq)
			if err != nil {
				exitErr("ack", err)
			}
			removed += n
		}
		n, err := e.outbox.AckBatches(ctx, ackBatches...)
		if err != nil {
			exitErr("ack", err)
		}
		removed += n
		fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"acked":%d}`+"\n", removed)
		return
	}

	entries, err := e.outbox.Pending(ctx, limit)
	if err != nil {
		exitErr("outbox", err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "[]")
		return
	}
	b, _ := json.MarshalIndent(entries, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}
