package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/syncbridge/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

type statsOutput struct {
	*store.Stats
	OutboxPath    string `json:"outbox_path,omitempty"`
	OutboxPending int    `json:"outbox_pending"`
}

func runStats(cmd *cobra.Command, args []string) {
	e := mustOpenEnv()
	defer e.Close()

	stats, err := e.store.Stats(cmd.Context())
	if err != nil {
		exitErr("stats", err)
	}
	out := statsOutput{Stats: stats}
	if e.outbox != nil {
		pending, err := e.outbox.Pending(cmd.Context(), 0)
		if err != nil {
			exitErr("stats", err)
		}
		out.OutboxPath = e.cfg.Outbox.Path
		out.OutboxPending = len(pending)
	}

	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}
