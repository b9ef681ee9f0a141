package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/syncbridge/internal/decoder"
)

func init() {
	cmd := &cobra.Command{
		Use:     "apply",
		Aliases: []string{"import"},
		Short:   "Apply inbound change records",
		Long: "Apply change records received from the sync service. Reads a JSON array or " +
			"newline-delimited records from stdin or --file. Applied changes are not re-announced.",
		Run: runApply,
	}

	cmd.Flags().String("file", "", "Read records from this file instead of stdin")

	RootCmd.AddCommand(cmd)
}

func runApply(cmd *cobra.Command, args []string) {
	path, _ := cmd.Flags().GetString("file")

	var in io.Reader = os.Stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			exitErr("open file", err)
		}
		defer f.Close()
		in = f
	}

	changes, err := decoder.ParseStream(in)
	if err != nil {
		exitErr("parse change records", err)
	}

	e := mustOpenEnv()
	defer e.Close()

	applied, skipped := 0, 0
	for i, c := range changes {
		ops, err := kindForRecordType(c.RecordType)
		if err != nil {
			e.logger.Warn("skipping change record", "index", i, "id", c.ObjectID.String(), "error", err)
			skipped++
			continue
		}
		changed, err := ops.apply(cmd.Context(), e, c)
		if err != nil {
			exitErr(fmt.Sprintf("apply record %d", i), err)
		}
		if changed {
			applied++
		} else {
			skipped++
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"applied":%d,"skipped":%d}`+"\n", applied, skipped)
}
