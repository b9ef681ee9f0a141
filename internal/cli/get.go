package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/syncbridge/internal/entity"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Retrieve records by sync identifier",
		Long:  "Retrieve records by encoded sync identifier. Repeat --id for a bulk lookup.",
		Run:   runGet,
	}

	cmd.Flags().StringArray("id", nil, "Encoded identifier, e.g. 42,7 (repeatable, required)")
	cmd.Flags().String("kind", entity.BookmarkKind.Name, "Kind: bookmark or history")

	cmd.MarkFlagRequired("id")

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	rawIDs, _ := cmd.Flags().GetStringArray("id")
	kindName, _ := cmd.Flags().GetString("kind")

	ops, err := lookupKind(kindName)
	if err != nil {
		exitErr("get", err)
	}
	ids, err := parseIDs(rawIDs)
	if err != nil {
		exitErr("get", err)
	}

	e := mustOpenEnv()
	defer e.Close()

	found, err := ops.find(cmd.Context(), e, ids)
	if err != nil {
		exitErr("get", err)
	}
	if len(found) == 0 {
		exitErr("get", fmt.Errorf("no %s with identifier %v", ops.name, rawIDs))
	}

	var out any = found
	if len(found) == 1 && len(rawIDs) == 1 {
		out = found[0]
	}
	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}
