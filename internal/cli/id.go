package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rcliao/syncbridge/internal/syncid"
)

func init() {
	idCmd := &cobra.Command{
		Use:   "id",
		Short: "Encode and decode sync identifiers",
	}

	encode := &cobra.Command{
		Use:   "encode <n>...",
		Short: "Encode integer components as an identifier string",
		Args:  cobra.MinimumNArgs(1),
		Run:   runIDEncode,
	}

	decode := &cobra.Command{
		Use:   "decode <encoded>",
		Short: "Decode an identifier string into its components",
		Args:  cobra.ExactArgs(1),
		Run:   runIDDecode,
	}
	decode.Flags().Bool("strict", false, "Reject malformed components instead of dropping them")
	decode.Flags().Int("len", 0, "Required number of components (strict mode)")

	idCmd.AddCommand(encode, decode)
	RootCmd.AddCommand(idCmd)
}

func runIDEncode(cmd *cobra.Command, args []string) {
	id := make(syncid.ID, 0, len(args))
	for _, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil || n < 0 {
			exitErr("encode", fmt.Errorf("component %q is not a non-negative integer", a))
		}
		id = append(id, n)
	}
	fmt.Fprintln(cmd.OutOrStdout(), syncid.Encode(id))
}

func runIDDecode(cmd *cobra.Command, args []string) {
	strict, _ := cmd.Flags().GetBool("strict")
	want, _ := cmd.Flags().GetInt("len")

	var id syncid.ID
	if strict {
		var err error
		if id, err = syncid.DecodeStrict(args[0], want); err != nil {
			exitErr("decode", err)
		}
	} else {
		id = syncid.DecodeLossy(args[0])
	}

	b, _ := json.Marshal(id)
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}
