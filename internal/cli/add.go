package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/syncbridge/internal/entity"
	"github.com/rcliao/syncbridge/internal/syncid"
)

func init() {
	cmd := &cobra.Command{
		Use:   "add [url]",
		Short: "Add a bookmark or history entry",
		Long: "Add a local record. It is not announced to the sync log until it has an identifier; " +
			"pass --sync-id to assign one immediately.",
		Args: cobra.ExactArgs(1),
		Run:  runAdd,
	}

	cmd.Flags().String("kind", entity.BookmarkKind.Name, "Kind: bookmark or history")
	cmd.Flags().StringP("title", "t", "", "Page title")
	cmd.Flags().String("custom-title", "", "User-chosen title (bookmarks)")
	cmd.Flags().Bool("folder", false, "Create a bookmark folder")
	cmd.Flags().String("parent", "", "Encoded identifier of the parent folder")
	cmd.Flags().String("sync-id", "", "Assign this encoded identifier and announce the record")

	RootCmd.AddCommand(cmd)
}

func runAdd(cmd *cobra.Command, args []string) {
	kindName, _ := cmd.Flags().GetString("kind")
	title, _ := cmd.Flags().GetString("title")
	customTitle, _ := cmd.Flags().GetString("custom-title")
	folder, _ := cmd.Flags().GetBool("folder")
	parentStr, _ := cmd.Flags().GetString("parent")
	syncIDStr, _ := cmd.Flags().GetString("sync-id")

	ops, err := lookupKind(kindName)
	if err != nil {
		exitErr("add", err)
	}

	location := strings.TrimSpace(args[0])
	if location == "" {
		exitErr("add", fmt.Errorf("url is required"))
	}

	var parent syncid.ID
	if parentStr != "" {
		if parent, err = syncid.DecodeStrict(parentStr, 0); err != nil {
			exitErr("parse --parent", err)
		}
	}
	var syncID syncid.ID
	if syncIDStr != "" {
		if syncID, err = syncid.DecodeStrict(syncIDStr, 0); err != nil {
			exitErr("parse --sync-id", err)
		}
	}

	e := mustOpenEnv()
	defer e.Close()

	now := time.Now().UnixMilli()
	rec, err := ops.create(cmd.Context(), e, siteFields{
		Site: entity.Site{
			Location:         location,
			Title:            title,
			CustomTitle:      customTitle,
			CreationTime:     now,
			LastAccessedTime: now,
		},
		IsFolder: folder,
		Parent:   parent,
	})
	if err != nil {
		exitErr("add", err)
	}

	if !syncID.IsZero() {
		if err := ops.assign(cmd.Context(), e, rec, syncID); err != nil {
			exitErr("assign identifier", err)
		}
	}

	b, _ := json.Marshal(rec)
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}
