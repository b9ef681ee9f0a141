package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/syncbridge/internal/store"
	"github.com/rcliao/syncbridge/internal/syncable"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search records by title or URL",
		Long:  "Search titles, custom titles and URLs for matching text, case-insensitively.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().String("kind", "", "Filter by kind (default: all kinds)")
	cmd.Flags().IntP("limit", "l", 20, "Max results")

	RootCmd.AddCommand(cmd)
}

// searchPredicate matches query against the site fields shared by all kinds.
func searchPredicate(query string) store.Predicate {
	return store.Or(
		store.Like("payload.site.title", query),
		store.Like("payload.site.customTitle", query),
		store.Like("payload.site.location", query),
	)
}

func runSearch(cmd *cobra.Command, args []string) {
	kindName, _ := cmd.Flags().GetString("kind")
	limit, _ := cmd.Flags().GetInt("limit")
	query := strings.TrimSpace(strings.Join(args, " "))

	selected, err := selectedKinds(kindName)
	if err != nil {
		exitErr("search", err)
	}

	e := mustOpenEnv()
	defer e.Close()

	var results []syncable.Entity
	for _, ops := range selected {
		recs, err := ops.query(cmd.Context(), e, searchPredicate(query))
		if err != nil {
			exitErr("search", err)
		}
		results = append(results, recs...)
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "[]")
		return
	}

	b, _ := json.MarshalIndent(results, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}
