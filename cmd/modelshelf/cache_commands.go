package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"modelshelf/internal/ipc"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Cache maintenance and diagnostics",
	}

	cacheCmd.AddCommand(newCacheHealthCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	cacheCmd.AddCommand(newCachePruneCommand(ctx))
	return cacheCmd
}

func newCacheHealthCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show cache database diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.CacheHealth()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Health)
				}

				health := resp.Health
				stdout := cmd.OutOrStdout()
				rows := [][]string{
					{"Database", health.DBPath},
					{"Exists", yesNo(health.DatabaseExists)},
					{"Readable", yesNo(health.DatabaseReadable)},
					{"Schema version", fmt.Sprintf("%d", health.SchemaVersion)},
					{"Integrity check", yesNo(health.IntegrityCheck)},
					{"Tracked paths", fmt.Sprintf("%d", health.PathCount)},
					{"Cached entries", fmt.Sprintf("%d", health.EntryCount)},
					{"Blacklisted", fmt.Sprintf("%d", health.BlacklistedCount)},
					{"Orphan entries", fmt.Sprintf("%d", health.OrphanCount)},
					{"Database size", humanBytes(health.DatabaseBytes)},
					{"Free disk", humanBytes(int64(health.FreeDiskBytes))},
				}
				fmt.Fprintln(stdout, renderTable([]string{"Check", "Value"}, rows, []columnAlignment{alignLeft, alignLeft}))
				if health.Error != "" {
					return fmt.Errorf("cache health: %s", health.Error)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output diagnostics as JSON")
	return cmd
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached paths and metadata entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return fmt.Errorf("cache clear discards all cached metadata; rerun with --yes to confirm")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.CacheClear()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cached paths\n", resp.Removed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&confirmed, "yes", false, "Confirm clearing the cache")
	return cmd
}

func newCachePruneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove cached paths whose files no longer exist on disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.CachePrune()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d stale paths\n", resp.Pruned)
				return nil
			})
		},
	}
}
