package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"modelshelf/internal/ipc"
)

func newModelsCommand(ctx *commandContext) *cobra.Command {
	var search string
	var category string
	var sortKey string
	var descending bool
	var updatesOnly bool
	var includeBlacklisted bool
	var usedWithinHours int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "models",
		Short: "Browse the merged model library",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ModelsList(ipc.ModelsListRequest{
					Search:             search,
					Category:           category,
					UsedWithinHours:    usedWithinHours,
					UpdatesOnly:        updatesOnly,
					IncludeBlacklisted: includeBlacklisted,
					Sort:               sortKey,
					Descending:         descending,
				})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}

				stdout := cmd.OutOrStdout()
				if len(resp.Models) == 0 {
					fmt.Fprintln(stdout, "No models found")
					return nil
				}
				fmt.Fprintln(stdout, renderModelsTable(resp.Models))
				fmt.Fprintf(stdout, "%d models\n", len(resp.Models))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "Filter by substring of file or model name")
	cmd.Flags().StringVar(&category, "category", "", "Filter by folder category (checkpoint, lora, vae, ...)")
	cmd.Flags().StringVar(&sortKey, "sort", "name", "Sort key: name, recency, size, category")
	cmd.Flags().BoolVar(&descending, "desc", false, "Sort in descending order")
	cmd.Flags().BoolVar(&updatesOnly, "updates", false, "Show only models with a pending provider update")
	cmd.Flags().BoolVar(&includeBlacklisted, "blacklisted", false, "Include blacklisted entries")
	cmd.Flags().IntVar(&usedWithinHours, "used-within", 0, "Show only models used within the last N hours")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output models as JSON")
	return cmd
}

func renderModelsTable(models []ipc.ModelRecord) string {
	headers := []string{"Name", "Category", "Size", "Model", "Fingerprint", "Scanned", "Flags"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignLeft}
	rows := make([][]string, 0, len(models))
	for _, model := range models {
		rows = append(rows, []string{
			model.Name,
			model.Category,
			humanBytes(model.SizeBytes),
			model.ModelName,
			shortFingerprint(model.Fingerprint),
			formatTimestamp(model.ScannedAt),
			modelFlags(model),
		})
	}
	return renderTable(headers, rows, aligns)
}

func modelFlags(model ipc.ModelRecord) string {
	flags := ""
	if !model.OnDisk {
		flags += "missing "
	}
	if !model.Cached {
		flags += "uncached "
	}
	if model.UpdateAvailable {
		flags += "update "
	}
	if model.Blacklisted {
		flags += "blacklisted "
	}
	if flags == "" {
		return "-"
	}
	return flags[:len(flags)-1]
}
