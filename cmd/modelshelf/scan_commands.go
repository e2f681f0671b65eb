package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"modelshelf/internal/ipc"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var force bool
	var includeCached bool
	var wait bool

	cmd := &cobra.Command{
		Use:   "scan [folder...]",
		Short: "Scan model folders and refresh the metadata cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ScanStart(ipc.ScanStartRequest{
					Folders:       args,
					Force:         force,
					IncludeCached: includeCached,
				})
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if !resp.Started {
					return fmt.Errorf("scan not started: %s", resp.Message)
				}
				fmt.Fprintf(stdout, "Scan started: session %s, %d files\n", resp.SessionID, resp.Total)
				if !wait {
					return nil
				}
				final, err := pollUntilTerminal(client, stdout, true)
				if err != nil {
					return err
				}
				return reportTerminalScan(stdout, final)
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Re-hash files and refresh cached metadata")
	cmd.Flags().BoolVar(&includeCached, "include-cached", false, "With --force, also re-fetch entries that already have metadata")
	cmd.Flags().BoolVar(&wait, "wait", false, "Block until the scan finishes, printing progress")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var watch bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and scan status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				stdout := cmd.OutOrStdout()
				status, err := client.Status()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, status)
				}

				fmt.Fprintf(stdout, "Daemon:   running (pid %d)\n", status.PID)
				fmt.Fprintf(stdout, "Database: %s\n", status.DatabasePath)
				if status.ChangesPending {
					fmt.Fprintln(stdout, "Library:  changes detected since last scan")
				}
				printScanLine(stdout, status.Scan)

				if watch && status.Scan.Active {
					final, err := pollUntilTerminal(client, stdout, true)
					if err != nil {
						return err
					}
					return reportTerminalScan(stdout, final)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Keep polling until the active scan finishes")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output status as JSON")
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the active scan",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ScanCancel()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if !resp.Cancelled {
					fmt.Fprintln(stdout, "No active scan to cancel")
					return nil
				}
				fmt.Fprintln(stdout, "Cancellation requested")
				return nil
			})
		},
	}
}

func printScanLine(stdout io.Writer, scan ipc.ScanStatus) {
	if !scan.Active && scan.SessionID == "" {
		fmt.Fprintln(stdout, "Scan:     idle")
		return
	}
	line := fmt.Sprintf("Scan:     %s %d/%d", scan.Status, scan.Current, scan.Total)
	if scan.CurrentFile != "" {
		line += fmt.Sprintf(" (%s)", scan.CurrentFile)
	}
	if scan.ErrorCount > 0 {
		line += fmt.Sprintf(", %d errors", scan.ErrorCount)
	}
	fmt.Fprintln(stdout, line)
}

// pollUntilTerminal polls scan status until the session leaves its active
// states, optionally printing a progress line per change.
func pollUntilTerminal(client *ipc.Client, stdout io.Writer, report bool) (ipc.ScanStatus, error) {
	lastLine := ""
	for {
		resp, err := client.ScanStatus()
		if err != nil {
			return ipc.ScanStatus{}, err
		}
		scan := resp.Scan
		if report {
			line := fmt.Sprintf("%s %d/%d", scan.Status, scan.Current, scan.Total)
			if line != lastLine {
				fmt.Fprintln(stdout, line)
				lastLine = line
			}
		}
		if !scan.Active {
			return scan, nil
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func reportTerminalScan(stdout io.Writer, scan ipc.ScanStatus) error {
	switch scan.Status {
	case "completed":
		fmt.Fprintf(stdout, "Scan completed: %d files", scan.Total)
		if scan.ErrorCount > 0 {
			fmt.Fprintf(stdout, ", %d errors", scan.ErrorCount)
		}
		fmt.Fprintln(stdout)
		return nil
	case "cancelled":
		fmt.Fprintf(stdout, "Scan cancelled after %d/%d files\n", scan.Current, scan.Total)
		return nil
	case "error":
		return fmt.Errorf("scan failed: %s", scan.FatalError)
	default:
		fmt.Fprintf(stdout, "Scan finished with status %s\n", scan.Status)
		return nil
	}
}
