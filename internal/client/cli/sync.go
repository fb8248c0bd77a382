package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/spf13/cobra"
)

func (c *CLI) syncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync [catalog]",
		Short: "Refresh one catalog, or all of them in dependency order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 1 {
				res, err := a.SyncCatalog(ctx, args[0])
				if err != nil {
					return err
				}
				printSyncResult(c.out, res)
				return checkSync([]models.SyncResult{res})
			}

			results, err := a.SyncAllCatalogs(ctx, c.progress)
			if err != nil {
				return err
			}
			return checkSync(results)
		},
	}
}

func (c *CLI) resyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resync",
		Short: "Rebuild every catalog from scratch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.ForceFullResync(cmd.Context(), c.progress)
			if err != nil {
				return err
			}
			return checkSync(results)
		},
	}
}

// progress prints finished catalogs only.
func (c *CLI) progress(p models.SyncProgress) {
	if p.Result == nil {
		return
	}
	fmt.Fprintf(c.out, "[%d/%d] ", p.Index+1, p.Total)
	printSyncResult(c.out, *p.Result)
}

func printSyncResult(w io.Writer, r models.SyncResult) {
	switch {
	case r.Success && r.Anomaly != "":
		fmt.Fprintf(w, "%-11s ok      %d rows (%s)\n", r.Catalog, r.Stored, r.Anomaly)
	case r.Success:
		fmt.Fprintf(w, "%-11s ok      %d rows in %s\n", r.Catalog, r.Stored, r.Duration.Round(time.Millisecond))
	default:
		fmt.Fprintf(w, "%-11s failed  %s: %s\n", r.Catalog, r.Kind, r.Message)
	}
}

func checkSync(results []models.SyncResult) error {
	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d catalogs failed", failed, len(results))
	}
	return nil
}

func (c *CLI) verifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Count the rows of every catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.VerifyIntegrity(cmd.Context())
			if err != nil {
				return err
			}
			for _, ci := range report.Catalogs {
				synced := "never"
				if !ci.LastSyncedAt.IsZero() {
					synced = ci.LastSyncedAt.Local().Format(time.DateTime)
				}
				line := fmt.Sprintf("%-11s %-9s %6d  synced %s", ci.Catalog, ci.Status, ci.Rows, synced)
				if ci.Error != "" {
					line += "  " + ci.Error
				}
				fmt.Fprintln(c.out, line)
			}
			if !report.Healthy() {
				fmt.Fprintln(c.out, "Some catalogs need a sync")
			}
			return nil
		},
	}
}

func (c *CLI) pushCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Submit every pending voucher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.SubmitPendingVouchers(cmd.Context())
			for _, r := range results {
				printSubmission(c.out, r)
			}
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(c.out, "Nothing to submit")
				return nil
			}

			failed := 0
			for _, r := range results {
				if !r.Success {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d vouchers were not accepted", failed, len(results))
			}
			return nil
		},
	}
}

func printSubmission(w io.Writer, r models.SubmissionResult) {
	switch {
	case r.Success && r.Purged:
		fmt.Fprintf(w, "%-9s #%-5d accepted\n", r.Kind, r.ID)
	case r.Success:
		fmt.Fprintf(w, "%-9s #%-5d accepted, still stored: %s\n", r.Kind, r.ID, r.Message)
	default:
		fmt.Fprintf(w, "%-9s #%-5d kept (%s): %s\n", r.Kind, r.ID, r.Failure, r.Message)
	}
}

func (c *CLI) pendingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "Count the vouchers waiting for upload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			counts, err := a.PendingCount(cmd.Context())
			if err != nil {
				return err
			}
			for _, k := range models.VoucherKinds {
				fmt.Fprintf(c.out, "%-9s %d\n", k, counts[k])
			}
			return nil
		},
	}
}
