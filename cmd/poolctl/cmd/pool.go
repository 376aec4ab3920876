package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/amirphl/tv-slot-pool/app/scheduler"
	businessflow "github.com/amirphl/tv-slot-pool/business_flow"
	"github.com/spf13/cobra"
)

const cliActor = "system:poolctl"

func newWarmupCmd(app *cliApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "warmup",
		Short: "Grow the pool until enough fresh slots exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := app.context()
			defer cancel()

			c, err := app.openContainer(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			minFresh, _ := cmd.Flags().GetInt("min")
			if minFresh <= 0 {
				minFresh = c.Config.Pool.MinFreshSlots
			}

			ctx = businessflow.WithActor(ctx, cliActor)
			created, err := c.Bootstrap.Warmup(ctx, minFresh)
			if err != nil {
				return err
			}
			avail, err := c.Query.Availability(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if app.isJSON() {
				return writeJSON(out, map[string]any{
					"accounts_created": created,
					"availability":     avail,
				})
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Accounts created:\t%d\n", created)
			fmt.Fprintf(w, "Fresh available:\t%d\n", avail.FreshAvailable)
			fmt.Fprintf(w, "Total available:\t%d\n", avail.TotalAvailable)
			return w.Flush()
		},
	}
	cmd.Flags().Int("min", 0, "minimum fresh slots (default POOL_MIN_FRESH_SLOTS)")
	return cmd
}

func newRotatePasswordsCmd(app *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "rotate-passwords",
		Short: "Regenerate the password of every slot",
		Long:  "Regenerate the password of every slot, throttled to POOL_ROTATION_RATE slots per second.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := app.context()
			defer cancel()

			c, err := app.openContainer(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			rotated, failures, err := c.Bootstrap.RotatePasswords(businessflow.WithActor(ctx, cliActor))
			if err != nil {
				return err
			}

			report := scheduler.BootstrapReport{PasswordsRotated: rotated, RotationFailures: failures}
			if app.isJSON() {
				if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Rotated %d password(s), %d failure(s)\n", rotated, failures)
			}
			if failures > 0 {
				return fmt.Errorf("%d slot password(s) could not be rotated", failures)
			}
			return nil
		},
	}
}

func newAvailabilityCmd(app *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "availability",
		Short: "Show fresh and total available slots and the per-account inventory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := app.context()
			defer cancel()

			c, err := app.openContainer(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			avail, err := c.Query.Availability(ctx)
			if err != nil {
				return err
			}
			accounts, err := c.Query.ListAccounts(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if app.isJSON() {
				return writeJSON(out, map[string]any{
					"availability": avail,
					"accounts":     accounts,
				})
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Fresh available:\t%d\n", avail.FreshAvailable)
			fmt.Fprintf(w, "Total available:\t%d\n\n", avail.TotalAvailable)
			fmt.Fprintln(w, "SEQ\tEMAIL\tAVAILABLE\tFRESH\tASSIGNED\tINACTIVE\tSUSPENDED")
			for _, a := range accounts {
				fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%d\t%d\n",
					a.SequenceIndex, a.Email, a.Available, a.Fresh, a.Assigned, a.Inactive, a.Suspended)
			}
			return w.Flush()
		},
	}
}

func newNextEmailCmd(app *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "next-email",
		Short: "Preview the email of the next account the pool would create",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := app.context()
			defer cancel()

			c, err := app.openContainer(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			preview, err := c.Query.NextEmailPreview(ctx)
			if err != nil {
				return err
			}
			if app.isJSON() {
				return writeJSON(cmd.OutOrStdout(), preview)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (sequence %d, %d slot(s) available)\n",
				preview.Email, preview.SequenceIndex, preview.TotalAvailable)
			return nil
		},
	}
}

func newExportCmd(app *cliApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export accounts and slots to an Excel workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := app.context()
			defer cancel()

			c, err := app.openContainer(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			filename, data, err := c.Query.ExportInventory(ctx)
			if err != nil {
				return err
			}

			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				out = filename
			}
			if dir := filepath.Dir(out); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("failed to create output directory: %w", err)
				}
			}
			if err := os.WriteFile(out, data, 0o600); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}

			if app.isJSON() {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"file": out, "bytes": len(data)})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", out, len(data))
			return nil
		},
	}
	cmd.Flags().String("out", "", "output file (default slot_pool_inventory_<timestamp>.xlsx)")
	return cmd
}
