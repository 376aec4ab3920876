// Package cmd implements the poolctl commands
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/amirphl/tv-slot-pool/app/container"
	"github.com/amirphl/tv-slot-pool/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Output formats
const (
	outputText = "text"
	outputJSON = "json"
)

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCmd builds the poolctl command tree
func NewRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "poolctl",
		Short: "Slot pool maintenance CLI",
		Long: `poolctl runs maintenance tasks against the slot pool store: growing the pool,
rotating slot passwords, inspecting availability, exporting the inventory and
minting API tokens. It reads the same environment as the service.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile := v.GetString("config"); cfgFile != "" {
				v.SetConfigFile(cfgFile)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("error reading config file: %w", err)
				}
			}
			format := v.GetString("output")
			if format != outputText && format != outputJSON {
				return fmt.Errorf("unknown output format %q (want text or json)", format)
			}
			return nil
		},
	}

	root.PersistentFlags().String("config", "", "optional config file overriding flags (yaml, json or toml)")
	root.PersistentFlags().String("env-file", ".env", "env file loaded before reading the environment")
	root.PersistentFlags().String("store", "", "pool store override: postgres or memory")
	root.PersistentFlags().StringP("output", "o", outputText, "output format: text or json")
	root.PersistentFlags().Duration("timeout", 10*time.Minute, "overall command timeout")

	_ = v.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("env_file", root.PersistentFlags().Lookup("env-file"))
	_ = v.BindPFlag("pool.store", root.PersistentFlags().Lookup("store"))
	_ = v.BindPFlag("output", root.PersistentFlags().Lookup("output"))
	_ = v.BindPFlag("timeout", root.PersistentFlags().Lookup("timeout"))

	v.SetEnvPrefix("POOLCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	app := &cliApp{v: v}
	root.AddCommand(
		newWarmupCmd(app),
		newRotatePasswordsCmd(app),
		newAvailabilityCmd(app),
		newNextEmailCmd(app),
		newExportCmd(app),
		newTokenCmd(app),
	)
	return root
}

// cliApp carries the shared configuration of one poolctl invocation
type cliApp struct {
	v *viper.Viper
}

// loadConfig reads the env file and the environment, then applies flag overrides
func (a *cliApp) loadConfig() (*config.ProductionConfig, error) {
	if err := config.LoadEnvFile(a.v.GetString("env_file")); err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg := config.FromEnv()
	if store := a.v.GetString("pool.store"); store != "" {
		cfg.Pool.Store = store
	}
	// One-shot commands never run the boot tasks implicitly
	cfg.Pool.WarmupOnBoot = false
	cfg.Pool.RotatePasswordsOnBoot = false

	if err := config.ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (a *cliApp) openContainer(ctx context.Context) (*container.Container, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	return container.New(ctx, cfg)
}

func (a *cliApp) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.v.GetDuration("timeout"))
}

func (a *cliApp) isJSON() bool {
	return a.v.GetString("output") == outputJSON
}

func writeJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
